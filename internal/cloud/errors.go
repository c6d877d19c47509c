package cloud

import (
	"errors"
	"fmt"
)

// ProviderError wraps a transport, auth or throttling failure returned by a
// provider call. It aborts the volume pass it occurred in.
type ProviderError struct {
	Op       string
	Location Location
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("%s (%s): %v", e.Op, e.Location, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ResourceLimitError signals that the provider refused a copy because too many
// copies are already in flight. Callers treat it as "try again later".
type ResourceLimitError struct {
	SourceSnapshotID string
	Err              error
}

func (e *ResourceLimitError) Error() string {
	return fmt.Sprintf("copy of %s hit the concurrent copy limit: %v", e.SourceSnapshotID, e.Err)
}

func (e *ResourceLimitError) Unwrap() error { return e.Err }

// TaggingError is returned when tags could not be applied to a resource that
// already exists. It never rolls the resource back.
type TaggingError struct {
	ResourceID string
	Err        error
}

func (e *TaggingError) Error() string {
	return fmt.Sprintf("tagging %s: %v", e.ResourceID, e.Err)
}

func (e *TaggingError) Unwrap() error { return e.Err }

// ErrCopyUnsupported is wrapped by providers that cannot copy snapshots
// between regions.
var ErrCopyUnsupported = errors.New("cross-region snapshot copy is not supported by this provider")

// IsResourceLimit reports whether err is, or wraps, a ResourceLimitError.
func IsResourceLimit(err error) bool {
	var limitErr *ResourceLimitError
	return errors.As(err, &limitErr)
}
