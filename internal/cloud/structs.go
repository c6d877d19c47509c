package cloud

import (
	"sort"
	"time"
)

// RetryConfig defines the parameters for the exponential backoff and retry mechanism.
// It allows fine-tuning of how aggressive the system should be when handling transient errors.
type RetryConfig struct {
	// MaxRetries is the maximum number of additional attempts after the initial failure.
	// For example, if MaxRetries is 3, the operation runs at most 4 times (1 initial + 3 retries).
	MaxRetries int

	// BaseDelay is the initial wait time before the first retry.
	// This duration increases exponentially with each attempt (BaseDelay * 2^attempt).
	BaseDelay time.Duration

	// MaxDelay is the hard limit for the sleep duration between retries.
	MaxDelay time.Duration

	// OperationTimeout is the total time limit for the entire operation, including all retries.
	OperationTimeout time.Duration
}

// DefaultRetryConfig is used by the long-running workflows.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:       3,
	BaseDelay:        2 * time.Second,
	MaxDelay:         10 * time.Second,
	OperationTimeout: 30 * time.Second,
}

// Location identifies which failure domain a snapshot lives in.
type Location string

const (
	LocationPrimary Location = "primary"
	LocationReplica Location = "replica"
)

// Status is the provider-owned lifecycle state of a snapshot, normalized
// across providers. It only moves pending -> completed or pending -> error.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Tag keys written on snapshots created or copied by snapsentry.
const (
	TagName           = "Name"
	TagCreator        = "creator"
	TagVolumeID       = "snapsentry:volume-id"
	TagSnapshotSource = "snapshot_source"

	CreatorValue = "snapsentry"
)

// SnapshotRecord is the provider-neutral view of one snapshot.
type SnapshotRecord struct {
	ID       string
	VolumeID string
	Location Location
	// CreatedAt is always UTC.
	CreatedAt time.Time
	Status    Status
	// SourceSnapshotID is only set for replica records.
	SourceSnapshotID string
}

// Completed reports whether the provider has finished the snapshot.
func (r SnapshotRecord) Completed() bool {
	return r.Status == StatusCompleted
}

// NewerThan orders records by creation time. Records created at the same
// instant are ordered by ID, the lexicographically greater ID being newer.
func (r SnapshotRecord) NewerThan(other SnapshotRecord) bool {
	if r.CreatedAt.Equal(other.CreatedAt) {
		return r.ID > other.ID
	}
	return r.CreatedAt.After(other.CreatedAt)
}

// SortRecords sorts records oldest first using the NewerThan ordering.
func SortRecords(records []SnapshotRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[j].NewerThan(records[i])
	})
}
