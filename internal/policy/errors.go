package policy

import (
	"errors"
	"fmt"
)

// ConfigError rejects one volume's policy. The volume is skipped for the
// tick; other volumes are unaffected.
type ConfigError struct {
	VolumeID string
	Field    string
	Value    string
	Reason   string
}

func (e *ConfigError) Error() string {
	msg := "invalid policy"
	if e.VolumeID != "" {
		msg += fmt.Sprintf(" for volume %s", e.VolumeID)
	}
	if e.Field != "" {
		msg += fmt.Sprintf(": %s", e.Field)
	}
	if e.Value != "" {
		msg += fmt.Sprintf(" %q", e.Value)
	}
	if e.Reason != "" {
		msg += fmt.Sprintf(": %s", e.Reason)
	}
	return msg
}

// IsConfigError reports whether err is, or wraps, a ConfigError.
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}
