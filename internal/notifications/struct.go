package notifications

import "time"

// Webhook posts JSON alerts to an HTTP endpoint, optionally with basic auth.
type Webhook struct {
	URL      string
	Username string
	Password string
	Timeout  time.Duration
}

// PassFailure describes a volume whose reconciliation pass failed.
type PassFailure struct {
	Service    string    `json:"service"`
	RunID      string    `json:"snapsentry_id"`
	Provider   string    `json:"provider"`
	Region     string    `json:"region"`
	VolumeID   string    `json:"volume_id"`
	ErrorKind  string    `json:"error_kind"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}
