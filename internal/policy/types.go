package policy

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Interval is the enumerated snapshot cadence of a volume.
type Interval string

const (
	IntervalHourly  Interval = "hourly"
	IntervalDaily   Interval = "daily"
	IntervalWeekly  Interval = "weekly"
	IntervalMonthly Interval = "monthly"
	IntervalYearly  Interval = "yearly"
)

// Intervals lists every recognized cadence, shortest first.
var Intervals = []Interval{
	IntervalHourly,
	IntervalDaily,
	IntervalWeekly,
	IntervalMonthly,
	IntervalYearly,
}

// Valid reports whether i is one of the enumerated cadences.
func (i Interval) Valid() bool {
	return slices.Contains(Intervals, i)
}

// ParseInterval normalizes case and surrounding space before checking the
// value against the enumerated set.
func ParseInterval(raw string) (Interval, error) {
	i := Interval(strings.ToLower(strings.TrimSpace(raw)))
	if !i.Valid() {
		return "", fmt.Errorf("unrecognized interval %q", raw)
	}
	return i, nil
}

// Policy is the declared snapshot cadence and retention for one volume.
//
// Fields:
//   - VolumeID: Opaque provider identifier, unique within a policy set.
//   - Interval: Snapshot cadence (hourly, daily, weekly, monthly, yearly).
//   - MaxSnapshots: Snapshots kept per location. 0 keeps everything.
//   - Name: Optional Name tag applied to created and replicated snapshots.
type Policy struct {
	VolumeID     string   `json:"volume_id"`
	Interval     Interval `json:"interval"`
	MaxSnapshots int      `json:"max_snapshots"`
	Name         string   `json:"name,omitempty"`
}

// Validate checks the policy against the enumerated cadences and the
// retention bounds. The returned error is always a *ConfigError.
func (p Policy) Validate() error {
	if strings.TrimSpace(p.VolumeID) == "" {
		return &ConfigError{Field: "volume_id", Reason: "volume id is required"}
	}
	if p.Interval == "" {
		return &ConfigError{VolumeID: p.VolumeID, Field: "interval", Reason: "interval is required"}
	}
	if !p.Interval.Valid() {
		return &ConfigError{
			VolumeID: p.VolumeID,
			Field:    "interval",
			Value:    string(p.Interval),
			Reason:   fmt.Sprintf("must be one of %v", Intervals),
		}
	}
	if p.MaxSnapshots < 0 {
		return &ConfigError{
			VolumeID: p.VolumeID,
			Field:    "max_snapshots",
			Value:    fmt.Sprint(p.MaxSnapshots),
			Reason:   "must be a non-negative integer",
		}
	}
	return nil
}

// Set is the active policy set keyed by volume ID. Rejected holds entries of
// the policy document that could not be decoded; they are reported as
// configuration errors for their volume without touching the provider.
type Set struct {
	Policies map[string]Policy
	Rejected map[string]error
}

// NewSet returns an empty, ready to use Set.
func NewSet() Set {
	return Set{
		Policies: make(map[string]Policy),
		Rejected: make(map[string]error),
	}
}

// Clone returns a copy that shares no maps with s.
func (s Set) Clone() Set {
	out := NewSet()
	maps.Copy(out.Policies, s.Policies)
	maps.Copy(out.Rejected, s.Rejected)
	return out
}

// VolumeIDs returns every volume in the set, accepted or rejected, sorted.
func (s Set) VolumeIDs() []string {
	ids := make([]string, 0, len(s.Policies)+len(s.Rejected))
	for id := range s.Policies {
		ids = append(ids, id)
	}
	for id := range s.Rejected {
		if _, ok := s.Policies[id]; !ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Len is the number of volumes in the set.
func (s Set) Len() int {
	return len(s.VolumeIDs())
}
