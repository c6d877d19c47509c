package policy

import (
	"math"
	"time"
)

// NoSnapshotAge is the age used when a location holds no snapshot at all.
// It exceeds every threshold, so the volume is always due.
const NoSnapshotAge = time.Duration(math.MaxInt64)

var thresholds = map[Interval]time.Duration{
	IntervalHourly:  3600 * time.Second,
	IntervalDaily:   86400 * time.Second,
	IntervalWeekly:  604800 * time.Second,
	IntervalMonthly: 2592000 * time.Second,
	IntervalYearly:  31536000 * time.Second,
}

// Threshold returns the maximum snapshot age tolerated by the interval.
func Threshold(interval Interval) (time.Duration, bool) {
	d, ok := thresholds[interval]
	return d, ok
}

// DueForSnapshot reports whether a location whose newest snapshot is age old
// needs a new one. Unknown intervals are never due; callers validate the
// policy before evaluating it.
func DueForSnapshot(interval Interval, age time.Duration) bool {
	threshold, ok := thresholds[interval]
	if !ok {
		return false
	}
	return age > threshold
}

// AgeSince returns how long ago createdAt was relative to now. A zero
// createdAt means "no snapshot" and yields NoSnapshotAge.
func AgeSince(now, createdAt time.Time) time.Duration {
	if createdAt.IsZero() {
		return NoSnapshotAge
	}
	return now.Sub(createdAt)
}
