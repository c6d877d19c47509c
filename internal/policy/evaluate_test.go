package policy

import (
	"testing"
	"time"
)

func TestDueForSnapshot(t *testing.T) {
	tests := []struct {
		name     string
		interval Interval
		age      time.Duration
		want     bool
	}{
		{"Hourly Just Under", IntervalHourly, 59 * time.Minute, false},
		{"Hourly Exactly Threshold", IntervalHourly, time.Hour, false},
		{"Hourly Past Threshold", IntervalHourly, time.Hour + time.Second, true},
		{"Daily Fresh", IntervalDaily, 2 * time.Hour, false},
		{"Daily Stale", IntervalDaily, 25 * time.Hour, true},
		{"Weekly Two Days", IntervalWeekly, 48 * time.Hour, false},
		{"Weekly Eight Days", IntervalWeekly, 8 * 24 * time.Hour, true},
		{"Monthly Is Thirty Days", IntervalMonthly, 30*24*time.Hour + time.Second, true},
		{"Monthly Twenty Nine Days", IntervalMonthly, 29 * 24 * time.Hour, false},
		{"Yearly Is 365 Days", IntervalYearly, 365*24*time.Hour + time.Second, true},
		{"Yearly Half A Year", IntervalYearly, 180 * 24 * time.Hour, false},
		{"Unknown Interval Never Due", Interval("daily-ish"), NoSnapshotAge, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DueForSnapshot(tt.interval, tt.age); got != tt.want {
				t.Errorf("DueForSnapshot(%s, %s) = %v, want %v", tt.interval, tt.age, got, tt.want)
			}
		})
	}
}

func TestDueForSnapshot_MatchesThresholdForEveryCadence(t *testing.T) {
	wantSeconds := map[Interval]int64{
		IntervalHourly:  3600,
		IntervalDaily:   86400,
		IntervalWeekly:  604800,
		IntervalMonthly: 2592000,
		IntervalYearly:  31536000,
	}

	ages := []time.Duration{0, time.Second, time.Hour, 24 * time.Hour, 7 * 24 * time.Hour, 400 * 24 * time.Hour}

	for _, interval := range Intervals {
		threshold, ok := Threshold(interval)
		if !ok {
			t.Fatalf("no threshold for %s", interval)
		}
		if int64(threshold/time.Second) != wantSeconds[interval] {
			t.Errorf("threshold(%s) = %s", interval, threshold)
		}

		for _, age := range append(ages, threshold, threshold+1) {
			if got, want := DueForSnapshot(interval, age), age > threshold; got != want {
				t.Errorf("DueForSnapshot(%s, %s) = %v, want %v", interval, age, got, want)
			}
		}

		if !DueForSnapshot(interval, NoSnapshotAge) {
			t.Errorf("%s must always be due without any snapshot", interval)
		}
	}
}

func TestAgeSince(t *testing.T) {
	now := time.Date(2025, 12, 21, 15, 0, 0, 0, time.UTC)

	if got := AgeSince(now, time.Time{}); got != NoSnapshotAge {
		t.Errorf("AgeSince(zero) = %s, want NoSnapshotAge", got)
	}
	if got := AgeSince(now, now.Add(-90*time.Minute)); got != 90*time.Minute {
		t.Errorf("AgeSince = %s, want 1h30m", got)
	}
}
