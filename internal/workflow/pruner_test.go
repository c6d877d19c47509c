package workflow

import (
	"testing"
	"time"

	"github.com/aravindh-murugesan/snapsentry-go/internal/cloud"
	"github.com/google/go-cmp/cmp"
)

func records(ids ...string) []cloud.SnapshotRecord {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]cloud.SnapshotRecord, len(ids))
	for i, id := range ids {
		out[i] = snap(id, "vol-1", cloud.LocationPrimary, base.Add(time.Duration(i)*time.Hour), cloud.StatusCompleted)
	}
	return out
}

func ids(records []cloud.SnapshotRecord) []string {
	var out []string
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestPruneTargets(t *testing.T) {
	tests := []struct {
		name      string
		snapshots []cloud.SnapshotRecord
		keep      int
		want      []string
	}{
		{name: "unlimited retention", snapshots: records("a", "b", "c", "d"), keep: 0, want: nil},
		{name: "under limit", snapshots: records("a", "b"), keep: 3, want: nil},
		{name: "at limit", snapshots: records("a", "b", "c"), keep: 3, want: nil},
		{name: "over limit deletes oldest", snapshots: records("a", "b", "c", "d", "e"), keep: 3, want: []string{"a", "b"}},
		{name: "keep one", snapshots: records("a", "b", "c"), keep: 1, want: []string{"a", "b"}},
		{name: "empty inventory", snapshots: nil, keep: 2, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(PruneTargets(tt.snapshots, tt.keep))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("PruneTargets() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPruneTargets_UnorderedInput(t *testing.T) {
	in := records("a", "b", "c", "d")
	shuffled := []cloud.SnapshotRecord{in[2], in[0], in[3], in[1]}

	got := ids(PruneTargets(shuffled, 2))
	if diff := cmp.Diff([]string{"a", "b"}, got); diff != "" {
		t.Errorf("PruneTargets() mismatch (-want +got):\n%s", diff)
	}
	if shuffled[0].ID != "c" {
		t.Error("PruneTargets must not reorder its input")
	}
}

func TestPruneTargets_Idempotent(t *testing.T) {
	inventory := records("a", "b", "c", "d", "e", "f")
	keep := 4

	first := PruneTargets(inventory, keep)
	deleted := map[string]bool{}
	for _, r := range first {
		deleted[r.ID] = true
	}
	var remaining []cloud.SnapshotRecord
	for _, r := range inventory {
		if !deleted[r.ID] {
			remaining = append(remaining, r)
		}
	}

	if second := PruneTargets(remaining, keep); len(second) != 0 {
		t.Errorf("second prune returned %v, want none", ids(second))
	}
}

func TestPruneTargets_Bound(t *testing.T) {
	for n := 0; n <= 8; n++ {
		inventory := records("a", "b", "c", "d", "e", "f", "g", "h")[:n]
		for keep := 0; keep <= 9; keep++ {
			got := len(PruneTargets(inventory, keep))
			limit := max(0, n-keep)
			if keep == 0 {
				limit = 0
			}
			if got > limit {
				t.Errorf("n=%d keep=%d: pruned %d, bound %d", n, keep, got, limit)
			}
		}
	}
}

// The ID tie-break for equal timestamps is a stabilization choice, not a
// requirement: it only needs to be deterministic.
func TestPruneTargets_EqualTimestampsTieBreak(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	in := []cloud.SnapshotRecord{
		snap("snap-b", "vol-1", cloud.LocationPrimary, at, cloud.StatusCompleted),
		snap("snap-a", "vol-1", cloud.LocationPrimary, at, cloud.StatusCompleted),
	}

	got := ids(PruneTargets(in, 1))
	if diff := cmp.Diff([]string{"snap-a"}, got); diff != "" {
		t.Errorf("tie-break mismatch (-want +got):\n%s", diff)
	}
}
