package workflow

import "github.com/aravindh-murugesan/snapsentry-go/internal/cloud"

// PruneTargets returns the snapshots to delete so that only the newest keep
// remain. keep == 0 means unlimited retention and never prunes. The input is
// not modified.
func PruneTargets(snapshots []cloud.SnapshotRecord, keep int) []cloud.SnapshotRecord {
	if keep <= 0 || len(snapshots) <= keep {
		return nil
	}

	sorted := make([]cloud.SnapshotRecord, len(snapshots))
	copy(sorted, snapshots)
	cloud.SortRecords(sorted)

	return sorted[:len(sorted)-keep]
}
