package workflow

import (
	"context"
	"errors"

	"github.com/aravindh-murugesan/snapsentry-go/internal/cloud"
)

// Inventory reads snapshot state from the provider. It never caches: every
// call is a fresh provider read.
type Inventory struct {
	provider cloud.Provider
}

func NewInventory(provider cloud.Provider) *Inventory {
	return &Inventory{provider: provider}
}

// List returns the snapshots of volumeID in location, oldest first. Records
// created at the same instant are ordered by ID.
func (i *Inventory) List(ctx context.Context, volumeID string, location cloud.Location) ([]cloud.SnapshotRecord, error) {
	records, err := i.provider.ListVolumeSnapshots(ctx, volumeID, location)
	if err != nil {
		var providerErr *cloud.ProviderError
		if !errors.As(err, &providerErr) {
			err = &cloud.ProviderError{Op: "ListVolumeSnapshots", Location: location, Err: err}
		}
		return nil, err
	}

	sorted := make([]cloud.SnapshotRecord, len(records))
	copy(sorted, records)
	cloud.SortRecords(sorted)
	return sorted, nil
}

// newest returns the most recently created record.
func newest(records []cloud.SnapshotRecord) (cloud.SnapshotRecord, bool) {
	var latest cloud.SnapshotRecord
	found := false
	for _, r := range records {
		if !found || r.NewerThan(latest) {
			latest = r
			found = true
		}
	}
	return latest, found
}

// newestCompleted returns the most recently created completed record.
func newestCompleted(records []cloud.SnapshotRecord) (cloud.SnapshotRecord, bool) {
	var latest cloud.SnapshotRecord
	found := false
	for _, r := range records {
		if !r.Completed() {
			continue
		}
		if !found || r.NewerThan(latest) {
			latest = r
			found = true
		}
	}
	return latest, found
}
