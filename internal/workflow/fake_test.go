package workflow

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/aravindh-murugesan/snapsentry-go/internal/cloud"
	"github.com/jonboulle/clockwork"
)

// call is one provider invocation seen by fakeProvider.
type call struct {
	op       string
	volumeID string
	id       string
	location cloud.Location
}

// fakeProvider is an in-memory cloud.Provider. Created and copied snapshots
// appear in later listings as pending.
type fakeProvider struct {
	mu sync.Mutex

	clock       clockwork.Clock
	replication bool
	records     []cloud.SnapshotRecord

	listErr   map[string]error // by volume ID
	createErr error
	copyErr   error
	tagErr    error
	deleteErr map[string]error // by snapshot ID

	calls  []call
	tagged map[string]map[string]string
	nextID int
}

func newFakeProvider(clock clockwork.Clock, replication bool, records ...cloud.SnapshotRecord) *fakeProvider {
	return &fakeProvider{
		clock:       clock,
		replication: replication,
		records:     records,
		listErr:     map[string]error{},
		deleteErr:   map[string]error{},
		tagged:      map[string]map[string]string{},
	}
}

func (f *fakeProvider) GetCloudProviderName() string { return "fake" }

func (f *fakeProvider) Region(location cloud.Location) string {
	if location == cloud.LocationReplica {
		return "replica-1"
	}
	return "primary-1"
}

func (f *fakeProvider) ReplicationEnabled() bool { return f.replication }

func (f *fakeProvider) ListVolumeSnapshots(ctx context.Context, volumeID string, location cloud.Location) ([]cloud.SnapshotRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{op: "list", volumeID: volumeID, location: location})

	if err := f.listErr[volumeID]; err != nil {
		return nil, &cloud.ProviderError{Op: "list", Location: location, Err: err}
	}
	var out []cloud.SnapshotRecord
	// reverse order to exercise the inventory sort
	for i := len(f.records) - 1; i >= 0; i-- {
		r := f.records[i]
		if r.VolumeID == volumeID && r.Location == location {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeProvider) CreateSnapshot(ctx context.Context, volumeID, name string) (cloud.SnapshotRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{op: "create", volumeID: volumeID, location: cloud.LocationPrimary})

	if f.createErr != nil {
		return cloud.SnapshotRecord{}, &cloud.ProviderError{Op: "create", Location: cloud.LocationPrimary, Err: f.createErr}
	}
	rec := cloud.SnapshotRecord{
		ID:        f.newID("snap-new"),
		VolumeID:  volumeID,
		Location:  cloud.LocationPrimary,
		CreatedAt: f.clock.Now().UTC(),
		Status:    cloud.StatusPending,
	}
	f.records = append(f.records, rec)
	return rec, nil
}

func (f *fakeProvider) CopySnapshot(ctx context.Context, volumeID, sourceSnapshotID, sourceRegion, targetRegion, name string) (cloud.SnapshotRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{op: "copy", volumeID: volumeID, id: sourceSnapshotID, location: cloud.LocationReplica})

	if f.copyErr != nil {
		return cloud.SnapshotRecord{}, f.copyErr
	}
	rec := cloud.SnapshotRecord{
		ID:               f.newID("snap-copy"),
		VolumeID:         volumeID,
		Location:         cloud.LocationReplica,
		CreatedAt:        f.clock.Now().UTC(),
		Status:           cloud.StatusPending,
		SourceSnapshotID: sourceSnapshotID,
	}
	f.records = append(f.records, rec)
	return rec, nil
}

func (f *fakeProvider) DeleteSnapshot(ctx context.Context, snapshotID string, location cloud.Location) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := slices.IndexFunc(f.records, func(r cloud.SnapshotRecord) bool {
		return r.ID == snapshotID && r.Location == location
	})
	volumeID := ""
	if idx >= 0 {
		volumeID = f.records[idx].VolumeID
	}
	f.calls = append(f.calls, call{op: "delete", volumeID: volumeID, id: snapshotID, location: location})

	if err := f.deleteErr[snapshotID]; err != nil {
		return &cloud.ProviderError{Op: "delete", Location: location, Err: err}
	}
	if idx >= 0 {
		f.records = slices.Delete(f.records, idx, idx+1)
	}
	return nil
}

func (f *fakeProvider) TagResource(ctx context.Context, resourceID string, location cloud.Location, tags map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{op: "tag", id: resourceID, location: location})

	if f.tagErr != nil {
		return &cloud.TaggingError{ResourceID: resourceID, Err: f.tagErr}
	}
	f.tagged[resourceID] = tags
	return nil
}

func (f *fakeProvider) newID(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

// count returns how many calls of op were made, for volumeID when it is set.
func (f *fakeProvider) count(op, volumeID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.op == op && (volumeID == "" || c.volumeID == volumeID) {
			n++
		}
	}
	return n
}

func (f *fakeProvider) callsFor(volumeID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.volumeID == volumeID {
			n++
		}
	}
	return n
}

func (f *fakeProvider) deletedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, c := range f.calls {
		if c.op == "delete" {
			ids = append(ids, c.id)
		}
	}
	return ids
}

func snap(id, volumeID string, location cloud.Location, createdAt time.Time, status cloud.Status) cloud.SnapshotRecord {
	return cloud.SnapshotRecord{ID: id, VolumeID: volumeID, Location: location, CreatedAt: createdAt, Status: status}
}
