package openstack

import (
	"context"
	"errors"

	"github.com/aravindh-murugesan/snapsentry-go/internal/cloud"
	"github.com/gophercloud/gophercloud/v2/openstack/blockstorage/v3/snapshots"
)

var errNoReplica = errors.New("openstack provider has no replica location")

// ListVolumeSnapshots returns every snapshot Cinder holds for volumeID.
func (c *Client) ListVolumeSnapshots(ctx context.Context, volumeID string, location cloud.Location) ([]cloud.SnapshotRecord, error) {
	if location == cloud.LocationReplica {
		return nil, &cloud.ProviderError{Op: "ListVolumeSnapshots", Location: location, Err: errNoReplica}
	}

	var all []snapshots.Snapshot
	listOperation := func(innerCtx context.Context) error {
		page, err := snapshots.List(c.BlockStorageClient, snapshots.ListOpts{VolumeID: volumeID}).AllPages(innerCtx)
		if err != nil {
			return err
		}
		extracted, err := snapshots.ExtractSnapshots(page)
		if err != nil {
			return err
		}
		all = extracted
		return nil
	}

	if err := c.executeWithRetry(ctx, "ListVolumeSnapshots", listOperation); err != nil {
		return nil, &cloud.ProviderError{Op: "ListVolumeSnapshots", Location: location, Err: err}
	}

	records := make([]cloud.SnapshotRecord, 0, len(all))
	for _, snap := range all {
		// Some Cinder versions ignore the volume_id filter for non-admin users.
		if snap.VolumeID != volumeID {
			continue
		}
		records = append(records, toRecord(snap))
	}
	return records, nil
}

// CreateSnapshot triggers the creation of a new snapshot.
//
// Behavior:
//   - Force Creation: Uses the `Force: true` flag, allowing snapshots to be taken even if the
//     volume is currently attached ("in-use") by an instance.
//   - Asynchronous: returns once Cinder accepts the request. Readiness is
//     observed on later reconciliation passes through ListVolumeSnapshots.
func (c *Client) CreateSnapshot(ctx context.Context, volumeID, name string) (cloud.SnapshotRecord, error) {
	var created snapshots.Snapshot
	var requestID string

	createOperation := func(innerCtx context.Context) error {
		opts := snapshots.CreateOpts{
			VolumeID:    volumeID,
			Force:       true, // Allows snapshotting 'in-use' volumes
			Name:        name,
			Description: "automatic snapshot by snapsentry",
		}

		result := snapshots.Create(innerCtx, c.BlockStorageClient, opts)
		requestID = result.Header.Get("X-Openstack-Request-Id")

		snap, err := result.Extract()
		if err != nil {
			return err
		}
		created = *snap
		return nil
	}

	if err := c.executeWithRetry(ctx, "CreateVolumeSnapshot", createOperation); err != nil {
		return cloud.SnapshotRecord{}, &cloud.ProviderError{Op: "CreateSnapshot", Location: cloud.LocationPrimary, Err: err}
	}

	record := toRecord(created)
	record.VolumeID = volumeID
	record.Status = cloud.StatusPending
	if record.CreatedAt.IsZero() {
		record.CreatedAt = nowUTC()
	}
	logRequest("CreateVolumeSnapshot", record.ID, requestID)
	return record, nil
}

// CopySnapshot is not available on Cinder.
func (c *Client) CopySnapshot(ctx context.Context, volumeID, sourceSnapshotID, sourceRegion, targetRegion, name string) (cloud.SnapshotRecord, error) {
	return cloud.SnapshotRecord{}, &cloud.ProviderError{Op: "CopySnapshot", Location: cloud.LocationReplica, Err: cloud.ErrCopyUnsupported}
}

// DeleteSnapshot removes a snapshot from the backend storage.
//
// Behavior:
//   - Force Delete: This method explicitly triggers a "Force Delete" operation.
//     This ensures the snapshot is removed even if the storage backend indicates
//     it is busy or in a stuck state, preventing "zombie" snapshots from accumulating.
//   - Asynchronous: returns once the delete request is accepted.
//   - A snapshot that no longer exists counts as deleted.
func (c *Client) DeleteSnapshot(ctx context.Context, snapshotID string, location cloud.Location) error {
	if location == cloud.LocationReplica {
		return &cloud.ProviderError{Op: "DeleteSnapshot", Location: location, Err: errNoReplica}
	}

	var requestID string
	deleteOperation := func(innerCtx context.Context) error {
		result := snapshots.ForceDelete(innerCtx, c.BlockStorageClient, snapshotID)
		requestID = result.Header.Get("X-Openstack-Request-Id")
		return result.Err
	}

	if err := c.executeWithRetry(ctx, "DeleteVolumeSnapshot", deleteOperation); err != nil {
		if isNotFound(err) {
			return nil
		}
		return &cloud.ProviderError{Op: "DeleteSnapshot", Location: location, Err: err}
	}

	logRequest("DeleteVolumeSnapshot", snapshotID, requestID)
	return nil
}

// TagResource writes tags as snapshot metadata. Existing keys not in tags are kept.
func (c *Client) TagResource(ctx context.Context, resourceID string, location cloud.Location, tags map[string]string) error {
	if location == cloud.LocationReplica {
		return &cloud.TaggingError{ResourceID: resourceID, Err: errNoReplica}
	}

	tagOperation := func(innerCtx context.Context) error {
		opts := snapshots.UpdateMetadataOpts{Metadata: toMetadata(tags)}
		return snapshots.UpdateMetadata(innerCtx, c.BlockStorageClient, resourceID, opts).Err
	}

	if err := c.executeWithRetry(ctx, "UpdateSnapshotMetadata", tagOperation); err != nil {
		return &cloud.TaggingError{ResourceID: resourceID, Err: err}
	}
	return nil
}
