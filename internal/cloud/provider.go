package cloud

import "context"

// Provider is the block-storage capability the reconciler drives. Every call
// is a blocking request against the provider API; implementations map their
// failures onto ProviderError, ResourceLimitError and TaggingError.
type Provider interface {
	// GetCloudProviderName returns the identifier for this provider ("aws", "openstack").
	GetCloudProviderName() string

	// ListVolumeSnapshots returns the snapshots of volumeID held in location.
	ListVolumeSnapshots(ctx context.Context, volumeID string, location Location) ([]SnapshotRecord, error)

	// CreateSnapshot starts a snapshot of volumeID in the primary location.
	// The returned record is pending.
	CreateSnapshot(ctx context.Context, volumeID, name string) (SnapshotRecord, error)

	// CopySnapshot starts a copy of a completed primary snapshot of volumeID
	// into the target region. The returned record is pending. A refusal due to
	// the concurrent copy limit is reported as *ResourceLimitError.
	CopySnapshot(ctx context.Context, volumeID, sourceSnapshotID, sourceRegion, targetRegion, name string) (SnapshotRecord, error)

	// DeleteSnapshot removes a snapshot. Deleting an unknown ID succeeds.
	DeleteSnapshot(ctx context.Context, snapshotID string, location Location) error

	// TagResource applies tags to an existing snapshot.
	TagResource(ctx context.Context, resourceID string, location Location, tags map[string]string) error

	// Region returns the region name backing location.
	Region(location Location) string

	// ReplicationEnabled reports whether a replica location is configured.
	ReplicationEnabled() bool
}
