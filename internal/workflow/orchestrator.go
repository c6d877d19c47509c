package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aravindh-murugesan/snapsentry-go/internal/cloud"
	"github.com/aravindh-murugesan/snapsentry-go/internal/policy"
	"github.com/jonboulle/clockwork"
)

// Orchestrator decides and issues snapshot creation and cross-region
// replication for one volume.
type Orchestrator struct {
	provider cloud.Provider
	clock    clockwork.Clock
}

func NewOrchestrator(provider cloud.Provider, clock clockwork.Clock) *Orchestrator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Orchestrator{provider: provider, clock: clock}
}

// Run evaluates p against the observed inventories and issues at most one
// create and one copy call, recording what it did on d.
//
// Creation and replication are decided independently. A just-created
// snapshot is pending, so it is never the copy source in the same pass; the
// copy source is always the newest completed primary snapshot.
//
// Only a failed create is returned as an error. Copy and tagging failures
// are recorded on d and logged.
func (o *Orchestrator) Run(
	ctx context.Context,
	logger *slog.Logger,
	p policy.Policy,
	primary, replica []cloud.SnapshotRecord,
	d *Decision,
) error {
	now := o.clock.Now().UTC()

	// 1. Bootstrap: nothing to replicate until the first snapshot completes.
	latest, ok := newest(primary)
	if !ok {
		logger.Info("No snapshots found; creating the first one")
		d.ShouldCreateSnapshot = true
		return o.create(ctx, logger, p, d)
	}

	// 2. Creation cadence from the newest snapshot regardless of its status.
	age := policy.AgeSince(now, latest.CreatedAt)
	if policy.DueForSnapshot(p.Interval, age) {
		logger.Info("Snapshot is due",
			"latest_snapshot_id", latest.ID,
			"age", age.String(),
			"interval", p.Interval)
		d.ShouldCreateSnapshot = true
		if err := o.create(ctx, logger, p, d); err != nil {
			return err
		}
	} else {
		threshold, _ := policy.Threshold(p.Interval)
		logger.Debug("Snapshot not due",
			"latest_snapshot_id", latest.ID,
			"age", age.String(),
			"threshold", threshold.String())
	}

	// 3. Replication cadence from the replica inventory.
	if o.provider.ReplicationEnabled() {
		o.replicate(ctx, logger, p, primary, replica, now, d)
	}
	return nil
}

func (o *Orchestrator) create(ctx context.Context, logger *slog.Logger, p policy.Policy, d *Decision) error {
	created, err := o.provider.CreateSnapshot(ctx, p.VolumeID, p.SnapshotName())
	if err != nil {
		logger.Error("Snapshot creation failed", "error", err)
		return err
	}
	d.Created = &created
	logger.Info("Snapshot creation started", "snapshot_id", created.ID, "status", created.Status)

	o.tag(ctx, logger, created.ID, cloud.LocationPrimary, p.SnapshotTags(), d)
	return nil
}

func (o *Orchestrator) replicate(
	ctx context.Context,
	logger *slog.Logger,
	p policy.Policy,
	primary, replica []cloud.SnapshotRecord,
	now time.Time,
	d *Decision,
) {
	logger = logger.With("location", cloud.LocationReplica)

	replicaAge := policy.NoSnapshotAge
	latestReplica, hasReplica := newest(replica)
	if hasReplica {
		replicaAge = policy.AgeSince(now, latestReplica.CreatedAt)
	}
	if !policy.DueForSnapshot(p.Interval, replicaAge) {
		logger.Debug("Replication not due", "latest_replica_id", latestReplica.ID, "age", replicaAge.String())
		return
	}

	source, ok := newestCompleted(primary)
	if !ok {
		logger.Info("Replication due but no completed snapshot to copy yet")
		return
	}
	if hasReplica && latestReplica.SourceSnapshotID == source.ID {
		logger.Debug("Newest completed snapshot already replicated",
			"source_snapshot_id", source.ID,
			"replica_id", latestReplica.ID)
		return
	}

	d.SnapshotToReplicate = &source
	sourceRegion := o.provider.Region(cloud.LocationPrimary)
	targetRegion := o.provider.Region(cloud.LocationReplica)

	copied, err := o.provider.CopySnapshot(ctx, p.VolumeID, source.ID, sourceRegion, targetRegion, p.SnapshotName())
	if err != nil {
		if cloud.IsResourceLimit(err) {
			// No copy exists, so there is nothing to tag.
			logger.Info("Copy deferred by the concurrent copy limit; retrying next tick",
				"source_snapshot_id", source.ID,
				"error", err)
			d.CopyDeferred = true
			return
		}
		logger.Error("Snapshot copy failed; replication skipped for this pass",
			"source_snapshot_id", source.ID,
			"error", err)
		d.CopyErr = err
		return
	}

	d.Copied = &copied
	logger.Info("Snapshot copy started",
		"snapshot_id", copied.ID,
		"source_snapshot_id", source.ID,
		"source_region", sourceRegion,
		"target_region", targetRegion)

	o.tag(ctx, logger, copied.ID, cloud.LocationReplica, p.CopyTags(source.ID), d)
}

func (o *Orchestrator) tag(ctx context.Context, logger *slog.Logger, id string, location cloud.Location, tags map[string]string, d *Decision) {
	err := o.provider.TagResource(ctx, id, location, tags)
	if err == nil {
		return
	}

	var taggingErr *cloud.TaggingError
	if !errors.As(err, &taggingErr) {
		taggingErr = &cloud.TaggingError{ResourceID: id, Err: err}
	}
	logger.Warn("Tagging failed; snapshot kept", "snapshot_id", id, "error", taggingErr)
	d.TaggingErrors = append(d.TaggingErrors, taggingErr)
}
