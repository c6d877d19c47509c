package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aravindh-murugesan/snapsentry-go/internal/cloud"
	"github.com/aravindh-murugesan/snapsentry-go/internal/datastore"
	"github.com/aravindh-murugesan/snapsentry-go/internal/metrics"
	"github.com/aravindh-murugesan/snapsentry-go/internal/notifications"
	"github.com/aravindh-murugesan/snapsentry-go/internal/policy"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of volumes reconciled in parallel per tick.
const DefaultConcurrency = 4

// Decision is what one reconciliation pass decided and did for a volume.
// It is recomputed from fresh inventory on every pass and never persisted.
type Decision struct {
	ShouldCreateSnapshot bool
	SnapshotToReplicate  *cloud.SnapshotRecord
	PrimaryToDelete      []cloud.SnapshotRecord
	ReplicaToDelete      []cloud.SnapshotRecord

	Created       *cloud.SnapshotRecord
	Copied        *cloud.SnapshotRecord
	CopyDeferred  bool
	CopyErr       error
	TaggingErrors []error

	Deleted        int
	DeleteFailures int
}

// Notifier is alerted when a volume's pass fails.
type Notifier interface {
	Notify(ctx context.Context, failure notifications.PassFailure) error
}

// TickSummary reports the outcome of one reconciliation tick.
type TickSummary struct {
	RunID     string
	Volumes   int
	Succeeded int
	Failed    int
	Invalid   int
	// Errors holds the failure of every volume that did not succeed.
	Errors map[string]error
}

// Driver runs reconciliation passes: validate, read inventory, orchestrate,
// re-read inventory, prune.
type Driver struct {
	provider     cloud.Provider
	inventory    *Inventory
	orchestrator *Orchestrator

	clock       clockwork.Clock
	logger      *slog.Logger
	datastore   datastore.Datastore
	metrics     *metrics.Collector
	notifier    Notifier
	concurrency int
}

// Option configures a Driver.
type Option func(*Driver)

func WithClock(clock clockwork.Clock) Option {
	return func(d *Driver) { d.clock = clock }
}

func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) { d.logger = logger }
}

// WithDatastore records created and copied snapshots in an audit store.
func WithDatastore(ds datastore.Datastore) Option {
	return func(d *Driver) { d.datastore = ds }
}

func WithMetrics(c *metrics.Collector) Option {
	return func(d *Driver) { d.metrics = c }
}

func WithNotifier(n Notifier) Option {
	return func(d *Driver) { d.notifier = n }
}

// WithConcurrency bounds the number of volumes processed in parallel.
// Values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(d *Driver) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

func NewDriver(provider cloud.Provider, opts ...Option) *Driver {
	d := &Driver{
		provider:    provider,
		clock:       clockwork.NewRealClock(),
		logger:      slog.Default(),
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.inventory = NewInventory(provider)
	d.orchestrator = NewOrchestrator(provider, d.clock)
	return d
}

// Reconcile runs one pass for p.
func (d *Driver) Reconcile(ctx context.Context, p policy.Policy) (Decision, error) {
	return d.reconcile(ctx, d.logger.With("volume_id", p.VolumeID), newRunID(), p)
}

func (d *Driver) reconcile(ctx context.Context, logger *slog.Logger, runID string, p policy.Policy) (Decision, error) {
	var decision Decision

	// 1. Validate before any provider call.
	if err := p.Validate(); err != nil {
		return decision, err
	}

	// 2. Observe.
	primary, err := d.inventory.List(ctx, p.VolumeID, cloud.LocationPrimary)
	if err != nil {
		return decision, fmt.Errorf("reading primary inventory: %w", err)
	}
	var replica []cloud.SnapshotRecord
	if d.provider.ReplicationEnabled() {
		replica, err = d.inventory.List(ctx, p.VolumeID, cloud.LocationReplica)
		if err != nil {
			return decision, fmt.Errorf("reading replica inventory: %w", err)
		}
	}
	logger.Debug("Inventory loaded", "primary_count", len(primary), "replica_count", len(replica))

	// 3. Create and replicate.
	if err := d.orchestrator.Run(ctx, logger, p, primary, replica, &decision); err != nil {
		return decision, err
	}
	d.record(ctx, logger, runID, &decision)

	// 4. Prune against fresh inventory so this pass's own create is counted.
	primary, err = d.inventory.List(ctx, p.VolumeID, cloud.LocationPrimary)
	if err != nil {
		return decision, fmt.Errorf("reading primary inventory for pruning: %w", err)
	}
	decision.PrimaryToDelete = PruneTargets(primary, p.MaxSnapshots)

	if d.provider.ReplicationEnabled() {
		replica, err = d.inventory.List(ctx, p.VolumeID, cloud.LocationReplica)
		if err != nil {
			return decision, fmt.Errorf("reading replica inventory for pruning: %w", err)
		}
		decision.ReplicaToDelete = PruneTargets(replica, p.MaxSnapshots)
	}

	d.deleteAll(ctx, logger, cloud.LocationPrimary, decision.PrimaryToDelete, &decision)
	d.deleteAll(ctx, logger, cloud.LocationReplica, decision.ReplicaToDelete, &decision)

	return decision, nil
}

// deleteAll issues one delete per target. Deletes are independent: a failure
// is logged and counted and the remaining targets are still attempted.
func (d *Driver) deleteAll(ctx context.Context, logger *slog.Logger, location cloud.Location, targets []cloud.SnapshotRecord, decision *Decision) {
	for _, snap := range targets {
		snapLog := logger.With("snapshot_id", snap.ID, "location", location, "created_at", snap.CreatedAt)

		if err := d.provider.DeleteSnapshot(ctx, snap.ID, location); err != nil {
			snapLog.Error("Snapshot deletion failed; will retry next tick", "error", err)
			decision.DeleteFailures++
			d.metrics.DeleteFailed(string(location))
			continue
		}
		snapLog.Info("Snapshot deleted by retention")
		decision.Deleted++
		d.metrics.SnapshotDeleted(string(location))
	}
}

// record publishes created and copied snapshots to metrics and the audit store.
func (d *Driver) record(ctx context.Context, logger *slog.Logger, runID string, decision *Decision) {
	if decision.Created != nil {
		d.metrics.SnapshotCreated(d.provider.GetCloudProviderName())
		d.store(ctx, logger, runID, *decision.Created)
	}
	switch {
	case decision.Copied != nil:
		d.metrics.CopyAttempted(metrics.CopyStarted)
		d.store(ctx, logger, runID, *decision.Copied)
	case decision.CopyDeferred:
		d.metrics.CopyAttempted(metrics.CopyDeferred)
	case decision.CopyErr != nil:
		d.metrics.CopyAttempted(metrics.CopyFailed)
	}
	for range decision.TaggingErrors {
		d.metrics.TaggingFailed()
	}
}

func (d *Driver) store(ctx context.Context, logger *slog.Logger, runID string, snap cloud.SnapshotRecord) {
	if d.datastore == nil {
		return
	}
	labels := datastore.SnapshotLabels{
		datastore.LabelLocation: string(snap.Location),
		datastore.LabelRegion:   d.provider.Region(snap.Location),
		datastore.LabelRunID:    runID,
	}
	if snap.SourceSnapshotID != "" {
		labels[datastore.LabelSource] = snap.SourceSnapshotID
	}

	err := d.datastore.StoreSnapshotInfo(ctx, &datastore.SnapshotInfo{
		Resource:  datastore.SnapshotResource(snap.VolumeID),
		ID:        datastore.SnapshotID(snap.ID),
		CreatedAt: snap.CreatedAt,
		Labels:    labels,
	})
	if err != nil {
		logger.Warn("Audit record not stored", "snapshot_id", snap.ID, "error", err)
	}
}

// RunTick reconciles every volume in set with bounded concurrency. Entries
// that failed to decode are reported as invalid without any provider call.
// Errors never escape a volume: the summary carries them instead.
func (d *Driver) RunTick(ctx context.Context, set policy.Set) TickSummary {
	runID := newRunID()
	logger := d.logger.With("snapsentry_id", runID)

	summary := TickSummary{
		RunID:   runID,
		Volumes: set.Len(),
		Errors:  make(map[string]error),
	}
	logger.Info("Reconciliation tick started", "volume_count", summary.Volumes)

	var mu sync.Mutex
	report := func(volumeID string, err error) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case err == nil:
			summary.Succeeded++
			d.metrics.PassCompleted(metrics.ResultSuccess)
		case policy.IsConfigError(err):
			summary.Invalid++
			summary.Errors[volumeID] = err
			d.metrics.PassCompleted(metrics.ResultInvalid)
		default:
			summary.Failed++
			summary.Errors[volumeID] = err
			d.metrics.PassCompleted(metrics.ResultFailed)
		}
	}

	for volumeID, err := range set.Rejected {
		logger.Error("Volume policy rejected", "volume_id", volumeID, "error", err)
		report(volumeID, err)
	}

	var g errgroup.Group
	g.SetLimit(d.concurrency)

	for _, volumeID := range set.VolumeIDs() {
		p, ok := set.Policies[volumeID]
		if !ok {
			continue
		}
		g.Go(func() error {
			volLogger := logger.With("volume_id", volumeID)
			if ctx.Err() != nil {
				volLogger.Warn("Tick cancelled before volume was processed")
				report(volumeID, ctx.Err())
				return nil
			}

			decision, err := d.reconcile(ctx, volLogger, runID, p)
			if err != nil {
				volLogger.Error("Reconciliation pass failed", "error_kind", errorKind(err), "error", err)
				d.notify(ctx, volLogger, runID, volumeID, err)
			} else {
				volLogger.Debug("Reconciliation pass completed",
					"created", decision.Created != nil,
					"copied", decision.Copied != nil,
					"deleted", decision.Deleted,
					"delete_failures", decision.DeleteFailures)
			}
			report(volumeID, err)
			return nil
		})
	}
	_ = g.Wait()

	d.metrics.TickCompleted(summary.Volumes)
	logger.Info("Reconciliation tick completed",
		"volumes", summary.Volumes,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"invalid", summary.Invalid)
	return summary
}

func (d *Driver) notify(ctx context.Context, logger *slog.Logger, runID, volumeID string, err error) {
	if d.notifier == nil || policy.IsConfigError(err) {
		return
	}
	failure := notifications.PassFailure{
		RunID:      runID,
		Provider:   d.provider.GetCloudProviderName(),
		Region:     d.provider.Region(cloud.LocationPrimary),
		VolumeID:   volumeID,
		ErrorKind:  errorKind(err),
		Message:    err.Error(),
		OccurredAt: d.clock.Now().UTC(),
	}
	if notifyErr := d.notifier.Notify(ctx, failure); notifyErr != nil {
		logger.Warn("Failure notification not delivered", "error", notifyErr)
	}
}

func newRunID() string {
	return fmt.Sprintf("req-%s", uuid.New().String())
}
