package datastore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// SnapshotResource describes which resource a snapshot belongs to. For block
// storage volumes this is the volume ID.
type SnapshotResource string

// SnapshotID is the provider ID of the snapshot.
type SnapshotID string

// SnapshotLabels represent arbitrary labels stored alongside a snapshot.
type SnapshotLabels map[string]string

// Label keys written by the reconciler.
const (
	LabelLocation = "location"
	LabelRegion   = "region"
	LabelSource   = "snapshot_source"
	LabelRunID    = "snapsentry_id"
)

// SnapshotInfo describes meta infos of a snapshot
type SnapshotInfo struct {
	Resource  SnapshotResource
	ID        SnapshotID
	CreatedAt time.Time
	Labels    SnapshotLabels
}

// Key orders the records of one resource by creation time, oldest first.
// It includes the snapshot ID so a create and a copy recorded in the same
// instant are kept as two records.
func (i *SnapshotInfo) Key() string {
	return fmt.Sprintf("%020d#%s", i.CreatedAt.UnixMilli(), i.ID)
}

// ErrNotFound is returned when no snapshot info exists for a resource.
var ErrNotFound = errors.New("no snapshot info found")

// Datastore is the audit trail of snapshots created or copied by snapsentry.
// It is never read by the reconciler; the provider stays the source of truth.
type Datastore interface {
	StoreSnapshotInfo(ctx context.Context, info *SnapshotInfo) error
	GetLatestSnapshotInfo(ctx context.Context, resource SnapshotResource) (*SnapshotInfo, error)
}
