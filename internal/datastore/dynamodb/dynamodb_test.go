package dynamodb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aravindh-murugesan/snapsentry-go/internal/datastore"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	awsdynamodb "github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/google/go-cmp/cmp"
)

// fakeTable keeps items in memory keyed like the real table: a put with an
// existing hash and range key replaces that item. Queries answer newest first.
type fakeTable struct {
	dynamodbiface.DynamoDBAPI

	items   []map[string]*awsdynamodb.AttributeValue
	putErr  error
	queries []*awsdynamodb.QueryInput
}

func (f *fakeTable) PutItemWithContext(ctx aws.Context, in *awsdynamodb.PutItemInput, _ ...request.Option) (*awsdynamodb.PutItemOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	for i, it := range f.items {
		if aws.StringValue(it[primaryKey].S) == aws.StringValue(in.Item[primaryKey].S) &&
			aws.StringValue(it[rangeKey].S) == aws.StringValue(in.Item[rangeKey].S) {
			f.items[i] = in.Item
			return &awsdynamodb.PutItemOutput{}, nil
		}
	}
	f.items = append(f.items, in.Item)
	return &awsdynamodb.PutItemOutput{}, nil
}

func (f *fakeTable) QueryWithContext(ctx aws.Context, in *awsdynamodb.QueryInput, _ ...request.Option) (*awsdynamodb.QueryOutput, error) {
	f.queries = append(f.queries, in)
	resource := aws.StringValue(in.ExpressionAttributeValues[":snapshot_resource"].S)

	var newest map[string]*awsdynamodb.AttributeValue
	for _, it := range f.items {
		if aws.StringValue(it[primaryKey].S) != resource {
			continue
		}
		if newest == nil || aws.StringValue(it[rangeKey].S) > aws.StringValue(newest[rangeKey].S) {
			newest = it
		}
	}
	out := &awsdynamodb.QueryOutput{}
	if newest != nil {
		out.Items = []map[string]*awsdynamodb.AttributeValue{newest}
	}
	return out, nil
}

func TestStoreSnapshotAndGetLatest(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		snapshots []*datastore.SnapshotInfo
		resource  string
		want      *datastore.SnapshotInfo
		wantErr   error
	}{
		{
			name: "latest of several",
			snapshots: []*datastore.SnapshotInfo{
				{Resource: "vol-123", ID: "snap-a", CreatedAt: now.Add(-2 * time.Hour)},
				{
					Resource:  "vol-123",
					ID:        "snap-b",
					CreatedAt: now.Add(-30 * time.Minute),
					Labels:    datastore.SnapshotLabels{datastore.LabelLocation: "primary"},
				},
				{Resource: "vol-456", ID: "snap-c", CreatedAt: now},
			},
			resource: "vol-123",
			want: &datastore.SnapshotInfo{
				Resource:  "vol-123",
				ID:        "snap-b",
				CreatedAt: now.Add(-30 * time.Minute),
				Labels:    datastore.SnapshotLabels{datastore.LabelLocation: "primary"},
			},
		},
		{
			name:     "unknown resource",
			resource: "vol-missing",
			wantErr:  datastore.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := &fakeTable{}
			ddb := New(table, "snapshots")

			for _, snap := range tt.snapshots {
				if err := ddb.StoreSnapshotInfo(context.Background(), snap); err != nil {
					t.Fatalf("StoreSnapshotInfo: %v", err)
				}
			}

			got, err := ddb.GetLatestSnapshotInfo(context.Background(), datastore.SnapshotResource(tt.resource))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("GetLatestSnapshotInfo err = %v, want %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("GetLatestSnapshotInfo mismatch (-want +got):\n%s", diff)
			}

			q := table.queries[0]
			if aws.BoolValue(q.ScanIndexForward) || aws.Int64Value(q.Limit) != 1 {
				t.Errorf("query should be newest-first with limit 1, got %v", q)
			}
		})
	}
}

func TestStoreSnapshotInfo_PutError(t *testing.T) {
	ddb := New(&fakeTable{putErr: errors.New("throttled")}, "snapshots")

	err := ddb.StoreSnapshotInfo(context.Background(), &datastore.SnapshotInfo{Resource: "vol-1", ID: "snap-1"})
	if err == nil {
		t.Fatal("expected put error")
	}
}

func TestStoreSnapshotInfo_SameInstantKeepsBoth(t *testing.T) {
	createdAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	table := &fakeTable{}
	ddb := New(table, "snapshots")

	infos := []*datastore.SnapshotInfo{
		{Resource: "vol-1", ID: "snap-new", CreatedAt: createdAt},
		{Resource: "vol-1", ID: "snap-copy", CreatedAt: createdAt.Add(400 * time.Millisecond)},
		{Resource: "vol-1", ID: "snap-twin", CreatedAt: createdAt.Add(400 * time.Millisecond)},
	}
	for _, info := range infos {
		if err := ddb.StoreSnapshotInfo(context.Background(), info); err != nil {
			t.Fatalf("StoreSnapshotInfo: %v", err)
		}
	}

	if len(table.items) != len(infos) {
		t.Fatalf("table holds %d items, want %d", len(table.items), len(infos))
	}

	got, err := ddb.GetLatestSnapshotInfo(context.Background(), "vol-1")
	if err != nil {
		t.Fatalf("GetLatestSnapshotInfo: %v", err)
	}
	if got.CreatedAt != createdAt.Add(400*time.Millisecond) {
		t.Errorf("latest CreatedAt = %s, want millisecond precision kept", got.CreatedAt)
	}
	if got.ID != "snap-copy" && got.ID != "snap-twin" {
		t.Errorf("latest = %s, want one of the newest records", got.ID)
	}
}
