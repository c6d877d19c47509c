package dynamodb

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aravindh-murugesan/snapsentry-go/internal/datastore"
	"github.com/aws/aws-sdk-go/aws"
	awsdynamodb "github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
)

const (
	primaryKey = "snapshot_resource"
	rangeKey   = "snapshot_key"
)

// DynamoDB represents a datastore that uses dynamodb under the hood.
// The table is keyed by snapshot_resource (hash, S) and snapshot_key
// (range, S), see datastore.SnapshotInfo.Key.
type DynamoDB struct {
	table  string
	client dynamodbiface.DynamoDBAPI

	logger *slog.Logger
}

type item struct {
	Resource  string            `dynamodbav:"snapshot_resource"`
	Key       string            `dynamodbav:"snapshot_key"`
	CreatedAt int64             `dynamodbav:"created_at"` // unix milliseconds
	ID        string            `dynamodbav:"snap_id"`
	Labels    map[string]string `dynamodbav:"labels"`
}

// New creates a new DynamoDB-based datastore
func New(client dynamodbiface.DynamoDBAPI, table string) *DynamoDB {
	return &DynamoDB{
		table:  table,
		client: client,
		logger: slog.Default().With("component", "datastore", "datastore", "dynamodb"),
	}
}

// StoreSnapshotInfo stores the given snapshot info in the datastore
func (d *DynamoDB) StoreSnapshotInfo(ctx context.Context, info *datastore.SnapshotInfo) error {
	record := &item{
		Resource:  string(info.Resource),
		ID:        string(info.ID),
		Key:       info.Key(),
		CreatedAt: info.CreatedAt.UnixMilli(),
		Labels:    (map[string]string)(info.Labels),
	}

	logger := d.logger.With("resource", string(info.Resource), "snapshot_id", string(info.ID))

	av, err := dynamodbattribute.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("marshal snapshot info: %w", err)
	}

	logger.Debug("Putting snapshot info into dynamodb table", "table", d.table)
	_, err = d.client.PutItemWithContext(ctx, &awsdynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("put snapshot info: %w", err)
	}
	logger.Debug("Snapshot info stored")
	return nil
}

// GetLatestSnapshotInfo returns the most recent snapshot info for resource.
func (d *DynamoDB) GetLatestSnapshotInfo(ctx context.Context, resource datastore.SnapshotResource) (*datastore.SnapshotInfo, error) {
	out, err := d.client.QueryWithContext(ctx, &awsdynamodb.QueryInput{
		TableName:              aws.String(d.table),
		KeyConditionExpression: aws.String(primaryKey + " = :snapshot_resource"),
		ExpressionAttributeValues: map[string]*awsdynamodb.AttributeValue{
			":snapshot_resource": {
				S: aws.String(string(resource)),
			},
		},
		// newest first on the snapshot_key range key
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int64(1),
	})
	if err != nil {
		return nil, fmt.Errorf("query snapshot info: %w", err)
	}

	var items []*item
	if err := dynamodbattribute.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot info: %w", err)
	}

	if len(items) == 0 {
		return nil, datastore.ErrNotFound
	}

	latest := items[0]
	return &datastore.SnapshotInfo{
		Resource:  datastore.SnapshotResource(latest.Resource),
		ID:        datastore.SnapshotID(latest.ID),
		CreatedAt: time.UnixMilli(latest.CreatedAt).UTC(),
		Labels:    datastore.SnapshotLabels(latest.Labels),
	}, nil
}
