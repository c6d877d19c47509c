package ec2

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/aravindh-murugesan/snapsentry-go/internal/cloud"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	awsec2 "github.com/aws/aws-sdk-go/service/ec2"
)

const (
	errCodeSnapshotNotFound = "InvalidSnapshot.NotFound"
	errCodeResourceLimit    = "ResourceLimitExceeded"

	copyDescriptionPrefix = "copy of "
)

// executeWithRetry runs operation with the client's retry configuration.
func (c *Client) executeWithRetry(ctx context.Context, opName string, operation func(ctx context.Context) error) error {
	return cloud.ExecuteAction(ctx, c.RetryConfig, opName, isRetryable, operation)
}

// executeStart runs a call that starts a new snapshot. CreateSnapshot and
// CopySnapshot accept no client token, so only throttling is retried: a
// throttled request was rejected before EC2 did any work. A timeout or a
// server error may hide an accepted request and fails the pass instead; the
// next tick re-reads the inventory and sees the snapshot if it exists.
func (c *Client) executeStart(ctx context.Context, opName string, operation func(ctx context.Context) error) error {
	return cloud.ExecuteAction(ctx, c.RetryConfig, opName, request.IsErrorThrottle, operation)
}

// isRetryable retries throttling and the SDK's own transient classes
// (5xx, connection resets). Client errors fail fast.
func isRetryable(err error) bool {
	return request.IsErrorThrottle(err) || request.IsErrorRetryable(err)
}

func hasErrorCode(err error, code string) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		return aerr.Code() == code
	}
	return false
}

// normalizeState maps EC2 snapshot states onto the provider-neutral status.
// "recoverable" and "recovering" belong to archived snapshots, which are
// not usable as copy sources.
func normalizeState(state string) cloud.Status {
	switch strings.ToLower(state) {
	case awsec2.SnapshotStateCompleted:
		return cloud.StatusCompleted
	case awsec2.SnapshotStateError:
		return cloud.StatusError
	default:
		return cloud.StatusPending
	}
}

func tagValue(tags []*awsec2.Tag, key string) string {
	for _, tag := range tags {
		if tag == nil || tag.Key == nil {
			continue
		}
		if *tag.Key == key {
			return aws.StringValue(tag.Value)
		}
	}
	return ""
}

// toRecord converts an EC2 snapshot. The volume ID of a copy is read from
// the provenance tag because EC2 reports a placeholder volume for copies.
func toRecord(snap *awsec2.Snapshot, volumeID string, location cloud.Location) cloud.SnapshotRecord {
	record := cloud.SnapshotRecord{
		ID:        aws.StringValue(snap.SnapshotId),
		VolumeID:  volumeID,
		Location:  location,
		CreatedAt: aws.TimeValue(snap.StartTime).UTC(),
		Status:    normalizeState(aws.StringValue(snap.State)),
	}

	if location == cloud.LocationReplica {
		record.SourceSnapshotID = tagValue(snap.Tags, cloud.TagSnapshotSource)
		if record.SourceSnapshotID == "" {
			description := aws.StringValue(snap.Description)
			if strings.HasPrefix(description, copyDescriptionPrefix) {
				record.SourceSnapshotID = strings.TrimPrefix(description, copyDescriptionPrefix)
			}
		}
	}
	return record
}

func toTags(tags map[string]string) []*awsec2.Tag {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]*awsec2.Tag, 0, len(keys))
	for _, k := range keys {
		out = append(out, &awsec2.Tag{Key: aws.String(k), Value: aws.String(tags[k])})
	}
	return out
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
