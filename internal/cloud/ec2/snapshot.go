package ec2

import (
	"context"
	"errors"
	"fmt"

	"github.com/aravindh-murugesan/snapsentry-go/internal/cloud"
	"github.com/aws/aws-sdk-go/aws"
	awsec2 "github.com/aws/aws-sdk-go/service/ec2"
)

const defaultDescription = "automatic snapshot by snapsentry"

// ListVolumeSnapshots pages through DescribeSnapshots for one volume.
//
// Primary snapshots are matched by their volume-id. Copies are matched by the
// provenance tag written at copy time, since EC2 does not keep the source
// volume on a copied snapshot.
func (c *Client) ListVolumeSnapshots(ctx context.Context, volumeID string, location cloud.Location) ([]cloud.SnapshotRecord, error) {
	api, err := c.api(location)
	if err != nil {
		return nil, &cloud.ProviderError{Op: "DescribeSnapshots", Location: location, Err: err}
	}

	filter := &awsec2.Filter{Name: aws.String("volume-id"), Values: []*string{aws.String(volumeID)}}
	if location == cloud.LocationReplica {
		filter = &awsec2.Filter{Name: aws.String("tag:" + cloud.TagVolumeID), Values: []*string{aws.String(volumeID)}}
	}

	var result []cloud.SnapshotRecord
	var token *string
	for {
		in := &awsec2.DescribeSnapshotsInput{
			OwnerIds: []*string{aws.String("self")},
			Filters:  []*awsec2.Filter{filter},
		}
		if token != nil {
			in.NextToken = token
		}

		var resp *awsec2.DescribeSnapshotsOutput
		err := c.executeWithRetry(ctx, "DescribeSnapshots", func(innerCtx context.Context) error {
			out, err := api.DescribeSnapshotsWithContext(innerCtx, in)
			resp = out
			return err
		})
		if err != nil {
			return nil, &cloud.ProviderError{Op: "DescribeSnapshots", Location: location, Err: err}
		}

		for _, snap := range resp.Snapshots {
			if snap.SnapshotId == nil {
				continue
			}
			result = append(result, toRecord(snap, volumeID, location))
		}

		if resp.NextToken == nil || aws.StringValue(resp.NextToken) == "" {
			break
		}
		token = resp.NextToken
	}

	return result, nil
}

// CreateSnapshot starts an EBS snapshot in the primary region. The call
// returns as soon as EC2 accepts the request; the snapshot is still pending.
func (c *Client) CreateSnapshot(ctx context.Context, volumeID, name string) (cloud.SnapshotRecord, error) {
	var created *awsec2.Snapshot

	err := c.executeStart(ctx, "CreateSnapshot", func(innerCtx context.Context) error {
		out, err := c.primary.CreateSnapshotWithContext(innerCtx, &awsec2.CreateSnapshotInput{
			VolumeId:    aws.String(volumeID),
			Description: aws.String(fmt.Sprintf("%s (%s)", defaultDescription, name)),
		})
		created = out
		return err
	})
	if err != nil {
		return cloud.SnapshotRecord{}, &cloud.ProviderError{Op: "CreateSnapshot", Location: cloud.LocationPrimary, Err: err}
	}
	if created == nil || created.SnapshotId == nil {
		return cloud.SnapshotRecord{}, &cloud.ProviderError{
			Op:       "CreateSnapshot",
			Location: cloud.LocationPrimary,
			Err:      errors.New("snapshot id is nil"),
		}
	}

	record := toRecord(created, volumeID, cloud.LocationPrimary)
	if record.CreatedAt.IsZero() {
		record.CreatedAt = nowUTC()
	}
	// The API may echo a later state, but a just-created snapshot is pending.
	record.Status = cloud.StatusPending
	return record, nil
}

// CopySnapshot copies a primary snapshot into the replica region. The
// provenance tag is applied atomically with the copy so the replica is
// always visible to ListVolumeSnapshots, even if later tagging fails.
func (c *Client) CopySnapshot(ctx context.Context, volumeID, sourceSnapshotID, sourceRegion, targetRegion, name string) (cloud.SnapshotRecord, error) {
	api, err := c.api(cloud.LocationReplica)
	if err != nil {
		return cloud.SnapshotRecord{}, &cloud.ProviderError{Op: "CopySnapshot", Location: cloud.LocationReplica, Err: err}
	}
	if targetRegion != c.ReplicaRegion {
		return cloud.SnapshotRecord{}, &cloud.ProviderError{
			Op:       "CopySnapshot",
			Location: cloud.LocationReplica,
			Err:      fmt.Errorf("target region %q is not the configured replica region %q", targetRegion, c.ReplicaRegion),
		}
	}

	var copyID string
	err = c.executeStart(ctx, "CopySnapshot", func(innerCtx context.Context) error {
		out, err := api.CopySnapshotWithContext(innerCtx, &awsec2.CopySnapshotInput{
			SourceRegion:     aws.String(sourceRegion),
			SourceSnapshotId: aws.String(sourceSnapshotID),
			Description:      aws.String(copyDescriptionPrefix + sourceSnapshotID),
			TagSpecifications: []*awsec2.TagSpecification{
				{
					ResourceType: aws.String(awsec2.ResourceTypeSnapshot),
					Tags: toTags(map[string]string{
						cloud.TagVolumeID:       volumeID,
						cloud.TagSnapshotSource: sourceSnapshotID,
					}),
				},
			},
		})
		if err != nil {
			return err
		}
		copyID = aws.StringValue(out.SnapshotId)
		return nil
	})
	if err != nil {
		if hasErrorCode(err, errCodeResourceLimit) {
			return cloud.SnapshotRecord{}, &cloud.ResourceLimitError{SourceSnapshotID: sourceSnapshotID, Err: err}
		}
		return cloud.SnapshotRecord{}, &cloud.ProviderError{Op: "CopySnapshot", Location: cloud.LocationReplica, Err: err}
	}
	if copyID == "" {
		return cloud.SnapshotRecord{}, &cloud.ProviderError{
			Op:       "CopySnapshot",
			Location: cloud.LocationReplica,
			Err:      errors.New("snapshot copy id is empty"),
		}
	}

	return cloud.SnapshotRecord{
		ID:               copyID,
		VolumeID:         volumeID,
		Location:         cloud.LocationReplica,
		CreatedAt:        nowUTC(),
		Status:           cloud.StatusPending,
		SourceSnapshotID: sourceSnapshotID,
	}, nil
}

// DeleteSnapshot deletes a snapshot. A snapshot that is already gone counts
// as deleted.
func (c *Client) DeleteSnapshot(ctx context.Context, snapshotID string, location cloud.Location) error {
	api, err := c.api(location)
	if err != nil {
		return &cloud.ProviderError{Op: "DeleteSnapshot", Location: location, Err: err}
	}

	err = c.executeWithRetry(ctx, "DeleteSnapshot", func(innerCtx context.Context) error {
		_, err := api.DeleteSnapshotWithContext(innerCtx, &awsec2.DeleteSnapshotInput{
			SnapshotId: aws.String(snapshotID),
		})
		return err
	})
	if err != nil {
		if hasErrorCode(err, errCodeSnapshotNotFound) {
			return nil
		}
		return &cloud.ProviderError{Op: "DeleteSnapshot", Location: location, Err: err}
	}
	return nil
}

// TagResource applies tags to a snapshot through CreateTags.
func (c *Client) TagResource(ctx context.Context, resourceID string, location cloud.Location, tags map[string]string) error {
	api, err := c.api(location)
	if err != nil {
		return &cloud.TaggingError{ResourceID: resourceID, Err: err}
	}

	err = c.executeWithRetry(ctx, "CreateTags", func(innerCtx context.Context) error {
		_, err := api.CreateTagsWithContext(innerCtx, &awsec2.CreateTagsInput{
			Resources: []*string{aws.String(resourceID)},
			Tags:      toTags(tags),
		})
		return err
	})
	if err != nil {
		return &cloud.TaggingError{ResourceID: resourceID, Err: err}
	}
	return nil
}
