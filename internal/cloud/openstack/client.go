package openstack

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aravindh-murugesan/snapsentry-go/internal/cloud"
	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack"
	"github.com/gophercloud/utils/v2/openstack/clientconfig"
)

// Client manages the connection to Cinder for one clouds.yaml profile.
// It wraps the gophercloud block storage client with retry logic.
type Client struct {
	// ProfileName corresponds to the entry in clouds.yaml
	ProfileName string
	// RetryConfig defines the behavior for transient error handling
	RetryConfig cloud.RetryConfig

	BlockStorageClient *gophercloud.ServiceClient

	region string
}

// executeWithRetry is a helper to run any operation using the client's retry configuration.
func (c *Client) executeWithRetry(ctx context.Context, opName string, operation func(ctx context.Context) error) error {
	return cloud.ExecuteAction(ctx, c.RetryConfig, opName, isRetryable, operation)
}

// GetCloudProviderName returns the identifier for this provider.
func (c *Client) GetCloudProviderName() string {
	return "openstack"
}

// Region returns the region of the block storage endpoint. Cinder has no
// replica location, so the replica always reports an empty region.
func (c *Client) Region(location cloud.Location) string {
	if location == cloud.LocationReplica {
		return ""
	}
	return c.region
}

// ReplicationEnabled is always false: Cinder cannot copy snapshots between regions.
func (c *Client) ReplicationEnabled() bool {
	return false
}

// NewClient initializes the OpenStack provider and the Block Storage (Cinder) client.
// It attempts to authenticate using the configured ProfileName with retry logic.
func (c *Client) NewClient(ctx context.Context) error {
	slog.Debug("Initializing OpenStack client", "profile", c.ProfileName)

	var provider *gophercloud.ProviderClient

	// authenticateOperation encapsulates the authentication logic to allow
	// the retry helper to re-run it in case of transient network issues.
	authenticateOperation := func(ctx context.Context) error {
		opts := &clientconfig.ClientOpts{
			Cloud: c.ProfileName,
		}

		p, err := clientconfig.AuthenticatedClient(ctx, opts)
		if err != nil {
			return err
		}

		provider = p
		return nil
	}

	// 1. Establish Connection & Authentication
	err := c.executeWithRetry(ctx, "OpenStack Authentication", authenticateOperation)
	if err != nil {
		return fmt.Errorf("authentication failed for profile '%s': %w", c.ProfileName, err)
	}

	// Parse the cloud config yaml file
	cloudConfig, err := clientconfig.GetCloudFromYAML(&clientconfig.ClientOpts{Cloud: c.ProfileName})
	if err != nil {
		return fmt.Errorf("failed to parse cloud config: %w", err)
	}

	// Get Endpoint type
	var availability gophercloud.Availability
	switch cloudConfig.EndpointType {
	case "internal":
		availability = gophercloud.AvailabilityInternal
	case "admin":
		availability = gophercloud.AvailabilityAdmin
	default:
		availability = gophercloud.AvailabilityPublic
	}

	// 2. Initialize Block Storage (Cinder) Client
	blockStorage, err := openstack.NewBlockStorageV3(provider, gophercloud.EndpointOpts{
		Availability: availability,
		Region:       cloudConfig.RegionName,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize Block Storage v3 client: %w", err)
	}

	c.BlockStorageClient = blockStorage
	c.region = cloudConfig.RegionName

	return nil
}
