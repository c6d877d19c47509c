package ec2

import (
	"fmt"
	"log/slog"

	"github.com/aravindh-murugesan/snapsentry-go/internal/cloud"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	awsec2 "github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/ec2/ec2iface"
)

// Client drives EBS snapshots through the EC2 API. The primary region holds
// the volumes and their direct snapshots; the optional replica region holds
// cross-region copies.
type Client struct {
	PrimaryRegion string
	ReplicaRegion string
	RetryConfig   cloud.RetryConfig

	primary ec2iface.EC2API
	replica ec2iface.EC2API
}

// Credentials holds optional static credentials. Empty values fall back to
// the SDK default chain (environment, shared config, instance role).
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

// NewSession builds an AWS session for region.
func NewSession(region string, creds Credentials) (*session.Session, error) {
	cfg := aws.NewConfig().WithRegion(region)
	if creds.AccessKeyID != "" {
		cfg = cfg.WithCredentials(credentials.NewStaticCredentials(creds.AccessKeyID, creds.SecretAccessKey, ""))
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating aws session for %s: %w", region, err)
	}
	return sess, nil
}

// NewClient initializes the EC2 service clients for the primary region and,
// when replicaRegion is set, the replica region.
func NewClient(sess *session.Session, primaryRegion, replicaRegion string, retry cloud.RetryConfig) *Client {
	slog.Debug("Initializing EC2 client", "region", primaryRegion, "replica_region", replicaRegion)

	c := &Client{
		PrimaryRegion: primaryRegion,
		ReplicaRegion: replicaRegion,
		RetryConfig:   retry,
		primary:       awsec2.New(sess, aws.NewConfig().WithRegion(primaryRegion)),
	}
	if replicaRegion != "" {
		c.replica = awsec2.New(sess, aws.NewConfig().WithRegion(replicaRegion))
	}
	return c
}

// newClientWithAPI wires pre-built service clients; used by tests.
func newClientWithAPI(primary, replica ec2iface.EC2API, primaryRegion, replicaRegion string) *Client {
	return &Client{
		PrimaryRegion: primaryRegion,
		ReplicaRegion: replicaRegion,
		RetryConfig:   cloud.RetryConfig{},
		primary:       primary,
		replica:       replica,
	}
}

// GetCloudProviderName returns the identifier for this provider.
func (c *Client) GetCloudProviderName() string {
	return "aws"
}

// Region returns the region backing location.
func (c *Client) Region(location cloud.Location) string {
	if location == cloud.LocationReplica {
		return c.ReplicaRegion
	}
	return c.PrimaryRegion
}

// ReplicationEnabled reports whether a replica region is configured.
func (c *Client) ReplicationEnabled() bool {
	return c.ReplicaRegion != "" && c.replica != nil
}

func (c *Client) api(location cloud.Location) (ec2iface.EC2API, error) {
	if location == cloud.LocationReplica {
		if !c.ReplicationEnabled() {
			return nil, fmt.Errorf("replica region is not configured")
		}
		return c.replica, nil
	}
	return c.primary, nil
}
