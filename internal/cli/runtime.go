package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aravindh-murugesan/snapsentry-go/internal/cloud"
	"github.com/aravindh-murugesan/snapsentry-go/internal/cloud/ec2"
	"github.com/aravindh-murugesan/snapsentry-go/internal/cloud/openstack"
	"github.com/aravindh-murugesan/snapsentry-go/internal/config"
	"github.com/aravindh-murugesan/snapsentry-go/internal/datastore"
	"github.com/aravindh-murugesan/snapsentry-go/internal/datastore/dynamodb"
	"github.com/aravindh-murugesan/snapsentry-go/internal/metrics"
	"github.com/aravindh-murugesan/snapsentry-go/internal/notifications"
	"github.com/aravindh-murugesan/snapsentry-go/internal/policy"
	"github.com/aravindh-murugesan/snapsentry-go/internal/workflow"
	"github.com/aws/aws-sdk-go/aws/session"
	awsdynamodb "github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// runtime is everything a tick needs, assembled once from Config.
type runtime struct {
	logger    *slog.Logger
	provider  cloud.Provider
	store     *policy.Store
	datastore datastore.Datastore
	metrics   *metrics.Collector
	driver    *workflow.Driver
}

func newRuntime(ctx context.Context, cfg config.Config) (*runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}

	rt := &runtime{
		logger:  workflow.SetupLogger(cfg.LogLevel, cfg.Provider),
		metrics: metrics.New(),
	}
	slog.SetDefault(rt.logger)

	var sess *session.Session
	if cfg.Provider == config.ProviderAWS || isS3Location(cfg.PolicySource) {
		var err error
		if sess, err = newAWSSession(cfg); err != nil {
			return nil, err
		}
	}

	switch cfg.Provider {
	case config.ProviderAWS:
		rt.provider = ec2.NewClient(sess, cfg.Region, cfg.ReplicaRegion, cloud.DefaultRetryConfig)
		if cfg.AuditTable != "" {
			rt.datastore = dynamodb.New(awsdynamodb.New(sess), cfg.AuditTable)
		}
	case config.ProviderOpenStack:
		client := &openstack.Client{ProfileName: cfg.Cloud, RetryConfig: cloud.DefaultRetryConfig}
		if err := client.NewClient(ctx); err != nil {
			return nil, err
		}
		rt.provider = client
	}

	source, err := newPolicySource(cfg.PolicySource, sess)
	if err != nil {
		return nil, fmt.Errorf("policy source: %w", err)
	}
	rt.store = policy.NewStore(source)

	opts := []workflow.Option{
		workflow.WithLogger(rt.logger),
		workflow.WithMetrics(rt.metrics),
		workflow.WithConcurrency(cfg.Concurrency),
	}
	if rt.datastore != nil {
		opts = append(opts, workflow.WithDatastore(rt.datastore))
	}
	if cfg.WebhookURL != "" {
		opts = append(opts, workflow.WithNotifier(&notifications.Webhook{
			URL:      cfg.WebhookURL,
			Username: cfg.WebhookUsername,
			Password: cfg.WebhookPassword,
		}))
	}
	rt.driver = workflow.NewDriver(rt.provider, opts...)

	rt.logger.Info("Runtime configured",
		"config_file", cfg.ConfigPath,
		"region", rt.provider.Region(cloud.LocationPrimary),
		"replication", cfg.ReplicationEnabled(),
		"replica_region", cfg.ReplicaRegion,
		"policy_source", rt.store.SourceName(),
		"audit_table", cfg.AuditTable)

	return rt, nil
}

func newAWSSession(cfg config.Config) (*session.Session, error) {
	return ec2.NewSession(cfg.Region, ec2.Credentials{
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
	})
}

func isS3Location(location string) bool {
	return strings.HasPrefix(strings.TrimSpace(location), "s3://")
}

// newPolicySource builds the s3 client only when the location needs one.
func newPolicySource(location string, sess *session.Session) (policy.Source, error) {
	var s3Client s3iface.S3API
	if sess != nil {
		s3Client = s3.New(sess)
	}
	return policy.NewSource(location, s3Client)
}

// tick refreshes the policy set and reconciles every volume in it. A failed
// refresh is logged and the last known good set is used.
func (rt *runtime) tick(ctx context.Context, cfg config.Config) workflow.TickSummary {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	if err := rt.store.Refresh(ctx); err != nil {
		rt.logger.Error("Policy refresh failed; using last known policies",
			"source", rt.store.SourceName(),
			"error", err)
	}

	summary := rt.driver.RunTick(ctx, rt.store.Snapshot())

	if err := rt.metrics.Push(cfg.PushgatewayURL, "snapsentry"); err != nil {
		rt.logger.Warn("Metrics push failed", "error", err)
	}
	return summary
}
