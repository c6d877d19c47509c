package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aravindh-murugesan/snapsentry-go/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// v carries flags, SNAPSENTRY_* env vars and the config file.
	v = config.New()

	configFile string
	cfg        config.Config
)

var rootCommand = &cobra.Command{
	Use:     "snapsentry-go",
	Aliases: []string{"snapsentry"},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 'version' and 'help' run without configuration
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		loaded, err := config.Load(v, configFile)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
	SilenceUsage: true,
	Short:        "SnapSentry: policy-based volume snapshot reconciler",
	Long: `SnapSentry keeps periodic snapshots of block storage volumes.
Each volume declares an interval (hourly, daily, weekly, monthly, yearly) and a
retention count. On every tick SnapSentry creates snapshots that are due, copies
the newest completed snapshot to a replica region when one is configured, and
deletes the oldest snapshots beyond retention.

Author: Aravindh Murugesan`,
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCommand.ExecuteContext(ctx)
}

func init() {
	rootCommand.AddGroup(&cobra.Group{ID: "snapsentry", Title: "Snapsentry"})

	flags := rootCommand.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Path to a YAML config file")

	// Global Persistent Flags with env vars support
	flags.String("provider", "aws", "Cloud provider (aws, openstack)")
	flags.String("cloud", "", "Name of the cloud profile as in clouds.yaml (openstack)")
	flags.String("region", "", "Primary region holding the volumes (aws)")
	flags.String("replica-region", "", "Region receiving snapshot copies; empty disables replication (aws)")
	flags.String("aws-access-key-id", "", "Static AWS access key; defaults to the SDK credential chain")
	flags.String("aws-secret-access-key", "", "Static AWS secret key")
	flags.String("policy-source", "", "Policy document: file path, s3://bucket/key or inline YAML/JSON")
	flags.Int("concurrency", 4, "Volumes reconciled in parallel per tick")
	flags.Duration("timeout", 0, "Timeout for one tick (0 = no timeout)")
	flags.String("log-level", "info", "Logging level (debug, info, warn, error)")
	flags.String("webhook-url", "", "Webhook URL for alerting")
	flags.String("webhook-username", "", "Webhook username for alerting")
	flags.String("webhook-password", "", "Webhook password for alerting")
	flags.String("pushgateway-url", "", "Prometheus pushgateway receiving metrics after each tick")
	flags.String("audit-table", "", "DynamoDB table recording created and copied snapshots (aws)")

	// Bind to env vars
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" {
			return
		}
		_ = v.BindPFlag(f.Name, f)
	})
}
