package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ProviderAWS       = "aws"
	ProviderOpenStack = "openstack"

	EnvPrefix = "SNAPSENTRY"

	defaultProvider     = ProviderAWS
	defaultTickInterval = 10 * time.Minute
	defaultConcurrency  = 4
	defaultLogLevel     = "info"
	defaultAPIAddress   = "0.0.0.0:8081"
	defaultUIAddress    = "0.0.0.0:8080"
)

var logLevels = []string{"debug", "info", "warn", "error"}

// Config is the runtime configuration assembled from flags, SNAPSENTRY_*
// environment variables and an optional YAML config file.
type Config struct {
	Provider           string        `mapstructure:"provider"`
	Cloud              string        `mapstructure:"cloud"`
	Region             string        `mapstructure:"region"`
	ReplicaRegion      string        `mapstructure:"replica-region"`
	AWSAccessKeyID     string        `mapstructure:"aws-access-key-id"`
	AWSSecretAccessKey string        `mapstructure:"aws-secret-access-key"`
	PolicySource       string        `mapstructure:"policy-source"`
	TickInterval       time.Duration `mapstructure:"tick-interval"`
	Concurrency        int           `mapstructure:"concurrency"`
	Timeout            time.Duration `mapstructure:"timeout"`
	LogLevel           string        `mapstructure:"log-level"`
	WebhookURL         string        `mapstructure:"webhook-url"`
	WebhookUsername    string        `mapstructure:"webhook-username"`
	WebhookPassword    string        `mapstructure:"webhook-password"`
	APIAddress         string        `mapstructure:"api-address"`
	UIAddress          string        `mapstructure:"ui-address"`
	PushgatewayURL     string        `mapstructure:"pushgateway-url"`
	AuditTable         string        `mapstructure:"audit-table"`
	ConfigPath         string        `mapstructure:"-"` // not from config file
}

// New returns a viper instance with the environment binding and defaults
// snapsentry expects. Callers bind their flags to it before Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("provider", defaultProvider)
	v.SetDefault("tick-interval", defaultTickInterval)
	v.SetDefault("concurrency", defaultConcurrency)
	v.SetDefault("timeout", time.Duration(0))
	v.SetDefault("log-level", defaultLogLevel)
	v.SetDefault("api-address", defaultAPIAddress)
	v.SetDefault("ui-address", defaultUIAddress)

	// Keys without a default must be known to viper for Unmarshal to see
	// their environment variables.
	for _, key := range []string{
		"cloud", "region", "replica-region", "aws-access-key-id", "aws-secret-access-key",
		"policy-source", "webhook-url", "webhook-username", "webhook-password",
		"pushgateway-url", "audit-table",
	} {
		v.SetDefault(key, "")
	}
	return v
}

// Load reads the optional config file at configPath and unmarshals v.
// A missing file is not an error.
func Load(v *viper.Viper, configPath string) (Config, error) {
	var cfg Config

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var configFileNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
				return cfg, fmt.Errorf("reading config file %s: %w", configPath, err)
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	cfg.ConfigPath = v.ConfigFileUsed()
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))

	return cfg, nil
}

// Validate rejects combinations the reconciler cannot run with.
func (c Config) Validate() error {
	var errs []error

	switch c.Provider {
	case ProviderAWS:
		if c.Region == "" {
			errs = append(errs, errors.New("region is required for the aws provider"))
		}
		if c.ReplicaRegion != "" && c.ReplicaRegion == c.Region {
			errs = append(errs, fmt.Errorf("replica-region must differ from region %q", c.Region))
		}
	case ProviderOpenStack:
		if c.Cloud == "" {
			errs = append(errs, errors.New("cloud is required for the openstack provider"))
		}
		if c.ReplicaRegion != "" {
			errs = append(errs, errors.New("replica-region is not supported by the openstack provider"))
		}
		if c.AuditTable != "" {
			errs = append(errs, errors.New("audit-table requires the aws provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown provider %q (want %s or %s)", c.Provider, ProviderAWS, ProviderOpenStack))
	}

	if c.PolicySource == "" {
		errs = append(errs, errors.New("policy-source is required"))
	}
	if c.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("tick-interval must be positive, got %s", c.TickInterval))
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %s", c.Timeout))
	}
	if !slices.Contains(logLevels, c.LogLevel) {
		errs = append(errs, fmt.Errorf("log-level must be one of %v, got %q", logLevels, c.LogLevel))
	}

	return errors.Join(errs...)
}

// ReplicationEnabled reports whether a replica region is configured.
func (c Config) ReplicationEnabled() bool {
	return c.ReplicaRegion != ""
}
