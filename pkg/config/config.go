// SPDX-License-Identifier: Apache-2.0

// Package config defines the loader's configuration shape and loads it
// from a YAML file with sigs.k8s.io/yaml. The file's path comes from the
// --config flag (or LOADER_CONFIG_FILE), bound through spf13/viper in
// cmd/flags; the fields read from the file have no env-var overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"sigs.k8s.io/yaml"

	"github.com/drphrozen/snowplow-rdb-loader/pkg/loaderrors"
)

// validRegions is a fixed whitelist of recognized AWS regions, a
// tighter, domain-specific replacement for a full regions SDK
// dependency.
var validRegions = map[string]bool{
	"us-east-1": true, "us-east-2": true, "us-west-1": true, "us-west-2": true,
	"eu-west-1": true, "eu-west-2": true, "eu-central-1": true,
	"ap-northeast-1": true, "ap-southeast-1": true, "ap-southeast-2": true,
}

// Storage is the dialect-specific connection block.
type Storage struct {
	Type     string `json:"type"` // "redshift" | "snowflake" | "databricks"
	Host     string `json:"host"`
	Database string `json:"database"`
	Schema   string `json:"schema"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`

	// Redshift-only.
	UseTransitTable     bool `json:"useTransitTable,omitempty"`
	AddLoadTstampColumn bool `json:"addLoadTstampColumn,omitempty"`

	// Snowflake-only.
	Account   string `json:"account,omitempty"`
	Warehouse string `json:"warehouse,omitempty"`
	Role      string `json:"role,omitempty"`

	// Databricks-only.
	HTTPPath string `json:"httpPath,omitempty"`
	Token    string `json:"token,omitempty"`
	Catalog  string `json:"catalog,omitempty"`
}

// NoopWindow is one entry in schedules.noOperation.
type NoopWindow struct {
	Name     string        `json:"name"`
	When     string        `json:"when"`
	Duration time.Duration `json:"duration"`
}

// Schedules groups the loader's periodic side-activities.
type Schedules struct {
	NoOperation []NoopWindow `json:"noOperation,omitempty"`
}

// FoldersMonitoring configures the folder-reconciliation cycle (C8).
type FoldersMonitoring struct {
	Period         time.Duration `json:"period"`
	Lookback       time.Duration `json:"lookback,omitempty"`
	Staging        string        `json:"staging,omitempty"`
	ShredderOutput string        `json:"shredderOutput"`
}

// Monitoring configures the outbound reporting sinks; the concrete
// transports (tracker/Sentry/StatsD) are out of scope,
// this is only the dial-in configuration shape the CLI wiring reads.
type Monitoring struct {
	Snowplow *struct {
		Collector string `json:"collector"`
		AppID     string `json:"appId"`
	} `json:"snowplow,omitempty"`
	Sentry *struct {
		DSN string `json:"dsn"`
	} `json:"sentry,omitempty"`
	Metrics *struct {
		StatsD *struct {
			Host   string `json:"host"`
			Port   int    `json:"port"`
			Prefix string `json:"prefix,omitempty"`
		} `json:"statsd,omitempty"`
		Stdout bool `json:"stdout,omitempty"`
	} `json:"metrics,omitempty"`
	Folders *FoldersMonitoring `json:"folders,omitempty"`
}

// RetryQueue configures the failed-message redelivery side channel.
type RetryQueue struct {
	Period      time.Duration `json:"period"`
	Size        int           `json:"size"`
	Interval    time.Duration `json:"interval"`
	MaxAttempts int           `json:"maxAttempts"`
}

// Retries configures the bounded retry controller (C4).
type Retries struct {
	Strategy        string        `json:"strategy"` // "jitter" | "fibonacci" | "constant"
	Attempts        int           `json:"attempts,omitempty"`
	Backoff         time.Duration `json:"backoff"`
	MaxBackoff      time.Duration `json:"maxBackoff,omitempty"`
	CumulativeBound time.Duration `json:"cumulativeBound,omitempty"`
}

// ReadyCheck configures the warm-up poll before MigrationBuild.
type ReadyCheck struct {
	Attempts int           `json:"attempts"`
	MaxDelay time.Duration `json:"maxDelay,omitempty"`
	Backoff  time.Duration `json:"backoff"`
}

// Timeouts holds per-operation deadlines. The values are kept on Config
// only; no call in this module is bounded by them.
type Timeouts struct {
	Loading       time.Duration `json:"loading"`
	NonLoading    time.Duration `json:"nonLoading"`
	SQSVisibility time.Duration `json:"sqsVisibility"`
	ReadyCheck    time.Duration `json:"readyCheck,omitempty"`
}

// FeatureFlags is the escape hatch for optional behaviors.
type FeatureFlags struct {
	AddLoadTstampColumn bool `json:"addLoadTstampColumn,omitempty"`
}

// Config is the top-level loader configuration.
type Config struct {
	Region       string       `json:"region"`
	JsonPaths    string       `json:"jsonpaths,omitempty"`
	MessageQueue string       `json:"messageQueue"`
	Storage      Storage      `json:"storage"`
	Schedules    Schedules    `json:"schedules,omitempty"`
	Monitoring   Monitoring   `json:"monitoring,omitempty"`
	RetryQueue   *RetryQueue  `json:"retryQueue,omitempty"`
	Retries      Retries      `json:"retries"`
	ReadyCheck   ReadyCheck   `json:"readyCheck"`
	Timeouts     Timeouts     `json:"timeouts"`
	FeatureFlags FeatureFlags `json:"featureFlags,omitempty"`
}

// Load reads and validates a YAML config file. A validation failure
// produces loaderrors.ConfigurationError (scenario S6), causing the CLI
// to exit with code 2 rather than 1.
func Load(path string) (*Config, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, loaderrors.ConfigurationError{Reason: fmt.Sprintf("reading %s: %s", path, err)}
	}

	var cfg Config
	if err := yaml.Unmarshal(body, &cfg); err != nil {
		return nil, loaderrors.ConfigurationError{Reason: fmt.Sprintf("parsing %s: %s", path, err)}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields the loader cannot safely start without.
func (c *Config) Validate() error {
	if c.Region == "" {
		return loaderrors.ConfigurationError{Reason: "region is required"}
	}
	if !validRegions[c.Region] {
		return loaderrors.ConfigurationError{Reason: fmt.Sprintf("unknown region %q", c.Region)}
	}
	if c.MessageQueue == "" {
		return loaderrors.ConfigurationError{Reason: "messageQueue is required"}
	}
	switch c.Storage.Type {
	case "redshift", "snowflake", "databricks":
	case "":
		return loaderrors.ConfigurationError{Reason: "storage.type is required"}
	default:
		return loaderrors.ConfigurationError{Reason: fmt.Sprintf("unknown storage.type %q", c.Storage.Type)}
	}
	switch c.Retries.Strategy {
	case "jitter", "fibonacci", "constant", "":
	default:
		return loaderrors.ConfigurationError{Reason: fmt.Sprintf("unknown retries.strategy %q", c.Retries.Strategy)}
	}
	return nil
}
