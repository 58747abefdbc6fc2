// config is the package containing configuration for cococi, shared
// by its commands. Values come from flags, the environment and an
// optional YAML file, in that order of precedence.
package config

import (
	"fmt"
	"time"
)

const (
	ConfigName = "cococi"
	ConfigType = "yaml"
	EnvPrefix  = "COCOCI"
)

// EnvVars maps config keys to the environment variables CI sets for
// them. Other keys are read from COCOCI_<KEY>.
var EnvVars = map[string]string{
	"ossrhUsername": "OSSRH_USERNAME",
	"ossrhPassword": "OSSRH_PASSWORD",
	"bundle":        "ZIP_FILE_PATH",
	"esEndpoint":    "ES_ENDPOINT",
	"esUsername":    "ES_USERNAME",
	"esPassword":    "ES_PASSWORD",
}

type Config struct {
	LogFormat      string `mapstructure:"logFormat"`
	PushgatewayURL string `mapstructure:"pushgatewayUrl"`

	// Central publishing
	OSSRHUsername        string        `mapstructure:"ossrhUsername"`
	OSSRHPassword        string        `mapstructure:"ossrhPassword"`
	CentralURL           string        `mapstructure:"centralUrl"`
	Bundle               string        `mapstructure:"bundle"`
	PollInterval         time.Duration `mapstructure:"pollInterval"`
	Timeout              time.Duration `mapstructure:"timeout"`
	MaxConsecutiveErrors int           `mapstructure:"maxConsecutiveErrors"`
	RequestTimeout       time.Duration `mapstructure:"requestTimeout"`

	// Search cluster and snapshots
	ESEndpoint     string        `mapstructure:"esEndpoint"`
	ESUsername     string        `mapstructure:"esUsername"`
	ESPassword     string        `mapstructure:"esPassword"`
	ESInsecure     bool          `mapstructure:"esInsecure"`
	SnapshotDir    string        `mapstructure:"snapshotDir"`
	IndexPattern   string        `mapstructure:"indexPattern"`
	CleanupPattern string        `mapstructure:"cleanupPattern"`
	IncludeIndex   string        `mapstructure:"includeIndex"`
	ScrollSize     int           `mapstructure:"scrollSize"`
	BatchSize      int           `mapstructure:"batchSize"`
	BulkRPS        float64       `mapstructure:"bulkRps"`
	BulkBurst      int           `mapstructure:"bulkBurst"`
	HealthAttempts int           `mapstructure:"healthAttempts"`
	HealthInterval time.Duration `mapstructure:"healthInterval"`

	// Integration tests
	Root      string `mapstructure:"root"`
	Loadgen   string `mapstructure:"loadgen"`
	Filter    string `mapstructure:"filter"`
	Report    string `mapstructure:"report"`
	ServerLog string `mapstructure:"serverLog"`
}

func (c Config) IsValid() error {
	switch c.LogFormat {
	case "fmt", "json":
	default:
		return fmt.Errorf("log format must be one of fmt, json; got %q", c.LogFormat)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive; got %s", c.PollInterval)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive; got %s", c.Timeout)
	}
	if c.MaxConsecutiveErrors < 1 {
		return fmt.Errorf("max consecutive errors must be at least 1; got %d", c.MaxConsecutiveErrors)
	}
	if c.ScrollSize < 1 || c.BatchSize < 1 {
		return fmt.Errorf("scroll and batch sizes must be at least 1")
	}
	return nil
}
