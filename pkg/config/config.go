// Copyright © 2018 One Concern

// Package config loads the settings of branchwrite from a configuration file,
// environment variables and defaults.
//
// Environment variables are prefixed with BRANCHWRITE_, with dots replaced by underscores,
// e.g. BRANCHWRITE_STORAGE_TYPE=memory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes all environment variables
	EnvPrefix = "BRANCHWRITE"

	// EnvConfig holds the path to a configuration file
	EnvConfig = EnvPrefix + "_CONFIG"

	configName = "branchwrite"
)

// Config of branchwrite
type Config struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Session SessionConfig `mapstructure:"session" yaml:"session"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig sets the log level
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"required,oneof=debug info warn error none"`
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=console json"`
}

// SessionConfig tunes write sessions
type SessionConfig struct {
	// MaxConcurrentTransactions bounds the number of transactions open at the same time in the process
	MaxConcurrentTransactions int `mapstructure:"max_concurrent_transactions" yaml:"max_concurrent_transactions" validate:"min=1,max=64"`

	// MaxSizeBeforeCommit is the size of a transaction which triggers an intermediate commit
	MaxSizeBeforeCommit int `mapstructure:"max_size_before_commit" yaml:"max_size_before_commit" validate:"min=1"`
}

// StorageConfig selects the object store holding the repository.
//
// Only the section matching Type is used.
type StorageConfig struct {
	Type    string         `mapstructure:"type" yaml:"type" validate:"required,oneof=localfs memory badger s3 gcs"`
	Localfs map[string]any `mapstructure:"localfs" yaml:"localfs,omitempty"`
	Badger  map[string]any `mapstructure:"badger" yaml:"badger,omitempty"`
	S3      map[string]any `mapstructure:"s3" yaml:"s3,omitempty"`
	GCS     map[string]any `mapstructure:"gcs" yaml:"gcs,omitempty"`
}

// MetricsConfig enables the export of metrics to the logs
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// ReportingPeriod of the periodic export, on top of the export when the command completes
	ReportingPeriod time.Duration `mapstructure:"reporting_period" yaml:"reporting_period" validate:"min=0"`
}

// Load the configuration from a file, the environment and defaults, in increasing order of precedence:
// defaults, then the configuration file, then the environment.
//
// When configPath is empty, the file is taken from BRANCHWRITE_CONFIG, or searched as branchwrite.yaml
// in the current directory, $HOME/.branchwrite and /etc/branchwrite. A missing file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// known keys, so that environment variables are picked up on Unmarshal
	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.format", DefaultLogFormat)
	v.SetDefault("session.max_concurrent_transactions", DefaultMaxConcurrentTransactions)
	v.SetDefault("session.max_size_before_commit", DefaultMaxSizeBeforeCommit)
	v.SetDefault("storage.type", DefaultStorageType)
	v.SetDefault("storage.localfs.path", DefaultLocalPath)
	v.SetDefault("storage.badger.path", "")
	v.SetDefault("storage.badger.in_memory", false)
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.region", "")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.prefix", "")
	v.SetDefault("storage.gcs.bucket", "")
	v.SetDefault("storage.gcs.prefix", "")
	v.SetDefault("storage.gcs.credentials_file", "")
	v.SetDefault("storage.gcs.endpoint", "")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.reporting_period", DefaultReportingPeriod)

	if configPath == "" {
		configPath = os.Getenv(EnvConfig)
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	for _, dir := range searchPath() {
		v.AddConfigPath(dir)
	}
}

func searchPath() []string {
	dirs := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, "."+configName))
	}
	return append(dirs, filepath.Join("/etc", configName))
}

func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}
