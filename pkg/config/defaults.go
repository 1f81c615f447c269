// Copyright © 2018 One Concern

package config

import (
	"strings"
	"time"

	"github.com/oneconcern/branchwrite/pkg/dlogger"
	"github.com/oneconcern/branchwrite/pkg/session"
	"github.com/oneconcern/branchwrite/pkg/storage/localfs"
)

// Defaults
const (
	DefaultLogLevel                  = dlogger.LogLevelInfo
	DefaultLogFormat                 = dlogger.FormatConsole
	DefaultReportingPeriod           = 10 * time.Second
	DefaultMaxConcurrentTransactions = session.DefaultMaxConcurrentTransactions
	DefaultMaxSizeBeforeCommit       = session.DefaultMaxSizeBeforeCommit
	DefaultStorageType               = StorageLocalFS
)

// DefaultLocalPath is the default root of the localfs store
var DefaultLocalPath = localfs.DefaultRoot

// Storage types
const (
	StorageLocalFS = "localfs"
	StorageMemory  = "memory"
	StorageBadger  = "badger"
	StorageS3      = "s3"
	StorageGCS     = "gcs"
)

// ApplyDefaults sets default values for unspecified fields, and normalizes values
func ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
	cfg.Logging.Format = strings.ToLower(cfg.Logging.Format)

	if cfg.Session.MaxConcurrentTransactions == 0 {
		cfg.Session.MaxConcurrentTransactions = DefaultMaxConcurrentTransactions
	}
	if cfg.Session.MaxSizeBeforeCommit == 0 {
		cfg.Session.MaxSizeBeforeCommit = DefaultMaxSizeBeforeCommit
	}

	if cfg.Storage.Type == "" {
		cfg.Storage.Type = DefaultStorageType
	}
	cfg.Storage.Type = strings.ToLower(cfg.Storage.Type)
	if cfg.Storage.Localfs == nil {
		cfg.Storage.Localfs = make(map[string]any)
	}
	if path, _ := cfg.Storage.Localfs["path"].(string); path == "" {
		cfg.Storage.Localfs["path"] = DefaultLocalPath
	}
	if cfg.Storage.Badger == nil {
		cfg.Storage.Badger = make(map[string]any)
	}
	if cfg.Storage.S3 == nil {
		cfg.Storage.S3 = make(map[string]any)
	}
	if cfg.Storage.GCS == nil {
		cfg.Storage.GCS = make(map[string]any)
	}
}
