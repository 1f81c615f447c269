// Copyright © 2018 One Concern

package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
	"github.com/oneconcern/branchwrite/pkg/dlogger"
	"github.com/oneconcern/branchwrite/pkg/metrics"
	"github.com/oneconcern/branchwrite/pkg/metrics/exporters/logexporter"
	"github.com/oneconcern/branchwrite/pkg/repo/blobrepo"
	"github.com/oneconcern/branchwrite/pkg/session"
	"github.com/oneconcern/branchwrite/pkg/storage"
	"github.com/oneconcern/branchwrite/pkg/storage/badgerkv"
	"github.com/oneconcern/branchwrite/pkg/storage/gcs"
	"github.com/oneconcern/branchwrite/pkg/storage/localfs"
	"github.com/oneconcern/branchwrite/pkg/storage/sthree"
	"go.uber.org/zap"
)

// Closer releases resources held by a store
type Closer func() error

func noClose() error { return nil }

// Logger builds the logger configured by the logging section
func (c *Config) Logger() (*zap.Logger, error) {
	var opts []dlogger.Option
	if c.Logging.Format == dlogger.FormatConsole {
		opts = append(opts, dlogger.Console())
	}
	return dlogger.GetLogger(c.Logging.Level, opts...)
}

// InitMetrics sets up metrics collection. With metrics enabled, views are exported to the logger
// on Flush.
func (c *Config) InitMetrics(l *zap.Logger) {
	if !c.Metrics.Enabled {
		metrics.Init()
		return
	}
	metrics.Init(
		metrics.WithBasePath("branchwrite"),
		metrics.WithExporter(logexporter.NewExporter(l)),
		metrics.WithReportingPeriod(c.Metrics.ReportingPeriod),
	)
}

// InitGate sets the capacity of the default concurrency gate. It returns false if the gate
// was already in use with another capacity.
func (c *Config) InitGate() bool {
	return session.SetMaxConcurrentTransactions(c.Session.MaxConcurrentTransactions)
}

// SessionOptions for write sessions
func (c *Config) SessionOptions(l *zap.Logger) []session.Option {
	return []session.Option{
		session.MaxSizeBeforeCommit(c.Session.MaxSizeBeforeCommit),
		session.Logger(l),
	}
}

// CreateRepository builds the repository on top of the configured store
func CreateRepository(ctx context.Context, cfg *StorageConfig, l *zap.Logger) (*blobrepo.Repo, Closer, error) {
	store, closer, err := CreateStore(ctx, cfg, l)
	if err != nil {
		return nil, nil, err
	}
	opts := []blobrepo.Option{blobrepo.Logger(l)}
	if cfg.Type == StorageLocalFS {
		lockPath, err := localFSLockPath(cfg.Localfs)
		if err != nil {
			_ = closer()
			return nil, nil, err
		}
		opts = append(opts, blobrepo.HeadLock(lockPath, 0))
	}
	return blobrepo.New(store, opts...), closer, nil
}

// localFSLockPath is the lock file serializing commits of all processes sharing a local repository
func localFSLockPath(options map[string]any) (string, error) {
	path, _ := options["path"].(string)
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("localfs store: %w", err)
	}
	return filepath.Clean(abs) + ".lock", nil
}

// CreateStore builds the object store selected by the storage type, instrumented with
// logs, metrics and traces.
func CreateStore(ctx context.Context, cfg *StorageConfig, l *zap.Logger) (storage.Store, Closer, error) {
	var (
		store  storage.Store
		closer Closer = noClose
		err    error
	)
	switch cfg.Type {
	case StorageLocalFS:
		store, err = createLocalFSStore(cfg.Localfs)
	case StorageMemory:
		store = localfs.NewMemory()
	case StorageBadger:
		var kv *badgerkv.Store
		kv, err = createBadgerStore(cfg.Badger, l)
		if err == nil {
			store, closer = kv, kv.Close
		}
	case StorageS3:
		store, err = createS3Store(ctx, cfg.S3)
	case StorageGCS:
		store, err = createGCSStore(ctx, cfg.GCS)
	default:
		err = fmt.Errorf("unknown storage type: %q", cfg.Type)
	}
	if err != nil {
		return nil, nil, err
	}
	return storage.Instrument(store, l), closer, nil
}

func createLocalFSStore(options map[string]any) (storage.Store, error) {
	type localFSConfig struct {
		Path string `mapstructure:"path"`
	}
	var storeCfg localFSConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode localfs store config: %w", err)
	}
	if storeCfg.Path == "" {
		return nil, fmt.Errorf("localfs store: path is required")
	}
	return localfs.NewAt(storeCfg.Path), nil
}

func createBadgerStore(options map[string]any, l *zap.Logger) (*badgerkv.Store, error) {
	type badgerConfig struct {
		Path     string `mapstructure:"path"`
		InMemory bool   `mapstructure:"in_memory"`
	}
	var storeCfg badgerConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode badger store config: %w", err)
	}
	if storeCfg.Path == "" && !storeCfg.InMemory {
		return nil, fmt.Errorf("badger store: path is required")
	}
	return badgerkv.New(storeCfg.Path, badgerkv.InMemory(storeCfg.InMemory), badgerkv.Logger(l))
}

func createS3Store(ctx context.Context, options map[string]any) (storage.Store, error) {
	type s3Config struct {
		Bucket          string `mapstructure:"bucket"`
		Region          string `mapstructure:"region"`
		Endpoint        string `mapstructure:"endpoint"`
		Prefix          string `mapstructure:"prefix"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
	}
	var storeCfg s3Config
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode s3 store config: %w", err)
	}
	return sthree.New(ctx, storeCfg.Bucket,
		sthree.Region(storeCfg.Region),
		sthree.Endpoint(storeCfg.Endpoint),
		sthree.Prefix(storeCfg.Prefix),
		sthree.StaticCredentials(storeCfg.AccessKeyID, storeCfg.SecretAccessKey),
	)
}

func createGCSStore(ctx context.Context, options map[string]any) (storage.Store, error) {
	type gcsConfig struct {
		Bucket          string `mapstructure:"bucket"`
		Prefix          string `mapstructure:"prefix"`
		CredentialsFile string `mapstructure:"credentials_file"`
		Endpoint        string `mapstructure:"endpoint"`
	}
	var storeCfg gcsConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode gcs store config: %w", err)
	}
	return gcs.New(ctx, storeCfg.Bucket,
		gcs.Prefix(storeCfg.Prefix),
		gcs.CredentialsFile(storeCfg.CredentialsFile),
		gcs.Endpoint(storeCfg.Endpoint),
	)
}
