// Copyright © 2018 One Concern

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv(EnvConfig, "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultLogLevel, cfg.Logging.Level)
	assert.Equal(t, DefaultLogFormat, cfg.Logging.Format)
	assert.Equal(t, DefaultMaxConcurrentTransactions, cfg.Session.MaxConcurrentTransactions)
	assert.Equal(t, DefaultMaxSizeBeforeCommit, cfg.Session.MaxSizeBeforeCommit)
	assert.Equal(t, StorageLocalFS, cfg.Storage.Type)
	assert.Equal(t, DefaultLocalPath, cfg.Storage.Localfs["path"])
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, DefaultReportingPeriod, cfg.Metrics.ReportingPeriod)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
logging:
  level: DEBUG
  format: JSON
session:
  max_concurrent_transactions: 4
storage:
  type: s3
  s3:
    bucket: from-file
    region: us-west-2
metrics:
  enabled: true
  reporting_period: 30s
`), 0o600))

	t.Setenv(EnvConfig, file)
	t.Setenv("BRANCHWRITE_SESSION_MAX_SIZE_BEFORE_COMMIT", "10")
	t.Setenv("BRANCHWRITE_STORAGE_S3_BUCKET", "from-env")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 4, cfg.Session.MaxConcurrentTransactions)
	assert.Equal(t, 10, cfg.Session.MaxSizeBeforeCommit)
	assert.Equal(t, StorageS3, cfg.Storage.Type)
	assert.Equal(t, "from-env", cfg.Storage.S3["bucket"])
	assert.Equal(t, "us-west-2", cfg.Storage.S3["region"])
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Metrics.ReportingPeriod)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()
	for _, toPin := range []struct {
		name    string
		content string
	}{
		{name: "too many transactions", content: "session:\n  max_concurrent_transactions: 100\n"},
		{name: "unknown storage", content: "storage:\n  type: floppy\n"},
		{name: "unknown level", content: "logging:\n  level: chatty\n"},
		{name: "unknown log format", content: "logging:\n  format: xml\n"},
		{name: "s3 without bucket", content: "storage:\n  type: s3\n"},
		{name: "gcs without bucket", content: "storage:\n  type: gcs\n"},
		{name: "badger without path", content: "storage:\n  type: badger\n"},
		{name: "malformed", content: "session: [\n"},
	} {
		testcase := toPin
		t.Run(testcase.name, func(t *testing.T) {
			file := filepath.Join(dir, testcase.name+".yaml")
			require.NoError(t, os.WriteFile(file, []byte(testcase.content), 0o600))
			_, err := Load(file)
			require.Error(t, err)
		})
	}
}

func TestCreateStore(t *testing.T) {
	ctx := context.Background()
	l := zaptest.NewLogger(t)

	for _, toPin := range []StorageConfig{
		{Type: StorageMemory},
		{Type: StorageLocalFS, Localfs: map[string]any{"path": t.TempDir()}},
		{Type: StorageBadger, Badger: map[string]any{"in_memory": true}},
	} {
		cfg := toPin
		t.Run(cfg.Type, func(t *testing.T) {
			r, closer, err := CreateRepository(ctx, &cfg, l)
			require.NoError(t, err)
			defer func() { require.NoError(t, closer()) }()

			branches, err := r.Branches(ctx)
			require.NoError(t, err)
			assert.Empty(t, branches)
		})
	}

	_, _, err := CreateStore(ctx, &StorageConfig{Type: "floppy"}, l)
	require.Error(t, err)
	_, _, err = CreateStore(ctx, &StorageConfig{Type: StorageLocalFS}, l)
	require.Error(t, err)
	_, _, err = CreateStore(ctx, &StorageConfig{Type: StorageBadger}, l)
	require.Error(t, err)
}

func TestSessionOptions(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	require.NoError(t, Validate(cfg))
	assert.Len(t, cfg.SessionOptions(zaptest.NewLogger(t)), 2)

	l, err := cfg.Logger()
	require.NoError(t, err)
	assert.NotNil(t, l)
}
