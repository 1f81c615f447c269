// Copyright © 2018 One Concern

package dlogger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestGetLogger(t *testing.T) {
	for _, level := range []string{LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError} {
		l, err := GetLogger(level)
		require.NoError(t, err, level)
		require.NotNil(t, l)
	}

	l, err := GetLogger(LogLevelNone)
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.ErrorLevel))

	l, err = GetLogger(LogLevelWarn)
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))

	_, err = GetLogger("chatty")
	require.Error(t, err)

	assert.Panics(t, func() { _ = MustGetLogger("chatty") })
}

func TestLoggerOptions(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.log")
	l, err := GetLogger(LogLevelInfo, Console(), Output(out))
	require.NoError(t, err)
	l.Info("console message", zap.String("key", "value"))
	l.Debug("filtered")
	_ = l.Sync()

	content, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(content), "console message")
	assert.Contains(t, string(content), "value")
	assert.NotContains(t, string(content), "filtered")
	assert.NotContains(t, string(content), `"msg"`)

	out = filepath.Join(t.TempDir(), "out.json")
	l, err = GetLogger(LogLevelDebug, Output(out))
	require.NoError(t, err)
	l.Debug("json message")
	_ = l.Sync()

	content, err = os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"msg":"json message"`)
}
