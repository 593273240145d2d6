package logging

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	cfg := NewDefaultConfig()

	logger, err := NewLogger(cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, logger)

	assert.NotNil(t, logger.zap)
	assert.Equal(t, cfg, logger.config)
}

func TestNewLogger_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "xml"

	_, err := NewLogger(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestNewLogger_OTELOnlyWithoutProvider(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Output = OutputConfig{OTEL: true}

	_, err := NewLogger(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one output")
}

func TestNewLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocabctl.log")
	cfg := NewCLIConfig()
	cfg.Output = OutputConfig{File: path}

	logger, err := NewLogger(cfg, nil)
	require.NoError(t, err)

	logger.Info(context.Background(), "below warn")
	logger.Warn(context.Background(), "progress poll failed", zap.String("token", "abc"))
	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close(), "second close is a no-op")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "progress poll failed")
	assert.NotContains(t, string(data), "below warn")
	assert.NotContains(t, string(data), "abc", "file output is redacted")
}

func TestLogger_ContextAwareMethods(t *testing.T) {
	core, observed := observer.New(TraceLevel)
	logger := &Logger{zap: zap.New(core), config: NewDefaultConfig()}

	ctx := WithJobID(context.Background(), "job-1")

	tests := []struct {
		name    string
		logFunc func()
		level   zapcore.Level
		message string
	}{
		{"trace", func() { logger.Trace(ctx, "trace message") }, TraceLevel, "trace message"},
		{"debug", func() { logger.Debug(ctx, "debug message") }, zapcore.DebugLevel, "debug message"},
		{"info", func() { logger.Info(ctx, "info message") }, zapcore.InfoLevel, "info message"},
		{"warn", func() { logger.Warn(ctx, "warn message") }, zapcore.WarnLevel, "warn message"},
		{"error", func() { logger.Error(ctx, "error message") }, zapcore.ErrorLevel, "error message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			observed.TakeAll()
			tt.logFunc()

			logs := observed.All()
			require.Len(t, logs, 1)
			assert.Equal(t, tt.level, logs[0].Level)
			assert.Equal(t, tt.message, logs[0].Message)
			assert.Equal(t, "job-1", logs[0].ContextMap()["job.id"])
		})
	}
}

func TestLogger_TraceDisabled(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	logger := FromZap(zap.New(core))

	logger.Trace(context.Background(), "hidden")
	assert.Equal(t, 0, observed.Len())
	assert.False(t, logger.Enabled(TraceLevel))
	assert.True(t, logger.Enabled(zapcore.DebugLevel))
}

func TestLogger_WithAndNamed(t *testing.T) {
	tl := NewTestLogger()

	child := tl.With(zap.String("component", "poller")).Named("jobclient")
	child.Info(context.Background(), "tick")

	entries := tl.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "jobclient", entries[0].LoggerName)
	assert.Equal(t, "poller", entries[0].ContextMap()["component"])
}

func TestFromZap_Nil(t *testing.T) {
	logger := FromZap(nil)
	require.NotNil(t, logger)
	logger.Info(context.Background(), "discarded")
}

func TestLevelFromString(t *testing.T) {
	lvl, err := LevelFromString("trace")
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, lvl)

	lvl, err = LevelFromString("warn")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, lvl)

	_, err = LevelFromString("loud")
	assert.Error(t, err)
}
