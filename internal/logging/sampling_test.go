package logging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fyrsmithlabs/vocabopt/internal/config"
)

func sampledLogger(cfg SamplingConfig) (*Logger, *observer.ObservedLogs) {
	core, observed := observer.New(TraceLevel)
	return FromZap(zap.New(newSampledCore(core, cfg))), observed
}

func TestSampling_Disabled(t *testing.T) {
	logger, observed := sampledLogger(SamplingConfig{Enabled: false})
	for i := 0; i < 50; i++ {
		logger.Info(context.Background(), "repeat")
	}
	assert.Equal(t, 50, observed.Len())
}

func TestSampling_PerLevel(t *testing.T) {
	logger, observed := sampledLogger(SamplingConfig{
		Enabled: true,
		Tick:    config.Duration(time.Minute),
		Levels: map[zapcore.Level]LevelSamplingConfig{
			zapcore.InfoLevel: {Initial: 2, Thereafter: 0},
			zapcore.WarnLevel: {Initial: 1, Thereafter: 2},
		},
	})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		logger.Info(ctx, "info repeat")
		logger.Warn(ctx, "warn repeat")
		logger.Error(ctx, "error repeat")
	}

	assert.Equal(t, 2, observed.FilterLevelExact(zapcore.InfoLevel).Len())
	// first, then every second one after it: 1, 3, 5
	assert.Equal(t, 3, observed.FilterLevelExact(zapcore.WarnLevel).Len())
	assert.Equal(t, 5, observed.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestSampling_UnlistedLevelUsesInfo(t *testing.T) {
	logger, observed := sampledLogger(SamplingConfig{
		Enabled: true,
		Tick:    config.Duration(time.Minute),
		Levels: map[zapcore.Level]LevelSamplingConfig{
			zapcore.InfoLevel: {Initial: 3, Thereafter: 0},
		},
	})

	for i := 0; i < 10; i++ {
		logger.Debug(context.Background(), "debug repeat")
	}
	assert.Equal(t, 3, observed.Len())
}

func TestLevelFilterCore_With(t *testing.T) {
	core, observed := observer.New(TraceLevel)
	filtered := (&levelFilterCore{Core: core, minLevel: zapcore.WarnLevel, maxLevel: zapcore.WarnLevel}).
		With([]zapcore.Field{zap.String("k", "v")})

	logger := zap.New(filtered)
	logger.Info("dropped")
	logger.Warn("kept")

	entries := observed.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "kept", entries[0].Message)
		assert.Equal(t, "v", entries[0].ContextMap()["k"])
	}
}
