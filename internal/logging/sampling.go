// internal/logging/sampling.go
package logging

import (
	"sort"

	"go.uber.org/zap/zapcore"
)

// newSampledCore wraps core with per-level sampling. Each level listed in
// cfg.Levels gets its own sampler; unlisted levels below Error fall back to
// the Info settings. Error and above are never sampled.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}

	cores := []zapcore.Core{
		&levelFilterCore{Core: core, minLevel: zapcore.ErrorLevel, maxLevel: zapcore.FatalLevel},
	}

	levels := make([]zapcore.Level, 0, len(cfg.Levels))
	for lvl := range cfg.Levels {
		if lvl < zapcore.ErrorLevel {
			levels = append(levels, lvl)
		}
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })

	fallback := cfg.Levels[zapcore.InfoLevel]
	covered := map[zapcore.Level]bool{}
	for _, lvl := range levels {
		s := cfg.Levels[lvl]
		cores = append(cores, zapcore.NewSamplerWithOptions(
			&levelFilterCore{Core: core, minLevel: lvl, maxLevel: lvl},
			cfg.Tick.Duration(), s.Initial, s.Thereafter,
		))
		covered[lvl] = true
	}

	for lvl := TraceLevel; lvl < zapcore.ErrorLevel; lvl++ {
		if covered[lvl] {
			continue
		}
		cores = append(cores, zapcore.NewSamplerWithOptions(
			&levelFilterCore{Core: core, minLevel: lvl, maxLevel: lvl},
			cfg.Tick.Duration(), fallback.Initial, fallback.Thereafter,
		))
	}

	return zapcore.NewTee(cores...)
}

// levelFilterCore passes only entries with minLevel <= level <= maxLevel.
type levelFilterCore struct {
	zapcore.Core
	minLevel zapcore.Level
	maxLevel zapcore.Level
}

func (c *levelFilterCore) Enabled(lvl zapcore.Level) bool {
	if lvl < c.minLevel || lvl > c.maxLevel {
		return false
	}
	return c.Core.Enabled(lvl)
}

func (c *levelFilterCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

// With creates a child core that keeps the level window.
func (c *levelFilterCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelFilterCore{
		Core:     c.Core.With(fields),
		minLevel: c.minLevel,
		maxLevel: c.maxLevel,
	}
}
