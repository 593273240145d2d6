// internal/logging/otel.go
package logging

import (
	"fmt"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newCore creates a core writing to stdout, stderr, a file and/or OTEL.
// The returned close func releases the log file, if any.
func newCore(cfg *Config, otelProvider log.LoggerProvider) (zapcore.Core, func(), error) {
	cores := make([]zapcore.Core, 0, 4)
	closeFile := func() {}

	if cfg.Output.Stdout || cfg.Output.Stderr || cfg.Output.File != "" {
		encoder, err := NewRedactingEncoder(newEncoder(cfg.Format), cfg.Redaction)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create redacting encoder: %w", err)
		}
		if cfg.Output.Stdout {
			cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), cfg.Level))
		}
		if cfg.Output.Stderr {
			cores = append(cores, zapcore.NewCore(encoder.Clone(), zapcore.AddSync(os.Stderr), cfg.Level))
		}
		if cfg.Output.File != "" {
			ws, closer, err := zap.Open(cfg.Output.File)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to open log file: %w", err)
			}
			closeFile = closer
			cores = append(cores, zapcore.NewCore(encoder.Clone(), ws, cfg.Level))
		}
	}

	if cfg.Output.OTEL && otelProvider != nil {
		cores = append(cores, otelzap.NewCore("github.com/fyrsmithlabs/vocabopt",
			otelzap.WithLoggerProvider(otelProvider),
		))
	}

	if len(cores) == 0 {
		closeFile()
		return nil, nil, fmt.Errorf("at least one output must be enabled and available")
	}

	core := cores[0]
	if len(cores) > 1 {
		core = zapcore.NewTee(cores...)
	}

	return newSampledCore(core, cfg.Sampling), closeFile, nil
}
