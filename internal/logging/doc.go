// Package logging provides structured logging for vocaboptd and vocabctl.
//
// Logger wraps Zap with a Trace level below Debug, stdout/stderr output plus
// an optional OpenTelemetry core, context field injection and level-aware
// sampling. Errors are never sampled.
//
// Create a logger from config:
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg, nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
// Log with context:
//
//	ctx = logging.WithJobID(ctx, jobID)
//	logger.Info(ctx, "optimization started", zap.String("algorithm", algo))
//
// Every entry then carries job.id, and trace_id/span_id when the context
// holds a valid span.
//
// Interactive commands use NewCLIConfig so log lines go to stderr and never
// interleave with rendered progress on stdout.
//
// Field names such as "token" and "authorization" and values matching the
// configured patterns are replaced by the encoder. RedactedString is
// available for values that should only be logged by length.
//
// In tests, NewTestLogger records every entry:
//
//	tl := logging.NewTestLogger()
//	tl.Warn(ctx, "progress poll failed")
//	tl.AssertLogged(t, zapcore.WarnLevel, "progress poll failed")
package logging
