// Package telemetry sets up OpenTelemetry tracing and metrics export for
// vocaboptd.
//
// # Usage
//
//	tel, err := telemetry.New(ctx, telemetry.FromConfig(cfg.Telemetry))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(ctx)
//
//	tracker, err := jobs.NewTracker(outputs,
//	    jobs.WithTracer(tel.Tracer("github.com/fyrsmithlabs/vocabopt/internal/jobs")),
//	)
//
// New installs its providers as the otel globals, so instrumentation that
// calls otel.Meter (the HTTP metrics middleware) exports through them too.
//
// # Configuration
//
//	telemetry:
//	  enabled: true
//	  endpoint: "localhost:4317"
//	  protocol: "grpc"        # or "http/protobuf"
//	  insecure: true          # only allowed for local endpoints
//	  service_name: "vocaboptd"
//
// # Error Handling
//
// Exporter failures do not stop the service. The instance reports itself
// degraded and falls back to the global no-op providers.
package telemetry
