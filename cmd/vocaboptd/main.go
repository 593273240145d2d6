// Vocaboptd is the vocabulary sentence optimizer service.
//
// It accepts sentence-file uploads over HTTP, runs one optimization job at
// a time against a Google Sheets word list, and writes CSV results that
// clients can list and download. With sheets.credentials_file set, word
// lists are read through the Sheets API and every run is also published as
// a results spreadsheet.
//
// Configuration is loaded from ~/.config/vocabopt/config.yaml (or -config)
// and VOCABOPT_* environment variables. See internal/config for details.
//
// Usage:
//
//	# Start server with defaults
//	vocaboptd
//
//	# Configure via environment
//	VOCABOPT_SERVER_HTTP_PORT=8080 VOCABOPT_SERVER_OUTPUT_DIR=/var/lib/vocabopt vocaboptd
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vocabopt/internal/config"
	httpserver "github.com/fyrsmithlabs/vocabopt/internal/http"
	"github.com/fyrsmithlabs/vocabopt/internal/jobs"
	"github.com/fyrsmithlabs/vocabopt/internal/logging"
	"github.com/fyrsmithlabs/vocabopt/internal/optimizer"
	"github.com/fyrsmithlabs/vocabopt/internal/sheets"
	"github.com/fyrsmithlabs/vocabopt/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default ~/.config/vocabopt/config.yaml)")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  vocaboptd           Start the optimizer service\n")
			fmt.Fprintf(os.Stderr, "  vocaboptd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("vocaboptd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the service and blocks until ctx is cancelled or the listener
// fails. Shutdown stops the HTTP server first, then cancels a running job.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Close() // Best-effort sync on shutdown
	}()

	logger.Info(ctx, "starting vocaboptd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("output_dir", cfg.Server.OutputDir),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout.Duration()),
	)

	tel, err := telemetry.New(ctx, telemetry.FromConfig(cfg.Telemetry), telemetry.WithLogger(logger.Named("telemetry")))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.Warn(ctx, "telemetry shutdown failed", zap.Error(err))
		}
	}()

	outputs, err := sheets.NewOutputStore(cfg.Server.OutputDir)
	if err != nil {
		return err
	}

	oc := cfg.Optimizer
	opts := []jobs.Option{
		jobs.WithHTTPClient(&http.Client{Timeout: oc.WordListTimeout.Duration()}),
		jobs.WithWordListTimeout(oc.WordListTimeout.Duration()),
		jobs.WithOptimizerOptions(optimizer.Options{
			Workers:          oc.Workers,
			BeamWidth:        oc.BeamWidth,
			BeamDepth:        oc.BeamDepth,
			ProgressInterval: oc.ProgressInterval,
		}),
		jobs.WithLogger(logger.Named("jobs")),
		jobs.WithTracer(tel.Tracer("github.com/fyrsmithlabs/vocabopt/internal/jobs")),
		jobs.WithMetrics(jobs.DefaultMetrics()),
	}
	if path := cfg.Sheets.CredentialsFile; path != "" {
		g, err := sheets.NewGoogleClient(ctx, path)
		if err != nil {
			return fmt.Errorf("failed to initialize Google Sheets: %w", err)
		}
		opts = append(opts, jobs.WithGoogleSheets(g))
		logger.Info(ctx, "google sheets api enabled", zap.String("credentials_file", path))
	}
	tracker, err := jobs.NewTracker(outputs, opts...)
	if err != nil {
		return fmt.Errorf("failed to create job tracker: %w", err)
	}

	srv, err := httpserver.NewServer(tracker, outputs, logger.Named("http"), &httpserver.Config{
		Host:                cfg.Server.Host,
		Port:                cfg.Server.Port,
		UploadDir:           cfg.Server.UploadDir,
		MaxUploadMB:         cfg.Server.MaxUploadMB,
		AllowedExtensions:   cfg.Client.AllowedExtensions,
		DefaultMaxSentences: oc.DefaultMaxSentences,
		DefaultStrictness:   oc.DefaultStrictness,
		DefaultAlgorithm:    oc.DefaultAlgorithm,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	// Register metrics endpoint
	srv.Echo().GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	logger.Info(ctx, "server configured",
		zap.String("health_endpoint", fmt.Sprintf("http://%s:%d/health", cfg.Server.Host, cfg.Server.Port)),
		zap.String("metrics_endpoint", "/metrics"),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info(ctx, "shutdown requested")
	case serveErr = <-errCh:
		if errors.Is(serveErr, http.ErrServerClosed) {
			serveErr = nil
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn(ctx, "http shutdown failed", zap.Error(err))
	}
	if err := tracker.Close(shutdownCtx); err != nil {
		logger.Warn(ctx, "job did not stop before shutdown timeout", zap.Error(err))
	}

	logger.Info(ctx, "server shutdown complete")
	return serveErr
}

// initLogger builds the JSON service logger at the configured level.
func initLogger(cfg *config.Config) (*logging.Logger, error) {
	lc := logging.NewDefaultConfig()
	if err := lc.ApplyLevel(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return nil, err
	}
	lc.Output.File = cfg.Logging.File
	return logging.NewLogger(lc, nil)
}
