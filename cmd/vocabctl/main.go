// Package main implements vocabctl, the command-line client of the
// vocabulary optimizer service.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/vocabopt/internal/config"
	"github.com/fyrsmithlabs/vocabopt/internal/jobclient"
	"github.com/fyrsmithlabs/vocabopt/internal/logging"
)

// version information
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// app holds what every subcommand needs once flags are parsed.
type app struct {
	out    io.Writer
	errOut io.Writer

	serverURL  string
	configPath string
	logLevel   string
	logFile    string

	cfg    *config.Config
	logger *logging.Logger
	client *jobclient.Client
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "vocabctl",
		Short: "CLI for the vocabulary optimizer service",
		Long: `vocabctl submits sentence files to the vocabulary optimizer service,
follows job progress and downloads the produced CSV files.`,
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error { return a.setup() },
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Close()
			}
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVar(&a.serverURL, "server", "", "optimizer service URL (default from config, http://localhost:5000)")
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to config.yaml (default ~/.config/vocabopt/config.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.logFile, "log-file", "", "write logs to this file instead of stderr (default from config)")

	root.AddCommand(newRunCmd(a))
	root.AddCommand(newStatusCmd(a))
	root.AddCommand(newHealthCmd(a))
	root.AddCommand(newDownloadCmd(a))
	return root
}

// setup loads configuration and builds the logger and service client.
func (a *app) setup() error {
	cfg, err := config.LoadWithFile(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	a.cfg = cfg

	lc := logging.NewCLIConfig()
	if err := lc.ApplyLevel(a.logLevel, ""); err != nil {
		return err
	}
	if a.logFile == "" {
		a.logFile = cfg.Logging.File
	}
	if a.logFile != "" {
		lc.Output = logging.OutputConfig{File: a.logFile}
	}
	logger, err := logging.NewLogger(lc, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger

	if a.serverURL == "" {
		a.serverURL = cfg.Client.ServerURL
	}
	a.client = jobclient.NewClient(a.serverURL,
		jobclient.WithTimeout(cfg.Client.RequestTimeout.Duration()),
		jobclient.WithClientLogger(logger.Named("client")),
	)
	return nil
}
