package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/vocabopt/internal/jobclient"
	"github.com/fyrsmithlabs/vocabopt/internal/monitor"
)

func newStatusCmd(a *app) *cobra.Command {
	var maxSentences int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the progress of the current job",
		Long: `Fetch one progress snapshot from the optimizer service and print it.

Examples:
  # Check the running job
  vocabctl status

  # Compare a finished job with a 400 sentence target
  vocabctl status --max-sentences 400`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := a.client.Progress(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to fetch progress from %s: %w", a.serverURL, err)
			}

			if snap.Stage == "" && !snap.Complete {
				fmt.Fprintln(a.out, "no job has run yet")
				return nil
			}

			view := jobclient.NewProgressView(snap, a.cfg.Client.DefaultTargetWords)
			fmt.Fprintln(a.out, monitor.FormatProgress(view))

			switch {
			case !snap.Complete:
				fmt.Fprintln(a.out, "state: running")
			case snap.Error != "":
				fmt.Fprintln(a.out, "failed: "+snap.Error)
			case snap.Results != nil:
				limit := maxSentences
				if limit <= 0 {
					limit = a.cfg.Optimizer.DefaultMaxSentences
				}
				for _, line := range monitor.FormatSummary(jobclient.Summarize(limit, *snap.Results)) {
					fmt.Fprintln(a.out, line)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&maxSentences, "max-sentences", 0, "sentence target to compare results with (default from config)")
	return cmd
}

func newHealthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check optimizer service health",
		Long: `Check the health status of the optimizer service.

Examples:
  # Check health
  vocabctl health

  # Check health on a different server
  vocabctl health --server http://localhost:8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			health, err := a.client.Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to connect to %s: %w", a.serverURL, err)
			}
			fmt.Fprintf(a.out, "Server Status: %s\n", health.Status)
			fmt.Fprintf(a.out, "Server URL: %s\n", a.client.BaseURL())

			api, err := a.client.Test(cmd.Context())
			if err != nil {
				return fmt.Errorf("health ok but API test failed: %w", err)
			}
			fmt.Fprintf(a.out, "API: %s\n", api.Message)
			if len(api.Features) > 0 {
				fmt.Fprintf(a.out, "Features: %s\n", strings.Join(api.Features, ", "))
			}
			return nil
		},
	}
}

func newDownloadCmd(a *app) *cobra.Command {
	var (
		dir   string
		count int
	)

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download the most recent output files",
		Long: `Download the most recent CSV outputs of the optimizer service.

Examples:
  # Download the four newest files into the current directory
  vocabctl download

  # Download two files into ./results
  vocabctl download --dir results --count 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count <= 0 {
				count = a.cfg.Client.DownloadCount
			}
			d := jobclient.NewDownloader(a.client,
				jobclient.WithDownloadCount(count),
				jobclient.WithStagger(a.cfg.Client.DownloadStagger.Duration()),
				jobclient.WithDownloadLogger(a.logger.Named("download")),
			)

			paths, err := d.DownloadRecent(cmd.Context(), dir)
			for _, p := range paths {
				fmt.Fprintf(a.out, "downloaded %s\n", p)
			}
			if errors.Is(err, jobclient.ErrNoOutputs) {
				fmt.Fprintln(a.out, "no output files available")
			}
			return err
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "directory the files are written to")
	cmd.Flags().IntVar(&count, "count", 0, "number of files to download (default from config, 4)")
	return cmd
}
