package jobclient

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/vocabopt/internal/logging"
	"github.com/fyrsmithlabs/vocabopt/internal/sanitize"
)

const (
	defaultDownloadCount   = 4
	defaultDownloadStagger = 300 * time.Millisecond
)

// Downloader fetches the most recent output artifacts.
type Downloader struct {
	api     API
	count   int
	limiter *rate.Limiter
	logger  *logging.Logger
}

// DownloaderOption configures a Downloader.
type DownloaderOption func(*Downloader)

// WithDownloadCount bounds how many files are fetched.
func WithDownloadCount(n int) DownloaderOption {
	return func(d *Downloader) {
		if n > 0 {
			d.count = n
		}
	}
}

// WithStagger sets the minimum delay between two downloads.
func WithStagger(every time.Duration) DownloaderOption {
	return func(d *Downloader) {
		if every > 0 {
			d.limiter = rate.NewLimiter(rate.Every(every), 1)
		}
	}
}

// WithDownloadLogger sets the downloader logger.
func WithDownloadLogger(l *logging.Logger) DownloaderOption {
	return func(d *Downloader) { d.logger = l }
}

// NewDownloader creates a downloader fetching four files 300ms apart.
func NewDownloader(api API, opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		api:     api,
		count:   defaultDownloadCount,
		limiter: rate.NewLimiter(rate.Every(defaultDownloadStagger), 1),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DownloadRecent writes up to the configured number of most recent outputs
// into dir and returns the paths written. Individual failures are logged and
// joined into the returned error; the remaining files are still fetched.
func (d *Downloader) DownloadRecent(ctx context.Context, dir string) ([]string, error) {
	files, err := d.api.ListOutputs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list outputs: %w", err)
	}
	if len(files) == 0 {
		return nil, ErrNoOutputs
	}
	if len(files) > d.count {
		files = files[:d.count]
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}

	var (
		written []string
		errs    []error
	)
	for _, f := range files {
		if err := d.limiter.Wait(ctx); err != nil {
			errs = append(errs, fmt.Errorf("rate limiter error: %w", err))
			break
		}

		path, err := d.fetch(ctx, dir, f.Name)
		if err != nil {
			d.logger.Warn(ctx, "download failed", zap.String("file", f.Name), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		d.logger.Info(ctx, "downloaded output", zap.String("path", path))
		written = append(written, path)
	}

	return written, errors.Join(errs...)
}

func (d *Downloader) fetch(ctx context.Context, dir, name string) (string, error) {
	path, err := sanitize.Within(dir, name)
	if err != nil {
		return "", fmt.Errorf("refusing output name %q: %w", name, err)
	}

	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) // #nosec G304 -- name checked above
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}

	if _, err := d.api.Download(ctx, name, out); err != nil {
		_ = out.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("download %s: %w", name, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}
