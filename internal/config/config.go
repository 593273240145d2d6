// Package config provides configuration loading for vocabopt.
//
// Configuration is layered: hardcoded defaults, then an optional YAML file,
// then VOCABOPT_* environment variables. The same Config serves both the
// vocabctl client and the vocaboptd reference service.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds the complete vocabopt configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Client    ClientConfig    `koanf:"client"`
	Optimizer OptimizerConfig `koanf:"optimizer"`
	Sheets    SheetsConfig    `koanf:"sheets"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// ServerConfig holds reference service configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	UploadDir       string   `koanf:"upload_dir"`
	OutputDir       string   `koanf:"output_dir"`
	MaxUploadMB     int      `koanf:"max_upload_mb"`
}

// ClientConfig holds job client configuration.
//
// The progress poll interval is deliberately absent: it is fixed.
type ClientConfig struct {
	ServerURL          string   `koanf:"server_url"`
	RequestTimeout     Duration `koanf:"request_timeout"`
	AllowedExtensions  []string `koanf:"allowed_extensions"`
	WordListPattern    string   `koanf:"word_list_pattern"`
	DefaultTargetWords int      `koanf:"default_target_words"`
	DownloadCount      int      `koanf:"download_count"`
	DownloadStagger    Duration `koanf:"download_stagger"`
}

// OptimizerConfig holds defaults for optimization runs.
type OptimizerConfig struct {
	DefaultMaxSentences int      `koanf:"default_max_sentences"`
	DefaultAlgorithm    string   `koanf:"default_algorithm"`
	DefaultStrictness   string   `koanf:"default_strictness"`
	Workers             int      `koanf:"workers"`
	BeamWidth           int      `koanf:"beam_width"`
	BeamDepth           int      `koanf:"beam_depth"`
	ProgressInterval    int      `koanf:"progress_interval"`
	WordListTimeout     Duration `koanf:"word_list_timeout"`
}

// SheetsConfig enables the Google Sheets API. Without credentials the
// service reads public sheets through their CSV export and publishes no
// results spreadsheet.
type SheetsConfig struct {
	// CredentialsFile is a service account or authorized user JSON key.
	CredentialsFile string `koanf:"credentials_file"`
}

// LoggingConfig selects log level and encoding.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	// File, when set, also appends log lines to this path.
	File string `koanf:"file"`
}

// TelemetryConfig holds OpenTelemetry export settings for the service.
type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Endpoint    string `koanf:"endpoint"`
	Protocol    string `koanf:"protocol"`
	Insecure    bool   `koanf:"insecure"`
	ServiceName string `koanf:"service_name"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            5000,
			ShutdownTimeout: Duration(10 * time.Second),
			UploadDir:       "uploads",
			OutputDir:       "output",
			MaxUploadMB:     100,
		},
		Client: ClientConfig{
			ServerURL:          "http://localhost:5000",
			RequestTimeout:     Duration(30 * time.Second),
			AllowedExtensions:  []string{".csv", ".txt", ".tsv"},
			WordListPattern:    "docs.google.com/spreadsheets",
			DefaultTargetWords: 2000,
			DownloadCount:      4,
			DownloadStagger:    Duration(300 * time.Millisecond),
		},
		Optimizer: OptimizerConfig{
			DefaultMaxSentences: 600,
			DefaultAlgorithm:    "weighted_greedy",
			DefaultStrictness:   "normal",
			Workers:             4,
			BeamWidth:           5,
			BeamDepth:           3,
			ProgressInterval:    10,
			WordListTimeout:     Duration(30 * time.Second),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			Endpoint:    "localhost:4317",
			Protocol:    "grpc",
			Insecure:    true,
			ServiceName: "vocaboptd",
		},
	}
}

// Validate validates the configuration.
//
// Returns an error if:
//   - Server port is not between 1 and 65535
//   - Shutdown or request timeout is not positive
//   - The extension allow-list is empty or an entry lacks a leading dot
//   - The word-list pattern is empty
//   - Optimizer parameters are not positive
//   - Service name is empty (when telemetry is enabled)
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Server.MaxUploadMB <= 0 {
		return errors.New("max upload size must be positive")
	}

	if c.Client.RequestTimeout <= 0 {
		return errors.New("client request timeout must be positive")
	}
	if len(c.Client.AllowedExtensions) == 0 {
		return errors.New("at least one allowed file extension is required")
	}
	for _, ext := range c.Client.AllowedExtensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return fmt.Errorf("invalid file extension %q (must start with '.')", ext)
		}
	}
	if c.Client.WordListPattern == "" {
		return errors.New("word list pattern is required")
	}
	if c.Client.DefaultTargetWords <= 0 {
		return errors.New("default target words must be positive")
	}
	if c.Client.DownloadCount <= 0 {
		return errors.New("download count must be positive")
	}

	if c.Optimizer.DefaultMaxSentences <= 0 {
		return errors.New("default max sentences must be positive")
	}
	if c.Optimizer.Workers <= 0 {
		return errors.New("optimizer workers must be positive")
	}
	if c.Optimizer.BeamWidth <= 0 || c.Optimizer.BeamDepth <= 0 {
		return errors.New("beam width and depth must be positive")
	}
	if c.Optimizer.ProgressInterval <= 0 {
		return errors.New("progress interval must be positive")
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Logging.Format)
	}

	if c.Telemetry.Enabled && c.Telemetry.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}

	return nil
}
