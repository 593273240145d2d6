// Package config provides configuration loading for vocabopt.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// EnvPrefix prefixes every environment variable read by LoadWithFile.
	EnvPrefix = "VOCABOPT_"
)

// LoadWithFile loads configuration from YAML file, then overrides with environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (VOCABOPT_SERVER_HTTP_PORT, VOCABOPT_CLIENT_SERVER_URL, etc.)
//  2. YAML config file (~/.config/vocabopt/config.yaml)
//  3. Defaults (see Default)
//
// The configPath parameter specifies the YAML file to load. If empty, uses default path.
// A missing file is not an error.
//
// # Security Considerations
//
// File Permissions: the configuration file MUST have 0600 or 0400 permissions.
//
// Path Validation: only files under ~/.config/vocabopt/ or /etc/vocabopt/ are loaded.
//
// File Size Limit: files larger than 1MB are rejected.
//
// # Environment Variable Mapping
//
// The prefix is stripped and the remainder split on its first underscore:
//
//	VOCABOPT_SERVER_HTTP_PORT       -> server.http_port
//	VOCABOPT_CLIENT_SERVER_URL      -> client.server_url
//	VOCABOPT_OPTIMIZER_BEAM_WIDTH   -> optimizer.beam_width
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		dir, err := DefaultConfigDir()
		if err != nil {
			return nil, err
		}
		configPath = filepath.Join(dir, "config.yaml")
	}

	if err := validateConfigPath(configPath); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		// Open once and validate through the descriptor to avoid a TOCTOU race.
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if err := validateConfigFileProperties(info); err != nil {
			return nil, fmt.Errorf("config file validation failed: %w", err)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// envKey maps VOCABOPT_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

// DefaultConfigDir returns ~/.config/vocabopt.
func DefaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "vocabopt"), nil
}

// EnsureConfigDir creates the vocabopt config directory with 0700 permissions.
func EnsureConfigDir() error {
	dir, err := DefaultConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}
	return nil
}

// validateConfigPath checks if path is in allowed directories.
// This validation runs even if the file doesn't exist yet.
func validateConfigPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	// Follow symlinks so they cannot escape the allowed directories.
	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		resolvedPath = absPath
	}

	userDir, err := DefaultConfigDir()
	if err != nil {
		return err
	}

	allowedDirs := []string{
		userDir,
		"/etc/vocabopt",
	}
	for _, dir := range allowedDirs {
		if strings.HasPrefix(resolvedPath, dir+string(filepath.Separator)) {
			return nil
		}
	}

	return fmt.Errorf("config file must be in ~/.config/vocabopt/ or /etc/vocabopt/")
}

// validateConfigFileProperties checks file permissions and size.
// Takes FileInfo from an already-opened file descriptor to avoid TOCTOU race.
func validateConfigFileProperties(info os.FileInfo) error {
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}

	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	return nil
}

// applyDefaults restores defaults for fields explicitly set to zero values
// and normalizes list values that arrive as comma-separated strings.
func applyDefaults(cfg *Config) {
	def := Default()

	if cfg.Server.Host == "" {
		cfg.Server.Host = def.Server.Host
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = def.Server.Port
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if cfg.Server.UploadDir == "" {
		cfg.Server.UploadDir = def.Server.UploadDir
	}
	if cfg.Server.OutputDir == "" {
		cfg.Server.OutputDir = def.Server.OutputDir
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = def.Server.MaxUploadMB
	}

	if cfg.Client.ServerURL == "" {
		cfg.Client.ServerURL = def.Client.ServerURL
	}
	cfg.Client.ServerURL = strings.TrimRight(cfg.Client.ServerURL, "/")
	if cfg.Client.RequestTimeout == 0 {
		cfg.Client.RequestTimeout = def.Client.RequestTimeout
	}
	cfg.Client.AllowedExtensions = splitList(cfg.Client.AllowedExtensions)
	if len(cfg.Client.AllowedExtensions) == 0 {
		cfg.Client.AllowedExtensions = def.Client.AllowedExtensions
	}
	if cfg.Client.WordListPattern == "" {
		cfg.Client.WordListPattern = def.Client.WordListPattern
	}
	if cfg.Client.DefaultTargetWords == 0 {
		cfg.Client.DefaultTargetWords = def.Client.DefaultTargetWords
	}
	if cfg.Client.DownloadCount == 0 {
		cfg.Client.DownloadCount = def.Client.DownloadCount
	}

	if cfg.Optimizer.DefaultMaxSentences == 0 {
		cfg.Optimizer.DefaultMaxSentences = def.Optimizer.DefaultMaxSentences
	}
	if cfg.Optimizer.DefaultAlgorithm == "" {
		cfg.Optimizer.DefaultAlgorithm = def.Optimizer.DefaultAlgorithm
	}
	if cfg.Optimizer.DefaultStrictness == "" {
		cfg.Optimizer.DefaultStrictness = def.Optimizer.DefaultStrictness
	}
	if cfg.Optimizer.Workers == 0 {
		cfg.Optimizer.Workers = def.Optimizer.Workers
	}
	if cfg.Optimizer.BeamWidth == 0 {
		cfg.Optimizer.BeamWidth = def.Optimizer.BeamWidth
	}
	if cfg.Optimizer.BeamDepth == 0 {
		cfg.Optimizer.BeamDepth = def.Optimizer.BeamDepth
	}
	if cfg.Optimizer.ProgressInterval == 0 {
		cfg.Optimizer.ProgressInterval = def.Optimizer.ProgressInterval
	}
	if cfg.Optimizer.WordListTimeout == 0 {
		cfg.Optimizer.WordListTimeout = def.Optimizer.WordListTimeout
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = def.Logging.Format
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = def.Telemetry.ServiceName
	}
}

// splitList flattens entries like ".csv,.txt" into separate trimmed items.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, strings.ToLower(part))
			}
		}
	}
	return out
}
