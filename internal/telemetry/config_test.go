package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/vocabopt/internal/config"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.Equal(t, ProtocolGRPC, cfg.Protocol)
	assert.Equal(t, "vocaboptd", cfg.ServiceName)
	assert.NoError(t, cfg.Validate())
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.TelemetryConfig{
		Enabled:     true,
		Endpoint:    "otel.example.com:4318",
		Protocol:    ProtocolHTTP,
		Insecure:    false,
		ServiceName: "vocabopt-staging",
	})

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "otel.example.com:4318", cfg.Endpoint)
	assert.Equal(t, ProtocolHTTP, cfg.Protocol)
	assert.False(t, cfg.Insecure)
	assert.Equal(t, "vocabopt-staging", cfg.ServiceName)
	assert.NoError(t, cfg.Validate())

	defaults := FromConfig(config.TelemetryConfig{})
	assert.Equal(t, NewDefaultConfig().Endpoint, defaults.Endpoint)
	assert.Equal(t, ProtocolGRPC, defaults.Protocol)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"disabled skips checks", func(c *Config) { c.Enabled = false; c.Endpoint = "" }, ""},
		{"valid local", func(c *Config) {}, ""},
		{"missing endpoint", func(c *Config) { c.Endpoint = "" }, "endpoint is required"},
		{"missing service name", func(c *Config) { c.ServiceName = "" }, "service_name is required"},
		{"bad protocol", func(c *Config) { c.Protocol = "thrift" }, "protocol must be"},
		{"insecure remote", func(c *Config) { c.Endpoint = "otel.example.com:4317" }, "insecure connections"},
		{"secure remote", func(c *Config) { c.Endpoint = "otel.example.com:4317"; c.Insecure = false }, ""},
		{"insecure loopback ip", func(c *Config) { c.Endpoint = "127.0.0.2:4317" }, ""},
		{"insecure ipv6 loopback", func(c *Config) { c.Endpoint = "[::1]:4317" }, ""},
		{"insecure http url", func(c *Config) { c.Endpoint = "http://localhost:4318"; c.Protocol = ProtocolHTTP }, ""},
		{"sample rate too high", func(c *Config) { c.SampleRate = 1.5 }, "sample rate"},
		{"zero metrics interval", func(c *Config) { c.MetricsInterval = 0 }, "metrics interval"},
		{"zero shutdown timeout", func(c *Config) { c.ShutdownTimeout = 0 }, "shutdown timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			cfg.Enabled = true
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestStripScheme(t *testing.T) {
	assert.Equal(t, "collector:4318", stripScheme("https://collector:4318"))
	assert.Equal(t, "collector:4318", stripScheme("http://collector:4318"))
	assert.Equal(t, "collector:4318", stripScheme("collector:4318"))
}
