package xobs_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokolovgit/code-hive-sub000/pkg/observability/xobs"
)

func TestWithDefaults_ByEnvironment(t *testing.T) {
	tests := []struct {
		env                     string
		level, sampler, format string
	}{
		{"production", "info", "parent:0.1", "json"},
		{" Staging ", "debug", "parent:0.5", "json"},
		{"development", "debug", "always", "text"},
		{"", "debug", "always", "text"},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := xobs.Config{Environment: tt.env, ServiceName: "users"}.WithDefaults()
			assert.Equal(t, tt.level, cfg.Level)
			assert.Equal(t, tt.sampler, cfg.Sampler)
			assert.Equal(t, tt.format, cfg.Format)
			assert.Equal(t, xobs.ProtocolNone, cfg.Protocol)
		})
	}
}

func TestWithDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := xobs.Config{
		Environment:      "production",
		ServiceName:      "users",
		Level:            "warn",
		Sampler:          "never",
		Format:           "text",
		ExporterEndpoint: "collector:4317",
	}.WithDefaults()
	assert.Equal(t, "warn", cfg.Level)
	assert.Equal(t, "never", cfg.Sampler)
	assert.Equal(t, "text", cfg.Format)
	assert.Equal(t, xobs.ProtocolGRPC, cfg.Protocol)
}

func TestDefaultConfig(t *testing.T) {
	cfg := xobs.DefaultConfig("production", "users")
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"/healthz", "/metrics"}, cfg.IgnorePaths)
}

func TestValidate_JoinsAllProblems(t *testing.T) {
	cfg := xobs.Config{
		Level:          "loud",
		Format:         "xml",
		Sampler:        "sometimes",
		Protocol:       "http",
		AsyncBuffer:    -1,
		MetricInterval: -time.Second,
		Batch:          xobs.Batch{MaxQueueSize: 10, MaxExportBatchSize: 20},
		ExportBreaker:  xobs.ExportBreaker{Failures: 5, Cooldown: -time.Second},
	}
	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"service_name is required",
		"level:",
		`format: unknown "xml"`,
		"sampler:",
		`exporter_endpoint is required for protocol "http"`,
		"async_buffer",
		"metric_interval",
		"breaker cooldown",
	} {
		assert.Contains(t, err.Error(), want)
	}

	err = xobs.Config{ServiceName: "users", Protocol: "kafka"}.Validate()
	assert.ErrorContains(t, err, `protocol: unknown "kafka"`)
}
