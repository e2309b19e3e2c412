package observability

import (
	"testing"

	"github.com/smallbiznis/reviewmeter/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDerivesFromAppConfig(t *testing.T) {
	cfg := LoadConfig(config.Config{
		AppVersion:  "1.2.3",
		Environment: "production",
		Observability: config.ObservabilityConfig{
			LogLevel:      "warn",
			LogFormat:     "json",
			OtelEnabled:   true,
			OTLPEndpoint:  " collector:4317 ",
			OTLPProtocol:  "grpc",
			SamplingRatio: 3,
		},
	})

	assert.Equal(t, "reviewmeter", cfg.ServiceName)
	assert.Equal(t, "1.2.3", cfg.Version)
	assert.Equal(t, "collector:4317", cfg.OtelExporterEndpoint)
	assert.Equal(t, 0.1, cfg.OtelSamplingRatio)
	assert.False(t, cfg.Debug())
}

func TestDebugForLocalEnvironments(t *testing.T) {
	assert.True(t, Config{Environment: "development"}.Debug())
	assert.True(t, Config{Environment: "production", LogLevel: "DEBUG"}.Debug())
	assert.False(t, Config{Environment: "staging", LogLevel: "info"}.Debug())
}
