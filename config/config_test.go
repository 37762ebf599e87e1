package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/native-bridge/errors"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, "json", cfg.Codec)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Empty(t, cfg.Library)
	assert.Zero(t, cfg.MemoryLimitPages)
	assert.False(t, cfg.EnableWASI)
}

func TestLoadFrom_Values(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"NATIVEBRIDGE_LIBRARY":            "guest.wasm",
		"NATIVEBRIDGE_SCENARIO":           "session.yaml",
		"NATIVEBRIDGE_CODEC":              "cbor",
		"NATIVEBRIDGE_LOG_LEVEL":          "debug",
		"NATIVEBRIDGE_LOG_FORMAT":         "json",
		"NATIVEBRIDGE_METRICS_ADDR":       ":9090",
		"NATIVEBRIDGE_MEMORY_LIMIT_PAGES": "256",
		"NATIVEBRIDGE_WASI":               "true",
	})
	require.NoError(t, err)

	assert.Equal(t, "guest.wasm", cfg.Library)
	assert.Equal(t, "session.yaml", cfg.Scenario)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, uint32(256), cfg.MemoryLimitPages)
	assert.True(t, cfg.EnableWASI)

	lc, err := cfg.LibraryConfig()
	require.NoError(t, err)
	assert.Equal(t, "cbor", lc.Codec.Name())
	assert.Equal(t, uint32(256), lc.MemoryLimitPages)
	assert.True(t, lc.EnableWASI)

	logger, err := cfg.Logger()
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestLoad_ProcessEnvironment(t *testing.T) {
	t.Setenv("NATIVEBRIDGE_CODEC", "cbor")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "cbor", cfg.Codec)
}

func TestLoadFrom_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		kind errors.Kind
	}{
		{"codec", map[string]string{"NATIVEBRIDGE_CODEC": "xml"}, errors.KindNotFound},
		{"level", map[string]string{"NATIVEBRIDGE_LOG_LEVEL": "chatty"}, errors.KindInvalidInput},
		{"format", map[string]string{"NATIVEBRIDGE_LOG_FORMAT": "xml"}, errors.KindInvalidInput},
		{"pages", map[string]string{"NATIVEBRIDGE_MEMORY_LIMIT_PAGES": "70000"}, errors.KindInvalidInput},
		{"parse", map[string]string{"NATIVEBRIDGE_WASI": "maybe"}, errors.KindInvalidData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(tt.env)
			var e *errors.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tt.kind, e.Kind)
			assert.Equal(t, errors.PhaseConfig, e.Phase)
		})
	}
}
