// Package config loads bridge tooling configuration from NATIVEBRIDGE_*
// environment variables.
package config

import (
	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/native-bridge/codec"
	"github.com/wippyai/native-bridge/errors"
	"github.com/wippyai/native-bridge/native/wasmlib"
)

// maxMemoryPages is the wasm32 limit of 4GB.
const maxMemoryPages = 65536

// Config holds configuration for running native libraries and scenarios.
type Config struct {
	// Library is the path of a guest native library. Empty runs scenarios
	// against the dry-run recorder.
	Library string `env:"NATIVEBRIDGE_LIBRARY"`

	// Scenario is the path of a scenario script.
	Scenario string `env:"NATIVEBRIDGE_SCENARIO"`

	// Codec names the payload codec: json or cbor.
	Codec string `env:"NATIVEBRIDGE_CODEC" envDefault:"json"`

	// LogLevel is a zap level name.
	LogLevel string `env:"NATIVEBRIDGE_LOG_LEVEL" envDefault:"info"`

	// LogFormat is json or console.
	LogFormat string `env:"NATIVEBRIDGE_LOG_FORMAT" envDefault:"console"`

	// MetricsAddr serves /metrics, /live and /ready when set.
	MetricsAddr string `env:"NATIVEBRIDGE_METRICS_ADDR"`

	// MemoryLimitPages caps guest memory in 64KB pages. 0 keeps the default.
	MemoryLimitPages uint32 `env:"NATIVEBRIDGE_MEMORY_LIMIT_PAGES"`

	// EnableWASI instantiates WASI preview1 for the guest.
	EnableWASI bool `env:"NATIVEBRIDGE_WASI"`
}

// Load parses the process environment and validates the result.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, errors.ParseFailed(errors.PhaseConfig, "env", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFrom is like Load but reads variables from environ instead of the
// process environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return nil, errors.ParseFailed(errors.PhaseConfig, "env", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field values.
func (c *Config) Validate() error {
	if _, err := codec.ByName(c.Codec); err != nil {
		return err
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("log_level").
			Detail("unknown log level %q", c.LogLevel).
			Build()
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("log_format").
			Detail("want json or console, got %q", c.LogFormat).
			Build()
	}
	if c.MemoryLimitPages > maxMemoryPages {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("memory_limit_pages").
			Detail("%d exceeds %d pages", c.MemoryLimitPages, maxMemoryPages).
			Build()
	}
	return nil
}

// Logger builds a zap logger for LogLevel and LogFormat.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "log level")
	}

	var zc zap.Config
	if c.LogFormat == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// LibraryConfig returns the wasmlib configuration for Library.
func (c *Config) LibraryConfig() (wasmlib.Config, error) {
	cd, err := codec.ByName(c.Codec)
	if err != nil {
		return wasmlib.Config{}, err
	}
	return wasmlib.Config{
		Codec:            cd,
		MemoryLimitPages: c.MemoryLimitPages,
		EnableWASI:       c.EnableWASI,
	}, nil
}
