// SPDX-License-Identifier: MIT

// Package config loads and validates the aircheck configuration with
// the precedence ENV > file > defaults.
package config

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tonband/aircheck/internal/netutil"
)

// DefaultCatalogURL is the public radio.garden content API.
const DefaultCatalogURL = "http://radio.garden/api/ara/content"

// TelemetryConfig controls the OpenTelemetry trace exporter.
type TelemetryConfig struct {
	Enabled      bool
	Endpoint     string
	Protocol     string
	SamplingRate float64
	Environment  string
}

// Config is the effective aircheck configuration. Country, OutputDir
// and Duration identify the recording run and arrive as command line
// arguments; everything else comes from defaults, file and environment.
type Config struct {
	Country   string
	OutputDir string
	Duration  time.Duration

	CatalogURL     string
	CatalogTimeout time.Duration
	MaxWorkers     int
	ChunkSize      int
	RateLimit      float64
	RateBurst      int

	CacheDir string
	CacheTTL time.Duration

	IndexPath  string
	StatusAddr string

	LogLevel string
	Manifest bool

	Version   string
	Telemetry TelemetryConfig
}

// Default returns the built-in settings. The run target fields stay
// empty until the command line supplies them.
func Default() Config {
	return Config{
		CatalogURL:     DefaultCatalogURL,
		CatalogTimeout: 15 * time.Second,
		MaxWorkers:     10,
		ChunkSize:      4096,
		RateLimit:      5,
		RateBurst:      5,
		CacheTTL:       6 * time.Hour,
		LogLevel:       "info",
		Manifest:       true,
		Telemetry: TelemetryConfig{
			Endpoint:     "localhost:4317",
			Protocol:     "grpc",
			SamplingRate: 1.0,
		},
	}
}

// Validate checks the full configuration, including the run target
// fields supplied on the command line.
func Validate(cfg Config) error {
	if cfg.Country == "" {
		return fmt.Errorf("country must not be empty")
	}
	if cfg.OutputDir == "" {
		return fmt.Errorf("output directory must not be empty")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %s", cfg.Duration)
	}
	return ValidateSettings(cfg)
}

// ValidateSettings checks everything that can come from file or
// environment. The run target fields are validated separately because
// they arrive as command line arguments after loading.
func ValidateSettings(cfg Config) error {
	if _, err := netutil.ValidateURL(cfg.CatalogURL); err != nil {
		return fmt.Errorf("catalog url: %w", err)
	}
	if cfg.CatalogTimeout <= 0 {
		return fmt.Errorf("catalog timeout must be positive, got %s", cfg.CatalogTimeout)
	}
	if cfg.MaxWorkers < 1 {
		return fmt.Errorf("max workers must be at least 1, got %d", cfg.MaxWorkers)
	}
	if cfg.ChunkSize < 1 {
		return fmt.Errorf("chunk size must be at least 1 byte, got %d", cfg.ChunkSize)
	}
	if cfg.RateLimit <= 0 {
		return fmt.Errorf("rate limit must be positive, got %g", cfg.RateLimit)
	}
	if cfg.RateBurst < 1 {
		return fmt.Errorf("rate burst must be at least 1, got %d", cfg.RateBurst)
	}
	if cfg.CacheTTL <= 0 {
		return fmt.Errorf("cache ttl must be positive, got %s", cfg.CacheTTL)
	}
	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if cfg.Telemetry.Protocol != "grpc" && cfg.Telemetry.Protocol != "http" {
		return fmt.Errorf("telemetry protocol must be grpc or http, got %q", cfg.Telemetry.Protocol)
	}
	if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
		return fmt.Errorf("telemetry sampling rate must be in [0,1], got %g", cfg.Telemetry.SamplingRate)
	}
	return nil
}
