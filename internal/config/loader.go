// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence ENV > file > defaults.
type Loader struct {
	configPath string
	version    string
}

// NewLoader creates a new configuration loader. configPath may be empty
// for ENV-only operation.
func NewLoader(configPath, version string) *Loader {
	return &Loader{configPath: configPath, version: version}
}

// Load builds the effective configuration: defaults first, then the
// optional YAML file, then environment overrides. The result is
// validated before it is returned; the run target fields stay empty.
func (l *Loader) Load() (Config, error) {
	cfg := Default()

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		mergeFileConfig(&cfg, fileCfg)
	}

	mergeEnvConfig(&cfg)

	cfg.Version = l.version

	if err := ValidateSettings(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile loads configuration from a YAML file with STRICT parsing.
// Unknown fields cause an error to surface misspelled keys early.
func (l *Loader) loadFile(path string) (*fileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if err == io.EOF {
			return &fileConfig{}, nil
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	// Strict: Ensure no multiple documents or trailing content
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}

	return &fileCfg, nil
}

// fileConfig mirrors Config with pointer fields so absent keys are
// distinguishable from zero values.
type fileConfig struct {
	CatalogURL     *string        `yaml:"catalog_url"`
	CatalogTimeout *fileDuration  `yaml:"catalog_timeout"`
	MaxWorkers     *int           `yaml:"max_workers"`
	ChunkSize      *int           `yaml:"chunk_size"`
	RateLimit      *float64       `yaml:"rate_limit"`
	RateBurst      *int           `yaml:"rate_burst"`
	CacheDir       *string        `yaml:"cache_dir"`
	CacheTTL       *fileDuration  `yaml:"cache_ttl"`
	IndexPath      *string        `yaml:"index_path"`
	StatusAddr     *string        `yaml:"status_addr"`
	LogLevel       *string        `yaml:"log_level"`
	Manifest       *bool          `yaml:"manifest"`
	Telemetry      *fileTelemetry `yaml:"telemetry"`
}

type fileTelemetry struct {
	Enabled      *bool    `yaml:"enabled"`
	Endpoint     *string  `yaml:"endpoint"`
	Protocol     *string  `yaml:"protocol"`
	SamplingRate *float64 `yaml:"sampling_rate"`
	Environment  *string  `yaml:"environment"`
}

// fileDuration accepts Go duration strings such as "15s" or "6h".
type fileDuration time.Duration

func (d *fileDuration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = fileDuration(parsed)
	return nil
}

func mergeFileConfig(cfg *Config, file *fileConfig) {
	if file == nil {
		return
	}
	if file.CatalogURL != nil {
		cfg.CatalogURL = *file.CatalogURL
	}
	if file.CatalogTimeout != nil {
		cfg.CatalogTimeout = time.Duration(*file.CatalogTimeout)
	}
	if file.MaxWorkers != nil {
		cfg.MaxWorkers = *file.MaxWorkers
	}
	if file.ChunkSize != nil {
		cfg.ChunkSize = *file.ChunkSize
	}
	if file.RateLimit != nil {
		cfg.RateLimit = *file.RateLimit
	}
	if file.RateBurst != nil {
		cfg.RateBurst = *file.RateBurst
	}
	if file.CacheDir != nil {
		cfg.CacheDir = *file.CacheDir
	}
	if file.CacheTTL != nil {
		cfg.CacheTTL = time.Duration(*file.CacheTTL)
	}
	if file.IndexPath != nil {
		cfg.IndexPath = *file.IndexPath
	}
	if file.StatusAddr != nil {
		cfg.StatusAddr = *file.StatusAddr
	}
	if file.LogLevel != nil {
		cfg.LogLevel = *file.LogLevel
	}
	if file.Manifest != nil {
		cfg.Manifest = *file.Manifest
	}
	if file.Telemetry != nil {
		if file.Telemetry.Enabled != nil {
			cfg.Telemetry.Enabled = *file.Telemetry.Enabled
		}
		if file.Telemetry.Endpoint != nil {
			cfg.Telemetry.Endpoint = *file.Telemetry.Endpoint
		}
		if file.Telemetry.Protocol != nil {
			cfg.Telemetry.Protocol = *file.Telemetry.Protocol
		}
		if file.Telemetry.SamplingRate != nil {
			cfg.Telemetry.SamplingRate = *file.Telemetry.SamplingRate
		}
		if file.Telemetry.Environment != nil {
			cfg.Telemetry.Environment = *file.Telemetry.Environment
		}
	}
}

// mergeEnvConfig applies environment overrides. Passing the current
// value as the default makes the precedence fall out of the helpers.
func mergeEnvConfig(cfg *Config) {
	cfg.CatalogURL = ParseString(EnvCatalogURL, cfg.CatalogURL)
	cfg.CatalogTimeout = ParseDuration(EnvCatalogTimeout, cfg.CatalogTimeout)
	cfg.MaxWorkers = ParseInt(EnvMaxWorkers, cfg.MaxWorkers)
	cfg.ChunkSize = ParseInt(EnvChunkSize, cfg.ChunkSize)
	cfg.RateLimit = ParseFloat(EnvRateLimit, cfg.RateLimit)
	cfg.RateBurst = ParseInt(EnvRateBurst, cfg.RateBurst)
	cfg.CacheDir = ParseString(EnvCacheDir, cfg.CacheDir)
	cfg.CacheTTL = ParseDuration(EnvCacheTTL, cfg.CacheTTL)
	cfg.IndexPath = ParseString(EnvIndexPath, cfg.IndexPath)
	cfg.StatusAddr = ParseString(EnvStatusAddr, cfg.StatusAddr)
	cfg.LogLevel = ParseString(EnvLogLevel, cfg.LogLevel)
	cfg.Manifest = ParseBool(EnvManifest, cfg.Manifest)
	cfg.Telemetry.Enabled = ParseBool(EnvOTelEnabled, cfg.Telemetry.Enabled)
	cfg.Telemetry.Endpoint = ParseString(EnvOTelEndpoint, cfg.Telemetry.Endpoint)
	cfg.Telemetry.Protocol = ParseString(EnvOTelProtocol, cfg.Telemetry.Protocol)
	cfg.Telemetry.SamplingRate = ParseFloat(EnvOTelSample, cfg.Telemetry.SamplingRate)
	cfg.Telemetry.Environment = ParseString(EnvOTelEnv, cfg.Telemetry.Environment)
}
