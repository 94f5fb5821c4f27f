// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the integrity service configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianCheck/pkg/logging"
	"github.com/AleutianAI/AleutianCheck/pkg/telemetry"
	"github.com/AleutianAI/AleutianCheck/services/integrity/check"
	"github.com/AleutianAI/AleutianCheck/services/integrity/storage/badger"
)

// MaxConfigFileSize bounds configuration files (1MB).
const MaxConfigFileSize = 1024 * 1024

// ErrInvalidConfig wraps every load and validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

var validate = validator.New()

// =============================================================================
// Types
// =============================================================================

// Config is the root configuration.
type Config struct {
	Engine    EngineConfig     `yaml:"engine"`
	Registry  string           `yaml:"registry"`
	Cleanup   CleanupConfig    `yaml:"cleanup"`
	Storage   StorageConfig    `yaml:"storage"`
	Logging   LoggingConfig    `yaml:"logging"`
	Server    ServerConfig     `yaml:"server"`
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// EngineConfig tunes validation.
type EngineConfig struct {
	// Workers is how many top objects are validated in parallel.
	Workers int `yaml:"workers" validate:"min=1,max=64"`

	// Checks overrides check settings by check ID.
	Checks map[string]CheckOverride `yaml:"checks" validate:"dive"`
}

// CheckOverride changes one check's registration.
type CheckOverride struct {
	Enabled  *bool  `yaml:"enabled"`
	Severity string `yaml:"severity" validate:"omitempty,oneof=trivial minor major critical blocker"`
}

// CleanupConfig tunes bulk cleanup.
type CleanupConfig struct {
	// Evict writes scanned top objects to the store and drops them from
	// memory.
	Evict bool `yaml:"evict"`
}

// StorageConfig selects the snapshot database.
type StorageConfig struct {
	InMemory   bool   `yaml:"in_memory"`
	Path       string `yaml:"path" validate:"required_if=InMemory false"`
	SyncWrites bool   `yaml:"sync_writes"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	JSON   bool   `yaml:"json"`
	LogDir string `yaml:"log_dir"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" validate:"min=1,max=65535"`
}

// =============================================================================
// Loading
// =============================================================================

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Engine:    EngineConfig{Workers: 4},
		Cleanup:   CleanupConfig{Evict: true},
		Storage:   StorageConfig{InMemory: true},
		Logging:   LoggingConfig{Level: "info"},
		Server:    ServerConfig{Port: 8080},
		Telemetry: telemetry.DefaultConfig(),
	}
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if len(data) > MaxConfigFileSize {
		return cfg, fmt.Errorf("%w: %d bytes exceeds limit", ErrInvalidConfig, len(data))
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Load reads and parses a configuration file. An empty path returns the
// defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return Default(), fmt.Errorf("stat config: %w", err)
	}
	if info.Size() > MaxConfigFileSize {
		return Default(), fmt.Errorf("%w: %s is %d bytes", ErrInvalidConfig, path, info.Size())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Default(), fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Validate checks struct tags.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// =============================================================================
// Conversions
// =============================================================================

// LoggerConfig returns the pkg/logging configuration.
func (c Config) LoggerConfig(service string) logging.Config {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	return logging.Config{
		Level:   level,
		JSON:    c.Logging.JSON,
		LogDir:  c.Logging.LogDir,
		Service: service,
	}
}

// BadgerConfig returns the snapshot database configuration.
func (c Config) BadgerConfig() badger.Config {
	if c.Storage.InMemory {
		return badger.InMemoryConfig()
	}
	cfg := badger.DefaultConfig()
	cfg.Path = c.Storage.Path
	cfg.SyncWrites = c.Storage.SyncWrites
	return cfg
}

// Apply applies the check overrides to reg.
func (c Config) Apply(reg *check.Registry) error {
	for id, o := range c.Engine.Checks {
		if o.Enabled != nil {
			if err := reg.SetEnabled(id, *o.Enabled); err != nil {
				return err
			}
		}
		if o.Severity != "" {
			s, err := check.ParseSeverity(o.Severity)
			if err != nil {
				return err
			}
			if err := reg.SetSeverity(id, s); err != nil {
				return err
			}
		}
	}
	return nil
}
