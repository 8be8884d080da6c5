package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a YAML file at the specified path. The
// file is unmarshalled onto DefaultConfig, so keys absent from the file
// keep their defaults. The result is validated before it is returned.
// Environment variables are not consulted; use LoadWithEnvOverrides for
// that.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Variables follow the naming
// convention GUARDRAIL_SECTION_FIELD (e.g.,
// GUARDRAIL_SERVER_LISTEN_ADDRESS) and always take precedence over
// file-based configuration.
//
// The loading sequence is:
//  1. Default values
//  2. Values from the YAML file
//  3. Environment variable overrides
//  4. Validation
func LoadWithEnvOverrides(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides. Variables
// use the format GUARDRAIL_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	if val := os.Getenv("GUARDRAIL_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("GUARDRAIL_SERVER_READ_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if val := os.Getenv("GUARDRAIL_SERVER_WRITE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}
	if val := os.Getenv("GUARDRAIL_SERVER_IDLE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.IdleTimeout = d
		}
	}
	if val := os.Getenv("GUARDRAIL_SERVER_SHUTDOWN_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ShutdownTimeout = d
		}
	}
	if val := os.Getenv("GUARDRAIL_SERVER_REQUEST_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.RequestTimeout = d
		}
	}

	// Repository overrides
	if val := os.Getenv("GUARDRAIL_REPOSITORY_BACKEND"); val != "" {
		cfg.Repository.Backend = val
	}
	if val := os.Getenv("GUARDRAIL_REPOSITORY_DSN"); val != "" {
		cfg.Repository.DSN = val
	}
	if val := os.Getenv("GUARDRAIL_REPOSITORY_FILE_PATH"); val != "" {
		cfg.Repository.File.Path = val
	}
	if val := os.Getenv("GUARDRAIL_REPOSITORY_FILE_WATCH"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Repository.File.Watch = b
		}
	}
	if val := os.Getenv("GUARDRAIL_REPOSITORY_GIT_REPOSITORY"); val != "" {
		cfg.Repository.Git.Repository = val
	}
	if val := os.Getenv("GUARDRAIL_REPOSITORY_GIT_BRANCH"); val != "" {
		cfg.Repository.Git.Branch = val
	}
	if val := os.Getenv("GUARDRAIL_REPOSITORY_GIT_TOKEN"); val != "" {
		cfg.Repository.Git.Token = val
	}
	if val := os.Getenv("GUARDRAIL_REPOSITORY_CACHE_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Repository.Cache.Enabled = b
		}
	}
	if val := os.Getenv("GUARDRAIL_REPOSITORY_CACHE_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Repository.Cache.TTL = d
		}
	}

	// Audit overrides
	if val := os.Getenv("GUARDRAIL_AUDIT_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Audit.Enabled = b
		}
	}
	if val := os.Getenv("GUARDRAIL_AUDIT_BACKEND"); val != "" {
		cfg.Audit.Backend = val
	}
	if val := os.Getenv("GUARDRAIL_AUDIT_SQLITE_PATH"); val != "" {
		cfg.Audit.SQLite.Path = val
	}
	if val := os.Getenv("GUARDRAIL_AUDIT_RETENTION_DAYS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Audit.Retention.Days = i
		}
	}
	if val := os.Getenv("GUARDRAIL_AUDIT_RETENTION_SCHEDULE"); val != "" {
		cfg.Audit.Retention.Schedule = val
	}

	// Logging overrides
	if val := os.Getenv("GUARDRAIL_LOGGING_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("GUARDRAIL_LOGGING_FORMAT"); val != "" {
		cfg.Logging.Format = val
	}
	if val := os.Getenv("GUARDRAIL_LOGGING_REDACT_PII"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Logging.RedactPII = b
		}
	}

	// Metrics overrides
	if val := os.Getenv("GUARDRAIL_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
	if val := os.Getenv("GUARDRAIL_METRICS_PATH"); val != "" {
		cfg.Metrics.Path = val
	}
}
