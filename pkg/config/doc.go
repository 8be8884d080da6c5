// Package config provides configuration management for Guardrail.
//
// This package handles loading, validating, and managing configuration
// from YAML files with environment variable overrides.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.Load("guardrail.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadWithEnvOverrides("guardrail.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention
// GUARDRAIL_SECTION_FIELD. For example:
//
//   - GUARDRAIL_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - GUARDRAIL_REPOSITORY_DSN overrides repository.dsn
//   - GUARDRAIL_LOGGING_LEVEL overrides logging.level
//
// Environment variables always take precedence over file-based
// configuration.
//
// # Configuration Precedence
//
// Values are applied in the following order (later overrides earlier):
//
//  1. Default values (DefaultConfig)
//  2. Values from the YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Validation
//
// All configuration is validated during loading. Validation errors
// include field paths and helpful messages:
//
//	configuration validation failed with 2 errors:
//	  - repository.dsn: dsn is required for the sql backend
//	  - logging.level: unknown level "verbose" (options: debug, info, warn, error)
//
// # Example Configuration
//
// A minimal configuration file:
//
//	server:
//	  listen_address: "127.0.0.1:8080"
//
//	repository:
//	  backend: "file"
//	  file:
//	    path: "./packs"
//	    watch: true
//
//	audit:
//	  backend: "sqlite"
//	  sqlite:
//	    path: "data/audit.db"
//
//	logging:
//	  level: "info"
//	  format: "json"
package config
