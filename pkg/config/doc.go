// Package config provides configuration management for the pennywise budget
// service.
//
// This package handles loading, validating, and managing configuration from
// YAML files with environment variable overrides.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("config.yaml")
//
//  2. From a YAML file with .env and environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// An empty path yields the defaults.
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention PENNYWISE_SECTION_FIELD.
// For example:
//
//   - PENNYWISE_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - PENNYWISE_CACHE_BACKEND overrides cache.backend
//   - PENNYWISE_AUTH_JWT_SECRET overrides auth.jwt_secret
//
// Variables in a .env file next to the configuration file or in the working
// directory are loaded first and never replace variables already set.
//
// # Configuration Precedence
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Singleton Pattern
//
//	if err := config.Initialize("config.yaml"); err != nil {
//	    log.Fatal(err)
//	}
//	cfg := config.GetConfig()
//
// # Hot Reload
//
// A Watcher reloads the file on change and notifies OnReload listeners.
// Only settings read through those listeners (the log level) take effect
// without a restart.
package config
