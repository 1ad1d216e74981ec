// Package config provides configuration management for Jarvish.
//
// Configuration is loaded from YAML with environment variable overrides. It
// is type-safe, validated in one pass, and defaulted from the constants in
// defaults.go.
//
// # Configuration Loading
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("config.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention JARVISH_SECTION_FIELD:
//
//   - JARVISH_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - JARVISH_DELIVERY_DAILY_LIMIT overrides delivery.daily_limit
//   - JARVISH_SEMANTIC_API_KEY overrides semantic.api_key
//
// # Precedence
//
//  1. Default values (defaults.go)
//  2. Values from the YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// The loaded *Config is passed explicitly to every component constructor.
// There is no package-level instance.
package config
