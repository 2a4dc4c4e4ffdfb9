// Package config loads llmgate configuration from defaults, YAML or TOML files
// and environment variables, and exposes a lazily loaded process-wide value.
package config
