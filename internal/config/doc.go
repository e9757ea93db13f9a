// Package config loads the chat client's YAML configuration.
//
// Files may reference environment variables as ${VAR}; the CLI loads .env
// first so those can live next to the binary. Durations use Go syntax ("5s",
// "10m"). Resolve layers file, defaults and command-line overrides, in that
// order, and validates the result.
package config
