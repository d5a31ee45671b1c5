// Package config loads, normalizes, and validates panotrack configuration.
//
// Configuration is read from TOML (~/.config/panotrack/config.toml or
// ./panotrack.toml), overlaid with .env files, then normalized so every path
// is absolute and every section has usable defaults. Validate reports the
// first unusable value with the TOML key in the message.
package config
