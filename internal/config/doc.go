// Package config loads, normalizes, and validates dubber configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and applies DUBBER_* environment overrides.
// The Config type centralizes every knob the CLI and workflow controller
// need: backend location, polling cadence, intake limits, state directories,
// notifications, logging, and metrics export.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
