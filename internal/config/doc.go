// Package config loads, normalizes, and validates speechtrim configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SPEECHTRIM_WHISPER_MODEL. The Config type centralizes every knob the daemon
// and CLI need so upload, staging, and output directories and external tool
// settings are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
