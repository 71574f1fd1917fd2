// Package config loads, normalizes, and validates songdub configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENROUTER_API_KEY and SONGDUB_API_TOKEN. The Config type centralizes every
// knob the daemon, the dubbing pipeline, and the CLI need, from analysis hop
// sizes to external command templates.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
