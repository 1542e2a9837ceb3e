// Package config loads, normalizes, and validates reencode configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts) and reads TOML files. The Config type centralizes every knob the
// convert pipeline and the auxiliary commands need: tool binaries, the target
// codec family, watchdog thresholds, priority handling, batch traversal and
// history storage.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical enum values, and clear validation errors.
package config
