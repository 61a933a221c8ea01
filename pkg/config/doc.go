// Package config defines the YAML configuration for the admission layer:
// store backend selection, tier policies, cache and job settings, and
// telemetry options.
//
// Configuration is loaded once at startup with Load (or
// LoadWithEnvOverrides) and passed explicitly to component constructors.
// The optional Watcher reloads the file on change so callers can rebuild
// the immutable tier policy table without a restart.
package config
