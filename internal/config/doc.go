// Package config loads, normalizes, and validates uploadflow configuration.
//
// Configuration lives in TOML (default ~/.config/uploadflow/config.toml, or
// ./uploadflow.toml in the current directory). Load applies repository
// defaults, environment overrides (UPLOAD_FOLDER, EDITOR,
// UPLOADFLOW_SESSION_SECRET), path expansion, and validation so both the CLI
// driver and the web daemon consume the same effective settings.
package config
