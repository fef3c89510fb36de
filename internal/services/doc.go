// Package services defines shared utilities consumed by the pipeline stages,
// the CLI driver, and the web handlers.
//
// Key responsibilities:
//   - Context helpers that stamp session IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that let drivers decide
//     between aborting, exiting cleanly, or flashing a notice.
//
// Use these helpers when wiring new stage logic so failure handling and
// observability stay uniform across both drivers.
package services
