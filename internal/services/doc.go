// Package services defines shared utilities consumed by the pipeline stages
// and external tool integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, and correlation
//     identifiers for logging.
//   - The tagged Error type and failure kinds (tool, detection, empty
//     segments, I/O) that the orchestrator converts into terminal job state.
//   - Sentinel markers plus the Wrap helper for errors that originate outside
//     the pipeline (validation, configuration, lookups).
//
// Use these helpers when wiring new stage logic so failure reporting stays
// uniform across the pipeline.
package services
