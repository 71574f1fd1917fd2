// Package services defines shared utilities consumed by the pipeline stages
// and the external tool integrations (separation, transcription, translation,
// speech synthesis, voice conversion, mixdown).
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, segment indexes, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap and Details helpers that turn
//     failures into consistent job error records.
//   - A command runner with a hard per-call timeout so no external process can
//     block a job forever.
//
// Use these helpers when wiring new collaborators so error handling and
// observability stay uniform across the pipeline.
package services
