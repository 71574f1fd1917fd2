// Package api defines the wire-format types of the HTTP API and a client for
// them. The daemon encodes these payloads; the CLI decodes them through
// Client without importing daemon internals.
//
// # Key Types
//
// JobSummary: compact listing row for GET /api/jobs.
//
// DaemonStatus: running state, worker usage, job counts, dependency
// availability and preflight results for GET /api/status.
//
// ErrorResponse: every non-2xx body, carrying the error kind and hint from
// services.Details.
//
// # Design Notes
//
// GET /api/jobs/{id} returns jobs.Job unchanged so the record on disk and the
// record on the wire never drift. Timestamps use RFC3339 with milliseconds.
package api
