// Package daemon coordinates the long-running songdub process.
//
// It wires configuration, the job store, the pipeline manager and the HTTP
// API into a single lifecycle with flock-based locking to prevent multiple
// instances sharing a data directory. On start it fails any job a previous
// process left unfinished, runs the preflight checks once, and begins
// accepting uploads.
//
// Keep orchestration logic here: stage behavior lives in internal/pipeline
// while the daemon focuses on startup, shutdown and request handling.
package daemon
