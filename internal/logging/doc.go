// Package logging assembles structured slog loggers and formatting helpers used
// across songdub services.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code can automatically
// tag log lines with job IDs, stages, segment indices, and correlation IDs. Each
// job also receives its own log file via NewJobLogger, teed from the daemon
// logger. The package provides a no-op logger for tests and wiring code that
// cannot fail.
package logging
