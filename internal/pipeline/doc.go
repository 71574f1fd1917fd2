// Package pipeline runs dubbing jobs end to end.
//
// The Orchestrator drives one job through separation, transcription,
// translation, per-segment proxy rendering, voice conversion, and mixdown,
// reporting every transition through a jobs.Tracker. The Manager feeds
// admitted jobs to a bounded number of orchestrator goroutines.
//
// External programs are reached through the collaborator interfaces in
// collaborators.go so tests can substitute in-process stubs.
package pipeline
