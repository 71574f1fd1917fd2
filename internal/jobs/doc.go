// Package jobs defines the dubbing job record, its lifecycle, and the
// registries that hold it.
//
// A Tracker is the only writer for a job while it runs. Every mutation goes
// through the tracker's lock and is persisted to a Registry before the call
// returns, so readers of the registry always see a consistent snapshot.
// Progress never decreases, and a job reaches done or error exactly once.
package jobs
