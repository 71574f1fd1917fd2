package testsupport

import (
	"testing"

	"songdub/internal/config"
	"songdub/internal/jobs"
)

// MustOpenStore opens the job database for cfg and closes it at cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *jobs.Store {
	t.Helper()
	store, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("jobs.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
