package testsupport

import (
	"testing"

	"uploadflow/internal/config"
	"uploadflow/internal/sessionstore"
)

// MustOpenStore opens the session index for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *sessionstore.Store {
	t.Helper()

	store, err := sessionstore.OpenForConfig(cfg)
	if err != nil {
		t.Fatalf("sessionstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
