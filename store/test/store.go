// Package test provides store helpers for tests.
package test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hrygo/prefsync/internal/profile"
	"github.com/hrygo/prefsync/store"
	"github.com/hrygo/prefsync/store/db/sqlite"
)

// NewTestingStore creates a migrated sqlite-backed store in a per-test
// temporary directory. The store is closed automatically when the test ends.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	t.Helper()

	dir := t.TempDir()
	p := &profile.Profile{
		Mode:     "dev",
		Data:     dir,
		Driver:   "sqlite",
		DSN:      filepath.Join(dir, "prefsync_test.db"),
		Protocol: profile.ProtocolToken,
	}

	driver, err := sqlite.NewDB(p)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	st := store.New(driver, p)
	if err := st.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}
