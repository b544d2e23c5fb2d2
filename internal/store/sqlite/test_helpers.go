package sqlite

import (
	"context"
	"testing"
)

// newTestStore opens an isolated on-disk store for a test. A temp file per
// test, rather than a shared ":memory:" DSN, avoids cross-test interference
// since SetMaxOpenConns(1) otherwise serializes unrelated tests onto the
// same in-memory database.
func newTestStore(t *testing.T) *SQLiteStorage {
	t.Helper()

	ctx := context.Background()
	st, err := New(ctx, t.TempDir()+"/test.db")
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Fatalf("failed to close test store: %v", err)
		}
	})
	return st
}
