// Package store tests for interface compliance.
package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/git-pkgs/git-pkgs/internal/types"
)

// Compile-time interface conformance check. The real conformance test
// (against an actual database) lives in internal/store/sqlite.
var _ Store = (*mockStore)(nil)

type mockStore struct{}

func (m *mockStore) InsertCommit(ctx context.Context, c types.Commit) (int64, error) { return 0, nil }
func (m *mockStore) InsertBranchCommit(ctx context.Context, bc types.BranchCommit) error {
	return nil
}
func (m *mockStore) InsertManifest(ctx context.Context, mf types.Manifest) (int64, error) {
	return 0, nil
}
func (m *mockStore) InsertDependencyChanges(ctx context.Context, changes []types.DependencyChange) error {
	return nil
}
func (m *mockStore) InsertDependencySnapshots(ctx context.Context, snapshots []types.DependencySnapshot) error {
	return nil
}
func (m *mockStore) UpdateBranchCursor(ctx context.Context, branchID, commitID int64, commitHash string) error {
	return nil
}
func (m *mockStore) Flush(ctx context.Context, batch Batch) error { return nil }
func (m *mockStore) GetOrCreateBranch(ctx context.Context, name string) (types.Branch, error) {
	return types.Branch{}, nil
}
func (m *mockStore) GetBranch(ctx context.Context, name string) (types.Branch, bool, error) {
	return types.Branch{}, false, nil
}
func (m *mockStore) ListBranches(ctx context.Context) ([]types.Branch, error) { return nil, nil }
func (m *mockStore) RemoveBranch(ctx context.Context, name string) error      { return nil }
func (m *mockStore) GetManifest(ctx context.Context, path, ecosystem string, kind types.ManifestKind) (types.Manifest, bool, error) {
	return types.Manifest{}, false, nil
}
func (m *mockStore) LatestSnapshotAtOrBefore(ctx context.Context, branchID, commitPosition int64) (int64, bool, error) {
	return 0, false, nil
}
func (m *mockStore) SnapshotRows(ctx context.Context, commitID int64) ([]types.DependencySnapshot, error) {
	return nil, nil
}
func (m *mockStore) ChangesBetween(ctx context.Context, branchID, fromCommitID, toCommitID int64) ([]types.DependencyChange, error) {
	return nil, nil
}
func (m *mockStore) CommitPosition(ctx context.Context, branchID int64, commitHash string) (int64, int64, bool, error) {
	return 0, 0, false, nil
}
func (m *mockStore) SetConfig(ctx context.Context, key, value string) error { return nil }
func (m *mockStore) GetConfig(ctx context.Context, key string) (string, bool, error) {
	return "", false, nil
}
func (m *mockStore) SchemaVersion(ctx context.Context) (int, error)        { return 0, nil }
func (m *mockStore) SetBulkWriteMode(ctx context.Context, enabled bool) error { return nil }
func (m *mockStore) Close() error                                         { return nil }
func (m *mockStore) Path() string                                         { return "" }
func (m *mockStore) UnderlyingDB() *sql.DB                                { return nil }

func TestBatchEmptyAndSize(t *testing.T) {
	var b Batch
	if !b.Empty() {
		t.Fatal("zero-value Batch should be empty")
	}
	b.Commits = append(b.Commits, types.Commit{})
	b.Changes = append(b.Changes, types.DependencyChange{}, types.DependencyChange{})
	if b.Empty() {
		t.Fatal("Batch with rows should not be empty")
	}
	if b.Size() != 3 {
		t.Fatalf("expected size 3, got %d", b.Size())
	}
}

func TestStoreInterfaceMethodsExist(t *testing.T) {
	var s Store = &mockStore{}
	_ = s.InsertCommit
	_ = s.InsertBranchCommit
	_ = s.InsertManifest
	_ = s.InsertDependencyChanges
	_ = s.InsertDependencySnapshots
	_ = s.UpdateBranchCursor
	_ = s.Flush
	_ = s.GetOrCreateBranch
	_ = s.GetBranch
	_ = s.ListBranches
	_ = s.RemoveBranch
	_ = s.GetManifest
	_ = s.LatestSnapshotAtOrBefore
	_ = s.SnapshotRows
	_ = s.ChangesBetween
	_ = s.CommitPosition
	_ = s.SetConfig
	_ = s.GetConfig
	_ = s.SchemaVersion
	_ = s.SetBulkWriteMode
	_ = s.Close
	_ = s.Path
	_ = s.UnderlyingDB
}
