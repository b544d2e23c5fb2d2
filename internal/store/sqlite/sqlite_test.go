package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/git-pkgs/git-pkgs/internal/store"
	"github.com/git-pkgs/git-pkgs/internal/types"
)

func TestNewCreatesSchemaAndIsReopenable(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/pkgs.sqlite3"

	st, err := New(ctx, path)
	require.NoError(t, err)
	version, err := st.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
	require.NoError(t, st.Close())

	st2, err := New(ctx, path)
	require.NoError(t, err)
	defer st2.Close()
	version2, err := st2.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, version2)
}

func TestBranchLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, ok, err := st.GetBranch(ctx, "main")
	require.NoError(t, err)
	assert.False(t, ok)

	b, err := st.GetOrCreateBranch(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, "main", b.Name)
	assert.Nil(t, b.LastIndexedCommitID)

	again, err := st.GetOrCreateBranch(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, b.ID, again.ID)

	branches, err := st.ListBranches(ctx)
	require.NoError(t, err)
	require.Len(t, branches, 1)

	require.NoError(t, st.RemoveBranch(ctx, "main"))
	err = st.RemoveBranch(ctx, "main")
	assert.ErrorIs(t, err, types.ErrBranchNotFound)
}

func TestFlushWritesCommitsChangesAndSnapshots(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	branch, err := st.GetOrCreateBranch(ctx, "main")
	require.NoError(t, err)

	commitID, err := st.InsertCommit(ctx, types.Commit{
		Hash: "abc123", Message: "add dep", CommittedAt: time.Now(), HasDepChanges: true,
	})
	require.NoError(t, err)
	require.NoError(t, st.InsertBranchCommit(ctx, types.BranchCommit{BranchID: branch.ID, CommitID: commitID, Position: 0}))

	manifestID, err := st.InsertManifest(ctx, types.Manifest{Path: "go.mod", Ecosystem: "go", Kind: types.KindManifest})
	require.NoError(t, err)

	batch := store.Batch{
		Changes: []types.DependencyChange{
			{CommitID: commitID, ManifestID: manifestID, Name: "github.com/a/b", Ecosystem: "go",
				ChangeType: types.ChangeAdded, Requirement: "v1.0.0", DependencyType: "direct"},
		},
		Snapshots: []types.DependencySnapshot{
			{CommitID: commitID, ManifestID: manifestID, Name: "github.com/a/b", Ecosystem: "go",
				Requirement: "v1.0.0", DependencyType: "direct"},
		},
	}
	require.NoError(t, st.Flush(ctx, batch))

	pos, gotCommitID, ok, err := st.CommitPosition(ctx, branch.ID, "abc123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(0), pos)
	assert.Equal(t, commitID, gotCommitID)

	snapCommitID, ok, err := st.LatestSnapshotAtOrBefore(ctx, branch.ID, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, commitID, snapCommitID)

	rows, err := st.SnapshotRows(ctx, commitID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "github.com/a/b", rows[0].Name)
}

func TestChangesBetweenOrdersByPosition(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	branch, err := st.GetOrCreateBranch(ctx, "main")
	require.NoError(t, err)
	manifestID, err := st.InsertManifest(ctx, types.Manifest{Path: "go.mod", Ecosystem: "go", Kind: types.KindManifest})
	require.NoError(t, err)

	var commitIDs []int64
	for i, hash := range []string{"c0", "c1", "c2"} {
		id, err := st.InsertCommit(ctx, types.Commit{Hash: hash, CommittedAt: time.Now()})
		require.NoError(t, err)
		require.NoError(t, st.InsertBranchCommit(ctx, types.BranchCommit{BranchID: branch.ID, CommitID: id, Position: int64(i)}))
		commitIDs = append(commitIDs, id)
	}
	require.NoError(t, st.InsertDependencyChanges(ctx, []types.DependencyChange{
		{CommitID: commitIDs[1], ManifestID: manifestID, Name: "pkg-a", ChangeType: types.ChangeAdded, Requirement: "1.0"},
		{CommitID: commitIDs[2], ManifestID: manifestID, Name: "pkg-b", ChangeType: types.ChangeAdded, Requirement: "2.0"},
	}))

	changes, err := st.ChangesBetween(ctx, branch.ID, commitIDs[0], commitIDs[2])
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, "pkg-a", changes[0].Name)
	assert.Equal(t, "pkg-b", changes[1].Name)
}

func TestConfigRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, ok, err := st.GetConfig(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, st.SetConfig(ctx, "last_indexed_at", "2024-01-01"))
	value, ok, err := st.GetConfig(ctx, "last_indexed_at")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2024-01-01", value)

	require.NoError(t, st.SetConfig(ctx, "last_indexed_at", "2024-02-01"))
	value, _, err = st.GetConfig(ctx, "last_indexed_at")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-01", value)
}

func TestSetBulkWriteModeToggles(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.SetBulkWriteMode(ctx, true))
	require.NoError(t, st.SetBulkWriteMode(ctx, false))
}
