package branchmgr

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/git-pkgs/git-pkgs/internal/store/sqlite"
	"github.com/git-pkgs/git-pkgs/internal/types"
)

type fakeGitBranches struct {
	existing map[string]bool
	def      string
}

func (f *fakeGitBranches) BranchExists(name string) (bool, error) {
	return f.existing[name], nil
}

func (f *fakeGitBranches) DefaultBranch() (string, error) {
	return f.def, nil
}

type fakeIndexer struct {
	inited []string
	err    error
}

func (f *fakeIndexer) Init(ctx context.Context, branchName, fromHash string) error {
	if f.err != nil {
		return f.err
	}
	f.inited = append(f.inited, branchName)
	return nil
}

func newTestManager(t *testing.T, git *fakeGitBranches, index *fakeIndexer) (*BranchManager, *sqlite.SQLiteStorage) {
	t.Helper()
	ctx := context.Background()
	st, err := sqlite.New(ctx, filepath.Join(t.TempDir(), "pkgs.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return New(st, git, index), st
}

func TestAddIndexesExistingBranch(t *testing.T) {
	git := &fakeGitBranches{existing: map[string]bool{"feature": true}}
	index := &fakeIndexer{}
	mgr, st := newTestManager(t, git, index)

	require.NoError(t, mgr.Add(context.Background(), "feature"))
	assert.Equal(t, []string{"feature"}, index.inited)

	_, ok, err := st.GetBranch(context.Background(), "feature")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAddRejectsUnknownBranch(t *testing.T) {
	git := &fakeGitBranches{existing: map[string]bool{}}
	index := &fakeIndexer{}
	mgr, _ := newTestManager(t, git, index)

	err := mgr.Add(context.Background(), "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrBranchNotFound)
	assert.Empty(t, index.inited)
}

func TestRemoveDropsTrackedBranch(t *testing.T) {
	git := &fakeGitBranches{existing: map[string]bool{"feature": true}}
	index := &fakeIndexer{}
	mgr, _ := newTestManager(t, git, index)

	require.NoError(t, mgr.Add(context.Background(), "feature"))
	require.NoError(t, mgr.Remove(context.Background(), "feature"))

	list, err := mgr.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRemoveUnknownBranchErrors(t *testing.T) {
	mgr, _ := newTestManager(t, &fakeGitBranches{}, &fakeIndexer{})
	err := mgr.Remove(context.Background(), "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrBranchNotFound)
}

func TestListReportsIndexedStatus(t *testing.T) {
	git := &fakeGitBranches{existing: map[string]bool{"main": true}}
	index := &fakeIndexer{}
	mgr, st := newTestManager(t, git, index)

	require.NoError(t, mgr.Add(context.Background(), "main"))

	list, err := mgr.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "main", list[0].Name)
	// The fake Indexer never calls UpdateBranchCursor, so the branch row
	// still carries its zero-value cursor.
	assert.False(t, list[0].Indexed)

	branch, ok, err := st.GetBranch(context.Background(), "main")
	require.NoError(t, err)
	require.True(t, ok)
	commitID, err := st.InsertCommit(context.Background(), types.Commit{Hash: "deadbeef", CommittedAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, st.UpdateBranchCursor(context.Background(), branch.ID, commitID, "deadbeef"))

	list, err = mgr.List(context.Background())
	require.NoError(t, err)
	assert.True(t, list[0].Indexed)
}

func TestDefaultDelegatesToGit(t *testing.T) {
	git := &fakeGitBranches{def: "main"}
	mgr, _ := newTestManager(t, git, &fakeIndexer{})

	name, err := mgr.Default(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "main", name)
}
