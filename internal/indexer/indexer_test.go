package indexer

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

// fakeGit is an in-memory GitWalker driven by a fixed, appendable commit list.
type fakeGit struct {
	commits []types.CommitRef
}

func (f *fakeGit) Walk(branchName, sinceHash string, yield func(types.CommitRef) error) error {
	skipping := sinceHash != ""
	for _, c := range f.commits {
		if skipping {
			if c.Hash == sinceHash {
				skipping = false
			}
			continue
		}
		if err := yield(c); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeGit) BranchTip(name string) (string, error) {
	return f.commits[len(f.commits)-1].Hash, nil
}

// fakeAnalyzer returns a pre-scripted delta per commit hash and folds it
// into state the same way the real Analyzer would.
type fakeAnalyzer struct {
	deltas map[string]types.CommitDelta
}

func (f *fakeAnalyzer) Analyze(hash string, state types.DependencyState) (types.CommitDelta, types.DependencyState, error) {
	delta := f.deltas[hash]
	next := state.Clone()
	for _, d := range delta {
		key := types.DependencyKey{ManifestPath: d.ManifestPath, Name: d.Name}
		if d.ChangeType == types.ChangeRemoved {
			delete(next, key)
			continue
		}
		next[key] = types.Dependency{
			ManifestPath: d.ManifestPath, Name: d.Name, Ecosystem: d.Ecosystem, Kind: d.ManifestKind,
			Purl: d.Purl, Requirement: d.Requirement, DependencyType: d.DependencyType,
		}
	}
	return delta, next, nil
}

func newTestIndexer(t *testing.T, git *fakeGit, analyzer *fakeAnalyzer, opts ...Option) (*Indexer, *sqlite.SQLiteStorage) {
	t.Helper()
	ctx := context.Background()
	st, err := sqlite.New(ctx, filepath.Join(t.TempDir(), "pkgs.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	ix := New(git, analyzer, st, filepath.Join(t.TempDir(), "index.lock"), opts...)
	return ix, st
}

func TestInitIndexesCommitsAndSnapshotsAtTip(t *testing.T) {
	ctx := context.Background()
	git := &fakeGit{commits: []types.CommitRef{
		{Hash: "c1", CommittedAt: time.Now()},
		{Hash: "c2", CommittedAt: time.Now()},
	}}
	analyzer := &fakeAnalyzer{deltas: map[string]types.CommitDelta{
		"c1": {{ManifestPath: "go.mod", Name: "pkg-a", Ecosystem: "go", ManifestKind: types.KindManifest,
			ChangeType: types.ChangeAdded, Requirement: "v1.0.0"}},
	}}
	ix, st := newTestIndexer(t, git, analyzer, WithSnapshotInterval(1))

	require.NoError(t, ix.Init(ctx, "main", ""))

	branch, ok, err := st.GetBranch(ctx, "main")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "c2", branch.LastIndexedCommitHash)

	_, commitID, ok, err := st.CommitPosition(ctx, branch.ID, "c2")
	require.NoError(t, err)
	require.True(t, ok)

	rows, err := st.SnapshotRows(ctx, commitID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "pkg-a", rows[0].Name)
}

func TestMergeCommitsAreSkipped(t *testing.T) {
	ctx := context.Background()
	git := &fakeGit{commits: []types.CommitRef{
		{Hash: "c1", CommittedAt: time.Now()},
		{Hash: "m1", CommittedAt: time.Now(), ParentHashes: []string{"c1", "other"}},
	}}
	analyzer := &fakeAnalyzer{deltas: map[string]types.CommitDelta{}}
	ix, st := newTestIndexer(t, git, analyzer)

	require.NoError(t, ix.Init(ctx, "main", ""))

	branch, ok, err := st.GetBranch(ctx, "main")
	require.NoError(t, err)
	require.True(t, ok)
	// The merge commit contributes no row and the cursor never reaches it.
	assert.Equal(t, "c1", branch.LastIndexedCommitHash)
}

func TestUpdateResumesFromCursor(t *testing.T) {
	ctx := context.Background()
	git := &fakeGit{commits: []types.CommitRef{
		{Hash: "c1", CommittedAt: time.Now()},
	}}
	analyzer := &fakeAnalyzer{deltas: map[string]types.CommitDelta{
		"c1": {{ManifestPath: "go.mod", Name: "pkg-a", Ecosystem: "go", ManifestKind: types.KindManifest,
			ChangeType: types.ChangeAdded, Requirement: "v1.0.0"}},
	}}
	ix, st := newTestIndexer(t, git, analyzer, WithSnapshotInterval(1))
	require.NoError(t, ix.Init(ctx, "main", ""))

	git.commits = append(git.commits, types.CommitRef{Hash: "c2", CommittedAt: time.Now()})
	require.NoError(t, ix.Update(ctx, "main"))

	branch, ok, err := st.GetBranch(ctx, "main")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "c2", branch.LastIndexedCommitHash)

	pos, _, ok, err := st.CommitPosition(ctx, branch.ID, "c2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), pos)
}
