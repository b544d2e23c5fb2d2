package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/git-pkgs/git-pkgs/internal/manifest"
	"github.com/git-pkgs/git-pkgs/internal/types"
)

// fakeReader is an in-memory CommitReader for unit-testing the analyzer
// without shelling out to git.
type fakeReader struct {
	merges  map[string]bool
	changes map[string][]types.ChangedPath
	blobs   map[string]map[string][]byte // commit -> path -> content
	parents map[string]string            // commit -> parent commit, for blobBefore
}

func (f *fakeReader) IsMerge(hash string) (bool, error) { return f.merges[hash], nil }

func (f *fakeReader) ChangedPaths(hash string) ([]types.ChangedPath, error) {
	return f.changes[hash], nil
}

func (f *fakeReader) BlobAt(commit, path string) ([]byte, bool, error) {
	b, ok := f.blobs[commit][path]
	return b, ok, nil
}

func (f *fakeReader) BlobBefore(commit, path string) ([]byte, bool, error) {
	parent, ok := f.parents[commit]
	if !ok {
		return nil, false, nil
	}
	b, ok := f.blobs[parent][path]
	return b, ok, nil
}

func newFixtureRegistry() *manifest.Registry {
	return manifest.NewRegistry(manifest.Config{})
}

func TestAnalyzeMergeCommitIsNoop(t *testing.T) {
	reader := &fakeReader{merges: map[string]bool{"m1": true}}
	a := New(reader, newFixtureRegistry())

	state := types.DependencyState{
		{ManifestPath: "go.mod", Name: "github.com/a/b"}: {Name: "github.com/a/b", Requirement: "v1.0.0"},
	}
	delta, next, err := a.Analyze("m1", state)
	require.NoError(t, err)
	assert.Empty(t, delta)
	assert.Equal(t, state, next)
}

func TestAnalyzeAddedDependency(t *testing.T) {
	reader := &fakeReader{
		changes: map[string][]types.ChangedPath{
			"c1": {{Status: types.PathAdded, Path: "go.mod"}},
		},
		blobs: map[string]map[string][]byte{
			"c1": {"go.mod": []byte("module x\n\nrequire github.com/a/b v1.0.0\n")},
		},
	}
	a := New(reader, newFixtureRegistry())

	delta, next, err := a.Analyze("c1", types.DependencyState{})
	require.NoError(t, err)
	require.Len(t, delta, 1)
	assert.Equal(t, types.ChangeAdded, delta[0].ChangeType)
	assert.Equal(t, "github.com/a/b", delta[0].Name)
	assert.Equal(t, "v1.0.0", delta[0].Requirement)

	key := types.DependencyKey{ManifestPath: "go.mod", Name: "github.com/a/b"}
	require.Contains(t, next, key)
	assert.Equal(t, "v1.0.0", next[key].Requirement)
}

func TestAnalyzeModifiedDependency(t *testing.T) {
	reader := &fakeReader{
		changes: map[string][]types.ChangedPath{
			"c2": {{Status: types.PathModified, Path: "go.mod"}},
		},
		blobs: map[string]map[string][]byte{
			"c2": {"go.mod": []byte("module x\n\nrequire github.com/a/b v2.0.0\n")},
		},
	}
	a := New(reader, newFixtureRegistry())

	state := types.DependencyState{
		{ManifestPath: "go.mod", Name: "github.com/a/b"}: {
			ManifestPath: "go.mod", Name: "github.com/a/b", Ecosystem: "go",
			Requirement: "v1.0.0", DependencyType: "direct",
		},
	}
	delta, next, err := a.Analyze("c2", state)
	require.NoError(t, err)
	require.Len(t, delta, 1)
	assert.Equal(t, types.ChangeModified, delta[0].ChangeType)
	require.NotNil(t, delta[0].PreviousRequirement)
	assert.Equal(t, "v1.0.0", *delta[0].PreviousRequirement)
	assert.Equal(t, "v2.0.0", delta[0].Requirement)

	key := types.DependencyKey{ManifestPath: "go.mod", Name: "github.com/a/b"}
	assert.Equal(t, "v2.0.0", next[key].Requirement)
}

func TestAnalyzeRemovedPathRemovesAllItsDependencies(t *testing.T) {
	reader := &fakeReader{
		changes: map[string][]types.ChangedPath{
			"c3": {{Status: types.PathRemoved, Path: "go.mod"}},
		},
	}
	a := New(reader, newFixtureRegistry())

	state := types.DependencyState{
		{ManifestPath: "go.mod", Name: "github.com/a/b"}: {ManifestPath: "go.mod", Name: "github.com/a/b", Requirement: "v1.0.0"},
		{ManifestPath: "other/go.mod", Name: "github.com/c/d"}: {ManifestPath: "other/go.mod", Name: "github.com/c/d", Requirement: "v1.0.0"},
	}
	delta, next, err := a.Analyze("c3", state)
	require.NoError(t, err)
	require.Len(t, delta, 1)
	assert.Equal(t, types.ChangeRemoved, delta[0].ChangeType)
	assert.Equal(t, "github.com/a/b", delta[0].Name)

	assert.NotContains(t, next, types.DependencyKey{ManifestPath: "go.mod", Name: "github.com/a/b"})
	assert.Contains(t, next, types.DependencyKey{ManifestPath: "other/go.mod", Name: "github.com/c/d"})
}

func TestAnalyzeParserRejectionTreatedAsRemoval(t *testing.T) {
	reader := &fakeReader{
		changes: map[string][]types.ChangedPath{
			"c4": {{Status: types.PathModified, Path: "go.mod"}},
		},
		blobs: map[string]map[string][]byte{
			"c4": {"go.mod": []byte("not valid go.mod syntax {{{")},
		},
	}
	a := New(reader, newFixtureRegistry())

	state := types.DependencyState{
		{ManifestPath: "go.mod", Name: "github.com/a/b"}: {ManifestPath: "go.mod", Name: "github.com/a/b", Requirement: "v1.0.0"},
	}
	delta, next, err := a.Analyze("c4", state)
	require.NoError(t, err)
	require.Len(t, delta, 1)
	assert.Equal(t, types.ChangeRemoved, delta[0].ChangeType)
	assert.Empty(t, next)
}

func TestAnalyzeUnrecognizedPathIsIgnored(t *testing.T) {
	reader := &fakeReader{
		changes: map[string][]types.ChangedPath{
			"c5": {{Status: types.PathAdded, Path: "README.md"}},
		},
	}
	a := New(reader, newFixtureRegistry())

	delta, next, err := a.Analyze("c5", types.DependencyState{})
	require.NoError(t, err)
	assert.Empty(t, delta)
	assert.Empty(t, next)
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	reader := &fakeReader{
		changes: map[string][]types.ChangedPath{
			"c1": {{Status: types.PathAdded, Path: "go.mod"}},
		},
		blobs: map[string]map[string][]byte{
			"c1": {"go.mod": []byte("module x\n\nrequire github.com/a/b v1.0.0\n")},
		},
	}
	a := New(reader, newFixtureRegistry())

	d1, _, err := a.Analyze("c1", types.DependencyState{})
	require.NoError(t, err)
	d2, _, err := a.Analyze("c1", types.DependencyState{})
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
}
