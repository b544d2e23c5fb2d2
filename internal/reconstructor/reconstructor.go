// Package reconstructor implements the Reconstructor (§4.6): deriving the
// DependencyState at an arbitrary commit, either from the Store's
// snapshot+delta log or, when no store exists, by walking the tree directly.
package reconstructor

import (
	"context"
	"fmt"

	"github.com/git-pkgs/git-pkgs/internal/manifest"
	"github.com/git-pkgs/git-pkgs/internal/purl"
	"github.com/git-pkgs/git-pkgs/internal/types"
)

// Store is the subset of store.Store the Reconstructor reads from.
type Store interface {
	GetBranch(ctx context.Context, name string) (types.Branch, bool, error)
	CommitPosition(ctx context.Context, branchID int64, commitHash string) (position, commitID int64, ok bool, err error)
	LatestSnapshotAtOrBefore(ctx context.Context, branchID, commitPosition int64) (commitID int64, ok bool, err error)
	SnapshotRows(ctx context.Context, commitID int64) ([]types.DependencySnapshot, error)
	ChangesBetween(ctx context.Context, branchID, fromCommitID, toCommitID int64) ([]types.DependencyChange, error)
}

// TreeReader is the subset of GitReader the stateless fallback path needs:
// list every manifest path at a commit and read its content.
type TreeReader interface {
	TreePaths(commit string) ([]types.ChangedPath, error)
	BlobAt(commit, path string) ([]byte, bool, error)
}

// Reconstructor implements §4.6 against either a Store (the normal, fast
// path) or a TreeReader directly (the stateless fallback used when no store
// has been built for the repository yet).
type Reconstructor struct {
	store    Store
	git      TreeReader
	registry *manifest.Registry
}

// NewFromStore builds a Reconstructor backed by an indexed Store.
func NewFromStore(st Store) *Reconstructor {
	return &Reconstructor{store: st}
}

// NewStateless builds a Reconstructor with no Store: every query walks the
// tree at the target commit directly via git and a ManifestParser registry.
// This mode cannot report PreviousRequirement (no delta history exists).
func NewStateless(git TreeReader, registry *manifest.Registry) *Reconstructor {
	return &Reconstructor{git: git, registry: registry}
}

// StateAtCommit returns the DependencyState at commitHash on branchName.
//
// Correctness property (§4.6): for any commit C on a tracked branch,
// StateAtCommit(branch, C) equals the DependencyState the Indexer held
// immediately after processing C.
func (r *Reconstructor) StateAtCommit(ctx context.Context, branchName, commitHash string) (types.DependencyState, error) {
	if r.store == nil {
		return r.statelessState(commitHash)
	}
	return r.storeBackedState(ctx, branchName, commitHash)
}

func (r *Reconstructor) storeBackedState(ctx context.Context, branchName, commitHash string) (types.DependencyState, error) {
	branch, ok, err := r.store.GetBranch(ctx, branchName)
	if err != nil {
		return nil, fmt.Errorf("loading branch %s: %w", branchName, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrBranchNotFound, branchName)
	}

	position, commitID, ok, err := r.store.CommitPosition(ctx, branch.ID, commitHash)
	if err != nil {
		return nil, fmt.Errorf("resolving commit %s on %s: %w", commitHash, branchName, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s is not indexed on branch %s", types.ErrRefUnresolvable, commitHash, branchName)
	}

	state := types.DependencyState{}

	// Step 1-2: start from the nearest snapshot at or before the target, or
	// from empty if the branch has none that early (e.g. a target within
	// the first SNAPSHOT_INTERVAL commits).
	var fromCommitID int64
	snapshotCommitID, ok, err := r.store.LatestSnapshotAtOrBefore(ctx, branch.ID, position)
	if err != nil {
		return nil, fmt.Errorf("finding nearest snapshot: %w", err)
	}
	if ok {
		rows, err := r.store.SnapshotRows(ctx, snapshotCommitID)
		if err != nil {
			return nil, fmt.Errorf("loading snapshot rows: %w", err)
		}
		for _, row := range rows {
			key := types.DependencyKey{ManifestPath: row.ManifestPath, Name: row.Name}
			state[key] = types.Dependency{
				ManifestPath: row.ManifestPath, Name: row.Name, Ecosystem: row.Ecosystem, Kind: row.ManifestKind,
				Purl: row.Purl, Requirement: row.Requirement, DependencyType: row.DependencyType,
			}
		}
		fromCommitID = snapshotCommitID
	}

	// Step 3-4: fold every delta strictly after the snapshot, up to and
	// including the target commit.
	changes, err := r.store.ChangesBetween(ctx, branch.ID, fromCommitID, commitID)
	if err != nil {
		return nil, fmt.Errorf("loading changes: %w", err)
	}
	for _, c := range changes {
		key := types.DependencyKey{ManifestPath: c.ManifestPath, Name: c.Name}
		switch c.ChangeType {
		case types.ChangeAdded, types.ChangeModified:
			state[key] = types.Dependency{
				ManifestPath: c.ManifestPath, Name: c.Name, Ecosystem: c.Ecosystem, Kind: c.ManifestKind,
				Purl: c.Purl, Requirement: c.Requirement, DependencyType: c.DependencyType,
			}
		case types.ChangeRemoved:
			delete(state, key)
		}
	}

	return state, nil
}

// statelessState implements §4.6's fallback mode: list every manifest in
// commitHash's full tree and parse it directly, with no access to deltas.
func (r *Reconstructor) statelessState(commitHash string) (types.DependencyState, error) {
	paths, err := r.git.TreePaths(commitHash)
	if err != nil {
		return nil, fmt.Errorf("listing tree at %s: %w", commitHash, err)
	}

	state := types.DependencyState{}
	for _, p := range paths {
		parser := r.registry.Recognize(p.Path)
		if parser == nil {
			continue
		}
		content, ok, err := r.git.BlobAt(commitHash, p.Path)
		if err != nil {
			return nil, fmt.Errorf("reading %s at %s: %w", p.Path, commitHash, err)
		}
		if !ok {
			continue
		}
		result, ok := r.registry.Parse(p.Path, content)
		if !ok {
			continue
		}
		for _, d := range result.Dependencies {
			version := ""
			if result.Kind == types.KindLockfile {
				version = d.Requirement
			}
			key := types.DependencyKey{ManifestPath: p.Path, Name: d.Name}
			state[key] = types.Dependency{
				ManifestPath: p.Path, Name: d.Name, Ecosystem: result.Ecosystem, Kind: result.Kind,
				Purl: purl.Build(result.Ecosystem, d.Name, version), Requirement: d.Requirement,
				DependencyType: d.DependencyType,
			}
		}
	}
	return state, nil
}
