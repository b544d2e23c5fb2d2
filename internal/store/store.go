// Package store defines the persistence interface for git-pkgs (§4.1): the
// commit/branch/manifest/dependency-change/snapshot schema and the
// transactional, batched writes the Indexer drives it with.
package store

import (
	"context"
	"database/sql"

	"github.com/git-pkgs/git-pkgs/internal/types"
)

// Batch is one transactional flush's worth of pending rows (§4.5's "buffer"
// of commits, branch_commits, changes, and snapshots).
type Batch struct {
	Commits       []types.Commit
	BranchCommits []types.BranchCommit
	Changes       []types.DependencyChange
	Snapshots     []types.DependencySnapshot
}

// Empty reports whether the batch has nothing to flush.
func (b Batch) Empty() bool {
	return len(b.Commits) == 0 && len(b.BranchCommits) == 0 && len(b.Changes) == 0 && len(b.Snapshots) == 0
}

// Size is the row count used against pkgs.batchSize to decide when to flush.
func (b Batch) Size() int {
	return len(b.Commits) + len(b.BranchCommits) + len(b.Changes) + len(b.Snapshots)
}

// Transaction is the subset of Store methods that write individual rows,
// mirroring the teacher's Transaction/Storage split. Each call is its own
// write; writes that must all succeed or all fail together (one commit row,
// its branch_commit row, its change rows, and an occasional snapshot) go
// through Store.Flush instead.
type Transaction interface {
	// InsertCommit records a commit if not already present (the same commit
	// may be reachable from more than one tracked branch) and returns its
	// row ID. An existing row is kept as is, except that has_dep_changes may
	// go from false to true.
	InsertCommit(ctx context.Context, c types.Commit) (int64, error)

	// InsertBranchCommit links a branch to a commit at a position.
	InsertBranchCommit(ctx context.Context, bc types.BranchCommit) error

	// InsertManifest records a (path, ecosystem, kind) manifest if not
	// already present and returns its row ID.
	InsertManifest(ctx context.Context, m types.Manifest) (int64, error)

	// InsertDependencyChanges appends delta-log rows.
	InsertDependencyChanges(ctx context.Context, changes []types.DependencyChange) error

	// InsertDependencySnapshots appends full-state snapshot rows for one commit.
	InsertDependencySnapshots(ctx context.Context, snapshots []types.DependencySnapshot) error

	// UpdateBranchCursor advances branch.last_indexed_commit.
	UpdateBranchCursor(ctx context.Context, branchID, commitID int64, commitHash string) error
}

// Store is the full persistence interface.
type Store interface {
	Transaction

	// Flush applies an entire Batch atomically (§4.5's flush discipline):
	// all rows in the batch are written in a single transaction, or none are.
	Flush(ctx context.Context, batch Batch) error

	// Branches
	GetOrCreateBranch(ctx context.Context, name string) (types.Branch, error)
	GetBranch(ctx context.Context, name string) (types.Branch, bool, error)
	ListBranches(ctx context.Context) ([]types.Branch, error)
	RemoveBranch(ctx context.Context, name string) error

	// Manifests
	GetManifest(ctx context.Context, path, ecosystem string, kind types.ManifestKind) (types.Manifest, bool, error)

	// Reconstruction support (§4.6)
	LatestSnapshotAtOrBefore(ctx context.Context, branchID, commitPosition int64) (commitID int64, ok bool, err error)
	SnapshotRows(ctx context.Context, commitID int64) ([]types.DependencySnapshot, error)
	ChangesBetween(ctx context.Context, branchID, fromCommitID, toCommitID int64) ([]types.DependencyChange, error)
	CommitPosition(ctx context.Context, branchID int64, commitHash string) (position int64, commitID int64, ok bool, err error)

	// Config
	SetConfig(ctx context.Context, key, value string) error
	GetConfig(ctx context.Context, key string) (string, bool, error)

	// SchemaVersion returns the store's current schema version.
	SchemaVersion(ctx context.Context) (int, error)

	// SetBulkWriteMode toggles the relaxed-durability PRAGMA used during a
	// large init (§5): synchronous=OFF. Safe to call repeatedly; restored to
	// synchronous=FULL when enabled is false.
	SetBulkWriteMode(ctx context.Context, enabled bool) error

	// Lifecycle
	Close() error
	Path() string
	UnderlyingDB() *sql.DB
}
