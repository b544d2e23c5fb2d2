// Package indexer implements the Indexer (§4.5): the streaming
// walk -> analyze -> batch -> flush pipeline that drives the Store from a
// branch's git history.
package indexer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gofrs/flock"

	"github.com/git-pkgs/git-pkgs/internal/reconstructor"
	"github.com/git-pkgs/git-pkgs/internal/store"
	"github.com/git-pkgs/git-pkgs/internal/types"
)

// GitWalker is the subset of GitReader the Indexer drives directly.
type GitWalker interface {
	Walk(branchName, sinceHash string, yield func(types.CommitRef) error) error
	BranchTip(name string) (string, error)
}

// Analyzer is the subset of DependencyAnalyzer the Indexer needs.
type Analyzer interface {
	Analyze(hash string, state types.DependencyState) (types.CommitDelta, types.DependencyState, error)
}

// Indexer drives Init/Update over one branch at a time (§5: single-threaded
// cooperative pipeline, single-writer Store).
type Indexer struct {
	git      GitWalker
	analyzer Analyzer
	store    store.Store
	recon    *reconstructor.Reconstructor
	lockPath string
	log      *slog.Logger

	batchSize        int
	snapshotInterval int
}

// Option configures an Indexer beyond its required dependencies.
type Option func(*Indexer)

// WithBatchSize overrides BATCH_SIZE (default 500).
func WithBatchSize(n int) Option {
	return func(ix *Indexer) {
		if n > 0 {
			ix.batchSize = n
		}
	}
}

// WithSnapshotInterval overrides SNAPSHOT_INTERVAL (default 50).
func WithSnapshotInterval(n int) Option {
	return func(ix *Indexer) {
		if n > 0 {
			ix.snapshotInterval = n
		}
	}
}

// WithLogger overrides the default discard logger.
func WithLogger(l *slog.Logger) Option {
	return func(ix *Indexer) { ix.log = l }
}

// New builds an Indexer. lockPath is the OS-level lock file guaranteeing a
// single writer across processes for the duration of a run (§5).
func New(git GitWalker, analyzer Analyzer, st store.Store, lockPath string, opts ...Option) *Indexer {
	ix := &Indexer{
		git:              git,
		analyzer:         analyzer,
		store:            st,
		recon:            reconstructor.NewFromStore(st),
		lockPath:         lockPath,
		log:              slog.New(slog.NewTextHandler(discard{}, nil)),
		batchSize:        500,
		snapshotInterval: 50,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// Init performs a full index of branchName, optionally starting from a
// specific ancestor commit (fromHash == "" means the full history).
func (ix *Indexer) Init(ctx context.Context, branchName, fromHash string) error {
	return ix.run(ctx, branchName, fromHash)
}

// Update incrementally indexes branchName from its stored
// last_indexed_commit cursor.
func (ix *Indexer) Update(ctx context.Context, branchName string) error {
	b, err := ix.store.GetOrCreateBranch(ctx, branchName)
	if err != nil {
		return fmt.Errorf("loading branch %s: %w", branchName, err)
	}
	return ix.run(ctx, branchName, b.LastIndexedCommitHash)
}

// ForceRebuild drops the branch's indexed history and re-runs a full Init.
// It does not drop rows shared with other tracked branches.
func (ix *Indexer) ForceRebuild(ctx context.Context, branchName string) error {
	if err := ix.store.RemoveBranch(ctx, branchName); err != nil && err != types.ErrBranchNotFound {
		return fmt.Errorf("removing branch %s for rebuild: %w", branchName, err)
	}
	return ix.Init(ctx, branchName, "")
}

// manifestKey identifies a manifest row within one run's lookup cache.
type manifestKey struct {
	path      string
	ecosystem string
	kind      types.ManifestKind
}

// runState carries the pieces of the core loop (§4.5) that need to survive
// across the per-commit callback without leaking into the Indexer's
// (reusable, concurrent-safe-per-call) fields.
type runState struct {
	batch          store.Batch
	manifestIDs    map[manifestKey]int64
	depCommitCount int
	position       int64
	lastCommitHash string
}

// run drives the core loop of §4.5 for branchName, starting after sinceHash
// (empty means from the beginning of history).
func (ix *Indexer) run(ctx context.Context, branchName, sinceHash string) error {
	fileLock := flock.New(ix.lockPath)
	locked, err := fileLock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring index lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another git-pkgs index run is in progress (lock %s)", ix.lockPath)
	}
	defer func() { _ = fileLock.Unlock() }()

	branch, err := ix.store.GetOrCreateBranch(ctx, branchName)
	if err != nil {
		return fmt.Errorf("loading branch %s: %w", branchName, err)
	}

	state, err := ix.loadResumeState(ctx, branch, sinceHash)
	if err != nil {
		return fmt.Errorf("loading resume state for %s: %w", branchName, err)
	}

	rs := &runState{
		manifestIDs:    make(map[manifestKey]int64),
		position:       ix.resumePosition(ctx, branch),
		lastCommitHash: sinceHash,
	}

	walkErr := ix.git.Walk(branchName, sinceHash, func(c types.CommitRef) error {
		if c.IsMerge() {
			return nil // merges never advance state (§9)
		}

		delta, next, err := ix.analyzer.Analyze(c.Hash, state)
		if err != nil {
			return fmt.Errorf("analyzing %s: %w", c.Hash, err)
		}
		state = next

		commit := types.Commit{
			Hash: c.Hash, Message: c.Message, AuthorName: c.AuthorName,
			AuthorEmail: c.AuthorEmail, CommittedAt: c.CommittedAt, HasDepChanges: len(delta) > 0,
		}

		if err := ix.writeCommit(ctx, &rs.batch, commit, branch.ID, rs.position, delta, rs.manifestIDs); err != nil {
			return err
		}
		rs.lastCommitHash = c.Hash
		rs.position++

		if commit.HasDepChanges {
			rs.depCommitCount++
			if ix.snapshotInterval > 0 && rs.depCommitCount%ix.snapshotInterval == 0 {
				if err := ix.enqueueSnapshot(ctx, &rs.batch, c.Hash, state, rs.manifestIDs); err != nil {
					return err
				}
			}
		}

		if rs.batch.Size() >= ix.batchSize {
			if err := ix.store.Flush(ctx, rs.batch); err != nil {
				return fmt.Errorf("flushing batch: %w", err)
			}
			rs.batch = store.Batch{}
		}
		return nil
	})
	if walkErr != nil {
		return walkErr
	}

	// Coverage invariant (§4.5): always a snapshot exactly at the tip, but
	// only when this run actually advanced past sinceHash — otherwise
	// rs.lastCommitHash is just the resume point, whose commit row (if any)
	// wasn't written in this run's batch and can't be resolved by Flush.
	if rs.lastCommitHash != "" && rs.lastCommitHash != sinceHash {
		if err := ix.enqueueSnapshot(ctx, &rs.batch, rs.lastCommitHash, state, rs.manifestIDs); err != nil {
			return err
		}
	}
	if err := ix.store.Flush(ctx, rs.batch); err != nil {
		return fmt.Errorf("flushing final batch: %w", err)
	}

	if rs.lastCommitHash != "" && rs.lastCommitHash != sinceHash {
		_, commitID, ok, err := ix.store.CommitPosition(ctx, branch.ID, rs.lastCommitHash)
		if err != nil {
			return fmt.Errorf("resolving tip commit %s: %w", rs.lastCommitHash, err)
		}
		if !ok {
			return fmt.Errorf("tip commit %s not found after flush", rs.lastCommitHash)
		}
		if err := ix.store.UpdateBranchCursor(ctx, branch.ID, commitID, rs.lastCommitHash); err != nil {
			return fmt.Errorf("advancing branch cursor: %w", err)
		}
	}

	ix.log.Info("index run complete", "branch", branchName, "dependency_changing_commits", rs.depCommitCount)
	return nil
}

// manifestID finds-or-creates the manifest row for a (path, ecosystem, kind)
// triple, caching the lookup within one run so a manifest touched by many
// commits isn't re-queried every time.
func (ix *Indexer) manifestID(ctx context.Context, path, ecosystem string, kind types.ManifestKind, cache map[manifestKey]int64) (int64, error) {
	key := manifestKey{path: path, ecosystem: ecosystem, kind: kind}
	if id, ok := cache[key]; ok {
		return id, nil
	}
	id, err := ix.store.InsertManifest(ctx, types.Manifest{Path: path, Ecosystem: ecosystem, Kind: kind})
	if err != nil {
		return 0, err
	}
	cache[key] = id
	return id, nil
}

// writeCommit queues one commit's row, its branch_commit link, and its
// delta rows (with manifest IDs resolved) into batch. None of these rows
// hit the store until batch is flushed, and Flush writes all of them in a
// single transaction (§4.1, §5): a crash can never leave a commit row
// persisted without its delta rows, or vice versa. The commit and
// branch_commit rows are keyed by hash rather than the (not yet assigned)
// row ID; Flush resolves the real ID once the commit row is inserted.
func (ix *Indexer) writeCommit(ctx context.Context, batch *store.Batch, commit types.Commit, branchID, position int64, delta types.CommitDelta, manifestIDs map[manifestKey]int64) error {
	batch.Commits = append(batch.Commits, commit)
	batch.BranchCommits = append(batch.BranchCommits, types.BranchCommit{BranchID: branchID, CommitHash: commit.Hash, Position: position})

	for _, d := range delta {
		manifestID, err := ix.manifestID(ctx, d.ManifestPath, d.Ecosystem, d.ManifestKind, manifestIDs)
		if err != nil {
			return fmt.Errorf("resolving manifest %s: %w", d.ManifestPath, err)
		}
		d.CommitHash = commit.Hash
		d.ManifestID = manifestID
		batch.Changes = append(batch.Changes, d)
	}
	return nil
}

// enqueueSnapshot materializes every entry of state into snapshot rows
// attached to the commit identified by commitHash, resolved to a real
// CommitID by Flush alongside that commit's own row.
func (ix *Indexer) enqueueSnapshot(ctx context.Context, batch *store.Batch, commitHash string, state types.DependencyState, manifestIDs map[manifestKey]int64) error {
	for dk, dep := range state {
		mID, err := ix.manifestID(ctx, dk.ManifestPath, dep.Ecosystem, dep.Kind, manifestIDs)
		if err != nil {
			return fmt.Errorf("resolving manifest %s for snapshot: %w", dk.ManifestPath, err)
		}
		batch.Snapshots = append(batch.Snapshots, types.DependencySnapshot{
			CommitHash:     commitHash,
			ManifestID:     mID,
			Name:           dep.Name,
			Ecosystem:      dep.Ecosystem,
			Purl:           dep.Purl,
			Requirement:    dep.Requirement,
			DependencyType: dep.DependencyType,
		})
	}
	return nil
}

// loadResumeState recovers the DependencyState as of sinceHash so the walk
// can continue from there, via the Reconstructor's nearest-snapshot +
// forward-replay algorithm (§4.6), shared with point-in-time queries.
func (ix *Indexer) loadResumeState(ctx context.Context, branch types.Branch, sinceHash string) (types.DependencyState, error) {
	if sinceHash == "" {
		return types.DependencyState{}, nil
	}
	return ix.recon.StateAtCommit(ctx, branch.Name, sinceHash)
}

// resumePosition returns the next branch_commits.position to assign,
// continuing from the branch's current cursor.
func (ix *Indexer) resumePosition(ctx context.Context, branch types.Branch) int64 {
	if branch.LastIndexedCommitHash == "" {
		return 0
	}
	if pos, _, ok, err := ix.store.CommitPosition(ctx, branch.ID, branch.LastIndexedCommitHash); err == nil && ok {
		return pos + 1
	}
	return 0
}
