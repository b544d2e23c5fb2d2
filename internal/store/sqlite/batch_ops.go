package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/git-pkgs/git-pkgs/internal/store"
	"github.com/git-pkgs/git-pkgs/internal/types"
)

// InsertCommit records a commit if not already present (the same commit may
// be reachable from more than one tracked branch) and returns its row ID. An
// existing row is kept as is, except that has_dep_changes may go from false
// to true.
func (s *SQLiteStorage) InsertCommit(ctx context.Context, c types.Commit) (int64, error) {
	return insertCommit(ctx, s.db, c)
}

func insertCommit(ctx context.Context, q querier, c types.Commit) (int64, error) {
	_, err := q.ExecContext(ctx, `
		INSERT INTO commits (hash, message, author_name, author_email, committed_at, has_dep_changes)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO UPDATE SET has_dep_changes = has_dep_changes OR excluded.has_dep_changes`,
		c.Hash, c.Message, c.AuthorName, c.AuthorEmail, c.CommittedAt, boolToInt(c.HasDepChanges))
	if err != nil {
		return 0, wrapDBError("insert commit", err)
	}
	var id int64
	if err := q.QueryRowContext(ctx, `SELECT id FROM commits WHERE hash = ?`, c.Hash).Scan(&id); err != nil {
		return 0, wrapDBError("lookup commit id", err)
	}
	return id, nil
}

// InsertBranchCommit links a branch to a commit at a dense position.
func (s *SQLiteStorage) InsertBranchCommit(ctx context.Context, bc types.BranchCommit) error {
	return insertBranchCommit(ctx, s.db, bc)
}

func insertBranchCommit(ctx context.Context, q querier, bc types.BranchCommit) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO branch_commits (branch_id, commit_id, position)
		VALUES (?, ?, ?)
		ON CONFLICT(branch_id, commit_id) DO NOTHING`,
		bc.BranchID, bc.CommitID, bc.Position)
	if err != nil {
		return wrapDBError("insert branch commit", err)
	}
	return nil
}

// InsertManifest records a (path, ecosystem, kind) manifest if not already
// present and returns its row ID.
func (s *SQLiteStorage) InsertManifest(ctx context.Context, m types.Manifest) (int64, error) {
	return insertManifest(ctx, s.db, m)
}

func insertManifest(ctx context.Context, q querier, m types.Manifest) (int64, error) {
	_, err := q.ExecContext(ctx, `
		INSERT INTO manifests (path, ecosystem, kind)
		VALUES (?, ?, ?)
		ON CONFLICT(path, ecosystem, kind) DO NOTHING`,
		m.Path, m.Ecosystem, string(m.Kind))
	if err != nil {
		return 0, wrapDBError("insert manifest", err)
	}
	var id int64
	err = q.QueryRowContext(ctx, `SELECT id FROM manifests WHERE path = ? AND ecosystem = ? AND kind = ?`,
		m.Path, m.Ecosystem, string(m.Kind)).Scan(&id)
	if err != nil {
		return 0, wrapDBError("lookup manifest id", err)
	}
	return id, nil
}

// InsertDependencyChanges appends delta-log rows. At most one row per
// (commit, manifest, name) (§3 invariant); conflict-ignoring so a re-walk
// after an interrupted run (§5) converges with an uninterrupted one instead
// of failing on rows a prior, partially-flushed run already wrote.
func (s *SQLiteStorage) InsertDependencyChanges(ctx context.Context, changes []types.DependencyChange) error {
	return insertDependencyChanges(ctx, s.db, changes)
}

func insertDependencyChanges(ctx context.Context, q querier, changes []types.DependencyChange) error {
	for _, c := range changes {
		_, err := q.ExecContext(ctx, `
			INSERT INTO dependency_changes
				(commit_id, manifest_id, name, ecosystem, purl, change_type, requirement, previous_requirement, dependency_type)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(commit_id, manifest_id, name) DO NOTHING`,
			c.CommitID, c.ManifestID, c.Name, c.Ecosystem, c.Purl, string(c.ChangeType),
			c.Requirement, c.PreviousRequirement, c.DependencyType)
		if err != nil {
			return wrapDBError(fmt.Sprintf("insert dependency change %s", c.Name), err)
		}
	}
	return nil
}

// InsertDependencySnapshots appends full-state snapshot rows for one commit.
func (s *SQLiteStorage) InsertDependencySnapshots(ctx context.Context, snapshots []types.DependencySnapshot) error {
	return insertDependencySnapshots(ctx, s.db, snapshots)
}

func insertDependencySnapshots(ctx context.Context, q querier, snapshots []types.DependencySnapshot) error {
	for _, sn := range snapshots {
		_, err := q.ExecContext(ctx, `
			INSERT INTO dependency_snapshots
				(commit_id, manifest_id, name, ecosystem, purl, requirement, dependency_type)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(commit_id, manifest_id, name) DO UPDATE SET
				requirement = excluded.requirement,
				dependency_type = excluded.dependency_type,
				purl = excluded.purl`,
			sn.CommitID, sn.ManifestID, sn.Name, sn.Ecosystem, sn.Purl, sn.Requirement, sn.DependencyType)
		if err != nil {
			return wrapDBError(fmt.Sprintf("insert dependency snapshot %s", sn.Name), err)
		}
	}
	return nil
}

// UpdateBranchCursor advances branch.last_indexed_commit, the resume point
// used when Update is re-run against a branch already partially indexed.
func (s *SQLiteStorage) UpdateBranchCursor(ctx context.Context, branchID, commitID int64, commitHash string) error {
	return updateBranchCursor(ctx, s.db, branchID, commitID, commitHash)
}

func updateBranchCursor(ctx context.Context, q querier, branchID, commitID int64, commitHash string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE branches SET last_indexed_commit_id = ?, last_indexed_commit_hash = ? WHERE id = ?`,
		commitID, commitHash, branchID)
	if err != nil {
		return wrapDBError("update branch cursor", err)
	}
	return nil
}

// resolveCommitID looks up hash's row ID, preferring the commits just
// inserted earlier in this same Flush call. Falling back to the database
// covers the case where hash was committed by an earlier Flush within the
// same run — e.g. the tip's coverage snapshot (§4.5) is enqueued after the
// walk loop's last mid-run flush already persisted that commit's row, so it
// never appears in this call's own batch.Commits.
func resolveCommitID(ctx context.Context, conn querier, commitIDs map[string]int64, hash string) (int64, error) {
	if id, ok := commitIDs[hash]; ok {
		return id, nil
	}
	var id int64
	if err := conn.QueryRowContext(ctx, `SELECT id FROM commits WHERE hash = ?`, hash).Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return 0, fmt.Errorf("commit %s not found", hash)
		}
		return 0, wrapDBError("lookup commit id", err)
	}
	commitIDs[hash] = id
	return id, nil
}

// querier is the subset of *sql.DB / *sql.Tx / *sql.Conn the batch helpers
// need, so the same insert logic runs identically whether called directly
// against the pool (single-statement Transaction methods) or inside Flush's
// IMMEDIATE transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Flush applies an entire Batch atomically (§4.5's flush discipline): all
// rows in the batch are written in a single transaction, or none are. This
// is the Indexer's primary write path; the individual Transaction methods
// above exist for callers (tests, doctor-style repair tools) that need a
// single row written outside of a batch.
func (s *SQLiteStorage) Flush(ctx context.Context, batch store.Batch) error {
	if batch.Empty() {
		return nil
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if err := beginImmediateWithRetry(ctx, conn, 5, 10*time.Millisecond); err != nil {
		return fmt.Errorf("failed to begin immediate transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	// commitIDs resolves each commit's hash to its row ID as inserted below,
	// so branch_commits/changes/snapshots queued against a hash (because
	// their commit row didn't exist yet when they were buffered) can be
	// linked to the real ID without a second round trip outside this
	// transaction (§4.1: one commit's rows are all written together).
	commitIDs := make(map[string]int64, len(batch.Commits))
	for _, c := range batch.Commits {
		id, err := insertCommit(ctx, conn, c)
		if err != nil {
			return wrapDBError("flush commits", err)
		}
		commitIDs[c.Hash] = id
	}

	for _, bc := range batch.BranchCommits {
		if bc.CommitHash != "" {
			id, err := resolveCommitID(ctx, conn, commitIDs, bc.CommitHash)
			if err != nil {
				return fmt.Errorf("flush branch commits: %w", err)
			}
			bc.CommitID = id
		}
		if err := insertBranchCommit(ctx, conn, bc); err != nil {
			return wrapDBError("flush branch commits", err)
		}
	}
	for i := range batch.Changes {
		if batch.Changes[i].CommitHash != "" {
			id, err := resolveCommitID(ctx, conn, commitIDs, batch.Changes[i].CommitHash)
			if err != nil {
				return fmt.Errorf("flush dependency changes: %w", err)
			}
			batch.Changes[i].CommitID = id
		}
	}
	if err := insertDependencyChanges(ctx, conn, batch.Changes); err != nil {
		return wrapDBError("flush dependency changes", err)
	}
	for i := range batch.Snapshots {
		if batch.Snapshots[i].CommitHash != "" {
			id, err := resolveCommitID(ctx, conn, commitIDs, batch.Snapshots[i].CommitHash)
			if err != nil {
				return fmt.Errorf("flush dependency snapshots: %w", err)
			}
			batch.Snapshots[i].CommitID = id
		}
	}
	if err := insertDependencySnapshots(ctx, conn, batch.Snapshots); err != nil {
		return wrapDBError("flush dependency snapshots", err)
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	committed = true
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
