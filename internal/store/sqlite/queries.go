package sqlite

import (
	"context"
	"database/sql"

	"github.com/git-pkgs/git-pkgs/internal/types"
)

// GetOrCreateBranch returns the branch row for name, creating it (with a nil
// cursor) if it doesn't exist yet.
func (s *SQLiteStorage) GetOrCreateBranch(ctx context.Context, name string) (types.Branch, error) {
	if b, ok, err := s.GetBranch(ctx, name); err != nil {
		return types.Branch{}, err
	} else if ok {
		return b, nil
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO branches (name, last_indexed_commit_hash) VALUES (?, '') ON CONFLICT(name) DO NOTHING`, name)
	if err != nil {
		return types.Branch{}, wrapDBError("create branch", err)
	}
	b, ok, err := s.GetBranch(ctx, name)
	if err != nil {
		return types.Branch{}, err
	}
	if !ok {
		return types.Branch{}, wrapDBError("create branch", sql.ErrNoRows)
	}
	return b, nil
}

// GetBranch looks up a branch by name. ok is false if untracked.
func (s *SQLiteStorage) GetBranch(ctx context.Context, name string) (types.Branch, bool, error) {
	var b types.Branch
	var lastID sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, last_indexed_commit_id, last_indexed_commit_hash FROM branches WHERE name = ?`, name).
		Scan(&b.ID, &b.Name, &lastID, &b.LastIndexedCommitHash)
	if err == sql.ErrNoRows {
		return types.Branch{}, false, nil
	}
	if err != nil {
		return types.Branch{}, false, wrapDBError("get branch", err)
	}
	if lastID.Valid {
		b.LastIndexedCommitID = &lastID.Int64
	}
	return b, true, nil
}

// ListBranches returns every tracked branch, ordered by name.
func (s *SQLiteStorage) ListBranches(ctx context.Context) ([]types.Branch, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, last_indexed_commit_id, last_indexed_commit_hash FROM branches ORDER BY name`)
	if err != nil {
		return nil, wrapDBError("list branches", err)
	}
	defer rows.Close()

	var out []types.Branch
	for rows.Next() {
		var b types.Branch
		var lastID sql.NullInt64
		if err := rows.Scan(&b.ID, &b.Name, &lastID, &b.LastIndexedCommitHash); err != nil {
			return nil, wrapDBError("scan branch", err)
		}
		if lastID.Valid {
			b.LastIndexedCommitID = &lastID.Int64
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// RemoveBranch stops tracking a branch. Its branch_commits rows cascade-
// delete; commits, manifests, and dependency rows it alone referenced are
// left in place, since they remain valid history for any other branch that
// shares them.
func (s *SQLiteStorage) RemoveBranch(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM branches WHERE name = ?`, name)
	if err != nil {
		return wrapDBError("remove branch", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapDBError("remove branch", err)
	}
	if n == 0 {
		return types.ErrBranchNotFound
	}
	return nil
}

// GetManifest looks up a manifest by its (path, ecosystem, kind) key.
func (s *SQLiteStorage) GetManifest(ctx context.Context, path, ecosystem string, kind types.ManifestKind) (types.Manifest, bool, error) {
	var m types.Manifest
	err := s.db.QueryRowContext(ctx,
		`SELECT id, path, ecosystem, kind FROM manifests WHERE path = ? AND ecosystem = ? AND kind = ?`,
		path, ecosystem, string(kind)).
		Scan(&m.ID, &m.Path, &m.Ecosystem, &m.Kind)
	if err == sql.ErrNoRows {
		return types.Manifest{}, false, nil
	}
	if err != nil {
		return types.Manifest{}, false, wrapDBError("get manifest", err)
	}
	return m, true, nil
}

// LatestSnapshotAtOrBefore finds the nearest dependency_snapshots commit at
// or before commitPosition on the given branch (§4.6 step 1): the starting
// point for point-in-time reconstruction.
func (s *SQLiteStorage) LatestSnapshotAtOrBefore(ctx context.Context, branchID, commitPosition int64) (int64, bool, error) {
	var commitID int64
	err := s.db.QueryRowContext(ctx, `
		SELECT bc.commit_id
		FROM branch_commits bc
		JOIN dependency_snapshots ds ON ds.commit_id = bc.commit_id
		WHERE bc.branch_id = ? AND bc.position <= ?
		ORDER BY bc.position DESC
		LIMIT 1`, branchID, commitPosition).Scan(&commitID)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, wrapDBError("latest snapshot", err)
	}
	return commitID, true, nil
}

// SnapshotRows returns every dependency_snapshots row recorded for a
// commit, joined against manifests so callers (the Reconstructor) get the
// full (path, name) key without a second round-trip per row.
func (s *SQLiteStorage) SnapshotRows(ctx context.Context, commitID int64) ([]types.DependencySnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ds.id, ds.commit_id, ds.manifest_id, ds.name, ds.ecosystem, ds.purl, ds.requirement, ds.dependency_type,
		       m.path, m.kind
		FROM dependency_snapshots ds
		JOIN manifests m ON m.id = ds.manifest_id
		WHERE ds.commit_id = ?`, commitID)
	if err != nil {
		return nil, wrapDBError("snapshot rows", err)
	}
	defer rows.Close()

	var out []types.DependencySnapshot
	for rows.Next() {
		var sn types.DependencySnapshot
		var kind string
		if err := rows.Scan(&sn.ID, &sn.CommitID, &sn.ManifestID, &sn.Name, &sn.Ecosystem, &sn.Purl, &sn.Requirement, &sn.DependencyType,
			&sn.ManifestPath, &kind); err != nil {
			return nil, wrapDBError("scan snapshot row", err)
		}
		sn.ManifestKind = types.ManifestKind(kind)
		out = append(out, sn)
	}
	return out, rows.Err()
}

// ChangesBetween returns dependency_changes rows for commits strictly after
// fromCommitID up to and including toCommitID, in branch position order
// (§4.6 step 2): the deltas replayed forward from a snapshot).
func (s *SQLiteStorage) ChangesBetween(ctx context.Context, branchID, fromCommitID, toCommitID int64) ([]types.DependencyChange, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT dc.id, dc.commit_id, dc.manifest_id, dc.name, dc.ecosystem, dc.purl,
		       dc.change_type, dc.requirement, dc.previous_requirement, dc.dependency_type,
		       m.path, m.kind
		FROM dependency_changes dc
		JOIN branch_commits bc ON bc.commit_id = dc.commit_id AND bc.branch_id = ?
		JOIN manifests m ON m.id = dc.manifest_id
		WHERE bc.position > (
			SELECT COALESCE((SELECT position FROM branch_commits WHERE branch_id = ? AND commit_id = ?), -1)
		) AND bc.position <= (
			SELECT position FROM branch_commits WHERE branch_id = ? AND commit_id = ?
		)
		ORDER BY bc.position ASC, dc.id ASC`,
		branchID, branchID, fromCommitID, branchID, toCommitID)
	if err != nil {
		return nil, wrapDBError("changes between", err)
	}
	defer rows.Close()

	var out []types.DependencyChange
	for rows.Next() {
		var c types.DependencyChange
		var changeType, kind string
		if err := rows.Scan(&c.ID, &c.CommitID, &c.ManifestID, &c.Name, &c.Ecosystem, &c.Purl,
			&changeType, &c.Requirement, &c.PreviousRequirement, &c.DependencyType,
			&c.ManifestPath, &kind); err != nil {
			return nil, wrapDBError("scan change row", err)
		}
		c.ChangeType = types.ChangeType(changeType)
		c.ManifestKind = types.ManifestKind(kind)
		out = append(out, c)
	}
	return out, rows.Err()
}

// CommitPosition resolves a commit hash to its branch position and row ID.
// ok is false if the commit isn't indexed on that branch.
func (s *SQLiteStorage) CommitPosition(ctx context.Context, branchID int64, commitHash string) (int64, int64, bool, error) {
	var position, commitID int64
	err := s.db.QueryRowContext(ctx, `
		SELECT bc.position, bc.commit_id
		FROM branch_commits bc
		JOIN commits c ON c.id = bc.commit_id
		WHERE bc.branch_id = ? AND c.hash = ?`, branchID, commitHash).Scan(&position, &commitID)
	if err == sql.ErrNoRows {
		return 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, false, wrapDBError("commit position", err)
	}
	return position, commitID, true, nil
}
