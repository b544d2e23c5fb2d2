package sqlite

const schema = `
-- Commits table: every commit observed during indexing, regardless of how
-- many tracked branches reference it (§3).
CREATE TABLE IF NOT EXISTS commits (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    hash TEXT NOT NULL UNIQUE,
    message TEXT NOT NULL DEFAULT '',
    author_name TEXT NOT NULL DEFAULT '',
    author_email TEXT NOT NULL DEFAULT '',
    committed_at DATETIME NOT NULL,
    has_dep_changes INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_commits_committed_at ON commits(committed_at);

-- Branches table: named, tracked refs.
CREATE TABLE IF NOT EXISTS branches (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    last_indexed_commit_id INTEGER,
    last_indexed_commit_hash TEXT NOT NULL DEFAULT '',
    FOREIGN KEY (last_indexed_commit_id) REFERENCES commits(id)
);

-- Branch/commit links at a dense, monotonic position: the tie-break used
-- when two commits share a committed_at timestamp (§9).
CREATE TABLE IF NOT EXISTS branch_commits (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    branch_id INTEGER NOT NULL,
    commit_id INTEGER NOT NULL,
    position INTEGER NOT NULL,
    UNIQUE (branch_id, commit_id),
    UNIQUE (branch_id, position),
    FOREIGN KEY (branch_id) REFERENCES branches(id) ON DELETE CASCADE,
    FOREIGN KEY (commit_id) REFERENCES commits(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_branch_commits_branch_position ON branch_commits(branch_id, position);

-- Manifests table: a distinct (path, ecosystem, kind) triple observed in
-- history. The same path in different commits references one row.
CREATE TABLE IF NOT EXISTS manifests (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL,
    ecosystem TEXT NOT NULL,
    kind TEXT NOT NULL,
    UNIQUE (path, ecosystem, kind)
);

-- Dependency changes: the delta log. At most one row per (commit, manifest,
-- name) (§3 invariant).
CREATE TABLE IF NOT EXISTS dependency_changes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    commit_id INTEGER NOT NULL,
    manifest_id INTEGER NOT NULL,
    name TEXT NOT NULL,
    ecosystem TEXT NOT NULL,
    purl TEXT NOT NULL DEFAULT '',
    change_type TEXT NOT NULL,
    requirement TEXT NOT NULL DEFAULT '',
    previous_requirement TEXT,
    dependency_type TEXT NOT NULL DEFAULT '',
    UNIQUE (commit_id, manifest_id, name)
);

CREATE INDEX IF NOT EXISTS idx_dep_changes_commit ON dependency_changes(commit_id);
CREATE INDEX IF NOT EXISTS idx_dep_changes_manifest_name ON dependency_changes(manifest_id, name);

-- Dependency snapshots: a full materialization of the dependency set at a
-- commit, keyed by (commit, manifest, name). Written every SNAPSHOT_INTERVAL
-- dependency-changing commits and at every branch tip (§4.5 coverage
-- invariant).
CREATE TABLE IF NOT EXISTS dependency_snapshots (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    commit_id INTEGER NOT NULL,
    manifest_id INTEGER NOT NULL,
    name TEXT NOT NULL,
    ecosystem TEXT NOT NULL,
    purl TEXT NOT NULL DEFAULT '',
    requirement TEXT NOT NULL DEFAULT '',
    dependency_type TEXT NOT NULL DEFAULT '',
    UNIQUE (commit_id, manifest_id, name)
);

CREATE INDEX IF NOT EXISTS idx_dep_snapshots_commit ON dependency_snapshots(commit_id);

-- Config table: key/value store for pkgs.* settings persisted alongside the
-- indexed data (as opposed to process-level viper config), plus the schema
-- version marker.
CREATE TABLE IF NOT EXISTS config (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

INSERT OR IGNORE INTO config (key, value) VALUES ('schema_version', '1');
`
