// Package types holds the data model shared by every layer of git-pkgs:
// the persisted entities (Commit, Branch, Manifest, DependencyChange,
// DependencySnapshot) and the in-memory working set used while indexing
// and reconstructing (Dependency, DependencyState).
package types

import "time"

// ChangeType is the kind of mutation a DependencyChange records.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeRemoved  ChangeType = "removed"
)

// ManifestKind distinguishes human-authored manifests from generated lockfiles.
type ManifestKind string

const (
	KindManifest ManifestKind = "manifest"
	KindLockfile ManifestKind = "lockfile"
)

// Commit is a single git commit observed during indexing.
//
// A commit is recorded at most once regardless of how many tracked branches
// reference it. Every field is immutable once inserted except HasDepChanges,
// which may flip false->true if the commit is re-analyzed under a wider file
// filter (e.g. pkgs.ecosystems changes between runs).
type Commit struct {
	ID             int64
	Hash           string
	Message        string
	AuthorName     string
	AuthorEmail    string
	CommittedAt    time.Time
	HasDepChanges  bool
}

// Branch is a named, tracked ref.
type Branch struct {
	ID                   int64
	Name                 string
	LastIndexedCommitID  *int64
	LastIndexedCommitHash string
}

// BranchCommit links a Branch to a Commit at a dense, monotonically
// increasing Position within that branch's indexed history. Position is the
// tie-break used when two commits share a CommittedAt timestamp (§9).
type BranchCommit struct {
	ID       int64
	BranchID int64
	CommitID int64
	Position int64

	// CommitHash identifies the commit this link belongs to before its row
	// exists. The Indexer fills this in and Store.Flush resolves it to a
	// CommitID within the same transaction that inserts the commit row;
	// never itself persisted.
	CommitHash string
}

// Manifest is a distinct (path, ecosystem, kind) triple observed in history.
// The same path appearing in different commits references one Manifest row.
type Manifest struct {
	ID        int64
	Path      string
	Ecosystem string
	Kind      ManifestKind
}

// DependencyChange is one row of the delta log: a single (commit, manifest,
// name) mutation. At most one row exists per (commit, manifest, name).
type DependencyChange struct {
	ID                  int64
	CommitID            int64
	ManifestID          int64
	Name                string
	Ecosystem           string
	Purl                string
	ChangeType          ChangeType
	Requirement         string
	PreviousRequirement *string
	DependencyType      string

	// ManifestPath and ManifestKind identify the manifest this change came
	// from before its row exists. The Analyzer fills these in; the Indexer
	// resolves them to a ManifestID via Store.InsertManifest and then
	// discards them — they are never persisted themselves.
	ManifestPath string
	ManifestKind ManifestKind

	// CommitHash identifies the commit this change belongs to before its
	// row exists; Store.Flush resolves it to a CommitID in the same
	// transaction that inserts the commit row (§4.1 per-commit atomicity).
	// Never persisted.
	CommitHash string
}

// DependencySnapshot is a full materialization of the dependency set at a
// commit, keyed by (commit, manifest, name).
type DependencySnapshot struct {
	ID             int64
	CommitID       int64
	ManifestID     int64
	Name           string
	Ecosystem      string
	Purl           string
	Requirement    string
	DependencyType string

	// ManifestPath and ManifestKind are joined in from the manifests table
	// by Store.SnapshotRows for callers (the Reconstructor) that need the
	// full DependencyKey; they are never written back.
	ManifestPath string
	ManifestKind ManifestKind

	// CommitHash identifies the commit this snapshot belongs to before its
	// row exists; resolved the same way as DependencyChange.CommitHash.
	CommitHash string
}

// DependencyKey identifies a Dependency within a commit: (manifest path, name).
type DependencyKey struct {
	ManifestPath string
	Name         string
}

// Dependency is the unit carried in memory during analysis and
// reconstruction.
type Dependency struct {
	ManifestPath   string
	Name           string
	Ecosystem      string
	Kind           ManifestKind
	Purl           string
	Requirement    string
	DependencyType string
}

// Equal reports whether two dependencies are identical in every field the
// analyzer compares when deciding whether a change is "modified" (§4.4 step
// 4): requirement, dependency type, ecosystem, and purl. ManifestPath/Name
// are the key, not part of the comparison.
func (d Dependency) Equal(o Dependency) bool {
	return d.Requirement == o.Requirement &&
		d.DependencyType == o.DependencyType &&
		d.Ecosystem == o.Ecosystem &&
		d.Purl == o.Purl
}

// DependencyState is the rolling in-memory snapshot threaded through
// indexing: after processing commit C it equals the set reconstructible by
// replaying all deltas up to and including C.
type DependencyState map[DependencyKey]Dependency

// Clone returns a deep copy so analysis can mutate a working copy without
// corrupting the caller's version (the analyzer's contract is that S_in is
// read-only and a new state is returned, not mutated in place).
func (s DependencyState) Clone() DependencyState {
	out := make(DependencyState, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// CommitDelta is the list of change records emitted by the analyzer for one
// commit. A nil/empty delta means the commit has no dependency changes.
type CommitDelta []DependencyChange

// ChangedPathStatus is the status of one path in a commit's diff against its
// first parent (or the full tree listing, for a parentless commit).
type ChangedPathStatus string

const (
	PathAdded    ChangedPathStatus = "added"
	PathModified ChangedPathStatus = "modified"
	PathRemoved  ChangedPathStatus = "removed"
)

// ChangedPath is one entry of GitReader.ChangedPaths.
type ChangedPath struct {
	Status ChangedPathStatus
	Path   string
}

// CommitRef identifies a commit as yielded by GitReader.Walk: enough to drive
// the pipeline without a second round-trip for basic metadata.
type CommitRef struct {
	Hash        string
	Message     string
	AuthorName  string
	AuthorEmail string
	CommittedAt time.Time
	ParentHashes []string
}

// IsMerge reports whether this commit has more than one parent.
func (c CommitRef) IsMerge() bool {
	return len(c.ParentHashes) > 1
}
