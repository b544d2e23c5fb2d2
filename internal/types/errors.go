package types

import "errors"

// Sentinel errors for the taxonomy in spec §7. Callers should wrap these
// with fmt.Errorf("...: %w", ErrX) so errors.Is keeps working across layers.
var (
	// ErrNotInRepository means no git directory was found at or above cwd.
	ErrNotInRepository = errors.New("not in a repository")

	// ErrStoreMissing means a query was attempted before init.
	ErrStoreMissing = errors.New("store missing: run init first")

	// ErrSchemaMismatch means the store's schema version does not match
	// what this build expects, and no explicit migration was requested.
	ErrSchemaMismatch = errors.New("schema version mismatch")

	// ErrBranchNotFound means the named branch is not tracked (or does not
	// exist in the repository, depending on call site).
	ErrBranchNotFound = errors.New("branch not found")

	// ErrRefUnresolvable means a ref string did not resolve to a commit.
	ErrRefUnresolvable = errors.New("ref does not resolve")

	// ErrParseReject means ManifestParser rejected the content of a file it
	// otherwise recognized by path. Recovered locally by the analyzer:
	// treated as "no dependencies from this path".
	ErrParseReject = errors.New("manifest parser rejected content")

	// ErrGitRead means a blob or commit could not be read from the object
	// database. Fatal if the commit was previously indexed (CorruptState);
	// recoverable (skip, return nil) while lazily materializing a record.
	ErrGitRead = errors.New("git read error")

	// ErrStoreConflict means a unique-constraint violation occurred during
	// what should have been a conflict-ignoring insert: it indicates a
	// resume path that failed to use the resume protocol (§5).
	ErrStoreConflict = errors.New("store conflict: resume protocol violated")

	// ErrCorruptState is fatal: a unique-constraint violation occurred
	// during replay, meaning the delta log and snapshots have diverged.
	ErrCorruptState = errors.New("corrupt state")
)
