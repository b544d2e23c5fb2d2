// Package gitreader implements the GitReader external contract (§4.3) by
// shelling out to the real git binary, the same idiom the teacher uses for
// every git interaction: exec.Command with cmd.Dir set to the repository
// path, errors wrapped with the command's combined output attached.
package gitreader

import (
	"bufio"
	"bytes"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/git-pkgs/git-pkgs/internal/types"
)

// commitFieldSep and commitRecordSep are arbitrary byte sequences chosen to
// never collide with commit message content, used to split `git log`
// output into fields and records.
const (
	commitFieldSep  = "\x1f"
	commitRecordSep = "\x1e"
)

// Reader is the exec.Command-backed GitReader implementation.
type Reader struct {
	repoPath string
}

// New returns a Reader rooted at repoPath, which must be a git working
// directory or bare repository.
func New(repoPath string) *Reader {
	return &Reader{repoPath: repoPath}
}

func (r *Reader) run(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = r.repoPath
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w\nOutput: %s", strings.Join(args, " "), err, stderr.String())
	}
	return stdout.String(), nil
}

// ResolveRef resolves name to a commit hash, or ("", false) if it does not
// resolve (§4.3: resolve_ref(name) -> hash?).
func (r *Reader) ResolveRef(name string) (string, bool, error) {
	out, err := r.run("rev-parse", "--verify", "--quiet", name+"^{commit}")
	if err != nil {
		return "", false, nil
	}
	return strings.TrimSpace(out), true, nil
}

// DefaultBranch returns the repository's default branch: the remote HEAD
// pointer if one exists, else the currently checked-out branch, else a
// probe of common names (main, master).
func (r *Reader) DefaultBranch() (string, error) {
	if out, err := r.run("symbolic-ref", "--quiet", "--short", "refs/remotes/origin/HEAD"); err == nil {
		if name := strings.TrimPrefix(strings.TrimSpace(out), "origin/"); name != "" {
			return name, nil
		}
	}
	if out, err := r.run("symbolic-ref", "--quiet", "--short", "HEAD"); err == nil {
		if name := strings.TrimSpace(out); name != "" {
			return name, nil
		}
	}
	for _, candidate := range []string{"main", "master"} {
		if exists, _ := r.BranchExists(candidate); exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: no default branch found", types.ErrBranchNotFound)
}

// BranchExists reports whether name is a local or remote-tracking branch.
func (r *Reader) BranchExists(name string) (bool, error) {
	if _, err := r.run("show-ref", "--verify", "--quiet", "refs/heads/"+name); err == nil {
		return true, nil
	}
	if _, err := r.run("show-ref", "--verify", "--quiet", "refs/remotes/origin/"+name); err == nil {
		return true, nil
	}
	return false, nil
}

// BranchTip returns the hash of name's current tip.
func (r *Reader) BranchTip(name string) (string, error) {
	hash, ok, err := r.ResolveRef(name)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", types.ErrBranchNotFound, name)
	}
	return hash, nil
}

// Parents returns the CommitRef for each parent of hash.
func (r *Reader) Parents(hash string) ([]types.CommitRef, error) {
	c, err := r.commitAt(hash)
	if err != nil {
		return nil, err
	}
	parents := make([]types.CommitRef, 0, len(c.ParentHashes))
	for _, p := range c.ParentHashes {
		pc, err := r.commitAt(p)
		if err != nil {
			return nil, err
		}
		parents = append(parents, pc)
	}
	return parents, nil
}

// IsMerge reports whether hash names a commit with more than one parent.
func (r *Reader) IsMerge(hash string) (bool, error) {
	c, err := r.commitAt(hash)
	if err != nil {
		return false, err
	}
	return c.IsMerge(), nil
}

// logFormat produces one record per commit: hash, parent hashes
// (space-separated), author name, author email, committer date (unix,
// since reconstructing history must be stable across author-date rewrites),
// and the subject line, each field separated by commitFieldSep and each
// record terminated by commitRecordSep.
const logFormat = "%H" + commitFieldSep + "%P" + commitFieldSep + "%an" + commitFieldSep + "%ae" + commitFieldSep + "%ct" + commitFieldSep + "%s" + commitRecordSep

func (r *Reader) commitAt(hash string) (types.CommitRef, error) {
	out, err := r.run("log", "-1", "--format="+logFormat, hash)
	if err != nil {
		return types.CommitRef{}, fmt.Errorf("%w: %s", types.ErrGitRead, err)
	}
	recs, err := parseLogOutput(out)
	if err != nil || len(recs) == 0 {
		return types.CommitRef{}, fmt.Errorf("%w: commit %s not found", types.ErrGitRead, hash)
	}
	return recs[0], nil
}

func parseLogOutput(out string) ([]types.CommitRef, error) {
	var refs []types.CommitRef
	for _, rec := range strings.Split(out, commitRecordSep) {
		rec = strings.TrimSpace(rec)
		if rec == "" {
			continue
		}
		fields := strings.Split(rec, commitFieldSep)
		if len(fields) < 6 {
			return nil, fmt.Errorf("unexpected git log record shape: %q", rec)
		}
		unixSec, err := strconv.ParseInt(strings.TrimSpace(fields[4]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing commit timestamp: %w", err)
		}
		var parents []string
		if p := strings.TrimSpace(fields[1]); p != "" {
			parents = strings.Split(p, " ")
		}
		refs = append(refs, types.CommitRef{
			Hash:         fields[0],
			Message:      fields[5],
			AuthorName:   fields[2],
			AuthorEmail:  fields[3],
			CommittedAt:  time.Unix(unixSec, 0).UTC(),
			ParentHashes: parents,
		})
	}
	return refs, nil
}

// Walk yields commits reachable from branchName in git's --topo-order (no
// parent before its children, separate lines of history not intermixed),
// reversed so the oldest comes first, excluding everything
// reachable from sinceHash (empty sinceHash means the full history).
//
// This materializes the full commit list rather than truly streaming, but
// presents an iterator-shaped callback so callers (the Indexer) are
// insulated from that: a later revision can replace this with an
// incrementally-read `git log` pipe without changing call sites.
func (r *Reader) Walk(branchName, sinceHash string, yield func(types.CommitRef) error) error {
	args := []string{"log", "--topo-order", "--reverse", "--format=" + logFormat, branchName}
	if sinceHash != "" {
		args = append(args, "^"+sinceHash)
	}
	out, err := r.run(args...)
	if err != nil {
		return fmt.Errorf("%w: %s", types.ErrGitRead, err)
	}
	refs, err := parseLogOutput(out)
	if err != nil {
		return err
	}
	for _, c := range refs {
		if err := yield(c); err != nil {
			return err
		}
	}
	return nil
}

// ChangedPaths returns the diff of hash against its first parent, or the
// full tree listing if hash is parentless.
func (r *Reader) ChangedPaths(hash string) ([]types.ChangedPath, error) {
	c, err := r.commitAt(hash)
	if err != nil {
		return nil, err
	}
	if len(c.ParentHashes) == 0 {
		return r.rootTreePaths(hash)
	}
	out, err := r.run("diff-tree", "--no-commit-id", "--name-status", "-r", c.ParentHashes[0], hash)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrGitRead, err)
	}
	var paths []types.ChangedPath
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, "\t", 2)
		if len(fields) != 2 {
			continue
		}
		paths = append(paths, types.ChangedPath{
			Status: diffStatus(fields[0]),
			Path:   fields[1],
		})
	}
	return paths, nil
}

func diffStatus(code string) types.ChangedPathStatus {
	switch {
	case strings.HasPrefix(code, "A"):
		return types.PathAdded
	case strings.HasPrefix(code, "D"):
		return types.PathRemoved
	default:
		return types.PathModified
	}
}

func (r *Reader) rootTreePaths(hash string) ([]types.ChangedPath, error) {
	out, err := r.run("ls-tree", "-r", "--name-only", hash)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrGitRead, err)
	}
	var paths []types.ChangedPath
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			paths = append(paths, types.ChangedPath{Status: types.PathAdded, Path: line})
		}
	}
	return paths, nil
}

// TreePaths lists every blob path in commit's full tree, for stateless
// reconstruction (§4.6) where there is no prior commit to diff against.
func (r *Reader) TreePaths(commit string) ([]types.ChangedPath, error) {
	return r.rootTreePaths(commit)
}

// BlobAt returns path's content at commit, or (nil, false) if path does not
// exist in that commit's tree.
func (r *Reader) BlobAt(commit, path string) ([]byte, bool, error) {
	return r.blob(commit, path)
}

// BlobBefore returns path's content in commit's first parent, or (nil,
// false) if commit is parentless or path did not exist there.
func (r *Reader) BlobBefore(commit, path string) ([]byte, bool, error) {
	c, err := r.commitAt(commit)
	if err != nil {
		return nil, false, err
	}
	if len(c.ParentHashes) == 0 {
		return nil, false, nil
	}
	return r.blob(c.ParentHashes[0], path)
}

func (r *Reader) blob(commit, path string) ([]byte, bool, error) {
	cmd := exec.Command("git", "cat-file", "blob", commit+":"+path)
	cmd.Dir = r.repoPath
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		// git cat-file exits nonzero both for "path does not exist" and for
		// genuine object-database corruption; the former is the overwhelming
		// common case (files added/removed across history) so it is treated
		// as a normal miss, not an error.
		return nil, false, nil
	}
	return stdout.Bytes(), true, nil
}

// PrefetchBlobPaths is an optional batching hint (§4.3); this implementation
// has no warm cache to populate, so it is a no-op.
func (r *Reader) PrefetchBlobPaths(hashes []string) {
	_ = hashes
}
