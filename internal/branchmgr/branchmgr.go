// Package branchmgr implements the BranchManager (§4.7): add/remove/list
// operations over tracked branches, thin orchestration atop the Store and
// Indexer.
package branchmgr

import (
	"context"
	"fmt"

	"github.com/git-pkgs/git-pkgs/internal/store"
	"github.com/git-pkgs/git-pkgs/internal/types"
)

// GitBranches is the subset of GitReader the manager needs to validate a
// branch name and find the repository's default.
type GitBranches interface {
	BranchExists(name string) (bool, error)
	DefaultBranch() (string, error)
}

// Indexer is the subset of the Indexer the manager drives when a branch is
// added: a newly tracked branch is indexed in full before it's reported as
// tracked.
type Indexer interface {
	Init(ctx context.Context, branchName, fromHash string) error
}

// BranchManager implements §4.7's add/remove/list/default operations.
type BranchManager struct {
	store store.Store
	git   GitBranches
	index Indexer
}

// New builds a BranchManager.
func New(st store.Store, git GitBranches, index Indexer) *BranchManager {
	return &BranchManager{store: st, git: git, index: index}
}

// Add registers name as a tracked branch and triggers a full index over it.
// The branch must exist in the underlying git repository.
func (m *BranchManager) Add(ctx context.Context, name string) error {
	exists, err := m.git.BranchExists(name)
	if err != nil {
		return fmt.Errorf("checking branch %s: %w", name, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", types.ErrBranchNotFound, name)
	}
	if _, err := m.store.GetOrCreateBranch(ctx, name); err != nil {
		return fmt.Errorf("registering branch %s: %w", name, err)
	}
	if err := m.index.Init(ctx, name, ""); err != nil {
		return fmt.Errorf("indexing branch %s: %w", name, err)
	}
	return nil
}

// Remove stops tracking name. Its BranchCommit links are dropped; commits,
// manifests, and dependency rows shared with other tracked branches remain.
func (m *BranchManager) Remove(ctx context.Context, name string) error {
	if err := m.store.RemoveBranch(ctx, name); err != nil {
		return fmt.Errorf("removing branch %s: %w", name, err)
	}
	return nil
}

// BranchSummary is one entry of List's derived stats.
type BranchSummary struct {
	Name                  string
	LastIndexedCommitHash string
	Indexed               bool
}

// List enumerates tracked branches with derived stats.
func (m *BranchManager) List(ctx context.Context) ([]BranchSummary, error) {
	branches, err := m.store.ListBranches(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing branches: %w", err)
	}
	out := make([]BranchSummary, len(branches))
	for i, b := range branches {
		out[i] = BranchSummary{
			Name:                  b.Name,
			LastIndexedCommitHash: b.LastIndexedCommitHash,
			Indexed:               b.LastIndexedCommitHash != "",
		}
	}
	return out, nil
}

// Default returns the repository's default branch, per GitReader.
func (m *BranchManager) Default(ctx context.Context) (string, error) {
	_ = ctx
	return m.git.DefaultBranch()
}
