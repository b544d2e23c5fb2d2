// Package analyzer implements the DependencyAnalyzer (§4.4): converting one
// commit plus a rolling DependencyState into a CommitDelta and the next
// DependencyState.
package analyzer

import (
	"fmt"
	"sort"

	"github.com/git-pkgs/git-pkgs/internal/manifest"
	"github.com/git-pkgs/git-pkgs/internal/purl"
	"github.com/git-pkgs/git-pkgs/internal/types"
)

// CommitReader is the subset of GitReader the analyzer needs: diffing a
// commit against its parent and reading blob content at or before it.
// Accepting this narrow interface rather than the full GitReader keeps the
// analyzer testable with a fake that only implements what it actually uses.
type CommitReader interface {
	IsMerge(hash string) (bool, error)
	ChangedPaths(hash string) ([]types.ChangedPath, error)
	BlobAt(commit, path string) ([]byte, bool, error)
	BlobBefore(commit, path string) ([]byte, bool, error)
}

// Analyzer implements the §4.4 algorithm against a CommitReader and a
// manifest.Registry.
type Analyzer struct {
	git      CommitReader
	registry *manifest.Registry
}

// New builds an Analyzer.
func New(git CommitReader, registry *manifest.Registry) *Analyzer {
	return &Analyzer{git: git, registry: registry}
}

// Analyze runs the six-step algorithm of §4.4 for commit hash against
// state, returning the emitted delta and the next state. state is never
// mutated; the returned state is always a distinct map.
func (a *Analyzer) Analyze(hash string, state types.DependencyState) (types.CommitDelta, types.DependencyState, error) {
	isMerge, err := a.git.IsMerge(hash)
	if err != nil {
		return nil, nil, fmt.Errorf("checking merge status of %s: %w", hash, err)
	}
	if isMerge {
		// Step 1: merges never contribute dependency evidence.
		return nil, state.Clone(), nil
	}

	changed, err := a.git.ChangedPaths(hash)
	if err != nil {
		return nil, nil, fmt.Errorf("listing changed paths for %s: %w", hash, err)
	}

	// Step 2: keep only paths a parser recognizes.
	type recognizedPath struct {
		path   string
		status types.ChangedPathStatus
	}
	var recognized []recognizedPath
	for _, c := range changed {
		if a.registry.Recognize(c.Path) != nil {
			recognized = append(recognized, recognizedPath{path: c.Path, status: c.Status})
		}
	}

	next := state.Clone()
	var delta types.CommitDelta
	emitted := make(map[types.DependencyKey]bool) // step 5 tie-break guard

	for _, rp := range recognized {
		// Step 3: compute curr (the "after" set for this path).
		var curr map[string]manifest.Dependency
		var ecosystem string
		var kind types.ManifestKind

		if rp.status == types.PathRemoved {
			curr = nil // everything under this path is gone
		} else {
			content, ok, err := a.git.BlobAt(hash, rp.path)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: reading %s at %s", types.ErrGitRead, rp.path, hash)
			}
			if !ok {
				curr = nil
			} else {
				result, ok := a.registry.Parse(rp.path, content)
				if !ok {
					// Step 3b: parser rejection is treated as a removal.
					curr = nil
				} else {
					ecosystem, kind = result.Ecosystem, result.Kind
					curr = make(map[string]manifest.Dependency, len(result.Dependencies))
					for _, d := range result.Dependencies {
						curr[d.Name] = d
					}
				}
			}
		}

		// Step 4: prev is everything in state keyed under this manifest path.
		prev := make(map[string]types.Dependency)
		for k, dep := range state {
			if k.ManifestPath == rp.path {
				prev[k.Name] = dep
			}
		}
		if ecosystem == "" {
			// Ecosystem/kind unknown from this commit's content (removal or
			// rejection): fall back to whatever the path was last known as,
			// so a subsequent re-add under the same path stays consistent.
			for _, dep := range prev {
				ecosystem, kind = dep.Ecosystem, dep.Kind
				break
			}
		}

		currNames := make([]string, 0, len(curr))
		for name := range curr {
			currNames = append(currNames, name)
		}
		sort.Strings(currNames)

		for _, name := range currNames {
			d := curr[name]
			key := types.DependencyKey{ManifestPath: rp.path, Name: name}
			p, existed := prev[name]
			dep := types.Dependency{
				ManifestPath:   rp.path,
				Name:           name,
				Ecosystem:      ecosystem,
				Kind:           kind,
				Purl:           purl.Build(ecosystem, name, lockfileVersion(kind, d.Requirement)),
				Requirement:    d.Requirement,
				DependencyType: d.DependencyType,
			}

			if !existed {
				if emitted[key] {
					continue // step 5: tie-break, first enumeration wins
				}
				emitted[key] = true
				delta = append(delta, types.DependencyChange{
					CommitID:       0, // filled in by the caller (Indexer) once the commit row exists
					ManifestPath:   rp.path,
					ManifestKind:   kind,
					Name:           name,
					Ecosystem:      ecosystem,
					Purl:           dep.Purl,
					ChangeType:     types.ChangeAdded,
					Requirement:    dep.Requirement,
					DependencyType: dep.DependencyType,
				})
			} else if !p.Equal(dep) {
				prevReq := p.Requirement
				delta = append(delta, types.DependencyChange{
					ManifestPath:        rp.path,
					ManifestKind:        kind,
					Name:                name,
					Ecosystem:           ecosystem,
					Purl:                dep.Purl,
					ChangeType:          types.ChangeModified,
					Requirement:         dep.Requirement,
					PreviousRequirement: &prevReq,
					DependencyType:      dep.DependencyType,
				})
			}
			next[key] = dep
		}

		prevNames := make([]string, 0, len(prev))
		for name := range prev {
			prevNames = append(prevNames, name)
		}
		sort.Strings(prevNames)

		for _, name := range prevNames {
			if _, stillPresent := curr[name]; stillPresent {
				continue
			}
			delta = append(delta, types.DependencyChange{
				ManifestPath:   rp.path,
				ManifestKind:   prev[name].Kind,
				Name:           name,
				Ecosystem:      prev[name].Ecosystem,
				Purl:           prev[name].Purl,
				ChangeType:     types.ChangeRemoved,
				Requirement:    prev[name].Requirement,
				DependencyType: prev[name].DependencyType,
			})
			delete(next, types.DependencyKey{ManifestPath: rp.path, Name: name})
		}
	}

	return delta, next, nil
}

// lockfileVersion returns requirement when kind is a lockfile (purls pin a
// version only for lockfile-derived dependencies, §6), else "".
func lockfileVersion(kind types.ManifestKind, requirement string) string {
	if kind == types.KindLockfile {
		return requirement
	}
	return ""
}
