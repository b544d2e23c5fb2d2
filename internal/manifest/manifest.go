// Package manifest implements the ManifestParser external contract (§4.2):
// recognizing manifest/lockfile paths and parsing their dependency sets.
//
// Built-in parsers cover go.mod, go.sum, Cargo.toml, Cargo.lock,
// pyproject.toml, package.json, package-lock.json, pnpm-lock.yaml, Gemfile,
// and Gemfile.lock. A Registry tries each in order and
// additional parsers can be loaded from WASM modules (wasm.go) for
// ecosystems not built in.
package manifest

import "github.com/git-pkgs/git-pkgs/internal/types"

// Dependency is one entry of a ParseResult.
type Dependency struct {
	Name           string
	Requirement    string
	DependencyType string
}

// ParseResult is a ManifestParser's output for one recognized file.
type ParseResult struct {
	Ecosystem    string
	Kind         types.ManifestKind
	Dependencies []Dependency
}

// ManifestParser is the external contract of §4.2: deterministic for
// identical input bytes, performs no network or filesystem I/O, and
// returns "not recognized" rather than raising on malformed content.
type ManifestParser interface {
	// Name identifies the parser for logging and deny-list diagnostics.
	Name() string

	// Recognizes is the cheap path-pattern check (§4.4 step 2): it must not
	// read file content.
	Recognizes(path string) bool

	// Parse parses the content of a path this parser recognizes. ok is
	// false if the content is malformed beyond what this parser can
	// interpret; the analyzer treats that the same as a removal (§4.4 step
	// 3b).
	Parse(path string, content []byte) (result ParseResult, ok bool)
}
