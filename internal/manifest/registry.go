package manifest

import (
	"path"
	"strings"
)

// Registry holds an ordered set of ManifestParsers (Design Notes §9's
// capability-set replacement for a reflection-based lookup) plus the
// deny-list filters from pkgs.ignoredDirs / pkgs.ignoredFiles.
type Registry struct {
	parsers      []ManifestParser
	ignoredDirs  []string
	ignoredFiles []string
	ecosystems   map[string]bool // nil means "allow everything"
}

// Config carries the registry's deny-list and ecosystem-filter settings,
// loaded once into the registry at construction (§5's "loads exactly once"
// rule) rather than re-read from config on every call.
type Config struct {
	IgnoredDirs  []string
	IgnoredFiles []string
	Ecosystems   []string // empty/nil means "allow everything"
}

// NewRegistry builds a Registry with the built-in parsers plus any extra
// parsers supplied (e.g. WASM plugins loaded by the caller).
func NewRegistry(cfg Config, extra ...ManifestParser) *Registry {
	r := &Registry{
		ignoredDirs:  cfg.IgnoredDirs,
		ignoredFiles: cfg.IgnoredFiles,
		parsers:      append(builtinParsers(), extra...),
	}
	if len(cfg.Ecosystems) > 0 {
		r.ecosystems = make(map[string]bool, len(cfg.Ecosystems))
		for _, e := range cfg.Ecosystems {
			r.ecosystems[strings.ToLower(e)] = true
		}
	}
	return r
}

func builtinParsers() []ManifestParser {
	return []ManifestParser{
		goModParser{},
		goSumParser{},
		cargoTomlParser{},
		cargoLockParser{},
		pyprojectTomlParser{},
		packageJSONParser{},
		packageLockJSONParser{},
		pnpmLockParser{},
		gemfileParser{},
		gemfileLockParser{},
	}
}

// denied reports whether path is excluded by the configured deny list,
// independent of which parser would otherwise recognize it.
func (r *Registry) denied(p string) bool {
	clean := path.Clean(p)
	for _, dir := range r.ignoredDirs {
		dir = strings.TrimSuffix(dir, "/")
		if clean == dir || strings.HasPrefix(clean, dir+"/") {
			return true
		}
	}
	base := path.Base(clean)
	for _, glob := range r.ignoredFiles {
		if ok, _ := path.Match(glob, base); ok {
			return true
		}
	}
	return false
}

// Recognize returns the first parser in registration order that recognizes
// path, or nil if none does or path is denied.
func (r *Registry) Recognize(p string) ManifestParser {
	if r.denied(p) {
		return nil
	}
	for _, parser := range r.parsers {
		if parser.Recognizes(p) {
			return parser
		}
	}
	return nil
}

// Parse recognizes and parses path in one call, additionally applying the
// pkgs.ecosystems allow list: a recognized-but-filtered-out ecosystem is
// reported as not-ok, the same as "not recognized" from the analyzer's
// point of view.
func (r *Registry) Parse(p string, content []byte) (ParseResult, bool) {
	parser := r.Recognize(p)
	if parser == nil {
		return ParseResult{}, false
	}
	result, ok := parser.Parse(p, content)
	if !ok {
		return ParseResult{}, false
	}
	if r.ecosystems != nil && !r.ecosystems[strings.ToLower(result.Ecosystem)] {
		return ParseResult{}, false
	}
	return result, true
}
