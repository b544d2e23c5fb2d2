package manifest

import (
	"encoding/json"
	"path"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/mod/modfile"
	"gopkg.in/yaml.v3"

	"github.com/git-pkgs/git-pkgs/internal/types"
)

// --- go.mod ---

type goModParser struct{}

func (goModParser) Name() string { return "go.mod" }

func (goModParser) Recognizes(p string) bool {
	return path.Base(p) == "go.mod"
}

func (goModParser) Parse(p string, content []byte) (ParseResult, bool) {
	f, err := modfile.Parse(p, content, nil)
	if err != nil {
		return ParseResult{}, false
	}
	var deps []Dependency
	for _, req := range f.Require {
		depType := "direct"
		if req.Indirect {
			depType = "indirect"
		}
		deps = append(deps, Dependency{
			Name:           req.Mod.Path,
			Requirement:    req.Mod.Version,
			DependencyType: depType,
		})
	}
	return ParseResult{Ecosystem: "go", Kind: types.KindManifest, Dependencies: deps}, true
}

// --- go.sum (lockfile) ---

type goSumParser struct{}

func (goSumParser) Name() string { return "go.sum" }

func (goSumParser) Recognizes(p string) bool {
	return path.Base(p) == "go.sum"
}

// Parse interprets go.sum lines of the form "module version hash". Each
// module/version pair appears twice (module hash, module/go.mod hash); the
// second is a duplicate of the same requirement and is skipped.
func (goSumParser) Parse(_ string, content []byte) (ParseResult, bool) {
	seen := make(map[string]bool)
	var deps []Dependency
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return ParseResult{}, false
		}
		mod, version := fields[0], strings.TrimSuffix(fields[1], "/go.mod")
		key := mod + "@" + version
		if seen[key] {
			continue
		}
		seen[key] = true
		deps = append(deps, Dependency{Name: mod, Requirement: version, DependencyType: "direct"})
	}
	return ParseResult{Ecosystem: "go", Kind: types.KindLockfile, Dependencies: deps}, true
}

// --- Cargo.toml ---

type cargoTomlParser struct{}

func (cargoTomlParser) Name() string { return "Cargo.toml" }

func (cargoTomlParser) Recognizes(p string) bool {
	return path.Base(p) == "Cargo.toml"
}

type cargoManifest struct {
	Dependencies    map[string]tomlDependency `toml:"dependencies"`
	DevDependencies map[string]tomlDependency `toml:"dev-dependencies"`
	BuildDependencies map[string]tomlDependency `toml:"build-dependencies"`
}

// tomlDependency accepts both `dep = "1.0"` and `dep = { version = "1.0" }`
// forms by unmarshaling into a string first and falling back to a struct.
type tomlDependency struct {
	Version string
	Simple  string
}

func (d *tomlDependency) UnmarshalTOML(data interface{}) error {
	switch v := data.(type) {
	case string:
		d.Simple = v
	case map[string]interface{}:
		if ver, ok := v["version"].(string); ok {
			d.Version = ver
		}
	}
	return nil
}

func (d tomlDependency) requirement() string {
	if d.Simple != "" {
		return d.Simple
	}
	return d.Version
}

func (cargoTomlParser) Parse(_ string, content []byte) (ParseResult, bool) {
	var m cargoManifest
	if err := toml.Unmarshal(content, &m); err != nil {
		return ParseResult{}, false
	}
	var deps []Dependency
	for name, d := range m.Dependencies {
		deps = append(deps, Dependency{Name: name, Requirement: d.requirement(), DependencyType: "direct"})
	}
	for name, d := range m.DevDependencies {
		deps = append(deps, Dependency{Name: name, Requirement: d.requirement(), DependencyType: "dev"})
	}
	for name, d := range m.BuildDependencies {
		deps = append(deps, Dependency{Name: name, Requirement: d.requirement(), DependencyType: "build"})
	}
	return ParseResult{Ecosystem: "cargo", Kind: types.KindManifest, Dependencies: deps}, true
}

// --- Cargo.lock (lockfile) ---

type cargoLockParser struct{}

func (cargoLockParser) Name() string { return "Cargo.lock" }

func (cargoLockParser) Recognizes(p string) bool {
	return path.Base(p) == "Cargo.lock"
}

type cargoLockfile struct {
	Package []struct {
		Name    string `toml:"name"`
		Version string `toml:"version"`
	} `toml:"package"`
}

func (cargoLockParser) Parse(_ string, content []byte) (ParseResult, bool) {
	var lf cargoLockfile
	if err := toml.Unmarshal(content, &lf); err != nil {
		return ParseResult{}, false
	}
	var deps []Dependency
	for _, pkg := range lf.Package {
		deps = append(deps, Dependency{Name: pkg.Name, Requirement: pkg.Version, DependencyType: "direct"})
	}
	return ParseResult{Ecosystem: "cargo", Kind: types.KindLockfile, Dependencies: deps}, true
}

// --- pyproject.toml ---

type pyprojectTomlParser struct{}

func (pyprojectTomlParser) Name() string { return "pyproject.toml" }

func (pyprojectTomlParser) Recognizes(p string) bool {
	return path.Base(p) == "pyproject.toml"
}

type pyprojectManifest struct {
	Project struct {
		Dependencies []string `toml:"dependencies"`
	} `toml:"project"`
	Tool struct {
		Poetry struct {
			Dependencies map[string]tomlDependency `toml:"dependencies"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

func (pyprojectTomlParser) Parse(_ string, content []byte) (ParseResult, bool) {
	var m pyprojectManifest
	if err := toml.Unmarshal(content, &m); err != nil {
		return ParseResult{}, false
	}
	var deps []Dependency
	for _, spec := range m.Project.Dependencies {
		name, req := splitPEP508(spec)
		deps = append(deps, Dependency{Name: name, Requirement: req, DependencyType: "direct"})
	}
	for name, d := range m.Tool.Poetry.Dependencies {
		if strings.EqualFold(name, "python") {
			continue
		}
		deps = append(deps, Dependency{Name: name, Requirement: d.requirement(), DependencyType: "direct"})
	}
	return ParseResult{Ecosystem: "pypi", Kind: types.KindManifest, Dependencies: deps}, true
}

// splitPEP508 splits a PEP 508 requirement string ("requests>=2.0") into
// name and version specifier, dropping any environment marker suffix.
func splitPEP508(spec string) (name, requirement string) {
	spec = strings.SplitN(spec, ";", 2)[0]
	spec = strings.TrimSpace(spec)
	for i, c := range spec {
		if c == '=' || c == '>' || c == '<' || c == '!' || c == '~' {
			return strings.TrimSpace(spec[:i]), strings.TrimSpace(spec[i:])
		}
	}
	return spec, ""
}

// --- package.json ---

type packageJSONParser struct{}

func (packageJSONParser) Name() string { return "package.json" }

func (packageJSONParser) Recognizes(p string) bool {
	return path.Base(p) == "package.json"
}

type packageJSONManifest struct {
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

func (packageJSONParser) Parse(_ string, content []byte) (ParseResult, bool) {
	var m packageJSONManifest
	if err := json.Unmarshal(content, &m); err != nil {
		return ParseResult{}, false
	}
	var deps []Dependency
	for name, req := range m.Dependencies {
		deps = append(deps, Dependency{Name: name, Requirement: req, DependencyType: "direct"})
	}
	for name, req := range m.DevDependencies {
		deps = append(deps, Dependency{Name: name, Requirement: req, DependencyType: "dev"})
	}
	return ParseResult{Ecosystem: "npm", Kind: types.KindManifest, Dependencies: deps}, true
}

// --- package-lock.json (lockfile) ---

type packageLockJSONParser struct{}

func (packageLockJSONParser) Name() string { return "package-lock.json" }

func (packageLockJSONParser) Recognizes(p string) bool {
	return path.Base(p) == "package-lock.json"
}

// packageLockJSONFile covers the npm lockfile v2/v3 "packages" layout,
// keyed by install path ("", "node_modules/foo", "node_modules/foo/node_modules/bar"),
// and falls back to the legacy v1 "dependencies" map keyed by bare name.
type packageLockJSONFile struct {
	Packages map[string]struct {
		Version string `json:"version"`
		Dev     bool   `json:"dev"`
	} `json:"packages"`
	Dependencies map[string]struct {
		Version string `json:"version"`
		Dev     bool   `json:"dev"`
	} `json:"dependencies"`
}

func (packageLockJSONParser) Parse(_ string, content []byte) (ParseResult, bool) {
	var lf packageLockJSONFile
	if err := json.Unmarshal(content, &lf); err != nil {
		return ParseResult{}, false
	}
	var deps []Dependency
	if len(lf.Packages) > 0 {
		for p, pkg := range lf.Packages {
			if p == "" {
				continue // the root project entry, not a dependency
			}
			name := path.Base(p)
			depType := "direct"
			if pkg.Dev {
				depType = "dev"
			}
			deps = append(deps, Dependency{Name: name, Requirement: pkg.Version, DependencyType: depType})
		}
		return ParseResult{Ecosystem: "npm", Kind: types.KindLockfile, Dependencies: deps}, true
	}
	for name, pkg := range lf.Dependencies {
		depType := "direct"
		if pkg.Dev {
			depType = "dev"
		}
		deps = append(deps, Dependency{Name: name, Requirement: pkg.Version, DependencyType: depType})
	}
	return ParseResult{Ecosystem: "npm", Kind: types.KindLockfile, Dependencies: deps}, true
}

// --- pnpm-lock.yaml ---

type pnpmLockParser struct{}

func (pnpmLockParser) Name() string { return "pnpm-lock.yaml" }

func (pnpmLockParser) Recognizes(p string) bool {
	return path.Base(p) == "pnpm-lock.yaml"
}

type pnpmLockfile struct {
	Importers map[string]struct {
		Dependencies map[string]struct {
			Version string `yaml:"version"`
		} `yaml:"dependencies"`
		DevDependencies map[string]struct {
			Version string `yaml:"version"`
		} `yaml:"devDependencies"`
	} `yaml:"importers"`
}

func (pnpmLockParser) Parse(_ string, content []byte) (ParseResult, bool) {
	var lf pnpmLockfile
	if err := yaml.Unmarshal(content, &lf); err != nil {
		return ParseResult{}, false
	}
	var deps []Dependency
	for _, importer := range lf.Importers {
		for name, d := range importer.Dependencies {
			deps = append(deps, Dependency{Name: name, Requirement: resolvedVersion(d.Version), DependencyType: "direct"})
		}
		for name, d := range importer.DevDependencies {
			deps = append(deps, Dependency{Name: name, Requirement: resolvedVersion(d.Version), DependencyType: "dev"})
		}
	}
	return ParseResult{Ecosystem: "pnpm", Kind: types.KindLockfile, Dependencies: deps}, true
}

// resolvedVersion strips a pnpm peer-dependency suffix like
// "4.17.21(patch_hash)" down to the bare resolved version.
func resolvedVersion(v string) string {
	if i := strings.IndexByte(v, '('); i >= 0 {
		return v[:i]
	}
	return v
}

// --- Gemfile (hand-rolled: no stable Ruby-DSL library exists in the
// ecosystem the teacher or the example pack draws from, so this reads the
// small declarative subset git-pkgs needs directly) ---

type gemfileParser struct{}

func (gemfileParser) Name() string { return "Gemfile" }

func (gemfileParser) Recognizes(p string) bool {
	return path.Base(p) == "Gemfile"
}

func (gemfileParser) Parse(_ string, content []byte) (ParseResult, bool) {
	var deps []Dependency
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "gem ") && !strings.HasPrefix(line, "gem\t") {
			continue
		}
		name, req, ok := parseGemLine(line)
		if !ok {
			continue
		}
		deps = append(deps, Dependency{Name: name, Requirement: req, DependencyType: "direct"})
	}
	return ParseResult{Ecosystem: "rubygems", Kind: types.KindManifest, Dependencies: deps}, true
}

func parseGemLine(line string) (name, requirement string, ok bool) {
	rest := strings.TrimSpace(strings.TrimPrefix(line, "gem"))
	parts := strings.Split(rest, ",")
	if len(parts) == 0 {
		return "", "", false
	}
	name, ok = unquote(strings.TrimSpace(parts[0]))
	if !ok {
		return "", "", false
	}
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		if strings.Contains(p, ":") {
			continue // keyword arg such as require: false, group: :test
		}
		if req, isStr := unquote(p); isStr {
			requirement = req
			break
		}
	}
	return name, requirement, true
}

func unquote(s string) (string, bool) {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1], true
	}
	return "", false
}

// --- Gemfile.lock (lockfile, hand-rolled for the same reason as Gemfile) ---

type gemfileLockParser struct{}

func (gemfileLockParser) Name() string { return "Gemfile.lock" }

func (gemfileLockParser) Recognizes(p string) bool {
	return path.Base(p) == "Gemfile.lock"
}

// Parse reads the GEM/specs block, whose entries look like:
//
//	GEM
//	  remote: https://rubygems.org/
//	  specs:
//	    rack (2.2.8)
//	    rake (13.0.6)
//
// Nested dependency lines are indented one level deeper than the gem they
// belong to; only the 4-space-indented top-level entries are recorded,
// since spec.md's dependency model tracks what's pinned, not the full
// resolved graph.
func (gemfileLockParser) Parse(_ string, content []byte) (ParseResult, bool) {
	var deps []Dependency
	inSpecs := false
	for _, line := range strings.Split(string(content), "\n") {
		switch {
		case line == "GEM":
			inSpecs = false
		case strings.TrimSpace(line) == "specs:":
			inSpecs = true
			continue
		case line != "" && line[0] != ' ':
			inSpecs = false
		}
		if !inSpecs {
			continue
		}
		if !strings.HasPrefix(line, "    ") || strings.HasPrefix(line, "     ") {
			continue // blank, remote:/specs: header, or a nested sub-dependency
		}
		name, version, ok := parseGemLockLine(strings.TrimSpace(line))
		if !ok {
			continue
		}
		deps = append(deps, Dependency{Name: name, Requirement: version, DependencyType: "direct"})
	}
	return ParseResult{Ecosystem: "rubygems", Kind: types.KindLockfile, Dependencies: deps}, true
}

func parseGemLockLine(line string) (name, version string, ok bool) {
	open := strings.IndexByte(line, '(')
	shut := strings.LastIndexByte(line, ')')
	if open < 0 || shut < open {
		return "", "", false
	}
	name = strings.TrimSpace(line[:open])
	version = strings.TrimSpace(line[open+1 : shut])
	if name == "" || version == "" {
		return "", "", false
	}
	return name, version, true
}
