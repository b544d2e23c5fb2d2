// Package purl derives canonical package URLs and normalizes ecosystem
// names across the three namespaces git-pkgs deals with: its own internal
// lowercase names, OSV-style mixed-case names, and purl "type" strings
// (§6).
package purl

import "strings"

// ecosystemTable maps internal lowercase ecosystem names to their OSV name
// and purl type. It is the single source of truth for all three namespaces.
var ecosystemTable = []struct {
	internal string
	osv      string
	purlType string
}{
	{"rubygems", "RubyGems", "gem"},
	{"npm", "npm", "npm"},
	{"pnpm", "npm", "npm"},
	{"pypi", "PyPI", "pypi"},
	{"cargo", "crates.io", "cargo"},
	{"go", "Go", "golang"},
	{"packagist", "Packagist", "composer"},
	{"maven", "Maven", "maven"},
	{"nuget", "NuGet", "nuget"},
	{"hex", "Hex", "hex"},
	{"pub", "Pub", "pub"},
	{"cran", "CRAN", "cran"},
	{"conan", "ConanCenter", "conan"},
	{"swift", "SwiftURL", "swift"},
}

// PurlType returns the purl "type" segment for an internal ecosystem name,
// and false if the ecosystem is unknown.
func PurlType(internalEcosystem string) (string, bool) {
	key := strings.ToLower(internalEcosystem)
	for _, e := range ecosystemTable {
		if e.internal == key {
			return e.purlType, true
		}
	}
	return "", false
}

// ToOSV converts an internal ecosystem name to its OSV-style name.
func ToOSV(internalEcosystem string) (string, bool) {
	key := strings.ToLower(internalEcosystem)
	for _, e := range ecosystemTable {
		if e.internal == key {
			return e.osv, true
		}
	}
	return "", false
}

// FromOSV converts an OSV-style ecosystem name to the internal lowercase
// name.
func FromOSV(osvEcosystem string) (string, bool) {
	for _, e := range ecosystemTable {
		if strings.EqualFold(e.osv, osvEcosystem) {
			return e.internal, true
		}
	}
	return "", false
}

// Build constructs pkg:<type>/<name>[@<version>] for a dependency. version
// is included only when the source manifest is a lockfile (§6): manifests
// contribute constraints, not pinned versions, so their purls omit
// "@version". Pass an empty version for manifest-derived dependencies.
//
// Unknown ecosystems fall back to using the ecosystem name itself as the
// purl type, lowercased, rather than rejecting the dependency outright —
// the core must still be able to record and query dependencies from
// ecosystems not in the static table.
func Build(internalEcosystem, name, version string) string {
	t, ok := PurlType(internalEcosystem)
	if !ok {
		t = strings.ToLower(internalEcosystem)
	}
	if version == "" {
		return "pkg:" + t + "/" + name
	}
	return "pkg:" + t + "/" + name + "@" + version
}
