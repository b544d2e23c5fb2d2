package purl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	cases := []struct {
		name      string
		ecosystem string
		dep       string
		version   string
		want      string
	}{
		{"manifest constraint omits version", "rubygems", "rails", "", "pkg:gem/rails"},
		{"lockfile pins version", "rubygems", "rails", "7.0.4", "pkg:gem/rails@7.0.4"},
		{"go ecosystem maps to golang type", "go", "golang.org/x/mod", "v0.31.0", "pkg:golang/golang.org/x/mod@v0.31.0"},
		{"packagist maps to composer", "packagist", "monolog/monolog", "", "pkg:composer/monolog/monolog"},
		{"unknown ecosystem falls back to lowercased name", "conda", "numpy", "1.26.0", "pkg:conda/numpy@1.26.0"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, Build(c.ecosystem, c.dep, c.version))
		})
	}
}

func TestOSVRoundTrip(t *testing.T) {
	osv, ok := ToOSV("rubygems")
	require.True(t, ok)
	assert.Equal(t, "RubyGems", osv)

	back, ok := FromOSV("RubyGems")
	require.True(t, ok)
	assert.Equal(t, "rubygems", back)

	_, ok = ToOSV("nonexistent")
	assert.False(t, ok)
}

func TestPurlTypeUnknown(t *testing.T) {
	_, ok := PurlType("cobol-packages")
	assert.False(t, ok)
}
