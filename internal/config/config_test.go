package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeDefaults(t *testing.T) {
	t.Cleanup(Reset)

	dir := t.TempDir()
	restoreCwd := chdir(t, dir)
	defer restoreCwd()

	require.NoError(t, Initialize())

	assert.Equal(t, 500, BatchSize())
	assert.Equal(t, 50, SnapshotInterval())
	assert.Equal(t, "", GetString("pkgs.dbPath"))
	assert.True(t, EcosystemAllowed("npm"))
	assert.Contains(t, IgnoredDirs(), "node_modules")
}

func TestInitializeReadsProjectFile(t *testing.T) {
	t.Cleanup(Reset)

	root := t.TempDir()
	sub := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	configYAML := "pkgs:\n  batchSize: 25\n  ecosystems:\n    - npm\n    - cargo\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git-pkgs.yaml"), []byte(configYAML), 0o644))

	restoreCwd := chdir(t, sub)
	defer restoreCwd()

	require.NoError(t, Initialize())

	assert.Equal(t, 25, BatchSize())
	assert.True(t, EcosystemAllowed("NPM"))
	assert.False(t, EcosystemAllowed("pypi"))
}

func TestEnvVarOverridesDefault(t *testing.T) {
	t.Cleanup(Reset)
	t.Setenv("GITPKGS_PKGS_SNAPSHOTINTERVAL", "10")

	restoreCwd := chdir(t, t.TempDir())
	defer restoreCwd()

	require.NoError(t, Initialize())
	assert.Equal(t, 10, SnapshotInterval())
}

func TestAccessorsBeforeInitializeReturnZeroValues(t *testing.T) {
	Reset()
	assert.Equal(t, "", GetString("pkgs.dbPath"))
	assert.False(t, GetBool("pkgs.bulkWrite"))
	assert.Equal(t, 0, GetInt("pkgs.batchSize"))
	assert.Equal(t, 500, BatchSize(), "BatchSize falls back to its default even with no config loaded")
}

func chdir(t *testing.T, dir string) func() {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	return func() {
		_ = os.Chdir(old)
	}
}
