package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListMigrationsIsStableAndNonEmpty(t *testing.T) {
	migrations := ListMigrations()
	require.NotEmpty(t, migrations)
	for _, m := range migrations {
		assert.NotEmpty(t, m.Name)
		assert.NotEqual(t, "Unknown migration", m.Description)
	}
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, RunMigrations(st.UnderlyingDB()))
	require.NoError(t, RunMigrations(st.UnderlyingDB()))

	version, err := st.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}
