// Package sqlite - database migrations.
package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/git-pkgs/git-pkgs/internal/types"
)

// Migration is a single idempotent schema change, run once in order during
// store initialization.
type Migration struct {
	Name string
	Func func(*sql.DB) error
}

// migrationsList is the ordered list of all migrations. New migrations are
// appended; existing entries are never reordered or removed, since
// SchemaVersion recovery (§7) depends on replaying the full history against
// a store created at any prior version.
var migrationsList = []Migration{
	{"initial_schema_version", migrateInitialSchemaVersion},
}

// migrateInitialSchemaVersion ensures the config row created by schema.go's
// INSERT OR IGNORE exists even for a store whose schema predates that
// insert (a store file created before this column existed).
func migrateInitialSchemaVersion(db *sql.DB) error {
	_, err := db.Exec(`INSERT OR IGNORE INTO config (key, value) VALUES ('schema_version', '1')`)
	return err
}

// MigrationInfo describes a registered migration for inspection.
type MigrationInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ListMigrations returns every registered migration. All are idempotent, so
// this lists the full history, not just pending ones.
func ListMigrations() []MigrationInfo {
	result := make([]MigrationInfo, len(migrationsList))
	for i, m := range migrationsList {
		result[i] = MigrationInfo{Name: m.Name, Description: getMigrationDescription(m.Name)}
	}
	return result
}

func getMigrationDescription(name string) string {
	descriptions := map[string]string{
		"initial_schema_version": "Ensures the schema_version config row exists",
	}
	if desc, ok := descriptions[name]; ok {
		return desc
	}
	return "Unknown migration"
}

// RunMigrations executes all registered migrations in order inside a single
// EXCLUSIVE transaction, serializing migrations across processes: without
// this, two processes opening a fresh store file for the first time can
// race on check-then-modify DDL and fail with spurious "duplicate column"
// or "table already exists" errors.
func RunMigrations(db *sql.DB) error {
	// PRAGMA foreign_keys must be set when no transaction is active (a
	// SQLite limitation); some migrations may need to recreate tables
	// without cascading deletes firing mid-migration.
	if _, err := db.Exec("PRAGMA foreign_keys = OFF"); err != nil {
		return fmt.Errorf("failed to disable foreign keys for migrations: %w", err)
	}
	defer func() { _, _ = db.Exec("PRAGMA foreign_keys = ON") }()

	if _, err := db.Exec("BEGIN EXCLUSIVE"); err != nil {
		return fmt.Errorf("failed to acquire exclusive lock for migrations: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_, _ = db.Exec("ROLLBACK")
		}
	}()

	for _, migration := range migrationsList {
		if err := migration.Func(db); err != nil {
			return fmt.Errorf("migration %s failed: %w", migration.Name, err)
		}
	}

	if err := verifyInvariants(db); err != nil {
		return fmt.Errorf("post-migration validation failed: %w", err)
	}

	if _, err := db.Exec("COMMIT"); err != nil {
		return fmt.Errorf("failed to commit migrations: %w", err)
	}
	committed = true

	return nil
}

// verifyInvariants checks the structural invariants §3 and §8 depend on
// still hold after migration: every dependency_changes/dependency_snapshots
// row references a real commit and manifest. A violation here means the
// store is corrupt (types.ErrCorruptState), not merely out of date.
func verifyInvariants(db *sql.DB) error {
	checks := []struct {
		label string
		query string
	}{
		{
			"dependency_changes.commit_id",
			`SELECT COUNT(*) FROM dependency_changes dc LEFT JOIN commits c ON dc.commit_id = c.id WHERE c.id IS NULL`,
		},
		{
			"dependency_changes.manifest_id",
			`SELECT COUNT(*) FROM dependency_changes dc LEFT JOIN manifests m ON dc.manifest_id = m.id WHERE m.id IS NULL`,
		},
		{
			"dependency_snapshots.commit_id",
			`SELECT COUNT(*) FROM dependency_snapshots ds LEFT JOIN commits c ON ds.commit_id = c.id WHERE c.id IS NULL`,
		},
		{
			"dependency_snapshots.manifest_id",
			`SELECT COUNT(*) FROM dependency_snapshots ds LEFT JOIN manifests m ON ds.manifest_id = m.id WHERE m.id IS NULL`,
		},
	}
	for _, check := range checks {
		var orphaned int
		if err := db.QueryRow(check.query).Scan(&orphaned); err != nil {
			// Tables may not exist yet on a brand-new database being created
			// for the first time; that is not an invariant violation.
			continue
		}
		if orphaned > 0 {
			return fmt.Errorf("%w: %d orphaned row(s) referencing %s", types.ErrCorruptState, orphaned, check.label)
		}
	}
	return nil
}
