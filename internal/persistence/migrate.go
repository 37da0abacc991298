package persistence

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"topicdesk/internal/logger"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migration is one embedded schema change
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// MigrationStatus reports whether a migration has been applied
type MigrationStatus struct {
	Version     int
	Description string
	Applied     bool
}

// MigrationManager applies embedded migrations, each in its own transaction
type MigrationManager struct {
	db  *sql.DB
	log *slog.Logger
}

// NewMigrationManager creates a migration manager for the given database
func NewMigrationManager(db *PostgresDB) *MigrationManager {
	return &MigrationManager{db: db.db, log: logger.Get()}
}

// Migrate applies every pending migration in version order
func (m *MigrationManager) Migrate(ctx context.Context) error {
	pending, err := m.Pending(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		m.log.Info("No pending migrations")
		return nil
	}

	m.log.Info("Found pending migrations", "count", len(pending))
	for _, migration := range pending {
		if err := m.apply(ctx, migration); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", migration.Version, err)
		}
	}

	m.log.Info("Migration completed", "applied", len(pending))
	return nil
}

// Pending lists migrations that have not been applied yet
func (m *MigrationManager) Pending(ctx context.Context) ([]Migration, error) {
	statuses, available, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	var pending []Migration
	for i, st := range statuses {
		if !st.Applied {
			pending = append(pending, available[i])
		}
	}
	return pending, nil
}

// Status reports every known migration and whether it is applied
func (m *MigrationManager) Status(ctx context.Context) ([]MigrationStatus, error) {
	statuses, _, err := m.load(ctx)
	return statuses, err
}

// Rollback forgets the most recent migration. Schema changes must be reverted by hand.
func (m *MigrationManager) Rollback(ctx context.Context) error {
	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		return fmt.Errorf("no migrations to rollback")
	}

	last := applied[len(applied)-1]
	if _, err := m.db.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = $1`, last); err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}
	m.log.Warn("Migration record removed, revert schema changes manually", "version", last)
	return nil
}

func (m *MigrationManager) load(ctx context.Context) ([]MigrationStatus, []Migration, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to create migrations table: %w", err)
	}
	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}
	available, err := loadMigrations()
	if err != nil {
		return nil, nil, err
	}

	done := make(map[int]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}
	statuses := make([]MigrationStatus, len(available))
	for i, mig := range available {
		statuses[i] = MigrationStatus{Version: mig.Version, Description: mig.Description, Applied: done[mig.Version]}
	}
	return statuses, available, nil
}

func (m *MigrationManager) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

func (m *MigrationManager) appliedVersions(ctx context.Context) ([]int, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT version FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (m *MigrationManager) apply(ctx context.Context, migration Migration) error {
	m.log.Info("Applying migration", "version", migration.Version, "description", migration.Description)

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO schema_migrations (version, description)
		VALUES ($1, $2)
		ON CONFLICT (version) DO NOTHING
	`, migration.Version, migration.Description); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return tx.Commit()
}

// loadMigrations reads embedded NNN_description.sql files sorted by version
func loadMigrations() ([]Migration, error) {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		version, description, ok := parseMigrationName(entry.Name())
		if entry.IsDir() || !ok {
			continue
		}
		content, err := migrationFiles.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", entry.Name(), err)
		}
		migrations = append(migrations, Migration{Version: version, Description: description, SQL: string(content)})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// parseMigrationName splits "001_initial_schema.sql" into (1, "initial schema").
func parseMigrationName(name string) (int, string, bool) {
	if !strings.HasSuffix(name, ".sql") {
		return 0, "", false
	}
	parts := strings.SplitN(strings.TrimSuffix(name, ".sql"), "_", 2)
	if len(parts) < 2 {
		return 0, "", false
	}
	version, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, "", false
	}
	return version, strings.ReplaceAll(parts[1], "_", " "), true
}
