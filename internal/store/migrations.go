package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"
)

type migration struct {
	version int
	name    string
	up      string
	down    string
}

// migrations are applied in slice order; versions must be increasing.
var migrations = []migration{
	{
		version: 1,
		name:    "subjects and sessions",
		up: `
CREATE TABLE IF NOT EXISTS subjects (
    name            TEXT PRIMARY KEY,
    created_at      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    subject         TEXT NOT NULL REFERENCES subjects(name) ON DELETE CASCADE,
    recorded_at     INTEGER NOT NULL,
    fingerprint     BLOB NOT NULL,
    features        TEXT NOT NULL,
    qc              TEXT NOT NULL,
    anomaly_score   REAL,
    interpretation  TEXT NOT NULL DEFAULT '',
    UNIQUE(subject, fingerprint)
);

CREATE INDEX IF NOT EXISTS idx_sessions_subject ON sessions(subject, recorded_at);`,
		down: `
DROP INDEX IF EXISTS idx_sessions_subject;
DROP TABLE IF EXISTS sessions;
DROP TABLE IF EXISTS subjects;`,
	},
	{
		version: 2,
		name:    "partial index over scored sessions",
		up: `
CREATE INDEX IF NOT EXISTS idx_sessions_scored ON sessions(subject, recorded_at)
    WHERE anomaly_score IS NOT NULL;`,
		down: `DROP INDEX IF EXISTS idx_sessions_scored;`,
	},
}

// requiredTables must exist once every migration has run.
var requiredTables = []string{"schema_migrations", "sessions", "subjects"}

func latestVersion() int {
	return migrations[len(migrations)-1].version
}

func withTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// migrate brings db up to latestVersion. Each step runs in its own
// transaction together with its schema_migrations row.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     INTEGER PRIMARY KEY,
			applied_at  INTEGER NOT NULL,
			description TEXT
		)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	current, err := schemaVersion(db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		err := withTx(ctx, db, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.up); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, applied_at, description) VALUES (?, ?, ?)`,
				m.version, time.Now().UnixNano(), m.name)
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

// rollbackLast undoes the newest applied migration and returns the version
// the schema is left at.
func rollbackLast(ctx context.Context, db *sql.DB) (int, error) {
	current, err := schemaVersion(db)
	if err != nil {
		return 0, err
	}
	if current == 0 {
		return 0, fmt.Errorf("schema has no migrations applied")
	}

	idx := sort.Search(len(migrations), func(i int) bool { return migrations[i].version >= current })
	if idx == len(migrations) || migrations[idx].version != current {
		return 0, fmt.Errorf("unknown schema version %d", current)
	}
	m := migrations[idx]

	err = withTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, m.down); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = ?`, m.version)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("roll back migration %d: %w", m.version, err)
	}
	return schemaVersion(db)
}

func schemaVersion(db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

// AppliedMigration is one row of schema_migrations.
type AppliedMigration struct {
	Version     int
	AppliedAt   time.Time
	Description string
}

// MigrationStatus compares the database schema with the migrations this
// build knows about.
type MigrationStatus struct {
	CurrentVersion int
	LatestVersion  int
	Applied        []AppliedMigration
	// Pending names migrations not yet applied, oldest first.
	Pending []string
}

// MigrationStatus reports applied and pending migrations.
func (s *Store) MigrationStatus() (*MigrationStatus, error) {
	rows, err := s.db.Query(`SELECT version, applied_at, description FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("query migrations: %w", err)
	}
	defer rows.Close()

	status := &MigrationStatus{LatestVersion: latestVersion()}
	applied := make(map[int]bool)
	for rows.Next() {
		var (
			am AppliedMigration
			at int64
		)
		if err := rows.Scan(&am.Version, &at, &am.Description); err != nil {
			return nil, fmt.Errorf("scan migration: %w", err)
		}
		am.AppliedAt = time.Unix(0, at)
		applied[am.Version] = true
		status.Applied = append(status.Applied, am)
		status.CurrentVersion = max(status.CurrentVersion, am.Version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate migrations: %w", err)
	}

	for _, m := range migrations {
		if !applied[m.version] {
			status.Pending = append(status.Pending, fmt.Sprintf("%d %s", m.version, m.name))
		}
	}
	return status, nil
}

// CheckSchema reports any required table that is missing.
func (s *Store) CheckSchema() error {
	rows, err := s.db.Query(`SELECT name FROM sqlite_master WHERE type = 'table'`)
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	present := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("scan table name: %w", err)
		}
		present[name] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate tables: %w", err)
	}

	var missing []string
	for _, t := range requiredTables {
		if !present[t] {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing tables: %s", strings.Join(missing, ", "))
	}
	return nil
}
