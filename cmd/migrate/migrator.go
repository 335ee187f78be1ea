package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

type direction string

const (
	directionUp   direction = "up"
	directionDown direction = "down"
)

// migration is one versioned schema step with its up and down scripts
type migration struct {
	version  int
	name     string
	upPath   string
	downPath string
}

// loadMigrations pairs NNN_name.up.sql and NNN_name.down.sql files by
// version. A version without an up script is rejected.
func loadMigrations(dir string) ([]migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	byVersion := map[int]*migration{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		version, name, d, ok := parseMigrationName(e.Name())
		if !ok {
			continue
		}
		m, exists := byVersion[version]
		if !exists {
			m = &migration{version: version, name: name}
			byVersion[version] = m
		} else if m.name != name {
			return nil, fmt.Errorf("version %03d is used by both %q and %q", version, m.name, name)
		}
		path := filepath.Join(dir, e.Name())
		if d == directionUp {
			m.upPath = path
		} else {
			m.downPath = path
		}
	}

	out := make([]migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.upPath == "" {
			return nil, fmt.Errorf("migration %03d_%s has no up script", m.version, m.name)
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

// parseMigrationName splits "002_create_audits.up.sql" into 2, "create_audits", up
func parseMigrationName(filename string) (int, string, direction, bool) {
	var d direction
	switch {
	case strings.HasSuffix(filename, ".up.sql"):
		d = directionUp
	case strings.HasSuffix(filename, ".down.sql"):
		d = directionDown
	default:
		return 0, "", "", false
	}
	base := strings.TrimSuffix(filename, "."+string(d)+".sql")

	parts := strings.SplitN(base, "_", 2)
	if len(parts) != 2 || parts[1] == "" {
		return 0, "", "", false
	}
	version, err := strconv.Atoi(parts[0])
	if err != nil || version <= 0 {
		return 0, "", "", false
	}
	return version, parts[1], d, true
}

// Migrator applies migrations and records them in schema_migrations
type Migrator struct {
	db         *sql.DB
	migrations []migration
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("failed to ensure schema_migrations: %w", err)
	}
	return nil
}

func (m *Migrator) applied(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT version, applied_at FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_migrations: %w", err)
	}
	defer rows.Close()

	out := map[int]time.Time{}
	for rows.Next() {
		var (
			version int
			at      time.Time
		)
		if err := rows.Scan(&version, &at); err != nil {
			return nil, err
		}
		out[version] = at
	}
	return out, rows.Err()
}

// Up applies every pending migration in version order, each in its own
// transaction together with its bookkeeping row.
func (m *Migrator) Up(ctx context.Context, report func(migration)) error {
	done, err := m.applied(ctx)
	if err != nil {
		return err
	}
	for _, mg := range pendingUp(m.migrations, done) {
		mg := mg
		err := m.run(ctx, mg.upPath, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, mg.version, mg.name)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to apply %03d_%s: %w", mg.version, mg.name, err)
		}
		report(mg)
	}
	return nil
}

// Down reverts the latest steps applied migrations
func (m *Migrator) Down(ctx context.Context, steps int, report func(migration)) error {
	done, err := m.applied(ctx)
	if err != nil {
		return err
	}
	for _, mg := range pendingDown(m.migrations, done, steps) {
		mg := mg
		if mg.downPath == "" {
			return fmt.Errorf("migration %03d_%s has no down script", mg.version, mg.name)
		}
		err := m.run(ctx, mg.downPath, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = $1`, mg.version)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to revert %03d_%s: %w", mg.version, mg.name, err)
		}
		report(mg)
	}
	return nil
}

// Status lists every known migration with its applied time, if any
func (m *Migrator) Status(ctx context.Context) ([]migrationStatus, error) {
	done, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]migrationStatus, 0, len(m.migrations))
	for _, mg := range m.migrations {
		st := migrationStatus{Version: mg.version, Name: mg.name}
		if at, ok := done[mg.version]; ok {
			at := at
			st.AppliedAt = &at
		}
		out = append(out, st)
	}
	return out, nil
}

type migrationStatus struct {
	Version   int
	Name      string
	AppliedAt *time.Time
}

func (m *Migrator) run(ctx context.Context, path string, record func(tx *sql.Tx) error) error {
	script, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(script)); err != nil {
		return err
	}
	if err := record(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func pendingUp(all []migration, done map[int]time.Time) []migration {
	var out []migration
	for _, mg := range all {
		if _, ok := done[mg.version]; !ok {
			out = append(out, mg)
		}
	}
	return out
}

// pendingDown returns applied migrations newest first; steps <= 0 means all
func pendingDown(all []migration, done map[int]time.Time, steps int) []migration {
	var out []migration
	for i := len(all) - 1; i >= 0; i-- {
		if _, ok := done[all[i].version]; !ok {
			continue
		}
		out = append(out, all[i])
		if steps > 0 && len(out) == steps {
			break
		}
	}
	return out
}
