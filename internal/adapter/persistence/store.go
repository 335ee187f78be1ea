// Package persistence implements the repository ports on PostgreSQL through
// database/sql and lib/pq.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/auditflow/auditflow/internal/ports"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// PostgresStore implements ports.UnitOfWork using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL unit of work
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Repositories returns repositories bound to the connection pool
func (s *PostgresStore) Repositories() ports.Repositories {
	return bind(s.db)
}

// WithinTx runs fn inside a single transaction. The transaction is committed
// when fn returns nil and rolled back otherwise.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx ports.Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(bind(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Ping checks the database connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func bind(q dbtx) ports.Repositories {
	return ports.Repositories{
		Templates:   &PostgresTemplateRepository{q: q},
		Frameworks:  &PostgresFrameworkRepository{q: q},
		Standards:   &PostgresStandardRepository{q: q},
		Audits:      &PostgresAuditRepository{q: q},
		Assignments: &PostgresAssignmentRepository{q: q},
		Responses:   &PostgresResponseRepository{q: q},
	}
}

// scanner is satisfied by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	f := nf.Float64
	return &f
}

func intPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	i := int(ni.Int64)
	return &i
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
