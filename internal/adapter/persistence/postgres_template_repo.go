package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/auditflow/auditflow/internal/domain"
)

// PostgresTemplateRepository implements TemplateRepository using PostgreSQL
type PostgresTemplateRepository struct {
	q dbtx
}

// FindByID retrieves a template by its ID
func (r *PostgresTemplateRepository) FindByID(ctx context.Context, id string) (*domain.Template, error) {
	query := `
		SELECT id, code, name, version, status, created_at, updated_at
		FROM templates
		WHERE id = $1
	`

	var t domain.Template
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&t.ID,
		&t.Code,
		&t.Name,
		&t.Version,
		&t.Status,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, translate(err, "find template", domain.ErrTemplateNotFound, id)
	}
	return &t, nil
}

// PostgresFrameworkRepository implements FrameworkRepository using PostgreSQL.
// Tiers are stored as a JSONB array.
type PostgresFrameworkRepository struct {
	q dbtx
}

// FindByID retrieves a scoring framework by its ID
func (r *PostgresFrameworkRepository) FindByID(ctx context.Context, id string) (*domain.ScoringFramework, error) {
	query := `
		SELECT id, name, min_level, max_level, tiers
		FROM scoring_frameworks
		WHERE id = $1
	`

	var (
		f         domain.ScoringFramework
		tiersJSON []byte
	)
	err := r.q.QueryRowContext(ctx, query, id).Scan(&f.ID, &f.Name, &f.MinLevel, &f.MaxLevel, &tiersJSON)
	if err != nil {
		return nil, translate(err, "find scoring framework", domain.ErrFrameworkNotFound, id)
	}

	if len(tiersJSON) > 0 {
		if err := json.Unmarshal(tiersJSON, &f.Tiers); err != nil {
			return nil, fmt.Errorf("failed to unmarshal maturity tiers: %w", err)
		}
	}
	return &f, nil
}
