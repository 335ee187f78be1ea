package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/auditflow/auditflow/internal/domain"
)

const standardColumns = `id, template_id, parent_id, code, title, description, display_order, level,
		is_auditable, is_active, weight, created_at, updated_at`

// PostgresStandardRepository implements StandardRepository using PostgreSQL
type PostgresStandardRepository struct {
	q dbtx
}

// Create saves a new standard
func (r *PostgresStandardRepository) Create(ctx context.Context, s *domain.Standard) error {
	query := `
		INSERT INTO standards (` + standardColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.q.ExecContext(ctx, query,
		s.ID,
		s.TemplateID,
		s.ParentID,
		s.Code,
		s.Title,
		s.Description,
		s.DisplayOrder,
		s.Level,
		s.IsAuditable,
		s.IsActive,
		s.Weight,
		s.CreatedAt,
		s.UpdatedAt,
	)
	return translate(err, "create standard", nil, s.Code)
}

// FindByID retrieves a standard by its ID
func (r *PostgresStandardRepository) FindByID(ctx context.Context, id string) (*domain.Standard, error) {
	query := `SELECT ` + standardColumns + ` FROM standards WHERE id = $1`

	s, err := scanStandard(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, translate(err, "find standard", domain.ErrStandardNotFound, id)
	}
	return s, nil
}

// ListByTemplate retrieves every standard of a template by level and display order
func (r *PostgresStandardRepository) ListByTemplate(ctx context.Context, templateID string) ([]*domain.Standard, error) {
	query := `
		SELECT ` + standardColumns + `
		FROM standards
		WHERE template_id = $1
		ORDER BY level, display_order, code
	`

	rows, err := r.q.QueryContext(ctx, query, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to query standards: %w", err)
	}
	defer rows.Close()

	var standards []*domain.Standard
	for rows.Next() {
		s, err := scanStandard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan standard: %w", err)
		}
		standards = append(standards, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating standards: %w", err)
	}
	return standards, nil
}

// Update updates an existing standard
func (r *PostgresStandardRepository) Update(ctx context.Context, s *domain.Standard) error {
	query := `
		UPDATE standards
		SET parent_id = $2, code = $3, title = $4, description = $5, display_order = $6,
			level = $7, is_auditable = $8, is_active = $9, weight = $10, updated_at = $11
		WHERE id = $1
	`

	result, err := r.q.ExecContext(ctx, query,
		s.ID,
		s.ParentID,
		s.Code,
		s.Title,
		s.Description,
		s.DisplayOrder,
		s.Level,
		s.IsAuditable,
		s.IsActive,
		s.Weight,
		s.UpdatedAt,
	)
	if err != nil {
		return translate(err, "update standard", nil, s.ID)
	}
	return expectOne(result, domain.ErrStandardNotFound, s.ID)
}

// Delete removes a standard
func (r *PostgresStandardRepository) Delete(ctx context.Context, id string) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM standards WHERE id = $1`, id)
	if err != nil {
		return translate(err, "delete standard", nil, id)
	}
	return expectOne(result, domain.ErrStandardNotFound, id)
}

func scanStandard(row scanner) (*domain.Standard, error) {
	var (
		s        domain.Standard
		parentID sql.NullString
	)
	err := row.Scan(
		&s.ID,
		&s.TemplateID,
		&parentID,
		&s.Code,
		&s.Title,
		&s.Description,
		&s.DisplayOrder,
		&s.Level,
		&s.IsAuditable,
		&s.IsActive,
		&s.Weight,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.ParentID = stringPtr(parentID)
	return &s, nil
}
