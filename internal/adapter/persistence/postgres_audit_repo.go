package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/auditflow/auditflow/internal/domain"
)

const auditColumns = `id, code, name, template_id, organization_id, scoring_framework_id, parent_audit_id,
		revision_number, status, planned_start_date, planned_close_date, actual_start_date,
		closed_at, archived_at, overall_score, maturity_level, created_by, created_at, updated_at`

// PostgresAuditRepository implements AuditRepository using PostgreSQL
type PostgresAuditRepository struct {
	q dbtx
}

// Create saves a new audit
func (r *PostgresAuditRepository) Create(ctx context.Context, a *domain.Audit) error {
	query := `
		INSERT INTO audits (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	_, err := r.q.ExecContext(ctx, query,
		a.ID,
		a.Code,
		a.Name,
		a.TemplateID,
		a.OrganizationID,
		a.ScoringFrameworkID,
		a.ParentAuditID,
		a.RevisionNumber,
		string(a.Status),
		a.PlannedStartDate,
		a.PlannedCloseDate,
		a.ActualStartDate,
		a.ClosedAt,
		a.ArchivedAt,
		a.OverallScore,
		a.MaturityLevel,
		a.CreatedBy,
		a.CreatedAt,
		a.UpdatedAt,
	)
	return translate(err, "create audit", nil, a.Code)
}

// FindByID retrieves an audit by its ID
func (r *PostgresAuditRepository) FindByID(ctx context.Context, id string) (*domain.Audit, error) {
	query := `SELECT ` + auditColumns + ` FROM audits WHERE id = $1`

	a, err := scanAudit(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, translate(err, "find audit", domain.ErrAuditNotFound, id)
	}
	return a, nil
}

// FindByIDForUpdate retrieves an audit and locks its row for the rest of the
// transaction
func (r *PostgresAuditRepository) FindByIDForUpdate(ctx context.Context, id string) (*domain.Audit, error) {
	query := `SELECT ` + auditColumns + ` FROM audits WHERE id = $1 FOR UPDATE`

	a, err := scanAudit(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, translate(err, "lock audit", domain.ErrAuditNotFound, id)
	}
	return a, nil
}

// ExistsByCode reports whether an audit already uses code
func (r *PostgresAuditRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM audits WHERE code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check audit code: %w", err)
	}
	return exists, nil
}

// ListRevisions retrieves the direct revisions of an audit by revision number
func (r *PostgresAuditRepository) ListRevisions(ctx context.Context, parentID string) ([]*domain.Audit, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audits
		WHERE parent_audit_id = $1
		ORDER BY revision_number
	`

	rows, err := r.q.QueryContext(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query revisions: %w", err)
	}
	defer rows.Close()

	var audits []*domain.Audit
	for rows.Next() {
		a, err := scanAudit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit: %w", err)
		}
		audits = append(audits, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating revisions: %w", err)
	}
	return audits, nil
}

// Update updates an existing audit
func (r *PostgresAuditRepository) Update(ctx context.Context, a *domain.Audit) error {
	query := `
		UPDATE audits
		SET name = $2, scoring_framework_id = $3, status = $4, planned_start_date = $5,
			planned_close_date = $6, actual_start_date = $7, closed_at = $8, archived_at = $9,
			overall_score = $10, maturity_level = $11, updated_at = $12
		WHERE id = $1
	`

	result, err := r.q.ExecContext(ctx, query,
		a.ID,
		a.Name,
		a.ScoringFrameworkID,
		string(a.Status),
		a.PlannedStartDate,
		a.PlannedCloseDate,
		a.ActualStartDate,
		a.ClosedAt,
		a.ArchivedAt,
		a.OverallScore,
		a.MaturityLevel,
		a.UpdatedAt,
	)
	if err != nil {
		return translate(err, "update audit", nil, a.ID)
	}
	return expectOne(result, domain.ErrAuditNotFound, a.ID)
}

// Delete removes an audit; responses and assignments follow through ON DELETE CASCADE
func (r *PostgresAuditRepository) Delete(ctx context.Context, id string) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM audits WHERE id = $1`, id)
	if err != nil {
		return translate(err, "delete audit", nil, id)
	}
	return expectOne(result, domain.ErrAuditNotFound, id)
}

func scanAudit(row scanner) (*domain.Audit, error) {
	var (
		a                                       domain.Audit
		frameworkID, parentID                   sql.NullString
		plannedStart, plannedClose, actualStart sql.NullTime
		closedAt, archivedAt                    sql.NullTime
		overallScore, maturityLevel             sql.NullFloat64
	)
	err := row.Scan(
		&a.ID,
		&a.Code,
		&a.Name,
		&a.TemplateID,
		&a.OrganizationID,
		&frameworkID,
		&parentID,
		&a.RevisionNumber,
		&a.Status,
		&plannedStart,
		&plannedClose,
		&actualStart,
		&closedAt,
		&archivedAt,
		&overallScore,
		&maturityLevel,
		&a.CreatedBy,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.ScoringFrameworkID = stringPtr(frameworkID)
	a.ParentAuditID = stringPtr(parentID)
	a.PlannedStartDate = timePtr(plannedStart)
	a.PlannedCloseDate = timePtr(plannedClose)
	a.ActualStartDate = timePtr(actualStart)
	a.ClosedAt = timePtr(closedAt)
	a.ArchivedAt = timePtr(archivedAt)
	a.OverallScore = floatPtr(overallScore)
	a.MaturityLevel = floatPtr(maturityLevel)
	return &a, nil
}
