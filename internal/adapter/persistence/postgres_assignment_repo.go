package persistence

import (
	"context"
	"fmt"

	"github.com/auditflow/auditflow/internal/domain"
)

// PostgresAssignmentRepository implements AssignmentRepository using PostgreSQL
type PostgresAssignmentRepository struct {
	q dbtx
}

// Create saves a new assignment
func (r *PostgresAssignmentRepository) Create(ctx context.Context, a *domain.Assignment) error {
	query := `
		INSERT INTO audit_assignments (id, audit_id, user_id, role, is_active, assigned_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.q.ExecContext(ctx, query, a.ID, a.AuditID, a.UserID, string(a.Role), a.IsActive, a.AssignedAt)
	return translate(err, "create assignment", nil, a.AuditID)
}

// FindByID retrieves an assignment by its ID
func (r *PostgresAssignmentRepository) FindByID(ctx context.Context, id string) (*domain.Assignment, error) {
	query := `
		SELECT id, audit_id, user_id, role, is_active, assigned_at
		FROM audit_assignments
		WHERE id = $1
	`

	a, err := scanAssignment(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, translate(err, "find assignment", domain.ErrAssignmentNotFound, id)
	}
	return a, nil
}

// ListByAudit retrieves the team of an audit in assignment order
func (r *PostgresAssignmentRepository) ListByAudit(ctx context.Context, auditID string) ([]*domain.Assignment, error) {
	query := `
		SELECT id, audit_id, user_id, role, is_active, assigned_at
		FROM audit_assignments
		WHERE audit_id = $1
		ORDER BY assigned_at, id
	`

	rows, err := r.q.QueryContext(ctx, query, auditID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*domain.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assignments: %w", err)
	}
	return assignments, nil
}

// Update updates an existing assignment
func (r *PostgresAssignmentRepository) Update(ctx context.Context, a *domain.Assignment) error {
	result, err := r.q.ExecContext(ctx,
		`UPDATE audit_assignments SET role = $2, is_active = $3 WHERE id = $1`,
		a.ID, string(a.Role), a.IsActive,
	)
	if err != nil {
		return translate(err, "update assignment", nil, a.AuditID)
	}
	return expectOne(result, domain.ErrAssignmentNotFound, a.ID)
}

func scanAssignment(row scanner) (*domain.Assignment, error) {
	var a domain.Assignment
	if err := row.Scan(&a.ID, &a.AuditID, &a.UserID, &a.Role, &a.IsActive, &a.AssignedAt); err != nil {
		return nil, err
	}
	return &a, nil
}
