package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/auditflow/auditflow/internal/domain"
)

const responseColumns = `id, audit_id, standard_id, weight, status, score, compliance_level,
		achieved_maturity_level, findings, recommendations, notes, assignee_id, reviewer_id,
		reviewed_at, created_at, updated_at`

// PostgresResponseRepository implements ResponseRepository using PostgreSQL
type PostgresResponseRepository struct {
	q dbtx
}

// CreateBatch saves a full response set. Callers run it inside WithinTx so a
// partial set is never committed.
func (r *PostgresResponseRepository) CreateBatch(ctx context.Context, responses []*domain.AuditResponse) error {
	query := `
		INSERT INTO audit_responses (` + responseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	for _, resp := range responses {
		_, err := r.q.ExecContext(ctx, query,
			resp.ID,
			resp.AuditID,
			resp.StandardID,
			resp.Weight,
			string(resp.Status),
			resp.Score,
			resp.ComplianceLevel,
			resp.AchievedMaturityLevel,
			resp.Findings,
			resp.Recommendations,
			resp.Notes,
			resp.AssigneeID,
			resp.ReviewerID,
			resp.ReviewedAt,
			resp.CreatedAt,
			resp.UpdatedAt,
		)
		if err != nil {
			return translate(err, "create response", nil, resp.StandardID)
		}
	}
	return nil
}

// FindByID retrieves a response by its ID
func (r *PostgresResponseRepository) FindByID(ctx context.Context, id string) (*domain.AuditResponse, error) {
	query := `SELECT ` + responseColumns + ` FROM audit_responses WHERE id = $1`

	resp, err := scanResponse(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, translate(err, "find response", domain.ErrResponseNotFound, id)
	}
	return resp, nil
}

// ListByAudit retrieves the responses of an audit
func (r *PostgresResponseRepository) ListByAudit(ctx context.Context, auditID string) ([]*domain.AuditResponse, error) {
	query := `
		SELECT ` + responseColumns + `
		FROM audit_responses
		WHERE audit_id = $1
		ORDER BY standard_id
	`

	rows, err := r.q.QueryContext(ctx, query, auditID)
	if err != nil {
		return nil, fmt.Errorf("failed to query responses: %w", err)
	}
	defer rows.Close()

	var responses []*domain.AuditResponse
	for rows.Next() {
		resp, err := scanResponse(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan response: %w", err)
		}
		responses = append(responses, resp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating responses: %w", err)
	}
	return responses, nil
}

// Update updates the evaluation fields of a response. Weight is frozen at
// creation and never written again.
func (r *PostgresResponseRepository) Update(ctx context.Context, resp *domain.AuditResponse) error {
	query := `
		UPDATE audit_responses
		SET status = $2, score = $3, compliance_level = $4, achieved_maturity_level = $5,
			findings = $6, recommendations = $7, notes = $8, assignee_id = $9,
			reviewer_id = $10, reviewed_at = $11, updated_at = $12
		WHERE id = $1
	`

	result, err := r.q.ExecContext(ctx, query,
		resp.ID,
		string(resp.Status),
		resp.Score,
		resp.ComplianceLevel,
		resp.AchievedMaturityLevel,
		resp.Findings,
		resp.Recommendations,
		resp.Notes,
		resp.AssigneeID,
		resp.ReviewerID,
		resp.ReviewedAt,
		resp.UpdatedAt,
	)
	if err != nil {
		return translate(err, "update response", nil, resp.ID)
	}
	return expectOne(result, domain.ErrResponseNotFound, resp.ID)
}

func scanResponse(row scanner) (*domain.AuditResponse, error) {
	var (
		resp                   domain.AuditResponse
		score                  sql.NullFloat64
		compliance             sql.NullString
		maturity               sql.NullInt64
		assigneeID, reviewerID sql.NullString
		reviewedAt             sql.NullTime
	)
	err := row.Scan(
		&resp.ID,
		&resp.AuditID,
		&resp.StandardID,
		&resp.Weight,
		&resp.Status,
		&score,
		&compliance,
		&maturity,
		&resp.Findings,
		&resp.Recommendations,
		&resp.Notes,
		&assigneeID,
		&reviewerID,
		&reviewedAt,
		&resp.CreatedAt,
		&resp.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	resp.Score = floatPtr(score)
	if compliance.Valid {
		level := domain.ComplianceLevel(compliance.String)
		resp.ComplianceLevel = &level
	}
	resp.AchievedMaturityLevel = intPtr(maturity)
	resp.AssigneeID = stringPtr(assigneeID)
	resp.ReviewerID = stringPtr(reviewerID)
	resp.ReviewedAt = timePtr(reviewedAt)
	return &resp, nil
}
