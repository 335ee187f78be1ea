package persistence

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/auditflow/auditflow/internal/domain"
	"github.com/lib/pq"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// uniqueConstraints maps unique constraint names from the migrations to the
// domain error they represent
var uniqueConstraints = map[string]*domain.DomainError{
	"audits_code_key":              domain.ErrDuplicateAuditCode,
	"standards_template_code_key":  domain.ErrDuplicateStandardCode,
	"audit_assignments_member_key": domain.ErrDuplicateAssignment,
	"audit_responses_standard_key": domain.ErrDuplicateResponse,
	"audits_parent_revision_key":   domain.ErrDuplicateRevision,
}

// translate converts driver errors into domain errors. notFound is returned
// for sql.ErrNoRows; anything unrecognized is wrapped with op.
func translate(err error, op string, notFound *domain.DomainError, entityID string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) && notFound != nil {
		return notFound.For(entityID)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			if sentinel, ok := uniqueConstraints[pqErr.Constraint]; ok {
				return sentinel.For(entityID)
			}
		case pqForeignKeyViolation:
			return domain.ErrInvalidInput.For(entityID).With("referenced by or referencing a missing record: " + pqErr.Constraint)
		}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// expectOne maps a zero-row mutation to notFound
func expectOne(result sql.Result, notFound *domain.DomainError, entityID string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return notFound.For(entityID)
	}
	return nil
}
