package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/auditflow/auditflow/internal/domain"
	"github.com/auditflow/auditflow/internal/logger"
	"github.com/auditflow/auditflow/internal/ports"
)

// CreateAuditRequest represents the request to create an audit
type CreateAuditRequest struct {
	Code               string     `json:"code"`
	Name               string     `json:"name"`
	TemplateID         string     `json:"template_id"`
	OrganizationID     string     `json:"organization_id"`
	ScoringFrameworkID *string    `json:"scoring_framework_id,omitempty"`
	PlannedStartDate   *time.Time `json:"planned_start_date,omitempty"`
	PlannedCloseDate   *time.Time `json:"planned_close_date,omitempty"`
}

// CreateRevisionRequest represents the request to follow up on a closed audit.
// An empty code derives one from the source code and revision number.
type CreateRevisionRequest struct {
	Code               string  `json:"code,omitempty"`
	Name               string  `json:"name,omitempty"`
	ScoringFrameworkID *string `json:"scoring_framework_id,omitempty"`
}

// AssignMemberRequest represents the request to add a team member
type AssignMemberRequest struct {
	UserID string                `json:"user_id"`
	Role   domain.AssignmentRole `json:"role"`
}

// CloseAuditRequest represents the options of an audit close
type CloseAuditRequest struct {
	RequireComplete bool `json:"require_complete"`
}

// AuditDetail is an audit with the records it owns
type AuditDetail struct {
	Audit       *domain.Audit           `json:"audit"`
	Responses   []*domain.AuditResponse `json:"responses"`
	Assignments []*domain.Assignment    `json:"assignments"`
}

// AuditUseCase drives the audit lifecycle
type AuditUseCase struct {
	base
}

// NewAuditUseCase creates a new audit use case
func NewAuditUseCase(uow ports.UnitOfWork, eventPublisher ports.EventPublisher, log logger.Logger) *AuditUseCase {
	return &AuditUseCase{base: newBase(uow, eventPublisher, log, "audit_usecase")}
}

// CreateAudit creates a draft audit from a published template together with
// its response set.
func (uc *AuditUseCase) CreateAudit(ctx context.Context, req CreateAuditRequest) (*AuditDetail, error) {
	if err := validateCreateAudit(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var detail *AuditDetail
	err := uc.uow.WithinTx(ctx, func(tx ports.Repositories) error {
		template, err := tx.Templates.FindByID(ctx, req.TemplateID)
		if err != nil {
			return err
		}
		if err := template.EnsurePublished(); err != nil {
			return err
		}
		if err := uc.ensureTemplateWeights(ctx, tx, template.ID); err != nil {
			return err
		}
		if req.ScoringFrameworkID != nil {
			if _, err := tx.Frameworks.FindByID(ctx, *req.ScoringFrameworkID); err != nil {
				return err
			}
		}
		if err := ensureCodeFree(ctx, tx, req.Code); err != nil {
			return err
		}

		audit := domain.NewAudit(req.Code, req.Name, req.TemplateID, req.OrganizationID, req.ScoringFrameworkID, logger.Actor(ctx))
		if err := audit.SetPlannedDates(req.PlannedStartDate, req.PlannedCloseDate); err != nil {
			return err
		}
		if err := tx.Audits.Create(ctx, audit); err != nil {
			return err
		}
		responses, _, err := initializeResponses(ctx, tx, audit)
		if err != nil {
			return err
		}

		detail = &AuditDetail{Audit: audit, Responses: responses, Assignments: []*domain.Assignment{}}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create audit: %w", err)
	}

	uc.log.Info(ctx, "audit created", map[string]interface{}{
		"audit_id":    detail.Audit.ID,
		"template_id": detail.Audit.TemplateID,
		"responses":   len(detail.Responses),
	})
	uc.publish(ctx, ports.EventTypeAuditCreated, ports.AggregateAudit, detail.Audit.ID, map[string]interface{}{
		"code":        detail.Audit.Code,
		"template_id": detail.Audit.TemplateID,
		"responses":   len(detail.Responses),
	})
	return detail, nil
}

// GetAudit retrieves an audit with its responses and team
func (uc *AuditUseCase) GetAudit(ctx context.Context, auditID string) (*AuditDetail, error) {
	repos := uc.uow.Repositories()
	audit, err := repos.Audits.FindByID(ctx, auditID)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit: %w", err)
	}
	responses, err := repos.Responses.ListByAudit(ctx, auditID)
	if err != nil {
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}
	assignments, err := repos.Assignments.ListByAudit(ctx, auditID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	return &AuditDetail{Audit: audit, Responses: responses, Assignments: assignments}, nil
}

// DeleteAudit removes an audit; its responses and assignments go with it
func (uc *AuditUseCase) DeleteAudit(ctx context.Context, auditID string) error {
	err := uc.uow.WithinTx(ctx, func(tx ports.Repositories) error {
		if _, err := tx.Audits.FindByIDForUpdate(ctx, auditID); err != nil {
			return err
		}
		return tx.Audits.Delete(ctx, auditID)
	})
	if err != nil {
		return fmt.Errorf("failed to delete audit: %w", err)
	}

	uc.log.Info(ctx, "audit deleted", map[string]interface{}{"audit_id": auditID})
	uc.publish(ctx, ports.EventTypeAuditDeleted, ports.AggregateAudit, auditID, nil)
	return nil
}

// AssignMember adds a team member while the audit is still a draft
func (uc *AuditUseCase) AssignMember(ctx context.Context, auditID string, req AssignMemberRequest) (*domain.Assignment, error) {
	var assignment *domain.Assignment
	err := uc.uow.WithinTx(ctx, func(tx ports.Repositories) error {
		audit, err := tx.Audits.FindByIDForUpdate(ctx, auditID)
		if err != nil {
			return err
		}
		if err := audit.EnsureMembersEditable(); err != nil {
			return err
		}

		existing, err := tx.Assignments.ListByAudit(ctx, auditID)
		if err != nil {
			return err
		}
		if domain.FindAssignment(existing, req.UserID, req.Role) != nil {
			return domain.ErrDuplicateAssignment.For(auditID).With(fmt.Sprintf("%s as %s", req.UserID, req.Role))
		}

		assignment, err = domain.NewAssignment(auditID, req.UserID, req.Role)
		if err != nil {
			return err
		}
		return tx.Assignments.Create(ctx, assignment)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to assign member: %w", err)
	}

	uc.publish(ctx, ports.EventTypeMemberAssigned, ports.AggregateAudit, auditID, map[string]interface{}{
		"user_id": assignment.UserID,
		"role":    assignment.Role,
	})
	return assignment, nil
}

// DeactivateMember takes a member off a draft audit's team
func (uc *AuditUseCase) DeactivateMember(ctx context.Context, auditID, assignmentID string) (*domain.Assignment, error) {
	var assignment *domain.Assignment
	err := uc.uow.WithinTx(ctx, func(tx ports.Repositories) error {
		audit, err := tx.Audits.FindByIDForUpdate(ctx, auditID)
		if err != nil {
			return err
		}
		if err := audit.EnsureMembersEditable(); err != nil {
			return err
		}

		assignment, err = tx.Assignments.FindByID(ctx, assignmentID)
		if err != nil {
			return err
		}
		if assignment.AuditID != auditID {
			return domain.ErrAssignmentNotFound.For(assignmentID)
		}
		if !assignment.IsActive {
			return nil
		}
		assignment.IsActive = false
		return tx.Assignments.Update(ctx, assignment)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to deactivate member: %w", err)
	}

	uc.publish(ctx, ports.EventTypeMemberDeactivated, ports.AggregateAudit, auditID, map[string]interface{}{
		"assignment_id": assignmentID,
	})
	return assignment, nil
}

// StartAudit moves a draft audit in progress
func (uc *AuditUseCase) StartAudit(ctx context.Context, auditID string) (*domain.Audit, error) {
	var audit *domain.Audit
	err := uc.uow.WithinTx(ctx, func(tx ports.Repositories) error {
		var err error
		audit, err = tx.Audits.FindByIDForUpdate(ctx, auditID)
		if err != nil {
			return err
		}
		assignments, err := tx.Assignments.ListByAudit(ctx, auditID)
		if err != nil {
			return err
		}
		if err := audit.Start(domain.CountActiveAssignments(assignments), uc.now()); err != nil {
			return err
		}
		return tx.Audits.Update(ctx, audit)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start audit: %w", err)
	}

	uc.log.Info(ctx, "audit started", map[string]interface{}{"audit_id": auditID})
	uc.publish(ctx, ports.EventTypeAuditStarted, ports.AggregateAudit, auditID, map[string]interface{}{
		"status": audit.Status,
	})
	return audit, nil
}

// CloseAudit scores the audit's responses and freezes the result on the audit.
// Completeness is only enforced when the caller asks for it.
func (uc *AuditUseCase) CloseAudit(ctx context.Context, auditID string, req CloseAuditRequest) (*domain.Audit, error) {
	started := uc.now()

	var audit *domain.Audit
	err := uc.uow.WithinTx(ctx, func(tx ports.Repositories) error {
		var err error
		audit, err = tx.Audits.FindByIDForUpdate(ctx, auditID)
		if err != nil {
			return err
		}
		if !audit.Status.CanTransition(domain.AuditStatusClosed) {
			return domain.InvalidTransition(audit.ID, string(audit.Status), "close")
		}

		responses, err := tx.Responses.ListByAudit(ctx, auditID)
		if err != nil {
			return err
		}
		if req.RequireComplete {
			if err := domain.CheckCompleteness(responses); err != nil {
				return err
			}
		}
		if err := domain.ValidateWeightSum(domain.ResponseWeights(responses)); err != nil {
			return err
		}

		score := domain.OverallScore(responses)
		maturity := domain.AverageMaturityLevel(responses)
		if err := audit.Close(score, maturity, uc.now()); err != nil {
			return err
		}
		return tx.Audits.Update(ctx, audit)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to close audit: %w", err)
	}

	fields := map[string]interface{}{
		"audit_id":      auditID,
		"overall_score": *audit.OverallScore,
	}
	if audit.MaturityLevel != nil {
		fields["maturity_level"] = *audit.MaturityLevel
	}
	logger.LogPerformance(ctx, uc.log, "close_audit", uc.now().Sub(started), fields)
	uc.publish(ctx, ports.EventTypeAuditClosed, ports.AggregateAudit, auditID, fields)
	return audit, nil
}

// ArchiveAudit retires a closed audit
func (uc *AuditUseCase) ArchiveAudit(ctx context.Context, auditID string) (*domain.Audit, error) {
	var audit *domain.Audit
	err := uc.uow.WithinTx(ctx, func(tx ports.Repositories) error {
		var err error
		audit, err = tx.Audits.FindByIDForUpdate(ctx, auditID)
		if err != nil {
			return err
		}
		if err := audit.Archive(uc.now()); err != nil {
			return err
		}
		return tx.Audits.Update(ctx, audit)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to archive audit: %w", err)
	}

	uc.log.Info(ctx, "audit archived", map[string]interface{}{"audit_id": auditID})
	uc.publish(ctx, ports.EventTypeAuditArchived, ports.AggregateAudit, auditID, nil)
	return audit, nil
}

// CreateRevision opens a follow-up audit of a closed audit with a fresh
// response set built from the template's current standards.
func (uc *AuditUseCase) CreateRevision(ctx context.Context, sourceID string, req CreateRevisionRequest) (*AuditDetail, error) {
	var detail *AuditDetail
	err := uc.uow.WithinTx(ctx, func(tx ports.Repositories) error {
		source, err := tx.Audits.FindByIDForUpdate(ctx, sourceID)
		if err != nil {
			return err
		}
		if source.Status != domain.AuditStatusClosed {
			return domain.ErrNotClosed.For(source.ID).With("status is " + string(source.Status))
		}

		siblings, err := tx.Audits.ListRevisions(ctx, sourceID)
		if err != nil {
			return err
		}
		number := domain.NextRevisionNumber(source, siblings)

		code := strings.TrimSpace(req.Code)
		if code == "" {
			code = fmt.Sprintf("%s-R%d", source.Code, number)
		}
		name := req.Name
		if name == "" {
			name = source.Name
		}
		if req.ScoringFrameworkID != nil {
			if _, err := tx.Frameworks.FindByID(ctx, *req.ScoringFrameworkID); err != nil {
				return err
			}
		}
		if err := uc.ensureTemplateWeights(ctx, tx, source.TemplateID); err != nil {
			return err
		}
		if err := ensureCodeFree(ctx, tx, code); err != nil {
			return err
		}

		revision, err := source.NewRevision(code, name, number, req.ScoringFrameworkID, logger.Actor(ctx))
		if err != nil {
			return err
		}
		if err := tx.Audits.Create(ctx, revision); err != nil {
			return err
		}
		responses, _, err := initializeResponses(ctx, tx, revision)
		if err != nil {
			return err
		}

		detail = &AuditDetail{Audit: revision, Responses: responses, Assignments: []*domain.Assignment{}}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create revision: %w", err)
	}

	uc.log.Info(ctx, "revision created", map[string]interface{}{
		"audit_id":        detail.Audit.ID,
		"parent_audit_id": sourceID,
		"revision_number": detail.Audit.RevisionNumber,
	})
	uc.publish(ctx, ports.EventTypeRevisionCreated, ports.AggregateAudit, detail.Audit.ID, map[string]interface{}{
		"parent_audit_id": sourceID,
		"revision_number": detail.Audit.RevisionNumber,
	})
	return detail, nil
}

// ListRevisions returns the direct follow-ups of an audit by revision number
func (uc *AuditUseCase) ListRevisions(ctx context.Context, auditID string) ([]*domain.Audit, error) {
	repos := uc.uow.Repositories()
	if _, err := repos.Audits.FindByID(ctx, auditID); err != nil {
		return nil, fmt.Errorf("failed to get audit: %w", err)
	}
	revisions, err := repos.Audits.ListRevisions(ctx, auditID)
	if err != nil {
		return nil, fmt.Errorf("failed to list revisions: %w", err)
	}
	return revisions, nil
}

func (uc *AuditUseCase) ensureTemplateWeights(ctx context.Context, tx ports.Repositories, templateID string) error {
	standards, err := tx.Standards.ListByTemplate(ctx, templateID)
	if err != nil {
		return err
	}
	scored := domain.ScoredStandards(standards)
	if len(scored) == 0 {
		return domain.ErrNoAuditableStandards.For(templateID)
	}
	if err := domain.ValidateWeightSum(domain.StandardWeights(scored)); err != nil {
		return domain.BindEntity(err, templateID)
	}
	return nil
}

func ensureCodeFree(ctx context.Context, tx ports.Repositories, code string) error {
	taken, err := tx.Audits.ExistsByCode(ctx, code)
	if err != nil {
		return err
	}
	if taken {
		return domain.ErrDuplicateAuditCode.For(code)
	}
	return nil
}

func validateCreateAudit(req CreateAuditRequest) error {
	var missing []string
	if strings.TrimSpace(req.Code) == "" {
		missing = append(missing, "code")
	}
	if strings.TrimSpace(req.Name) == "" {
		missing = append(missing, "name")
	}
	if req.TemplateID == "" {
		missing = append(missing, "template_id")
	}
	if req.OrganizationID == "" {
		missing = append(missing, "organization_id")
	}
	if len(missing) > 0 {
		return domain.ErrInvalidInput.With(missing...)
	}
	return nil
}
