package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/auditflow/auditflow/internal/domain"
	"github.com/auditflow/auditflow/internal/logger"
	"github.com/auditflow/auditflow/internal/ports"
)

// CompletenessReport lists the responses still blocking a complete close
type CompletenessReport struct {
	AuditID  string   `json:"audit_id"`
	Complete bool     `json:"complete"`
	Pending  []string `json:"pending_response_ids"`
}

// ScoringUseCase exposes the scoring engine for live progress views
type ScoringUseCase struct {
	base
}

// NewScoringUseCase creates a new scoring use case
func NewScoringUseCase(uow ports.UnitOfWork, log logger.Logger) *ScoringUseCase {
	return &ScoringUseCase{base: newBase(uow, nil, log, "scoring_usecase")}
}

// Summary recomputes every scoring output of an audit from its responses.
// For closed audits the frozen values on the audit remain authoritative.
func (uc *ScoringUseCase) Summary(ctx context.Context, auditID string) (*domain.ScoreSummary, error) {
	repos := uc.uow.Repositories()
	audit, err := repos.Audits.FindByID(ctx, auditID)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit: %w", err)
	}
	framework, err := resolveFramework(ctx, repos, audit)
	if err != nil {
		return nil, fmt.Errorf("failed to get scoring framework: %w", err)
	}
	responses, err := repos.Responses.ListByAudit(ctx, auditID)
	if err != nil {
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}

	summary := domain.Summarize(responses, framework)
	uc.log.Debug(ctx, "summary computed", map[string]interface{}{
		"audit_id":      auditID,
		"overall_score": summary.OverallScore,
	})
	return &summary, nil
}

// Completeness reports whether every response of the audit is finished
func (uc *ScoringUseCase) Completeness(ctx context.Context, auditID string) (*CompletenessReport, error) {
	repos := uc.uow.Repositories()
	if _, err := repos.Audits.FindByID(ctx, auditID); err != nil {
		return nil, fmt.Errorf("failed to get audit: %w", err)
	}
	responses, err := repos.Responses.ListByAudit(ctx, auditID)
	if err != nil {
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}

	report := &CompletenessReport{AuditID: auditID, Complete: true, Pending: []string{}}
	if err := domain.CheckCompleteness(responses); err != nil {
		var de *domain.DomainError
		if !errors.As(err, &de) {
			return nil, err
		}
		report.Complete = false
		report.Pending = de.Details
	}
	return report, nil
}
