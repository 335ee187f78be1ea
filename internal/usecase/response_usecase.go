package usecase

import (
	"context"
	"fmt"

	"github.com/auditflow/auditflow/internal/domain"
	"github.com/auditflow/auditflow/internal/logger"
	"github.com/auditflow/auditflow/internal/ports"
)

// ResponseUseCase drives individual control evaluations. Every mutation
// requires the owning audit to be in progress.
type ResponseUseCase struct {
	base
}

// NewResponseUseCase creates a new response use case
func NewResponseUseCase(uow ports.UnitOfWork, eventPublisher ports.EventPublisher, log logger.Logger) *ResponseUseCase {
	return &ResponseUseCase{base: newBase(uow, eventPublisher, log, "response_usecase")}
}

// InitializeResponses creates the audit's response set, or returns the
// existing one untouched.
func (uc *ResponseUseCase) InitializeResponses(ctx context.Context, auditID string) ([]*domain.AuditResponse, error) {
	var (
		responses []*domain.AuditResponse
		created   bool
	)
	err := uc.uow.WithinTx(ctx, func(tx ports.Repositories) error {
		audit, err := tx.Audits.FindByIDForUpdate(ctx, auditID)
		if err != nil {
			return err
		}
		responses, created, err = initializeResponses(ctx, tx, audit)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize responses: %w", err)
	}

	if created {
		uc.log.Info(ctx, "responses initialized", map[string]interface{}{
			"audit_id": auditID,
			"count":    len(responses),
		})
	}
	return responses, nil
}

// GetResponse retrieves a response by ID
func (uc *ResponseUseCase) GetResponse(ctx context.Context, responseID string) (*domain.AuditResponse, error) {
	response, err := uc.uow.Repositories().Responses.FindByID(ctx, responseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get response: %w", err)
	}
	return response, nil
}

// UpdateResponse applies a partial evaluation update
func (uc *ResponseUseCase) UpdateResponse(ctx context.Context, responseID string, update domain.ResponseUpdate) (*domain.AuditResponse, error) {
	response, err := uc.mutate(ctx, responseID, func(tx ports.Repositories, audit *domain.Audit, r *domain.AuditResponse) error {
		framework, err := resolveFramework(ctx, tx, audit)
		if err != nil {
			return err
		}
		return r.ApplyUpdate(update, framework)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update response: %w", err)
	}

	uc.publish(ctx, ports.EventTypeResponseUpdated, ports.AggregateResponse, response.ID, map[string]interface{}{
		"audit_id": response.AuditID,
		"status":   response.Status,
	})
	return response, nil
}

// CompleteResponse marks a fully evaluated response as completed
func (uc *ResponseUseCase) CompleteResponse(ctx context.Context, responseID string) (*domain.AuditResponse, error) {
	response, err := uc.mutate(ctx, responseID, func(_ ports.Repositories, _ *domain.Audit, r *domain.AuditResponse) error {
		return r.MarkCompleted()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to complete response: %w", err)
	}

	uc.publish(ctx, ports.EventTypeResponseCompleted, ports.AggregateResponse, response.ID, map[string]interface{}{
		"audit_id": response.AuditID,
	})
	return response, nil
}

// ReviewResponse records a review of a completed response. An empty
// reviewerID falls back to the authenticated actor.
func (uc *ResponseUseCase) ReviewResponse(ctx context.Context, responseID, reviewerID string) (*domain.AuditResponse, error) {
	if reviewerID == "" {
		reviewerID = logger.Actor(ctx)
	}
	response, err := uc.mutate(ctx, responseID, func(_ ports.Repositories, _ *domain.Audit, r *domain.AuditResponse) error {
		return r.MarkReviewed(reviewerID, uc.now())
	})
	if err != nil {
		return nil, fmt.Errorf("failed to review response: %w", err)
	}

	uc.publish(ctx, ports.EventTypeResponseReviewed, ports.AggregateResponse, response.ID, map[string]interface{}{
		"audit_id":    response.AuditID,
		"reviewer_id": reviewerID,
	})
	return response, nil
}

// ResetResponse clears a response back to NOT_STARTED
func (uc *ResponseUseCase) ResetResponse(ctx context.Context, responseID string) (*domain.AuditResponse, error) {
	response, err := uc.mutate(ctx, responseID, func(_ ports.Repositories, _ *domain.Audit, r *domain.AuditResponse) error {
		r.Reset()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reset response: %w", err)
	}

	uc.log.Info(ctx, "response reset", map[string]interface{}{
		"audit_id":    response.AuditID,
		"response_id": response.ID,
	})
	uc.publish(ctx, ports.EventTypeResponseReset, ports.AggregateResponse, response.ID, map[string]interface{}{
		"audit_id": response.AuditID,
	})
	return response, nil
}

// mutate loads a response and its audit in one transaction, checks the audit
// is in progress, applies fn and saves the response. The audit row stays
// locked until commit so a concurrent close cannot slip in between.
func (uc *ResponseUseCase) mutate(ctx context.Context, responseID string, fn func(tx ports.Repositories, audit *domain.Audit, r *domain.AuditResponse) error) (*domain.AuditResponse, error) {
	var response *domain.AuditResponse
	err := uc.uow.WithinTx(ctx, func(tx ports.Repositories) error {
		var err error
		response, err = tx.Responses.FindByID(ctx, responseID)
		if err != nil {
			return err
		}
		audit, err := tx.Audits.FindByIDForUpdate(ctx, response.AuditID)
		if err != nil {
			return err
		}
		// reload under the audit lock; the first read may predate a
		// concurrent update of the same response
		response, err = tx.Responses.FindByID(ctx, responseID)
		if err != nil {
			return err
		}
		if err := audit.EnsureActive(); err != nil {
			return err
		}
		if err := fn(tx, audit, response); err != nil {
			return err
		}
		return tx.Responses.Update(ctx, response)
	})
	return response, err
}
