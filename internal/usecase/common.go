package usecase

import (
	"context"
	"time"

	"github.com/auditflow/auditflow/internal/domain"
	"github.com/auditflow/auditflow/internal/logger"
	"github.com/auditflow/auditflow/internal/ports"
)

// base carries the collaborators every use case shares
type base struct {
	uow            ports.UnitOfWork
	eventPublisher ports.EventPublisher
	log            logger.Logger
	now            func() time.Time
}

func newBase(uow ports.UnitOfWork, eventPublisher ports.EventPublisher, log logger.Logger, component string) base {
	if eventPublisher == nil {
		eventPublisher = ports.NoopPublisher{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return base{
		uow:            uow,
		eventPublisher: eventPublisher,
		log:            log.WithFields(map[string]interface{}{"component": component}),
		now:            time.Now,
	}
}

// publish emits an event after the unit of work committed. A failure is
// logged and never surfaces to the caller.
func (b base) publish(ctx context.Context, eventType, aggregate, aggregateID string, data map[string]interface{}) {
	event := ports.NewEvent(eventType, aggregate, aggregateID, logger.Actor(ctx), data)
	if err := b.eventPublisher.Publish(ctx, *event); err != nil {
		b.log.Warn(ctx, "failed to publish event", map[string]interface{}{
			"event_type":   eventType,
			"aggregate_id": aggregateID,
			"error":        err.Error(),
		})
	}
}

// resolveFramework returns the audit's scoring framework or the default scale
func resolveFramework(ctx context.Context, repos ports.Repositories, audit *domain.Audit) (*domain.ScoringFramework, error) {
	if audit.ScoringFrameworkID == nil {
		return domain.DefaultScoringFramework(), nil
	}
	return repos.Frameworks.FindByID(ctx, *audit.ScoringFrameworkID)
}

// initializeResponses creates the audit's response set unless one already
// exists. It must run inside the caller's transaction so the existence check
// and the insert are atomic.
func initializeResponses(ctx context.Context, tx ports.Repositories, audit *domain.Audit) ([]*domain.AuditResponse, bool, error) {
	existing, err := tx.Responses.ListByAudit(ctx, audit.ID)
	if err != nil {
		return nil, false, err
	}
	if len(existing) > 0 {
		return existing, false, nil
	}

	standards, err := tx.Standards.ListByTemplate(ctx, audit.TemplateID)
	if err != nil {
		return nil, false, err
	}
	responses, err := domain.NewResponseSet(audit.ID, standards)
	if err != nil {
		return nil, false, err
	}
	if err := tx.Responses.CreateBatch(ctx, responses); err != nil {
		return nil, false, err
	}
	return responses, true, nil
}
