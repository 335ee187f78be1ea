package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventPublisher defines the interface for domain event publishing.
// Publishing is best-effort: callers never fail an operation on a publish error.
type EventPublisher interface {
	// Publish publishes a domain event
	Publish(ctx context.Context, event Event) error
}

// Event represents a domain event
type Event struct {
	ID          string                 `json:"id"`
	Type        string                 `json:"type"`
	Aggregate   string                 `json:"aggregate"`
	AggregateID string                 `json:"aggregate_id"`
	Actor       string                 `json:"actor,omitempty"`
	Data        map[string]interface{} `json:"data"`
	CreatedAt   int64                  `json:"created_at"`
}

// Aggregates
const (
	AggregateAudit    = "audit"
	AggregateResponse = "response"
	AggregateTemplate = "template"
	AggregateStandard = "standard"
)

// Event Types
const (
	EventTypeAuditCreated      = "audit_created"
	EventTypeAuditDeleted      = "audit_deleted"
	EventTypeMemberAssigned    = "member_assigned"
	EventTypeMemberDeactivated = "member_deactivated"
	EventTypeAuditStarted      = "audit_started"
	EventTypeAuditClosed       = "audit_closed"
	EventTypeAuditArchived     = "audit_archived"
	EventTypeRevisionCreated   = "revision_created"
	EventTypeResponseUpdated   = "response_updated"
	EventTypeResponseCompleted = "response_completed"
	EventTypeResponseReviewed  = "response_reviewed"
	EventTypeResponseReset     = "response_reset"
	EventTypeStandardCreated   = "standard_created"
	EventTypeStandardDeleted   = "standard_deleted"
	EventTypeStandardsImported = "standards_imported"
	EventTypeWeightsChanged    = "weights_changed"
)

// NewEvent creates a new domain event
func NewEvent(eventType, aggregate, aggregateID, actor string, data map[string]interface{}) *Event {
	if data == nil {
		data = map[string]interface{}{}
	}
	return &Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		Aggregate:   aggregate,
		AggregateID: aggregateID,
		Actor:       actor,
		Data:        data,
		CreatedAt:   time.Now().Unix(),
	}
}

// NoopPublisher discards every event
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
