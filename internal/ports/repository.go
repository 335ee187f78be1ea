package ports

import (
	"context"

	"github.com/auditflow/auditflow/internal/domain"
)

// TemplateRepository reads template headers. Templates are maintained
// elsewhere; this service only checks their status.
type TemplateRepository interface {
	// FindByID retrieves a template by its ID
	FindByID(ctx context.Context, id string) (*domain.Template, error)
}

// FrameworkRepository reads scoring frameworks
type FrameworkRepository interface {
	FindByID(ctx context.Context, id string) (*domain.ScoringFramework, error)
}

// StandardRepository defines the interface for standard persistence
type StandardRepository interface {
	// Create saves a new standard
	Create(ctx context.Context, standard *domain.Standard) error

	// FindByID retrieves a standard by its ID
	FindByID(ctx context.Context, id string) (*domain.Standard, error)

	// ListByTemplate retrieves every standard of a template, active or not
	ListByTemplate(ctx context.Context, templateID string) ([]*domain.Standard, error)

	// Update updates an existing standard
	Update(ctx context.Context, standard *domain.Standard) error

	// Delete removes a standard
	Delete(ctx context.Context, id string) error
}

// AuditRepository defines the interface for audit persistence
type AuditRepository interface {
	// Create saves a new audit
	Create(ctx context.Context, audit *domain.Audit) error

	// FindByID retrieves an audit by its ID
	FindByID(ctx context.Context, id string) (*domain.Audit, error)

	// FindByIDForUpdate retrieves an audit and holds its row lock until the
	// surrounding transaction ends. Writes that depend on the audit's status
	// or revisions read it this way.
	FindByIDForUpdate(ctx context.Context, id string) (*domain.Audit, error)

	// ExistsByCode reports whether an audit already uses code
	ExistsByCode(ctx context.Context, code string) (bool, error)

	// ListRevisions retrieves the direct revisions of an audit
	ListRevisions(ctx context.Context, parentID string) ([]*domain.Audit, error)

	// Update updates an existing audit
	Update(ctx context.Context, audit *domain.Audit) error

	// Delete removes an audit together with its responses and assignments
	Delete(ctx context.Context, id string) error
}

// AssignmentRepository defines the interface for audit team persistence
type AssignmentRepository interface {
	Create(ctx context.Context, assignment *domain.Assignment) error
	FindByID(ctx context.Context, id string) (*domain.Assignment, error)
	ListByAudit(ctx context.Context, auditID string) ([]*domain.Assignment, error)
	Update(ctx context.Context, assignment *domain.Assignment) error
}

// ResponseRepository defines the interface for audit response persistence
type ResponseRepository interface {
	// CreateBatch saves a full response set in one call
	CreateBatch(ctx context.Context, responses []*domain.AuditResponse) error

	// FindByID retrieves a response by its ID
	FindByID(ctx context.Context, id string) (*domain.AuditResponse, error)

	// ListByAudit retrieves the responses of an audit
	ListByAudit(ctx context.Context, auditID string) ([]*domain.AuditResponse, error)

	// Update updates an existing response
	Update(ctx context.Context, response *domain.AuditResponse) error
}

// Repositories bundles every repository bound to the same connection or transaction
type Repositories struct {
	Templates   TemplateRepository
	Frameworks  FrameworkRepository
	Standards   StandardRepository
	Audits      AuditRepository
	Assignments AssignmentRepository
	Responses   ResponseRepository
}

// UnitOfWork is the atomic read/write boundary. Every multi-record mutation
// runs inside WithinTx; a non-nil error from fn rolls the whole unit back.
type UnitOfWork interface {
	// Repositories returns repositories bound to the plain connection, for reads
	Repositories() Repositories

	// WithinTx runs fn against repositories bound to a single transaction
	WithinTx(ctx context.Context, fn func(tx Repositories) error) error
}
