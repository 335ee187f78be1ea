package usecase

import (
	"context"
	"testing"

	"github.com/auditflow/auditflow/internal/adapter/memory"
	"github.com/auditflow/auditflow/internal/domain"
	"github.com/auditflow/auditflow/internal/logger"
	"github.com/auditflow/auditflow/internal/ports"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, event ports.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

const (
	publishedTemplate = "tpl-iso"
	draftTemplate     = "tpl-draft"
	frameworkID       = "fw-three"
)

type fixture struct {
	ctx       context.Context
	store     *memory.Store
	publisher *MockEventPublisher
	audits    *AuditUseCase
	responses *ResponseUseCase
	standards *StandardUseCase
	scoring   *ScoringUseCase
	codes     map[string]*domain.Standard
}

// newFixture seeds a published template (A.5 > A.5.1 weight 40, A.5.2 weight 60)
// and a draft template (G > L1 50, L2 30, L3 20).
func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	store.PutTemplate(domain.Template{ID: publishedTemplate, Code: "ISO27001", Name: "ISO 27001", Version: "2022", Status: domain.TemplateStatusPublished})
	store.PutTemplate(domain.Template{ID: draftTemplate, Code: "INTERNAL", Name: "Internal controls", Version: "1", Status: domain.TemplateStatusDraft})
	store.PutFramework(domain.ScoringFramework{
		ID:       frameworkID,
		Name:     "Three step",
		MinLevel: 1,
		MaxLevel: 3,
		Tiers:    []domain.MaturityTier{{Level: 1, Name: "Basic"}, {Level: 2, Name: "Repeatable"}, {Level: 3, Name: "Optimized"}},
	})

	f := &fixture{
		ctx:       logger.WithActor(context.Background(), "user-lead"),
		store:     store,
		publisher: &MockEventPublisher{},
		codes:     map[string]*domain.Standard{},
	}
	f.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

	log := logger.NewNop()
	f.audits = NewAuditUseCase(store, f.publisher, log)
	f.responses = NewResponseUseCase(store, f.publisher, log)
	f.standards = NewStandardUseCase(store, f.publisher, log)
	f.scoring = NewScoringUseCase(store, log)

	f.seed(t, publishedTemplate, "A.5", "", false, 0, 0)
	f.seed(t, publishedTemplate, "A.5.1", "A.5", true, 40, 1)
	f.seed(t, publishedTemplate, "A.5.2", "A.5", true, 60, 2)

	f.seed(t, draftTemplate, "G", "", false, 0, 0)
	f.seed(t, draftTemplate, "L1", "G", true, 50, 1)
	f.seed(t, draftTemplate, "L2", "G", true, 30, 2)
	f.seed(t, draftTemplate, "L3", "G", true, 20, 3)
	return f
}

func (f *fixture) seed(t *testing.T, templateID, code, parentCode string, auditable bool, weight float64, order int) {
	t.Helper()
	s := domain.NewStandard(templateID, code, "Control "+code)
	s.IsAuditable = auditable
	s.Weight = weight
	s.DisplayOrder = order
	if parentCode != "" {
		require.NoError(t, s.AttachTo(f.codes[parentCode]))
	}
	require.NoError(t, f.store.WithinTx(context.Background(), func(tx ports.Repositories) error {
		return tx.Standards.Create(context.Background(), s)
	}))
	f.codes[code] = s
}

func (f *fixture) createAudit(t *testing.T, code string) *AuditDetail {
	t.Helper()
	detail, err := f.audits.CreateAudit(f.ctx, CreateAuditRequest{
		Code:           code,
		Name:           "Annual ISO audit",
		TemplateID:     publishedTemplate,
		OrganizationID: "org-1",
	})
	require.NoError(t, err)
	return detail
}

func (f *fixture) startAudit(t *testing.T, code string) *AuditDetail {
	t.Helper()
	detail := f.createAudit(t, code)
	_, err := f.audits.AssignMember(f.ctx, detail.Audit.ID, AssignMemberRequest{UserID: "user-lead", Role: domain.AssignmentRoleLeadAuditor})
	require.NoError(t, err)
	_, err = f.audits.StartAudit(f.ctx, detail.Audit.ID)
	require.NoError(t, err)
	return detail
}

// responseFor returns the response of an audit evaluating the standard with code
func (f *fixture) responseFor(t *testing.T, auditID, code string) *domain.AuditResponse {
	t.Helper()
	responses, err := f.store.Repositories().Responses.ListByAudit(context.Background(), auditID)
	require.NoError(t, err)
	for _, r := range responses {
		if r.StandardID == f.codes[code].ID {
			return r
		}
	}
	t.Fatalf("no response for %s in audit %s", code, auditID)
	return nil
}

func (f *fixture) evaluate(t *testing.T, responseID string, score float64, level int, compliance domain.ComplianceLevel) {
	t.Helper()
	_, err := f.responses.UpdateResponse(f.ctx, responseID, domain.ResponseUpdate{
		Score:                 &score,
		ComplianceLevel:       &compliance,
		AchievedMaturityLevel: &level,
	})
	require.NoError(t, err)
	_, err = f.responses.CompleteResponse(f.ctx, responseID)
	require.NoError(t, err)
}

func (f *fixture) templateWeights(t *testing.T, templateID string) map[string]float64 {
	t.Helper()
	standards, err := f.store.Repositories().Standards.ListByTemplate(context.Background(), templateID)
	require.NoError(t, err)
	out := map[string]float64{}
	for _, s := range standards {
		if s.IsScored() {
			out[s.Code] = s.Weight
		}
	}
	return out
}
