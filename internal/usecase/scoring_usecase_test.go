package usecase

import (
	"testing"

	"github.com/auditflow/auditflow/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoringUseCase_Summary(t *testing.T) {
	f := newFixture(t)
	detail := f.startAudit(t, "AUD-1")

	summary, err := f.scoring.Summary(f.ctx, detail.Audit.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, summary.OverallScore)
	assert.Nil(t, summary.AverageMaturityLevel)
	assert.Nil(t, summary.MaturityTier)
	assert.Equal(t, 100.0, summary.TotalWeight)
	assert.Equal(t, 2, summary.Compliance.NotEvaluated.Count)
	assert.False(t, summary.Complete)

	f.evaluate(t, f.responseFor(t, detail.Audit.ID, "A.5.1").ID, 60, 3, domain.ComplianceLevelCompliant)
	f.evaluate(t, f.responseFor(t, detail.Audit.ID, "A.5.2").ID, 45, 2, domain.ComplianceLevelPartiallyCompliant)

	summary, err = f.scoring.Summary(f.ctx, detail.Audit.ID)
	require.NoError(t, err)
	assert.Equal(t, 51.0, summary.OverallScore)
	require.NotNil(t, summary.AverageMaturityLevel)
	assert.InDelta(t, 2.4, *summary.AverageMaturityLevel, 1e-9)
	require.NotNil(t, summary.MaturityTier)
	assert.Equal(t, "Managed", summary.MaturityTier.Name)
	assert.Equal(t, 50.0, summary.Compliance.Compliant.Percentage)
	assert.Equal(t, 100.0, summary.Progress.PercentageComplete)
	assert.True(t, summary.Complete)

	_, err = f.scoring.Summary(f.ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrAuditNotFound)
}

func TestScoringUseCase_SummaryUsesAuditFramework(t *testing.T) {
	f := newFixture(t)
	fw := frameworkID
	detail, err := f.audits.CreateAudit(f.ctx, CreateAuditRequest{
		Code: "AUD-FW", Name: "Framework", TemplateID: publishedTemplate, OrganizationID: "org-1", ScoringFrameworkID: &fw,
	})
	require.NoError(t, err)
	_, err = f.audits.AssignMember(f.ctx, detail.Audit.ID, AssignMemberRequest{UserID: "user-lead", Role: domain.AssignmentRoleLeadAuditor})
	require.NoError(t, err)
	_, err = f.audits.StartAudit(f.ctx, detail.Audit.ID)
	require.NoError(t, err)

	f.evaluate(t, f.responseFor(t, detail.Audit.ID, "A.5.1").ID, 60, 3, domain.ComplianceLevelCompliant)
	f.evaluate(t, f.responseFor(t, detail.Audit.ID, "A.5.2").ID, 45, 2, domain.ComplianceLevelCompliant)

	summary, err := f.scoring.Summary(f.ctx, detail.Audit.ID)
	require.NoError(t, err)
	require.NotNil(t, summary.MaturityTier)
	assert.Equal(t, "Repeatable", summary.MaturityTier.Name)
}

func TestScoringUseCase_Completeness(t *testing.T) {
	f := newFixture(t)
	detail := f.startAudit(t, "AUD-1")
	first := f.responseFor(t, detail.Audit.ID, "A.5.1")
	second := f.responseFor(t, detail.Audit.ID, "A.5.2")

	report, err := f.scoring.Completeness(f.ctx, detail.Audit.ID)
	require.NoError(t, err)
	assert.False(t, report.Complete)
	assert.ElementsMatch(t, []string{first.ID, second.ID}, report.Pending)

	f.evaluate(t, first.ID, 60, 3, domain.ComplianceLevelCompliant)
	report, err = f.scoring.Completeness(f.ctx, detail.Audit.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{second.ID}, report.Pending)

	f.evaluate(t, second.ID, 45, 2, domain.ComplianceLevelCompliant)
	report, err = f.scoring.Completeness(f.ctx, detail.Audit.ID)
	require.NoError(t, err)
	assert.True(t, report.Complete)
	assert.Empty(t, report.Pending)
}
