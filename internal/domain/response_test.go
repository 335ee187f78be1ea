package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func levelPtr(v ComplianceLevel) *ComplianceLevel { return &v }

func newTestResponse(weight float64) *AuditResponse {
	standard := NewStandard("tpl-1", "A.5.1", "Policies for information security")
	standard.IsAuditable = true
	standard.Weight = weight
	return NewAuditResponse("audit-1", standard)
}

func TestNewAuditResponse_FreezesWeight(t *testing.T) {
	standard := NewStandard("tpl-1", "A.5.1", "Policies")
	standard.IsAuditable = true
	standard.Weight = 25

	response := NewAuditResponse("audit-1", standard)
	standard.Weight = 40

	assert.Equal(t, 25.0, response.Weight)
	assert.Equal(t, standard.ID, response.StandardID)
	assert.Equal(t, ResponseStatusNotStarted, response.Status)
	assert.Nil(t, response.Score)
	assert.Nil(t, response.ComplianceLevel)
	assert.Nil(t, response.AchievedMaturityLevel)
}

func TestAuditResponse_ApplyUpdate(t *testing.T) {
	response := newTestResponse(50)

	err := response.ApplyUpdate(ResponseUpdate{
		Score:    floatPtr(80),
		Findings: strPtr("policy approved but not reviewed yearly"),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, ResponseStatusInProgress, response.Status)
	require.NotNil(t, response.Score)
	assert.Equal(t, 80.0, *response.Score)
	assert.Equal(t, "policy approved but not reviewed yearly", response.Findings)
	assert.Nil(t, response.ComplianceLevel, "fields not provided must stay untouched")

	err = response.ApplyUpdate(ResponseUpdate{ComplianceLevel: levelPtr(ComplianceLevelPartiallyCompliant)}, nil)
	require.NoError(t, err)
	assert.Equal(t, 80.0, *response.Score)
	assert.Equal(t, ComplianceLevelPartiallyCompliant, *response.ComplianceLevel)
}

func TestAuditResponse_ApplyUpdateValidation(t *testing.T) {
	framework := &ScoringFramework{Name: "custom", MinLevel: 1, MaxLevel: 3}

	tests := []struct {
		name    string
		update  ResponseUpdate
		wantErr error
	}{
		{"empty update", ResponseUpdate{}, ErrInvalidInput},
		{"negative score", ResponseUpdate{Score: floatPtr(-0.5)}, ErrOutOfRange},
		{"score above 100", ResponseUpdate{Score: floatPtr(100.01)}, ErrOutOfRange},
		{"score is NaN", ResponseUpdate{Score: floatPtr(math.NaN())}, ErrOutOfRange},
		{"unknown compliance level", ResponseUpdate{ComplianceLevel: levelPtr("MOSTLY")}, ErrInvalidInput},
		{"maturity below framework", ResponseUpdate{AchievedMaturityLevel: intPtr(0)}, ErrOutOfRange},
		{"maturity above framework", ResponseUpdate{AchievedMaturityLevel: intPtr(4)}, ErrOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			response := newTestResponse(50)
			err := response.ApplyUpdate(tt.update, framework)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, ResponseStatusNotStarted, response.Status)
			assert.Nil(t, response.Score)
		})
	}
}

func TestAuditResponse_ApplyUpdateBoundaries(t *testing.T) {
	response := newTestResponse(50)

	require.NoError(t, response.ApplyUpdate(ResponseUpdate{Score: floatPtr(0)}, nil))
	require.NoError(t, response.ApplyUpdate(ResponseUpdate{Score: floatPtr(100)}, nil))
	require.NoError(t, response.ApplyUpdate(ResponseUpdate{AchievedMaturityLevel: intPtr(0)}, nil))
	require.NoError(t, response.ApplyUpdate(ResponseUpdate{AchievedMaturityLevel: intPtr(5)}, nil))

	err := response.ApplyUpdate(ResponseUpdate{AchievedMaturityLevel: intPtr(6)}, nil)
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.Equal(t, response.ID, err.(*DomainError).EntityID)
}

func TestAuditResponse_Lifecycle(t *testing.T) {
	response := newTestResponse(30)

	err := response.MarkCompleted()
	require.ErrorIs(t, err, ErrIncompleteEvaluation)
	assert.ElementsMatch(t, []string{"score", "compliance_level"}, err.(*DomainError).Details)

	require.NoError(t, response.ApplyUpdate(ResponseUpdate{Score: floatPtr(90)}, nil))
	err = response.MarkCompleted()
	require.ErrorIs(t, err, ErrIncompleteEvaluation)
	assert.Equal(t, []string{"compliance_level"}, err.(*DomainError).Details)

	err = response.MarkReviewed("reviewer-1", time.Now())
	assert.ErrorIs(t, err, ErrNotCompleted)

	require.NoError(t, response.ApplyUpdate(ResponseUpdate{ComplianceLevel: levelPtr(ComplianceLevelCompliant)}, nil))
	require.NoError(t, response.MarkCompleted())
	assert.Equal(t, ResponseStatusCompleted, response.Status)
	assert.True(t, response.IsFinished())

	reviewedAt := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, response.MarkReviewed("reviewer-1", reviewedAt))
	assert.Equal(t, ResponseStatusReviewed, response.Status)
	assert.Equal(t, "reviewer-1", *response.ReviewerID)
	assert.Equal(t, reviewedAt, *response.ReviewedAt)

	err = response.MarkCompleted()
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
}

func TestAuditResponse_EditCompletedReturnsToInProgress(t *testing.T) {
	response := newTestResponse(30)
	require.NoError(t, response.ApplyUpdate(ResponseUpdate{
		Score:           floatPtr(70),
		ComplianceLevel: levelPtr(ComplianceLevelCompliant),
	}, nil))
	require.NoError(t, response.MarkCompleted())

	require.NoError(t, response.ApplyUpdate(ResponseUpdate{Notes: strPtr("re-checked")}, nil))
	assert.Equal(t, ResponseStatusInProgress, response.Status)
}

func TestAuditResponse_ReviewedRequiresReset(t *testing.T) {
	response := newTestResponse(30)
	require.NoError(t, response.ApplyUpdate(ResponseUpdate{
		Score:                 floatPtr(70),
		ComplianceLevel:       levelPtr(ComplianceLevelCompliant),
		AchievedMaturityLevel: intPtr(3),
		AssigneeID:            strPtr("auditor-1"),
	}, nil))
	require.NoError(t, response.MarkCompleted())
	require.NoError(t, response.MarkReviewed("reviewer-1", time.Now()))

	err := response.ApplyUpdate(ResponseUpdate{Score: floatPtr(10)}, nil)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
	assert.Equal(t, 70.0, *response.Score)

	response.Reset()
	assert.Equal(t, ResponseStatusNotStarted, response.Status)
	assert.Nil(t, response.Score)
	assert.Nil(t, response.ComplianceLevel)
	assert.Nil(t, response.AchievedMaturityLevel)
	assert.Nil(t, response.AssigneeID)
	assert.Nil(t, response.ReviewerID)
	assert.Nil(t, response.ReviewedAt)
	assert.Equal(t, 30.0, response.Weight, "reset keeps the frozen weight")

	require.NoError(t, response.ApplyUpdate(ResponseUpdate{Score: floatPtr(10)}, nil))
}

func TestAuditResponse_WeightedScore(t *testing.T) {
	response := newTestResponse(25)
	assert.Equal(t, 0.0, response.WeightedScore())

	require.NoError(t, response.ApplyUpdate(ResponseUpdate{Score: floatPtr(80)}, nil))
	assert.Equal(t, 20.0, response.WeightedScore())
}

func TestNewResponseSet(t *testing.T) {
	group := NewStandard("tpl-1", "A.5", "Organizational controls")
	leafA := NewStandard("tpl-1", "A.5.1", "Policies")
	leafA.IsAuditable, leafA.Weight = true, 60
	leafB := NewStandard("tpl-1", "A.5.2", "Roles")
	leafB.IsAuditable, leafB.Weight = true, 40
	retired := NewStandard("tpl-1", "A.5.3", "Retired")
	retired.IsAuditable, retired.IsActive, retired.Weight = true, false, 10
	for _, s := range []*Standard{leafA, leafB, retired} {
		require.NoError(t, s.AttachTo(group))
	}

	responses, err := NewResponseSet("audit-1", []*Standard{group, leafA, leafB, retired})
	require.NoError(t, err)
	require.Len(t, responses, 2)
	assert.Equal(t, []float64{60, 40}, ResponseWeights(responses))

	_, err = NewResponseSet("audit-1", []*Standard{group})
	assert.ErrorIs(t, err, ErrNoAuditableStandards)
}
