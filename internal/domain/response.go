package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// ResponseStatus represents the evaluation state of a response
type ResponseStatus string

const (
	ResponseStatusNotStarted ResponseStatus = "NOT_STARTED"
	ResponseStatusInProgress ResponseStatus = "IN_PROGRESS"
	ResponseStatusCompleted  ResponseStatus = "COMPLETED"
	ResponseStatusReviewed   ResponseStatus = "REVIEWED"
)

// ComplianceLevel is the auditor's verdict on a control
type ComplianceLevel string

const (
	ComplianceLevelCompliant          ComplianceLevel = "COMPLIANT"
	ComplianceLevelPartiallyCompliant ComplianceLevel = "PARTIALLY_COMPLIANT"
	ComplianceLevelNonCompliant       ComplianceLevel = "NON_COMPLIANT"
	ComplianceLevelNotApplicable      ComplianceLevel = "NOT_APPLICABLE"
)

// ComplianceLevels lists the verdicts in reporting order
var ComplianceLevels = []ComplianceLevel{
	ComplianceLevelCompliant,
	ComplianceLevelPartiallyCompliant,
	ComplianceLevelNonCompliant,
	ComplianceLevelNotApplicable,
}

// Valid reports whether c is a known compliance level
func (c ComplianceLevel) Valid() bool {
	for _, level := range ComplianceLevels {
		if c == level {
			return true
		}
	}
	return false
}

// AuditResponse is the evaluation of one standard within one audit
type AuditResponse struct {
	ID                    string           `json:"id"`
	AuditID               string           `json:"audit_id"`
	StandardID            string           `json:"standard_id"`
	Weight                float64          `json:"weight"`
	Status                ResponseStatus   `json:"status"`
	Score                 *float64         `json:"score,omitempty"`
	ComplianceLevel       *ComplianceLevel `json:"compliance_level,omitempty"`
	AchievedMaturityLevel *int             `json:"achieved_maturity_level,omitempty"`
	Findings              string           `json:"findings,omitempty"`
	Recommendations       string           `json:"recommendations,omitempty"`
	Notes                 string           `json:"notes,omitempty"`
	AssigneeID            *string          `json:"assignee_id,omitempty"`
	ReviewerID            *string          `json:"reviewer_id,omitempty"`
	ReviewedAt            *time.Time       `json:"reviewed_at,omitempty"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// NewAuditResponse creates a not-started response. The standard's weight is
// copied so later edits to the standard never change this audit's math.
func NewAuditResponse(auditID string, standard *Standard) *AuditResponse {
	now := time.Now()
	return &AuditResponse{
		ID:         uuid.NewString(),
		AuditID:    auditID,
		StandardID: standard.ID,
		Weight:     standard.Weight,
		Status:     ResponseStatusNotStarted,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// ResponseUpdate carries the fields explicitly provided by the caller; nil
// fields are left untouched. A JSON null decodes to nil, so a single field
// cannot be cleared this way; ResetResponse clears every evaluation field.
type ResponseUpdate struct {
	Score                 *float64         `json:"score,omitempty"`
	ComplianceLevel       *ComplianceLevel `json:"compliance_level,omitempty"`
	AchievedMaturityLevel *int             `json:"achieved_maturity_level,omitempty"`
	Findings              *string          `json:"findings,omitempty"`
	Recommendations       *string          `json:"recommendations,omitempty"`
	Notes                 *string          `json:"notes,omitempty"`
	AssigneeID            *string          `json:"assignee_id,omitempty"`
}

// IsEmpty reports whether the update provides no field at all
func (u ResponseUpdate) IsEmpty() bool {
	return u.Score == nil && u.ComplianceLevel == nil && u.AchievedMaturityLevel == nil &&
		u.Findings == nil && u.Recommendations == nil && u.Notes == nil && u.AssigneeID == nil
}

// ApplyUpdate validates and applies a partial evaluation update. Editing a
// completed response sends it back to IN_PROGRESS; reviewed responses must be
// reset first.
func (r *AuditResponse) ApplyUpdate(u ResponseUpdate, framework *ScoringFramework) error {
	if r.Status == ResponseStatusReviewed {
		return InvalidTransition(r.ID, string(r.Status), "update")
	}
	if u.IsEmpty() {
		return ErrInvalidInput.For(r.ID).With("no fields to update")
	}
	if u.Score != nil && (math.IsNaN(*u.Score) || *u.Score < 0 || *u.Score > 100) {
		return ErrOutOfRange.For(r.ID).With(fmt.Sprintf("score %v must be between 0 and 100", *u.Score))
	}
	if u.ComplianceLevel != nil && !u.ComplianceLevel.Valid() {
		return ErrInvalidInput.For(r.ID).With(fmt.Sprintf("unknown compliance level %q", *u.ComplianceLevel))
	}
	if u.AchievedMaturityLevel != nil {
		if framework == nil {
			framework = DefaultScoringFramework()
		}
		if err := framework.ValidateLevel(*u.AchievedMaturityLevel); err != nil {
			return BindEntity(err, r.ID)
		}
	}

	if u.Score != nil {
		score := *u.Score
		r.Score = &score
	}
	if u.ComplianceLevel != nil {
		level := *u.ComplianceLevel
		r.ComplianceLevel = &level
	}
	if u.AchievedMaturityLevel != nil {
		level := *u.AchievedMaturityLevel
		r.AchievedMaturityLevel = &level
	}
	if u.Findings != nil {
		r.Findings = *u.Findings
	}
	if u.Recommendations != nil {
		r.Recommendations = *u.Recommendations
	}
	if u.Notes != nil {
		r.Notes = *u.Notes
	}
	if u.AssigneeID != nil {
		assignee := *u.AssigneeID
		r.AssigneeID = &assignee
	}

	r.Status = ResponseStatusInProgress
	r.UpdatedAt = time.Now()
	return nil
}

// MissingFields lists the evaluation fields required for completion that are unset
func (r *AuditResponse) MissingFields() []string {
	var missing []string
	if r.Score == nil {
		missing = append(missing, "score")
	}
	if r.ComplianceLevel == nil {
		missing = append(missing, "compliance_level")
	}
	return missing
}

// MarkCompleted requires a score and a compliance level
func (r *AuditResponse) MarkCompleted() error {
	if r.Status != ResponseStatusNotStarted && r.Status != ResponseStatusInProgress {
		return InvalidTransition(r.ID, string(r.Status), "complete")
	}
	if missing := r.MissingFields(); len(missing) > 0 {
		return ErrIncompleteEvaluation.For(r.ID).With(missing...)
	}
	r.Status = ResponseStatusCompleted
	r.UpdatedAt = time.Now()
	return nil
}

// MarkReviewed records the reviewer of a completed response
func (r *AuditResponse) MarkReviewed(reviewerID string, now time.Time) error {
	if r.Status != ResponseStatusCompleted {
		return ErrNotCompleted.For(r.ID).With("status is " + string(r.Status))
	}
	if reviewerID == "" {
		return ErrInvalidInput.For(r.ID).With("reviewer id is required")
	}
	reviewer := reviewerID
	r.ReviewerID = &reviewer
	r.ReviewedAt = &now
	r.Status = ResponseStatusReviewed
	r.UpdatedAt = now
	return nil
}

// Reset clears every evaluation field and returns the response to NOT_STARTED
func (r *AuditResponse) Reset() {
	r.Status = ResponseStatusNotStarted
	r.Score = nil
	r.ComplianceLevel = nil
	r.AchievedMaturityLevel = nil
	r.Findings = ""
	r.Recommendations = ""
	r.Notes = ""
	r.AssigneeID = nil
	r.ReviewerID = nil
	r.ReviewedAt = nil
	r.UpdatedAt = time.Now()
}

// WeightedScore is the response's contribution to the overall score
func (r *AuditResponse) WeightedScore() float64 {
	return WeightedScore(r.Score, r.Weight)
}

// IsFinished reports whether the response is completed or reviewed
func (r *AuditResponse) IsFinished() bool {
	return r.Status == ResponseStatusCompleted || r.Status == ResponseStatusReviewed
}

// NewResponseSet builds one response per scored standard of a template
func NewResponseSet(auditID string, standards []*Standard) ([]*AuditResponse, error) {
	scored := ScoredStandards(standards)
	if len(scored) == 0 {
		return nil, ErrNoAuditableStandards.For(auditID)
	}
	responses := make([]*AuditResponse, 0, len(scored))
	for _, s := range scored {
		responses = append(responses, NewAuditResponse(auditID, s))
	}
	return responses, nil
}

// ResponseWeights extracts the frozen weights of responses in order
func ResponseWeights(responses []*AuditResponse) []float64 {
	weights := make([]float64, len(responses))
	for i, r := range responses {
		weights[i] = r.Weight
	}
	return weights
}
