package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditStatus represents the lifecycle state of an audit
type AuditStatus string

const (
	AuditStatusDraft      AuditStatus = "DRAFT"
	AuditStatusInProgress AuditStatus = "IN_PROGRESS"
	AuditStatusClosed     AuditStatus = "CLOSED"
	AuditStatusArchived   AuditStatus = "ARCHIVED"
)

// auditTransitions lists every legal lifecycle move
var auditTransitions = map[AuditStatus]AuditStatus{
	AuditStatusDraft:      AuditStatusInProgress,
	AuditStatusInProgress: AuditStatusClosed,
	AuditStatusClosed:     AuditStatusArchived,
}

// CanTransition reports whether an audit may move from one status to another
func (s AuditStatus) CanTransition(to AuditStatus) bool {
	next, ok := auditTransitions[s]
	return ok && next == to
}

// Valid reports whether s is a known status
func (s AuditStatus) Valid() bool {
	switch s {
	case AuditStatusDraft, AuditStatusInProgress, AuditStatusClosed, AuditStatusArchived:
		return true
	}
	return false
}

// Audit is one execution of a template against an organization
type Audit struct {
	ID                 string      `json:"id"`
	Code               string      `json:"code"`
	Name               string      `json:"name"`
	TemplateID         string      `json:"template_id"`
	OrganizationID     string      `json:"organization_id"`
	ScoringFrameworkID *string     `json:"scoring_framework_id,omitempty"`
	ParentAuditID      *string     `json:"parent_audit_id,omitempty"`
	RevisionNumber     int         `json:"revision_number"`
	Status             AuditStatus `json:"status"`
	PlannedStartDate   *time.Time  `json:"planned_start_date,omitempty"`
	PlannedCloseDate   *time.Time  `json:"planned_close_date,omitempty"`
	ActualStartDate    *time.Time  `json:"actual_start_date,omitempty"`
	ClosedAt           *time.Time  `json:"closed_at,omitempty"`
	ArchivedAt         *time.Time  `json:"archived_at,omitempty"`
	OverallScore       *float64    `json:"overall_score,omitempty"`
	MaturityLevel      *float64    `json:"maturity_level,omitempty"`
	CreatedBy          string      `json:"created_by"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// NewAudit creates a draft audit with no revision parent
func NewAudit(code, name, templateID, organizationID string, frameworkID *string, createdBy string) *Audit {
	now := time.Now()
	return &Audit{
		ID:                 uuid.NewString(),
		Code:               code,
		Name:               name,
		TemplateID:         templateID,
		OrganizationID:     organizationID,
		ScoringFrameworkID: frameworkID,
		Status:             AuditStatusDraft,
		CreatedBy:          createdBy,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// NewRevision creates a follow-up audit of a closed audit. Template and
// organization are shared by reference; frameworkID overrides the source
// framework when set. The revision starts a fresh lifecycle.
func (a *Audit) NewRevision(code, name string, revisionNumber int, frameworkID *string, createdBy string) (*Audit, error) {
	if a.Status != AuditStatusClosed {
		return nil, ErrNotClosed.For(a.ID).With("status is " + string(a.Status))
	}

	framework := a.ScoringFrameworkID
	if frameworkID != nil {
		framework = frameworkID
	}

	revision := NewAudit(code, name, a.TemplateID, a.OrganizationID, framework, createdBy)
	parentID := a.ID
	revision.ParentAuditID = &parentID
	revision.RevisionNumber = revisionNumber
	return revision, nil
}

// NextRevisionNumber returns max(existing revision numbers of source) + 1,
// never lower than source.RevisionNumber + 1.
func NextRevisionNumber(source *Audit, revisions []*Audit) int {
	highest := source.RevisionNumber
	for _, r := range revisions {
		if r.RevisionNumber > highest {
			highest = r.RevisionNumber
		}
	}
	return highest + 1
}

// IsRevision reports whether the audit follows up on a previous audit
func (a *Audit) IsRevision() bool {
	return a.ParentAuditID != nil
}

// EnsureMembersEditable guards assignment changes
func (a *Audit) EnsureMembersEditable() error {
	if a.Status != AuditStatusDraft {
		return ErrInvalidState.For(a.ID).With("status is " + string(a.Status))
	}
	return nil
}

// EnsureActive guards response mutations
func (a *Audit) EnsureActive() error {
	if a.Status != AuditStatusInProgress {
		return ErrAuditNotActive.For(a.ID).With("status is " + string(a.Status))
	}
	return nil
}

func (a *Audit) transition(to AuditStatus, operation string) error {
	if !a.Status.CanTransition(to) {
		return InvalidTransition(a.ID, string(a.Status), operation)
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	return nil
}

// Start moves a draft audit in progress; it needs at least one active member
func (a *Audit) Start(activeMembers int, now time.Time) error {
	if !a.Status.CanTransition(AuditStatusInProgress) {
		return InvalidTransition(a.ID, string(a.Status), "start")
	}
	if activeMembers < 1 {
		return ErrNoMembersAssigned.For(a.ID)
	}
	if err := a.transition(AuditStatusInProgress, "start"); err != nil {
		return err
	}
	a.ActualStartDate = &now
	return nil
}

// Close freezes the computed score and maturity level onto the audit
func (a *Audit) Close(overallScore float64, maturityLevel *float64, now time.Time) error {
	if err := a.transition(AuditStatusClosed, "close"); err != nil {
		return err
	}
	score := overallScore
	a.OverallScore = &score
	if maturityLevel != nil {
		level := *maturityLevel
		a.MaturityLevel = &level
	} else {
		a.MaturityLevel = nil
	}
	a.ClosedAt = &now
	return nil
}

// Archive retires a closed audit
func (a *Audit) Archive(now time.Time) error {
	if err := a.transition(AuditStatusArchived, "archive"); err != nil {
		return err
	}
	a.ArchivedAt = &now
	return nil
}

// SetPlannedDates records the planned window; close must not precede start
func (a *Audit) SetPlannedDates(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return ErrInvalidInput.For(a.ID).With("planned close date precedes planned start date")
	}
	a.PlannedStartDate = start
	a.PlannedCloseDate = end
	return nil
}

// AssignmentRole represents the role of a team member within an audit
type AssignmentRole string

const (
	AssignmentRoleLeadAuditor AssignmentRole = "LEAD_AUDITOR"
	AssignmentRoleAuditor     AssignmentRole = "AUDITOR"
	AssignmentRoleReviewer    AssignmentRole = "REVIEWER"
	AssignmentRoleObserver    AssignmentRole = "OBSERVER"
)

// Valid reports whether r is a known role
func (r AssignmentRole) Valid() bool {
	switch r {
	case AssignmentRoleLeadAuditor, AssignmentRoleAuditor, AssignmentRoleReviewer, AssignmentRoleObserver:
		return true
	}
	return false
}

// Assignment links a user to an audit team in a role
type Assignment struct {
	ID         string         `json:"id"`
	AuditID    string         `json:"audit_id"`
	UserID     string         `json:"user_id"`
	Role       AssignmentRole `json:"role"`
	IsActive   bool           `json:"is_active"`
	AssignedAt time.Time      `json:"assigned_at"`
}

// NewAssignment creates an active assignment
func NewAssignment(auditID, userID string, role AssignmentRole) (*Assignment, error) {
	if userID == "" {
		return nil, ErrInvalidInput.With("user id is required")
	}
	if !role.Valid() {
		return nil, ErrInvalidInput.With(fmt.Sprintf("unknown role %q", role))
	}
	return &Assignment{
		ID:         uuid.NewString(),
		AuditID:    auditID,
		UserID:     userID,
		Role:       role,
		IsActive:   true,
		AssignedAt: time.Now(),
	}, nil
}

// CountActiveAssignments counts assignments still active
func CountActiveAssignments(assignments []*Assignment) int {
	n := 0
	for _, a := range assignments {
		if a.IsActive {
			n++
		}
	}
	return n
}

// FindAssignment returns the assignment for (user, role) if one exists
func FindAssignment(assignments []*Assignment, userID string, role AssignmentRole) *Assignment {
	for _, a := range assignments {
		if a.UserID == userID && a.Role == role {
			return a
		}
	}
	return nil
}
