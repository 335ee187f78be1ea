package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind groups domain errors into the categories callers act on
type ErrorKind string

const (
	KindNotFound               ErrorKind = "NOT_FOUND"
	KindInvalidStateTransition ErrorKind = "INVALID_STATE_TRANSITION"
	KindConstraintViolation    ErrorKind = "CONSTRAINT_VIOLATION"
	KindWeightSumInvalid       ErrorKind = "WEIGHT_SUM_INVALID"
	KindOutOfRange             ErrorKind = "OUT_OF_RANGE"
	KindInvalidIndex           ErrorKind = "INVALID_INDEX"
	KindIncompleteEvaluation   ErrorKind = "INCOMPLETE_EVALUATION"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Kind     ErrorKind `json:"kind"`
	Code     string    `json:"code"`
	Message  string    `json:"message"`
	EntityID string    `json:"entity_id,omitempty"`
	Details  []string  `json:"details,omitempty"`
}

func (e *DomainError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.EntityID != "" {
		fmt.Fprintf(&b, " (id: %s)", e.EntityID)
	}
	if len(e.Details) > 0 {
		fmt.Fprintf(&b, ": %s", strings.Join(e.Details, ", "))
	}
	return b.String()
}

// Is matches two domain errors by code, so that errors.Is works against the
// package sentinels regardless of the entity attached.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// For returns a copy of the error bound to the offending entity.
func (e *DomainError) For(entityID string) *DomainError {
	cp := *e
	cp.EntityID = entityID
	return &cp
}

// With returns a copy of the error carrying extra details.
func (e *DomainError) With(details ...string) *DomainError {
	cp := *e
	cp.Details = append(append([]string(nil), e.Details...), details...)
	return &cp
}

// BindEntity returns err bound to entityID when it is a DomainError, and err
// unchanged otherwise.
func BindEntity(err error, entityID string) error {
	var de *DomainError
	if errors.As(err, &de) {
		return de.For(entityID)
	}
	return err
}

func NewDomainError(kind ErrorKind, code, message string) *DomainError {
	return &DomainError{Kind: kind, Code: code, Message: message}
}

// KindOf returns the kind of the first DomainError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return "", false
}

// Not found
var (
	ErrTemplateNotFound   = NewDomainError(KindNotFound, "TEMPLATE_NOT_FOUND", "template not found")
	ErrStandardNotFound   = NewDomainError(KindNotFound, "STANDARD_NOT_FOUND", "standard not found")
	ErrAuditNotFound      = NewDomainError(KindNotFound, "AUDIT_NOT_FOUND", "audit not found")
	ErrResponseNotFound   = NewDomainError(KindNotFound, "RESPONSE_NOT_FOUND", "response not found")
	ErrFrameworkNotFound  = NewDomainError(KindNotFound, "FRAMEWORK_NOT_FOUND", "scoring framework not found")
	ErrAssignmentNotFound = NewDomainError(KindNotFound, "ASSIGNMENT_NOT_FOUND", "assignment not found")
	ErrParentNotFound     = NewDomainError(KindNotFound, "PARENT_NOT_FOUND", "parent standard not found")
)

// State transitions
var (
	ErrInvalidStateTransition = NewDomainError(KindInvalidStateTransition, "INVALID_STATE_TRANSITION", "invalid state transition")
	ErrTemplateNotPublished   = NewDomainError(KindInvalidStateTransition, "TEMPLATE_NOT_PUBLISHED", "template is not published")
	ErrTemplateNotEditable    = NewDomainError(KindInvalidStateTransition, "TEMPLATE_NOT_EDITABLE", "template is not editable")
	ErrInvalidState           = NewDomainError(KindInvalidStateTransition, "INVALID_STATE", "audit must be in DRAFT to change members")
	ErrNoMembersAssigned      = NewDomainError(KindInvalidStateTransition, "NO_MEMBERS_ASSIGNED", "audit has no active members assigned")
	ErrNotClosed              = NewDomainError(KindInvalidStateTransition, "NOT_CLOSED", "audit must be closed to create a revision")
	ErrAuditNotActive         = NewDomainError(KindInvalidStateTransition, "AUDIT_NOT_ACTIVE", "audit is not in progress")
	ErrNotCompleted           = NewDomainError(KindInvalidStateTransition, "NOT_COMPLETED", "response must be completed before review")
)

// Constraints
var (
	ErrHasChildren           = NewDomainError(KindConstraintViolation, "HAS_CHILDREN", "standard has children and cannot be deleted")
	ErrDuplicateAssignment   = NewDomainError(KindConstraintViolation, "DUPLICATE_ASSIGNMENT", "member already assigned with this role")
	ErrDuplicateAuditCode    = NewDomainError(KindConstraintViolation, "DUPLICATE_AUDIT_CODE", "audit code already exists")
	ErrDuplicateStandardCode = NewDomainError(KindConstraintViolation, "DUPLICATE_STANDARD_CODE", "standard code already exists in template")
	ErrDuplicateResponse     = NewDomainError(KindConstraintViolation, "DUPLICATE_RESPONSE", "response already exists for this standard")
	ErrDuplicateRevision     = NewDomainError(KindConstraintViolation, "DUPLICATE_REVISION", "revision number already used for this audit")
	ErrCircularReference     = NewDomainError(KindConstraintViolation, "CIRCULAR_REFERENCE", "circular parent reference")
	ErrUnresolvedParent      = NewDomainError(KindConstraintViolation, "UNRESOLVED_PARENT", "parent code not found in import batch")
	ErrNoAuditableStandards  = NewDomainError(KindConstraintViolation, "NO_AUDITABLE_STANDARDS", "template has no auditable standards")
	ErrInvalidInput          = NewDomainError(KindConstraintViolation, "INVALID_INPUT", "invalid input")
)

// Numeric invariants
var (
	ErrWeightSumInvalid = NewDomainError(KindWeightSumInvalid, "WEIGHT_SUM_INVALID", "weights must sum to 100")
	ErrOutOfRange       = NewDomainError(KindOutOfRange, "OUT_OF_RANGE", "value out of range")
	ErrInvalidIndex     = NewDomainError(KindInvalidIndex, "INVALID_INDEX", "invalid weight index")
)

// ErrIncompleteEvaluation is returned with the missing fields (or response ids) as details.
var ErrIncompleteEvaluation = NewDomainError(KindIncompleteEvaluation, "INCOMPLETE_EVALUATION", "evaluation is incomplete")

// InvalidTransition reports an operation attempted from a state that forbids it.
func InvalidTransition(entityID, current, operation string) *DomainError {
	return ErrInvalidStateTransition.For(entityID).With(
		fmt.Sprintf("cannot %s from %s", operation, current),
	)
}
