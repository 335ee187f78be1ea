package apperror

import (
	"errors"
	"net/http"

	"github.com/auditflow/auditflow/internal/domain"
)

// AppError is the transport-facing form of an error
type AppError struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Status  int      `json:"status"`
	Details []string `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	return e.Message
}

var (
	ErrBadRequest     = &AppError{Code: "BAD_REQUEST", Message: "Bad request", Status: http.StatusBadRequest}
	ErrUnauthorized   = &AppError{Code: "UNAUTHORIZED", Message: "Unauthorized", Status: http.StatusUnauthorized}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Not found", Status: http.StatusNotFound}
	ErrTooManyRequest = &AppError{Code: "RATE_LIMITED", Message: "Too many requests", Status: http.StatusTooManyRequests}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "Internal server error", Status: http.StatusInternalServerError}
)

func NewBadRequest(message string) *AppError {
	return &AppError{Code: "BAD_REQUEST", Message: message, Status: http.StatusBadRequest}
}

func NewUnauthorized(message string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Message: message, Status: http.StatusUnauthorized}
}

func NewNotFound(message string) *AppError {
	return &AppError{Code: "NOT_FOUND", Message: message, Status: http.StatusNotFound}
}

func NewInternalServer(message string) *AppError {
	return &AppError{Code: "INTERNAL_ERROR", Message: message, Status: http.StatusInternalServerError}
}

// kindStatus maps each domain error kind onto an HTTP status
var kindStatus = map[domain.ErrorKind]int{
	domain.KindNotFound:               http.StatusNotFound,
	domain.KindInvalidStateTransition: http.StatusConflict,
	domain.KindConstraintViolation:    http.StatusConflict,
	domain.KindWeightSumInvalid:       http.StatusUnprocessableEntity,
	domain.KindOutOfRange:             http.StatusUnprocessableEntity,
	domain.KindInvalidIndex:           http.StatusUnprocessableEntity,
	domain.KindIncompleteEvaluation:   http.StatusUnprocessableEntity,
}

// MapError converts any error into an AppError. Domain errors keep their code,
// entity and details; anything unknown becomes a generic internal error.
func MapError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var de *domain.DomainError
	if errors.As(err, &de) {
		status, ok := kindStatus[de.Kind]
		if !ok {
			status = http.StatusBadRequest
		}
		if errors.Is(de, domain.ErrInvalidInput) {
			status = http.StatusBadRequest
		}
		return &AppError{
			Code:    de.Code,
			Message: de.Error(),
			Status:  status,
			Details: de.Details,
		}
	}

	return NewInternalServer("An unexpected error occurred")
}
