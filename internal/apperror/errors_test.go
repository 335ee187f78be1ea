package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/auditflow/auditflow/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", domain.ErrAuditNotFound.For("a-1"), http.StatusNotFound, "AUDIT_NOT_FOUND"},
		{"wrapped transition", fmt.Errorf("failed to close audit: %w", domain.InvalidTransition("a-1", "DRAFT", "close")), http.StatusConflict, "INVALID_STATE_TRANSITION"},
		{"constraint", domain.ErrHasChildren.For("s-1"), http.StatusConflict, "HAS_CHILDREN"},
		{"weight sum", domain.ErrWeightSumInvalid.With("sum is 99.00"), http.StatusUnprocessableEntity, "WEIGHT_SUM_INVALID"},
		{"incomplete", domain.ErrIncompleteEvaluation.With("score"), http.StatusUnprocessableEntity, "INCOMPLETE_EVALUATION"},
		{"invalid input", domain.ErrInvalidInput.With("user id is required"), http.StatusBadRequest, "INVALID_INPUT"},
		{"app error passthrough", NewUnauthorized("missing token"), http.StatusUnauthorized, "UNAUTHORIZED"},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantCode, got.Code)
		})
	}
}

func TestMapError_KeepsEntityAndDetails(t *testing.T) {
	err := fmt.Errorf("failed to complete response: %w", domain.ErrIncompleteEvaluation.For("r-1").With("score", "compliance_level"))

	got := MapError(err)

	assert.Contains(t, got.Message, "r-1")
	assert.Equal(t, []string{"score", "compliance_level"}, got.Details)
}

func TestMapError_HidesInfrastructureMessages(t *testing.T) {
	got := MapError(errors.New("pq: password authentication failed"))
	assert.NotContains(t, got.Message, "pq")
}
