package http

import (
	"net/http"

	"github.com/auditflow/auditflow/internal/domain"
	"github.com/auditflow/auditflow/internal/usecase"
	"github.com/gorilla/mux"
)

// ResponseHandler handles HTTP requests for audit responses
type ResponseHandler struct {
	responseUseCase *usecase.ResponseUseCase
}

// NewResponseHandler creates a new response handler
func NewResponseHandler(responseUseCase *usecase.ResponseUseCase) *ResponseHandler {
	return &ResponseHandler{responseUseCase: responseUseCase}
}

// RegisterRoutes registers response routes
func (h *ResponseHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/audits/{id}/responses/initialize", h.InitializeResponses).Methods("POST")
	router.HandleFunc("/api/v1/responses/{id}", h.GetResponse).Methods("GET")
	router.HandleFunc("/api/v1/responses/{id}", h.UpdateResponse).Methods("PATCH")
	router.HandleFunc("/api/v1/responses/{id}/complete", h.CompleteResponse).Methods("POST")
	router.HandleFunc("/api/v1/responses/{id}/review", h.ReviewResponse).Methods("POST")
	router.HandleFunc("/api/v1/responses/{id}/reset", h.ResetResponse).Methods("POST")
}

// ReviewRequest represents the body of a review; an empty reviewer means the caller
type ReviewRequest struct {
	ReviewerID string `json:"reviewer_id,omitempty"`
}

// InitializeResponses handles (re)initializing the response set of an audit
func (h *ResponseHandler) InitializeResponses(w http.ResponseWriter, r *http.Request) {
	responses, err := h.responseUseCase.InitializeResponses(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	success(w, http.StatusOK, "Responses initialized successfully", responses)
}

// GetResponse handles retrieving a single response
func (h *ResponseHandler) GetResponse(w http.ResponseWriter, r *http.Request) {
	response, err := h.responseUseCase.GetResponse(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	success(w, http.StatusOK, "Response retrieved successfully", response)
}

// UpdateResponse handles a partial evaluation update. Absent and null
// fields are both left unchanged; clearing goes through the reset route.
func (h *ResponseHandler) UpdateResponse(w http.ResponseWriter, r *http.Request) {
	var update domain.ResponseUpdate
	if err := decodeJSON(r, &update); err != nil {
		writeError(w, err)
		return
	}

	response, err := h.responseUseCase.UpdateResponse(r.Context(), mux.Vars(r)["id"], update)
	if err != nil {
		writeError(w, err)
		return
	}
	success(w, http.StatusOK, "Response updated successfully", response)
}

// CompleteResponse handles marking a response completed
func (h *ResponseHandler) CompleteResponse(w http.ResponseWriter, r *http.Request) {
	response, err := h.responseUseCase.CompleteResponse(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	success(w, http.StatusOK, "Response completed successfully", response)
}

// ReviewResponse handles recording a review
func (h *ResponseHandler) ReviewResponse(w http.ResponseWriter, r *http.Request) {
	var req ReviewRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	response, err := h.responseUseCase.ReviewResponse(r.Context(), mux.Vars(r)["id"], req.ReviewerID)
	if err != nil {
		writeError(w, err)
		return
	}
	success(w, http.StatusOK, "Response reviewed successfully", response)
}

// ResetResponse handles clearing a response
func (h *ResponseHandler) ResetResponse(w http.ResponseWriter, r *http.Request) {
	response, err := h.responseUseCase.ResetResponse(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	success(w, http.StatusOK, "Response reset successfully", response)
}
