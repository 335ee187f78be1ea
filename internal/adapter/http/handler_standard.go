package http

import (
	"net/http"

	"github.com/auditflow/auditflow/internal/domain"
	"github.com/auditflow/auditflow/internal/usecase"
	"github.com/gorilla/mux"
)

// StandardHandler handles HTTP requests for a template's standard tree
type StandardHandler struct {
	standardUseCase *usecase.StandardUseCase
}

// NewStandardHandler creates a new standard handler
func NewStandardHandler(standardUseCase *usecase.StandardUseCase) *StandardHandler {
	return &StandardHandler{standardUseCase: standardUseCase}
}

// RegisterRoutes registers standard routes
func (h *StandardHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/templates/{id}/standards", h.ListStandards).Methods("GET")
	router.HandleFunc("/api/v1/templates/{id}/standards", h.InsertStandard).Methods("POST")
	router.HandleFunc("/api/v1/templates/{id}/standards/import", h.ImportStandards).Methods("POST")
	router.HandleFunc("/api/v1/templates/{id}/standards/rebalance", h.RebalanceWeights).Methods("POST")
	router.HandleFunc("/api/v1/standards/{id}", h.DeleteStandard).Methods("DELETE")
	router.HandleFunc("/api/v1/standards/{id}/weight", h.ChangeWeight).Methods("PUT")
}

// ImportRequest represents a bulk import body
type ImportRequest struct {
	Standards []domain.StandardImportRow `json:"standards"`
}

// RebalanceRequest selects the rebalance mode
type RebalanceRequest struct {
	Mode usecase.RebalanceMode `json:"mode"`
}

// ChangeWeightRequest carries the new weight of one standard
type ChangeWeightRequest struct {
	Weight *float64 `json:"weight"`
}

// ListStandards handles listing a template's standards
func (h *StandardHandler) ListStandards(w http.ResponseWriter, r *http.Request) {
	standards, err := h.standardUseCase.ListStandards(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	success(w, http.StatusOK, "Standards retrieved successfully", standards)
}

// InsertStandard handles adding one standard
func (h *StandardHandler) InsertStandard(w http.ResponseWriter, r *http.Request) {
	var req usecase.InsertStandardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	standard, err := h.standardUseCase.InsertStandard(r.Context(), mux.Vars(r)["id"], req)
	if err != nil {
		writeError(w, err)
		return
	}
	success(w, http.StatusCreated, "Standard created successfully", standard)
}

// ImportStandards handles a bulk import
func (h *StandardHandler) ImportStandards(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	standards, err := h.standardUseCase.ImportStandards(r.Context(), mux.Vars(r)["id"], req.Standards)
	if err != nil {
		writeError(w, err)
		return
	}
	success(w, http.StatusCreated, "Standards imported successfully", standards)
}

// RebalanceWeights handles recomputing a template's weights
func (h *StandardHandler) RebalanceWeights(w http.ResponseWriter, r *http.Request) {
	req := RebalanceRequest{Mode: usecase.RebalanceEqual}
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	standards, err := h.standardUseCase.RebalanceWeights(r.Context(), mux.Vars(r)["id"], req.Mode)
	if err != nil {
		writeError(w, err)
		return
	}
	success(w, http.StatusOK, "Weights rebalanced successfully", standards)
}

// DeleteStandard handles removing a leaf standard
func (h *StandardHandler) DeleteStandard(w http.ResponseWriter, r *http.Request) {
	if err := h.standardUseCase.DeleteStandard(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	success(w, http.StatusOK, "Standard deleted successfully", nil)
}

// ChangeWeight handles setting one standard's weight
func (h *StandardHandler) ChangeWeight(w http.ResponseWriter, r *http.Request) {
	var req ChangeWeightRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Weight == nil {
		writeError(w, domain.ErrInvalidInput.With("weight is required"))
		return
	}

	standards, err := h.standardUseCase.ChangeWeight(r.Context(), mux.Vars(r)["id"], *req.Weight)
	if err != nil {
		writeError(w, err)
		return
	}
	success(w, http.StatusOK, "Weight changed successfully", standards)
}
