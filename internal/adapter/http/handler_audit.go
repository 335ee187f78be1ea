package http

import (
	"net/http"

	"github.com/auditflow/auditflow/internal/usecase"
	"github.com/gorilla/mux"
)

// AuditHandler handles HTTP requests for audits, their teams and scores
type AuditHandler struct {
	auditUseCase   *usecase.AuditUseCase
	scoringUseCase *usecase.ScoringUseCase
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(auditUseCase *usecase.AuditUseCase, scoringUseCase *usecase.ScoringUseCase) *AuditHandler {
	return &AuditHandler{
		auditUseCase:   auditUseCase,
		scoringUseCase: scoringUseCase,
	}
}

// RegisterRoutes registers audit routes
func (h *AuditHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/audits", h.CreateAudit).Methods("POST")
	router.HandleFunc("/api/v1/audits/{id}", h.GetAudit).Methods("GET")
	router.HandleFunc("/api/v1/audits/{id}", h.DeleteAudit).Methods("DELETE")
	router.HandleFunc("/api/v1/audits/{id}/assignments", h.AssignMember).Methods("POST")
	router.HandleFunc("/api/v1/audits/{id}/assignments/{aid}", h.DeactivateMember).Methods("DELETE")
	router.HandleFunc("/api/v1/audits/{id}/start", h.StartAudit).Methods("POST")
	router.HandleFunc("/api/v1/audits/{id}/close", h.CloseAudit).Methods("POST")
	router.HandleFunc("/api/v1/audits/{id}/archive", h.ArchiveAudit).Methods("POST")
	router.HandleFunc("/api/v1/audits/{id}/revisions", h.CreateRevision).Methods("POST")
	router.HandleFunc("/api/v1/audits/{id}/revisions", h.ListRevisions).Methods("GET")
	router.HandleFunc("/api/v1/audits/{id}/summary", h.GetSummary).Methods("GET")
	router.HandleFunc("/api/v1/audits/{id}/completeness", h.GetCompleteness).Methods("GET")
}

// CreateAudit handles audit creation
func (h *AuditHandler) CreateAudit(w http.ResponseWriter, r *http.Request) {
	var req usecase.CreateAuditRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	detail, err := h.auditUseCase.CreateAudit(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	success(w, http.StatusCreated, "Audit created successfully", detail)
}

// GetAudit handles retrieving an audit with its responses and team
func (h *AuditHandler) GetAudit(w http.ResponseWriter, r *http.Request) {
	detail, err := h.auditUseCase.GetAudit(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	success(w, http.StatusOK, "Audit retrieved successfully", detail)
}

// DeleteAudit handles audit deletion
func (h *AuditHandler) DeleteAudit(w http.ResponseWriter, r *http.Request) {
	if err := h.auditUseCase.DeleteAudit(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	success(w, http.StatusOK, "Audit deleted successfully", nil)
}

// AssignMember handles adding a team member
func (h *AuditHandler) AssignMember(w http.ResponseWriter, r *http.Request) {
	var req usecase.AssignMemberRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	assignment, err := h.auditUseCase.AssignMember(r.Context(), mux.Vars(r)["id"], req)
	if err != nil {
		writeError(w, err)
		return
	}
	success(w, http.StatusCreated, "Member assigned successfully", assignment)
}

// DeactivateMember handles taking a member off the team
func (h *AuditHandler) DeactivateMember(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	assignment, err := h.auditUseCase.DeactivateMember(r.Context(), vars["id"], vars["aid"])
	if err != nil {
		writeError(w, err)
		return
	}
	success(w, http.StatusOK, "Member deactivated successfully", assignment)
}

// StartAudit handles moving an audit in progress
func (h *AuditHandler) StartAudit(w http.ResponseWriter, r *http.Request) {
	audit, err := h.auditUseCase.StartAudit(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	success(w, http.StatusOK, "Audit started successfully", audit)
}

// CloseAudit handles closing an audit; the body is optional
func (h *AuditHandler) CloseAudit(w http.ResponseWriter, r *http.Request) {
	var req usecase.CloseAuditRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	audit, err := h.auditUseCase.CloseAudit(r.Context(), mux.Vars(r)["id"], req)
	if err != nil {
		writeError(w, err)
		return
	}
	success(w, http.StatusOK, "Audit closed successfully", audit)
}

// ArchiveAudit handles archiving a closed audit
func (h *AuditHandler) ArchiveAudit(w http.ResponseWriter, r *http.Request) {
	audit, err := h.auditUseCase.ArchiveAudit(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	success(w, http.StatusOK, "Audit archived successfully", audit)
}

// CreateRevision handles opening a follow-up audit
func (h *AuditHandler) CreateRevision(w http.ResponseWriter, r *http.Request) {
	var req usecase.CreateRevisionRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	detail, err := h.auditUseCase.CreateRevision(r.Context(), mux.Vars(r)["id"], req)
	if err != nil {
		writeError(w, err)
		return
	}
	success(w, http.StatusCreated, "Revision created successfully", detail)
}

// ListRevisions handles listing the follow-ups of an audit
func (h *AuditHandler) ListRevisions(w http.ResponseWriter, r *http.Request) {
	revisions, err := h.auditUseCase.ListRevisions(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	success(w, http.StatusOK, "Revisions retrieved successfully", revisions)
}

// GetSummary handles the live scoring summary of an audit
func (h *AuditHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.scoringUseCase.Summary(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	success(w, http.StatusOK, "Summary computed successfully", summary)
}

// GetCompleteness handles the completeness check of an audit
func (h *AuditHandler) GetCompleteness(w http.ResponseWriter, r *http.Request) {
	report, err := h.scoringUseCase.Completeness(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	success(w, http.StatusOK, "Completeness checked successfully", report)
}
