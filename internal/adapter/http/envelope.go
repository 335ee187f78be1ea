package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/auditflow/auditflow/internal/apperror"
)

// Envelope wraps every JSON response body
type Envelope struct {
	Status  bool        `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
	Code    string      `json:"code,omitempty"`
	Details []string    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, envelope Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(envelope) //nolint:errcheck
}

func success(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	writeJSON(w, statusCode, Envelope{Status: true, Message: message, Data: data})
}

// writeError maps err onto the envelope with the matching HTTP status
func writeError(w http.ResponseWriter, err error) {
	appErr := apperror.MapError(err)
	writeJSON(w, appErr.Status, Envelope{
		Status:  false,
		Message: appErr.Message,
		Code:    appErr.Code,
		Details: appErr.Details,
	})
}

// decodeJSON decodes a required request body
func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperror.NewBadRequest("Invalid request body")
	}
	return nil
}

// decodeOptionalJSON decodes a body that may be absent
func decodeOptionalJSON(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apperror.NewBadRequest("Invalid request body")
	}
	return nil
}
