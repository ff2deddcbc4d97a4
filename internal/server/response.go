package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/koustreak/rowmap/internal/errs"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Model     string `json:"model,omitempty"`
	Attribute string `json:"attribute,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := ErrorResponse{
		Error:     err.Error(),
		Kind:      errs.KindOf(err).String(),
		RequestID: RequestID(r.Context()),
	}
	var e *errs.Error
	if errors.As(err, &e) {
		resp.Error = e.Message
		resp.Model = e.Model
		resp.Attribute = e.Attribute
	}
	writeJSON(w, statusOf(err), resp)
}

// statusOf maps an error kind to an HTTP status.
func statusOf(err error) int {
	switch errs.KindOf(err) {
	case errs.ErrKindNotFound, errs.ErrKindUnknownAttribute:
		return http.StatusNotFound
	case errs.ErrKindInvalidInput, errs.ErrKindDataTypeCasting:
		return http.StatusBadRequest
	case errs.ErrKindDataTypeMismatch, errs.ErrKindUnknownSTIType:
		return http.StatusUnprocessableEntity
	case errs.ErrKindPermissionDenied:
		return http.StatusForbidden
	case errs.ErrKindTimeout:
		return http.StatusGatewayTimeout
	case errs.ErrKindConnectionFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
