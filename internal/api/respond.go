package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/Priya8975/showing-webhooks/internal/domain"
)

type errorResponse struct {
	Error     string            `json:"error"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

type pageResponse[T any] struct {
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Items    []T `json:"items"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal_error","message":"encoding response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code domain.ErrCode, msg string, details map[string]string) {
	respondJSON(w, status, errorResponse{
		Error:     string(code),
		Message:   msg,
		Details:   details,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

// respondErr maps err onto the error taxonomy. Anything that is not an
// AppError is logged and reported as a 500 without its details.
func respondErr(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, err error) {
	var ae *domain.AppError
	if !errors.As(err, &ae) {
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("unhandled error")
		respondError(w, r, http.StatusInternalServerError, "internal_error", "internal error", nil)
		return
	}

	status := statusFromCode(ae.Code)
	if status >= http.StatusInternalServerError {
		// keep details in logs only
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		respondError(w, r, status, ae.Code, ae.Message, nil)
		return
	}
	respondError(w, r, status, ae.Code, ae.Message, ae.Meta)
}

func statusFromCode(code domain.ErrCode) int {
	switch code {
	case domain.CodeMalformedPayload, domain.CodeValidation:
		return http.StatusBadRequest
	case domain.CodeUnauthorized:
		return http.StatusUnauthorized
	case domain.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
