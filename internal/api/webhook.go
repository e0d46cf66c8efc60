package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/Priya8975/showing-webhooks/internal/domain"
	"github.com/Priya8975/showing-webhooks/internal/ingest"
)

const maxBodyBytes = 1 << 20

type WebhookHandler struct {
	svc    Service
	logger zerolog.Logger
}

func NewWebhookHandler(svc Service, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{svc: svc, logger: logger}
}

type webhookResponse struct {
	Status  ingest.Status `json:"status"`
	Message string        `json:"message"`
	EventID string        `json:"event_id"`
}

// Receive ingests one notification. A redelivered event answers 200 with
// status "duplicate" so the sender stops retrying.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, http.StatusRequestEntityTooLarge, domain.CodeMalformedPayload, "payload exceeds 1 MiB", nil)
			return
		}
		respondError(w, r, http.StatusBadRequest, domain.CodeMalformedPayload, "failed to read request body", nil)
		return
	}

	out, err := h.svc.Ingest(r.Context(), body)
	if err != nil {
		respondErr(w, r, h.logger, err)
		return
	}

	msg := "Webhook processed successfully"
	if out.Status == ingest.StatusDuplicate {
		msg = "Event already processed"
	}
	respondJSON(w, http.StatusOK, webhookResponse{
		Status:  out.Status,
		Message: msg,
		EventID: out.EventID,
	})
}
