package api

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/Priya8975/showing-webhooks/internal/domain"
	"github.com/Priya8975/showing-webhooks/internal/ingest"
)

type AdminHandler struct {
	svc    Service
	reader Reader
	queue  ReconcileQueue
	logger zerolog.Logger
}

func NewAdminHandler(svc Service, reader Reader, queue ReconcileQueue, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{svc: svc, reader: reader, queue: queue, logger: logger}
}

func (h *AdminHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.DeleteEvent(r.Context(), pathParam(r, "event_id"))
	if err != nil {
		respondErr(w, r, h.logger, err)
		return
	}
	h.logger.Info().
		Str("event_id", res.EventID).
		Int("showings_deleted", res.ShowingsDeleted).
		Msg("event deleted")
	respondJSON(w, http.StatusOK, res)
}

type reconcileRequest struct {
	ListingUIDs []string `json:"listing_uids" validate:"omitempty,max=1000,dive,required,max=255"`
	Emails      []string `json:"emails" validate:"omitempty,max=1000,dive,required,max=320"`
	All         bool     `json:"all"`
}

type reconcileResponse struct {
	JobsQueued int `json:"jobs_queued"`
}

var (
	adminValidator     *validator.Validate
	adminValidatorOnce sync.Once
)

func getAdminValidator() *validator.Validate {
	adminValidatorOnce.Do(func() {
		adminValidator = validator.New(validator.WithRequiredStructEnabled())
		adminValidator.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			return name
		})
	})
	return adminValidator
}

// Reconcile queues recount jobs. With "all" set every stored listing and
// prospect is queued and the explicit lists are ignored.
func (h *AdminHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondErr(w, r, h.logger, domain.ErrMalformed("invalid request body"))
		return
	}
	if err := getAdminValidator().Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			respondErr(w, r, h.logger, domain.ErrValidationMeta("invalid reconcile request", map[string]string{
				"field": verrs[0].Field(),
				"rule":  verrs[0].Tag(),
			}))
			return
		}
		respondErr(w, r, h.logger, domain.ErrValidation("invalid reconcile request"))
		return
	}
	if !req.All && len(req.ListingUIDs) == 0 && len(req.Emails) == 0 {
		respondErr(w, r, h.logger, domain.ErrValidation("nothing to reconcile: give listing_uids, emails or all"))
		return
	}

	listingUIDs, emails := req.ListingUIDs, req.Emails
	if req.All {
		var err error
		listingUIDs, emails, err = h.reader.AggregateKeys(r.Context())
		if err != nil {
			respondErr(w, r, h.logger, domain.ErrStore("list aggregate keys", err))
			return
		}
	}

	queued := 0
	for _, batch := range []struct {
		kind ingest.AggregateKind
		keys []string
	}{
		{ingest.KindListing, listingUIDs},
		{ingest.KindProspect, emails},
	} {
		n, err := h.queue.Enqueue(r.Context(), batch.kind, batch.keys)
		if err != nil {
			respondErr(w, r, h.logger, domain.ErrStore("enqueue reconcile jobs", err))
			return
		}
		queued += n
	}

	h.logger.Info().Int("jobs_queued", queued).Bool("all", req.All).Msg("reconcile requested")
	respondJSON(w, http.StatusAccepted, reconcileResponse{JobsQueued: queued})
}

type depthResponse struct {
	Depth int64 `json:"depth"`
}

func (h *AdminHandler) Depth(w http.ResponseWriter, r *http.Request) {
	depth, err := h.queue.Depth(r.Context())
	if err != nil {
		respondErr(w, r, h.logger, domain.ErrStore("read reconcile queue depth", err))
		return
	}
	respondJSON(w, http.StatusOK, depthResponse{Depth: depth})
}
