package api

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/Priya8975/showing-webhooks/internal/domain"
	"github.com/Priya8975/showing-webhooks/internal/store"
)

type EventHandler struct {
	reader Reader
	logger zerolog.Logger
}

func NewEventHandler(reader Reader, logger zerolog.Logger) *EventHandler {
	return &EventHandler{reader: reader, logger: logger}
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	f := store.EventFilter{
		Action:    q.string("action"),
		StartDate: q.optionalTime("start_date"),
		EndDate:   q.optionalTime("end_date"),
		Page:      q.page(),
	}
	if q.err != nil {
		respondErr(w, r, h.logger, q.err)
		return
	}

	events, total, err := h.reader.ListEvents(r.Context(), f)
	if err != nil {
		respondErr(w, r, h.logger, domain.ErrStore("list events", err))
		return
	}

	respondJSON(w, http.StatusOK, pageResponse[domain.Event]{
		Total:    total,
		Page:     f.Page.Page,
		PageSize: f.PageSize,
		Items:    events,
	})
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "event_id")

	event, err := h.reader.GetEvent(r.Context(), id)
	if err != nil {
		respondErr(w, r, h.logger, domain.ErrStore("get event", err))
		return
	}
	if event == nil {
		respondErr(w, r, h.logger, domain.ErrNotFound("event not found"))
		return
	}

	respondJSON(w, http.StatusOK, event)
}

type actionsResponse struct {
	Actions []string `json:"actions"`
}

func (h *EventHandler) Actions(w http.ResponseWriter, r *http.Request) {
	actions, err := h.reader.ListEventActions(r.Context())
	if err != nil {
		respondErr(w, r, h.logger, domain.ErrStore("list event actions", err))
		return
	}
	respondJSON(w, http.StatusOK, actionsResponse{Actions: actions})
}

// pathParam returns the decoded URL parameter. chi leaves escapes such as
// %40 in place when the request carries a raw path.
func pathParam(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if decoded, err := url.PathUnescape(v); err == nil {
		return decoded
	}
	return v
}
