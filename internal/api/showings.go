package api

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/Priya8975/showing-webhooks/internal/domain"
	"github.com/Priya8975/showing-webhooks/internal/ingest"
	"github.com/Priya8975/showing-webhooks/internal/store"
)

// showingResponse adds the derived status to the stored row.
type showingResponse struct {
	domain.Showing
	Status domain.ShowingStatus `json:"status"`
}

func toShowingResponses(showings []domain.Showing) []showingResponse {
	out := make([]showingResponse, 0, len(showings))
	for i := range showings {
		out = append(out, showingResponse{Showing: showings[i], Status: showings[i].Status()})
	}
	return out
}

type ShowingHandler struct {
	reader Reader
	clock  ingest.Clock
	logger zerolog.Logger
}

func NewShowingHandler(reader Reader, clock ingest.Clock, logger zerolog.Logger) *ShowingHandler {
	return &ShowingHandler{reader: reader, clock: clock, logger: logger}
}

func (h *ShowingHandler) List(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	f := store.ShowingFilter{
		ListingUID: q.string("listing_uid"),
		Email:      q.string("email"),
		StartDate:  q.optionalTime("start_date"),
		EndDate:    q.optionalTime("end_date"),
		IsSelfShow: q.optionalBool("is_self_show"),
		Status:     q.status("status"),
		Page:       q.page(),
	}
	if q.err != nil {
		respondErr(w, r, h.logger, q.err)
		return
	}
	listShowings(w, r, h.reader, h.logger, f)
}

func (h *ShowingHandler) Get(w http.ResponseWriter, r *http.Request) {
	showing, err := h.reader.GetShowing(r.Context(), pathParam(r, "uid"))
	if err != nil {
		respondErr(w, r, h.logger, domain.ErrStore("get showing", err))
		return
	}
	if showing == nil {
		respondErr(w, r, h.logger, domain.ErrNotFound("showing not found"))
		return
	}
	respondJSON(w, http.StatusOK, showingResponse{Showing: *showing, Status: showing.Status()})
}

// Upcoming lists showings that are not canceled within the next days.
func (h *ShowingHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	days := q.intRange("days", 7, 1, 90)
	limit := q.intRange("limit", 100, 1, 500)
	if q.err != nil {
		respondErr(w, r, h.logger, q.err)
		return
	}

	now := h.clock.Now()
	showings, err := h.reader.UpcomingShowings(r.Context(), now, now.Add(time.Duration(days)*24*time.Hour), limit)
	if err != nil {
		respondErr(w, r, h.logger, domain.ErrStore("list upcoming showings", err))
		return
	}
	respondJSON(w, http.StatusOK, toShowingResponses(showings))
}

func listShowings(w http.ResponseWriter, r *http.Request, reader Reader, logger zerolog.Logger, f store.ShowingFilter) {
	showings, total, err := reader.ListShowings(r.Context(), f)
	if err != nil {
		respondErr(w, r, logger, domain.ErrStore("list showings", err))
		return
	}
	respondJSON(w, http.StatusOK, pageResponse[showingResponse]{
		Total:    total,
		Page:     f.Page.Page,
		PageSize: f.PageSize,
		Items:    toShowingResponses(showings),
	})
}
