package api

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/Priya8975/showing-webhooks/internal/domain"
	"github.com/Priya8975/showing-webhooks/internal/store"
)

const (
	defaultShowingsLimit = 100
	maxShowingsLimit     = 500
)

type ListingHandler struct {
	reader Reader
	logger zerolog.Logger
}

func NewListingHandler(reader Reader, logger zerolog.Logger) *ListingHandler {
	return &ListingHandler{reader: reader, logger: logger}
}

func (h *ListingHandler) List(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	f := store.ListingFilter{
		Search:      q.string("search"),
		MinShowings: q.optionalInt("min_showings", 0),
		Page:        q.page(),
	}
	if q.err != nil {
		respondErr(w, r, h.logger, q.err)
		return
	}

	listings, total, err := h.reader.ListListings(r.Context(), f)
	if err != nil {
		respondErr(w, r, h.logger, domain.ErrStore("list listings", err))
		return
	}
	respondJSON(w, http.StatusOK, pageResponse[domain.Listing]{
		Total:    total,
		Page:     f.Page.Page,
		PageSize: f.PageSize,
		Items:    listings,
	})
}

func (h *ListingHandler) Get(w http.ResponseWriter, r *http.Request) {
	listing, ok := h.lookup(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, listing)
}

// Showings returns the showings currently pointing at the listing, latest
// showtime first.
func (h *ListingHandler) Showings(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	limit := q.intRange("limit", defaultShowingsLimit, 1, maxShowingsLimit)
	if q.err != nil {
		respondErr(w, r, h.logger, q.err)
		return
	}

	listing, ok := h.lookup(w, r)
	if !ok {
		return
	}

	showings, _, err := h.reader.ListShowings(r.Context(), store.ShowingFilter{
		ListingUID: listing.UID,
		Page:       store.Page{Page: 1, PageSize: limit},
	})
	if err != nil {
		respondErr(w, r, h.logger, domain.ErrStore("list listing showings", err))
		return
	}
	respondJSON(w, http.StatusOK, toShowingResponses(showings))
}

func (h *ListingHandler) lookup(w http.ResponseWriter, r *http.Request) (*domain.Listing, bool) {
	listing, err := h.reader.GetListing(r.Context(), pathParam(r, "uid"))
	if err != nil {
		respondErr(w, r, h.logger, domain.ErrStore("get listing", err))
		return nil, false
	}
	if listing == nil {
		respondErr(w, r, h.logger, domain.ErrNotFound("listing not found"))
		return nil, false
	}
	return listing, true
}
