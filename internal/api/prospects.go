package api

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Priya8975/showing-webhooks/internal/domain"
	"github.com/Priya8975/showing-webhooks/internal/store"
)

type ProspectHandler struct {
	reader Reader
	logger zerolog.Logger
}

func NewProspectHandler(reader Reader, logger zerolog.Logger) *ProspectHandler {
	return &ProspectHandler{reader: reader, logger: logger}
}

func (h *ProspectHandler) List(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	f := store.ProspectFilter{
		Search:      q.string("search"),
		MinShowings: q.optionalInt("min_showings", 0),
		Page:        q.page(),
	}
	if q.err != nil {
		respondErr(w, r, h.logger, q.err)
		return
	}

	prospects, total, err := h.reader.ListProspects(r.Context(), f)
	if err != nil {
		respondErr(w, r, h.logger, domain.ErrStore("list prospects", err))
		return
	}
	respondJSON(w, http.StatusOK, pageResponse[domain.Prospect]{
		Total:    total,
		Page:     f.Page.Page,
		PageSize: f.PageSize,
		Items:    prospects,
	})
}

func (h *ProspectHandler) Get(w http.ResponseWriter, r *http.Request) {
	prospect, ok := h.lookup(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, prospect)
}

func (h *ProspectHandler) Showings(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	limit := q.intRange("limit", defaultShowingsLimit, 1, maxShowingsLimit)
	if q.err != nil {
		respondErr(w, r, h.logger, q.err)
		return
	}

	prospect, ok := h.lookup(w, r)
	if !ok {
		return
	}

	showings, _, err := h.reader.ListShowings(r.Context(), store.ShowingFilter{
		Email: prospect.Email,
		Page:  store.Page{Page: 1, PageSize: limit},
	})
	if err != nil {
		respondErr(w, r, h.logger, domain.ErrStore("list prospect showings", err))
		return
	}
	respondJSON(w, http.StatusOK, toShowingResponses(showings))
}

func (h *ProspectHandler) lookup(w http.ResponseWriter, r *http.Request) (*domain.Prospect, bool) {
	email := strings.TrimSpace(pathParam(r, "email"))
	prospect, err := h.reader.GetProspect(r.Context(), email)
	if err != nil {
		respondErr(w, r, h.logger, domain.ErrStore("get prospect", err))
		return nil, false
	}
	if prospect == nil {
		respondErr(w, r, h.logger, domain.ErrNotFound("prospect not found"))
		return nil, false
	}
	return prospect, true
}
