package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/Priya8975/showing-webhooks/internal/domain"
	"github.com/Priya8975/showing-webhooks/internal/ingest"
	"github.com/Priya8975/showing-webhooks/internal/store"
)

type StatsHandler struct {
	reader Reader
	cache  StatsCache
	clock  ingest.Clock
	logger zerolog.Logger
}

func NewStatsHandler(reader Reader, cache StatsCache, clock ingest.Clock, logger zerolog.Logger) *StatsHandler {
	return &StatsHandler{reader: reader, cache: cache, clock: clock, logger: logger}
}

func (h *StatsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	var overview store.Overview
	err := h.cached(r.Context(), "overview", &overview, func(ctx context.Context) (any, error) {
		o, err := h.reader.GetOverview(ctx, h.clock.Now())
		if err != nil {
			return nil, err
		}
		overview = *o
		return overview, nil
	})
	if err != nil {
		respondErr(w, r, h.logger, domain.ErrStore("load overview", err))
		return
	}
	respondJSON(w, http.StatusOK, overview)
}

func (h *StatsHandler) ShowingsByDate(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	days := q.intRange("days", 30, 1, 365)
	if q.err != nil {
		respondErr(w, r, h.logger, q.err)
		return
	}

	counts := []store.DateCount{}
	err := h.cached(r.Context(), fmt.Sprintf("showings_by_date:%d", days), &counts, func(ctx context.Context) (any, error) {
		since := h.clock.Now().Add(-time.Duration(days) * 24 * time.Hour)
		c, err := h.reader.ShowingsByDate(ctx, since)
		if err != nil {
			return nil, err
		}
		if c != nil {
			counts = c
		}
		return counts, nil
	})
	if err != nil {
		respondErr(w, r, h.logger, domain.ErrStore("load showings by date", err))
		return
	}
	respondJSON(w, http.StatusOK, counts)
}

// cached fills dest from the cache, or runs load (which must fill dest
// itself) and stores its result. Cache failures only cost a database read.
func (h *StatsHandler) cached(ctx context.Context, name string, dest any, load func(context.Context) (any, error)) error {
	if h.cache != nil {
		hit, err := h.cache.Get(ctx, name, dest)
		if err != nil {
			h.logger.Warn().Err(err).Str("key", name).Msg("stats cache read failed")
		}
		if hit {
			return nil
		}
	}

	v, err := load(ctx)
	if err != nil {
		return err
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, name, v); err != nil {
			h.logger.Warn().Err(err).Str("key", name).Msg("stats cache write failed")
		}
	}
	return nil
}
