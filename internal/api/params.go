package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Priya8975/showing-webhooks/internal/domain"
	"github.com/Priya8975/showing-webhooks/internal/ingest"
	"github.com/Priya8975/showing-webhooks/internal/store"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// queryParams reads typed query parameters and keeps the first problem it
// meets, so a handler can parse everything and check once.
type queryParams struct {
	values url.Values
	err    error
}

func newQueryParams(r *http.Request) *queryParams {
	return &queryParams{values: r.URL.Query()}
}

func (q *queryParams) fail(name, msg string) {
	if q.err == nil {
		q.err = domain.ErrValidationMeta(fmt.Sprintf("invalid query parameter %s: %s", name, msg), map[string]string{"field": name})
	}
}

func (q *queryParams) string(name string) string {
	return strings.TrimSpace(q.values.Get(name))
}

// intRange returns def when the parameter is absent.
func (q *queryParams) intRange(name string, def, min, max int) int {
	raw := q.string(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		q.fail(name, "must be an integer")
		return def
	}
	if n < min || n > max {
		q.fail(name, fmt.Sprintf("must be between %d and %d", min, max))
		return def
	}
	return n
}

func (q *queryParams) optionalInt(name string, min int) *int {
	raw := q.string(name)
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		q.fail(name, "must be an integer")
		return nil
	}
	if n < min {
		q.fail(name, fmt.Sprintf("must be at least %d", min))
		return nil
	}
	return &n
}

func (q *queryParams) optionalBool(name string) *bool {
	raw := q.string(name)
	if raw == "" {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		q.fail(name, "must be a boolean")
		return nil
	}
	return &b
}

func (q *queryParams) optionalTime(name string) *time.Time {
	raw := q.string(name)
	if raw == "" {
		return nil
	}
	t, ok := parseQueryTime(raw)
	if !ok {
		q.fail(name, "must be an ISO-8601 date, datetime or unix epoch")
		return nil
	}
	return &t
}

// parseQueryTime accepts the webhook timestamp forms plus a bare date, which
// means midnight UTC.
func parseQueryTime(raw string) (time.Time, bool) {
	if t, ok := ingest.ParseTimestamp(raw); ok {
		return t, true
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return time.Time{}, false
	}
	return ingest.UnixTimestamp(v)
}

func (q *queryParams) status(name string) domain.ShowingStatus {
	raw := q.string(name)
	if raw == "" {
		return ""
	}
	s := domain.ShowingStatus(strings.ToLower(raw))
	if !s.Valid() {
		q.fail(name, "must be one of pending, confirmed, canceled")
		return ""
	}
	return s
}

func (q *queryParams) page() store.Page {
	return store.Page{
		Page:     q.intRange("page", 1, 1, 1<<31-1),
		PageSize: q.intRange("page_size", defaultPageSize, 1, maxPageSize),
	}
}
