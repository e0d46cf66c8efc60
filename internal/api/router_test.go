package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Priya8975/showing-webhooks/internal/domain"
	"github.com/Priya8975/showing-webhooks/internal/ingest"
	"github.com/Priya8975/showing-webhooks/internal/store"
	"github.com/Priya8975/showing-webhooks/internal/store/memstore"
)

const testToken = "s3cret"

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// stubReader returns canned rows and remembers the filters it was given.
type stubReader struct {
	mu sync.Mutex

	pingErr error
	err     error

	events   []domain.Event
	event    *domain.Event
	actions  []string
	showings []domain.Showing
	showing  *domain.Showing
	listing  *domain.Listing
	prospect *domain.Prospect
	overview *store.Overview
	byDate   []store.DateCount

	listingUIDs []string
	emails      []string

	eventFilter    store.EventFilter
	showingFilter  store.ShowingFilter
	listingFilter  store.ListingFilter
	prospectFilter store.ProspectFilter
	lookups        []string
	upcoming       [2]time.Time
	upcomingLimit  int
	overviewCalls  int
	byDateSince    time.Time
}

func (s *stubReader) Ping(context.Context) error { return s.pingErr }

func (s *stubReader) ListEvents(_ context.Context, f store.EventFilter) ([]domain.Event, int, error) {
	s.eventFilter = f
	return s.events, len(s.events), s.err
}

func (s *stubReader) GetEvent(_ context.Context, id string) (*domain.Event, error) {
	s.lookups = append(s.lookups, id)
	return s.event, s.err
}

func (s *stubReader) ListEventActions(context.Context) ([]string, error) { return s.actions, s.err }

func (s *stubReader) ListShowings(_ context.Context, f store.ShowingFilter) ([]domain.Showing, int, error) {
	s.showingFilter = f
	return s.showings, len(s.showings), s.err
}

func (s *stubReader) GetShowing(_ context.Context, uid string) (*domain.Showing, error) {
	s.lookups = append(s.lookups, uid)
	return s.showing, s.err
}

func (s *stubReader) UpcomingShowings(_ context.Context, from, to time.Time, limit int) ([]domain.Showing, error) {
	s.upcoming = [2]time.Time{from, to}
	s.upcomingLimit = limit
	return s.showings, s.err
}

func (s *stubReader) ListListings(_ context.Context, f store.ListingFilter) ([]domain.Listing, int, error) {
	s.listingFilter = f
	if s.listing == nil {
		return []domain.Listing{}, 0, s.err
	}
	return []domain.Listing{*s.listing}, 1, s.err
}

func (s *stubReader) GetListing(_ context.Context, uid string) (*domain.Listing, error) {
	s.lookups = append(s.lookups, uid)
	return s.listing, s.err
}

func (s *stubReader) ListProspects(_ context.Context, f store.ProspectFilter) ([]domain.Prospect, int, error) {
	s.prospectFilter = f
	if s.prospect == nil {
		return []domain.Prospect{}, 0, s.err
	}
	return []domain.Prospect{*s.prospect}, 1, s.err
}

func (s *stubReader) GetProspect(_ context.Context, email string) (*domain.Prospect, error) {
	s.lookups = append(s.lookups, email)
	return s.prospect, s.err
}

func (s *stubReader) AggregateKeys(context.Context) ([]string, []string, error) {
	return s.listingUIDs, s.emails, s.err
}

func (s *stubReader) GetOverview(context.Context, time.Time) (*store.Overview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overviewCalls++
	return s.overview, s.err
}

func (s *stubReader) ShowingsByDate(_ context.Context, since time.Time) ([]store.DateCount, error) {
	s.byDateSince = since
	return s.byDate, s.err
}

type enqueued struct {
	Kind ingest.AggregateKind
	Keys []string
}

type stubQueue struct {
	calls []enqueued
	depth int64
	err   error
}

func (q *stubQueue) Enqueue(_ context.Context, kind ingest.AggregateKind, keys []string) (int, error) {
	if q.err != nil {
		return 0, q.err
	}
	q.calls = append(q.calls, enqueued{kind, keys})
	return len(keys), nil
}

func (q *stubQueue) Depth(context.Context) (int64, error) { return q.depth, q.err }

type testServer struct {
	store  *memstore.Store
	reader *stubReader
	queue  *stubQueue
	router http.Handler
}

func newTestServer(t *testing.T, token string, cache StatsCache) *testServer {
	t.Helper()
	s := &testServer{
		store:  memstore.New(),
		reader: &stubReader{},
		queue:  &stubQueue{},
	}
	clock := fixedClock{t: testNow}
	svc := ingest.NewService(s.store, clock, zerolog.Nop())
	s.router = NewRouter(Deps{
		Service:        svc,
		Reader:         s.reader,
		Queue:          s.queue,
		Cache:          cache,
		Clock:          clock,
		Logger:         zerolog.Nop(),
		BearerToken:    token,
		AllowedOrigins: []string{"http://localhost:3000"},
	})
	return s
}

func (s *testServer) do(t *testing.T, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

const showingPayload = `{"event":{"id":"evt-1","action":"showing.created","created_at":"2024-03-01T10:00:00Z",
	"showing":{"uid":"shw-1","showtime":"2024-03-10T15:00:00Z","email":"a@x.com","name":"Ann",
	"listing_uid":"lst-1","listing_full_address":"1 Main St"}}}`

func TestWebhookAuth(t *testing.T) {
	s := newTestServer(t, testToken, nil)

	tests := []struct {
		name    string
		headers map[string]string
		status  int
		message string
	}{
		{"missing_header", nil, http.StatusUnauthorized, "missing Authorization header"},
		{"wrong_scheme", map[string]string{"Authorization": "Basic czNjcmV0"}, http.StatusUnauthorized, "invalid authorization scheme, expected Bearer"},
		{"wrong_token", bearer("nope"), http.StatusUnauthorized, "invalid bearer token"},
		{"valid", bearer(testToken), http.StatusOK, "Webhook processed successfully"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/webhook", showingPayload, tt.headers)
			assert.Equal(t, tt.status, rec.Code)

			var body map[string]any
			decode(t, rec, &body)
			assert.Equal(t, tt.message, body["message"])
			if tt.status == http.StatusUnauthorized {
				assert.Equal(t, "unauthorized", body["error"])
			}
		})
	}
}

func TestWebhookWithoutTokenSkipsAuth(t *testing.T) {
	s := newTestServer(t, "", nil)
	rec := s.do(t, http.MethodPost, "/webhook", showingPayload, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookIngestion(t *testing.T) {
	s := newTestServer(t, testToken, nil)

	rec := s.do(t, http.MethodPost, "/webhook", showingPayload, bearer(testToken))
	require.Equal(t, http.StatusOK, rec.Code)
	var first webhookResponse
	decode(t, rec, &first)
	assert.Equal(t, webhookResponse{Status: ingest.StatusSuccess, Message: "Webhook processed successfully", EventID: "evt-1"}, first)

	listing, ok := s.store.Listing("lst-1")
	require.True(t, ok)
	assert.Equal(t, 1, listing.TotalShowings)

	rec = s.do(t, http.MethodPost, "/webhook", showingPayload, bearer(testToken))
	require.Equal(t, http.StatusOK, rec.Code)
	var second webhookResponse
	decode(t, rec, &second)
	assert.Equal(t, webhookResponse{Status: ingest.StatusDuplicate, Message: "Event already processed", EventID: "evt-1"}, second)
	assert.Equal(t, memstore.Counts{Events: 1, Showings: 1, Listings: 1, Prospects: 1}, s.store.Counts())
}

func TestWebhookMalformed(t *testing.T) {
	s := newTestServer(t, testToken, nil)

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"not_json", `{"event":`, ""},
		{"missing_event_id", `{"event":{"action":"showing.created","created_at":"2024-03-01T10:00:00Z"}}`, "event.id"},
		{"missing_showing_uid", `{"event":{"id":"evt-9","action":"showing.created","created_at":"2024-03-01T10:00:00Z","showing":{}}}`, "event.showing.uid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/webhook", tt.body, bearer(testToken))
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var body errorResponse
			decode(t, rec, &body)
			assert.Equal(t, "malformed_payload", body.Error)
			if tt.field != "" {
				assert.Equal(t, tt.field, body.Details["field"])
			}
		})
	}
	assert.Zero(t, s.store.Commits())
}

func TestWebhookStoreFailure(t *testing.T) {
	s := newTestServer(t, testToken, nil)
	s.store.FailOn("InsertProspect", errors.New("disk full"))

	rec := s.do(t, http.MethodPost, "/webhook", showingPayload, bearer(testToken))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body errorResponse
	decode(t, rec, &body)
	assert.Equal(t, "store_failure", body.Error)
	assert.NotContains(t, rec.Body.String(), "disk full")
	assert.Equal(t, memstore.Counts{}, s.store.Counts())

	s.store.FailOn("InsertProspect", nil)
	rec = s.do(t, http.MethodPost, "/webhook", showingPayload, bearer(testToken))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookBodyLimit(t *testing.T) {
	s := newTestServer(t, "", nil)
	big := `{"event":{"id":"evt-1","action":"` + strings.Repeat("a", maxBodyBytes) + `"}}`

	rec := s.do(t, http.MethodPost, "/webhook", big, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Zero(t, s.store.Commits())
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, "", nil)

	rec := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var ok HealthResponse
	decode(t, rec, &ok)
	assert.Equal(t, HealthResponse{Status: "healthy", Version: version, Database: "ok"}, ok)

	s.reader.pingErr = errors.New("connection refused")
	rec = s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var bad HealthResponse
	decode(t, rec, &bad)
	assert.Equal(t, "unhealthy", bad.Status)
}

func TestRootAndPing(t *testing.T) {
	s := newTestServer(t, "", nil)

	rec := s.do(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"service":"showing-webhooks"`)

	rec = s.do(t, http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, testToken, nil)

	rec := s.do(t, http.MethodOptions, "/api/v1/events", "", map[string]string{
		"Origin":                        "http://localhost:3000",
		"Access-Control-Request-Method": "GET",
	})
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = s.do(t, http.MethodOptions, "/api/v1/events", "", map[string]string{
		"Origin":                        "http://evil.example",
		"Access-Control-Request-Method": "GET",
	})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCheckBearer(t *testing.T) {
	assert.Empty(t, checkBearer("Bearer s3cret", "s3cret"))
	assert.Empty(t, checkBearer("bearer  s3cret", "s3cret"))
	assert.Equal(t, "missing Authorization header", checkBearer("", "s3cret"))
	assert.Equal(t, "invalid authorization scheme, expected Bearer", checkBearer("s3cret", "s3cret"))
	assert.Equal(t, "invalid bearer token", checkBearer("Bearer s3cre", "s3cret"))
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthChecksRedis(t *testing.T) {
	db := &stubReader{}
	redisErr := errors.New("redis down")
	h := HealthHandler(db, pingFunc(func(context.Context) error { return redisErr }))

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp HealthResponse
	decode(t, rec, &resp)
	assert.Equal(t, HealthResponse{Status: "unhealthy", Version: version, Database: "ok", Redis: "unreachable"}, resp)

	redisErr = nil
	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"ok"`)
}
