package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Priya8975/showing-webhooks/internal/domain"
	"github.com/Priya8975/showing-webhooks/internal/ingest"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func setupPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:17",
		postgres.WithDatabase("showings"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := NewPostgres(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	require.NoError(t, s.RunMigrations(ctx))
	// A second run is a no-op.
	require.NoError(t, s.RunMigrations(ctx))
	return s
}

func samplePayload(t *testing.T, eventID, showingUID, email, listingUID string, showtime time.Time) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"event": map[string]any{
			"id":         eventID,
			"action":     "showing.created",
			"created_at": showtime.Add(-48 * time.Hour).Format(time.RFC3339),
			"showing": map[string]any{
				"uid":                  showingUID,
				"showtime":             showtime.Format(time.RFC3339),
				"email":                email,
				"name":                 "Ann",
				"listing_uid":          listingUID,
				"listing_full_address": "1 Main St",
			},
		},
	})
	require.NoError(t, err)
	return raw
}

func TestPostgresIngestEndToEnd(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := ingest.NewService(s, fixedClock{now}, zerolog.Nop())

	raw := samplePayload(t, "evt-1", "shw-1", "a@x.com", "lst-1", now.Add(24*time.Hour))
	out, err := svc.Ingest(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, ingest.StatusSuccess, out.Status)

	out, err = svc.Ingest(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, ingest.StatusDuplicate, out.Status)

	_, err = svc.Ingest(ctx, samplePayload(t, "evt-2", "shw-2", "a@x.com", "lst-1", now.Add(48*time.Hour)))
	require.NoError(t, err)

	l, err := s.GetListing(ctx, "lst-1")
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.Equal(t, 2, l.TotalShowings)

	p, err := s.GetProspect(ctx, "a@x.com")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 2, p.TotalShowings)
	require.NotNil(t, p.Name)
	assert.Equal(t, "Ann", *p.Name)

	ev, err := s.GetEvent(ctx, "evt-1")
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.JSONEq(t, string(raw), string(ev.RawPayload))
	assert.True(t, ev.ReceivedAt.Equal(now))

	missing, err := s.GetEvent(ctx, "evt-404")
	require.NoError(t, err)
	assert.Nil(t, missing)

	events, total, err := s.ListEvents(ctx, EventFilter{Action: "showing.created", Page: Page{Page: 1, PageSize: 1}})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, events, 1)
	assert.Equal(t, "evt-2", events[0].EventID)

	actions, err := s.ListEventActions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"showing.created"}, actions)

	showings, total, err := s.ListShowings(ctx, ShowingFilter{ListingUID: "lst-1", Status: domain.ShowingPending, Page: Page{Page: 1, PageSize: 50}})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, showings, 2)
	assert.Equal(t, "shw-2", showings[0].UID)

	upcoming, err := s.UpcomingShowings(ctx, now, now.Add(36*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, "shw-1", upcoming[0].UID)

	listings, total, err := s.ListListings(ctx, ListingFilter{Search: "main", Page: Page{Page: 1, PageSize: 10}})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, listings, 1)

	prospects, total, err := s.ListProspects(ctx, ProspectFilter{Search: "ANN", Page: Page{Page: 1, PageSize: 10}})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, prospects, 1)

	overview, err := s.GetOverview(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, Overview{TotalEvents: 2, TotalShowings: 2, TotalListings: 1, TotalProspects: 1, UpcomingShowings: 2, EventsLast24h: 2}, *overview)

	byDate, err := s.ShowingsByDate(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, []DateCount{{Date: "2024-03-02", Count: 1}, {Date: "2024-03-03", Count: 1}}, byDate)

	listingUIDs, emails, err := s.AggregateKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"lst-1"}, listingUIDs)
	assert.Equal(t, []string{"a@x.com"}, emails)

	res, err := svc.DeleteEvent(ctx, "evt-2")
	require.NoError(t, err)
	assert.Equal(t, 1, res.ShowingsDeleted)
	l, err = s.GetListing(ctx, "lst-1")
	require.NoError(t, err)
	assert.Equal(t, 1, l.TotalShowings)
}

func TestPostgresConcurrentIngestion(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := ingest.NewService(s, fixedClock{now}, zerolog.Nop())

	// The same new event delivered many times at once is recorded once.
	raw := samplePayload(t, "evt-dup", "shw-dup", "dup@x.com", "lst-dup", now)
	const n = 8
	var wg sync.WaitGroup
	statuses := make(chan ingest.Status, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := svc.Ingest(ctx, raw)
			if err == nil {
				statuses <- out.Status
			}
		}()
	}
	wg.Wait()
	close(statuses)
	counts := map[ingest.Status]int{}
	for st := range statuses {
		counts[st]++
	}
	assert.Equal(t, 1, counts[ingest.StatusSuccess])
	assert.Equal(t, n-1, counts[ingest.StatusDuplicate])

	// Distinct events racing on one listing still leave an exact counter.
	var errs sync.Map
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := samplePayload(t, fmt.Sprintf("evt-%d", i), fmt.Sprintf("shw-%d", i), "race@x.com", "lst-race", now)
			if _, err := svc.Ingest(ctx, body); err != nil {
				errs.Store(i, err)
			}
		}(i)
	}
	wg.Wait()
	errs.Range(func(k, v any) bool {
		t.Errorf("ingest %v failed: %v", k, v)
		return true
	})

	l, err := s.GetListing(ctx, "lst-race")
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.Equal(t, n, l.TotalShowings)
	p, err := s.GetProspect(ctx, "race@x.com")
	require.NoError(t, err)
	assert.Equal(t, n, p.TotalShowings)
}
