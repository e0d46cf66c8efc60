package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/Priya8975/showing-webhooks/internal/domain"
	"github.com/Priya8975/showing-webhooks/internal/ingest"
	"github.com/Priya8975/showing-webhooks/internal/metrics"
	"github.com/Priya8975/showing-webhooks/internal/store"
	ws "github.com/Priya8975/showing-webhooks/internal/websocket"
)

const version = "1.0.0"

// Service is the write side: webhook ingestion and event removal.
type Service interface {
	Ingest(ctx context.Context, raw []byte) (ingest.Outcome, error)
	DeleteEvent(ctx context.Context, eventID string) (ingest.DeleteResult, error)
}

// Reader serves the read API. *store.PostgresStore implements it.
type Reader interface {
	Ping(ctx context.Context) error

	ListEvents(ctx context.Context, f store.EventFilter) ([]domain.Event, int, error)
	GetEvent(ctx context.Context, eventID string) (*domain.Event, error)
	ListEventActions(ctx context.Context) ([]string, error)

	ListShowings(ctx context.Context, f store.ShowingFilter) ([]domain.Showing, int, error)
	GetShowing(ctx context.Context, uid string) (*domain.Showing, error)
	UpcomingShowings(ctx context.Context, from, to time.Time, limit int) ([]domain.Showing, error)

	ListListings(ctx context.Context, f store.ListingFilter) ([]domain.Listing, int, error)
	GetListing(ctx context.Context, uid string) (*domain.Listing, error)
	ListProspects(ctx context.Context, f store.ProspectFilter) ([]domain.Prospect, int, error)
	GetProspect(ctx context.Context, email string) (*domain.Prospect, error)
	AggregateKeys(ctx context.Context) (listingUIDs, emails []string, err error)

	GetOverview(ctx context.Context, now time.Time) (*store.Overview, error)
	ShowingsByDate(ctx context.Context, since time.Time) ([]store.DateCount, error)
}

// ReconcileQueue is the Redis-backed recount queue.
type ReconcileQueue interface {
	Enqueue(ctx context.Context, kind ingest.AggregateKind, keys []string) (int, error)
	Depth(ctx context.Context) (int64, error)
}

// StatsCache holds computed stats between ingestions.
type StatsCache interface {
	Get(ctx context.Context, name string, dest any) (bool, error)
	Set(ctx context.Context, name string, value any) error
}

// Deps wires the router. Hub, Cache and Redis are optional.
type Deps struct {
	Service Service
	Reader  Reader
	Queue   ReconcileQueue
	Cache   StatsCache
	Redis   pinger
	Hub     *ws.Hub
	Clock   ingest.Clock
	Logger  zerolog.Logger

	BearerToken    string
	AllowedOrigins []string
}

// NewRouter creates and configures the HTTP router.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(AccessLog(d.Logger.With().Str("component", "http").Logger()))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	logger := d.Logger.With().Str("component", "api").Logger()
	auth := BearerAuth(d.BearerToken)

	// Handlers
	webhookHandler := NewWebhookHandler(d.Service, logger)
	eventHandler := NewEventHandler(d.Reader, logger)
	showingHandler := NewShowingHandler(d.Reader, d.Clock, logger)
	listingHandler := NewListingHandler(d.Reader, logger)
	prospectHandler := NewProspectHandler(d.Reader, logger)
	statsHandler := NewStatsHandler(d.Reader, d.Cache, d.Clock, logger)
	adminHandler := NewAdminHandler(d.Service, d.Reader, d.Queue, logger)

	health := HealthHandler(d.Reader, d.Redis)

	r.Get("/", RootHandler())
	r.Get("/health", health)
	r.Handle("/metrics", metrics.Handler())
	r.With(auth).Post("/webhook", webhookHandler.Receive)

	// WebSocket endpoint
	if d.Hub != nil {
		r.Get("/ws", d.Hub.HandleWebSocket)
	}

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", health)

		r.Route("/events", func(r chi.Router) {
			r.Get("/", eventHandler.List)
			r.Get("/actions/list", eventHandler.Actions)
			r.Get("/{event_id}", eventHandler.Get)
		})

		r.Route("/showings", func(r chi.Router) {
			r.Get("/", showingHandler.List)
			r.Get("/upcoming/list", showingHandler.Upcoming)
			r.Get("/{uid}", showingHandler.Get)
		})

		r.Route("/listings", func(r chi.Router) {
			r.Get("/", listingHandler.List)
			r.Get("/{uid}", listingHandler.Get)
			r.Get("/{uid}/showings", listingHandler.Showings)
		})

		r.Route("/prospects", func(r chi.Router) {
			r.Get("/", prospectHandler.List)
			r.Get("/{email}", prospectHandler.Get)
			r.Get("/{email}/showings", prospectHandler.Showings)
		})

		r.Route("/stats", func(r chi.Router) {
			r.Get("/overview", statsHandler.Overview)
			r.Get("/showings-by-date", statsHandler.ShowingsByDate)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth)
			r.Delete("/events/{event_id}", adminHandler.DeleteEvent)
			r.Post("/reconcile", adminHandler.Reconcile)
			r.Get("/reconcile/depth", adminHandler.Depth)
		})
	})

	return r
}
