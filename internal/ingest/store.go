package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/Priya8975/showing-webhooks/internal/domain"
)

// ErrEventExists is returned by Tx.InsertEvent when the event_id uniqueness
// constraint rejects the row, i.e. a concurrent delivery committed first.
var ErrEventExists = errors.New("event already exists")

type Clock interface {
	Now() time.Time
}

// Store runs fn inside a single transaction. The transaction commits only if
// fn returns nil; any error (or panic) rolls back every write made through tx.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the entity store as seen from inside one transaction. Getters return
// (nil, nil) when the row does not exist.
type Tx interface {
	// LockKey serializes transactions touching the same showing or aggregate
	// until commit, so a recount never misses a concurrent writer's row.
	LockKey(ctx context.Context, key string) error

	GetEvent(ctx context.Context, eventID string) (*domain.Event, error)
	InsertEvent(ctx context.Context, e *domain.Event) error
	DeleteEvent(ctx context.Context, eventID string) error

	GetShowing(ctx context.Context, uid string) (*domain.Showing, error)
	InsertShowing(ctx context.Context, s *domain.Showing) error
	UpdateShowing(ctx context.Context, s *domain.Showing) error
	DeleteShowingsByEvent(ctx context.Context, eventID string) ([]domain.Showing, error)
	CountShowingsByListing(ctx context.Context, listingUID string) (int, error)
	CountShowingsByEmail(ctx context.Context, email string) (int, error)

	GetListing(ctx context.Context, uid string) (*domain.Listing, error)
	InsertListing(ctx context.Context, l *domain.Listing) error
	UpdateListing(ctx context.Context, l *domain.Listing) error

	GetProspect(ctx context.Context, email string) (*domain.Prospect, error)
	InsertProspect(ctx context.Context, p *domain.Prospect) error
	UpdateProspect(ctx context.Context, p *domain.Prospect) error
}
