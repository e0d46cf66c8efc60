package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Priya8975/showing-webhooks/internal/domain"
	"github.com/Priya8975/showing-webhooks/internal/metrics"
)

type Status string

const (
	StatusSuccess    Status = "success"
	StatusDuplicate  Status = "duplicate"
	StatusDeleted    Status = "deleted"
	StatusReconciled Status = "reconciled"
)

type Outcome struct {
	Status  Status `json:"status"`
	EventID string `json:"event_id"`
}

// Receipt describes a committed change (or a detected duplicate) and is handed
// to every Notifier after the transaction has finished.
type Receipt struct {
	Outcome
	Action     string
	ShowingUID string
	ListingUID string
	Email      string
	At         time.Time
}

type Notifier interface {
	Notify(ctx context.Context, r Receipt)
}

var errDuplicate = errors.New("event already recorded")

type Service struct {
	store     Store
	clock     Clock
	logger    zerolog.Logger
	notifiers []Notifier
}

func NewService(store Store, clock Clock, logger zerolog.Logger, notifiers ...Notifier) *Service {
	return &Service{
		store:     store,
		clock:     clock,
		logger:    logger.With().Str("component", "ingest").Logger(),
		notifiers: notifiers,
	}
}

// Ingest validates raw and applies it in a single transaction. A notification
// whose event id is already recorded yields StatusDuplicate and changes
// nothing. Errors are *domain.AppError (malformed_payload or store_failure).
func (s *Service) Ingest(ctx context.Context, raw []byte) (Outcome, error) {
	start := time.Now()
	defer func() { metrics.IngestDuration.Observe(time.Since(start).Seconds()) }()

	n, err := Parse(raw)
	if err != nil {
		metrics.IngestOutcomes.WithLabelValues("malformed").Inc()
		s.logger.Warn().Err(err).Msg("rejected webhook payload")
		return Outcome{}, err
	}
	return s.applyNotification(ctx, n)
}

// applyNotification runs a validated notification through the idempotency
// gate and the showing, listing and prospect upserts.
func (s *Service) applyNotification(ctx context.Context, n *Notification) (Outcome, error) {
	now := s.clock.Now().UTC()
	receipt := Receipt{
		Outcome: Outcome{Status: StatusSuccess, EventID: n.Event.EventID},
		Action:  n.Event.Action,
		At:      now,
	}
	if n.Showing != nil {
		receipt.ShowingUID = n.Showing.UID
		receipt.ListingUID = deref(n.Showing.ListingUID)
		receipt.Email = deref(n.Showing.Email)
	}

	err := s.store.WithTx(ctx, func(tx Tx) error {
		return s.apply(ctx, tx, n, now)
	})
	switch {
	case err == nil:
	case errors.Is(err, errDuplicate), errors.Is(err, ErrEventExists):
		receipt.Status = StatusDuplicate
	default:
		metrics.IngestOutcomes.WithLabelValues("store_failure").Inc()
		s.logger.Error().Err(err).Str("event_id", n.Event.EventID).Msg("ingestion rolled back")
		return Outcome{}, domain.ErrStore("ingest event", err)
	}

	metrics.IngestOutcomes.WithLabelValues(string(receipt.Status)).Inc()
	s.logger.Info().
		Str("event_id", receipt.EventID).
		Str("action", receipt.Action).
		Str("status", string(receipt.Status)).
		Msg("webhook processed")

	s.notify(ctx, receipt)
	return receipt.Outcome, nil
}

func (s *Service) apply(ctx context.Context, tx Tx, n *Notification, now time.Time) error {
	existing, err := tx.GetEvent(ctx, n.Event.EventID)
	if err != nil {
		return fmt.Errorf("looking up event: %w", err)
	}
	if existing != nil {
		return errDuplicate
	}

	ev := n.Event
	ev.ReceivedAt = now
	if err := tx.InsertEvent(ctx, &ev); err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}

	if n.Showing == nil {
		return nil
	}
	return s.applyShowing(ctx, tx, ev.EventID, n.Showing, now)
}

func (s *Service) notify(ctx context.Context, r Receipt) {
	for _, n := range s.notifiers {
		n.Notify(ctx, r)
	}
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
