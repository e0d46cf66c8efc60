package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Priya8975/showing-webhooks/internal/domain"
)

type EventFilter struct {
	Action    string
	StartDate *time.Time
	EndDate   *time.Time
	Page
}

func (f EventFilter) where() *whereClause {
	w := &whereClause{}
	if f.Action != "" {
		w.add("action = $%d", f.Action)
	}
	if f.StartDate != nil {
		w.add("created_at >= $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		w.add("created_at <= $%d", *f.EndDate)
	}
	return w
}

// ListEvents returns one page of events, newest first, and the total match
// count. The raw payload is not loaded.
func (s *PostgresStore) ListEvents(ctx context.Context, f EventFilter) ([]domain.Event, int, error) {
	w := f.where()

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM events`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting events: %w", err)
	}

	query, args := w.paged(`SELECT `+eventColumns+` FROM events`+w.String()+` ORDER BY created_at DESC, id DESC`, f.Page)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	events := []domain.Event{}
	for rows.Next() {
		var e domain.Event
		if err := scanEvent(rows, &e); err != nil {
			return nil, 0, fmt.Errorf("scanning event: %w", err)
		}
		events = append(events, e)
	}
	return events, total, rows.Err()
}

// GetEvent returns the event with its raw payload, or nil when absent.
func (s *PostgresStore) GetEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	var e domain.Event
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT `+eventColumns+`, raw_payload FROM events WHERE event_id = $1`, eventID).Scan(
		&e.EventID, &e.Action, &e.Actor, &e.TeamMemberName, &e.TeamMemberUID, &e.CreatedAt, &e.ReceivedAt, &raw,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying event: %w", err)
	}
	e.RawPayload = raw
	return &e, nil
}

func (s *PostgresStore) ListEventActions(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT action FROM events ORDER BY action`)
	if err != nil {
		return nil, fmt.Errorf("querying event actions: %w", err)
	}
	actions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scanning event actions: %w", err)
	}
	if actions == nil {
		actions = []string{}
	}
	return actions, nil
}
