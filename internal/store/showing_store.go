package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Priya8975/showing-webhooks/internal/domain"
)

type ShowingFilter struct {
	ListingUID string
	Email      string
	StartDate  *time.Time
	EndDate    *time.Time
	IsSelfShow *bool
	Status     domain.ShowingStatus
	Page
}

func (f ShowingFilter) where() *whereClause {
	w := &whereClause{}
	if f.ListingUID != "" {
		w.add("listing_uid = $%d", f.ListingUID)
	}
	if f.Email != "" {
		w.add("email = $%d", f.Email)
	}
	if f.StartDate != nil {
		w.add("showtime >= $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		w.add("showtime <= $%d", *f.EndDate)
	}
	if f.IsSelfShow != nil {
		w.add("is_self_show = $%d", *f.IsSelfShow)
	}
	switch f.Status {
	case domain.ShowingPending:
		w.raw("confirmed_at IS NULL AND canceled_at IS NULL")
	case domain.ShowingConfirmed:
		w.raw("confirmed_at IS NOT NULL AND canceled_at IS NULL")
	case domain.ShowingCanceled:
		w.raw("canceled_at IS NOT NULL")
	}
	return w
}

// ListShowings returns one page of showings ordered by showtime, latest
// first, together with the total match count.
func (s *PostgresStore) ListShowings(ctx context.Context, f ShowingFilter) ([]domain.Showing, int, error) {
	w := f.where()

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM showings`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting showings: %w", err)
	}

	query, args := w.paged(`SELECT `+showingColumns+` FROM showings`+w.String()+` ORDER BY showtime DESC NULLS LAST, id DESC`, f.Page)
	showings, err := s.queryShowings(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return showings, total, nil
}

func (s *PostgresStore) GetShowing(ctx context.Context, uid string) (*domain.Showing, error) {
	var sh domain.Showing
	err := scanShowing(s.pool.QueryRow(ctx, `SELECT `+showingColumns+` FROM showings WHERE uid = $1`, uid), &sh)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying showing: %w", err)
	}
	return &sh, nil
}

// UpcomingShowings returns showings that are not canceled with a showtime in
// [from, to], soonest first.
func (s *PostgresStore) UpcomingShowings(ctx context.Context, from, to time.Time, limit int) ([]domain.Showing, error) {
	return s.queryShowings(ctx, `
		SELECT `+showingColumns+` FROM showings
		WHERE showtime >= $1 AND showtime <= $2 AND canceled_at IS NULL
		ORDER BY showtime ASC
		LIMIT $3
	`, from, to, limit)
}

func (s *PostgresStore) queryShowings(ctx context.Context, query string, args ...any) ([]domain.Showing, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying showings: %w", err)
	}
	defer rows.Close()

	showings := []domain.Showing{}
	for rows.Next() {
		var sh domain.Showing
		if err := scanShowing(rows, &sh); err != nil {
			return nil, fmt.Errorf("scanning showing: %w", err)
		}
		showings = append(showings, sh)
	}
	return showings, rows.Err()
}
