package store

import (
	"context"
	"fmt"
	"time"
)

// Overview holds the dashboard totals.
type Overview struct {
	TotalEvents      int `json:"total_events"`
	TotalShowings    int `json:"total_showings"`
	TotalListings    int `json:"total_listings"`
	TotalProspects   int `json:"total_prospects"`
	UpcomingShowings int `json:"upcoming_showings"`
	EventsLast24h    int `json:"events_last_24h"`
}

type DateCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// GetOverview returns entity totals, the number of showings in the next seven
// days that are not canceled, and the events created in the last 24 hours.
func (s *PostgresStore) GetOverview(ctx context.Context, now time.Time) (*Overview, error) {
	var o Overview
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM events),
			(SELECT COUNT(*) FROM showings),
			(SELECT COUNT(*) FROM listings),
			(SELECT COUNT(*) FROM prospects),
			(SELECT COUNT(*) FROM showings
				WHERE showtime >= $1 AND showtime <= $2 AND canceled_at IS NULL),
			(SELECT COUNT(*) FROM events WHERE created_at >= $3)
	`, now, now.Add(7*24*time.Hour), now.Add(-24*time.Hour)).Scan(
		&o.TotalEvents, &o.TotalShowings, &o.TotalListings, &o.TotalProspects,
		&o.UpcomingShowings, &o.EventsLast24h,
	)
	if err != nil {
		return nil, fmt.Errorf("querying overview: %w", err)
	}
	return &o, nil
}

// ShowingsByDate counts showings per UTC calendar day of showtime since the
// given instant, oldest day first.
func (s *PostgresStore) ShowingsByDate(ctx context.Context, since time.Time) ([]DateCount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT to_char((showtime AT TIME ZONE 'UTC')::date, 'YYYY-MM-DD') AS day, COUNT(*)
		FROM showings
		WHERE showtime >= $1
		GROUP BY day
		ORDER BY day ASC
	`, since)
	if err != nil {
		return nil, fmt.Errorf("querying showings by date: %w", err)
	}
	defer rows.Close()

	counts := []DateCount{}
	for rows.Next() {
		var dc DateCount
		if err := rows.Scan(&dc.Date, &dc.Count); err != nil {
			return nil, fmt.Errorf("scanning date count: %w", err)
		}
		counts = append(counts, dc)
	}
	return counts, rows.Err()
}
