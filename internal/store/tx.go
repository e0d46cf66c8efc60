package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Priya8975/showing-webhooks/internal/domain"
	"github.com/Priya8975/showing-webhooks/internal/ingest"
)

const (
	eventColumns    = `event_id, action, actor, team_member_name, team_member_uid, created_at, received_at`
	showingColumns  = `uid, event_id, created_at, showtime, showing_time_zone, showing_time_zone_utc_offset, name, phone, email, notes, listing_uid, listing_full_address, is_self_show, confirmed_at, canceled_at, self_show_code_distributed_at, updated_at`
	listingColumns  = `uid, full_address, first_seen_at, last_seen_at, total_showings`
	prospectColumns = `email, name, phone, first_contact_at, last_contact_at, total_showings`
)

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner, e *domain.Event) error {
	return row.Scan(&e.EventID, &e.Action, &e.Actor, &e.TeamMemberName, &e.TeamMemberUID, &e.CreatedAt, &e.ReceivedAt)
}

func scanShowing(row scanner, s *domain.Showing) error {
	return row.Scan(
		&s.UID, &s.EventID, &s.CreatedAt, &s.Showtime, &s.ShowingTimeZone, &s.ShowingTimeZoneUTCOffset,
		&s.Name, &s.Phone, &s.Email, &s.Notes, &s.ListingUID, &s.ListingFullAddress, &s.IsSelfShow,
		&s.ConfirmedAt, &s.CanceledAt, &s.SelfShowCodeDistributedAt, &s.UpdatedAt,
	)
}

func scanListing(row scanner, l *domain.Listing) error {
	return row.Scan(&l.UID, &l.FullAddress, &l.FirstSeenAt, &l.LastSeenAt, &l.TotalShowings)
}

func scanProspect(row scanner, p *domain.Prospect) error {
	return row.Scan(&p.Email, &p.Name, &p.Phone, &p.FirstContactAt, &p.LastContactAt, &p.TotalShowings)
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if err == nil || !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}

// WithTx runs fn in a read-committed transaction, committing only when fn
// returns nil.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx ingest.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) LockKey(ctx context.Context, key string) error {
	if _, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return fmt.Errorf("advisory lock %s: %w", key, err)
	}
	return nil
}

func (t *pgTx) GetEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	var e domain.Event
	err := scanEvent(t.tx.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE event_id = $1`, eventID), &e)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying event: %w", err)
	}
	return &e, nil
}

func (t *pgTx) InsertEvent(ctx context.Context, e *domain.Event) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO events (event_id, action, actor, team_member_name, team_member_uid, created_at, received_at, raw_payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.EventID, e.Action, e.Actor, e.TeamMemberName, e.TeamMemberUID, e.CreatedAt, e.ReceivedAt, []byte(e.RawPayload))
	if err != nil {
		if isUniqueViolation(err, "events_event_id_key") {
			return ingest.ErrEventExists
		}
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

func (t *pgTx) DeleteEvent(ctx context.Context, eventID string) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM events WHERE event_id = $1`, eventID); err != nil {
		return fmt.Errorf("deleting event: %w", err)
	}
	return nil
}

func (t *pgTx) GetShowing(ctx context.Context, uid string) (*domain.Showing, error) {
	var s domain.Showing
	err := scanShowing(t.tx.QueryRow(ctx, `SELECT `+showingColumns+` FROM showings WHERE uid = $1`, uid), &s)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying showing: %w", err)
	}
	return &s, nil
}

func (t *pgTx) InsertShowing(ctx context.Context, s *domain.Showing) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO showings (`+showingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, s.UID, s.EventID, s.CreatedAt, s.Showtime, s.ShowingTimeZone, s.ShowingTimeZoneUTCOffset,
		s.Name, s.Phone, s.Email, s.Notes, s.ListingUID, s.ListingFullAddress, s.IsSelfShow,
		s.ConfirmedAt, s.CanceledAt, s.SelfShowCodeDistributedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting showing: %w", err)
	}
	return nil
}

// UpdateShowing replaces every mutable column; created_at is left as stored.
func (t *pgTx) UpdateShowing(ctx context.Context, s *domain.Showing) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE showings SET
			event_id = $2,
			showtime = $3,
			showing_time_zone = $4,
			showing_time_zone_utc_offset = $5,
			name = $6,
			phone = $7,
			email = $8,
			notes = $9,
			listing_uid = $10,
			listing_full_address = $11,
			is_self_show = $12,
			confirmed_at = $13,
			canceled_at = $14,
			self_show_code_distributed_at = $15,
			updated_at = $16
		WHERE uid = $1
	`, s.UID, s.EventID, s.Showtime, s.ShowingTimeZone, s.ShowingTimeZoneUTCOffset,
		s.Name, s.Phone, s.Email, s.Notes, s.ListingUID, s.ListingFullAddress, s.IsSelfShow,
		s.ConfirmedAt, s.CanceledAt, s.SelfShowCodeDistributedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating showing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("updating showing %s: no such row", s.UID)
	}
	return nil
}

func (t *pgTx) DeleteShowingsByEvent(ctx context.Context, eventID string) ([]domain.Showing, error) {
	rows, err := t.tx.Query(ctx, `DELETE FROM showings WHERE event_id = $1 RETURNING `+showingColumns, eventID)
	if err != nil {
		return nil, fmt.Errorf("deleting showings: %w", err)
	}
	defer rows.Close()

	var removed []domain.Showing
	for rows.Next() {
		var s domain.Showing
		if err := scanShowing(rows, &s); err != nil {
			return nil, fmt.Errorf("scanning deleted showing: %w", err)
		}
		removed = append(removed, s)
	}
	return removed, rows.Err()
}

func (t *pgTx) CountShowingsByListing(ctx context.Context, listingUID string) (int, error) {
	var n int
	if err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM showings WHERE listing_uid = $1`, listingUID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting showings by listing: %w", err)
	}
	return n, nil
}

func (t *pgTx) CountShowingsByEmail(ctx context.Context, email string) (int, error) {
	var n int
	if err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM showings WHERE email = $1`, email).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting showings by email: %w", err)
	}
	return n, nil
}

func (t *pgTx) GetListing(ctx context.Context, uid string) (*domain.Listing, error) {
	var l domain.Listing
	err := scanListing(t.tx.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE uid = $1`, uid), &l)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying listing: %w", err)
	}
	return &l, nil
}

func (t *pgTx) InsertListing(ctx context.Context, l *domain.Listing) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO listings (`+listingColumns+`)
		VALUES ($1, $2, $3, $4, $5)
	`, l.UID, l.FullAddress, l.FirstSeenAt, l.LastSeenAt, l.TotalShowings)
	if err != nil {
		return fmt.Errorf("inserting listing: %w", err)
	}
	return nil
}

// UpdateListing writes last-seen and the total; the address is fixed at insert.
func (t *pgTx) UpdateListing(ctx context.Context, l *domain.Listing) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE listings SET last_seen_at = $2, total_showings = $3
		WHERE uid = $1
	`, l.UID, l.LastSeenAt, l.TotalShowings)
	if err != nil {
		return fmt.Errorf("updating listing: %w", err)
	}
	return nil
}

func (t *pgTx) GetProspect(ctx context.Context, email string) (*domain.Prospect, error) {
	var p domain.Prospect
	err := scanProspect(t.tx.QueryRow(ctx, `SELECT `+prospectColumns+` FROM prospects WHERE email = $1`, email), &p)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying prospect: %w", err)
	}
	return &p, nil
}

func (t *pgTx) InsertProspect(ctx context.Context, p *domain.Prospect) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO prospects (`+prospectColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, p.Email, p.Name, p.Phone, p.FirstContactAt, p.LastContactAt, p.TotalShowings)
	if err != nil {
		return fmt.Errorf("inserting prospect: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateProspect(ctx context.Context, p *domain.Prospect) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE prospects SET name = $2, phone = $3, last_contact_at = $4, total_showings = $5
		WHERE email = $1
	`, p.Email, p.Name, p.Phone, p.LastContactAt, p.TotalShowings)
	if err != nil {
		return fmt.Errorf("updating prospect: %w", err)
	}
	return nil
}
