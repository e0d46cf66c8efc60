package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Priya8975/showing-webhooks/internal/domain"
)

type ListingFilter struct {
	Search      string
	MinShowings *int
	Page
}

func (s *PostgresStore) ListListings(ctx context.Context, f ListingFilter) ([]domain.Listing, int, error) {
	w := &whereClause{}
	if f.Search != "" {
		w.add("full_address ILIKE $%d", "%"+f.Search+"%")
	}
	if f.MinShowings != nil {
		w.add("total_showings >= $%d", *f.MinShowings)
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM listings`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting listings: %w", err)
	}

	query, args := w.paged(`SELECT `+listingColumns+` FROM listings`+w.String()+` ORDER BY last_seen_at DESC, id DESC`, f.Page)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying listings: %w", err)
	}
	defer rows.Close()

	listings := []domain.Listing{}
	for rows.Next() {
		var l domain.Listing
		if err := scanListing(rows, &l); err != nil {
			return nil, 0, fmt.Errorf("scanning listing: %w", err)
		}
		listings = append(listings, l)
	}
	return listings, total, rows.Err()
}

func (s *PostgresStore) GetListing(ctx context.Context, uid string) (*domain.Listing, error) {
	var l domain.Listing
	err := scanListing(s.pool.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE uid = $1`, uid), &l)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying listing: %w", err)
	}
	return &l, nil
}

type ProspectFilter struct {
	Search      string
	MinShowings *int
	Page
}

func (s *PostgresStore) ListProspects(ctx context.Context, f ProspectFilter) ([]domain.Prospect, int, error) {
	w := &whereClause{}
	if f.Search != "" {
		w.add("(name ILIKE $%[1]d OR email ILIKE $%[1]d OR phone ILIKE $%[1]d)", "%"+f.Search+"%")
	}
	if f.MinShowings != nil {
		w.add("total_showings >= $%d", *f.MinShowings)
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM prospects`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting prospects: %w", err)
	}

	query, args := w.paged(`SELECT `+prospectColumns+` FROM prospects`+w.String()+` ORDER BY last_contact_at DESC, id DESC`, f.Page)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying prospects: %w", err)
	}
	defer rows.Close()

	prospects := []domain.Prospect{}
	for rows.Next() {
		var p domain.Prospect
		if err := scanProspect(rows, &p); err != nil {
			return nil, 0, fmt.Errorf("scanning prospect: %w", err)
		}
		prospects = append(prospects, p)
	}
	return prospects, total, rows.Err()
}

func (s *PostgresStore) GetProspect(ctx context.Context, email string) (*domain.Prospect, error) {
	var p domain.Prospect
	err := scanProspect(s.pool.QueryRow(ctx, `SELECT `+prospectColumns+` FROM prospects WHERE email = $1`, email), &p)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying prospect: %w", err)
	}
	return &p, nil
}

// AggregateKeys lists every stored listing uid and prospect email.
func (s *PostgresStore) AggregateKeys(ctx context.Context) (listingUIDs, emails []string, err error) {
	rows, err := s.pool.Query(ctx, `SELECT uid FROM listings ORDER BY uid`)
	if err != nil {
		return nil, nil, fmt.Errorf("querying listing uids: %w", err)
	}
	listingUIDs, err = pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, nil, fmt.Errorf("scanning listing uids: %w", err)
	}

	rows, err = s.pool.Query(ctx, `SELECT email FROM prospects ORDER BY email`)
	if err != nil {
		return nil, nil, fmt.Errorf("querying prospect emails: %w", err)
	}
	emails, err = pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, nil, fmt.Errorf("scanning prospect emails: %w", err)
	}
	return listingUIDs, emails, nil
}
