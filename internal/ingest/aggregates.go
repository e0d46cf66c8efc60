package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/Priya8975/showing-webhooks/internal/domain"
)

func listingLockKey(uid string) string    { return "listing:" + uid }
func prospectLockKey(email string) string { return "prospect:" + email }

func (s *Service) upsertListing(ctx context.Context, tx Tx, uid, address string, now time.Time) error {
	if err := tx.LockKey(ctx, listingLockKey(uid)); err != nil {
		return fmt.Errorf("locking listing %s: %w", uid, err)
	}
	existing, err := tx.GetListing(ctx, uid)
	if err != nil {
		return fmt.Errorf("looking up listing %s: %w", uid, err)
	}
	total, err := tx.CountShowingsByListing(ctx, uid)
	if err != nil {
		return fmt.Errorf("counting showings for listing %s: %w", uid, err)
	}

	if existing == nil {
		l := &domain.Listing{
			UID:           uid,
			FullAddress:   address,
			FirstSeenAt:   now,
			LastSeenAt:    now,
			TotalShowings: total,
		}
		if err := tx.InsertListing(ctx, l); err != nil {
			return fmt.Errorf("inserting listing %s: %w", uid, err)
		}
		s.logger.Debug().Str("listing_uid", uid).Msg("created listing")
		return nil
	}

	existing.LastSeenAt = now
	existing.TotalShowings = total
	if err := tx.UpdateListing(ctx, existing); err != nil {
		return fmt.Errorf("updating listing %s: %w", uid, err)
	}
	s.logger.Debug().Str("listing_uid", uid).Int("total_showings", total).Msg("updated listing")
	return nil
}

func (s *Service) upsertProspect(ctx context.Context, tx Tx, email string, name, phone *string, now time.Time) error {
	if err := tx.LockKey(ctx, prospectLockKey(email)); err != nil {
		return fmt.Errorf("locking prospect %s: %w", email, err)
	}
	existing, err := tx.GetProspect(ctx, email)
	if err != nil {
		return fmt.Errorf("looking up prospect %s: %w", email, err)
	}
	total, err := tx.CountShowingsByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("counting showings for prospect %s: %w", email, err)
	}

	if existing == nil {
		p := &domain.Prospect{
			Email:          email,
			Name:           nonEmpty(name),
			Phone:          nonEmpty(phone),
			FirstContactAt: now,
			LastContactAt:  now,
			TotalShowings:  total,
		}
		if err := tx.InsertProspect(ctx, p); err != nil {
			return fmt.Errorf("inserting prospect %s: %w", email, err)
		}
		s.logger.Debug().Str("email", email).Msg("created prospect")
		return nil
	}

	// Contact details only ever get replaced by something non-empty.
	if v := nonEmpty(name); v != nil {
		existing.Name = v
	}
	if v := nonEmpty(phone); v != nil {
		existing.Phone = v
	}
	existing.LastContactAt = now
	existing.TotalShowings = total
	if err := tx.UpdateProspect(ctx, existing); err != nil {
		return fmt.Errorf("updating prospect %s: %w", email, err)
	}
	s.logger.Debug().Str("email", email).Int("total_showings", total).Msg("updated prospect")
	return nil
}

// refreshResult reports a recount of an aggregate that may not exist.
type refreshResult struct {
	Found   bool
	Total   int
	Changed bool
}

// refreshListing recounts an existing listing without touching its
// timestamps. A missing listing is left alone.
func refreshListing(ctx context.Context, tx Tx, uid string) (refreshResult, error) {
	if err := tx.LockKey(ctx, listingLockKey(uid)); err != nil {
		return refreshResult{}, fmt.Errorf("locking listing %s: %w", uid, err)
	}
	l, err := tx.GetListing(ctx, uid)
	if err != nil {
		return refreshResult{}, fmt.Errorf("looking up listing %s: %w", uid, err)
	}
	if l == nil {
		return refreshResult{}, nil
	}
	total, err := tx.CountShowingsByListing(ctx, uid)
	if err != nil {
		return refreshResult{}, fmt.Errorf("counting showings for listing %s: %w", uid, err)
	}
	res := refreshResult{Found: true, Total: total, Changed: total != l.TotalShowings}
	if res.Changed {
		l.TotalShowings = total
		if err := tx.UpdateListing(ctx, l); err != nil {
			return refreshResult{}, fmt.Errorf("updating listing %s: %w", uid, err)
		}
	}
	return res, nil
}

func refreshProspect(ctx context.Context, tx Tx, email string) (refreshResult, error) {
	if err := tx.LockKey(ctx, prospectLockKey(email)); err != nil {
		return refreshResult{}, fmt.Errorf("locking prospect %s: %w", email, err)
	}
	p, err := tx.GetProspect(ctx, email)
	if err != nil {
		return refreshResult{}, fmt.Errorf("looking up prospect %s: %w", email, err)
	}
	if p == nil {
		return refreshResult{}, nil
	}
	total, err := tx.CountShowingsByEmail(ctx, email)
	if err != nil {
		return refreshResult{}, fmt.Errorf("counting showings for prospect %s: %w", email, err)
	}
	res := refreshResult{Found: true, Total: total, Changed: total != p.TotalShowings}
	if res.Changed {
		p.TotalShowings = total
		if err := tx.UpdateProspect(ctx, p); err != nil {
			return refreshResult{}, fmt.Errorf("updating prospect %s: %w", email, err)
		}
	}
	return res, nil
}

func nonEmpty(p *string) *string {
	if p == nil || *p == "" {
		return nil
	}
	v := *p
	return &v
}
