package ingest

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/Priya8975/showing-webhooks/internal/domain"
)

func showingLockKey(uid string) string { return "showing:" + uid }

func (s *Service) applyShowing(ctx context.Context, tx Tx, eventID string, in *domain.Showing, now time.Time) error {
	prev, err := s.upsertShowing(ctx, tx, eventID, in, now)
	if err != nil {
		return err
	}

	listingUID := deref(in.ListingUID)
	email := deref(in.Email)
	var oldListingUID, oldEmail string
	if prev != nil {
		oldListingUID, oldEmail = deref(prev.ListingUID), deref(prev.Email)
	}

	// Take every aggregate lock up front in a fixed order so two showings
	// swapping listings cannot deadlock.
	if err := lockSorted(ctx, tx, listingLockKey, listingUID, oldListingUID); err != nil {
		return err
	}
	if err := lockSorted(ctx, tx, prospectLockKey, email, oldEmail); err != nil {
		return err
	}

	if listingUID != "" {
		if address := deref(in.ListingFullAddress); address != "" {
			err = s.upsertListing(ctx, tx, listingUID, address, now)
		} else {
			_, err = refreshListing(ctx, tx, listingUID)
		}
		if err != nil {
			return err
		}
	}
	if email != "" {
		if err := s.upsertProspect(ctx, tx, email, in.Name, in.Phone, now); err != nil {
			return err
		}
	}

	// The showing may have moved away from the listing or prospect it pointed
	// at before; those counters lost a row.
	if oldListingUID != "" && oldListingUID != listingUID {
		if _, err := refreshListing(ctx, tx, oldListingUID); err != nil {
			return err
		}
	}
	if oldEmail != "" && oldEmail != email {
		if _, err := refreshProspect(ctx, tx, oldEmail); err != nil {
			return err
		}
	}
	return nil
}

// lockSorted locks the non-empty keys in ascending order.
func lockSorted(ctx context.Context, tx Tx, lockKey func(string) string, keys ...string) error {
	keys = slices.DeleteFunc(slices.Clone(keys), func(k string) bool { return k == "" })
	slices.Sort(keys)
	for _, k := range slices.Compact(keys) {
		if err := tx.LockKey(ctx, lockKey(k)); err != nil {
			return fmt.Errorf("locking %s: %w", lockKey(k), err)
		}
	}
	return nil
}

// upsertShowing inserts the showing or fully replaces its mutable fields.
// It returns the row as it was before an update, or nil after an insert.
func (s *Service) upsertShowing(ctx context.Context, tx Tx, eventID string, in *domain.Showing, now time.Time) (*domain.Showing, error) {
	if err := tx.LockKey(ctx, showingLockKey(in.UID)); err != nil {
		return nil, fmt.Errorf("locking showing %s: %w", in.UID, err)
	}
	existing, err := tx.GetShowing(ctx, in.UID)
	if err != nil {
		return nil, fmt.Errorf("looking up showing %s: %w", in.UID, err)
	}

	row := *in
	row.EventID = eventID
	row.UpdatedAt = now

	if existing == nil {
		if err := tx.InsertShowing(ctx, &row); err != nil {
			return nil, fmt.Errorf("inserting showing %s: %w", in.UID, err)
		}
		s.logger.Debug().Str("showing_uid", row.UID).Str("event_id", eventID).Msg("created showing")
		return nil, nil
	}

	prev := *existing
	row.CreatedAt = existing.CreatedAt
	if err := tx.UpdateShowing(ctx, &row); err != nil {
		return nil, fmt.Errorf("updating showing %s: %w", in.UID, err)
	}
	s.logger.Debug().Str("showing_uid", row.UID).Str("event_id", eventID).Msg("updated showing")
	return &prev, nil
}
