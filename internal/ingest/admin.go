package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/Priya8975/showing-webhooks/internal/domain"
)

type AggregateKind string

const (
	KindListing  AggregateKind = "listing"
	KindProspect AggregateKind = "prospect"
)

func (k AggregateKind) Valid() bool { return k == KindListing || k == KindProspect }

type ReconcileResult struct {
	Kind    AggregateKind `json:"kind"`
	Key     string        `json:"key"`
	Found   bool          `json:"found"`
	Total   int           `json:"total_showings"`
	Changed bool          `json:"changed"`
}

// Reconcile recounts one listing or prospect from the showings table in its
// own transaction. A key with no stored aggregate is reported as not found.
func (s *Service) Reconcile(ctx context.Context, kind AggregateKind, key string) (ReconcileResult, error) {
	if !kind.Valid() {
		return ReconcileResult{}, domain.ErrValidationMeta("unknown aggregate kind", map[string]string{"kind": string(kind)})
	}

	var res refreshResult
	err := s.store.WithTx(ctx, func(tx Tx) error {
		var err error
		if kind == KindListing {
			res, err = refreshListing(ctx, tx, key)
		} else {
			res, err = refreshProspect(ctx, tx, key)
		}
		return err
	})
	if err != nil {
		return ReconcileResult{}, domain.ErrStore("reconcile "+string(kind), err)
	}

	out := ReconcileResult{Kind: kind, Key: key, Found: res.Found, Total: res.Total, Changed: res.Changed}
	if out.Changed {
		s.logger.Info().Str("kind", string(kind)).Str("key", key).Int("total_showings", out.Total).Msg("reconciled aggregate counter")
		r := Receipt{Outcome: Outcome{Status: StatusReconciled}, At: s.clock.Now().UTC()}
		if kind == KindListing {
			r.ListingUID = key
		} else {
			r.Email = key
		}
		s.notify(ctx, r)
	}
	return out, nil
}

type DeleteResult struct {
	EventID         string `json:"event_id"`
	ShowingsDeleted int    `json:"showings_deleted"`
}

// DeleteEvent removes an event together with the showings it last wrote, then
// recounts every listing and prospect those showings referenced.
func (s *Service) DeleteEvent(ctx context.Context, eventID string) (DeleteResult, error) {
	res := DeleteResult{EventID: eventID}
	errMissing := errors.New("event not found")

	err := s.store.WithTx(ctx, func(tx Tx) error {
		ev, err := tx.GetEvent(ctx, eventID)
		if err != nil {
			return fmt.Errorf("looking up event: %w", err)
		}
		if ev == nil {
			return errMissing
		}

		removed, err := tx.DeleteShowingsByEvent(ctx, eventID)
		if err != nil {
			return fmt.Errorf("deleting showings of event %s: %w", eventID, err)
		}
		if err := tx.DeleteEvent(ctx, eventID); err != nil {
			return fmt.Errorf("deleting event %s: %w", eventID, err)
		}
		res.ShowingsDeleted = len(removed)

		listings, emails := referencedKeys(removed)
		for _, uid := range listings {
			if _, err := refreshListing(ctx, tx, uid); err != nil {
				return err
			}
		}
		for _, email := range emails {
			if _, err := refreshProspect(ctx, tx, email); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, errMissing) {
		return DeleteResult{}, domain.ErrNotFound("event " + eventID + " not found")
	}
	if err != nil {
		return DeleteResult{}, domain.ErrStore("delete event", err)
	}

	s.logger.Info().Str("event_id", eventID).Int("showings_deleted", res.ShowingsDeleted).Msg("deleted event")
	s.notify(ctx, Receipt{Outcome: Outcome{Status: StatusDeleted, EventID: eventID}, At: s.clock.Now().UTC()})
	return res, nil
}

// referencedKeys returns the distinct listing uids and emails of showings in
// sorted order, so concurrent deletes take their locks in the same sequence.
func referencedKeys(showings []domain.Showing) ([]string, []string) {
	listingSet := make(map[string]struct{})
	emailSet := make(map[string]struct{})
	for _, sh := range showings {
		if uid := deref(sh.ListingUID); uid != "" {
			listingSet[uid] = struct{}{}
		}
		if email := deref(sh.Email); email != "" {
			emailSet[email] = struct{}{}
		}
	}
	return sortedKeys(listingSet), sortedKeys(emailSet)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
