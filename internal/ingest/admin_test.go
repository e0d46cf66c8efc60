package ingest_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Priya8975/showing-webhooks/internal/domain"
	"github.com/Priya8975/showing-webhooks/internal/ingest"
)

func TestReconcileRepairsDrift(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, webhook(t, "evt-1", "showing.created", &showingFields{UID: "shw-1", ListingUID: "lst-1", Address: "1 Main St"}))
	f.ingest(t, webhook(t, "evt-2", "showing.created", &showingFields{UID: "shw-2", ListingUID: "lst-1", Address: "1 Main St"}))
	f.store.SetListingTotal("lst-1", 7)

	res, err := f.svc.Reconcile(context.Background(), ingest.KindListing, "lst-1")
	require.NoError(t, err)
	assert.Equal(t, ingest.ReconcileResult{Kind: ingest.KindListing, Key: "lst-1", Found: true, Total: 2, Changed: true}, res)

	l, _ := f.store.Listing("lst-1")
	assert.Equal(t, 2, l.TotalShowings)

	receipts := f.notifier.all()
	last := receipts[len(receipts)-1]
	assert.Equal(t, ingest.StatusReconciled, last.Status)
	assert.Equal(t, "lst-1", last.ListingUID)

	res, err = f.svc.Reconcile(context.Background(), ingest.KindListing, "lst-1")
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Len(t, f.notifier.all(), len(receipts))
}

func TestReconcileMissingAggregate(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Reconcile(context.Background(), ingest.KindProspect, "nobody@x.com")
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Equal(t, 0, f.store.Counts().Prospects)
}

func TestReconcileUnknownKind(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Reconcile(context.Background(), ingest.AggregateKind("agent"), "x")
	assert.Equal(t, domain.CodeValidation, domain.CodeOf(err))
}

func TestDeleteEventRemovesShowingsAndRecounts(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, webhook(t, "evt-1", "showing.created", &showingFields{UID: "shw-1", Email: "a@x.com", ListingUID: "lst-1", Address: "1 Main St"}))
	f.ingest(t, webhook(t, "evt-2", "showing.created", &showingFields{UID: "shw-2", Email: "a@x.com", ListingUID: "lst-1", Address: "1 Main St"}))

	res, err := f.svc.DeleteEvent(context.Background(), "evt-2")
	require.NoError(t, err)
	assert.Equal(t, ingest.DeleteResult{EventID: "evt-2", ShowingsDeleted: 1}, res)

	_, ok := f.store.Event("evt-2")
	assert.False(t, ok)
	_, ok = f.store.Showing("shw-2")
	assert.False(t, ok)

	l, _ := f.store.Listing("lst-1")
	p, _ := f.store.Prospect("a@x.com")
	assert.Equal(t, 1, l.TotalShowings)
	assert.Equal(t, 1, p.TotalShowings)

	receipts := f.notifier.all()
	assert.Equal(t, ingest.StatusDeleted, receipts[len(receipts)-1].Status)

	// The deleted event id is free again and is processed as new.
	out := f.ingest(t, webhook(t, "evt-2", "showing.created", &showingFields{UID: "shw-2", Email: "a@x.com", ListingUID: "lst-1", Address: "1 Main St"}))
	assert.Equal(t, ingest.StatusSuccess, out.Status)
	l, _ = f.store.Listing("lst-1")
	assert.Equal(t, 2, l.TotalShowings)
}

func TestDeleteEventNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.DeleteEvent(context.Background(), "evt-missing")
	assert.Equal(t, domain.CodeNotFound, domain.CodeOf(err))
}

func TestDeleteEventRollsBackOnFault(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, scenarioOne(t))
	f.store.FailOn("UpdateListing", errors.New("connection reset"))

	_, err := f.svc.DeleteEvent(context.Background(), "evt-1")
	require.Error(t, err)
	assert.Equal(t, domain.CodeStoreFailure, domain.CodeOf(err))

	_, ok := f.store.Event("evt-1")
	assert.True(t, ok)
	_, ok = f.store.Showing("shw-1")
	assert.True(t, ok)
}
