// Package memstore is an in-memory ingest.Store. Transactions run one at a
// time against a private copy of the data, which replaces the committed state
// only when the transaction function succeeds.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Priya8975/showing-webhooks/internal/domain"
	"github.com/Priya8975/showing-webhooks/internal/ingest"
)

type data struct {
	events    map[string]domain.Event
	showings  map[string]domain.Showing
	listings  map[string]domain.Listing
	prospects map[string]domain.Prospect
}

func newData() data {
	return data{
		events:    make(map[string]domain.Event),
		showings:  make(map[string]domain.Showing),
		listings:  make(map[string]domain.Listing),
		prospects: make(map[string]domain.Prospect),
	}
}

func (d data) clone() data {
	c := newData()
	for k, v := range d.events {
		c.events[k] = v
	}
	for k, v := range d.showings {
		c.showings[k] = v
	}
	for k, v := range d.listings {
		c.listings[k] = v
	}
	for k, v := range d.prospects {
		c.prospects[k] = v
	}
	return c
}

type Store struct {
	mu        sync.Mutex
	committed data
	faults    map[string]error
	commits   int
}

func New() *Store {
	return &Store{committed: newData(), faults: make(map[string]error)}
}

// FailOn makes every later call of the named Tx method (e.g. "UpdateListing")
// return err. Passing a nil err clears the fault.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = err
}

func (s *Store) WithTx(ctx context.Context, fn func(tx ingest.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{data: s.committed.clone(), faults: s.faults}
	if err := fn(t); err != nil {
		return err
	}
	s.committed = t.data
	s.commits++
	return nil
}

func (s *Store) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

func (s *Store) Event(id string) (domain.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.committed.events[id]
	return e, ok
}

func (s *Store) Showing(uid string) (domain.Showing, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.committed.showings[uid]
	return v, ok
}

func (s *Store) Listing(uid string) (domain.Listing, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.committed.listings[uid]
	return v, ok
}

func (s *Store) Prospect(email string) (domain.Prospect, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.committed.prospects[email]
	return v, ok
}

type Counts struct {
	Events, Showings, Listings, Prospects int
}

func (s *Store) Counts() Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Counts{
		Events:    len(s.committed.events),
		Showings:  len(s.committed.showings),
		Listings:  len(s.committed.listings),
		Prospects: len(s.committed.prospects),
	}
}

// Listings returns every committed listing ordered by uid.
func (s *Store) Listings() []domain.Listing {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Listing, 0, len(s.committed.listings))
	for _, l := range s.committed.listings {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out
}

// Prospects returns every committed prospect ordered by email.
func (s *Store) Prospects() []domain.Prospect {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Prospect, 0, len(s.committed.prospects))
	for _, p := range s.committed.prospects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out
}

// Showings returns every committed showing ordered by uid.
func (s *Store) Showings() []domain.Showing {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Showing, 0, len(s.committed.showings))
	for _, sh := range s.committed.showings {
		out = append(out, sh)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out
}

// SetListingTotal overwrites a stored counter, simulating drift that a
// reconcile job is expected to repair.
func (s *Store) SetListingTotal(uid string, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.committed.listings[uid]; ok {
		l.TotalShowings = total
		s.committed.listings[uid] = l
	}
}

type tx struct {
	data   data
	faults map[string]error
}

func (t *tx) fault(op string) error {
	if err, ok := t.faults[op]; ok {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (t *tx) LockKey(_ context.Context, _ string) error {
	return t.fault("LockKey")
}

func (t *tx) GetEvent(_ context.Context, eventID string) (*domain.Event, error) {
	if err := t.fault("GetEvent"); err != nil {
		return nil, err
	}
	e, ok := t.data.events[eventID]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (t *tx) InsertEvent(_ context.Context, e *domain.Event) error {
	if err := t.fault("InsertEvent"); err != nil {
		return err
	}
	if _, ok := t.data.events[e.EventID]; ok {
		return ingest.ErrEventExists
	}
	t.data.events[e.EventID] = *e
	return nil
}

func (t *tx) DeleteEvent(_ context.Context, eventID string) error {
	if err := t.fault("DeleteEvent"); err != nil {
		return err
	}
	for _, sh := range t.data.showings {
		if sh.EventID == eventID {
			return fmt.Errorf("event %s is still referenced by showing %s", eventID, sh.UID)
		}
	}
	delete(t.data.events, eventID)
	return nil
}

func (t *tx) GetShowing(_ context.Context, uid string) (*domain.Showing, error) {
	if err := t.fault("GetShowing"); err != nil {
		return nil, err
	}
	sh, ok := t.data.showings[uid]
	if !ok {
		return nil, nil
	}
	return &sh, nil
}

func (t *tx) InsertShowing(_ context.Context, sh *domain.Showing) error {
	if err := t.fault("InsertShowing"); err != nil {
		return err
	}
	if _, ok := t.data.showings[sh.UID]; ok {
		return fmt.Errorf("duplicate showing uid %s", sh.UID)
	}
	if _, ok := t.data.events[sh.EventID]; !ok {
		return fmt.Errorf("showing %s references unknown event %s", sh.UID, sh.EventID)
	}
	t.data.showings[sh.UID] = *sh
	return nil
}

func (t *tx) UpdateShowing(_ context.Context, sh *domain.Showing) error {
	if err := t.fault("UpdateShowing"); err != nil {
		return err
	}
	cur, ok := t.data.showings[sh.UID]
	if !ok {
		return fmt.Errorf("showing %s not found", sh.UID)
	}
	if _, ok := t.data.events[sh.EventID]; !ok {
		return fmt.Errorf("showing %s references unknown event %s", sh.UID, sh.EventID)
	}
	row := *sh
	row.CreatedAt = cur.CreatedAt
	t.data.showings[sh.UID] = row
	return nil
}

func (t *tx) DeleteShowingsByEvent(_ context.Context, eventID string) ([]domain.Showing, error) {
	if err := t.fault("DeleteShowingsByEvent"); err != nil {
		return nil, err
	}
	var removed []domain.Showing
	for uid, sh := range t.data.showings {
		if sh.EventID == eventID {
			removed = append(removed, sh)
			delete(t.data.showings, uid)
		}
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i].UID < removed[j].UID })
	return removed, nil
}

func (t *tx) CountShowingsByListing(_ context.Context, listingUID string) (int, error) {
	if err := t.fault("CountShowingsByListing"); err != nil {
		return 0, err
	}
	n := 0
	for _, sh := range t.data.showings {
		if sh.ListingUID != nil && *sh.ListingUID == listingUID {
			n++
		}
	}
	return n, nil
}

func (t *tx) CountShowingsByEmail(_ context.Context, email string) (int, error) {
	if err := t.fault("CountShowingsByEmail"); err != nil {
		return 0, err
	}
	n := 0
	for _, sh := range t.data.showings {
		if sh.Email != nil && *sh.Email == email {
			n++
		}
	}
	return n, nil
}

func (t *tx) GetListing(_ context.Context, uid string) (*domain.Listing, error) {
	if err := t.fault("GetListing"); err != nil {
		return nil, err
	}
	l, ok := t.data.listings[uid]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (t *tx) InsertListing(_ context.Context, l *domain.Listing) error {
	if err := t.fault("InsertListing"); err != nil {
		return err
	}
	if _, ok := t.data.listings[l.UID]; ok {
		return fmt.Errorf("duplicate listing uid %s", l.UID)
	}
	t.data.listings[l.UID] = *l
	return nil
}

func (t *tx) UpdateListing(_ context.Context, l *domain.Listing) error {
	if err := t.fault("UpdateListing"); err != nil {
		return err
	}
	cur, ok := t.data.listings[l.UID]
	if !ok {
		return fmt.Errorf("listing %s not found", l.UID)
	}
	cur.LastSeenAt = l.LastSeenAt
	cur.TotalShowings = l.TotalShowings
	t.data.listings[l.UID] = cur
	return nil
}

func (t *tx) GetProspect(_ context.Context, email string) (*domain.Prospect, error) {
	if err := t.fault("GetProspect"); err != nil {
		return nil, err
	}
	p, ok := t.data.prospects[email]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (t *tx) InsertProspect(_ context.Context, p *domain.Prospect) error {
	if err := t.fault("InsertProspect"); err != nil {
		return err
	}
	if _, ok := t.data.prospects[p.Email]; ok {
		return fmt.Errorf("duplicate prospect email %s", p.Email)
	}
	t.data.prospects[p.Email] = *p
	return nil
}

func (t *tx) UpdateProspect(_ context.Context, p *domain.Prospect) error {
	if err := t.fault("UpdateProspect"); err != nil {
		return err
	}
	if _, ok := t.data.prospects[p.Email]; !ok {
		return fmt.Errorf("prospect %s not found", p.Email)
	}
	t.data.prospects[p.Email] = *p
	return nil
}
