package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Priya8975/showing-webhooks/internal/ingest"
)

type call struct {
	Kind ingest.AggregateKind
	Key  string
}

type fakeReconciler struct {
	mu       sync.Mutex
	calls    []call
	failures map[string]int
}

func (f *fakeReconciler) Reconcile(_ context.Context, kind ingest.AggregateKind, key string) (ingest.ReconcileResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{kind, key})
	if f.failures[key] > 0 {
		f.failures[key]--
		return ingest.ReconcileResult{}, errors.New("store unavailable")
	}
	return ingest.ReconcileResult{Kind: kind, Key: key, Found: true, Total: 1}, nil
}

func (f *fakeReconciler) recorded() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func setupQueue(t *testing.T) (*Queue, *redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewQueue(client, zerolog.Nop()), client, mr
}

func TestQueueEnqueueAndDepth(t *testing.T) {
	q, client, _ := setupQueue(t)
	ctx := context.Background()

	n, err := q.Enqueue(ctx, ingest.KindListing, []string{"lst-1", "lst-2"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = q.Enqueue(ctx, ingest.KindProspect, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, depth)

	members, err := client.ZRange(ctx, ReconcileQueueKey, 0, -1).Result()
	require.NoError(t, err)
	keys := map[string]bool{}
	for _, m := range members {
		var job Job
		require.NoError(t, json.Unmarshal([]byte(m), &job))
		assert.Equal(t, ingest.KindListing, job.Kind)
		assert.Equal(t, 1, job.Attempt)
		assert.Equal(t, defaultMaxAttempts, job.MaxAttempts)
		assert.NotEmpty(t, job.ID)
		keys[job.Key] = true
	}
	assert.Equal(t, map[string]bool{"lst-1": true, "lst-2": true}, keys)
}

func TestDispatcherRunsQueuedJobs(t *testing.T) {
	q, client, _ := setupQueue(t)
	rec := &fakeReconciler{}
	pool := NewPool(2, rec, q, zerolog.Nop())
	d := NewDispatcher(client, pool, 10*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	done := make(chan struct{})
	go func() {
		d.Start(ctx)
		close(done)
	}()

	_, err := q.Enqueue(ctx, ingest.KindListing, []string{"lst-1"})
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, ingest.KindProspect, []string{"a@x.com"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(rec.recorded()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []call{{ingest.KindListing, "lst-1"}, {ingest.KindProspect, "a@x.com"}}, rec.recorded())

	depth, err := q.Depth(context.Background())
	require.NoError(t, err)
	assert.Zero(t, depth)

	cancel()
	<-done
	pool.Stop()
}

func TestDispatcherSkipsFutureJobs(t *testing.T) {
	q, client, _ := setupQueue(t)
	rec := &fakeReconciler{}
	pool := NewPool(1, rec, q, zerolog.Nop())
	d := NewDispatcher(client, pool, time.Second, zerolog.Nop())

	ctx := context.Background()
	require.NoError(t, q.Retry(ctx, NewJob(ingest.KindListing, "later"), time.Hour))

	assert.Zero(t, d.poll(ctx))
	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, depth)
}

func TestPoolRetriesFailedJob(t *testing.T) {
	q, _, _ := setupQueue(t)
	rec := &fakeReconciler{failures: map[string]int{"lst-1": 1}}
	pool := NewPool(1, rec, q, zerolog.Nop())
	pool.backoff = func(int) time.Duration { return 0 }

	ctx := context.Background()
	job := NewJob(ingest.KindListing, "lst-1")
	pool.process(ctx, 0, job)

	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, depth)

	members, err := q.client.ZRange(ctx, ReconcileQueueKey, 0, -1).Result()
	require.NoError(t, err)
	var retried Job
	require.NoError(t, json.Unmarshal([]byte(members[0]), &retried))
	assert.Equal(t, job.ID, retried.ID)
	assert.Equal(t, 2, retried.Attempt)
}

func TestPoolDropsJobAfterMaxAttempts(t *testing.T) {
	q, _, _ := setupQueue(t)
	rec := &fakeReconciler{failures: map[string]int{"lst-1": 10}}
	pool := NewPool(1, rec, q, zerolog.Nop())

	ctx := context.Background()
	job := NewJob(ingest.KindListing, "lst-1")
	job.Attempt = job.MaxAttempts
	pool.process(ctx, 0, job)

	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Zero(t, depth)
	assert.Len(t, rec.recorded(), 1)
}

func TestRetryBackoff(t *testing.T) {
	assert.Equal(t, time.Second, retryBackoff(1))
	assert.Equal(t, 4*time.Second, retryBackoff(2))
	assert.Equal(t, 9*time.Second, retryBackoff(3))
}

// blockingReconciler holds every call until ctx ends.
type blockingReconciler struct {
	started chan struct{}
	once    sync.Once
}

func (b *blockingReconciler) Reconcile(ctx context.Context, _ ingest.AggregateKind, _ string) (ingest.ReconcileResult, error) {
	b.once.Do(func() { close(b.started) })
	<-ctx.Done()
	return ingest.ReconcileResult{}, ctx.Err()
}

func TestGracefulStopReturnsClaimedJobs(t *testing.T) {
	q, client, _ := setupQueue(t)
	rec := &blockingReconciler{started: make(chan struct{})}
	pool := NewPool(1, rec, q, zerolog.Nop())
	d := NewDispatcher(client, pool, 10*time.Millisecond, zerolog.Nop())

	_, err := q.Enqueue(context.Background(), ingest.KindListing, []string{"lst-1", "lst-2", "lst-3", "lst-4"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	done := make(chan struct{})
	go func() {
		d.Start(ctx)
		close(done)
	}()

	select {
	case <-rec.started:
	case <-time.After(2 * time.Second):
		t.Fatal("no job reached a worker")
	}
	// One job in flight, two buffered, one blocked in Submit.
	require.Eventually(t, func() bool {
		n, err := q.Depth(context.Background())
		return err == nil && n == 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
	pool.Stop()

	members, err := client.ZRange(context.Background(), ReconcileQueueKey, 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, members, 4)
	keys := map[string]bool{}
	for _, m := range members {
		var job Job
		require.NoError(t, json.Unmarshal([]byte(m), &job))
		assert.Equal(t, 1, job.Attempt)
		keys[job.Key] = true
	}
	assert.Len(t, keys, 4)
}

func TestProcessInterruptedJobKeepsAttempt(t *testing.T) {
	q, _, _ := setupQueue(t)
	rec := &blockingReconciler{started: make(chan struct{})}
	pool := NewPool(1, rec, q, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pool.process(ctx, 0, NewJob(ingest.KindProspect, "a@x.com"))

	members, err := q.client.ZRange(context.Background(), ReconcileQueueKey, 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, members, 1)
	var job Job
	require.NoError(t, json.Unmarshal([]byte(members[0]), &job))
	assert.Equal(t, 1, job.Attempt)
	assert.Equal(t, "a@x.com", job.Key)
}
