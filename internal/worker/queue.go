package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Priya8975/showing-webhooks/internal/ingest"
)

const (
	ReconcileQueueKey  = "reconcile_queue"
	defaultMaxAttempts = 5
)

// Job asks a worker to recount one listing or prospect.
type Job struct {
	ID          string               `json:"id"`
	Kind        ingest.AggregateKind `json:"kind"`
	Key         string               `json:"key"`
	Attempt     int                  `json:"attempt"`
	MaxAttempts int                  `json:"max_attempts"`
}

func NewJob(kind ingest.AggregateKind, key string) Job {
	return Job{
		ID:          uuid.NewString(),
		Kind:        kind,
		Key:         key,
		Attempt:     1,
		MaxAttempts: defaultMaxAttempts,
	}
}

// Queue is a Redis sorted set of reconcile jobs scored by the time they
// become ready.
type Queue struct {
	client *redis.Client
	logger zerolog.Logger
}

func NewQueue(client *redis.Client, logger zerolog.Logger) *Queue {
	return &Queue{
		client: client,
		logger: logger.With().Str("component", "reconcile_queue").Logger(),
	}
}

// Enqueue queues a recount job for every key of the given kind and returns
// how many were queued.
func (q *Queue) Enqueue(ctx context.Context, kind ingest.AggregateKind, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	jobs := make([]Job, 0, len(keys))
	for _, key := range keys {
		jobs = append(jobs, NewJob(kind, key))
	}
	if err := q.push(ctx, jobs, 0); err != nil {
		return 0, err
	}
	q.logger.Info().Str("kind", string(kind)).Int("jobs_queued", len(jobs)).Msg("reconcile jobs queued")
	return len(jobs), nil
}

// Retry puts job back on the queue to become ready after delay.
func (q *Queue) Retry(ctx context.Context, job Job, delay time.Duration) error {
	return q.push(ctx, []Job{job}, delay)
}

func (q *Queue) push(ctx context.Context, jobs []Job, delay time.Duration) error {
	// Batch every job into one round trip.
	pipe := q.client.Pipeline()
	score := float64(time.Now().Add(delay).UnixMicro())

	for _, job := range jobs {
		jobBytes, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("marshaling job %s: %w", job.ID, err)
		}
		pipe.ZAdd(ctx, ReconcileQueueKey, redis.Z{
			Score:  score,
			Member: string(jobBytes),
		})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("queuing reconcile jobs to redis: %w", err)
	}
	return nil
}

// Depth returns the current number of jobs waiting in the queue, including
// retries that are not ready yet.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, ReconcileQueueKey).Result()
}
