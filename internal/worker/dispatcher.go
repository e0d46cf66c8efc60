package worker

import (
	"context"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Dispatcher continuously polls the Redis reconcile queue and sends jobs
// to the worker pool.
type Dispatcher struct {
	redisClient  *redis.Client
	pool         *Pool
	logger       zerolog.Logger
	pollInterval time.Duration
	batchSize    int64
}

func NewDispatcher(redisClient *redis.Client, pool *Pool, pollInterval time.Duration, logger zerolog.Logger) *Dispatcher {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Dispatcher{
		redisClient:  redisClient,
		pool:         pool,
		logger:       logger.With().Str("component", "dispatcher").Logger(),
		pollInterval: pollInterval,
		batchSize:    10,
	}
}

// Start begins the polling loop. It runs until the context is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info().Dur("poll_interval", d.pollInterval).Msg("dispatcher started")

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("dispatcher stopping")
			return
		case <-ticker.C:
			d.poll(ctx)
		}
	}
}

// poll claims a batch of ready jobs and hands them to the workers.
func (d *Dispatcher) poll(ctx context.Context) int {
	now := float64(time.Now().UnixMicro())

	results, err := d.redisClient.ZRangeByScoreWithScores(ctx, ReconcileQueueKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   formatFloat(now),
		Count: d.batchSize,
	}).Result()
	if err != nil {
		if ctx.Err() == nil {
			d.logger.Error().Err(err).Msg("failed to poll reconcile queue")
		}
		return 0
	}

	dispatched := 0
	for _, z := range results {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}

		// ZRem returns 0 when another dispatcher already claimed the job.
		removed, err := d.redisClient.ZRem(ctx, ReconcileQueueKey, member).Result()
		if err != nil {
			d.logger.Error().Err(err).Msg("failed to remove job from queue")
			continue
		}
		if removed == 0 {
			continue
		}

		var job Job
		if err := json.Unmarshal([]byte(member), &job); err != nil {
			d.logger.Error().Err(err).Str("member", member).Msg("discarding undecodable job")
			continue
		}

		if !d.pool.Submit(ctx, job) {
			// Shutting down: put the claimed job back untouched.
			if err := d.redisClient.ZAdd(context.WithoutCancel(ctx), ReconcileQueueKey, redis.Z{Score: z.Score, Member: member}).Err(); err != nil {
				d.logger.Error().Err(err).Str("job_id", job.ID).Msg("failed to return job to queue")
			}
			return dispatched
		}
		dispatched++
	}
	return dispatched
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
