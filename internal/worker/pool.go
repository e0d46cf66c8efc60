package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Priya8975/showing-webhooks/internal/ingest"
	"github.com/Priya8975/showing-webhooks/internal/metrics"
)

// Reconciler recounts one aggregate; *ingest.Service implements it.
type Reconciler interface {
	Reconcile(ctx context.Context, kind ingest.AggregateKind, key string) (ingest.ReconcileResult, error)
}

// Requeuer puts a failed job back on the queue.
type Requeuer interface {
	Retry(ctx context.Context, job Job, delay time.Duration) error
}

// Pool manages a fixed number of worker goroutines that process reconcile jobs.
type Pool struct {
	numWorkers int
	jobs       chan Job
	reconciler Reconciler
	requeuer   Requeuer
	logger     zerolog.Logger
	wg         sync.WaitGroup
	backoff    func(attempt int) time.Duration
}

func NewPool(numWorkers int, reconciler Reconciler, requeuer Requeuer, logger zerolog.Logger) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &Pool{
		numWorkers: numWorkers,
		jobs:       make(chan Job, numWorkers*2),
		reconciler: reconciler,
		requeuer:   requeuer,
		logger:     logger.With().Str("component", "worker_pool").Logger(),
		backoff:    retryBackoff,
	}
}

// retryBackoff grows quadratically: 1s, 4s, 9s, ...
func retryBackoff(attempt int) time.Duration {
	return time.Duration(attempt*attempt) * time.Second
}

// Start launches all worker goroutines. They read from the jobs channel
// until it is closed or the context is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.logger.Info().Int("num_workers", p.numWorkers).Msg("worker pool started")
}

// Submit hands a job to the workers. It reports false when ctx ended first.
func (p *Pool) Submit(ctx context.Context, job Job) bool {
	select {
	case p.jobs <- job:
		return true
	case <-ctx.Done():
		return false
	}
}

// Stop closes the jobs channel and waits for all workers to finish, which
// includes returning any buffered jobs to the queue. The dispatcher must have
// stopped submitting before Stop is called.
func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
	p.logger.Info().Msg("worker pool stopped")
}

// worker runs jobs until Stop closes the channel. Jobs still buffered after
// ctx ends are returned to the queue instead of being run.
func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for job := range p.jobs {
		if ctx.Err() != nil {
			p.release(ctx, job)
			continue
		}
		p.process(ctx, id, job)
	}
}

// release puts a claimed job back unchanged so the next process picks it up.
func (p *Pool) release(ctx context.Context, job Job) {
	if err := p.requeuer.Retry(context.WithoutCancel(ctx), job, 0); err != nil {
		p.logger.Error().Err(err).Str("job_id", job.ID).Msg("failed to return job to queue")
		return
	}
	p.logger.Debug().Str("job_id", job.ID).Msg("job returned to queue on shutdown")
}

func (p *Pool) process(ctx context.Context, workerID int, job Job) {
	log := p.logger.With().
		Int("worker_id", workerID).
		Str("job_id", job.ID).
		Str("kind", string(job.Kind)).
		Str("key", job.Key).
		Int("attempt", job.Attempt).
		Logger()

	res, err := p.reconciler.Reconcile(ctx, job.Kind, job.Key)
	if err != nil && ctx.Err() != nil {
		// Interrupted by shutdown; not counted as an attempt.
		p.release(ctx, job)
		return
	}
	if err != nil {
		if job.Attempt >= job.MaxAttempts {
			metrics.ReconcileJobs.WithLabelValues(string(job.Kind), "failed").Inc()
			log.Error().Err(err).Msg("reconcile job exhausted retries")
			return
		}
		delay := p.backoff(job.Attempt)
		job.Attempt++
		if rerr := p.requeuer.Retry(ctx, job, delay); rerr != nil {
			metrics.ReconcileJobs.WithLabelValues(string(job.Kind), "failed").Inc()
			log.Error().Err(rerr).AnErr("reconcile_error", err).Msg("failed to requeue reconcile job")
			return
		}
		metrics.ReconcileJobs.WithLabelValues(string(job.Kind), "retry").Inc()
		log.Warn().Err(err).Dur("retry_in", delay).Msg("reconcile job failed, retrying")
		return
	}

	result := "unchanged"
	switch {
	case !res.Found:
		result = "missing"
	case res.Changed:
		result = "changed"
	}
	metrics.ReconcileJobs.WithLabelValues(string(job.Kind), result).Inc()
	log.Debug().Str("result", result).Int("total_showings", res.Total).Msg("reconcile job done")
}
