package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/moliya/internal/jobs"
)

// ErrQueueClosed is returned after Stop or Close.
var ErrQueueClosed = errors.New("queue is closed")

// Queue is an in-memory job publisher and consumer backed by a buffered
// channel. It is safe for concurrent use.
type Queue struct {
	jobChan   chan *jobs.AdviceJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	workers   int
	backoff   time.Duration
	logger    zerolog.Logger
	closed    bool
}

// DefaultRetryBackoff is the delay before the first retry; the n-th retry
// waits n times as long.
const DefaultRetryBackoff = time.Second

// NewQueue creates a queue. bufferSize determines how many jobs can wait
// before PublishAdvice blocks; store may be nil.
func NewQueue(bufferSize, workers int, store jobs.JobStore, logger zerolog.Logger) *Queue {
	if workers < 1 {
		workers = 1
	}
	return &Queue{
		jobChan:   make(chan *jobs.AdviceJob, bufferSize),
		closeChan: make(chan struct{}),
		store:     store,
		workers:   workers,
		backoff:   DefaultRetryBackoff,
		logger:    logger,
	}
}

// SetRetryBackoff changes the base retry delay. Call it before Start.
func (q *Queue) SetRetryBackoff(d time.Duration) {
	if d > 0 {
		q.backoff = d
	}
}

// PublishAdvice enqueues job, honouring ctx cancellation.
func (q *Queue) PublishAdvice(ctx context.Context, job *jobs.AdviceJob) error {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return ErrQueueClosed
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	job.TransactionCount = len(job.Transactions)

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
	}

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return ErrQueueClosed
	}
}

// Start launches the worker goroutines.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}
			q.processJob(ctx, job, handler)
		}
	}
}

// processJob executes a single job, retrying with linear backoff while
// RetryCount < MaxRetries.
func (q *Queue) processJob(ctx context.Context, job *jobs.AdviceJob, handler jobs.JobHandler) {
	job.Status = jobs.JobStatusRunning
	now := time.Now()
	job.StartedAt = &now
	q.save(ctx, job)

	err := handler(ctx, job)

	completedAt := time.Now()
	job.CompletedAt = &completedAt

	switch {
	case err == nil:
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
	case errors.Is(err, jobs.ErrStale):
		job.Status = jobs.JobStatusStale
	case job.RetryCount < job.MaxRetries && !errors.Is(err, jobs.ErrPermanent):
		job.Error = err.Error()
		job.RetryCount++
		job.Status = jobs.JobStatusRetrying

		q.logger.Warn().Err(err).Str("job_id", job.JobID).Int("retry", job.RetryCount).Msg("job failed, retrying")

		backoff := time.Duration(job.RetryCount) * q.backoff
		time.AfterFunc(backoff, func() {
			job.Status = jobs.JobStatusPending
			job.StartedAt = nil
			job.CompletedAt = nil
			if err := q.PublishAdvice(ctx, job); err != nil {
				q.logger.Warn().Err(err).Str("job_id", job.JobID).Msg("failed to re-enqueue job")
				q.markFailed(job.JobID, err)
			}
		})
	default:
		job.Error = err.Error()
		job.Status = jobs.JobStatusFailed
		q.logger.Error().Err(err).Str("job_id", job.JobID).Uint64("seq", job.Seq).Msg("job failed")
	}

	q.save(ctx, job)
}

func (q *Queue) save(ctx context.Context, job *jobs.AdviceJob) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(ctx, job); err != nil {
		q.logger.Warn().Err(err).Str("job_id", job.JobID).Msg("failed to save job state")
	}
}

// markFailed records a job that could not be re-enqueued.
func (q *Queue) markFailed(jobID string, err error) {
	if q.store == nil {
		return
	}
	if err := q.store.UpdateJobStatus(context.Background(), jobID, jobs.JobStatusFailed, err.Error()); err != nil {
		q.logger.Warn().Err(err).Str("job_id", jobID).Msg("failed to mark job failed")
	}
}

// Stop closes the queue and waits for in-flight jobs, or for ctx to expire.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the queue without a deadline.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
