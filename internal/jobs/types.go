package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/moliya/internal/domain"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeRefreshAdvice regenerates the advice text from the ledger head.
	JobTypeRefreshAdvice JobType = "refresh_advice"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusStale indicates the job finished after a newer job was issued; its result was dropped.
	JobStatusStale JobStatus = "stale"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// AdviceJob asks for fresh advice over a window of recent transactions.
type AdviceJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// Seq orders refresh requests. Only the highest issued Seq may publish its result.
	Seq uint64 `json:"seq"`

	// Transactions is the window the advice is computed from, most recent first.
	Transactions []domain.Transaction `json:"-"`

	// TransactionCount is len(Transactions), kept for listings.
	TransactionCount int `json:"transaction_count"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	RetryCount  int        `json:"retry_count"`
	MaxRetries  int        `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

func (j *AdviceJob) GetID() string {
	return j.JobID
}

func (j *AdviceJob) GetType() JobType {
	return JobTypeRefreshAdvice
}

func (j *AdviceJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher enqueues jobs.
type Publisher interface {
	PublishAdvice(ctx context.Context, job *AdviceJob) error
	Close() error
}

// Consumer runs a handler for each enqueued job.
type Consumer interface {
	// Start launches the workers and returns immediately.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// ErrStale is returned by a handler whose job was superseded. The job is
// marked JobStatusStale and never retried.
var ErrStale = errors.New("job superseded by a newer one")

// ErrPermanent marks a handler error that must not be retried.
var ErrPermanent = errors.New("permanent job failure")

// JobHandler processes a job. A returned error marks the job failed or retrying.
type JobHandler func(ctx context.Context, job Job) error

// JobStore keeps job history for inspection.
type JobStore interface {
	SaveJob(ctx context.Context, job *AdviceJob) error
	GetJob(ctx context.Context, jobID string) (*AdviceJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*AdviceJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	Status JobStatus
	Limit  int
	Offset int
}
