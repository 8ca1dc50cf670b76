package jobs

import (
	"context"
	"errors"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeEnrichTransaction enriches one freshly created transaction.
	JobTypeEnrichTransaction JobType = "enrich_transaction"
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
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// DefaultMaxRetries applies when a published job does not set MaxRetries.
const DefaultMaxRetries = 3

var (
	// ErrQueueClosed is returned when publishing to a stopped queue.
	ErrQueueClosed = errors.New("queue is closed")
	// ErrQueueFull is returned when the queue buffer has no room.
	ErrQueueFull = errors.New("queue is full")
)

// EnrichTransactionJob asks a worker to categorize and score one transaction.
type EnrichTransactionJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	TransactionID string `json:"transaction_id"`
	UserID        string `json:"user_id"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the last attempt failed.
	Error string `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *EnrichTransactionJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *EnrichTransactionJob) GetType() JobType {
	return JobTypeEnrichTransaction
}

// GetStatus implements the Job interface.
func (j *EnrichTransactionJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// PublishEnrichTransaction enqueues an enrichment job without waiting for a worker.
	// It returns ErrQueueFull rather than blocking when the buffer is exhausted.
	PublishEnrichTransaction(ctx context.Context, job *EnrichTransactionJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job.
// It should return an error if the job failed and should be retried.
type JobHandler func(ctx context.Context, job Job) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *EnrichTransactionJob) error

	// GetJob retrieves a job by ID. It returns domain.ErrNotFound for unknown ids.
	GetJob(ctx context.Context, jobID string) (*EnrichTransactionJob, error)

	// ListJobs retrieves jobs newest first with optional filtering.
	ListJobs(ctx context.Context, filter JobFilter) ([]*EnrichTransactionJob, error)
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	UserID        string
	TransactionID string
	Status        JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
