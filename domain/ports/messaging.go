package ports

import (
	"context"
	"errors"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════════
// Job Queue Port - processing jobs produced by the upload path
// ═══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidJob marks a payload that can never succeed, e.g. missing video_id
	ErrInvalidJob = errors.New("invalid processing job")

	// ErrJobSettled wraps a handler error whose outcome has already been
	// persisted on the video row. The queue must not redeliver it.
	ErrJobSettled = errors.New("job settled")
)

// ProcessingJob is the queue message. The JSON shape is the wire contract
// shared by every queue driver.
type ProcessingJob struct {
	VideoID        string    `json:"video_id"`
	OwnerID        string    `json:"owner_id"`
	SourceLocation string    `json:"source_location"`
	CreatedAt      time.Time `json:"created_at"`
}

func NewProcessingJob(videoID, ownerID, sourceLocation string) *ProcessingJob {
	return &ProcessingJob{
		VideoID:        videoID,
		OwnerID:        ownerID,
		SourceLocation: sourceLocation,
		CreatedAt:      time.Now().UTC(),
	}
}

// Validate checks the fields every consumer depends on
func (j *ProcessingJob) Validate() error {
	if j == nil {
		return errors.Join(ErrInvalidJob, errors.New("job cannot be nil"))
	}
	if j.VideoID == "" {
		return errors.Join(ErrInvalidJob, errors.New("video_id is required"))
	}
	if j.SourceLocation == "" {
		return errors.Join(ErrInvalidJob, errors.New("source_location is required"))
	}
	return nil
}

// QueueStatus - snapshot of queue depth
type QueueStatus struct {
	Driver      string `json:"driver"`
	Queue       string `json:"queue"`
	Pending     uint64 `json:"pending"`
	AckPending  uint64 `json:"ackPending"`
	Redelivered uint64 `json:"redelivered"`
}

type JobQueuePort interface {
	// Enqueue durably stores the job and returns without waiting for processing
	Enqueue(ctx context.Context, job *ProcessingJob) error

	GetQueueStatus(ctx context.Context) (*QueueStatus, error)
}

// JobHandler processes one delivery. nil acks the message.
type JobHandler func(ctx context.Context, job *ProcessingJob) error

// JobConsumerPort delivers jobs one at a time per worker slot and removes
// them from the queue only after the handler returns.
type JobConsumerPort interface {
	Start(ctx context.Context, handler JobHandler) error
	Stop() error
	IsRunning() bool
}

// ═══════════════════════════════════════════════════════════════════════════════
// Progress Publisher / Subscriber
// ═══════════════════════════════════════════════════════════════════════════════

type ProgressData struct {
	VideoID   string    `json:"video_id"`
	Status    string    `json:"status"`
	Progress  int       `json:"progress"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ProgressPublisherPort interface {
	PublishProgress(ctx context.Context, progress *ProgressData) error
}

type ProgressHandler func(progress *ProgressData)

type ProgressSubscriberPort interface {
	Subscribe(ctx context.Context, handler ProgressHandler) error
	Unsubscribe() error
}
