package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"vidstream/domain/ports"
	"vidstream/pkg/logger"
	"vidstream/pkg/metrics"
)

// Outcome is what a driver does with a delivery after the handler returns
type Outcome int

const (
	OutcomeAck     Outcome = iota // remove from queue
	OutcomeRetry                  // redeliver later
	OutcomeDiscard                // remove without retry
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAck:
		return "ack"
	case OutcomeRetry:
		return "retry"
	case OutcomeDiscard:
		return "discard"
	}
	return "unknown"
}

// Classify maps a handler error onto a queue action. Malformed payloads and
// jobs whose result is already stored on the video are never redelivered.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeAck
	case errors.Is(err, ports.ErrInvalidJob), errors.Is(err, ports.ErrJobSettled):
		return OutcomeDiscard
	default:
		return OutcomeRetry
	}
}

func EncodeJob(job *ports.ProcessingJob) ([]byte, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}
	return data, nil
}

func DecodeJob(data []byte) (*ports.ProcessingJob, error) {
	var job ports.ProcessingJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, errors.Join(ports.ErrInvalidJob, err)
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return &job, nil
}

// dispatch decodes one delivery, runs the handler and records the result
func dispatch(ctx context.Context, driver string, data []byte, handler ports.JobHandler) Outcome {
	job, err := DecodeJob(data)
	if err != nil {
		logger.ErrorContext(ctx, "Discarding malformed job", "driver", driver, "error", err)
		metrics.JobsTotal.WithLabelValues(driver, OutcomeDiscard.String()).Inc()
		return OutcomeDiscard
	}

	ctx = logger.ContextWithVideoID(ctx, job.VideoID)
	metrics.JobsInFlight.Inc()
	started := time.Now()

	err = runHandler(ctx, handler, job)

	metrics.JobsInFlight.Dec()
	metrics.JobDuration.Observe(time.Since(started).Seconds())

	outcome := Classify(err)
	metrics.JobsTotal.WithLabelValues(driver, outcome.String()).Inc()

	switch outcome {
	case OutcomeAck:
		logger.InfoContext(ctx, "Job completed", "driver", driver, "duration", time.Since(started).String())
	case OutcomeDiscard:
		logger.WarnContext(ctx, "Job settled without retry", "driver", driver, "error", err)
	default:
		logger.ErrorContext(ctx, "Job failed, will be redelivered", "driver", driver, "error", err)
	}
	return outcome
}

// runHandler turns a handler panic into a retryable error
func runHandler(ctx context.Context, handler ports.JobHandler, job *ports.ProcessingJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job handler panicked: %v", r)
		}
	}()
	return handler(ctx, job)
}
