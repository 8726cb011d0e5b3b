package nats

import (
	"context"
	"fmt"

	"vidstream/pkg/logger"
)

// Publisher publishes processing jobs to JetStream
type Publisher struct {
	client *Client
}

func NewPublisher(client *Client) *Publisher {
	return &Publisher{
		client: client,
	}
}

// PublishJob stores an encoded job in the stream. It returns once the
// server has persisted the message.
func (p *Publisher) PublishJob(ctx context.Context, videoID string, data []byte) error {
	ack, err := p.client.js.Publish(ctx, SubjectJobs, data)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to publish processing job",
			"video_id", videoID,
			"error", err,
		)
		return fmt.Errorf("failed to publish job: %w", err)
	}

	logger.InfoContext(ctx, "Processing job published to JetStream",
		"video_id", videoID,
		"stream", ack.Stream,
		"sequence", ack.Sequence,
	)
	return nil
}

// PublishProgress is fire-and-forget core NATS, subject progress.{video_id}
func (p *Publisher) PublishProgress(videoID string, data []byte) error {
	return p.client.conn.Publish(fmt.Sprintf("%s.%s", SubjectProgress, videoID), data)
}
