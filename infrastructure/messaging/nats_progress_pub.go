package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"vidstream/domain/ports"
	natspkg "vidstream/infrastructure/nats"
)

// NATSProgressPublisher implements ProgressPublisherPort using NATS Pub/Sub
type NATSProgressPublisher struct {
	publisher *natspkg.Publisher
}

func NewNATSProgressPublisher(publisher *natspkg.Publisher) ports.ProgressPublisherPort {
	return &NATSProgressPublisher{
		publisher: publisher,
	}
}

func (p *NATSProgressPublisher) PublishProgress(_ context.Context, progress *ports.ProgressData) error {
	if progress == nil {
		return errors.New("progress cannot be nil")
	}
	if progress.VideoID == "" {
		return errors.New("video_id is required")
	}

	data, err := encodeProgress(*progress)
	if err != nil {
		return err
	}
	return p.publisher.PublishProgress(progress.VideoID, data)
}

// encodeProgress is the progress.{video_id} payload read by NATSProgressSubscriber
func encodeProgress(progress ports.ProgressData) ([]byte, error) {
	if progress.Timestamp.IsZero() {
		progress.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(&progress)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal progress: %w", err)
	}
	return data, nil
}

// NoopProgressPublisher is used when the queue driver has no pub/sub side
type NoopProgressPublisher struct{}

func (NoopProgressPublisher) PublishProgress(context.Context, *ports.ProgressData) error {
	return nil
}
