package messaging

import (
	"context"

	"vidstream/domain/ports"
	natspkg "vidstream/infrastructure/nats"
)

// NATSJobQueue implements JobQueuePort using NATS JetStream
type NATSJobQueue struct {
	publisher *natspkg.Publisher
	client    *natspkg.Client
}

func NewNATSJobQueue(client *natspkg.Client, publisher *natspkg.Publisher) ports.JobQueuePort {
	return &NATSJobQueue{
		publisher: publisher,
		client:    client,
	}
}

func (q *NATSJobQueue) Enqueue(ctx context.Context, job *ports.ProcessingJob) error {
	data, err := EncodeJob(job)
	if err != nil {
		return err
	}
	return q.publisher.PublishJob(ctx, job.VideoID, data)
}

func (q *NATSJobQueue) GetQueueStatus(ctx context.Context) (*ports.QueueStatus, error) {
	status, err := q.client.GetStatus(ctx)
	if err != nil {
		return nil, err
	}

	return &ports.QueueStatus{
		Driver:      "nats",
		Queue:       status.Stream.Name,
		Pending:     status.Consumer.NumPending,
		AckPending:  uint64(status.Consumer.NumAckPending),
		Redelivered: status.Consumer.Redelivered,
	}, nil
}
