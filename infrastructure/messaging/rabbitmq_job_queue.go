package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"vidstream/domain/ports"
	"vidstream/infrastructure/rabbitmq"
	"vidstream/pkg/logger"
)

// RabbitMQJobQueue implements JobQueuePort on a durable quorum queue
type RabbitMQJobQueue struct {
	client *rabbitmq.Client
}

func NewRabbitMQJobQueue(client *rabbitmq.Client) ports.JobQueuePort {
	return &RabbitMQJobQueue{client: client}
}

func (q *RabbitMQJobQueue) Enqueue(ctx context.Context, job *ports.ProcessingJob) error {
	data, err := EncodeJob(job)
	if err != nil {
		return err
	}
	if err := q.client.Publish(ctx, data, job.VideoID); err != nil {
		logger.ErrorContext(ctx, "Failed to publish processing job", "video_id", job.VideoID, "error", err)
		return err
	}

	logger.InfoContext(ctx, "Processing job published to RabbitMQ", "video_id", job.VideoID, "queue", q.client.QueueName())
	return nil
}

func (q *RabbitMQJobQueue) GetQueueStatus(_ context.Context) (*ports.QueueStatus, error) {
	info, err := q.client.Inspect()
	if err != nil {
		return nil, fmt.Errorf("failed to inspect queue: %w", err)
	}
	return &ports.QueueStatus{
		Driver:  "rabbitmq",
		Queue:   info.Name,
		Pending: uint64(info.Messages),
	}, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// Consumer
// ═══════════════════════════════════════════════════════════════════════════════

type RabbitMQJobConsumerConfig struct {
	Concurrency     int
	NakDelay        time.Duration
	ShutdownTimeout time.Duration

	// resubscribe after the broker closes the channel
	ReconnectAttempts int
	ReconnectDelay    time.Duration // doubled per attempt, capped at a minute
}

// consumerChannel is the part of *amqp.Channel the consumer needs
type consumerChannel interface {
	Cancel(consumer string, noWait bool) error
	Close() error
}

type subscription struct {
	ch         consumerChannel
	deliveries <-chan amqp.Delivery
	closed     <-chan *amqp.Error
}

type RabbitMQJobConsumer struct {
	client *rabbitmq.Client
	config RabbitMQJobConsumerConfig

	subscribe func() (*subscription, error)

	mu         sync.Mutex
	ch         consumerChannel
	tag        string
	jobCtx     context.Context
	cancelJobs context.CancelFunc
	loopCtx    context.Context // cancelled by Stop, ends resubscribe backoff
	cancelLoop context.CancelFunc

	sem     chan struct{}
	wg      sync.WaitGroup
	loop    sync.WaitGroup
	running atomic.Bool
}

func NewRabbitMQJobConsumer(client *rabbitmq.Client, cfg RabbitMQJobConsumerConfig) ports.JobConsumerPort {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.NakDelay <= 0 {
		cfg.NakDelay = 30 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.ReconnectAttempts <= 0 {
		cfg.ReconnectAttempts = 5
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	c := &RabbitMQJobConsumer{
		client: client,
		config: cfg,
		tag:    "media-worker",
		sem:    make(chan struct{}, cfg.Concurrency),
	}
	c.subscribe = c.openSubscription
	return c
}

func (c *RabbitMQJobConsumer) openSubscription() (*subscription, error) {
	ch, err := c.client.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open consumer channel: %w", err)
	}
	// broker holds back deliveries beyond our slot count
	if err := ch.Qos(c.config.Concurrency, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to set prefetch: %w", err)
	}

	deliveries, err := ch.Consume(
		c.client.QueueName(),
		c.tag,
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to register consumer: %w", err)
	}

	return &subscription{
		ch:         ch,
		deliveries: deliveries,
		closed:     ch.NotifyClose(make(chan *amqp.Error, 1)),
	}, nil
}

func (c *RabbitMQJobConsumer) Start(ctx context.Context, handler ports.JobHandler) error {
	if handler == nil {
		return errors.New("handler not set")
	}
	if c.running.Load() {
		return nil
	}

	sub, err := c.subscribe()
	if err != nil {
		return err
	}

	c.setChannel(sub.ch)
	c.jobCtx, c.cancelJobs = context.WithCancel(context.WithoutCancel(ctx))
	c.loopCtx, c.cancelLoop = context.WithCancel(context.Background())
	c.running.Store(true)

	c.loop.Add(1)
	go c.consume(handler, sub)

	logger.Info("RabbitMQ job consumer started",
		"queue", c.queueName(),
		"concurrency", c.config.Concurrency,
	)
	return nil
}

// consume runs deliveries until Stop. A channel closed by the broker, e.g.
// on consumer_timeout or a lost connection, is replaced; when that keeps
// failing the consumer reports itself as not running.
func (c *RabbitMQJobConsumer) consume(handler ports.JobHandler, sub *subscription) {
	defer c.loop.Done()

	for {
		for d := range sub.deliveries {
			c.sem <- struct{}{}
			c.wg.Add(1)
			go func(d amqp.Delivery) {
				defer func() {
					<-c.sem
					c.wg.Done()
				}()
				c.processDelivery(handler, d)
			}(d)
		}

		if !c.running.Load() {
			return
		}

		var reason error = errors.New("delivery channel closed")
		select {
		case amqpErr, ok := <-sub.closed:
			if ok && amqpErr != nil {
				reason = amqpErr
			}
		default:
		}
		logger.Warn("RabbitMQ consumer channel closed, resubscribing", "queue", c.queueName(), "reason", reason)
		_ = sub.ch.Close()

		err := retryWithBackoff(c.loopCtx, c.config.ReconnectAttempts, c.config.ReconnectDelay, time.Minute, func() error {
			if !c.running.Load() {
				return errConsumerStopped
			}
			next, err := c.subscribe()
			if err != nil {
				logger.Warn("RabbitMQ resubscribe failed", "error", err)
				return err
			}
			sub = next
			return nil
		})
		if err != nil && (errors.Is(err, errConsumerStopped) || c.loopCtx.Err() != nil) {
			return
		}
		if err != nil {
			logger.Error("RabbitMQ consumer gave up resubscribing", "queue", c.queueName(), "error", err)
			c.running.Store(false)
			return
		}

		c.setChannel(sub.ch)
		// Stop may have swapped running while we were subscribing
		if !c.running.Load() {
			_ = sub.ch.Cancel(c.tag, false)
			_ = sub.ch.Close()
			return
		}
		logger.Info("RabbitMQ consumer resubscribed", "queue", c.queueName())
	}
}

func (c *RabbitMQJobConsumer) setChannel(ch consumerChannel) {
	c.mu.Lock()
	c.ch = ch
	c.mu.Unlock()
}

func (c *RabbitMQJobConsumer) channel() consumerChannel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ch
}

func (c *RabbitMQJobConsumer) queueName() string {
	if c.client == nil {
		return ""
	}
	return c.client.QueueName()
}

func (c *RabbitMQJobConsumer) processDelivery(handler ports.JobHandler, d amqp.Delivery) {
	ctx := c.jobCtx

	var err error
	switch outcome := dispatch(ctx, "rabbitmq", d.Body, handler); outcome {
	case OutcomeAck:
		err = d.Ack(false)
	case OutcomeDiscard:
		err = d.Reject(false)
	default:
		// no per-message delay on a plain queue, hold the slot instead
		select {
		case <-time.After(c.config.NakDelay):
		case <-ctx.Done():
		}
		err = d.Nack(false, true)
	}
	if err != nil {
		logger.WarnContext(ctx, "Failed to settle delivery", "error", err)
	}
}

func (c *RabbitMQJobConsumer) Stop() error {
	if !c.running.Swap(false) {
		return nil
	}

	// stops new deliveries, in-flight ones can still be acked
	c.cancelLoop()
	if err := c.channel().Cancel(c.tag, false); err != nil {
		logger.Warn("Failed to cancel consumer", "error", err)
	}
	c.loop.Wait()

	if !waitTimeout(&c.wg, c.config.ShutdownTimeout) {
		logger.Warn("In-flight jobs did not finish, cancelling", "timeout", c.config.ShutdownTimeout.String())
		c.cancelJobs()
		c.wg.Wait()
	}
	c.cancelJobs()

	logger.Info("RabbitMQ job consumer stopped")
	if err := c.channel().Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		return err
	}
	return nil
}

func (c *RabbitMQJobConsumer) IsRunning() bool {
	return c.running.Load()
}
