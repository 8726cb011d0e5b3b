package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"vidstream/domain/ports"
	natspkg "vidstream/infrastructure/nats"
	"vidstream/pkg/logger"
)

type NATSJobConsumerConfig struct {
	Concurrency     int
	AckWait         time.Duration // must exceed the transcode timeout
	MaxDeliver      int
	NakDelay        time.Duration
	Heartbeat       time.Duration // InProgress interval, 0 = AckWait/3
	ShutdownTimeout time.Duration
}

// NATSJobConsumer pulls jobs from the durable MEDIA_WORKER consumer
type NATSJobConsumer struct {
	client *natspkg.Client
	config NATSJobConsumerConfig

	consumeCtx jetstream.ConsumeContext
	jobCtx     context.Context
	cancelJobs context.CancelFunc

	sem     chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool
}

func NewNATSJobConsumer(client *natspkg.Client, cfg NATSJobConsumerConfig) ports.JobConsumerPort {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.AckWait <= 0 {
		cfg.AckWait = 45 * time.Minute
	}
	if cfg.MaxDeliver <= 0 {
		cfg.MaxDeliver = 3
	}
	if cfg.NakDelay <= 0 {
		cfg.NakDelay = 30 * time.Second
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = cfg.AckWait / 3
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	return &NATSJobConsumer{
		client: client,
		config: cfg,
		sem:    make(chan struct{}, cfg.Concurrency),
	}
}

func (c *NATSJobConsumer) Start(ctx context.Context, handler ports.JobHandler) error {
	if handler == nil {
		return errors.New("handler not set")
	}
	if c.running.Load() {
		return nil
	}

	consumer, err := c.client.Stream().CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          natspkg.ConsumerName,
		Durable:       natspkg.ConsumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       c.config.AckWait,
		MaxDeliver:    c.config.MaxDeliver,
		MaxAckPending: c.config.Concurrency,
		FilterSubject: natspkg.SubjectJobs,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	// jobs outlive ctx so a shutdown signal does not abort a transcode midway
	c.jobCtx, c.cancelJobs = context.WithCancel(context.WithoutCancel(ctx))

	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		c.sem <- struct{}{}
		c.wg.Add(1)
		go func() {
			defer func() {
				<-c.sem
				c.wg.Done()
			}()
			c.processMessage(handler, msg)
		}()
	}, jetstream.PullMaxMessages(c.config.Concurrency))
	if err != nil {
		c.cancelJobs()
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	c.consumeCtx = consumeCtx
	c.running.Store(true)

	logger.Info("NATS job consumer started",
		"stream", natspkg.StreamName,
		"consumer", natspkg.ConsumerName,
		"concurrency", c.config.Concurrency,
		"ack_wait", c.config.AckWait.String(),
		"max_deliver", c.config.MaxDeliver,
	)
	return nil
}

func (c *NATSJobConsumer) processMessage(handler ports.JobHandler, msg jetstream.Msg) {
	ctx := c.jobCtx
	attempt := uint64(1)
	if meta, err := msg.Metadata(); err == nil {
		attempt = meta.NumDelivered
	}

	stop := c.keepAlive(msg)
	outcome := dispatch(ctx, "nats", msg.Data(), handler)
	stop()

	var err error
	switch outcome {
	case OutcomeAck:
		err = msg.Ack()
	case OutcomeDiscard:
		err = msg.Term()
	default:
		if attempt >= uint64(c.config.MaxDeliver) {
			logger.ErrorContext(ctx, "Job exhausted redeliveries", "attempts", attempt)
		}
		err = msg.NakWithDelay(c.config.NakDelay)
	}
	if err != nil {
		logger.WarnContext(ctx, "Failed to settle message", "outcome", outcome.String(), "error", err)
	}
}

// keepAlive extends the ack deadline while the handler runs
func (c *NATSJobConsumer) keepAlive(msg jetstream.Msg) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(c.config.Heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := msg.InProgress(); err != nil {
					logger.Warn("Failed to extend ack deadline", "error", err)
				}
			}
		}
	}()
	return func() { close(done) }
}

func (c *NATSJobConsumer) Stop() error {
	if !c.running.Swap(false) {
		return nil
	}
	c.consumeCtx.Stop()

	if !waitTimeout(&c.wg, c.config.ShutdownTimeout) {
		logger.Warn("In-flight jobs did not finish, cancelling", "timeout", c.config.ShutdownTimeout.String())
		c.cancelJobs()
		c.wg.Wait()
	}
	c.cancelJobs()

	logger.Info("NATS job consumer stopped")
	return nil
}

func (c *NATSJobConsumer) IsRunning() bool {
	return c.running.Load()
}

func waitTimeout(wg *sync.WaitGroup, timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
