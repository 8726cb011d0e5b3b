package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"vidstream/pkg/logger"
)

// Client wraps NATS connection with JetStream context
type Client struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	stream jetstream.Stream
}

type ClientConfig struct {
	URL    string        // nats://localhost:4222
	Name   string        // connection name shown in nats server monitoring
	MaxAge time.Duration // how long an unconsumed job is kept
}

func NewClient(cfg ClientConfig) (*Client, error) {
	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	}
	if cfg.Name != "" {
		opts = append(opts, nats.Name(cfg.Name))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	client := &Client{
		conn: nc,
		js:   js,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.setupStream(ctx, cfg.MaxAge); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to setup stream: %w", err)
	}

	logger.Info("NATS client initialized", "url", cfg.URL, "stream", StreamName)
	return client, nil
}

func (c *Client) setupStream(ctx context.Context, maxAge time.Duration) error {
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}

	stream, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectJobs},
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.WorkQueuePolicy, // removed on Ack
		MaxAge:      maxAge,
		Replicas:    1,
		Description: "Media processing job queue",
	})
	if err != nil {
		return fmt.Errorf("failed to create/update processing stream: %w", err)
	}
	c.stream = stream

	logger.Info("JetStream stream ready", "name", StreamName)
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// Getters
// ═══════════════════════════════════════════════════════════════════════════════

func (c *Client) Conn() *nats.Conn {
	return c.conn
}

func (c *Client) JetStream() jetstream.JetStream {
	return c.js
}

func (c *Client) Stream() jetstream.Stream {
	return c.stream
}

// ═══════════════════════════════════════════════════════════════════════════════
// JetStream Status
// ═══════════════════════════════════════════════════════════════════════════════

func (c *Client) GetStatus(ctx context.Context) (*JetStreamStatus, error) {
	streamInfo, err := c.stream.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream info: %w", err)
	}

	// consumer may not exist yet if no worker has started
	var consumerInfo ConsumerInfo
	consumer, err := c.stream.Consumer(ctx, ConsumerName)
	if err == nil {
		ci, err := consumer.Info(ctx)
		if err == nil {
			consumerInfo = ConsumerInfo{
				Name:          ci.Name,
				NumPending:    ci.NumPending,
				NumAckPending: ci.NumAckPending,
				Redelivered:   uint64(ci.NumRedelivered),
			}
		}
	}

	return &JetStreamStatus{
		Stream: StreamInfo{
			Name:     streamInfo.Config.Name,
			Messages: streamInfo.State.Msgs,
			Bytes:    streamInfo.State.Bytes,
			FirstSeq: streamInfo.State.FirstSeq,
			LastSeq:  streamInfo.State.LastSeq,
		},
		Consumer: consumerInfo,
	}, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// Lifecycle
// ═══════════════════════════════════════════════════════════════════════════════

// Close drains pending publishes before closing
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	if err := c.conn.Drain(); err != nil {
		c.conn.Close()
		return err
	}
	logger.Info("NATS connection closed")
	return nil
}

func (c *Client) Ping() error {
	return c.conn.FlushTimeout(5 * time.Second)
}

func (c *Client) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}
