package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/nats-io/nats.go"

	"vidstream/domain/ports"
	natspkg "vidstream/infrastructure/nats"
	"vidstream/pkg/logger"
)

// NATSProgressSubscriber implements ProgressSubscriberPort with one core
// NATS subscription on progress.* shared by every registered handler
type NATSProgressSubscriber struct {
	conn *nats.Conn

	mu       sync.Mutex
	sub      *nats.Subscription
	handlers []ports.ProgressHandler
}

func NewNATSProgressSubscriber(conn *nats.Conn) ports.ProgressSubscriberPort {
	return &NATSProgressSubscriber{conn: conn}
}

func (s *NATSProgressSubscriber) Subscribe(_ context.Context, handler ports.ProgressHandler) error {
	if handler == nil {
		return errors.New("handler not set")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, handler)
	if s.sub != nil {
		return nil
	}

	subject := natspkg.SubjectProgress + ".*"
	sub, err := s.conn.Subscribe(subject, s.handleMessage)
	if err != nil {
		s.handlers = s.handlers[:len(s.handlers)-1]
		return err
	}
	s.sub = sub

	logger.Info("NATS progress subscriber started", "subject", subject)
	return nil
}

func (s *NATSProgressSubscriber) handleMessage(msg *nats.Msg) {
	var progress ports.ProgressData
	if err := json.Unmarshal(msg.Data, &progress); err != nil {
		logger.Error("Failed to parse progress update", "subject", msg.Subject, "error", err)
		return
	}
	if progress.VideoID == "" {
		logger.Warn("Received progress update without video_id", "subject", msg.Subject)
		return
	}

	s.mu.Lock()
	handlers := s.handlers
	s.mu.Unlock()

	// synchronous to keep per-video ordering
	for _, handler := range handlers {
		deliverProgress(handler, progress)
	}

	logger.Debug("Progress update received",
		"video_id", progress.VideoID,
		"status", progress.Status,
		"progress", progress.Progress,
		"handlers_count", len(handlers),
	)
}

// deliverProgress hands each handler its own copy; a panicking handler
// does not stop the others
func deliverProgress(handler ports.ProgressHandler, progress ports.ProgressData) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Progress handler panicked", "video_id", progress.VideoID, "error", r)
		}
	}()
	handler(&progress)
}

func (s *NATSProgressSubscriber) Unsubscribe() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handlers = nil
	if s.sub == nil {
		return nil
	}
	err := s.sub.Unsubscribe()
	s.sub = nil
	if err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		logger.Warn("Failed to unsubscribe", "error", err)
		return err
	}

	logger.Info("NATS progress subscriber stopped")
	return nil
}
