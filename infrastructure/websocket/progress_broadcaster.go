package websocket

import (
	"context"
	"sync"

	"vidstream/domain/ports"
	"vidstream/pkg/logger"
)

const MessageTypeProgress = "video_progress"

// ProgressBroadcaster forwards worker progress from the message bus to the
// websocket clients watching that video
type ProgressBroadcaster struct {
	progressSub ports.ProgressSubscriberPort
	hub         *Hub
	running     bool
	runningMu   sync.Mutex
	cancelCtx   context.CancelFunc
}

func NewProgressBroadcaster(progressSub ports.ProgressSubscriberPort, hub *Hub) *ProgressBroadcaster {
	return &ProgressBroadcaster{
		progressSub: progressSub,
		hub:         hub,
	}
}

func (pb *ProgressBroadcaster) Start() error {
	pb.runningMu.Lock()
	defer pb.runningMu.Unlock()

	if pb.running {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := pb.progressSub.Subscribe(ctx, pb.handleProgressUpdate); err != nil {
		cancel()
		return err
	}
	pb.cancelCtx = cancel
	pb.running = true

	logger.Info("Progress broadcaster started")
	return nil
}

func (pb *ProgressBroadcaster) handleProgressUpdate(update *ports.ProgressData) {
	if update == nil || update.VideoID == "" {
		logger.Warn("Invalid progress data received")
		return
	}

	pb.hub.Broadcast(update.VideoID, MessageTypeProgress, update)
}

func (pb *ProgressBroadcaster) Stop() {
	pb.runningMu.Lock()
	defer pb.runningMu.Unlock()

	if !pb.running {
		return
	}
	pb.running = false

	if pb.cancelCtx != nil {
		pb.cancelCtx()
	}
	if err := pb.progressSub.Unsubscribe(); err != nil {
		logger.Warn("Failed to unsubscribe progress", "error", err)
	}

	logger.Info("Progress broadcaster stopped")
}

func (pb *ProgressBroadcaster) IsRunning() bool {
	pb.runningMu.Lock()
	defer pb.runningMu.Unlock()
	return pb.running
}
