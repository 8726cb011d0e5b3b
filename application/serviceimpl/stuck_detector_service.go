package serviceimpl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vidstream/domain/repositories"
	"vidstream/pkg/logger"
	"vidstream/pkg/metrics"
	"vidstream/pkg/scheduler"
)

const stuckDetectorJob = "stuck_detector"

// StuckDetectorConfig - a video is stuck once its heartbeat is older than
// StaleAfter. Must be several heartbeat intervals long.
type StuckDetectorConfig struct {
	Interval   string
	StaleAfter time.Duration
}

// StuckDetectorService fails videos left in processing by a crashed worker.
// Without it such a video would never leave processing: its redelivery
// cannot win the claim.
type StuckDetectorService struct {
	config    StuckDetectorConfig
	videoRepo repositories.VideoRepository
	scheduler scheduler.EventScheduler
	now       func() time.Time
}

func NewStuckDetectorService(
	config StuckDetectorConfig,
	videoRepo repositories.VideoRepository,
	eventScheduler scheduler.EventScheduler,
) *StuckDetectorService {
	if config.Interval == "" {
		config.Interval = "@every 5m"
	}
	if config.StaleAfter == 0 {
		config.StaleAfter = 15 * time.Minute
	}

	return &StuckDetectorService{
		config:    config,
		videoRepo: videoRepo,
		scheduler: eventScheduler,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *StuckDetectorService) RegisterDetectorJob() error {
	return s.scheduler.AddJob(stuckDetectorJob, s.config.Interval, func() {
		ctx := context.Background()
		if _, err := s.RunDetection(ctx); err != nil {
			logger.ErrorContext(ctx, "Stuck detection failed", "error", err)
		}
	})
}

// RunDetection returns how many videos were moved to failed
func (s *StuckDetectorService) RunDetection(ctx context.Context) (int, error) {
	threshold := s.now().Add(-s.config.StaleAfter)

	stuck, err := s.videoRepo.GetStuckProcessing(ctx, threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to get stuck processing videos: %w", err)
	}

	message := fmt.Sprintf("processing timed out: no heartbeat for %s", s.config.StaleAfter)
	count := 0
	for _, video := range stuck {
		logger.WarnContext(ctx, "Detected stuck processing video",
			"video_id", video.ID,
			"processing_started_at", video.ProcessingStartedAt,
			"last_heartbeat", video.ProcessingHeartbeatAt,
		)

		err := s.videoRepo.MarkFailed(ctx, video.ID, message)
		if errors.Is(err, repositories.ErrStatusConflict) {
			// finished between the scan and the write
			continue
		}
		if err != nil {
			logger.ErrorContext(ctx, "Failed to mark video as failed", "video_id", video.ID, "error", err)
			continue
		}
		count++
	}

	if count > 0 {
		metrics.StuckVideosReaped.Add(float64(count))
		logger.InfoContext(ctx, "Stuck detection completed", "marked_failed", count)
	}
	return count, nil
}
