package serviceimpl

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"vidstream/domain/dto"
	"vidstream/domain/models"
	"vidstream/domain/ports"
	"vidstream/domain/repositories"
	"vidstream/domain/services"
	"vidstream/pkg/logger"
)

type VideoStatusServiceImpl struct {
	videoRepo repositories.VideoRepository
	queue     ports.JobQueuePort // optional
}

func NewVideoStatusService(videoRepo repositories.VideoRepository, queue ports.JobQueuePort) services.VideoStatusService {
	return &VideoStatusServiceImpl{
		videoRepo: videoRepo,
		queue:     queue,
	}
}

func (s *VideoStatusServiceImpl) GetProcessingStatus(ctx context.Context, videoID uuid.UUID) (*dto.VideoStatusResponse, error) {
	video, err := s.videoRepo.GetByID(ctx, videoID)
	if err != nil {
		return nil, err
	}
	return dto.VideoToStatusResponse(video), nil
}

func (s *VideoStatusServiceImpl) GetStats(ctx context.Context) (*dto.ProcessingStatsResponse, error) {
	stats := &dto.ProcessingStatsResponse{}

	counts := []struct {
		status models.VideoStatus
		dst    *int64
	}{
		{models.VideoStatusPending, &stats.Pending},
		{models.VideoStatusProcessing, &stats.Processing},
		{models.VideoStatusReady, &stats.Ready},
		{models.VideoStatusFailed, &stats.Failed},
	}
	for _, c := range counts {
		n, err := s.videoRepo.CountByStatus(ctx, c.status)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s videos: %w", c.status, err)
		}
		*c.dst = n
	}

	if s.queue != nil {
		qs, err := s.queue.GetQueueStatus(ctx)
		if err != nil {
			// counts are still useful without the broker
			logger.WarnContext(ctx, "Failed to read queue status", "error", err)
		} else {
			stats.Queue = &dto.QueueStatus{
				Driver:      qs.Driver,
				Queue:       qs.Queue,
				Pending:     qs.Pending,
				AckPending:  qs.AckPending,
				Redelivered: qs.Redelivered,
			}
		}
	}

	return stats, nil
}
