package serviceimpl

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"vidstream/domain/models"
	"vidstream/domain/ports"
	"vidstream/domain/repositories"
	"vidstream/domain/services"
	"vidstream/pkg/logger"
	"vidstream/pkg/metrics"
	"vidstream/pkg/ranking"
	"vidstream/pkg/scheduler"
)

const trendingCalculatorJob = "trending_calculator"

type TrendingCalculatorConfig struct {
	Interval  string // gocron expression
	BatchSize int
	LockTTL   time.Duration
}

type TrendingCalculatorServiceImpl struct {
	videoRepo    repositories.VideoRepository
	snapshotRepo repositories.ViewSnapshotRepository
	locker       ports.LockerPort
	scheduler    scheduler.EventScheduler
	config       TrendingCalculatorConfig
	now          func() time.Time
}

func NewTrendingCalculatorService(
	videoRepo repositories.VideoRepository,
	snapshotRepo repositories.ViewSnapshotRepository,
	locker ports.LockerPort,
	eventScheduler scheduler.EventScheduler,
	config TrendingCalculatorConfig,
) services.TrendingCalculatorService {
	if config.Interval == "" {
		config.Interval = "@every 15m"
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.LockTTL <= 0 {
		config.LockTTL = 10 * time.Minute
	}

	return &TrendingCalculatorServiceImpl{
		videoRepo:    videoRepo,
		snapshotRepo: snapshotRepo,
		locker:       locker,
		scheduler:    eventScheduler,
		config:       config,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *TrendingCalculatorServiceImpl) RegisterJob() error {
	return s.scheduler.AddJob(trendingCalculatorJob, s.config.Interval, func() {
		ctx := context.Background()
		_, err := runExclusive(ctx, s.locker, trendingCalculatorJob, s.config.LockTTL, func(ctx context.Context) error {
			_, err := s.RunOnce(ctx)
			return err
		})
		if err != nil {
			logger.ErrorContext(ctx, "Trending calculation failed", "error", err)
		}
	})
}

// RunOnce scores every ready video. Batches run one after another; the
// videos inside a batch are scored concurrently and a failing video only
// costs its own score.
func (s *TrendingCalculatorServiceImpl) RunOnce(ctx context.Context) (*services.CalculatorRunSummary, error) {
	start := time.Now()
	now := s.now()
	summary := &services.CalculatorRunSummary{}
	defer func() {
		summary.Duration = time.Since(start)
		metrics.TrendingRunDuration.WithLabelValues(trendingCalculatorJob).Observe(summary.Duration.Seconds())
	}()

	after := uuid.Nil
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		batch, err := s.videoRepo.ListReadyBatch(ctx, after, s.config.BatchSize)
		if err != nil {
			return summary, fmt.Errorf("failed to list ready videos: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		scored, failed := s.scoreBatch(ctx, batch, now)
		summary.Batches++
		summary.Scored += scored
		summary.Failed += failed

		if len(batch) < s.config.BatchSize {
			break
		}
		after = batch[len(batch)-1].ID
	}

	logger.InfoContext(ctx, "Trending scores updated",
		"batches", summary.Batches,
		"scored", summary.Scored,
		"failed", summary.Failed,
		"duration", time.Since(start),
	)
	return summary, nil
}

func (s *TrendingCalculatorServiceImpl) scoreBatch(ctx context.Context, batch []*models.Video, now time.Time) (int, int) {
	var scored, failed atomic.Int64
	var wg sync.WaitGroup

	for _, video := range batch {
		wg.Add(1)
		go func(video *models.Video) {
			defer wg.Done()
			if err := s.scoreVideo(ctx, video, now); err != nil {
				failed.Add(1)
				metrics.TrendingVideosScored.WithLabelValues("failed").Inc()
				logger.WarnContext(ctx, "Failed to score video", "video_id", video.ID, "error", err)
				return
			}
			scored.Add(1)
			metrics.TrendingVideosScored.WithLabelValues("scored").Inc()
		}(video)
	}

	wg.Wait()
	return int(scored.Load()), int(failed.Load())
}

func (s *TrendingCalculatorServiceImpl) scoreVideo(ctx context.Context, video *models.Video, now time.Time) error {
	snapshots, err := s.snapshotRepo.GetRecent(ctx, video.ID, ranking.MaxSnapshots)
	if err != nil {
		return fmt.Errorf("snapshots: %w", err)
	}
	comments, err := s.videoRepo.CountComments(ctx, video.ID)
	if err != nil {
		return fmt.Errorf("comments: %w", err)
	}

	samples := make([]ranking.Sample, 0, len(snapshots))
	for _, snap := range snapshots {
		samples = append(samples, ranking.Sample{Views: snap.Views, At: snap.Timestamp})
	}

	b := ranking.Score(ranking.Input{
		Views:       video.Views,
		Comments:    comments,
		PublishedAt: video.PublishedAt,
		CreatedAt:   video.CreatedAt,
		Samples:     samples,
	}, now)

	return s.videoRepo.UpdateTrendingScore(ctx, video.ID, b.Score, now)
}
