package serviceimpl

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"vidstream/domain/models"
	"vidstream/domain/ports"
	"vidstream/domain/repositories"
	"vidstream/domain/services"
	"vidstream/pkg/logger"
	"vidstream/pkg/metrics"
	"vidstream/pkg/scheduler"
)

const snapshotRecorderJob = "view_snapshot_recorder"

type SnapshotRecorderConfig struct {
	Interval  string
	BatchSize int
	Retention time.Duration
	LockTTL   time.Duration
}

type SnapshotRecorderServiceImpl struct {
	videoRepo    repositories.VideoRepository
	snapshotRepo repositories.ViewSnapshotRepository
	locker       ports.LockerPort
	scheduler    scheduler.EventScheduler
	config       SnapshotRecorderConfig
	now          func() time.Time
}

func NewSnapshotRecorderService(
	videoRepo repositories.VideoRepository,
	snapshotRepo repositories.ViewSnapshotRepository,
	locker ports.LockerPort,
	eventScheduler scheduler.EventScheduler,
	config SnapshotRecorderConfig,
) services.SnapshotRecorderService {
	if config.Interval == "" {
		config.Interval = "@every 15m"
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.Retention <= 0 {
		config.Retention = 7 * 24 * time.Hour
	}
	if config.LockTTL <= 0 {
		config.LockTTL = 10 * time.Minute
	}

	return &SnapshotRecorderServiceImpl{
		videoRepo:    videoRepo,
		snapshotRepo: snapshotRepo,
		locker:       locker,
		scheduler:    eventScheduler,
		config:       config,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *SnapshotRecorderServiceImpl) RegisterJob() error {
	return s.scheduler.AddJob(snapshotRecorderJob, s.config.Interval, func() {
		ctx := context.Background()
		_, err := runExclusive(ctx, s.locker, snapshotRecorderJob, s.config.LockTTL, func(ctx context.Context) error {
			_, err := s.RunOnce(ctx)
			return err
		})
		if err != nil {
			logger.ErrorContext(ctx, "View snapshot run failed", "error", err)
		}
	})
}

// RunOnce samples the view counter of every ready video with one shared
// timestamp, then prunes snapshots past the retention horizon.
func (s *SnapshotRecorderServiceImpl) RunOnce(ctx context.Context) (*services.SnapshotRunSummary, error) {
	start := time.Now()
	defer func() {
		metrics.TrendingRunDuration.WithLabelValues(snapshotRecorderJob).Observe(time.Since(start).Seconds())
	}()

	now := s.now()
	summary := &services.SnapshotRunSummary{}

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

		snapshots := make([]*models.ViewSnapshot, 0, len(batch))
		for _, video := range batch {
			snapshots = append(snapshots, &models.ViewSnapshot{
				VideoID:   video.ID,
				Views:     video.Views,
				Timestamp: now,
			})
		}
		if err := s.snapshotRepo.CreateBatch(ctx, snapshots); err != nil {
			return summary, fmt.Errorf("failed to record snapshots: %w", err)
		}
		summary.Recorded += len(snapshots)
		metrics.SnapshotsRecorded.Add(float64(len(snapshots)))

		if len(batch) < s.config.BatchSize {
			break
		}
		after = batch[len(batch)-1].ID
	}

	pruned, err := s.snapshotRepo.DeleteOlderThan(ctx, now.Add(-s.config.Retention))
	if err != nil {
		return summary, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	summary.Pruned = pruned
	metrics.SnapshotsPruned.Add(float64(pruned))

	logger.InfoContext(ctx, "View snapshots recorded", "recorded", summary.Recorded, "pruned", summary.Pruned)
	return summary, nil
}
