package serviceimpl

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"vidstream/domain/services"
	"vidstream/pkg/logger"
	"vidstream/pkg/scheduler"
	"vidstream/pkg/utils"
)

const storageCleanupJob = "storage_cleanup"

type StorageCleanupConfig struct {
	TempPath    string        // worker scratch space
	CleanupCron string        // default "0 3 * * *"
	MaxAge      time.Duration // entries untouched for longer are removed
}

// StorageCleanupService removes work dirs a crashed worker never cleaned up
type StorageCleanupService struct {
	config    StorageCleanupConfig
	scheduler scheduler.EventScheduler
	now       func() time.Time
}

var _ services.StorageService = (*StorageCleanupService)(nil)

func NewStorageCleanupService(config StorageCleanupConfig, eventScheduler scheduler.EventScheduler) *StorageCleanupService {
	if config.CleanupCron == "" {
		config.CleanupCron = "0 3 * * *"
	}
	if config.MaxAge == 0 {
		config.MaxAge = 24 * time.Hour
	}

	return &StorageCleanupService{
		config:    config,
		scheduler: eventScheduler,
		now:       time.Now,
	}
}

func (s *StorageCleanupService) RegisterCleanupJob() error {
	return s.scheduler.AddJob(storageCleanupJob, s.config.CleanupCron, func() {
		ctx := context.Background()
		if _, err := s.RunCleanup(ctx); err != nil {
			logger.ErrorContext(ctx, "Storage cleanup failed", "error", err)
		}
	})
}

// RunCleanup removes top-level entries of the temp dir whose newest file is
// older than MaxAge. A live job keeps touching its dir, so it is never
// removed mid-run.
func (s *StorageCleanupService) RunCleanup(ctx context.Context) (*services.CleanupSummary, error) {
	summary := &services.CleanupSummary{}
	if s.config.TempPath == "" {
		return summary, nil
	}

	entries, err := os.ReadDir(s.config.TempPath)
	if os.IsNotExist(err) {
		return summary, nil
	}
	if err != nil {
		return summary, err
	}

	cutoff := s.now().Add(-s.config.MaxAge)
	for _, entry := range entries {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}

		path := filepath.Join(s.config.TempPath, entry.Name())
		newest, size, files := scanEntry(path)
		if !newest.Before(cutoff) {
			continue
		}

		if err := os.RemoveAll(path); err != nil {
			logger.WarnContext(ctx, "Failed to remove stale temp entry", "path", path, "error", err)
			continue
		}
		summary.FilesRemoved += files
		summary.BytesFreed += size
		logger.DebugContext(ctx, "Removed stale temp entry", "path", path)
	}

	logger.InfoContext(ctx, "Storage cleanup completed",
		"files_removed", summary.FilesRemoved,
		"freed", utils.FormatBytes(uint64(summary.BytesFreed)),
	)
	return summary, nil
}

// scanEntry returns the newest modification time, total size and file count below path
func scanEntry(path string) (time.Time, int64, int) {
	var newest time.Time
	var size int64
	var files int

	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
		if !d.IsDir() {
			size += info.Size()
			files++
		}
		return nil
	})
	return newest, size, files
}

func (s *StorageCleanupService) GetStorageStats(ctx context.Context) (*services.StorageStats, error) {
	info, err := utils.GetDiskInfo(s.config.TempPath)
	if err != nil {
		return nil, err
	}

	var tempSize int64
	if s.config.TempPath != "" {
		if size, err := utils.DirectorySize(s.config.TempPath); err == nil {
			tempSize = size
		} else if !os.IsNotExist(err) {
			logger.WarnContext(ctx, "Failed to size temp dir", "error", err)
		}
	}

	return &services.StorageStats{
		DiskTotal:       info.Total,
		DiskFree:        info.Free,
		DiskUsed:        info.Used,
		DiskUsedPercent: info.UsedPercent,
		TempSize:        tempSize,
	}, nil
}
