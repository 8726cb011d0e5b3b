package serviceimpl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"vidstream/domain/models"
	"vidstream/domain/ports"
	"vidstream/domain/repositories"
	"vidstream/domain/services"
	"vidstream/pkg/logger"
	"vidstream/pkg/metrics"
	"vidstream/pkg/utils"
)

var (
	ErrSourceNotFound   = errors.New("source file not found")
	ErrSourceUnreadable = errors.New("source file unreadable")
)

// Coarse progress checkpoints written to the video row
const (
	ProgressClaimed   = 10
	ProgressThumbnail = 40
	ProgressSegmented = 70
	ProgressUploaded  = 90
	ProgressReady     = 100
)

const maxErrorMessageLength = 1000

type MediaProcessingConfig struct {
	TempPath      string // per-video work dirs are created below
	CleanupSource bool   // remove the uploaded source once the video is ready
	MinFreeBytes  int64  // disk preflight, 0 disables
	Heartbeat     time.Duration
	Thumbnail     ports.ThumbnailSpec
	HLS           ports.HLSSpec
}

type MediaProcessingServiceImpl struct {
	videoRepo  repositories.VideoRepository
	transcoder ports.TranscoderPort
	storage    ports.ObjectStorePort
	progress   ports.ProgressPublisherPort
	config     MediaProcessingConfig

	now        func() time.Time
	checkSpace func(path string, minFree int64) error
}

func NewMediaProcessingService(
	videoRepo repositories.VideoRepository,
	transcoder ports.TranscoderPort,
	storage ports.ObjectStorePort,
	progress ports.ProgressPublisherPort,
	config MediaProcessingConfig,
) services.MediaProcessingService {
	if config.TempPath == "" {
		config.TempPath = filepath.Join(os.TempDir(), "vidstream")
	}
	if config.Heartbeat <= 0 {
		config.Heartbeat = time.Minute
	}
	if config.Thumbnail.Width == 0 || config.Thumbnail.Height == 0 {
		config.Thumbnail.Width, config.Thumbnail.Height = 640, 360
	}

	return &MediaProcessingServiceImpl{
		videoRepo:  videoRepo,
		transcoder: transcoder,
		storage:    storage,
		progress:   progress,
		config:     config,
		now:        func() time.Time { return time.Now().UTC() },
		checkSpace: func(path string, minFree int64) error {
			_, err := utils.EnsureFreeSpace(path, minFree)
			return err
		},
	}
}

// ProcessJob runs one delivery. A nil return means the queue may drop the
// message. Errors wrapping ports.ErrJobSettled have already been written to
// the video row; anything else is worth another delivery.
func (s *MediaProcessingServiceImpl) ProcessJob(ctx context.Context, job *ports.ProcessingJob) error {
	if err := job.Validate(); err != nil {
		return err
	}
	videoID, err := uuid.Parse(job.VideoID)
	if err != nil {
		return errors.Join(ports.ErrInvalidJob, fmt.Errorf("video_id %q: %w", job.VideoID, err))
	}
	ctx = logger.ContextWithVideoID(ctx, job.VideoID)

	// before the claim, so a full disk leaves the video pending for a later delivery
	if s.config.MinFreeBytes > 0 {
		if err := s.checkSpace(s.config.TempPath, s.config.MinFreeBytes); err != nil {
			logger.WarnContext(ctx, "Disk preflight failed, job will be redelivered", "error", err)
			return fmt.Errorf("disk preflight: %w", err)
		}
	}

	claimed, err := s.videoRepo.ClaimForProcessing(ctx, videoID, s.now())
	if err != nil {
		return fmt.Errorf("failed to claim video: %w", err)
	}
	if !claimed {
		return s.skipUnclaimed(ctx, videoID)
	}

	logger.InfoContext(ctx, "Video claimed for processing", "source", job.SourceLocation)
	s.publish(ctx, videoID, models.VideoStatusProcessing, ProgressClaimed, "")

	// keeps the stuck reaper off this video for as long as we own it
	stopHeartbeat := s.startHeartbeat(ctx, videoID)
	defer stopHeartbeat()

	ready, uploaded, err := s.process(ctx, videoID, job.SourceLocation)
	if err != nil {
		return s.fail(ctx, videoID, uploaded, err)
	}

	if err := s.videoRepo.MarkReady(ctx, videoID, ready, s.now()); err != nil {
		return s.fail(ctx, videoID, uploaded, fmt.Errorf("failed to mark ready: %w", err))
	}

	if s.config.CleanupSource {
		if err := os.Remove(job.SourceLocation); err != nil && !os.IsNotExist(err) {
			logger.WarnContext(ctx, "Failed to remove source file", "path", job.SourceLocation, "error", err)
		}
	}

	metrics.VideosProcessed.WithLabelValues(string(models.VideoStatusReady)).Inc()
	s.publish(ctx, videoID, models.VideoStatusReady, ProgressReady, "")
	logger.InfoContext(ctx, "Video ready", "video_url", ready.VideoURL)
	return nil
}

// skipUnclaimed handles a delivery for a video some other delivery already
// owns or finished. Nothing is written.
func (s *MediaProcessingServiceImpl) skipUnclaimed(ctx context.Context, videoID uuid.UUID) error {
	video, err := s.videoRepo.GetByID(ctx, videoID)
	if errors.Is(err, repositories.ErrVideoNotFound) {
		logger.WarnContext(ctx, "Job references unknown video")
		return errors.Join(ports.ErrInvalidJob, err)
	}
	if err != nil {
		return fmt.Errorf("failed to read video after lost claim: %w", err)
	}

	logger.InfoContext(ctx, "Skipping duplicate delivery", "status", video.Status)
	return nil
}

// process produces and uploads every artifact. uploaded lists the object
// keys written so far, also on error.
func (s *MediaProcessingServiceImpl) process(ctx context.Context, videoID uuid.UUID, source string) (repositories.ReadyUpdate, []string, error) {
	var ready repositories.ReadyUpdate
	var uploaded []string

	if err := checkSource(source); err != nil {
		logger.WarnContext(ctx, "Source check failed", "path", source, "error", err)
		return ready, nil, ErrSourceNotFound
	}

	info, err := s.transcoder.GetVideoInfo(ctx, source)
	if err != nil {
		return ready, nil, fmt.Errorf("%w: %v", ErrSourceUnreadable, err)
	}

	workDir := filepath.Join(s.config.TempPath, videoID.String())
	// a crashed earlier attempt may have left files behind
	if err := os.RemoveAll(workDir); err != nil {
		return ready, nil, fmt.Errorf("failed to reset work dir: %w", err)
	}
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return ready, nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			logger.WarnContext(ctx, "Failed to remove work dir", "path", workDir, "error", err)
		}
	}()

	folder := videoFolder(videoID)

	// thumbnail
	thumbSpec := s.config.Thumbnail
	if info.Duration > 0 && info.Duration < thumbSpec.AtSecond {
		thumbSpec.AtSecond = 0
	}
	thumbPath := filepath.Join(workDir, "thumbnail.jpg")
	if err := s.transcoder.GenerateThumbnail(ctx, source, thumbPath, thumbSpec); err != nil {
		return ready, uploaded, err
	}
	thumbKey, err := s.storage.Upload(ctx, thumbPath, ports.UploadOptions{
		Folder:      folder,
		Filename:    "thumbnail.jpg",
		ContentType: "image/jpeg",
	})
	if err != nil {
		return ready, uploaded, fmt.Errorf("failed to upload thumbnail: %w", err)
	}
	uploaded = append(uploaded, thumbKey)
	s.setProgress(ctx, videoID, ProgressThumbnail)

	// segmentation
	result, err := s.transcoder.SegmentHLS(ctx, source, filepath.Join(workDir, "hls"), s.config.HLS)
	if err != nil {
		return ready, uploaded, err
	}
	s.setProgress(ctx, videoID, ProgressSegmented)

	// segments first: the manifest must never reference a missing segment
	hlsFolder := path.Join(folder, "hls")
	for _, segment := range result.SegmentPaths {
		key, err := s.storage.UploadFromPath(ctx, segment, path.Join(hlsFolder, filepath.Base(segment)), "video/mp2t")
		if err != nil {
			return ready, uploaded, fmt.Errorf("failed to upload segment %s: %w", filepath.Base(segment), err)
		}
		uploaded = append(uploaded, key)
	}
	manifestKey, err := s.storage.UploadFromPath(ctx, result.ManifestPath, path.Join(hlsFolder, filepath.Base(result.ManifestPath)), "application/vnd.apple.mpegurl")
	if err != nil {
		return ready, uploaded, fmt.Errorf("failed to upload manifest: %w", err)
	}
	uploaded = append(uploaded, manifestKey)
	s.setProgress(ctx, videoID, ProgressUploaded)

	ready.VideoURL = s.storage.GetPublicURL(manifestKey)
	ready.ThumbnailURL = s.storage.GetPublicURL(thumbKey)
	return ready, uploaded, nil
}

// fail removes what was uploaded, records the failure on the video and
// returns the cause wrapped as settled
func (s *MediaProcessingServiceImpl) fail(ctx context.Context, videoID uuid.UUID, uploaded []string, cause error) error {
	// the job ctx may be the reason we are here
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	for _, key := range uploaded {
		if err := s.storage.Delete(ctx, key); err != nil {
			logger.WarnContext(ctx, "Failed to delete partial artifact", "key", key, "error", err)
		}
	}

	message := failureMessage(cause)
	logger.ErrorContext(ctx, "Video processing failed", "error", cause)

	// failed keeps the last checkpoint, listeners should see the same value
	progress := 0
	if video, err := s.videoRepo.GetByID(ctx, videoID); err == nil {
		progress = video.ProcessingProgress
	}

	err := s.videoRepo.MarkFailed(ctx, videoID, message)
	switch {
	case errors.Is(err, repositories.ErrStatusConflict):
		// the stuck reaper got there first
		logger.WarnContext(ctx, "Video left processing before failure was recorded")
	case err != nil:
		logger.ErrorContext(ctx, "Failed to record processing failure", "error", err)
		return fmt.Errorf("failed to record failure (%v): %w", cause, err)
	}

	metrics.VideosProcessed.WithLabelValues(string(models.VideoStatusFailed)).Inc()
	s.publish(ctx, videoID, models.VideoStatusFailed, progress, message)
	return fmt.Errorf("%w: %w", ports.ErrJobSettled, cause)
}

func (s *MediaProcessingServiceImpl) setProgress(ctx context.Context, videoID uuid.UUID, progress int) {
	if err := s.videoRepo.UpdateProgress(ctx, videoID, progress, s.now()); err != nil {
		logger.WarnContext(ctx, "Failed to update progress", "progress", progress, "error", err)
	}
	s.publish(ctx, videoID, models.VideoStatusProcessing, progress, "")
}

// startHeartbeat refreshes the heartbeat every config.Heartbeat until the
// returned stop is called. Checkpoints alone are too far apart: one ffmpeg
// run or a large upload can take longer than the reaper's threshold.
func (s *MediaProcessingServiceImpl) startHeartbeat(ctx context.Context, videoID uuid.UUID) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.config.Heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.videoRepo.Heartbeat(ctx, videoID, s.now()); err != nil && ctx.Err() == nil {
					logger.WarnContext(ctx, "Failed to write heartbeat", "error", err)
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// publish is best effort, live listeners are optional
func (s *MediaProcessingServiceImpl) publish(ctx context.Context, videoID uuid.UUID, status models.VideoStatus, progress int, errMsg string) {
	if s.progress == nil {
		return
	}
	err := s.progress.PublishProgress(ctx, &ports.ProgressData{
		VideoID:   videoID.String(),
		Status:    string(status),
		Progress:  progress,
		Error:     errMsg,
		Timestamp: s.now(),
	})
	if err != nil {
		logger.DebugContext(ctx, "Failed to publish progress", "error", err)
	}
}

func checkSource(source string) error {
	info, err := os.Stat(source)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", source)
	}
	f, err := os.Open(source)
	if err != nil {
		return err
	}
	return f.Close()
}

func videoFolder(videoID uuid.UUID) string {
	return "videos/" + videoID.String()
}

// failureMessage bounds the stored message in bytes without splitting a
// rune. ffmpeg stderr may carry invalid bytes, postgres text rejects them.
func failureMessage(err error) string {
	msg := strings.ToValidUTF8(err.Error(), "")
	if len(msg) <= maxErrorMessageLength {
		return msg
	}
	cut := maxErrorMessageLength
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}
