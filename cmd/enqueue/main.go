// Command enqueue publishes a processing job for a pending video, e.g. to
// replay an upload whose original message was lost.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"vidstream/domain/ports"
	"vidstream/pkg/di"
	"vidstream/pkg/logger"
)

func main() {
	videoID := flag.String("video", "", "Video ID (uuid) to process")
	source := flag.String("source", "", "Source location of the uploaded file")
	force := flag.Bool("force", false, "Enqueue even if the video is no longer pending")
	flag.Parse()

	id, err := uuid.Parse(*videoID)
	if err != nil || *source == "" {
		fmt.Fprintln(os.Stderr, "usage: enqueue -video <uuid> -source <path> [-force]")
		os.Exit(2)
	}

	container := di.NewContainer(di.RoleEnqueue)
	if err := container.Initialize(); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize container:", err)
		os.Exit(1)
	}
	defer container.Cleanup()

	if err := run(id, *source, *force, container); err != nil {
		logger.Error("Enqueue failed", "video_id", id.String(), "error", err)
		container.Cleanup()
		os.Exit(1)
	}
}

func run(id uuid.UUID, source string, force bool, container *di.Container) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	video, err := container.VideoRepository.GetByID(ctx, id)
	if err != nil {
		return err
	}
	// the worker drops jobs for videos that already left pending
	if !video.IsPending() && !force {
		return fmt.Errorf("video is %s, not pending (use -force to send anyway)", video.Status)
	}

	job := ports.NewProcessingJob(video.ID.String(), video.UserID.String(), source)
	if err := container.JobQueue.Enqueue(ctx, job); err != nil {
		return err
	}

	logger.Info("Job enqueued",
		"video_id", job.VideoID,
		"source", job.SourceLocation,
		"driver", container.GetConfig().Queue.Driver,
	)
	return nil
}
