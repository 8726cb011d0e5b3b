package services

import (
	"context"

	"vidstream/domain/ports"
)

// MediaProcessingService turns an uploaded source into a thumbnail and an HLS
// rendition. ProcessJob is safe to call again for the same video: only the
// delivery that claims a pending video does any work.
type MediaProcessingService interface {
	ProcessJob(ctx context.Context, job *ports.ProcessingJob) error
}
