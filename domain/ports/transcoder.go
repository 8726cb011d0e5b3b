package ports

import (
	"context"
	"errors"
)

// ErrTranscodeTimeout is returned when the external process outlives its deadline
var ErrTranscodeTimeout = errors.New("transcode timed out")

// VideoInfo - stream metadata of a source file
type VideoInfo struct {
	Duration float64 // seconds
	Width    int
	Height   int
	Codec    string
	Bitrate  int64
	FPS      float64
}

type ThumbnailSpec struct {
	AtSecond float64
	Width    int
	Height   int
}

// HLSSpec - single-rendition, bitrate-constrained segmentation
type HLSSpec struct {
	SegmentSeconds int
	VideoBitrate   string // -b:v
	MaxRate        string // -maxrate
	BufSize        string // -bufsize
	AudioBitrate   string
	Preset         string
}

// HLSResult lists what a successful segmentation left in the output directory
type HLSResult struct {
	ManifestPath string
	SegmentPaths []string // sorted
}

// TranscoderPort wraps an external transcoding process. Every call blocks
// until the process exits or the adapter's deadline fires; on failure no
// partial output is left behind.
type TranscoderPort interface {
	GetVideoInfo(ctx context.Context, inputPath string) (*VideoInfo, error)

	GenerateThumbnail(ctx context.Context, inputPath, outputPath string, spec ThumbnailSpec) error

	SegmentHLS(ctx context.Context, inputPath, outputDir string, spec HLSSpec) (*HLSResult, error)

	IsAvailable() bool
}
