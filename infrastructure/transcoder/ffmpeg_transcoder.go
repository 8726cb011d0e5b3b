package transcoder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"vidstream/domain/ports"
	"vidstream/pkg/logger"
)

const (
	ManifestName   = "playlist.m3u8"
	segmentPattern = "segment_%03d.ts"
)

type FFmpegConfig struct {
	FFmpegPath  string        // path to ffmpeg binary
	FFprobePath string        // path to ffprobe binary
	Timeout     time.Duration // per invocation, 0 = 30m
}

// runFunc executes a binary and returns its stdout and stderr
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, []byte, error)

type FFmpegTranscoder struct {
	ffmpegPath  string
	ffprobePath string
	timeout     time.Duration
	run         runFunc
}

func NewFFmpegTranscoder(config FFmpegConfig) (ports.TranscoderPort, error) {
	t := newFFmpegTranscoder(config, execRun)

	if !t.IsAvailable() {
		return nil, fmt.Errorf("ffmpeg not available at path: %s", t.ffmpegPath)
	}

	return t, nil
}

func newFFmpegTranscoder(config FFmpegConfig, run runFunc) *FFmpegTranscoder {
	ffmpegPath := config.FFmpegPath
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	ffprobePath := config.FFprobePath
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}

	return &FFmpegTranscoder{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		timeout:     timeout,
		run:         run,
	}
}

func execRun(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	// a killed ffmpeg can leave children holding the pipes
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

func (t *FFmpegTranscoder) IsAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, _, err := t.run(ctx, t.ffmpegPath, "-version")
	return err == nil
}

// exec runs one invocation under the adapter deadline
func (t *FFmpegTranscoder) exec(ctx context.Context, bin string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	started := time.Now()
	stdout, stderr, err := t.run(ctx, bin, args...)
	if err == nil {
		return stdout, nil
	}

	name := filepath.Base(bin)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		logger.WarnContext(ctx, "Transcoder process killed at deadline", "binary", name, "timeout", t.timeout.String())
		return nil, fmt.Errorf("%s exceeded %s: %w", name, t.timeout, ports.ErrTranscodeTimeout)
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%s interrupted: %w", name, ctx.Err())
	}

	logger.ErrorContext(ctx, "Transcoder process failed",
		"binary", name,
		"elapsed", time.Since(started).String(),
		"error", err,
	)
	if msg := lastLines(stderr, 3); msg != "" {
		return nil, fmt.Errorf("%s failed: %w: %s", name, err, msg)
	}
	return nil, fmt.Errorf("%s failed: %w", name, err)
}

// ═══════════════════════════════════════════════════════════════════════════════
// Video info
// ═══════════════════════════════════════════════════════════════════════════════

func (t *FFmpegTranscoder) GetVideoInfo(ctx context.Context, inputPath string) (*ports.VideoInfo, error) {
	output, err := t.exec(ctx, t.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath,
	)
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseVideoInfo(output)
}

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

type ffprobeStream struct {
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	RFrameRate string `json:"r_frame_rate"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
	BitRate  string `json:"bit_rate"`
}

func parseVideoInfo(output []byte) (*ports.VideoInfo, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(output, &out); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &ports.VideoInfo{}
	if d, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil {
		info.Duration = d
	}
	if b, err := strconv.ParseInt(out.Format.BitRate, 10, 64); err == nil {
		info.Bitrate = b
	}

	hasVideo := false
	for _, stream := range out.Streams {
		if stream.CodecType == "video" && !hasVideo {
			hasVideo = true
			info.Width = stream.Width
			info.Height = stream.Height
			info.Codec = stream.CodecName
			info.FPS = parseFrameRate(stream.RFrameRate)
		}
	}
	if !hasVideo {
		return nil, errors.New("no video stream found")
	}

	return info, nil
}

// parseFrameRate converts "30000/1001" to 29.97
func parseFrameRate(rate string) float64 {
	parts := strings.Split(rate, "/")
	if len(parts) != 2 {
		return 0
	}

	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}

	return num / den
}

// ═══════════════════════════════════════════════════════════════════════════════
// Thumbnail
// ═══════════════════════════════════════════════════════════════════════════════

func (t *FFmpegTranscoder) GenerateThumbnail(ctx context.Context, inputPath, outputPath string, spec ports.ThumbnailSpec) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create thumbnail directory: %w", err)
	}

	_, err := t.exec(ctx, t.ffmpegPath, thumbnailArgs(inputPath, outputPath, spec)...)
	if err == nil {
		err = requireFile(outputPath)
	}
	if err != nil {
		os.Remove(outputPath)
		return fmt.Errorf("failed to generate thumbnail: %w", err)
	}

	return nil
}

func thumbnailArgs(inputPath, outputPath string, spec ports.ThumbnailSpec) []string {
	// letterbox into the exact target size
	scale := fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2",
		spec.Width, spec.Height, spec.Width, spec.Height)

	return []string{
		"-ss", strconv.FormatFloat(spec.AtSecond, 'f', -1, 64),
		"-i", inputPath,
		"-frames:v", "1",
		"-vf", scale,
		"-q:v", "2",
		"-y",
		outputPath,
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// HLS segmentation
// ═══════════════════════════════════════════════════════════════════════════════

func (t *FFmpegTranscoder) SegmentHLS(ctx context.Context, inputPath, outputDir string, spec ports.HLSSpec) (*ports.HLSResult, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result, err := t.segment(ctx, inputPath, outputDir, spec)
	if err != nil {
		// never leave a half-written rendition behind
		os.RemoveAll(outputDir)
		return nil, err
	}

	logger.InfoContext(ctx, "HLS segmentation complete",
		"output_dir", outputDir,
		"segments", len(result.SegmentPaths),
	)
	return result, nil
}

func (t *FFmpegTranscoder) segment(ctx context.Context, inputPath, outputDir string, spec ports.HLSSpec) (*ports.HLSResult, error) {
	if _, err := t.exec(ctx, t.ffmpegPath, hlsArgs(inputPath, outputDir, spec)...); err != nil {
		return nil, fmt.Errorf("failed to segment video: %w", err)
	}

	manifest := filepath.Join(outputDir, ManifestName)
	if err := requireFile(manifest); err != nil {
		return nil, fmt.Errorf("manifest missing after segmentation: %w", err)
	}

	segments, err := filepath.Glob(filepath.Join(outputDir, "*.ts"))
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, errors.New("segmentation produced no segments")
	}
	sort.Strings(segments)

	return &ports.HLSResult{
		ManifestPath: manifest,
		SegmentPaths: segments,
	}, nil
}

func hlsArgs(inputPath, outputDir string, spec ports.HLSSpec) []string {
	segmentSeconds := spec.SegmentSeconds
	if segmentSeconds <= 0 {
		segmentSeconds = 6
	}
	preset := spec.Preset
	if preset == "" {
		preset = "veryfast"
	}

	args := []string{
		"-i", inputPath,
		"-c:v", "libx264",
		"-preset", preset,
		"-pix_fmt", "yuv420p",
		// keyframe on every segment boundary
		"-force_key_frames", fmt.Sprintf("expr:gte(t,n_forced*%d)", segmentSeconds),
		"-sc_threshold", "0",
	}
	if spec.VideoBitrate != "" {
		args = append(args, "-b:v", spec.VideoBitrate)
	}
	if spec.MaxRate != "" {
		args = append(args, "-maxrate", spec.MaxRate)
	}
	if spec.BufSize != "" {
		args = append(args, "-bufsize", spec.BufSize)
	}

	audioBitrate := spec.AudioBitrate
	if audioBitrate == "" {
		audioBitrate = "128k"
	}
	args = append(args,
		"-c:a", "aac",
		"-b:a", audioBitrate,
		"-ac", "2",
		"-f", "hls",
		"-hls_time", strconv.Itoa(segmentSeconds),
		"-hls_list_size", "0",
		"-hls_playlist_type", "vod",
		"-hls_segment_filename", filepath.Join(outputDir, segmentPattern),
		"-y",
		filepath.Join(outputDir, ManifestName),
	)
	return args
}

func requireFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return fmt.Errorf("%s is empty", filepath.Base(path))
	}
	return nil
}

// lastLines keeps the tail of ffmpeg stderr, where the actual error is
func lastLines(b []byte, n int) string {
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, " | "))
}
