// Package media wraps the ffmpeg toolchain for transcoding and
// subtitle muxing.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// CodecError is the uniform failure type for every codec-tool
// operation.
type CodecError struct {
	Op     string // transcode-audio, transcode-video, extract-audio, burn-subtitles
	Detail string
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("codec %s failed: %s", e.Op, e.Detail)
}

// videoTier holds the encoding parameters for one quality label.
type videoTier struct {
	size    string
	bitrate string
}

// videoTiers maps quality labels onto fixed encoding parameters.
// Unknown labels fall back to the 720p tier.
var videoTiers = map[string]videoTier{
	"1080p": {size: "1920x1080", bitrate: "4000k"},
	"720p":  {size: "1280x720", bitrate: "2000k"},
	"480p":  {size: "854x480", bitrate: "1000k"},
	"360p":  {size: "640x360", bitrate: "600k"},
}

// Processor runs ffmpeg as a subprocess, one invocation per operation.
type Processor struct {
	ffmpegPath string
	timeout    time.Duration
}

// NewProcessor creates a Processor. An empty path means "ffmpeg" is
// resolved from PATH.
func NewProcessor(ffmpegPath string, timeout time.Duration) *Processor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	return &Processor{ffmpegPath: ffmpegPath, timeout: timeout}
}

func (p *Processor) run(ctx context.Context, op string, args []string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return &CodecError{Op: op, Detail: "timed out"}
		}
		detail := lastStderrLine(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return &CodecError{Op: op, Detail: detail}
	}
	return nil
}

// lastStderrLine keeps errors readable: ffmpeg prints its banner and
// progress to stderr, the actual failure is on the last line.
func lastStderrLine(out string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}

// TranscodeAudio converts any input into a 320k mp3.
func (p *Processor) TranscodeAudio(ctx context.Context, inputPath, outputPath string) error {
	args := []string{
		"-i", inputPath,
		"-vn",
		"-acodec", "libmp3lame",
		"-b:a", "320k",
		"-f", "mp3",
		"-y", outputPath,
	}
	return p.run(ctx, "transcode-audio", args)
}

// TranscodeVideo re-encodes the input into an mp4 at the tier matching
// the quality label.
func (p *Processor) TranscodeVideo(ctx context.Context, inputPath, outputPath, quality string) error {
	tier, ok := videoTiers[quality]
	if !ok {
		tier = videoTiers["720p"]
	}
	args := []string{
		"-i", inputPath,
		"-c:v", "libx264",
		"-c:a", "aac",
		"-b:v", tier.bitrate,
		"-s", tier.size,
		"-f", "mp4",
		"-y", outputPath,
	}
	return p.run(ctx, "transcode-video", args)
}

// ExtractAudio pulls the audio track into a pcm wav, the input format
// expected by the transcription API.
func (p *Processor) ExtractAudio(ctx context.Context, inputPath, outputPath string) error {
	args := []string{
		"-i", inputPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-f", "wav",
		"-y", outputPath,
	}
	return p.run(ctx, "extract-audio", args)
}

// BurnSubtitles muxes a subtitle file into the video as a soft
// mov_text track. Video and audio streams are copied, not re-encoded.
func (p *Processor) BurnSubtitles(ctx context.Context, videoPath, subtitlePath, outputPath string) error {
	args := []string{
		"-i", videoPath,
		"-i", subtitlePath,
		"-c:v", "copy",
		"-c:a", "copy",
		"-c:s", "mov_text",
		"-map", "0:v:0",
		"-map", "0:a:0",
		"-map", "1:s:0",
		"-y", outputPath,
	}
	return p.run(ctx, "burn-subtitles", args)
}

// Check verifies the ffmpeg binary is installed and executable.
func (p *Processor) Check() error {
	if err := exec.Command(p.ffmpegPath, "-version").Run(); err != nil {
		return fmt.Errorf("ffmpeg not found or not executable: %w", err)
	}
	return nil
}

// SizeOf returns the size of the file at path, or 0 when the file
// cannot be stat'd. It never fails.
func SizeOf(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// TierFor exposes the parameters used for a quality label, mostly for
// logging.
func TierFor(quality string) (size, bitrate string) {
	tier, ok := videoTiers[quality]
	if !ok {
		tier = videoTiers["720p"]
	}
	return tier.size, tier.bitrate
}
