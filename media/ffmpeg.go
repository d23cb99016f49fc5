// Package media shells out to ffmpeg for the local codec work the
// pipeline stages need: pulling the audio track out of a video and
// cutting a video into slices.
package media

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/sliceflow/pipeline/tasks"
)

const (
	// Transcription engines expect 16 kHz mono PCM.
	audioSampleRate = 16000
	audioChannels   = 1
)

// FFmpeg runs ffmpeg and ffprobe from PATH.
type FFmpeg struct {
	binary      string
	probeBinary string
	logger      logrus.FieldLogger
}

func NewFFmpeg(logger logrus.FieldLogger) *FFmpeg {
	return &FFmpeg{binary: "ffmpeg", probeBinary: "ffprobe", logger: logger}
}

// ExtractAudio decodes the audio track of videoPath into a WAV file at
// destPath and probes its duration.
func (f *FFmpeg) ExtractAudio(ctx context.Context, videoPath, destPath string) (*tasks.ExtractStats, error) {
	args := []string{
		"-y", "-i", videoPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(audioSampleRate),
		"-ac", strconv.Itoa(audioChannels),
		destPath,
	}
	if err := f.run(ctx, f.binary, args); err != nil {
		return nil, err
	}

	duration, err := f.probeDuration(ctx, destPath)
	if err != nil {
		f.logger.WithError(err).WithField("path", destPath).Warn("media: could not probe audio duration")
		duration = 0
	}
	return &tasks.ExtractStats{
		DurationSeconds: duration,
		SampleRate:      audioSampleRate,
		Channels:        audioChannels,
	}, nil
}

// Slice cuts videoPath into the requested ranges without re-encoding.
// Each cut lands in scratchDir named after its sanitized title.
func (f *FFmpeg) Slice(ctx context.Context, videoPath, scratchDir string, ranges []tasks.SliceRange) ([]tasks.SliceFile, error) {
	files := make([]tasks.SliceFile, 0, len(ranges))
	for i, r := range ranges {
		out := filepath.Join(scratchDir, fmt.Sprintf("%03d_%s%s", i, sanitizeTitle(r.Title), filepath.Ext(videoPath)))
		args := []string{
			"-y",
			"-ss", ffmpegTimestamp(r.Start),
			"-to", ffmpegTimestamp(r.End),
			"-i", videoPath,
			"-c", "copy",
			out,
		}
		if err := f.run(ctx, f.binary, args); err != nil {
			return nil, fmt.Errorf("media: slice %q: %w", r.Title, err)
		}
		files = append(files, tasks.SliceFile{Title: r.Title, Path: out})
	}
	return files, nil
}

func (f *FFmpeg) run(ctx context.Context, binary string, args []string) error {
	cmd := exec.CommandContext(ctx, binary, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("media: %s: %w: %s", binary, err, outputTail(out))
	}
	return nil
}

func (f *FFmpeg) probeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, f.probeBinary,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("media: %s: %w", f.probeBinary, err)
	}
	return parseDuration(string(out))
}

func parseDuration(raw string) (float64, error) {
	d, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("media: parse duration %q: %w", strings.TrimSpace(raw), err)
	}
	return d, nil
}

// ffmpegTimestamp converts a subtitle-style HH:MM:SS,mmm timestamp to
// the HH:MM:SS.mmm form ffmpeg accepts. Timestamps already in ffmpeg
// form pass through unchanged.
func ffmpegTimestamp(ts string) string {
	return strings.Replace(ts, ",", ".", 1)
}

// sanitizeTitle reduces a slice title to a safe filename fragment.
func sanitizeTitle(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	s := strings.Trim(b.String(), "_")
	if s == "" {
		return "slice"
	}
	return s
}

// outputTail keeps the last part of tool output for error messages.
func outputTail(out []byte) string {
	const max = 512
	s := strings.TrimSpace(string(out))
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max:]
}
