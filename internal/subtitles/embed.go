package subtitles

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"reencode/internal/logging"
	"reencode/internal/services"
)

type commandRunner func(ctx context.Context, name string, args ...string) error

// Request describes one embed operation.
type Request struct {
	Video     string
	SRT       string
	Output    string // empty selects DefaultOutput(Video)
	Overwrite bool
}

// Result reports a finished embed.
type Result struct {
	Output string
	Cues   int
}

// Embedder muxes an SRT file into an MP4 as a mov_text track.
type Embedder struct {
	ffmpeg string
	logger *slog.Logger
	run    commandRunner
}

// NewEmbedder constructs an embedder for the given ffmpeg binary.
func NewEmbedder(ffmpegBinary string, logger *slog.Logger) *Embedder {
	if strings.TrimSpace(ffmpegBinary) == "" {
		ffmpegBinary = "ffmpeg"
	}
	return &Embedder{
		ffmpeg: ffmpegBinary,
		logger: logging.NewComponentLogger(logger, "subtitles"),
		run:    defaultCommandRunner,
	}
}

// WithCommandRunner allows injecting a custom command runner for tests.
func (e *Embedder) WithCommandRunner(r commandRunner) {
	if e != nil && r != nil {
		e.run = r
	}
}

// DefaultOutput returns <dir>/<stem>-embedded-sub.mp4.
func DefaultOutput(video string) string {
	stem := strings.TrimSuffix(filepath.Base(video), filepath.Ext(video))
	return filepath.Join(filepath.Dir(video), stem+"-embedded-sub.mp4")
}

// BuildArgs returns the ffmpeg arguments for embedding srt into video.
func BuildArgs(video, srt, output string) []string {
	return []string{
		"-hide_banner", "-y",
		"-i", video,
		"-sub_charenc", "UTF-8",
		"-f", "srt",
		"-i", srt,
		"-map", "0",
		"-map", "1:0",
		"-c", "copy",
		"-c:s", "mov_text",
		output,
	}
}

// Embed validates the subtitle file, runs ffmpeg into a temporary sibling of
// the output and renames it into place on success.
func (e *Embedder) Embed(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Video) == "" || strings.TrimSpace(req.SRT) == "" {
		return Result{}, services.Wrap(services.ErrValidation, "subtitles", "embed", "video and subtitle paths are required", nil)
	}
	if _, err := os.Stat(req.Video); err != nil {
		return Result{}, services.Wrap(services.ErrNotFound, "subtitles", "embed", "video", err)
	}
	if issues := Validate(req.SRT); len(issues) > 0 {
		return Result{}, services.Wrap(services.ErrValidation, "subtitles", "embed",
			fmt.Sprintf("%s: %s", req.SRT, strings.Join(issues, ", ")), nil)
	}
	stats, err := Inspect(req.SRT)
	if err != nil {
		return Result{}, err
	}

	output := req.Output
	if strings.TrimSpace(output) == "" {
		output = DefaultOutput(req.Video)
	}
	if !req.Overwrite {
		if _, err := os.Lstat(output); err == nil {
			return Result{}, services.Wrap(services.ErrValidation, "subtitles", "embed",
				fmt.Sprintf("output %s exists", output), nil)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return Result{}, err
		}
	}

	tmpPath := filepath.Join(filepath.Dir(output), ".embed-"+filepath.Base(output))
	e.logger.Debug("executing ffmpeg",
		logging.String("video", req.Video),
		logging.String("srt", req.SRT),
		logging.Int("cues", stats.Cues),
	)
	if err := e.run(ctx, e.ffmpeg, BuildArgs(req.Video, req.SRT, tmpPath)...); err != nil {
		_ = os.Remove(tmpPath)
		return Result{}, services.Wrap(services.ErrExternalTool, "subtitles", "ffmpeg", req.Video, err)
	}
	if _, err := os.Stat(tmpPath); err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "subtitles", "ffmpeg", "no output produced", err)
	}
	if err := os.Rename(tmpPath, output); err != nil {
		_ = os.Remove(tmpPath)
		return Result{}, fmt.Errorf("move embedded output: %w", err)
	}

	e.logger.Info("subtitles embedded",
		logging.String(logging.FieldEventType, "subtitle_embed_complete"),
		logging.String("output", output),
		logging.Int("cues", stats.Cues),
	)
	return Result{Output: output, Cues: stats.Cues}, nil
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
