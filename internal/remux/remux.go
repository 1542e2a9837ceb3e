package remux

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"reencode/internal/logging"
	"reencode/internal/services"
)

var commandContext = exec.CommandContext

// Status describes what happened to one source file.
type Status int

const (
	StatusConverted Status = iota + 1
	StatusSkipped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusConverted:
		return "converted"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result reports one source file.
type Result struct {
	Input  string
	Output string
	Status Status
	Err    error
}

// Options controls a directory pass.
type Options struct {
	Recursive bool
	Keep      bool
}

// Remuxer rewraps Matroska files as MP4 without re-encoding.
type Remuxer struct {
	ffmpeg string
	logger *slog.Logger
}

// New returns a Remuxer for the given ffmpeg binary.
func New(ffmpegBinary string, logger *slog.Logger) *Remuxer {
	if strings.TrimSpace(ffmpegBinary) == "" {
		ffmpegBinary = "ffmpeg"
	}
	return &Remuxer{ffmpeg: ffmpegBinary, logger: logging.NewComponentLogger(logger, "remux")}
}

// BuildArgs returns the ffmpeg arguments for one mkv to mp4 conversion.
// Text subtitles are converted to mov_text; ffmpeg never overwrites.
func BuildArgs(input, output string) []string {
	return []string{"-hide_banner", "-n", "-i", input, "-map", "0", "-codec", "copy", "-codec:s", "mov_text", output}
}

// OutputFor maps a source path to its mp4 sibling.
func OutputFor(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + ".mp4"
}

// File converts one source. An existing output is a skip, not an error.
func (r *Remuxer) File(ctx context.Context, input string, keep bool) Result {
	output := OutputFor(input)
	res := Result{Input: input, Output: output}
	if _, err := os.Lstat(output); err == nil {
		r.logger.Info("output exists, skipping", logging.String("input", input), logging.String("output", output))
		res.Status = StatusSkipped
		return res
	}

	cmd := commandContext(ctx, r.ffmpeg, BuildArgs(input, output)...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		res.Status = StatusFailed
		res.Err = services.Wrap(services.ErrExternalTool, "remux", "ffmpeg", input, errors.Join(err, errors.New(tail(stderr.String()))))
		logging.WarnWithContext(r.logger, "remux failed", "remux_failed",
			logging.String("input", input),
			logging.Error(res.Err),
			logging.String(logging.FieldImpact, "source left in place"),
		)
		return res
	}
	res.Status = StatusConverted
	r.logger.Info("remuxed", logging.String("input", input), logging.String("output", output))

	if !keep {
		if err := os.Remove(input); err != nil {
			logging.WarnWithContext(r.logger, "could not delete remux source", "remux_source_delete_failed",
				logging.String("input", input),
				logging.Error(err),
			)
		}
	}
	return res
}

// Dir converts every .mkv under root in lexical order. Per-file failures are
// reported in the results; only an unreadable root or cancellation return an
// error.
func (r *Remuxer) Dir(ctx context.Context, root string, opts Options) ([]Result, error) {
	sources, err := Sources(root, opts.Recursive)
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(sources))
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, r.File(ctx, src, opts.Keep))
	}
	return results, ctx.Err()
}

// Sources lists .mkv files (case-insensitive) under root, sorted.
func Sources(root string, recursive bool) ([]string, error) {
	var sources []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if d.IsDir() {
			if path != root && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && strings.EqualFold(filepath.Ext(path), ".mkv") {
			sources = append(sources, path)
		}
		return nil
	})
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "remux", "walk", root, err)
	}
	slices.Sort(sources)
	return sources, nil
}

func tail(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
