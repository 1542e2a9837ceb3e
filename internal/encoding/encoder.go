package encoding

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"reencode/internal/config"
	"reencode/internal/logging"
	"reencode/internal/media/ffprobe"
	"reencode/internal/services"
	"reencode/internal/supervisor"
)

// Backend names accepted by encoding.backend.
const (
	BackendFFmpeg = "ffmpeg"
	BackendDrapto = "drapto"
)

// Encoder turns one input into one output.
type Encoder interface {
	Encode(ctx context.Context, req Request) error
}

// Runner runs a child process job to completion.
type Runner interface {
	Run(ctx context.Context, job supervisor.Job) (supervisor.Outcome, error)
}

// FrameCounter estimates the number of video frames in path.
type FrameCounter func(ctx context.Context, path string) (int64, bool)

// FFprobeFrames counts frames with ffprobe and the frame estimation table.
func FFprobeFrames(binary string) FrameCounter {
	return func(ctx context.Context, path string) (int64, bool) {
		result, err := ffprobe.Inspect(ctx, binary, path)
		if err != nil {
			return 0, false
		}
		return result.TotalFrames()
	}
}

// FFmpeg encodes with an ffmpeg child under the supervisor's watchdog.
type FFmpeg struct {
	binary   string
	runner   Runner
	frames   FrameCounter
	logger   *slog.Logger
	terminal io.Writer
}

// FFmpegOption configures an FFmpeg encoder.
type FFmpegOption func(*FFmpeg)

// WithFrameCounter sets the total-frame source used for progress percent.
func WithFrameCounter(frames FrameCounter) FFmpegOption {
	return func(f *FFmpeg) {
		f.frames = frames
	}
}

// WithTerminal sets where the progress bar is drawn. The bar is used only
// when w is a terminal; otherwise progress goes to the log.
func WithTerminal(w io.Writer) FFmpegOption {
	return func(f *FFmpeg) {
		f.terminal = w
	}
}

// WithLogger sets the encoder logger.
func WithLogger(logger *slog.Logger) FFmpegOption {
	return func(f *FFmpeg) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFFmpeg constructs the ffmpeg backend.
func NewFFmpeg(binary string, runner Runner, opts ...FFmpegOption) *FFmpeg {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	f := &FFmpeg{binary: binary, runner: runner, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = logging.NewComponentLogger(f.logger, "encoder")
	return f
}

// Encode runs ffmpeg for req and blocks until it finishes, stalls, or ctx is
// cancelled.
func (f *FFmpeg) Encode(ctx context.Context, req Request) error {
	if f.runner == nil {
		return services.Wrap(services.ErrConfiguration, "encoding", "ffmpeg", "supervisor not configured", nil)
	}
	logger := logging.WithContext(ctx, f.logger)
	args := BuildArgs(req)
	job := supervisor.Job{
		Binary:  f.binary,
		Args:    args,
		Input:   req.Input,
		Output:  req.Output,
		LogPath: req.LogPath,
	}

	if req.Progress {
		var total int64
		if f.frames != nil {
			if n, ok := f.frames(ctx, req.Input); ok {
				total = n
			}
		}
		sink := f.progressSink(total, filepath.Base(req.Input), logger)
		defer sink.Close()
		job.Progress = NewProgressParser(total, sink.Update)
	}

	logger.Info("encoding",
		logging.String("input", req.Input),
		logging.String("output", req.Output),
		logging.String("video_encoder", req.VideoEncoder),
		logging.String("audio_codec", req.AudioCodec),
		logging.String("log_path", req.LogPath),
	)
	logger.Debug("ffmpeg command", logging.String("command", commandLine(f.binary, args)))

	outcome, err := f.runner.Run(ctx, job)
	logger.Debug("encoder finished",
		logging.String("state", outcome.State.String()),
		logging.Int("exit_code", outcome.ExitCode),
		logging.Int("samples", outcome.Samples),
		logging.Duration("elapsed", outcome.Duration),
	)
	return err
}

func (f *FFmpeg) progressSink(total int64, label string, logger *slog.Logger) progressSink {
	if f.terminal != nil && isTerminal(f.terminal) {
		return newBarSink(f.terminal, total, label)
	}
	return newLogSink(logger)
}

func commandLine(binary string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, binary)
	for _, arg := range args {
		if arg == "" || strings.ContainsAny(arg, " \t'\"()*") {
			arg = "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
		}
		parts = append(parts, arg)
	}
	return strings.Join(parts, " ")
}

// New selects the configured backend. The ffmpeg backend runs under sup.
func New(cfg *config.Config, sup Runner, logger *slog.Logger) (Encoder, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "encoding", "new", "config required", nil)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Encoding.Backend)) {
	case "", BackendFFmpeg:
		opts := []FFmpegOption{WithLogger(logger), WithTerminal(os.Stderr)}
		if cfg.Encoding.Progress {
			opts = append(opts, WithFrameCounter(FFprobeFrames(cfg.FFprobeBinary())))
		}
		return NewFFmpeg(cfg.FFmpegBinary(), sup, opts...), nil
	case BackendDrapto:
		return NewDrapto(WithDraptoLogger(logger)), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "encoding", "new",
			fmt.Sprintf("unknown backend %q", cfg.Encoding.Backend), nil)
	}
}

var _ Encoder = (*FFmpeg)(nil)
