package encoding

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	draptolib "github.com/five82/drapto"

	"reencode/internal/fileutil"
	"reencode/internal/logging"
	"reencode/internal/services"
)

// draptoClient encodes input into outputDir, producing <stem>.mkv there.
type draptoClient interface {
	Encode(ctx context.Context, input, outputDir string, rep draptolib.Reporter) error
}

type draptoLibrary struct{}

func (draptoLibrary) Encode(ctx context.Context, input, outputDir string, rep draptolib.Reporter) error {
	encoder, err := draptolib.New(draptolib.WithResponsive())
	if err != nil {
		return err
	}
	_, err = encoder.EncodeWithReporter(ctx, input, outputDir, rep)
	return err
}

// Drapto encodes to AV1 through the drapto library. Drapto supervises its own
// ffmpeg, so the CPU watchdog does not apply.
type Drapto struct {
	client draptoClient
	logger *slog.Logger
}

// DraptoOption configures a Drapto encoder.
type DraptoOption func(*Drapto)

// WithDraptoLogger sets the logger drapto events are reported to.
func WithDraptoLogger(logger *slog.Logger) DraptoOption {
	return func(d *Drapto) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func withDraptoClient(client draptoClient) DraptoOption {
	return func(d *Drapto) {
		d.client = client
	}
}

// NewDrapto constructs the drapto backend.
func NewDrapto(opts ...DraptoOption) *Drapto {
	d := &Drapto{client: draptoLibrary{}, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = logging.NewComponentLogger(d.logger, "drapto")
	return d
}

// Encode runs drapto into a hidden staging directory next to the output and
// moves the result to req.Output.
func (d *Drapto) Encode(ctx context.Context, req Request) error {
	logger := logging.WithContext(ctx, d.logger)
	staging, err := os.MkdirTemp(filepath.Dir(req.Output), ".reencode-drapto-")
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "encoding", "drapto staging", req.Output, err)
	}
	defer os.RemoveAll(staging)

	logger.Info("encoding with drapto",
		logging.String("input", req.Input),
		logging.String("output", req.Output),
	)
	if err := d.client.Encode(ctx, req.Input, staging, newDraptoReporter(logger)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return services.Wrap(services.ErrExternalTool, "encoding", "drapto", "", err)
	}

	staged := filepath.Join(staging, draptoStem(req.Input)+".mkv")
	if _, err := os.Stat(staged); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return services.Wrap(services.ErrNotFound, "encoding", "drapto", "encoded output missing from staging", err)
		}
		return services.Wrap(services.ErrExternalTool, "encoding", "drapto", "stat staged output", err)
	}
	if err := fileutil.MoveFile(staged, req.Output); err != nil {
		return services.Wrap(services.ErrExternalTool, "encoding", "drapto", "move encoded output", err)
	}
	return nil
}

func draptoStem(input string) string {
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		return base
	}
	return stem
}

// draptoReporter forwards drapto library events to the log.
type draptoReporter struct {
	logger  *slog.Logger
	sampler *logging.ProgressSampler
}

func newDraptoReporter(logger *slog.Logger) *draptoReporter {
	return &draptoReporter{logger: logger, sampler: logging.NewProgressSampler(5)}
}

func (r *draptoReporter) Hardware(s draptolib.HardwareSummary) {
	r.logger.Debug("drapto host", logging.String("hostname", s.Hostname))
}

func (r *draptoReporter) Initialization(s draptolib.InitializationSummary) {
	r.logger.Info("drapto analysing source",
		logging.Any("resolution", s.Resolution),
		logging.Any("duration", s.Duration),
		logging.Any("category", s.Category),
		logging.Any("dynamic_range", s.DynamicRange),
		logging.Any("audio", s.AudioDescription),
	)
}

func (r *draptoReporter) StageProgress(s draptolib.StageProgress) {
	percent := float64(s.Percent)
	if !r.sampler.ShouldLog(percent, s.Stage) {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldProgressStage, s.Stage),
		logging.Float64(logging.FieldProgressPercent, percent),
	}
	if s.ETA != nil && *s.ETA > 0 {
		attrs = append(attrs, logging.String(logging.FieldProgressETA, formatETA(*s.ETA)))
	}
	message := strings.TrimSpace(s.Message)
	if message == "" {
		message = fmt.Sprintf("%s %.1f%%", s.Stage, percent)
	}
	r.logger.Info(message, logging.Args(attrs...)...)
}

func (r *draptoReporter) CropResult(s draptolib.CropSummary) {
	r.logger.Info("drapto crop detection",
		logging.String("crop", s.Crop),
		logging.Bool("required", s.Required),
		logging.Bool("disabled", s.Disabled),
		logging.String("detail", s.Message),
	)
}

func (r *draptoReporter) EncodingConfig(s draptolib.EncodingConfigSummary) {
	r.logger.Info("drapto encoder settings",
		logging.String("encoder", s.Encoder),
		logging.Any("preset", s.Preset),
		logging.Any("quality", s.Quality),
		logging.Any("audio_codec", s.AudioCodec),
	)
	r.logger.Debug("drapto svt-av1 parameters", logging.Any("svt_params", s.SVTAV1Params))
}

func (r *draptoReporter) EncodingStarted(totalFrames uint64) {
	r.sampler.Reset()
	r.logger.Info("drapto encode started", logging.Int64("total_frames", int64(totalFrames)))
}

func (r *draptoReporter) EncodingProgress(s draptolib.ProgressSnapshot) {
	percent := float64(s.Percent)
	if !r.sampler.ShouldLog(percent, "encoding") {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldProgressStage, "encoding"),
		logging.Float64(logging.FieldProgressPercent, percent),
		logging.Float64("speed", float64(s.Speed)),
		logging.Float64("fps", float64(s.FPS)),
		logging.Int64("frame", int64(s.CurrentFrame)),
	}
	if s.ETA > 0 {
		attrs = append(attrs, logging.String(logging.FieldProgressETA, formatETA(s.ETA)))
	}
	if bitrate := strings.TrimSpace(s.Bitrate); bitrate != "" {
		attrs = append(attrs, logging.String("bitrate", bitrate))
	}
	r.logger.Info(fmt.Sprintf("Encoding %.1f%%", percent), logging.Args(attrs...)...)
}

func (r *draptoReporter) ValidationComplete(s draptolib.ValidationSummary) {
	for _, step := range s.Steps {
		if step.Passed {
			r.logger.Debug("drapto validation step passed", logging.String("step", step.Name))
			continue
		}
		logging.WarnWithContext(r.logger, "drapto validation step failed", "drapto_validation_failed",
			logging.String("step", step.Name),
			logging.String("detail", step.Details),
			logging.String(logging.FieldImpact, "encoded output may differ from the source"),
		)
	}
	r.logger.Info("drapto validation complete", logging.Bool("passed", s.Passed))
}

func (r *draptoReporter) EncodingComplete(s draptolib.EncodingOutcome) {
	r.logger.Info("drapto encode complete",
		logging.Int64("original_bytes", int64(s.OriginalSize)),
		logging.Int64("encoded_bytes", int64(s.EncodedSize)),
		logging.Int64("delta_bytes", int64(s.EncodedSize)-int64(s.OriginalSize)),
		logging.Float64("average_speed", float64(s.AverageSpeed)),
		logging.Duration("elapsed", s.TotalTime),
	)
}

func (r *draptoReporter) Warning(message string) {
	logging.WarnWithContext(r.logger, message, "drapto_warning",
		logging.String(logging.FieldImpact, "reported by drapto; the encode continues"),
	)
}

func (r *draptoReporter) Error(e draptolib.ReporterError) {
	logging.ErrorWithContext(r.logger, e.Title, "drapto_error",
		logging.String("detail", e.Message),
		logging.String("context", e.Context),
		logging.String(logging.FieldErrorHint, e.Suggestion),
	)
}

func (r *draptoReporter) OperationComplete(message string) {
	r.logger.Debug(message)
}

func (r *draptoReporter) BatchStarted(s draptolib.BatchStartInfo) {
	r.logger.Debug("drapto batch started", logging.Any("total_files", s.TotalFiles))
}

func (r *draptoReporter) FileProgress(s draptolib.FileProgressContext) {
	r.logger.Debug("drapto file progress",
		logging.Any("current_file", s.CurrentFile),
		logging.Any("total_files", s.TotalFiles),
	)
}

func (r *draptoReporter) BatchComplete(s draptolib.BatchSummary) {
	r.logger.Debug("drapto batch complete",
		logging.Any("successful", s.SuccessfulCount),
		logging.Duration("elapsed", s.TotalDuration),
	)
}

var (
	_ draptolib.Reporter = (*draptoReporter)(nil)
	_ Encoder            = (*Drapto)(nil)
)
