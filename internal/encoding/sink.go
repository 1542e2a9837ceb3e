package encoding

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"reencode/internal/logging"
)

// progressSink consumes parsed progress updates for one job.
type progressSink interface {
	Update(ProgressUpdate)
	Close()
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// barSink draws a frame-count bar; used only on a terminal.
type barSink struct {
	bar *progressbar.ProgressBar
}

func newBarSink(out io.Writer, total int64, label string) *barSink {
	limit := total
	if limit <= 0 {
		limit = -1
	}
	bar := progressbar.NewOptions64(limit,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(label),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("frames"),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(250*time.Millisecond),
		progressbar.OptionSetWidth(40),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
	return &barSink{bar: bar}
}

func (s *barSink) Update(update ProgressUpdate) {
	_ = s.bar.Set64(update.Frame)
	if update.Done {
		_ = s.bar.Finish()
	}
}

func (s *barSink) Close() {
	_ = s.bar.Finish()
}

// logSink emits sampled progress log lines, one per 5% bucket.
type logSink struct {
	logger  *slog.Logger
	sampler *logging.ProgressSampler
}

func newLogSink(logger *slog.Logger) *logSink {
	return &logSink{logger: logger, sampler: logging.NewProgressSampler(5)}
}

func (s *logSink) Update(update ProgressUpdate) {
	percent := update.Percent()
	stage := "encoding"
	if update.Done {
		stage = "finalizing"
	}
	if !s.sampler.ShouldLog(percent, stage) {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldProgressStage, stage),
		logging.Int64("frame", update.Frame),
	}
	if percent >= 0 {
		attrs = append(attrs, logging.Float64(logging.FieldProgressPercent, percent))
	}
	if eta := update.ETA(); eta > 0 {
		attrs = append(attrs, logging.String(logging.FieldProgressETA, formatETA(eta)))
	}
	if update.Speed > 0 {
		attrs = append(attrs, logging.Float64("speed", update.Speed))
	}
	message := progressMessageText(update)
	if message == "" {
		message = "encoding progress"
	}
	s.logger.Info(message, logging.Args(attrs...)...)
}

func (s *logSink) Close() {}
