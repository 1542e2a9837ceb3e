package batch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"reencode/internal/logging"
	"reencode/internal/mediafile"
	"reencode/internal/services"
	"reencode/internal/textutil"
)

// Recorder receives every result, e.g. to persist run history.
type Recorder interface {
	Record(ctx context.Context, r Result) error
}

// DirReport lists one directory's results in sorted name order.
type DirReport struct {
	Dir     string   `json:"dir"`
	Results []Result `json:"-"`
	Delta   int64    `json:"delta_bytes"`
}

// TreeReport is the outcome of a recursive walk.
type TreeReport struct {
	Root   string         `json:"root"`
	Dirs   []DirReport    `json:"dirs"`
	Totals TotalsSnapshot `json:"totals"`
}

// Walker drives a FileProcessor over directories.
type Walker struct {
	proc     FileProcessor
	workers  int
	totals   *Totals
	recorder Recorder
	logger   *slog.Logger
	recordMu sync.Mutex
}

// WalkerOption configures a Walker.
type WalkerOption func(*Walker)

// WithWorkers sets how many files of one directory are processed at once.
// Values below one mean one.
func WithWorkers(n int) WalkerOption {
	return func(w *Walker) {
		w.workers = max(n, 1)
	}
}

// WithRecorder attaches a result recorder.
func WithRecorder(r Recorder) WalkerOption {
	return func(w *Walker) {
		w.recorder = r
	}
}

// WithWalkerLogger sets the logger.
func WithWalkerLogger(logger *slog.Logger) WalkerOption {
	return func(w *Walker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWalker constructs a serial walker unless WithWorkers says otherwise.
func NewWalker(proc FileProcessor, opts ...WalkerOption) *Walker {
	w := &Walker{proc: proc, workers: 1, totals: &Totals{}, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = logging.NewComponentLogger(w.logger, "walker")
	return w
}

// Totals returns the run-lifetime counters.
func (w *Walker) Totals() TotalsSnapshot {
	return w.totals.Snapshot()
}

// Dir processes the regular entries of dir in sorted order. Subdirectories
// are not entered. The error is non-nil only when dir cannot be read or ctx
// is cancelled.
func (w *Walker) Dir(ctx context.Context, dir string) (DirReport, error) {
	report, _, err := w.dir(ctx, dir)
	return report, err
}

func (w *Walker) dir(ctx context.Context, dir string) (DirReport, []string, error) {
	report := DirReport{Dir: dir}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return report, nil, err
	}

	var files, subdirs []string
	for _, entry := range entries {
		full := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			subdirs = append(subdirs, full)
			continue
		}
		files = append(files, full)
	}

	results := make([]Result, len(files))
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(w.workers)
	for i, path := range files {
		if gctx.Err() != nil {
			break
		}
		group.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			res := w.proc.Process(gctx, path)
			w.handle(gctx, res)
			results[i] = res
			return nil
		})
	}
	_ = group.Wait()

	for _, res := range results {
		if res.Kind == 0 {
			continue
		}
		report.Results = append(report.Results, res)
		report.Delta += res.Delta
	}
	w.logger.Info("directory complete",
		logging.String("dir", dir),
		logging.Int("files", len(report.Results)),
		logging.Int64("delta_bytes", report.Delta),
		logging.String("delta", textutil.FormatDelta(report.Delta)),
	)
	return report, subdirs, ctx.Err()
}

// Tree walks root pre-order: a directory's files, then each subdirectory in
// sorted order. A subdirectory that disappears mid-walk is logged and skipped.
func (w *Walker) Tree(ctx context.Context, root string) (TreeReport, error) {
	report := TreeReport{Root: root}
	err := w.walk(ctx, root, &report, true)
	report.Totals = w.totals.Snapshot()
	w.logger.Info("run complete",
		logging.String("root", root),
		logging.Int("processed", report.Totals.Processed),
		logging.Int("skipped", report.Totals.Skipped),
		logging.Int("failed", report.Totals.Failed),
		logging.Int64("delta_bytes", report.Totals.Delta),
		logging.String("delta", textutil.FormatDelta(report.Totals.Delta)),
	)
	return report, err
}

func (w *Walker) walk(ctx context.Context, dir string, report *TreeReport, isRoot bool) error {
	dr, subdirs, err := w.dir(ctx, dir)
	if err != nil {
		if ctx.Err() != nil {
			report.Dirs = append(report.Dirs, dr)
			return ctx.Err()
		}
		if !isRoot && errors.Is(err, fs.ErrNotExist) {
			logging.WarnWithContext(w.logger, "directory vanished during walk", "directory_vanished",
				logging.String("dir", dir),
				logging.String(logging.FieldImpact, "its contents are skipped"),
			)
			return nil
		}
		return services.Wrap(services.ErrNotFound, "walker", "read dir", dir, err)
	}
	report.Dirs = append(report.Dirs, dr)
	for _, sub := range subdirs {
		if err := w.walk(ctx, sub, report, false); err != nil {
			return err
		}
	}
	return nil
}

func (w *Walker) handle(ctx context.Context, res Result) {
	w.totals.Add(res)
	logger := logging.WithContext(services.WithFile(ctx, res.Path), w.logger)
	switch res.Kind {
	case KindProcessed:
		logger.Info("re-encoded",
			logging.String("output", res.Output),
			logging.Int64("before_bytes", res.Before),
			logging.Int64("after_bytes", res.After),
			logging.Int64("delta_bytes", res.Delta),
			logging.String("change", textutil.Percent(res.Delta, res.Before)),
			logging.Duration("elapsed", res.Elapsed),
		)
	case KindSkipped:
		level := slog.LevelInfo
		if quietSkip(res.Reason) {
			level = slog.LevelDebug
		}
		logger.Log(ctx, level, "skipped", logging.String("reason", res.Reason))
	case KindFailed:
		logging.WarnWithContext(logger, "encode failed", "encode_failed",
			logging.Error(res.Err),
			logging.String("failed_stage", services.StageOf(res.Err)),
			logging.String(logging.FieldImpact, "original left in place"),
			logging.String(logging.FieldErrorHint, "see the job log next to the source"),
		)
	}
	if w.recorder == nil {
		return
	}
	w.recordMu.Lock()
	defer w.recordMu.Unlock()
	if err := w.recorder.Record(context.WithoutCancel(ctx), res); err != nil {
		w.logger.Debug("history record failed", logging.Error(err))
	}
}

// quietSkip reports skips that are expected for most entries of a media
// directory and would drown the log at info level.
func quietSkip(reason string) bool {
	switch reason {
	case mediafile.ReasonNoExtension, mediafile.ReasonUnsupportedExtension, ReasonDirectory, ReasonNotRegular:
		return true
	}
	return false
}
