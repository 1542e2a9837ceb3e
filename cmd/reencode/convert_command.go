package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"reencode/internal/batch"
	"reencode/internal/config"
	"reencode/internal/encoding"
	"reencode/internal/history"
	"reencode/internal/inspect"
	"reencode/internal/logging"
	"reencode/internal/preflight"
	"reencode/internal/runlock"
	"reencode/internal/services"
	"reencode/internal/supervisor"
	"reencode/internal/textutil"
)

type convertOptions struct {
	recursive    bool
	target       string
	videoCodec   string
	audioCodec   string
	workers      int
	keepOriginal bool
	backend      string
	inspector    string
	noProgress   bool
	json         bool
}

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var opts convertOptions
	cmd := &cobra.Command{
		Use:   "convert [path]",
		Short: "Re-encode every video under a directory that is not already in the target codec",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			return runConvert(cmd, ctx, root, opts)
		},
	}
	flags := cmd.Flags()
	flags.BoolVarP(&opts.recursive, "recursive", "r", false, "Descend into subdirectories")
	flags.StringVar(&opts.target, "target", "", "Target codec family (hevc, av1, h264)")
	flags.StringVar(&opts.videoCodec, "video-codec", "", "ffmpeg video encoder (default: family encoder)")
	flags.StringVar(&opts.audioCodec, "audio-codec", "", "ffmpeg audio encoder")
	flags.IntVar(&opts.workers, "workers", 0, "Files encoded in parallel per directory")
	flags.BoolVar(&opts.keepOriginal, "keep-original", false, "Keep source files after a successful encode")
	flags.StringVar(&opts.backend, "backend", "", "Encoder backend: ffmpeg or drapto")
	flags.StringVar(&opts.inspector, "inspector", "", "Codec inspector: ffprobe or mediainfo")
	flags.BoolVar(&opts.noProgress, "no-progress", false, "Disable encode progress output")
	flags.BoolVar(&opts.json, "json", false, "Print the final report as JSON")
	return cmd
}

// applyConvertFlags copies explicitly set flags over the loaded config and
// re-validates it.
func applyConvertFlags(cmd *cobra.Command, base *config.Config, opts convertOptions) (*config.Config, error) {
	cfg := *base
	cfg.Batch.Extensions = append([]string(nil), base.Batch.Extensions...)
	flags := cmd.Flags()
	if flags.Changed("recursive") {
		cfg.Batch.Recursive = opts.recursive
	}
	if flags.Changed("target") {
		cfg.Encoding.Target = strings.ToLower(strings.TrimSpace(opts.target))
	}
	if flags.Changed("video-codec") {
		cfg.Encoding.VideoEncoder = strings.TrimSpace(opts.videoCodec)
	}
	if flags.Changed("audio-codec") {
		cfg.Encoding.AudioCodec = strings.TrimSpace(opts.audioCodec)
	}
	if flags.Changed("workers") {
		cfg.Batch.Workers = opts.workers
	}
	if flags.Changed("keep-original") {
		cfg.Encoding.DeleteOriginal = !opts.keepOriginal
	}
	if flags.Changed("backend") {
		cfg.Encoding.Backend = strings.ToLower(strings.TrimSpace(opts.backend))
	}
	if flags.Changed("inspector") {
		cfg.Encoding.Inspector = strings.ToLower(strings.TrimSpace(opts.inspector))
	}
	if opts.noProgress {
		cfg.Encoding.Progress = false
	}
	if err := cfg.Validate(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "cli", "convert", "invalid options", err)
	}
	return &cfg, nil
}

func runConvert(cmd *cobra.Command, ctx *commandContext, rootArg string, opts convertOptions) error {
	loaded, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	cfg, err := applyConvertFlags(cmd, loaded, opts)
	if err != nil {
		return err
	}
	root, err := filepath.Abs(rootArg)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", rootArg, err)
	}
	if info, err := os.Stat(root); err != nil {
		return services.Wrap(services.ErrNotFound, "cli", "convert", root, err)
	} else if !info.IsDir() {
		return services.Wrap(services.ErrValidation, "cli", "convert", root+" is not a directory", nil)
	}

	baseLogger, err := ctx.logger(opts.json)
	if err != nil {
		return err
	}
	runID := uuid.NewString()
	logger, closer, err := logging.NewRunLogger(baseLogger, cfg.Paths.LogDir, runID)
	if err != nil {
		return err
	}
	defer closer.Close()
	logging.PruneRunLogs(baseLogger, cfg.Paths.LogDir, cfg.Logging.RetentionDays, logging.RunLogPath(cfg.Paths.LogDir, runID))

	runCtx, stop := signalContext(cmd)
	defer stop()
	runCtx = services.WithRunID(runCtx, runID)

	if failed := preflight.Failed(preflight.RunAll(runCtx, cfg, root)); len(failed) > 0 {
		parts := make([]string, 0, len(failed))
		for _, f := range failed {
			parts = append(parts, f.Name+": "+f.Detail)
		}
		return services.Wrap(services.ErrConfiguration, "cli", "preflight", strings.Join(parts, "; "), nil)
	}

	if cfg.Batch.Lock {
		lock, err := runlock.Acquire(cfg.Paths.StateDir, root)
		if err != nil {
			return err
		}
		defer func() {
			if err := lock.Release(); err != nil {
				logger.Warn("release run lock", logging.Error(err))
			}
		}()
	}

	var (
		store    *history.Store
		recorder batch.Recorder
	)
	if cfg.History.Enabled {
		store, err = history.OpenFromConfig(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		if _, err := store.StartRun(runCtx, runID, root, cfg.Batch.Recursive); err != nil {
			return err
		}
		recorder = store.Recorder(runID)
	}

	walker, err := buildWalker(cfg, logger, recorder)
	if err != nil {
		return err
	}

	logger.Info("run started",
		logging.String("root", root),
		logging.Bool("recursive", cfg.Batch.Recursive),
		logging.String("target", cfg.Encoding.Target),
		logging.String("backend", cfg.Encoding.Backend),
		logging.Int("workers", cfg.Batch.Workers),
	)
	started := time.Now()
	report, walkErr := walk(runCtx, walker, root, cfg.Batch.Recursive)

	if store != nil {
		if err := store.FinishRun(context.WithoutCancel(runCtx), runID, report.Totals); err != nil {
			logging.WarnWithContext(logger, "could not finish history run", "history_finish_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "run shows as unfinished in history"),
			)
		}
	}

	summary := newConvertSummary(runID, report, time.Since(started))
	if opts.json {
		if err := writeJSON(cmd, summary); err != nil {
			return err
		}
	} else {
		printConvertSummary(cmd.OutOrStdout(), summary)
	}
	return walkErr
}

func buildWalker(cfg *config.Config, logger *slog.Logger, recorder batch.Recorder) (*batch.Walker, error) {
	insp, err := inspect.New(cfg)
	if err != nil {
		return nil, err
	}
	sup := supervisor.New(supervisor.ConfigFrom(cfg), supervisor.WithLogger(logger))
	enc, err := encoding.New(cfg, sup, logger)
	if err != nil {
		return nil, err
	}
	proc, err := batch.NewProcessor(cfg, insp, enc, batch.WithProcessorLogger(logger))
	if err != nil {
		return nil, err
	}
	opts := []batch.WalkerOption{
		batch.WithWorkers(cfg.Batch.Workers),
		batch.WithWalkerLogger(logger),
	}
	if recorder != nil {
		opts = append(opts, batch.WithRecorder(recorder))
	}
	return batch.NewWalker(proc, opts...), nil
}

func walk(ctx context.Context, walker *batch.Walker, root string, recursive bool) (batch.TreeReport, error) {
	if recursive {
		return walker.Tree(ctx, root)
	}
	dir, err := walker.Dir(ctx, root)
	report := batch.TreeReport{Root: root, Totals: walker.Totals()}
	if dir.Dir != "" || len(dir.Results) > 0 {
		report.Dirs = []batch.DirReport{dir}
	}
	return report, err
}

type resultView struct {
	Path        string `json:"path"`
	Kind        string `json:"kind"`
	Output      string `json:"output,omitempty"`
	Reason      string `json:"reason,omitempty"`
	BeforeBytes int64  `json:"before_bytes,omitempty"`
	AfterBytes  int64  `json:"after_bytes,omitempty"`
	DeltaBytes  int64  `json:"delta_bytes,omitempty"`
	ElapsedMS   int64  `json:"elapsed_ms,omitempty"`
}

type convertSummary struct {
	RunID     string               `json:"run_id"`
	Root      string               `json:"root"`
	ElapsedMS int64                `json:"elapsed_ms"`
	Totals    batch.TotalsSnapshot `json:"totals"`
	Results   []resultView         `json:"results"`
}

func newConvertSummary(runID string, report batch.TreeReport, elapsed time.Duration) convertSummary {
	s := convertSummary{
		RunID:     runID,
		Root:      report.Root,
		ElapsedMS: elapsed.Milliseconds(),
		Totals:    report.Totals,
		Results:   []resultView{},
	}
	for _, dir := range report.Dirs {
		for _, r := range dir.Results {
			s.Results = append(s.Results, resultView{
				Path:        r.Path,
				Kind:        r.Kind.String(),
				Output:      r.Output,
				Reason:      r.Reason,
				BeforeBytes: r.Before,
				AfterBytes:  r.After,
				DeltaBytes:  r.Delta,
				ElapsedMS:   r.Elapsed.Milliseconds(),
			})
		}
	}
	return s
}

func printConvertSummary(out io.Writer, s convertSummary) {
	p := newPalette(out)
	var rows [][]string
	for _, r := range s.Results {
		if r.Kind == batch.KindSkipped.String() {
			continue
		}
		status := p.ok.Sprint(r.Kind)
		detail := fmt.Sprintf("%s -> %s", humanize.IBytes(uint64(max(r.BeforeBytes, 0))), humanize.IBytes(uint64(max(r.AfterBytes, 0))))
		delta := textutil.HumanDelta(r.DeltaBytes)
		if r.Kind == batch.KindFailed.String() {
			status = p.bad.Sprint(r.Kind)
			detail = r.Reason
			delta = ""
		}
		rows = append(rows, []string{relativeTo(s.Root, r.Path), status, detail, delta})
	}
	if len(rows) > 0 {
		fmt.Fprintln(out, renderTable(
			[]string{"File", "Result", "Detail", "Delta"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
			nil,
		))
	}
	t := s.Totals
	fmt.Fprintln(out, renderTable(
		[]string{"Processed", "Skipped", "Failed", "Before", "After", "Delta", "Saved"},
		[][]string{{
			strconv.Itoa(t.Processed),
			strconv.Itoa(t.Skipped),
			strconv.Itoa(t.Failed),
			humanize.IBytes(uint64(max(t.Before, 0))),
			humanize.IBytes(uint64(max(t.After, 0))),
			textutil.FormatDelta(t.Delta),
			textutil.Percent(-t.Delta, t.Before),
		}},
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
		nil,
	))
	fmt.Fprintf(out, "Run %s finished in %s\n", s.RunID, time.Duration(s.ElapsedMS)*time.Millisecond)
}

func relativeTo(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}
