package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"reencode/internal/concat"
	"reencode/internal/logging"
	"reencode/internal/remux"
	"reencode/internal/services"
	"reencode/internal/subtitles"
	"reencode/internal/verify"
)

func newConcatCommand(ctx *commandContext) *cobra.Command {
	var (
		inputs       []string
		output       string
		overwrite    bool
		deleteInputs bool
	)
	cmd := &cobra.Command{
		Use:   "concat -i <file> -i <file>... -o <output>",
		Short: "Join files with identical stream layouts, adding one chapter per input",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(false)
			if err != nil {
				return err
			}
			all := append(append([]string(nil), inputs...), args...)
			runCtx, stop := signalContext(cmd)
			defer stop()

			c := concat.New(cfg.FFmpegBinary(), cfg.FFprobeBinary(), concat.WithLogger(logger))
			err = c.Run(runCtx, concat.Options{
				Inputs:       all,
				Output:       output,
				Overwrite:    overwrite,
				DeleteInputs: deleteInputs,
			})
			var mismatch *concat.MismatchError
			if errors.As(err, &mismatch) {
				return fmt.Errorf("inputs cannot be joined without re-encoding: %w", err)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Joined %d files into %s\n", len(all), output)
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&inputs, "input", "i", nil, "Input file (repeatable, in order)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file")
	cmd.Flags().BoolVarP(&overwrite, "overwrite", "w", false, "Overwrite the output if it exists")
	cmd.Flags().BoolVar(&deleteInputs, "delete-inputs", false, "Delete inputs after a successful join")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func newRemuxCommand(ctx *commandContext) *cobra.Command {
	var (
		recursive bool
		keep      bool
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "remux [path]",
		Short: "Rewrap .mkv files as .mp4 without re-encoding",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(asJSON)
			if err != nil {
				return err
			}
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			runCtx, stop := signalContext(cmd)
			defer stop()

			results, err := remux.New(cfg.FFmpegBinary(), logger).Dir(runCtx, root, remux.Options{Recursive: recursive, Keep: keep})
			if asJSON {
				type view struct {
					Input  string `json:"input"`
					Output string `json:"output"`
					Status string `json:"status"`
					Error  string `json:"error,omitempty"`
				}
				views := make([]view, 0, len(results))
				for _, r := range results {
					v := view{Input: r.Input, Output: r.Output, Status: r.Status.String()}
					if r.Err != nil {
						v.Error = r.Err.Error()
					}
					views = append(views, v)
				}
				if encErr := writeJSON(cmd, views); encErr != nil {
					return encErr
				}
				return err
			}
			out := cmd.OutOrStdout()
			p := newPalette(out)
			rows := make([][]string, 0, len(results))
			failed := 0
			for _, r := range results {
				status := p.ok.Sprint(r.Status)
				detail := filepath.Base(r.Output)
				switch r.Status {
				case remux.StatusSkipped:
					status = p.info.Sprint(r.Status)
					detail = "output exists"
				case remux.StatusFailed:
					failed++
					status = p.bad.Sprint(r.Status)
					detail = r.Err.Error()
				}
				rows = append(rows, []string{relativeTo(root, r.Input), status, detail})
			}
			if len(rows) == 0 {
				fmt.Fprintln(out, "No .mkv files found")
			} else {
				fmt.Fprintln(out, renderTable([]string{"Source", "Result", "Detail"}, rows, nil, nil))
			}
			if err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed to remux", failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Descend into subdirectories")
	cmd.Flags().BoolVar(&keep, "keep", false, "Keep .mkv sources after conversion")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	return cmd
}

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var (
		recursive bool
		pattern   string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "check [path]",
		Short: "Decode files end to end and report errors",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(asJSON)
			if err != nil {
				return err
			}
			logger = logging.NewComponentLogger(logger, "check")
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			targets, err := verify.Targets(root, pattern, recursive)
			if err != nil {
				return err
			}
			runCtx, stop := signalContext(cmd)
			defer stop()

			reports := make([]verify.Report, 0, len(targets))
			for _, target := range targets {
				logger.Info("checking", logging.String("file", target))
				report, err := verify.Check(runCtx, cfg.FFmpegBinary(), target, nil)
				if err != nil {
					if runCtx.Err() != nil {
						return runCtx.Err()
					}
					logging.WarnWithContext(logger, "check could not run", "check_failed",
						logging.String("file", target),
						logging.Error(err),
					)
					report.ExitCode = -1
				}
				reports = append(reports, report)
			}

			bad := 0
			for _, r := range reports {
				if !r.OK() {
					bad++
				}
			}
			if asJSON {
				if err := writeJSON(cmd, reports); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				p := newPalette(out)
				rows := make([][]string, 0, len(reports))
				for _, r := range reports {
					status := p.ok.Sprint("ok")
					if !r.OK() {
						status = p.bad.Sprint("damaged")
					}
					rows = append(rows, []string{relativeTo(root, r.Path), strconv.Itoa(r.Errors), strconv.Itoa(r.ExitCode), status})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"File", "Errors", "Exit", "Status"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft},
					[]string{fmt.Sprintf("%d files", len(reports)), "", "", fmt.Sprintf("%d damaged", bad)},
				))
			}
			if bad > 0 {
				return services.Wrap(services.ErrValidation, "cli", "check", fmt.Sprintf("%d of %d files have decode errors", bad, len(reports)), nil)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", true, "Descend into subdirectories")
	cmd.Flags().StringVar(&pattern, "pattern", "", "Glob matched against file names (default: all video extensions)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	return cmd
}

func newEmbedSubsCommand(ctx *commandContext) *cobra.Command {
	var (
		output    string
		overwrite bool
	)
	cmd := &cobra.Command{
		Use:   "embed-subs <video> <srt>",
		Short: "Embed an SRT file as a mov_text subtitle track",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(false)
			if err != nil {
				return err
			}
			runCtx, stop := signalContext(cmd)
			defer stop()
			res, err := subtitles.NewEmbedder(cfg.FFmpegBinary(), logger).Embed(runCtx, subtitles.Request{
				Video:     args[0],
				SRT:       args[1],
				Output:    output,
				Overwrite: overwrite,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Embedded %d cues into %s\n", res.Cues, res.Output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default <stem>-embedded-sub.mp4)")
	cmd.Flags().BoolVarP(&overwrite, "overwrite", "w", false, "Overwrite the output if it exists")
	return cmd
}
