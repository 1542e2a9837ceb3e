package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"reencode/internal/history"
	"reencode/internal/textutil"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent convert runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()
			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				if runs == nil {
					runs = []history.Run{}
				}
				return writeJSON(cmd, runs)
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				finished := "running"
				if run.Finished() {
					finished = run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
				}
				rows = append(rows, []string{
					run.ID,
					run.StartedAt.Local().Format("2006-01-02 15:04"),
					run.Root,
					yesNo(run.Recursive),
					strconv.Itoa(run.Processed),
					strconv.Itoa(run.Skipped),
					strconv.Itoa(run.Failed),
					textutil.HumanDelta(run.DeltaBytes),
					finished,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Run", "Started", "Root", "Recursive", "Processed", "Skipped", "Failed", "Delta", "Duration"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
				nil,
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to show (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	cmd.AddCommand(newHistoryShowCommand(ctx))
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var (
		asJSON  bool
		showAll bool
	)
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the per-file results of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()
			run, err := store.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			entries, err := store.Results(cmd.Context(), run.ID)
			if err != nil {
				return err
			}
			if asJSON {
				if entries == nil {
					entries = []history.Entry{}
				}
				return writeJSON(cmd, struct {
					Run     history.Run     `json:"run"`
					Results []history.Entry `json:"results"`
				}{run, entries})
			}
			out := cmd.OutOrStdout()
			p := newPalette(out)
			fmt.Fprintf(out, "Run %s on %s\n", run.ID, run.Root)
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				if e.Kind == "skipped" && !showAll {
					continue
				}
				kind := e.Kind
				switch kind {
				case "processed":
					kind = p.ok.Sprint(kind)
				case "failed":
					kind = p.bad.Sprint(kind)
				}
				delta := ""
				if e.Kind == "processed" {
					delta = textutil.HumanDelta(e.DeltaBytes)
				}
				rows = append(rows, []string{relativeTo(run.Root, e.Path), kind, e.Reason, delta, e.Elapsed.Round(time.Second).String()})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"File", "Result", "Reason", "Delta", "Elapsed"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight},
				[]string{
					fmt.Sprintf("%d processed, %d skipped, %d failed", run.Processed, run.Skipped, run.Failed),
					"", "", textutil.FormatDelta(run.DeltaBytes), "",
				},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	cmd.Flags().BoolVarP(&showAll, "all", "a", false, "Include skipped files")
	return cmd
}

func openHistory(ctx *commandContext) (*history.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	return history.OpenFromConfig(cfg)
}
