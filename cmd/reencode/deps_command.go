package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reencode/internal/deps"
	"reencode/internal/preflight"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Check that ffmpeg, ffprobe and mediainfo are installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			statuses := preflight.CheckSystemDeps(cmd.Context(), cfg)
			if asJSON {
				if err := writeJSON(cmd, statuses); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				p := newPalette(out)
				rows := make([][]string, 0, len(statuses))
				for _, s := range statuses {
					state := p.ok.Sprint("found")
					detail := s.Version
					switch {
					case !s.Available && s.Optional:
						state = p.warn.Sprint("optional")
						detail = s.Detail
					case !s.Available:
						state = p.bad.Sprint("missing")
						detail = s.Detail
					}
					where := s.Path
					if where == "" {
						where = s.Command
					}
					rows = append(rows, []string{s.Name, state, where, detail, s.Description})
				}
				fmt.Fprintln(out, renderTable([]string{"Tool", "Status", "Command", "Detail", "Used for"}, rows, nil, nil))
			}
			if missing := deps.Missing(statuses); len(missing) > 0 {
				return fmt.Errorf("%d required tool(s) missing", len(missing))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	return cmd
}
