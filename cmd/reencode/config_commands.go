package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"reencode/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or check the configuration file",
	}
	cmd.AddCommand(newConfigInitCommand(), newConfigValidateCommand(ctx))
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var (
		target    string
		overwrite bool
	)
	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a commented sample configuration",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveInitPath(target)
			if err != nil {
				return err
			}
			if _, err := os.Lstat(path); err == nil && !overwrite {
				return fmt.Errorf("%s already exists (pass --overwrite to replace it)", path)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}
			if err := config.CreateSample(path); err != nil {
				return fmt.Errorf("write sample config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\nEdit it, then run: reencode config validate -c %s\n", path, path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&target, "path", "p", "", "Where to write the file (default ~/.config/reencode/config.toml)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

func resolveInitPath(target string) (string, error) {
	if target = strings.TrimSpace(target); target == "" {
		return config.DefaultConfigPath()
	}
	return config.ExpandPath(target)
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the configuration and print the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			source := ctx.configPath
			if _, err := os.Stat(source); err != nil {
				source = "(none; built-in defaults)"
			}
			fmt.Fprintf(out, "Config path: %s\n", source)
			fmt.Fprintln(out, renderTable([]string{"Setting", "Value"}, effectiveSettings(cfg), nil, nil))
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func effectiveSettings(cfg *config.Config) [][]string {
	history := "off"
	if cfg.History.Enabled {
		history = cfg.History.Path
	}
	priority := "off"
	if cfg.Priority.Enabled {
		priority = fmt.Sprintf("%s, nice %d", cfg.Priority.Mode, cfg.Priority.Nice)
	}
	return [][]string{
		{"Target", cfg.Encoding.Target},
		{"Backend", cfg.Encoding.Backend},
		{"Inspector", cfg.Encoding.Inspector},
		{"Delete originals", yesNo(cfg.Encoding.DeleteOriginal)},
		{"Recursive", yesNo(cfg.Batch.Recursive)},
		{"Workers", strconv.Itoa(cfg.Batch.Workers)},
		{"Watchdog", fmt.Sprintf("%d samples below %.1f%% CPU", cfg.Watchdog.IdleSamples, cfg.Watchdog.IdleThresholdPercent)},
		{"Priority", priority},
		{"FFmpeg", cfg.FFmpegBinary()},
		{"FFprobe", cfg.FFprobeBinary()},
		{"Log dir", cfg.Paths.LogDir},
		{"History", history},
	}
}
