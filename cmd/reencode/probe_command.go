package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"reencode/internal/codec"
	"reencode/internal/config"
	"reencode/internal/media/ffprobe"
	"reencode/internal/media/mediainfo"
)

type probeView struct {
	Path         string          `json:"path"`
	Codecs       []string        `json:"codecs"`
	VideoStreams int             `json:"video_streams"`
	AudioStreams int             `json:"audio_streams"`
	Frames       int64           `json:"frames,omitempty"`
	FramesKnown  bool            `json:"frames_known"`
	DurationSec  float64         `json:"duration_seconds,omitempty"`
	SizeBytes    int64           `json:"size_bytes"`
	BitRate      int64           `json:"bit_rate,omitempty"`
	AlreadyMatch bool            `json:"already_target"`
	Error        string          `json:"error,omitempty"`
	FFprobe      json.RawMessage `json:"ffprobe,omitempty"`
}

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "probe <file>...",
		Short: "Show video codecs and frame estimates for files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			family, ok := codec.Lookup(cfg.Encoding.Target)
			if !ok {
				return fmt.Errorf("unknown target %q", cfg.Encoding.Target)
			}
			views := make([]probeView, 0, len(args))
			for _, path := range args {
				views = append(views, probeFile(cmd.Context(), cfg, family, path))
			}
			if asJSON {
				return writeJSON(cmd, views)
			}
			out := cmd.OutOrStdout()
			p := newPalette(out)
			rows := make([][]string, 0, len(views))
			for _, v := range views {
				frames := "?"
				if v.FramesKnown {
					frames = humanize.Comma(v.Frames)
				}
				status := p.warn.Sprint("encode")
				if v.AlreadyMatch {
					status = p.ok.Sprint("skip")
				}
				codecs := strings.Join(v.Codecs, ", ")
				if v.Error != "" {
					status = p.bad.Sprint("error")
					codecs = v.Error
				} else if codecs == "" {
					codecs = "(no video)"
					status = p.info.Sprint("skip")
				}
				rows = append(rows, []string{
					v.Path,
					codecs,
					fmt.Sprintf("%dv/%da", v.VideoStreams, v.AudioStreams),
					frames,
					formatSeconds(v.DurationSec),
					humanize.IBytes(uint64(max(v.SizeBytes, 0))),
					formatBitRate(v.BitRate),
					status,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"File", "Video codecs", "Streams", "Frames", "Duration", "Size", "Bitrate", family.DisplayName()},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
				nil,
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	return cmd
}

func probeFile(ctx context.Context, cfg *config.Config, family codec.Family, path string) probeView {
	view := probeView{Path: path, Codecs: []string{}}
	if info, err := os.Stat(path); err == nil {
		view.SizeBytes = info.Size()
	}
	switch cfg.Encoding.Inspector {
	case config.InspectorMediaInfo:
		result, err := mediainfo.Inspect(ctx, cfg.MediaInfoBinary(), path)
		if err != nil {
			view.Error = err.Error()
			return view
		}
		view.Codecs = append(view.Codecs, result.VideoCodecs()...)
		tracks := result.VideoTracks()
		view.VideoStreams = len(tracks)
		if len(tracks) > 0 {
			view.Frames, view.FramesKnown = tracks[0].Frames()
		}
	default:
		result, err := ffprobe.Inspect(ctx, cfg.FFprobeBinary(), path)
		if err != nil {
			view.Error = err.Error()
			return view
		}
		view.Codecs = append(view.Codecs, result.VideoCodecs()...)
		view.VideoStreams = result.VideoStreamCount()
		view.AudioStreams = result.AudioStreamCount()
		view.Frames, view.FramesKnown = result.TotalFrames()
		view.DurationSec = result.DurationSeconds()
		view.BitRate = result.BitRate()
		if view.SizeBytes == 0 {
			view.SizeBytes = result.SizeBytes()
		}
		view.FFprobe = result.RawJSON()
	}
	view.AlreadyMatch = family.MatchesAny(view.Codecs)
	return view
}

func formatSeconds(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	return (time.Duration(seconds * float64(time.Second))).Round(time.Second).String()
}

func formatBitRate(bps int64) string {
	if bps <= 0 {
		return "-"
	}
	return humanize.SIWithDigits(float64(bps), 1, "b/s")
}
