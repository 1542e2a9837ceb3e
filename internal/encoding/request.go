package encoding

import (
	"path/filepath"
	"strings"

	"reencode/internal/codec"
	"reencode/internal/config"
)

// Request describes one transcode.
type Request struct {
	Input  string
	Output string
	// LogPath receives the encoder's combined output; it is deleted by the
	// batch driver after a successful encode.
	LogPath      string
	Family       codec.Family
	VideoEncoder string
	AudioCodec   string
	// EvenDimensions adds a scale filter rounding width and height down to
	// even values; most encoders reject odd dimensions.
	EvenDimensions bool
	// MP4TextSubs converts subtitle streams to mov_text for mp4 outputs.
	MP4TextSubs bool
	// Progress adds the machine-readable -progress stream on stdout.
	Progress bool
}

// LogPathFor returns the per-input job log location.
func LogPathFor(input string) string {
	return input + ".log"
}

// RequestFor builds a request from configuration. The video encoder defaults
// to the target family's encoder.
func RequestFor(cfg *config.Config, family codec.Family, input, output string) Request {
	req := Request{
		Input:   input,
		Output:  output,
		LogPath: LogPathFor(input),
		Family:  family,
	}
	if cfg != nil {
		req.VideoEncoder = strings.TrimSpace(cfg.Encoding.VideoEncoder)
		req.AudioCodec = strings.TrimSpace(cfg.Encoding.AudioCodec)
		req.EvenDimensions = cfg.Encoding.EvenDimensions
		req.MP4TextSubs = cfg.Encoding.MP4TextSubs
		req.Progress = cfg.Encoding.Progress
	}
	if req.VideoEncoder == "" {
		req.VideoEncoder = family.Encoder
	}
	if req.AudioCodec == "" {
		req.AudioCodec = "aac"
	}
	return req
}

// BuildArgs returns the ffmpeg argument vector for req. All input streams are
// mapped; everything except video and audio is stream-copied and data streams
// are dropped.
func BuildArgs(req Request) []string {
	args := []string{"-hide_banner", "-y", "-i", req.Input}
	if req.EvenDimensions {
		args = append(args, "-vf", "scale=trunc(iw/2)*2:trunc(ih/2)*2")
	}
	subtitleCodec := "copy"
	if req.MP4TextSubs && strings.EqualFold(filepath.Ext(req.Output), ".mp4") {
		subtitleCodec = "mov_text"
	}
	args = append(args,
		"-c", "copy",
		"-c:v", req.VideoEncoder,
		"-c:a", req.AudioCodec,
		"-c:s", subtitleCodec,
		"-dn",
		"-map", "0",
	)
	if req.Progress {
		args = append(args, "-progress", "pipe:1", "-nostats")
	}
	return append(args, req.Output)
}
