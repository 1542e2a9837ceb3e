package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"reencode/internal/codec"
)

var commandContext = exec.CommandContext

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
	raw     []byte
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index         int               `json:"index"`
	CodecName     string            `json:"codec_name"`
	CodecType     string            `json:"codec_type"`
	CodecTag      string            `json:"codec_tag_string"`
	Duration      string            `json:"duration"`
	BitRate       string            `json:"bit_rate"`
	Width         int               `json:"width"`
	Height        int               `json:"height"`
	SampleRate    string            `json:"sample_rate"`
	Channels      int               `json:"channels"`
	ChannelLayout string            `json:"channel_layout"`
	NbFrames      string            `json:"nb_frames"`
	AvgFrameRate  string            `json:"avg_frame_rate"`
	RFrameRate    string            `json:"r_frame_rate"`
	StartTime     string            `json:"start_time"`
	Disposition   map[string]int    `json:"disposition"`
	Tags          map[string]string `json:"tags"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := commandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return Parse(output)
}

// Parse decodes an ffprobe JSON document.
func Parse(output []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	result.raw = append([]byte(nil), output...)
	return result, nil
}

// Metadata dumps global container metadata in ffmetadata format using ffmpeg.
func Metadata(ctx context.Context, ffmpegBinary, path string) (string, error) {
	if strings.TrimSpace(ffmpegBinary) == "" {
		ffmpegBinary = "ffmpeg"
	}
	cmd := commandContext(ctx, ffmpegBinary, "-v", "error", "-i", path, "-f", "ffmetadata", "-")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("ffmetadata dump: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return string(output), nil
}

// RawJSON returns the raw ffprobe JSON payload.
func (r Result) RawJSON() []byte {
	return append([]byte(nil), r.raw...)
}

// VideoStreams returns presentable video streams; embedded cover art
// (attached_pic disposition) is excluded.
func (r Result) VideoStreams() []Stream {
	var out []Stream
	for _, stream := range r.Streams {
		if !strings.EqualFold(stream.CodecType, "video") {
			continue
		}
		if stream.IsAttachedPicture() {
			continue
		}
		out = append(out, stream)
	}
	return out
}

// VideoCodecs returns codec names of presentable video streams.
func (r Result) VideoCodecs() []string {
	streams := r.VideoStreams()
	codecs := make([]string, 0, len(streams))
	for _, s := range streams {
		if name := strings.TrimSpace(s.CodecName); name != "" {
			codecs = append(codecs, name)
		}
	}
	return codecs
}

// VideoStreamCount returns the number of video streams discovered.
func (r Result) VideoStreamCount() int {
	return len(r.VideoStreams())
}

// AudioStreamCount returns the number of audio streams discovered.
func (r Result) AudioStreamCount() int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "audio") {
			count++
		}
	}
	return count
}

// DurationSeconds returns the container duration in seconds, or 0 when unavailable.
func (r Result) DurationSeconds() float64 {
	return parseFloat(r.Format.Duration)
}

// SizeBytes returns the reported container size in bytes, or 0 when unavailable.
func (r Result) SizeBytes() int64 {
	size := parseFloat(r.Format.Size)
	if math.IsNaN(size) || size < 0 {
		return 0
	}
	return int64(size)
}

// BitRate returns the container bitrate in bits per second, or 0 when unavailable.
func (r Result) BitRate() int64 {
	rate := parseFloat(r.Format.BitRate)
	if math.IsNaN(rate) || rate < 0 {
		return 0
	}
	return int64(rate)
}

// TotalFrames estimates the frame count of the first presentable video stream.
func (r Result) TotalFrames() (int64, bool) {
	streams := r.VideoStreams()
	if len(streams) == 0 {
		return 0, false
	}
	timing := streams[0].Timing()
	timing.ContainerDuration = r.Format.Duration
	return codec.EstimateFrames(timing)
}

// IsAttachedPicture reports whether the stream is embedded cover art.
func (s Stream) IsAttachedPicture() bool {
	return s.Disposition["attached_pic"] == 1
}

// Tag returns a stream tag, matching the key case-insensitively.
func (s Stream) Tag(key string) string {
	if v, ok := s.Tags[key]; ok {
		return v
	}
	for k, v := range s.Tags {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// Timing extracts the fields used for frame estimation.
func (s Stream) Timing() codec.StreamTiming {
	return codec.StreamTiming{
		CodecName:    s.CodecName,
		NbFrames:     s.NbFrames,
		AvgFrameRate: s.AvgFrameRate,
		RFrameRate:   s.RFrameRate,
		StartTime:    s.StartTime,
		Duration:     s.Duration,
		TagDuration:  s.Tag("DURATION"),
	}
}

// Field returns the string form of a comparable stream property by its
// ffprobe key.
func (s Stream) Field(name string) string {
	switch name {
	case "codec_type":
		return s.CodecType
	case "codec_name":
		return s.CodecName
	case "width":
		return strconv.Itoa(s.Width)
	case "height":
		return strconv.Itoa(s.Height)
	case "channel_layout":
		return s.ChannelLayout
	case "sample_rate":
		return s.SampleRate
	case "channels":
		return strconv.Itoa(s.Channels)
	default:
		return ""
	}
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
