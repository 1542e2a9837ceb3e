// Package mediainfo wraps the mediainfo CLI's JSON output.
package mediainfo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

var commandContext = exec.CommandContext

// Result is the decoded mediainfo document.
type Result struct {
	Media Media `json:"media"`
}

// Media lists the tracks of a single file.
type Media struct {
	Ref    string  `json:"@ref"`
	Tracks []Track `json:"track"`
}

// Track is one General, Video, Audio, Text or Menu entry.
type Track struct {
	Type             string `json:"@type"`
	Format           string `json:"Format"`
	CodecID          string `json:"CodecID"`
	FormatCommercial string `json:"Format_Commercial_IfAny"`
	FrameCount       string `json:"FrameCount"`
	FrameRate        string `json:"FrameRate"`
	Duration         string `json:"Duration"`
	Width            string `json:"Width"`
	Height           string `json:"Height"`
}

// Inspect runs mediainfo against path.
func Inspect(ctx context.Context, binary, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "mediainfo"
	}
	if strings.TrimSpace(path) == "" {
		return Result{}, errors.New("mediainfo inspect: empty path")
	}
	cmd := commandContext(ctx, binary, "--Output=JSON", path)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return Result{}, fmt.Errorf("mediainfo inspect: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return Parse(output)
}

// Parse decodes mediainfo JSON output.
func Parse(output []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, fmt.Errorf("mediainfo parse: %w", err)
	}
	return result, nil
}

// VideoTracks returns the tracks typed Video.
func (r Result) VideoTracks() []Track {
	var out []Track
	for _, t := range r.Media.Tracks {
		if strings.EqualFold(t.Type, "Video") {
			out = append(out, t)
		}
	}
	return out
}

// VideoCodecs returns one identifier per video track: the codec ID, else the
// commercial name, else the format name.
func (r Result) VideoCodecs() []string {
	tracks := r.VideoTracks()
	codecs := make([]string, 0, len(tracks))
	for _, t := range tracks {
		if id := t.Identifier(); id != "" {
			codecs = append(codecs, id)
		}
	}
	return codecs
}

// Identifier picks the most specific codec name mediainfo reported.
func (t Track) Identifier() string {
	for _, v := range []string{t.CodecID, t.FormatCommercial, t.Format} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// Frames returns FrameCount when mediainfo reports one.
func (t Track) Frames() (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(t.FrameCount), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
