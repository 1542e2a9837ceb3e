package codec

import (
	"math"
	"strconv"
	"strings"
)

// StreamTiming carries the probe fields needed to estimate a stream's frame
// count. Values are kept as the raw strings the prober reports.
type StreamTiming struct {
	CodecName         string
	NbFrames          string
	AvgFrameRate      string
	RFrameRate        string
	StartTime         string
	Duration          string
	TagDuration       string
	ContainerDuration string
}

type durationSource int

const (
	fromStream durationSource = iota
	fromTag
	fromContainer
)

// Matroska/WebM muxers leave nb_frames and the stream duration empty for
// these codecs and store the length in the DURATION tag instead.
var tagFirst = []durationSource{fromTag, fromContainer}

var frameRules = map[string][]durationSource{
	"vp8":    tagFirst,
	"vp9":    tagFirst,
	"av1":    tagFirst,
	"theora": tagFirst,
}

var defaultFrameRule = []durationSource{fromStream, fromTag, fromContainer}

// EstimateFrames returns the total frame count for a video stream. A direct
// nb_frames value wins; otherwise the per-codec rule picks the duration source
// and the result is (duration - start_time) * frame rate.
func EstimateFrames(s StreamTiming) (int64, bool) {
	if n, err := strconv.ParseInt(strings.TrimSpace(s.NbFrames), 10, 64); err == nil && n > 0 {
		return n, true
	}

	rate := ParseRate(s.AvgFrameRate)
	if rate <= 0 {
		rate = ParseRate(s.RFrameRate)
	}
	if rate <= 0 {
		return 0, false
	}

	rule, ok := frameRules[strings.ToLower(strings.TrimSpace(s.CodecName))]
	if !ok {
		rule = defaultFrameRule
	}
	for _, source := range rule {
		duration := s.duration(source)
		if duration <= 0 {
			continue
		}
		if start := parseSeconds(s.StartTime); start > 0 && start < duration {
			duration -= start
		}
		frames := int64(math.Round(duration * rate))
		if frames > 0 {
			return frames, true
		}
	}
	return 0, false
}

func (s StreamTiming) duration(source durationSource) float64 {
	switch source {
	case fromStream:
		return parseSeconds(s.Duration)
	case fromTag:
		return ParseClock(s.TagDuration)
	case fromContainer:
		return parseSeconds(s.ContainerDuration)
	default:
		return 0
	}
}

// ParseRate parses ffprobe rational rates such as "30000/1001" or "25".
func ParseRate(value string) float64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	num, den, found := strings.Cut(value, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

// ParseClock parses "HH:MM:SS.fraction" durations as written by matroska
// muxers. Plain second values are accepted too.
func ParseClock(value string) float64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	parts := strings.Split(value, ":")
	if len(parts) > 3 {
		return 0
	}
	total := 0.0
	for _, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil || v < 0 {
			return 0
		}
		total = total*60 + v
	}
	return total
}

func parseSeconds(value string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
