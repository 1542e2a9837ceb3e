package subtitles

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// Stats summarizes an SRT file.
type Stats struct {
	Cues  int
	First float64
	Last  float64
}

// Inspect reads an SRT file and reports its cue count and time bounds in
// seconds. Unparseable timing lines are ignored.
func Inspect(path string) (Stats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Stats{}, fmt.Errorf("read srt: %w", err)
	}
	content := strings.TrimSpace(strings.ReplaceAll(string(data), "\r\n", "\n"))
	content = strings.TrimPrefix(content, "\ufeff")
	if content == "" {
		return Stats{}, nil
	}
	var stats Stats
	for _, block := range strings.Split(content, "\n\n") {
		if strings.TrimSpace(block) != "" {
			stats.Cues++
		}
	}
	first := math.Inf(1)
	for _, line := range strings.Split(content, "\n") {
		start, end, ok := strings.Cut(line, "-->")
		if !ok {
			continue
		}
		if s, err := parseTimestamp(start); err == nil && s < first {
			first = s
		}
		// Position hints may follow the end timestamp.
		endFields := strings.Fields(end)
		if len(endFields) == 0 {
			continue
		}
		if e, err := parseTimestamp(endFields[0]); err == nil && e > stats.Last {
			stats.Last = e
		}
	}
	if !math.IsInf(first, 1) {
		stats.First = first
	}
	return stats, nil
}

// Validate returns a list of problems with an SRT file; empty means usable.
func Validate(path string) []string {
	stats, err := Inspect(path)
	if err != nil {
		return []string{fmt.Sprintf("read_error: %v", err)}
	}
	if stats.Cues == 0 {
		return []string{"empty_subtitle_file"}
	}
	if stats.First == 0 && stats.Last == 0 {
		return []string{"no_valid_timestamps"}
	}
	return nil
}

func parseTimestamp(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	value = strings.ReplaceAll(value, ".", ",")
	clock, millisText, ok := strings.Cut(value, ",")
	if !ok {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(clock, ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	seconds, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(millisText)
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	return float64(hours*3600+minutes*60+seconds) + float64(millis)/1000, nil
}
