package encoding

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ProgressUpdate is one block of ffmpeg's -progress output.
type ProgressUpdate struct {
	Frame       int64
	TotalFrames int64
	OutTime     time.Duration
	Speed       float64
	FPS         float64
	Done        bool
}

// Percent returns completion in [0,100], or -1 when the total is unknown.
func (u ProgressUpdate) Percent() float64 {
	if u.TotalFrames <= 0 {
		return -1
	}
	p := float64(u.Frame) * 100 / float64(u.TotalFrames)
	if p > 100 {
		p = 100
	}
	if p < 0 {
		p = 0
	}
	return p
}

// ETA extrapolates the remaining time from frames per second.
func (u ProgressUpdate) ETA() time.Duration {
	if u.TotalFrames <= 0 || u.FPS <= 0 || u.Frame >= u.TotalFrames {
		return 0
	}
	remaining := float64(u.TotalFrames-u.Frame) / u.FPS
	return time.Duration(remaining * float64(time.Second))
}

// ProgressParser is an io.Writer that decodes ffmpeg -progress key=value
// lines. Each "progress=" line closes a block and invokes the callback.
type ProgressParser struct {
	mu          sync.Mutex
	buf         []byte
	current     ProgressUpdate
	totalFrames int64
	onUpdate    func(ProgressUpdate)
}

// NewProgressParser returns a parser. totalFrames may be zero when unknown.
func NewProgressParser(totalFrames int64, onUpdate func(ProgressUpdate)) *ProgressParser {
	return &ProgressParser{totalFrames: totalFrames, onUpdate: onUpdate}
}

// Write implements io.Writer.
func (p *ProgressParser) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buf = append(p.buf, data...)
	for {
		idx := bytes.IndexByte(p.buf, '\n')
		if idx < 0 {
			break
		}
		line := strings.TrimSpace(string(p.buf[:idx]))
		p.buf = p.buf[idx+1:]
		p.handleLine(line)
	}
	return len(data), nil
}

func (p *ProgressParser) handleLine(line string) {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	switch key {
	case "frame":
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			p.current.Frame = n
		}
	case "fps":
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			p.current.FPS = f
		}
	case "out_time_us", "out_time_ms":
		// ffmpeg reports both keys in microseconds.
		if n, err := strconv.ParseInt(value, 10, 64); err == nil && n >= 0 {
			p.current.OutTime = time.Duration(n) * time.Microsecond
		}
	case "speed":
		if f, err := strconv.ParseFloat(strings.TrimSuffix(value, "x"), 64); err == nil {
			p.current.Speed = f
		}
	case "progress":
		update := p.current
		update.TotalFrames = p.totalFrames
		update.Done = value == "end"
		if update.Done && update.TotalFrames > 0 && update.Frame < update.TotalFrames {
			update.Frame = update.TotalFrames
		}
		if p.onUpdate != nil {
			p.onUpdate(update)
		}
	}
}

func progressMessageText(update ProgressUpdate) string {
	percent := update.Percent()
	if percent < 0 {
		if update.OutTime > 0 {
			return fmt.Sprintf("Encoding %s", formatETA(update.OutTime))
		}
		return ""
	}
	base := fmt.Sprintf("Encoding %.1f%%", percent)
	extras := make([]string, 0, 2)
	if eta := update.ETA(); eta > 0 {
		extras = append(extras, "ETA "+formatETA(eta))
	}
	if update.Speed > 0 {
		extras = append(extras, fmt.Sprintf("@ %.1fx", update.Speed))
	}
	if len(extras) == 0 {
		return base
	}
	return fmt.Sprintf("%s (%s)", base, strings.Join(extras, ", "))
}

func formatETA(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	d = d.Round(time.Second)
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second
	parts := make([]string, 0, 3)
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 || hours > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if seconds > 0 || (hours == 0 && minutes == 0) {
		parts = append(parts, fmt.Sprintf("%ds", seconds))
	}
	return strings.Join(parts, "")
}
