package concat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"reencode/internal/logging"
	"reencode/internal/media/ffprobe"
	"reencode/internal/services"
)

var commandContext = exec.CommandContext

// ProbeFunc inspects one input.
type ProbeFunc func(ctx context.Context, path string) (ffprobe.Result, error)

// MetadataFunc returns an input's global metadata in ffmetadata format.
type MetadataFunc func(ctx context.Context, path string) (string, error)

// MismatchError reports an input whose streams differ from the first input.
// Stream is -1 for a stream count mismatch.
type MismatchError struct {
	File   string
	Stream int
	Field  string
	Want   string
	Got    string
}

func (e *MismatchError) Error() string {
	if e.Stream < 0 {
		return fmt.Sprintf("%s: %s differs from first input: %s => %s", e.File, e.Field, e.Want, e.Got)
	}
	return fmt.Sprintf("%s: field %q in stream %d differs from first input: %s => %s", e.File, e.Field, e.Stream, e.Want, e.Got)
}

// compareFields lists the properties that must match per stream type.
var compareFields = map[string][]string{
	"video": {"codec_type", "codec_name", "width", "height"},
	"audio": {"codec_type", "codec_name", "channel_layout", "sample_rate"},
}

var defaultFields = []string{"codec_type", "codec_name"}

// Compare checks other against first stream by stream.
func Compare(first, other ffprobe.Result, file string) error {
	if len(first.Streams) != len(other.Streams) {
		return &MismatchError{
			File:   file,
			Stream: -1,
			Field:  "stream count",
			Want:   fmt.Sprint(len(first.Streams)),
			Got:    fmt.Sprint(len(other.Streams)),
		}
	}
	for i, want := range first.Streams {
		got := other.Streams[i]
		fields, ok := compareFields[strings.ToLower(want.CodecType)]
		if !ok {
			fields = defaultFields
		}
		for _, field := range fields {
			if w, g := want.Field(field), got.Field(field); w != g {
				return &MismatchError{File: file, Stream: i, Field: field, Want: w, Got: g}
			}
		}
	}
	return nil
}

// Check probes every input and compares it with the first. At least two
// inputs are required.
func Check(ctx context.Context, probe ProbeFunc, inputs []string) ([]ffprobe.Result, error) {
	if len(inputs) < 2 {
		return nil, services.Wrap(services.ErrValidation, "concat", "check", "two or more inputs required", nil)
	}
	results := make([]ffprobe.Result, 0, len(inputs))
	for i, input := range inputs {
		result, err := probe(ctx, input)
		if err != nil {
			return nil, services.Wrap(services.ErrExternalTool, "concat", "probe", input, err)
		}
		if i > 0 {
			if err := Compare(results[0], result, input); err != nil {
				return nil, err
			}
		}
		results = append(results, result)
	}
	return results, nil
}

// ListFile renders the concat demuxer input list. Single quotes inside paths
// are escaped as '\''.
func ListFile(paths []string) string {
	var b strings.Builder
	for _, p := range paths {
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(p, "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.String()
}

// Chapters appends one chapter per input to base. Times are in
// milliseconds; each chapter starts 1ms after the previous one ends.
func Chapters(base string, inputs []string, results []ffprobe.Result) string {
	var b strings.Builder
	b.WriteString(base)
	if base != "" && !strings.HasSuffix(base, "\n") {
		b.WriteString("\n")
	}
	var start int64
	for i, input := range inputs {
		duration := results[i].DurationSeconds()
		if math.IsNaN(duration) || duration < 0 {
			duration = 0
		}
		end := start + int64(math.Round(duration*1000))
		stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
		fmt.Fprintf(&b, "\n[CHAPTER]\nTIMEBASE=1/1000\nSTART=%d\nEND=%d\ntitle=%s\n", start, end, escapeMetadata(stem))
		start = end + 1
	}
	return b.String()
}

var metadataEscaper = strings.NewReplacer("\\", "\\\\", "=", "\\=", ";", "\\;", "#", "\\#", "\n", "\\\n")

func escapeMetadata(value string) string {
	return metadataEscaper.Replace(value)
}

// BuildArgs returns the ffmpeg arguments for a concat with chapter metadata.
func BuildArgs(listPath, metadataPath, output string, overwrite bool) []string {
	args := make([]string, 0, 16)
	if overwrite {
		args = append(args, "-y")
	} else {
		args = append(args, "-n")
	}
	return append(args,
		"-hide_banner",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-i", metadataPath,
		"-map", "0",
		"-c", "copy",
		"-map_metadata", "1",
		output,
	)
}

// Options describes one concat run.
type Options struct {
	Inputs       []string
	Output       string
	Overwrite    bool
	DeleteInputs bool
}

// Concatenator joins inputs with the ffmpeg concat demuxer.
type Concatenator struct {
	ffmpeg   string
	probe    ProbeFunc
	metadata MetadataFunc
	logger   *slog.Logger
}

// Option configures a Concatenator.
type Option func(*Concatenator)

// WithProbe replaces the ffprobe-backed probe.
func WithProbe(probe ProbeFunc) Option {
	return func(c *Concatenator) { c.probe = probe }
}

// WithMetadata replaces the ffmpeg-backed metadata dump.
func WithMetadata(metadata MetadataFunc) Option {
	return func(c *Concatenator) { c.metadata = metadata }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Concatenator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New constructs a Concatenator using the given binaries.
func New(ffmpegBinary, ffprobeBinary string, opts ...Option) *Concatenator {
	c := &Concatenator{
		ffmpeg: ffmpegBinary,
		probe: func(ctx context.Context, path string) (ffprobe.Result, error) {
			return ffprobe.Inspect(ctx, ffprobeBinary, path)
		},
		metadata: func(ctx context.Context, path string) (string, error) {
			return ffprobe.Metadata(ctx, ffmpegBinary, path)
		},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "concat")
	return c
}

// Run validates the inputs, writes the list and chapter files to a temp
// directory and runs ffmpeg. Temp files are always removed.
func (c *Concatenator) Run(ctx context.Context, opts Options) error {
	if strings.TrimSpace(opts.Output) == "" {
		return services.Wrap(services.ErrValidation, "concat", "run", "output required", nil)
	}
	if !opts.Overwrite {
		if _, err := os.Lstat(opts.Output); err == nil {
			return services.Wrap(services.ErrValidation, "concat", "run",
				fmt.Sprintf("output %s exists; pass overwrite to replace it", opts.Output), nil)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	inputs := make([]string, 0, len(opts.Inputs))
	for _, in := range opts.Inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			return err
		}
		inputs = append(inputs, abs)
	}
	results, err := Check(ctx, c.probe, inputs)
	if err != nil {
		return err
	}
	base, err := c.metadata(ctx, inputs[0])
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "concat", "metadata", inputs[0], err)
	}

	tmp, err := os.MkdirTemp("", "reencode-concat-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)
	listPath := filepath.Join(tmp, "inputs.txt")
	metaPath := filepath.Join(tmp, "chapters.txt")
	if err := os.WriteFile(listPath, []byte(ListFile(inputs)), 0o600); err != nil {
		return err
	}
	if err := os.WriteFile(metaPath, []byte(Chapters(base, inputs, results)), 0o600); err != nil {
		return err
	}

	args := BuildArgs(listPath, metaPath, opts.Output, opts.Overwrite)
	c.logger.Info("concatenating",
		logging.Int("inputs", len(inputs)),
		logging.String("output", opts.Output),
	)
	c.logger.Debug("ffmpeg command", logging.Any("args", args))
	cmd := commandContext(ctx, c.ffmpeg, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return services.Wrap(services.ErrExternalTool, "concat", "ffmpeg", lastLine(stderr.String()), err)
	}

	if opts.DeleteInputs {
		for _, in := range inputs {
			if err := os.Remove(in); err != nil {
				logging.WarnWithContext(c.logger, "could not delete concat input", "concat_input_delete_failed",
					logging.String("input", in),
					logging.Error(err),
					logging.String(logging.FieldImpact, "input remains next to the joined output"),
				)
			}
		}
	}
	return nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
