package verify

import (
	"bufio"
	"context"
	"errors"
	"io"
	"io/fs"
	"os/exec"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"reencode/internal/mediafile"
	"reencode/internal/services"
)

var commandContext = exec.CommandContext

var errorLine = regexp.MustCompile(`(?i)error`)

// Report is the outcome of decoding one file.
type Report struct {
	Path     string   `json:"path"`
	Errors   int      `json:"errors"`
	Lines    []string `json:"lines,omitempty"`
	ExitCode int      `json:"exit_code"`
}

// OK reports whether the decode was clean.
func (r Report) OK() bool {
	return r.Errors == 0 && r.ExitCode == 0
}

// LineFunc observes every output line together with the running error count.
// Calls are serialized.
type LineFunc func(line string, errors int)

// Check decodes path to the null muxer and counts output lines mentioning
// "error" on either stream. A non-zero exit is recorded in the report rather
// than returned; only a spawn failure or cancellation is an error.
func Check(ctx context.Context, ffmpegBinary, path string, onLine LineFunc) (Report, error) {
	if strings.TrimSpace(ffmpegBinary) == "" {
		ffmpegBinary = "ffmpeg"
	}
	report := Report{Path: path}
	cmd := commandContext(ctx, ffmpegBinary, "-v", "error", "-i", path, "-f", "null", "-") //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return report, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return report, err
	}
	if err := cmd.Start(); err != nil {
		return report, services.Wrap(services.ErrExternalTool, "verify", "start ffmpeg", path, err)
	}

	var mu sync.Mutex
	collect := func(r io.Reader) error {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			mu.Lock()
			report.Lines = append(report.Lines, line)
			if errorLine.MatchString(line) {
				report.Errors++
			}
			if onLine != nil {
				onLine(line, report.Errors)
			}
			mu.Unlock()
		}
		if err := scanner.Err(); err != nil {
			// Keep the pipe flowing so ffmpeg can exit.
			_, _ = io.Copy(io.Discard, r)
			return err
		}
		return nil
	}
	var g errgroup.Group
	g.Go(func() error { return collect(stdout) })
	g.Go(func() error { return collect(stderr) })
	readErr := g.Wait()

	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		return report, ctx.Err()
	}
	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
	case errors.As(waitErr, &exitErr):
		report.ExitCode = exitErr.ExitCode()
	default:
		return report, services.Wrap(services.ErrExternalTool, "verify", "wait ffmpeg", path, waitErr)
	}
	if readErr != nil {
		return report, services.Wrap(services.ErrExternalTool, "verify", "read output", path, readErr)
	}
	return report, nil
}

// Targets lists files under root whose base name matches pattern. An empty
// pattern selects every extension the batch filter accepts.
func Targets(root, pattern string, recursive bool) ([]string, error) {
	if pattern != "" {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return nil, services.Wrap(services.ErrValidation, "verify", "pattern", pattern, err)
		}
	}
	var targets []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if d.IsDir() {
			if path != root && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if pattern == "" {
			if _, ok := mediafile.Classify(d.Name()); ok {
				targets = append(targets, path)
			}
			return nil
		}
		if ok, _ := filepath.Match(pattern, d.Name()); ok {
			targets = append(targets, path)
		}
		return nil
	})
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "verify", "walk", root, err)
	}
	slices.Sort(targets)
	return targets, nil
}
