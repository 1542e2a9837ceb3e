package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"reencode/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Priority changes and progress output are disabled.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.History.Path = filepath.Join(base, "state", "history.db")
	cfgVal.Priority.Enabled = false
	cfgVal.Encoding.Progress = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithBackend selects the encoder backend.
func WithBackend(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Encoding.Backend = name
	}
}

// WithWorkers sets the per-directory worker count.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Batch.Workers = n
	}
}

// WithKeepOriginal disables deletion of source files after a successful encode.
func WithKeepOriginal() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Encoding.DeleteOriginal = false
	}
}

// WithFakeTools writes the fake ffmpeg and ffprobe scripts into the base
// directory and points the config at them.
func WithFakeTools() ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		b.cfg.Tools.FFmpeg = WriteExecutable(b.t, binDir, "ffmpeg", FakeFFmpegScript)
		b.cfg.Tools.FFprobe = WriteExecutable(b.t, binDir, "ffprobe", FakeFFprobeScript)
	}
}

// WithStubbedBinaries writes exit-0 stub executables for the provided names
// and prepends their directory to PATH.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "stubs")
		for _, name := range names {
			WriteExecutable(b.t, binDir, name, "#!/bin/sh\nexit 0\n")
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
