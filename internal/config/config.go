package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directories owned by reencode itself (never the media tree).
type Paths struct {
	LogDir   string `toml:"log_dir"`
	StateDir string `toml:"state_dir"`
}

// Tools names the external binaries used for probing and encoding.
type Tools struct {
	FFmpeg    string `toml:"ffmpeg"`
	FFprobe   string `toml:"ffprobe"`
	MediaInfo string `toml:"mediainfo"`
}

// Encoding controls what a convert run produces.
type Encoding struct {
	Target           string `toml:"target"`
	VideoEncoder     string `toml:"video_encoder"`
	AudioCodec       string `toml:"audio_codec"`
	DefaultOutputExt string `toml:"default_output_ext"`
	EvenDimensions   bool   `toml:"even_dimensions"`
	MP4TextSubs      bool   `toml:"mp4_text_subs"`
	DeleteOriginal   bool   `toml:"delete_original"`
	Backend          string `toml:"backend"`
	Inspector        string `toml:"inspector"`
	Progress         bool   `toml:"progress"`
}

// Watchdog configures the CPU idle stall detector.
type Watchdog struct {
	IdleThresholdPercent  float64 `toml:"idle_threshold_percent"`
	IdleSamples           int     `toml:"idle_samples"`
	SampleIntervalSeconds int     `toml:"sample_interval_seconds"`
	KillGraceSeconds      int     `toml:"kill_grace_seconds"`
}

// Priority configures how encoder processes are deprioritized.
type Priority struct {
	Enabled bool   `toml:"enabled"`
	Mode    string `toml:"mode"`
	Nice    int    `toml:"nice"`
}

// Batch configures directory traversal.
type Batch struct {
	Recursive  bool     `toml:"recursive"`
	Workers    int      `toml:"workers"`
	Extensions []string `toml:"extensions"`
	Lock       bool     `toml:"lock"`
}

// History configures the SQLite run history.
type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for reencode.
//
// Configuration sections by subsystem:
//   - Paths: log and state directories
//   - Tools: ffmpeg/ffprobe/mediainfo binaries
//   - Encoding: target codec family, output container, backend
//   - Watchdog: CPU idle stall detection
//   - Priority: child process scheduling priority
//   - Batch: recursion, workers, extension allow-list
//   - History: SQLite audit log of runs
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Tools    Tools    `toml:"tools"`
	Encoding Encoding `toml:"encoding"`
	Watchdog Watchdog `toml:"watchdog"`
	Priority Priority `toml:"priority"`
	Batch    Batch    `toml:"batch"`
	History  History  `toml:"history"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: %s", strings.TrimSpace(strict.String()))
			}
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reencode.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the log and state directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.History.Enabled && c.History.Path != "" {
		if err := os.MkdirAll(filepath.Dir(c.History.Path), 0o755); err != nil {
			return fmt.Errorf("create history directory: %w", err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name.
func (c *Config) FFmpegBinary() string {
	if c == nil || strings.TrimSpace(c.Tools.FFmpeg) == "" {
		return defaultFFmpeg
	}
	return c.Tools.FFmpeg
}

// FFprobeBinary returns the ffprobe executable name used for media inspection.
func (c *Config) FFprobeBinary() string {
	if c == nil || strings.TrimSpace(c.Tools.FFprobe) == "" {
		return defaultFFprobe
	}
	return c.Tools.FFprobe
}

// MediaInfoBinary returns the mediainfo executable name.
func (c *Config) MediaInfoBinary() string {
	if c == nil || strings.TrimSpace(c.Tools.MediaInfo) == "" {
		return defaultMediaInfo
	}
	return c.Tools.MediaInfo
}

// SampleInterval returns the watchdog sampling window.
func (c *Config) SampleInterval() time.Duration {
	return time.Duration(c.Watchdog.SampleIntervalSeconds) * time.Second
}

// KillGrace returns how long a stalled encoder is given to exit after termination.
func (c *Config) KillGrace() time.Duration {
	return time.Duration(c.Watchdog.KillGraceSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultStateDir() string {
	if base, ok := os.LookupEnv("XDG_STATE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "reencode")
	}
	return "~/.local/state/reencode"
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
