package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTools()
	c.normalizeEncoding()
	c.normalizePriority()
	c.normalizeBatch()
	if err := c.normalizeHistory(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir()
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTools() {
	c.Tools.FFmpeg = strings.TrimSpace(c.Tools.FFmpeg)
	if c.Tools.FFmpeg == "" {
		c.Tools.FFmpeg = defaultFFmpeg
	}
	c.Tools.FFprobe = strings.TrimSpace(c.Tools.FFprobe)
	if c.Tools.FFprobe == "" {
		c.Tools.FFprobe = defaultFFprobe
	}
	c.Tools.MediaInfo = strings.TrimSpace(c.Tools.MediaInfo)
	if c.Tools.MediaInfo == "" {
		c.Tools.MediaInfo = defaultMediaInfo
	}
}

func (c *Config) normalizeEncoding() {
	c.Encoding.Target = strings.ToLower(strings.TrimSpace(c.Encoding.Target))
	if c.Encoding.Target == "" {
		c.Encoding.Target = defaultTarget
	}
	c.Encoding.VideoEncoder = strings.TrimSpace(c.Encoding.VideoEncoder)
	c.Encoding.AudioCodec = strings.TrimSpace(c.Encoding.AudioCodec)
	if c.Encoding.AudioCodec == "" {
		c.Encoding.AudioCodec = defaultAudioCodec
	}
	ext := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(c.Encoding.DefaultOutputExt), "."))
	if ext == "" {
		ext = defaultOutputExt
	}
	c.Encoding.DefaultOutputExt = ext
	c.Encoding.Backend = strings.ToLower(strings.TrimSpace(c.Encoding.Backend))
	if c.Encoding.Backend == "" {
		c.Encoding.Backend = defaultBackend
	}
	c.Encoding.Inspector = strings.ToLower(strings.TrimSpace(c.Encoding.Inspector))
	if c.Encoding.Inspector == "" {
		c.Encoding.Inspector = defaultInspector
	}
}

func (c *Config) normalizePriority() {
	c.Priority.Mode = strings.ToLower(strings.TrimSpace(c.Priority.Mode))
	if c.Priority.Mode == "" {
		c.Priority.Mode = defaultPriorityMode
	}
}

func (c *Config) normalizeBatch() {
	if c.Batch.Workers == 0 {
		c.Batch.Workers = defaultWorkers
	}
	seen := make(map[string]struct{}, len(c.Batch.Extensions))
	exts := make([]string, 0, len(c.Batch.Extensions))
	for _, ext := range c.Batch.Extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext == "" {
			continue
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		exts = append(exts, ext)
	}
	c.Batch.Extensions = exts
}

func (c *Config) normalizeHistory() error {
	if strings.TrimSpace(c.History.Path) == "" {
		c.History.Path = filepath.Join(c.Paths.StateDir, defaultHistoryFile)
	}
	var err error
	if c.History.Path, err = expandPath(c.History.Path); err != nil {
		return fmt.Errorf("history.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "console", "text", "pretty":
		c.Logging.Format = defaultLogFormat
	default:
		c.Logging.Format = format
	}
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}
