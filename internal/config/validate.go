package config

import (
	"errors"
	"fmt"
	"strings"

	"reencode/internal/codec"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateEncoding(); err != nil {
		return err
	}
	if err := c.validateWatchdog(); err != nil {
		return err
	}
	if err := c.validatePriority(); err != nil {
		return err
	}
	if err := c.validateBatch(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateEncoding() error {
	family, ok := codec.Lookup(c.Encoding.Target)
	if !ok {
		return fmt.Errorf("encoding.target %q is not a known codec family (%s)", c.Encoding.Target, strings.Join(codec.FamilyNames(), ", "))
	}
	switch c.Encoding.Backend {
	case BackendFFmpeg:
	case BackendDrapto:
		if family.Name != "av1" {
			return fmt.Errorf("encoding.backend %q only produces av1 (encoding.target is %q)", BackendDrapto, c.Encoding.Target)
		}
	default:
		return fmt.Errorf("encoding.backend must be %q or %q", BackendFFmpeg, BackendDrapto)
	}
	switch c.Encoding.Inspector {
	case InspectorFFprobe, InspectorMediaInfo:
	default:
		return fmt.Errorf("encoding.inspector must be %q or %q", InspectorFFprobe, InspectorMediaInfo)
	}
	if strings.ContainsAny(c.Encoding.DefaultOutputExt, `/\ `) {
		return errors.New("encoding.default_output_ext must be a bare extension such as mp4")
	}
	return nil
}

func (c *Config) validateWatchdog() error {
	if c.Watchdog.IdleThresholdPercent <= 0 || c.Watchdog.IdleThresholdPercent >= 100 {
		return errors.New("watchdog.idle_threshold_percent must be between 0 and 100")
	}
	return ensurePositiveMap(map[string]int{
		"watchdog.idle_samples":            c.Watchdog.IdleSamples,
		"watchdog.sample_interval_seconds": c.Watchdog.SampleIntervalSeconds,
		"watchdog.kill_grace_seconds":      c.Watchdog.KillGraceSeconds,
	})
}

func (c *Config) validatePriority() error {
	switch c.Priority.Mode {
	case PriorityModeChild, PriorityModeParent:
	default:
		return fmt.Errorf("priority.mode must be %q or %q", PriorityModeChild, PriorityModeParent)
	}
	if c.Priority.Nice < 0 || c.Priority.Nice > 19 {
		return errors.New("priority.nice must be between 0 and 19")
	}
	return nil
}

func (c *Config) validateBatch() error {
	if c.Batch.Workers < 1 {
		return errors.New("batch.workers must be >= 1")
	}
	for _, ext := range c.Batch.Extensions {
		if strings.ContainsAny(ext, `/\ `) {
			return fmt.Errorf("batch.extensions entry %q must be a bare extension", ext)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be zero or positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
