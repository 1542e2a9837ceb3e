package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"reencode/internal/config"
	"reencode/internal/logging"
	"reencode/internal/services"
)

// State is the lifecycle position of a supervised child.
type State int

const (
	StateSpawning State = iota
	StateRunning
	StateCompleted
	StateKilled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateSpawning:
		return "spawning"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateKilled:
		return "killed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Job describes one child process run.
type Job struct {
	Binary string
	Args   []string
	// Input is informational; Output is removed when the run is killed,
	// cancelled, or fails leaving an empty file.
	Input  string
	Output string
	// LogPath receives the child's combined stdout and stderr. Empty discards it.
	LogPath string
	// Progress, when set, also receives the child's stdout.
	Progress io.Writer
}

// Outcome summarises a finished run.
type Outcome struct {
	State       State
	ExitCode    int
	Samples     int
	IdleSamples int
	Duration    time.Duration
}

// ExitError reports a child that exited with a non-zero status.
type ExitError struct {
	Code    int
	LogPath string
	Err     error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("exited with status %d", e.Code)
	if e.LogPath != "" {
		msg += " (see " + e.LogPath + ")"
	}
	return msg
}

func (e *ExitError) Unwrap() error { return e.Err }

// PriorityConfig controls how the child's scheduling priority is lowered.
type PriorityConfig struct {
	Enabled bool
	Mode    string
	Nice    int
}

// Config carries the watchdog tuning and priority policy.
type Config struct {
	IdleThreshold  float64
	IdleLimit      int
	SampleInterval time.Duration
	KillGrace      time.Duration
	Priority       PriorityConfig
}

// DefaultConfig matches the shipped configuration defaults.
func DefaultConfig() Config {
	return Config{
		IdleThreshold:  2.0,
		IdleLimit:      20,
		SampleInterval: time.Second,
		KillGrace:      2 * time.Second,
		Priority:       PriorityConfig{Enabled: true, Mode: PriorityChild, Nice: 10},
	}
}

// ConfigFrom extracts supervisor settings from the application config.
func ConfigFrom(cfg *config.Config) Config {
	if cfg == nil {
		return DefaultConfig()
	}
	return Config{
		IdleThreshold:  cfg.Watchdog.IdleThresholdPercent,
		IdleLimit:      cfg.Watchdog.IdleSamples,
		SampleInterval: cfg.SampleInterval(),
		KillGrace:      cfg.KillGrace(),
		Priority: PriorityConfig{
			Enabled: cfg.Priority.Enabled,
			Mode:    cfg.Priority.Mode,
			Nice:    cfg.Priority.Nice,
		},
	}
}

// Supervisor runs external encoders under the CPU idle watchdog.
type Supervisor struct {
	cfg     Config
	sampler Sampler
	clock   Clock
	logger  *slog.Logger
	start   startFunc
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithSampler replaces the gopsutil CPU sampler.
func WithSampler(sampler Sampler) Option {
	return func(s *Supervisor) {
		if sampler != nil {
			s.sampler = sampler
		}
	}
}

// WithClock replaces the wall clock.
func WithClock(clock Clock) Option {
	return func(s *Supervisor) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets the logger used for lifecycle and priority messages.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a Supervisor.
func New(cfg Config, opts ...Option) *Supervisor {
	s := &Supervisor{
		cfg:     cfg,
		sampler: CPUSampler{Interval: cfg.SampleInterval},
		clock:   realClock{},
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "supervisor")
	if s.start == nil {
		s.start = spawnExec(cfg.Priority, s.logger)
	}
	return s
}

// Run spawns the job and blocks until it completes, fails, stalls, or ctx is
// cancelled. A stall returns an error matching services.ErrStalled; a non-zero
// exit returns an error wrapping *ExitError.
func (s *Supervisor) Run(ctx context.Context, job Job) (Outcome, error) {
	if strings.TrimSpace(job.Binary) == "" {
		return Outcome{State: StateFailed}, services.Wrap(services.ErrValidation, "supervisor", "spawn", "binary required", nil)
	}
	logger := logging.WithContext(ctx, s.logger)

	var out io.Writer
	if job.LogPath != "" {
		logFile, err := os.Create(job.LogPath)
		if err != nil {
			return Outcome{State: StateFailed}, services.Wrap(services.ErrExternalTool, "supervisor", "open job log", job.LogPath, err)
		}
		defer logFile.Close()
		out = logFile
	}

	started := s.clock.Now()
	proc, err := s.start(ctx, job, out)
	if err != nil {
		return Outcome{State: StateFailed, ExitCode: -1}, services.Wrap(services.ErrExternalTool, "supervisor", "spawn", job.Binary, err)
	}
	logger.Debug("child started",
		logging.Int("pid", proc.Pid()),
		logging.String("binary", job.Binary),
		logging.Any("args", job.Args),
	)

	outcome, err := s.monitor(ctx, proc, job, logger)
	outcome.Duration = s.clock.Now().Sub(started)
	return outcome, err
}

func (s *Supervisor) monitor(ctx context.Context, proc process, job Job, logger *slog.Logger) (Outcome, error) {
	watchdog := NewWatchdog(s.cfg.IdleThreshold, s.cfg.IdleLimit)
	outcome := Outcome{State: StateRunning}
	pid := proc.Pid()

	for {
		select {
		case <-proc.Done():
			return s.finish(ctx, proc, job, outcome, logger)
		case <-ctx.Done():
			return s.abort(ctx, proc, job, outcome)
		default:
		}

		percent, err := s.sampler.Sample(ctx, pid)
		switch {
		case errors.Is(err, ErrProcessGone):
			<-proc.Done()
			return s.finish(ctx, proc, job, outcome, logger)
		case err != nil:
			if ctx.Err() == nil {
				logger.Debug("cpu sample failed", logging.Int("pid", pid), logging.Error(err))
				_ = s.clock.Sleep(ctx, s.cfg.SampleInterval)
			}
			continue
		}

		outcome.Samples++
		verdict := watchdog.Observe(percent)
		outcome.IdleSamples = watchdog.Idle()
		if verdict == Stall {
			return s.kill(ctx, proc, job, outcome, percent, logger)
		}
	}
}

func (s *Supervisor) finish(ctx context.Context, proc process, job Job, outcome Outcome, logger *slog.Logger) (Outcome, error) {
	waitErr := proc.Wait()
	outcome.ExitCode = proc.ExitCode()
	if waitErr == nil && outcome.ExitCode == 0 {
		outcome.State = StateCompleted
		return outcome, nil
	}
	if ctx.Err() != nil {
		return s.abort(ctx, proc, job, outcome)
	}
	outcome.State = StateFailed
	removeIfEmpty(job.Output, logger)
	exitErr := &ExitError{Code: outcome.ExitCode, LogPath: job.LogPath, Err: waitErr}
	return outcome, services.Wrap(services.ErrExternalTool, "supervisor", job.Binary, "", exitErr)
}

func (s *Supervisor) kill(ctx context.Context, proc process, job Job, outcome Outcome, last float64, logger *slog.Logger) (Outcome, error) {
	logging.WarnWithContext(logger, "encoder stalled; killing", "encode_stalled",
		logging.Int("pid", proc.Pid()),
		logging.Int("idle_samples", outcome.IdleSamples),
		logging.Float64("cpu_percent", last),
		logging.String(logging.FieldImpact, "file is reported as failed and its partial output removed"),
		logging.String(logging.FieldErrorHint, "inspect the job log for the last ffmpeg message"),
	)
	s.terminate(ctx, proc, logger)
	outcome.State = StateKilled
	outcome.ExitCode = proc.ExitCode()
	removeOutput(job.Output, logger)

	msg := fmt.Sprintf("cpu below %.1f%% for %d consecutive samples", s.cfg.IdleThreshold, outcome.IdleSamples)
	return outcome, services.Wrap(services.ErrStalled, "supervisor", "watchdog", msg, nil)
}

// terminate sends a termination request, waits up to KillGrace for the child
// to exit, then kills it. It returns once the child has been reaped.
func (s *Supervisor) terminate(ctx context.Context, proc process, logger *slog.Logger) {
	if err := proc.Terminate(); err != nil {
		logger.Debug("terminate failed", logging.Error(err))
	}
	graceCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()
	go func() {
		select {
		case <-proc.Done():
			cancel()
		case <-graceCtx.Done():
		}
	}()
	_ = s.clock.Sleep(graceCtx, s.cfg.KillGrace)

	select {
	case <-proc.Done():
		return
	default:
	}
	logger.Debug("child ignored termination; killing", logging.Int("pid", proc.Pid()))
	if err := proc.Kill(); err != nil {
		logger.Debug("kill failed", logging.Error(err))
	}
	<-proc.Done()
}

func (s *Supervisor) abort(ctx context.Context, proc process, job Job, outcome Outcome) (Outcome, error) {
	_ = proc.Kill()
	<-proc.Done()
	outcome.State = StateKilled
	outcome.ExitCode = proc.ExitCode()
	removeOutput(job.Output, s.logger)
	return outcome, ctx.Err()
}

func removeOutput(path string, logger *slog.Logger) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.WarnWithContext(logger, "could not remove partial output", "partial_output_remove_failed",
			logging.String("output", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "a partial file is left next to the source"),
		)
	}
}

func removeIfEmpty(path string, logger *slog.Logger) {
	if path == "" {
		return
	}
	if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() && info.Size() == 0 {
		removeOutput(path, logger)
	}
}
