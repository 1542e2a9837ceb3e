package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
)

var commandContext = exec.CommandContext

// process is the view of a running child the monitor loop needs.
type process interface {
	Pid() int
	// Done is closed once the child has exited and been reaped.
	Done() <-chan struct{}
	// Wait returns the exit error; valid after Done is closed.
	Wait() error
	ExitCode() int
	// Terminate asks the child to exit; Kill forces it.
	Terminate() error
	Kill() error
}

type startFunc func(ctx context.Context, job Job, out io.Writer) (process, error)

type execProcess struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

func (p *execProcess) Pid() int              { return p.cmd.Process.Pid }
func (p *execProcess) Done() <-chan struct{} { return p.done }
func (p *execProcess) Wait() error           { <-p.done; return p.err }

func (p *execProcess) ExitCode() int {
	<-p.done
	if p.cmd.ProcessState == nil {
		return -1
	}
	return p.cmd.ProcessState.ExitCode()
}

// Terminate sends SIGTERM, falling back to Kill where the platform cannot
// deliver it.
func (p *execProcess) Terminate() error {
	err := p.cmd.Process.Signal(syscall.SIGTERM)
	switch {
	case err == nil, errors.Is(err, os.ErrProcessDone):
		return nil
	default:
		return p.Kill()
	}
}

func (p *execProcess) Kill() error {
	err := p.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func (p *execProcess) reap() {
	p.err = p.cmd.Wait()
	close(p.done)
}

// spawnExec starts job.Binary with combined output going to out. When the
// job carries a Progress writer, stdout is duplicated into it.
func spawnExec(priority PriorityConfig, logger *slog.Logger) startFunc {
	return func(ctx context.Context, job Job, out io.Writer) (process, error) {
		cmd := commandContext(ctx, job.Binary, job.Args...) //nolint:gosec
		cmd.Stderr = out
		cmd.Stdout = out
		if job.Progress != nil {
			if out != nil {
				cmd.Stdout = io.MultiWriter(out, job.Progress)
			} else {
				cmd.Stdout = job.Progress
			}
		}

		var err error
		switch {
		case !priority.Enabled:
			err = cmd.Start()
		case priority.Mode == PriorityParent || !childPrioritySupported:
			err = startWithParentPriority(priority.Nice, cmd.Start, logger)
		default:
			err = cmd.Start()
			if err == nil {
				applyChildPriority(cmd.Process.Pid, priority.Nice, logger)
			}
		}
		if err != nil {
			return nil, err
		}

		p := &execProcess{cmd: cmd, done: make(chan struct{})}
		go p.reap()
		return p, nil
	}
}
