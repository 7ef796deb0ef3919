// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultWaitDelay bounds how long output is drained after a kill.
const DefaultWaitDelay = 2 * time.Second

// ExecRunner runs toolchains as OS processes.
type ExecRunner struct {
	Logger    *zap.Logger
	WaitDelay time.Duration

	// CommandFunc builds the command. Tests replace it; nil means
	// exec.CommandContext.
	CommandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewExecRunner returns a runner that logs to logger.
func NewExecRunner(logger *zap.Logger) *ExecRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExecRunner{Logger: logger, WaitDelay: DefaultWaitDelay}
}

type execProcess struct {
	cmd    *exec.Cmd
	stdout *io.PipeReader
	stderr *io.PipeReader
	cancel context.CancelFunc
	killed atomic.Bool
	parent context.Context
	logger *zap.Logger

	once   sync.Once
	done   chan struct{}
	status ExitStatus
}

// Start spawns the process described by spec.
func (r *ExecRunner) Start(ctx context.Context, spec LaunchSpec) (Process, error) {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	newCmd := r.CommandFunc
	if newCmd == nil {
		newCmd = exec.CommandContext
	}

	runCtx, cancel := context.WithCancel(ctx)
	cmd := newCmd(runCtx, spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Environ(os.Environ())
	cmd.WaitDelay = r.WaitDelay
	configureProcess(cmd)

	outR, outW := io.Pipe()
	errR, errW := io.Pipe()
	cmd.Stdout = outW
	cmd.Stderr = errW

	if err := cmd.Start(); err != nil {
		cancel()
		outW.Close()
		errW.Close()
		return nil, fmt.Errorf("start %s: %w", spec.Command, err)
	}
	logger.Debug("process started",
		zap.String("command", spec.String()),
		zap.String("dir", spec.Dir),
		zap.Int("pid", cmd.Process.Pid))

	p := &execProcess{
		cmd:    cmd,
		stdout: outR,
		stderr: errR,
		cancel: cancel,
		parent: ctx,
		logger: logger,
		done:   make(chan struct{}),
	}
	go func() {
		err := cmd.Wait()
		outW.Close()
		errW.Close()
		p.status = p.exitStatus(err)
		cancel()
		logger.Debug("process exited",
			zap.String("command", spec.Command),
			zap.Int("code", p.status.Code),
			zap.Bool("cancelled", p.status.Cancelled))
		close(p.done)
	}()
	return p, nil
}

func (p *execProcess) exitStatus(err error) ExitStatus {
	st := ExitStatus{Cancelled: p.killed.Load() || p.parent.Err() != nil}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		st.Code = exitErr.ExitCode()
	case errors.Is(err, exec.ErrWaitDelay):
		// Output was still open when the process exited.
		st.Code = p.cmd.ProcessState.ExitCode()
	default:
		st.Code = -1
		st.Err = err
	}
	return st
}

func (p *execProcess) Stdout() io.Reader { return p.stdout }
func (p *execProcess) Stderr() io.Reader { return p.stderr }

func (p *execProcess) Wait() ExitStatus {
	<-p.done
	return p.status
}

func (p *execProcess) Kill() {
	p.once.Do(func() {
		select {
		case <-p.done:
			return
		default:
		}
		p.killed.Store(true)
		p.logger.Debug("killing process", zap.Int("pid", p.cmd.Process.Pid))
		p.cancel()
	})
}
