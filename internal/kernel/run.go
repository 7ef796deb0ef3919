// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/marcelocantos/codebook/internal/lang"
	"github.com/marcelocantos/codebook/internal/notebook"
	"github.com/marcelocantos/codebook/internal/protocol"
	"github.com/marcelocantos/codebook/internal/supervisor"
)

const readSize = 32 * 1024

// run starts the program, streams the active cell's output to the sink and
// settles the result.
func (k *Kernel) run(ctx context.Context, runner supervisor.Runner, adapter lang.Adapter, env lang.Env, prog *lang.Program, active notebook.Cell, sink Sink, res *Result, log *zap.Logger) error {
	h := active.Handle
	quiet := active.Directives.Has(notebook.Clear)
	filter, filtered := adapter.(lang.StderrFilter)
	recoverer, recovers := adapter.(lang.Recoverer)
	holdStderr := filtered || recovers

	spec := adapter.Launch(env, prog)
	proc, err := runner.Start(ctx, spec)
	if err != nil {
		return err
	}

	out := &lockedSink{sink: sink}
	stop := context.AfterFunc(ctx, func() {
		out.mute()
		proc.Kill()
	})
	defer stop()

	dm := protocol.NewDemuxer(prog.Active, prog.Offset)
	var stderr strings.Builder

	var g errgroup.Group
	g.Go(func() error {
		return drainOrKill(proc, proc.Stdout(), func(p []byte) {
			dm.Feed(p)
			if quiet {
				return
			}
			if text, ok := dm.Live(); ok && strings.TrimSpace(text) != "" {
				out.ReplaceOutput(h, text)
			}
		})
	})
	g.Go(func() error {
		return drainOrKill(proc, proc.Stderr(), func(p []byte) {
			stderr.Write(p)
			if !holdStderr {
				out.AppendError(h, string(p))
			}
		})
	})
	drainErr := g.Wait()
	status := proc.Wait()
	dm.Close()

	if !stop() || status.Cancelled {
		// The context fired; nothing more reaches the host.
		out.mute()
	}

	res.ExitCode = status.Code
	res.Stderr = stderr.String()
	if text, ok := dm.Active(); ok {
		res.Output = text
	}
	log.Debug("process closed",
		zap.Int("stdout_bytes", dm.Bytes()),
		zap.Int("sentinels", dm.Sentinels()),
		zap.Int("expected", prog.Offset+prog.Sentinels))

	if status.Cancelled || ctx.Err() != nil {
		res.Status = Cancelled
		return nil
	}
	if drainErr != nil {
		log.Warn("reading output", zap.Error(drainErr))
	}

	success := status.Success() && dm.Bytes() > 0
	if !success && recovers {
		if rec, ok := recoverer.Recover(env, res.Stderr); ok {
			return k.recover(ctx, rec, h, out, res, log)
		}
	}

	switch {
	case success && quiet:
		out.ClearOutput(h)
	case strings.TrimSpace(res.Output) != "":
		out.ReplaceOutput(h, res.Output)
	}

	if holdStderr {
		shown := res.Stderr
		if filtered {
			shown = filter.FilterStderr(shown, success)
		}
		if strings.TrimSpace(shown) != "" {
			out.AppendError(h, shown)
		}
		res.Stderr = shown
	}

	if success {
		res.Status = Succeeded
	} else {
		res.Status = Failed
		res.Err = status.Err
	}
	return nil
}

// prepare runs an adapter's preparation step. Failures are logged and the
// program runs as written.
func (k *Kernel) prepare(ctx context.Context, p lang.Preparer, env lang.Env, prog *lang.Program, log *zap.Logger) {
	tc := p.PrepareTool()
	tool, err := k.finder().Find(tc.Binaries[0], tc)
	if err != nil {
		log.Debug("preparation skipped", zap.Error(err))
		return
	}
	spec := p.Prepare(env, prog, tool)
	proc, err := k.runner().Start(ctx, spec)
	if err != nil {
		log.Warn("preparation failed to start", zap.String("command", spec.String()), zap.Error(err))
		return
	}
	var stderr strings.Builder
	var g errgroup.Group
	g.Go(func() error { return drain(proc.Stdout(), func([]byte) {}) })
	g.Go(func() error {
		return drain(proc.Stderr(), func(b []byte) { stderr.Write(b) })
	})
	_ = g.Wait()
	if status := proc.Wait(); !status.Success() {
		log.Warn("preparation failed",
			zap.String("command", spec.String()),
			zap.Int("exit_code", status.Code),
			zap.String("stderr", stderr.String()))
		return
	}
	log.Debug("prepared", zap.String("command", spec.String()))
}

// recover runs an adapter's repair process in place of reporting the
// failure that triggered it.
func (k *Kernel) recover(ctx context.Context, rec *lang.Recovery, h notebook.Handle, out Sink, res *Result, log *zap.Logger) error {
	log.Info("running recovery", zap.String("command", rec.Launch.String()))
	proc, err := k.runner().Start(ctx, rec.Launch)
	if err != nil {
		return err
	}
	var stderr strings.Builder
	var g errgroup.Group
	g.Go(func() error { return drain(proc.Stdout(), func([]byte) {}) })
	g.Go(func() error {
		return drain(proc.Stderr(), func(p []byte) { stderr.Write(p) })
	})
	_ = g.Wait()
	status := proc.Wait()

	switch {
	case status.Cancelled || ctx.Err() != nil:
		res.Status = Cancelled
	case status.Success():
		out.ReplaceOutput(h, rec.Message)
		res.Status = Recovered
	default:
		out.AppendError(h, res.Stderr+stderr.String())
		res.Status = Failed
		res.Err = status.Err
	}
	return nil
}

// drainOrKill drains r and kills proc if reading fails, so the other
// stream cannot block forever.
func drainOrKill(proc supervisor.Process, r io.Reader, fn func([]byte)) error {
	err := drain(r, fn)
	if err != nil {
		proc.Kill()
	}
	return err
}

// drain reads r to EOF, handing each chunk to fn.
func drain(r io.Reader, fn func([]byte)) error {
	buf := make([]byte, readSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			fn(buf[:n])
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, os.ErrClosed):
			return nil
		default:
			return err
		}
	}
}
