// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

package lang

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	starlarkjson "go.starlark.net/lib/json"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/marcelocantos/codebook/internal/notebook"
	"github.com/marcelocantos/codebook/internal/protocol"
	"github.com/marcelocantos/codebook/internal/supervisor"
)

// Starlark runs cells in an embedded interpreter. It needs no toolchain,
// but goes through the same program file, launch spec and output streams
// as every other language.
type Starlark struct {
	once   sync.Once
	runner *starlarkRunner
}

var starlarkPrint = printer{
	plain:       `print(%s)`,
	pretty:      `print(json.indent(json.encode(%s)))`,
	terminators: ":,;\\([{",
	skip:        pyStatementRe,
	noCalls:     true,
	column0:     true,
}

func (*Starlark) Name() string         { return "starlark" }
func (*Starlark) Aliases() []string    { return notebook.Aliases("starlark") }
func (*Starlark) Description() string  { return "embedded interpreter, no toolchain required" }
func (*Starlark) Toolchain() Toolchain { return Toolchain{} }

func (s *Starlark) MainFile(env Env) string {
	return filepath.Join(tempDir(env), "starlark", "main.star")
}

func (s *Starlark) Assemble(env Env, prefix []notebook.Cell) (*Program, error) {
	cells := replay(prefix)
	var (
		b   strings.Builder
		aux []File
	)
	for _, c := range cells {
		fmt.Fprintf(&b, "print(%q)\n", protocol.Sentinel)
		f, ok := part(env, c, "main.star")
		if f != nil {
			aux = append(aux, *f)
		}
		if !ok {
			continue
		}
		writeScriptCell(&b, c.Lines(), starlarkPrint, "")
	}
	return &Program{
		Language:  s.Name(),
		Path:      s.MainFile(env),
		Text:      b.String(),
		Aux:       aux,
		Sentinels: len(cells),
		Active:    len(cells),
	}, nil
}

func (s *Starlark) Launch(env Env, p *Program) supervisor.LaunchSpec {
	return supervisor.LaunchSpec{
		Command: "starlark",
		Args:    []string{p.Path},
		Dir:     filepath.Dir(p.Path),
	}
}

// Runner returns the in-process runner for starlark programs.
func (s *Starlark) Runner() supervisor.Runner {
	s.once.Do(func() { s.runner = &starlarkRunner{} })
	return s.runner
}

var starlarkOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

type starlarkRunner struct{}

type starlarkProcess struct {
	thread *starlark.Thread
	stdout *io.PipeReader
	stderr *io.PipeReader
	killed atomic.Bool
	done   chan struct{}
	status supervisor.ExitStatus
}

// Start executes the file named by the last launch argument.
func (r *starlarkRunner) Start(ctx context.Context, spec supervisor.LaunchSpec) (supervisor.Process, error) {
	if len(spec.Args) == 0 {
		return nil, errors.New("starlark: no program file")
	}
	filename := spec.Args[len(spec.Args)-1]
	src, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("starlark: %w", err)
	}

	outR, outW := io.Pipe()
	errR, errW := io.Pipe()
	p := &starlarkProcess{stdout: outR, stderr: errR, done: make(chan struct{})}
	p.thread = &starlark.Thread{
		Name: filepath.Base(filename),
		Print: func(_ *starlark.Thread, msg string) {
			fmt.Fprintln(outW, msg)
		},
	}

	go func() {
		select {
		case <-ctx.Done():
			p.Kill()
		case <-p.done:
		}
	}()

	go func() {
		defer close(p.done)
		predeclared := starlark.StringDict{"json": starlarkjson.Module}
		_, err := starlark.ExecFileOptions(starlarkOptions, p.thread, filename, src, predeclared)
		p.status.Cancelled = p.killed.Load()
		if err != nil && !p.status.Cancelled {
			var evalErr *starlark.EvalError
			if errors.As(err, &evalErr) {
				fmt.Fprintln(errW, evalErr.Backtrace())
			} else {
				fmt.Fprintln(errW, err)
			}
			p.status.Code = 1
		}
		if p.status.Cancelled {
			p.status.Code = -1
		}
		outW.Close()
		errW.Close()
	}()
	return p, nil
}

func (p *starlarkProcess) Stdout() io.Reader { return p.stdout }
func (p *starlarkProcess) Stderr() io.Reader { return p.stderr }

func (p *starlarkProcess) Wait() supervisor.ExitStatus {
	<-p.done
	return p.status
}

func (p *starlarkProcess) Kill() {
	if p.killed.CompareAndSwap(false, true) {
		p.thread.Cancel("cancelled")
	}
}
