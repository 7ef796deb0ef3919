// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

// Package lang turns a replay prefix of same-language cells into a single
// program with a boundary sentinel printed at the start of every cell, and
// describes how to run it.
package lang

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/marcelocantos/codebook/internal/notebook"
	"github.com/marcelocantos/codebook/internal/protocol"
	"github.com/marcelocantos/codebook/internal/supervisor"
)

// Env carries what an adapter needs from its surroundings.
type Env struct {
	// TempDir is the root under which generated programs are written.
	TempDir string
	// DocDir is the directory of the document being run.
	DocDir string
	// Binary is the resolved toolchain binary. Empty selects the adapter's
	// default.
	Binary string
	// Companion is an already materialized program whose output precedes
	// this one's in the same stream.
	Companion *Program
}

// File is a side-written file.
type File struct {
	Path    string
	Content string
	// KeepExisting leaves a file that is already on disk untouched.
	KeepExisting bool
}

// Program is the assembled source for one execution.
type Program struct {
	Language string
	Path     string
	Text     string
	Aux      []File

	// Sentinels is the number of boundary prints in Text.
	Sentinels int
	// Offset is the number of sentinels printed by a companion program
	// before this program's first.
	Offset int
	// Active is the ordinal, counted from 1 after Offset, of the segment
	// holding the active cell's output.
	Active int
}

// Adapter is implemented by every supported language.
type Adapter interface {
	// Name is the canonical language id used on code fences.
	Name() string
	Aliases() []string
	Description() string
	Toolchain() Toolchain
	// MainFile is where Assemble writes the program.
	MainFile(env Env) string
	Assemble(env Env, prefix []notebook.Cell) (*Program, error)
	Launch(env Env, p *Program) supervisor.LaunchSpec
}

// StderrFilter is implemented by adapters whose stderr must be held until
// exit and cleaned up before display.
type StderrFilter interface {
	FilterStderr(stderr string, success bool) string
}

// Recovery is a follow-up process run instead of reporting a failure.
type Recovery struct {
	Launch  supervisor.LaunchSpec
	Message string
}

// Recoverer is implemented by adapters that can repair the environment
// after recognizable failures.
type Recoverer interface {
	Recover(env Env, stderr string) (*Recovery, bool)
}

// Preparer is implemented by adapters with a best-effort step that rewrites
// the written program before it runs, using a tool other than the
// language's own. The step is skipped when the tool is not installed.
type Preparer interface {
	PrepareTool() Toolchain
	Prepare(env Env, prog *Program, tool string) supervisor.LaunchSpec
}

// Embedded is implemented by adapters that run in-process.
type Embedded interface {
	Runner() supervisor.Runner
}

// Companion is implemented by adapters whose program imports a program
// generated from another language's cells.
type Companion interface {
	CompanionLanguage() string
}

// Materialize writes the program and its auxiliary files.
func Materialize(p *Program) error {
	if err := writeFile(p.Path, p.Text); err != nil {
		return err
	}
	for _, f := range p.Aux {
		if f.KeepExisting {
			if _, err := os.Stat(f.Path); err == nil {
				continue
			} else if !errors.Is(err, fs.ErrNotExist) {
				return err
			}
		}
		if err := writeFile(f.Path, f.Content); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// CreateFilePath resolves a create-file target. Relative names land under
// the temp root.
func CreateFilePath(env Env, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(tempDir(env), name)
}

// FileContent is what a create-file cell writes: its source without the
// file line and without any boundary prints.
func FileContent(c notebook.Cell) string {
	lines := c.Lines()
	if len(lines) > 0 {
		if _, ok := notebook.FileLine(strings.TrimSpace(lines[0])); ok {
			lines = lines[1:]
		}
	}
	var b strings.Builder
	for _, l := range lines {
		if strings.Contains(l, protocol.Sentinel) {
			continue
		}
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return b.String()
}

// replay returns the cells that contribute to a program: skipped cells are
// dropped and nothing before the last restart survives.
func replay(prefix []notebook.Cell) []notebook.Cell {
	start := 0
	for i, c := range prefix {
		if c.Directives.Has(notebook.Restart) {
			start = i
		}
	}
	var out []notebook.Cell
	for _, c := range prefix[start:] {
		if !c.Directives.Has(notebook.Skip) {
			out = append(out, c)
		}
	}
	return out
}

// part classifies how a replayed cell contributes. A create-file cell
// yields an auxiliary file unless it names the program itself. An ignored
// cell contributes nothing but its sentinel.
func part(env Env, c notebook.Cell, mainName string) (aux *File, body bool) {
	if c.Directives.Has(notebook.Ignore) {
		return nil, false
	}
	if name, ok := c.Directives.File(); ok {
		if !filepath.IsAbs(name) && filepath.Base(name) == mainName {
			return nil, true
		}
		return &File{Path: CreateFilePath(env, name), Content: FileContent(c)}, false
	}
	return nil, true
}

// lastBody returns the index of the last non-blank body line, or -1.
func lastBody(lines []Line) int {
	for i := len(lines) - 1; i >= 0; i-- {
		if lines[i].Scope == Body && strings.TrimSpace(lines[i].Text) != "" {
			return i
		}
	}
	return -1
}

func binary(env Env, tc Toolchain) string {
	if env.Binary != "" {
		return env.Binary
	}
	if len(tc.Binaries) > 0 {
		return tc.Binaries[0]
	}
	return ""
}

func tempDir(env Env) string {
	if env.TempDir != "" {
		return env.TempDir
	}
	return filepath.Join(os.TempDir(), "codebook")
}
