// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

package lang

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/marcelocantos/codebook/internal/notebook"
	"github.com/marcelocantos/codebook/internal/protocol"
	"github.com/marcelocantos/codebook/internal/supervisor"
)

// Python concatenates cells into one script. Nothing is hoisted; the
// document and temp directories are put on sys.path so generated and
// neighbouring modules import cleanly.
type Python struct{}

var pyStatementRe = regexp.MustCompile(`^(import|from|def|class|return|pass|raise|del|global|nonlocal|assert|if|elif|else|for|while|with|try|except|finally|async|await|yield|break|continue|lambda|match|case)\b|^#|^@|^\w+\s*:\s*\w`)

var pythonPrint = printer{
	plain:       `print(%s)`,
	pretty:      `pprint(%s)`,
	prelude:     `from pprint import pprint`,
	terminators: ":,;\\([{",
	skip:        pyStatementRe,
	noCalls:     true,
	column0:     true,
}

func (Python) Name() string        { return "python" }
func (Python) Aliases() []string   { return notebook.Aliases("python") }
func (Python) Description() string { return "single script, unbuffered" }
func (Python) Toolchain() Toolchain {
	return Toolchain{Binaries: []string{"python", "python3"}, InstallURL: "https://www.python.org/downloads/"}
}

func (Python) dir(env Env) string { return filepath.Join(tempDir(env), "python") }

func (p Python) MainFile(env Env) string { return filepath.Join(p.dir(env), "main.py") }

// ModuleName is the import name of the generated script when it is used as
// a companion module.
func (Python) ModuleName() string { return "main" }

func (p Python) Assemble(env Env, prefix []notebook.Cell) (*Program, error) {
	cells := replay(prefix)
	var (
		b   strings.Builder
		aux []File
	)
	b.WriteString("import sys\n")
	for _, dir := range sysPath(env) {
		fmt.Fprintf(&b, "sys.path.append(%s)\n", strconv.Quote(dir))
	}
	for _, c := range cells {
		fmt.Fprintf(&b, "print(%q)\n", protocol.Sentinel)
		f, ok := part(env, c, "main.py")
		if f != nil {
			aux = append(aux, *f)
		}
		if !ok {
			continue
		}
		writeScriptCell(&b, c.Lines(), pythonPrint, "")
	}
	return &Program{
		Language:  p.Name(),
		Path:      p.MainFile(env),
		Text:      b.String(),
		Aux:       aux,
		Sentinels: len(cells),
		Active:    len(cells),
	}, nil
}

func (p Python) Launch(env Env, prog *Program) supervisor.LaunchSpec {
	return supervisor.LaunchSpec{
		Command:     binary(env, p.Toolchain()),
		Args:        []string{prog.Path},
		Dir:         p.dir(env),
		Environment: map[string]string{"PYTHONUNBUFFERED": "1"},
	}
}

// tripleQuoted reports whether the last line starts inside, or leaves open,
// a triple-quoted string.
func tripleQuoted(lines []string) bool {
	open := ""
	for i, line := range lines {
		inside := open != ""
		for j := 0; j+3 <= len(line); {
			d := line[j : j+3]
			switch {
			case open == "" && (d == `"""` || d == `'''`):
				open = d
				j += 3
			case open != "" && d == open:
				open = ""
				j += 3
			default:
				j++
			}
		}
		if i == len(lines)-1 {
			return inside || open != ""
		}
	}
	return false
}

func sysPath(env Env) []string {
	var dirs []string
	if env.DocDir != "" {
		dirs = append(dirs, env.DocDir)
	}
	return append(dirs, tempDir(env))
}

// writeScriptCell writes lines under indent, print-wrapping the last one
// when the printer accepts it and it is not part of a triple-quoted string.
func writeScriptCell(b *strings.Builder, lines []string, pr printer, indent string) {
	last := len(lines) - 1
	quoted := tripleQuoted(lines)
	for i, line := range lines {
		if i == last && !quoted {
			if w, pre, ok := pr.wrap(line); ok {
				if pre != "" {
					b.WriteString(indent + pre + "\n")
				}
				line = w
			}
		}
		b.WriteString(indent + strings.TrimRight(line, " \t") + "\n")
	}
}
