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

// Mojo replays cells inside one main function. When the document also has
// python cells, the generated python module is imported first so state it
// defines is available; its sentinels come first in the output.
type Mojo struct{}

var mojoMainRe = regexp.MustCompile(`^(fn|def)\s+main\s*\(\s*\)`)

var mojoPrint = printer{
	plain:       `print(%s)`,
	pretty:      `Python.import_module("pprint").pprint(%s)`,
	terminators: ":,;)",
	skip:        pyStatementRe,
	column0:     true,
	singleToken: true,
}

func (Mojo) Name() string        { return "mojo" }
func (Mojo) Aliases() []string   { return notebook.Aliases("mojo") }
func (Mojo) Description() string { return "main function importing the python companion module" }
func (Mojo) Toolchain() Toolchain {
	return Toolchain{Binaries: []string{"mojo"}, InstallURL: "https://modular.com/mojo"}
}

func (Mojo) CompanionLanguage() string { return "python" }

func (Mojo) dir(env Env) string { return filepath.Join(tempDir(env), "mojo") }

func (m Mojo) MainFile(env Env) string { return filepath.Join(m.dir(env), "main.mojo") }

func (m Mojo) Assemble(env Env, prefix []notebook.Cell) (*Program, error) {
	cells := replay(prefix)
	const indent = "    "
	var (
		b   strings.Builder
		aux []File
	)
	b.WriteString("from python import Python\n\ndef main():\n")
	b.WriteString(indent + `var sys = Python.import_module("sys")` + "\n")
	for _, dir := range sysPath(env) {
		fmt.Fprintf(&b, "%ssys.path.append(%s)\n", indent, strconv.Quote(dir))
	}
	offset := 0
	if comp := env.Companion; comp != nil && comp.Sentinels > 0 {
		fmt.Fprintf(&b, "%ssys.path.append(%s)\n", indent, strconv.Quote(filepath.Dir(comp.Path)))
		module := strings.TrimSuffix(filepath.Base(comp.Path), filepath.Ext(comp.Path))
		fmt.Fprintf(&b, "%s_ = Python.import_module(%q)\n", indent, module)
		offset = comp.Sentinels
	}

	for _, c := range cells {
		fmt.Fprintf(&b, "%sprint(%q)\n", indent, protocol.Sentinel)
		f, ok := part(env, c, "main.mojo")
		if f != nil {
			aux = append(aux, *f)
		}
		if !ok {
			continue
		}
		writeScriptCell(&b, mojoLines(c.Lines()), mojoPrint, indent)
	}
	return &Program{
		Language:  m.Name(),
		Path:      m.MainFile(env),
		Text:      b.String(),
		Aux:       aux,
		Sentinels: len(cells),
		Offset:    offset,
		Active:    len(cells),
	}, nil
}

// mojoLines drops a cell's own main wrapper and python import, dedenting
// the wrapper's body by one level so it lines up with other cells.
func mojoLines(lines []string) []string {
	var out []string
	inMain := false
	for _, l := range lines {
		t := strings.TrimSpace(l)
		switch {
		case t == "from python import Python":
			continue
		case mojoMainRe.MatchString(t) && l == strings.TrimLeft(l, " \t"):
			inMain = true
			continue
		case inMain:
			if strings.HasPrefix(l, "    ") {
				l = l[4:]
			} else if strings.HasPrefix(l, "\t") {
				l = l[1:]
			}
		}
		out = append(out, l)
	}
	return out
}

func (m Mojo) Launch(env Env, p *Program) supervisor.LaunchSpec {
	return supervisor.LaunchSpec{
		Command: binary(env, m.Toolchain()),
		Args:    []string{"run", p.Path},
		Dir:     m.dir(env),
	}
}
