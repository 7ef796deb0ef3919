// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

package lang

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/marcelocantos/codebook/internal/notebook"
	"github.com/marcelocantos/codebook/internal/protocol"
	"github.com/marcelocantos/codebook/internal/supervisor"
)

// Go assembles a main package in its own module. Imports from every cell
// are merged into one block.
type Go struct{}

var goGrammar = &Grammar{
	Decl:   regexp.MustCompile(`^func\s+(\([^)]*\)\s*)?\w+|^type\s`),
	Import: regexp.MustCompile(`^import\b`),
	Entry:  regexp.MustCompile(`^func\s+main\s*\(\s*\)`),
}

var goPrint = printer{
	plain:       `fmt.Println(%s)`,
	pretty:      `fmt.Printf("%%#v\n", %s)`,
	terminators: ";{}(,",
	skip:        regexp.MustCompile(`^(var|const|type|func|return|go|defer|if|for|switch|select|break|continue|goto|fallthrough|import|package)\b|^//|^[\w.\[\]()]+\s*<-`),
	noCalls:     true,
}

// goRecoverable are stderr fragments meaning the module graph needs a tidy.
var goRecoverable = []string{
	"no required module provides package",
	"cannot find module providing package",
	"missing go.sum entry",
	"updates to go.mod needed",
}

const goModule = "module codebook\n\ngo 1.21\n"

// GoTidiedMessage replaces a run's output after a successful recovery.
const GoTidiedMessage = "Go has finished tidying modules, rerun cells now..."

func (Go) Name() string        { return "go" }
func (Go) Aliases() []string   { return notebook.Aliases("go") }
func (Go) Description() string { return "main package with merged imports, run with go run" }
func (Go) Toolchain() Toolchain {
	return Toolchain{Binaries: []string{"go"}, InstallURL: "https://go.dev/doc/install"}
}

// PrepareTool is gopls, whose imports command adds the imports cells use
// without declaring and drops unused ones.
func (Go) PrepareTool() Toolchain {
	return Toolchain{Binaries: []string{"gopls"}, InstallURL: "https://pkg.go.dev/golang.org/x/tools/gopls"}
}

func (g Go) Prepare(env Env, prog *Program, tool string) supervisor.LaunchSpec {
	return supervisor.LaunchSpec{
		Command: tool,
		Args:    []string{"imports", "-w", prog.Path},
		Dir:     g.dir(env),
	}
}

func (Go) dir(env Env) string { return filepath.Join(tempDir(env), "go") }

func (g Go) MainFile(env Env) string { return filepath.Join(g.dir(env), "main.go") }

func (g Go) Assemble(env Env, prefix []notebook.Cell) (*Program, error) {
	cells := replay(prefix)
	imports := []string{`"fmt"`, `"log"`, `"os"`}
	seen := map[string]bool{`"fmt"`: true, `"log"`: true, `"os"`: true}
	var (
		decls, body []string
		aux         []File
	)
	mod := File{Path: filepath.Join(g.dir(env), "go.mod"), Content: goModule, KeepExisting: true}

	for _, c := range cells {
		body = append(body, fmt.Sprintf("\tfmt.Println(%q)", protocol.Sentinel))
		f, ok := part(env, c, "main.go")
		if f != nil {
			aux = append(aux, *f)
		}
		if !ok {
			continue
		}
		if src := strings.TrimSpace(c.Source); strings.HasPrefix(src, "module ") {
			mod.Content, mod.KeepExisting = src+"\n", false
			continue
		}

		lines := goGrammar.Classify(c.Lines())
		last := lastBody(lines)
		for i, l := range lines {
			t := strings.TrimSpace(l.Text)
			switch l.Scope {
			case Import:
				for _, spec := range importSpecs(t) {
					if !seen[spec] {
						seen[spec] = true
						imports = append(imports, spec)
					}
				}
			case Decl:
				decls = append(decls, strings.TrimRight(l.Text, " \t"))
			case Body:
				text := strings.TrimRight(l.Text, " \t")
				if i == last && l.Top {
					if w, _, ok := goPrint.wrap(text); ok {
						text = w
					}
				}
				if text != "" && !strings.HasPrefix(text, "\t") {
					text = "\t" + text
				}
				body = append(body, text)
			}
		}
	}

	var b strings.Builder
	b.WriteString("package main\n\nimport (\n")
	for _, spec := range imports {
		b.WriteString("\t" + spec + "\n")
	}
	b.WriteString(")\n\n")
	for _, l := range decls {
		b.WriteString(l + "\n")
	}
	if len(decls) > 0 {
		b.WriteString("\n")
	}
	b.WriteString("func main() {\n\tlog.SetOutput(os.Stdout)\n")
	for _, l := range body {
		b.WriteString(l + "\n")
	}
	b.WriteString("}\n")

	return &Program{
		Language:  g.Name(),
		Path:      g.MainFile(env),
		Text:      b.String(),
		Aux:       append(aux, mod),
		Sentinels: len(cells),
		Active:    len(cells),
	}, nil
}

// importSpecs extracts the import specs on one line of an import
// declaration: `import "x"`, `import m "x"`, `import (` or a line inside
// a parenthesized group.
func importSpecs(line string) []string {
	if rest, ok := strings.CutPrefix(line, "import"); ok {
		line = strings.TrimSpace(rest)
	}
	line = strings.TrimSpace(strings.Trim(line, "()"))
	if i := strings.Index(line, "//"); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	var specs []string
	for _, s := range strings.Split(line, ";") {
		if s = strings.TrimSpace(s); s != "" {
			specs = append(specs, strings.Join(strings.Fields(s), " "))
		}
	}
	return specs
}

func (g Go) Launch(env Env, p *Program) supervisor.LaunchSpec {
	return supervisor.LaunchSpec{
		Command: binary(env, g.Toolchain()),
		Args:    []string{"run", "."},
		Dir:     g.dir(env),
	}
}

// Recover tidies the module when the build failed on missing modules.
func (g Go) Recover(env Env, stderr string) (*Recovery, bool) {
	for _, frag := range goRecoverable {
		if strings.Contains(stderr, frag) {
			return &Recovery{
				Launch: supervisor.LaunchSpec{
					Command: binary(env, g.Toolchain()),
					Args:    []string{"mod", "tidy"},
					Dir:     g.dir(env),
				},
				Message: GoTidiedMessage,
			}, true
		}
	}
	return nil, false
}
