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

// Script is a JavaScript-family adapter. Static imports are hoisted and
// deduplicated; everything else runs top to bottom.
type Script struct {
	name string
	desc string
	tc   Toolchain
	// ext is the program's extension, and moduleExt replaces it when the
	// program has static imports.
	ext, moduleExt string
}

// JavaScript runs cells with node.
func JavaScript() *Script {
	return &Script{
		name:      "javascript",
		desc:      "node script; ES module when cells import",
		tc:        Toolchain{Binaries: []string{"node"}, InstallURL: "https://nodejs.org/en/download/package-manager"},
		ext:       ".js",
		moduleExt: ".mjs",
	}
}

// TypeScript runs cells with tsx, falling back to ts-node.
func TypeScript() *Script {
	return &Script{
		name: "typescript",
		desc: "TypeScript run with tsx or ts-node",
		tc:   Toolchain{Binaries: []string{"tsx", "ts-node"}, InstallURL: "https://tsx.is"},
		ext:  ".ts",
	}
}

var (
	jsImportRe = regexp.MustCompile(`^import\s|^import\{`)
	jsPrint    = printer{
		plain:       `console.log(%s);`,
		pretty:      `console.dir(%s, { depth: null });`,
		terminators: ";{},(",
		skip:        regexp.MustCompile(`^(const|let|var|function|class|import|export|return|if|else|for|while|do|switch|case|throw|try|catch|finally|async|await|break|continue|interface|type|enum|declare|namespace)\b|^//|^/\*`),
		noCalls:     true,
		column0:     true,
	}
)

func (s *Script) Name() string         { return s.name }
func (s *Script) Aliases() []string    { return notebook.Aliases(s.name) }
func (s *Script) Description() string  { return s.desc }
func (s *Script) Toolchain() Toolchain { return s.tc }

func (s *Script) dir(env Env) string { return filepath.Join(tempDir(env), s.name) }

func (s *Script) MainFile(env Env) string { return filepath.Join(s.dir(env), "main"+s.ext) }

func (s *Script) Assemble(env Env, prefix []notebook.Cell) (*Program, error) {
	cells := replay(prefix)
	var (
		imports []string
		body    strings.Builder
		aux     []File
	)
	seen := map[string]bool{}
	for _, c := range cells {
		fmt.Fprintf(&body, "console.log(%q);\n", protocol.Sentinel)
		f, ok := part(env, c, filepath.Base(s.MainFile(env)))
		if f != nil {
			aux = append(aux, *f)
		}
		if !ok {
			continue
		}
		var rest []string
		for _, l := range c.Lines() {
			if jsImportRe.MatchString(l) {
				if t := strings.TrimSpace(l); !seen[t] {
					seen[t] = true
					imports = append(imports, t)
				}
				continue
			}
			rest = append(rest, l)
		}
		writeScriptCell(&body, rest, jsPrint, "")
	}

	path := s.MainFile(env)
	if len(imports) > 0 && s.moduleExt != "" {
		path = strings.TrimSuffix(path, s.ext) + s.moduleExt
	}
	var b strings.Builder
	for _, l := range imports {
		b.WriteString(l + "\n")
	}
	b.WriteString(body.String())
	return &Program{
		Language:  s.name,
		Path:      path,
		Text:      b.String(),
		Aux:       aux,
		Sentinels: len(cells),
		Active:    len(cells),
	}, nil
}

func (s *Script) Launch(env Env, p *Program) supervisor.LaunchSpec {
	return supervisor.LaunchSpec{
		Command: binary(env, s.tc),
		Args:    []string{p.Path},
		Dir:     s.dir(env),
	}
}
