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

// Rust assembles a cargo project whose main function replays every cell.
type Rust struct{}

var rustGrammar = &Grammar{
	Decl:      regexp.MustCompile(`^(pub(\([\w:]+\))?\s+)?((async|const|unsafe|extern\s+"C")\s+)*(fn|struct|enum|trait|impl|mod|type|union|static)\b|^macro_rules!|^const\s+[A-Z_][A-Z0-9_]*\s*:|^#!\[`),
	Import:    regexp.MustCompile(`^(pub\s+)?use\s|^extern\s+crate\s`),
	Entry:     regexp.MustCompile(`^(pub\s+)?(async\s+)?fn\s+main\s*\(`),
	Attribute: regexp.MustCompile(`^#\[`),
}

var (
	rustCrateRe   = regexp.MustCompile(`^(?:pub\s+)?(?:use\s+(?:::)?|extern\s+crate\s+)(\w+)`)
	rustNoiseRe   = regexp.MustCompile(`(?m)^\s*(Compiling|Checking|Finished|Running|Updating|Locking|Downloading|Downloaded|Adding|Blocking|Fresh)\s.*(\n|$)`)
	rustBuiltin   = map[string]bool{"std": true, "core": true, "alloc": true, "crate": true, "self": true, "super": true}
	rustSkipRe    = regexp.MustCompile(`^(let|return|use|fn|pub|struct|enum|impl|trait|type|mod|const|static|if|for|while|loop|match|break|continue|unsafe)\b|^//|^\w+!|^Ok\(\(\)\)$`)
	cargoHeaderRe = regexp.MustCompile(`^\[(package|dependencies|workspace)\]`)
)

var rustPrint = printer{
	plain:       `println!("{:?}", %s);`,
	pretty:      `println!("{:#?}", %s);`,
	terminators: ";{},",
	skip:        rustSkipRe,
}

// rustPrelude routes dbg! to stdout so it stays in order with the cell
// boundaries.
const rustPrelude = `macro_rules! dbg {
    ($val:expr $(,)?) => {
        match $val {
            tmp => {
                ::std::println!("{} = {:#?}", ::std::stringify!($val), &tmp);
                tmp
            }
        }
    };
    ($($val:expr),+ $(,)?) => {
        ($(dbg!($val)),+,)
    };
}
`

const cargoPackage = `[package]
name = "codebook"
version = "0.0.1"
edition = "2021"
`

func (Rust) Name() string        { return "rust" }
func (Rust) Aliases() []string   { return notebook.Aliases("rust") }
func (Rust) Description() string { return "cargo project replaying every cell in one main" }
func (Rust) Toolchain() Toolchain {
	return Toolchain{Binaries: []string{"cargo"}, InstallURL: "https://rustup.rs"}
}

func (Rust) dir(env Env) string { return filepath.Join(tempDir(env), "rust") }

func (r Rust) MainFile(env Env) string { return filepath.Join(r.dir(env), "src", "main.rs") }

func (r Rust) Assemble(env Env, prefix []notebook.Cell) (*Program, error) {
	cells := replay(prefix)
	var (
		inner, imports, decls, body []string
		crates                      []string
		aux                         []File
		manifest                    string
	)
	seenImport := map[string]bool{}
	seenCrate := map[string]bool{}
	sig := "fn main() {"

	for _, c := range cells {
		body = append(body, fmt.Sprintf("println!(%q);", protocol.Sentinel))
		f, ok := part(env, c, "main.rs")
		if f != nil {
			aux = append(aux, *f)
		}
		if !ok {
			continue
		}
		if src := strings.TrimSpace(c.Source); cargoHeaderRe.MatchString(src) {
			manifest = src + "\n"
			continue
		}

		lines := rustGrammar.Classify(c.Lines())
		last := lastBody(lines)
		var stmt []string
		flush := func() {
			if len(stmt) == 0 {
				return
			}
			s := strings.Join(stmt, "\n")
			stmt = nil
			if seenImport[s] {
				return
			}
			seenImport[s] = true
			imports = append(imports, s)
			if m := rustCrateRe.FindStringSubmatch(s); m != nil && !rustBuiltin[m[1]] && !seenCrate[m[1]] {
				seenCrate[m[1]] = true
				crates = append(crates, m[1])
			}
		}
		for i, l := range lines {
			t := strings.TrimSpace(l.Text)
			if l.Scope != Import || rustGrammar.Import.MatchString(t) {
				flush()
			}
			switch l.Scope {
			case Import:
				stmt = append(stmt, t)
			case Decl:
				if strings.HasPrefix(t, "#![") {
					inner = append(inner, t)
				} else {
					decls = append(decls, strings.TrimRight(l.Text, " \t"))
				}
			case Entry:
				if rustGrammar.Entry.MatchString(t) {
					sig = strings.TrimSpace(strings.TrimSuffix(t, "{")) + " {"
				}
			case Body:
				text := strings.TrimRight(l.Text, " \t")
				if i == last && l.Top {
					if w, _, ok := rustPrint.wrap(text); ok {
						text = w
					}
				}
				body = append(body, text)
			}
		}
		flush()
	}

	if strings.Contains(sig, "->") {
		kept := body[:0]
		for _, l := range body {
			if strings.TrimSpace(l) != "Ok(())" {
				kept = append(kept, l)
			}
		}
		body = append(kept, "Ok(())")
	}

	var b strings.Builder
	b.WriteString("#![allow(dead_code, unused_imports, unused_macros, unused_mut, unused_variables)]\n")
	for _, l := range inner {
		b.WriteString(l + "\n")
	}
	b.WriteString(rustPrelude)
	for _, l := range imports {
		b.WriteString(l + "\n")
	}
	for _, l := range decls {
		b.WriteString(l + "\n")
	}
	b.WriteString(sig + "\n")
	for _, l := range body {
		b.WriteString(l + "\n")
	}
	b.WriteString("}\n")

	if manifest == "" {
		var m strings.Builder
		m.WriteString(cargoPackage + "\n[dependencies]\n")
		for _, c := range crates {
			fmt.Fprintf(&m, "%s = \"*\"\n", c)
		}
		manifest = m.String()
	} else if !strings.Contains(manifest, "[package]") {
		manifest = cargoPackage + "\n" + manifest
	}
	aux = append(aux, File{Path: filepath.Join(r.dir(env), "Cargo.toml"), Content: manifest})

	return &Program{
		Language:  r.Name(),
		Path:      r.MainFile(env),
		Text:      b.String(),
		Aux:       aux,
		Sentinels: len(cells),
		Active:    len(cells),
	}, nil
}

func (r Rust) Launch(env Env, p *Program) supervisor.LaunchSpec {
	return supervisor.LaunchSpec{
		Command:     binary(env, r.Toolchain()),
		Args:        []string{"run", "--manifest-path", filepath.Join(r.dir(env), "Cargo.toml")},
		Dir:         r.dir(env),
		Environment: map[string]string{"CARGO_TERM_COLOR": "never"},
	}
}

// FilterStderr drops cargo's progress chatter from a successful run. A
// failed build's stderr is the diagnostic and passes through untouched.
func (Rust) FilterStderr(stderr string, success bool) string {
	if !success {
		return stderr
	}
	return strings.TrimSpace(rustNoiseRe.ReplaceAllString(stderr, ""))
}
