// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

package lang

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/marcelocantos/codebook/internal/notebook"
	"github.com/marcelocantos/codebook/internal/protocol"
	"github.com/marcelocantos/codebook/internal/supervisor"
)

// Shell runs only the active cell, never its history. POSIX-style shells
// emulate a persistent session by saving exported variable changes to a
// script that is sourced before the next run.
type Shell struct {
	name     string
	binary   string
	ext      string
	url      string
	sentinel string
	envDelta bool
}

// Bash returns the bash adapter.
func Bash() *Shell {
	return &Shell{
		name:     "bash",
		binary:   "bash",
		ext:      "sh",
		url:      "https://www.gnu.org/software/bash/",
		sentinel: "echo '" + protocol.Sentinel + "'",
		envDelta: true,
	}
}

// Zsh returns the zsh adapter.
func Zsh() *Shell {
	return &Shell{
		name:     "zsh",
		binary:   "zsh",
		ext:      "zsh",
		url:      "https://github.com/ohmyzsh/ohmyzsh/wiki/Installing-ZSH",
		sentinel: "echo '" + protocol.Sentinel + "'",
		envDelta: true,
	}
}

// Fish returns the fish adapter.
func Fish() *Shell {
	return &Shell{
		name:     "fish",
		binary:   "fish",
		ext:      "fish",
		url:      "https://fishshell.com/",
		sentinel: "echo '" + protocol.Sentinel + "'",
	}
}

// Nushell returns the nushell adapter.
func Nushell() *Shell {
	return &Shell{
		name:     "nushell",
		binary:   "nu",
		ext:      "nu",
		url:      "https://www.nushell.sh/book/installation.html",
		sentinel: "print '" + protocol.Sentinel + "'",
	}
}

// EnvChangesFile is the session script shared by the POSIX shells.
const EnvChangesFile = "env_changes.sh"

func (s *Shell) Name() string        { return s.name }
func (s *Shell) Aliases() []string   { return notebook.Aliases(s.name) }
func (s *Shell) Description() string { return s.binary + " script of the active cell only" }
func (s *Shell) Toolchain() Toolchain {
	return Toolchain{Binaries: []string{s.binary}, InstallURL: s.url}
}

func shellDir(env Env) string { return filepath.Join(tempDir(env), "shell") }

func (s *Shell) MainFile(env Env) string {
	return filepath.Join(shellDir(env), "mdl."+s.ext)
}

func (s *Shell) Assemble(env Env, prefix []notebook.Cell) (*Program, error) {
	cells := replay(prefix)
	if len(cells) == 0 {
		return nil, errors.New("no cell to run")
	}
	active := cells[len(cells)-1]

	var b strings.Builder
	fmt.Fprintf(&b, "#!/usr/bin/env %s\n", s.binary)
	if s.envDelta {
		b.WriteString(envPreamble(shellDir(env)))
	}
	b.WriteString(s.sentinel + "\n")

	var aux []File
	f, ok := part(env, active, filepath.Base(s.MainFile(env)))
	if f != nil {
		aux = append(aux, *f)
	}
	if ok {
		for _, l := range active.Lines() {
			b.WriteString(l + "\n")
		}
	}
	return &Program{
		Language:  s.name,
		Path:      s.MainFile(env),
		Text:      b.String(),
		Aux:       aux,
		Sentinels: 1,
		Active:    1,
	}, nil
}

func (s *Shell) Launch(env Env, p *Program) supervisor.LaunchSpec {
	dir := env.DocDir
	if dir == "" {
		dir = tempDir(env)
	}
	return supervisor.LaunchSpec{
		Command: binary(env, s.Toolchain()),
		Args:    []string{p.Path},
		Dir:     dir,
	}
}

// envPreamble sources the saved session, snapshots the exported variables
// and arranges for the difference to be appended to the session on exit.
// The session is then deduplicated so each variable keeps only its last
// assignment, in order.
func envPreamble(dir string) string {
	const varName = `{ n = ($1 == "declare") ? $3 : $2; sub(/=.*/, "", n) }`
	return fmt.Sprintf(`__codebook_dir=%[1]s
mkdir -p "$__codebook_dir"
[ -f "$__codebook_dir/%[2]s" ] && . "$__codebook_dir/%[2]s"
export -p > "$__codebook_dir/env_before.sh"
__codebook_save() {
  export -p > "$__codebook_dir/env_after.sh"
  {
    grep -Fxv -f "$__codebook_dir/env_before.sh" "$__codebook_dir/env_after.sh"
    awk 'NR == FNR %[3]s NR == FNR { before[n] = 1; next } %[3]s { after[n] = 1 }
      END { for (n in before) if (!(n in after)) print "unset " n }' \
      "$__codebook_dir/env_before.sh" "$__codebook_dir/env_after.sh" | sort
  } | grep -Ev '^(declare -x|export) (PWD|OLDPWD|SHLVL|_)(=|$)' >> "$__codebook_dir/%[2]s"
  awk '%[3]s { key[NR] = n; line[NR] = $0; last[n] = NR }
    END { for (i = 1; i <= NR; i++) if (last[key[i]] == i) print line[i] }' \
    "$__codebook_dir/%[2]s" > "$__codebook_dir/%[2]s.tmp" &&
    mv "$__codebook_dir/%[2]s.tmp" "$__codebook_dir/%[2]s"
}
trap __codebook_save EXIT
`, shellQuote(dir), EnvChangesFile, varName)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
