// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

package lang

import (
	"fmt"
	"regexp"
	"strings"
)

// printer rewrites a cell's final line to print its value, the way a REPL
// echoes the last expression. A leading '!' asks for a structured print.
type printer struct {
	plain  string // format with a single %s for the expression
	pretty string
	// prelude is emitted on its own line before a pretty print.
	prelude string

	terminators string         // final characters marking a finished statement
	skip        *regexp.Regexp // statements that are never wrapped
	noCalls     bool           // a trailing call is assumed to print for itself
	column0     bool           // indented lines belong to a block
	singleToken bool
}

var assignRe = regexp.MustCompile(`^[\w.\[\]'",\s]+?\s*(\+|-|\*|/|//|%|\*\*|&|\||\^|<<|>>|&\^|@)?=[^=]|^[\w.]+\s*:=|^[\w.\[\]]+\s*(\+\+|--)$`)

// wrap returns the rewritten line and whether it changed.
func (p printer) wrap(line string) (out, prelude string, ok bool) {
	t := strings.TrimSpace(line)
	if t == "" {
		return line, "", false
	}
	if p.column0 && t != strings.TrimRight(line, " \t\r") {
		return line, "", false
	}
	if expr, found := strings.CutPrefix(t, "!"); found && expr != "" && expr[0] != '=' {
		expr = strings.TrimSuffix(strings.TrimSpace(expr), ";")
		return fmt.Sprintf(p.pretty, expr), p.prelude, true
	}
	if strings.ContainsRune(p.terminators, rune(t[len(t)-1])) {
		return line, "", false
	}
	if p.skip != nil && p.skip.MatchString(t) {
		return line, "", false
	}
	if assignRe.MatchString(t) {
		return line, "", false
	}
	if p.noCalls && strings.HasSuffix(t, ")") {
		return line, "", false
	}
	if p.singleToken && strings.ContainsAny(t, " \t") {
		return line, "", false
	}
	return fmt.Sprintf(p.plain, t), "", true
}
