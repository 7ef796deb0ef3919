// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

package lang

import (
	"regexp"
	"strings"
)

// Scope says where a source line belongs in the assembled program.
type Scope int

const (
	Body   Scope = iota // statement inside the shared entry point
	Decl                // hoisted to file scope
	Import              // dependency declaration, hoisted and deduplicated
	Entry               // the cell's own entry-point wrapper, discarded
)

func (s Scope) String() string {
	switch s {
	case Decl:
		return "decl"
	case Import:
		return "import"
	case Entry:
		return "entry"
	default:
		return "body"
	}
}

// Line is one classified source line.
type Line struct {
	Text  string
	Scope Scope
	// Top is set on body lines that open and close at the outermost level
	// of the entry point. Only those may be wrapped in an implicit print.
	Top bool
}

// Grammar holds the line patterns of a brace-delimited language. Patterns
// are matched against unindented lines at the outermost level only.
type Grammar struct {
	Decl      *regexp.Regexp
	Import    *regexp.Regexp
	Entry     *regexp.Regexp
	Attribute *regexp.Regexp // attaches to the declaration that follows
}

type classifier struct {
	g       *Grammar
	state   Scope
	depth   int
	inEntry bool
	pending bool
}

// Classify runs the declaration/body state machine over one cell's lines.
// State does not carry across cells.
func (g *Grammar) Classify(lines []string) []Line {
	c := classifier{g: g}
	out := make([]Line, 0, len(lines))
	for _, line := range lines {
		out = append(out, c.next(line))
	}
	return out
}

func (c *classifier) next(line string) Line {
	t := strings.TrimSpace(line)
	d := braceDelta(t)

	switch c.state {
	case Decl, Import:
		s := c.state
		c.depth += d
		if c.depth <= 0 {
			c.state, c.depth = Body, 0
		}
		return Line{Text: line, Scope: s}
	}

	if c.inEntry {
		if c.depth+d <= 0 {
			c.inEntry, c.depth = false, 0
			if t == "}" {
				return Line{Text: line, Scope: Entry}
			}
			return Line{Text: strings.TrimSuffix(strings.TrimRight(line, " \t"), "}"), Scope: Body}
		}
		top := c.depth == 1 && d == 0
		c.depth += d
		return Line{Text: line, Scope: Body, Top: top}
	}

	indented := len(line) > 0 && (line[0] == ' ' || line[0] == '\t')
	if c.depth == 0 && !indented && t != "" {
		g := c.g
		switch {
		case g.Entry != nil && g.Entry.MatchString(t):
			c.pending = false
			if d > 0 {
				c.inEntry, c.depth = true, d
			}
			return Line{Text: line, Scope: Entry}
		case g.Attribute != nil && g.Attribute.MatchString(t):
			c.pending = true
			return Line{Text: line, Scope: Decl}
		case g.Import != nil && g.Import.MatchString(t):
			return c.open(line, Import, d)
		case c.pending || (g.Decl != nil && g.Decl.MatchString(t)):
			c.pending = false
			return c.open(line, Decl, d)
		}
	}

	top := c.depth == 0 && d == 0
	c.depth += d
	if c.depth < 0 {
		c.depth = 0
	}
	return Line{Text: line, Scope: Body, Top: top}
}

func (c *classifier) open(line string, s Scope, d int) Line {
	if d > 0 {
		c.state, c.depth = s, d
	}
	return Line{Text: line, Scope: s}
}

// braceDelta returns the net bracket depth change of a line, ignoring
// brackets inside string and character literals and after a line comment.
func braceDelta(s string) int {
	d := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"', '`':
			i = skipQuoted(s, i, c)
		case '\'':
			if j := charLiteral(s, i); j > 0 {
				i = j
			}
		case '/':
			if i+1 < len(s) && s[i+1] == '/' {
				return d
			}
		case '{', '(', '[':
			d++
		case '}', ')', ']':
			d--
		}
	}
	return d
}

// skipQuoted returns the index of the quote closing the literal opened at i.
func skipQuoted(s string, i int, q byte) int {
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			if q != '`' {
				j++
			}
		case q:
			return j
		}
	}
	return len(s)
}

// charLiteral recognizes 'x' and '\n' style literals. A lone quote, such as
// a Rust lifetime, yields 0.
func charLiteral(s string, i int) int {
	if i+2 < len(s) && s[i+1] != '\\' && s[i+2] == '\'' {
		return i + 2
	}
	if i+1 < len(s) && s[i+1] == '\\' {
		if j := strings.IndexByte(s[i+2:], '\''); j >= 0 && j < 10 {
			return i + 2 + j
		}
	}
	return 0
}
