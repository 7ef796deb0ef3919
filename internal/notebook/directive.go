package notebook

import (
	"strings"
	"unicode"
)

// DirectiveKind is the closed set of out-of-band cell instructions.
type DirectiveKind int

const (
	Skip       DirectiveKind = iota + 1 // excluded from programs and never executed
	Once                                // replayed only when it is the active cell
	Clear                               // output is cleared after a successful run
	CreateFile                          // content is written verbatim to a named file
	Restart                             // history before this cell is discarded
	Ignore                              // body suppressed, sentinel still emitted
)

func (k DirectiveKind) String() string {
	switch k {
	case Skip:
		return "skip"
	case Once:
		return "once"
	case Clear:
		return "clear"
	case CreateFile:
		return "create-file"
	case Restart:
		return "restart"
	case Ignore:
		return "ignore"
	default:
		return "none"
	}
}

// Directive is one parsed instruction. File is set only for CreateFile.
type Directive struct {
	Kind DirectiveKind
	File string
}

func (d Directive) String() string {
	if d.Kind == CreateFile {
		return d.Kind.String() + ":" + d.File
	}
	return d.Kind.String()
}

// Directives is the set attached to a cell.
type Directives []Directive

// Has reports whether k is present.
func (ds Directives) Has(k DirectiveKind) bool {
	for _, d := range ds {
		if d.Kind == k {
			return true
		}
	}
	return false
}

// File returns the target of a CreateFile directive.
func (ds Directives) File() (string, bool) {
	for _, d := range ds {
		if d.Kind == CreateFile {
			return d.File, true
		}
	}
	return "", false
}

func (ds Directives) add(d Directive) Directives {
	if d.Kind != CreateFile && ds.Has(d.Kind) {
		return ds
	}
	return append(ds, d)
}

var commentLeaders = []string{"//", "#", "--"}

// ParseDirectives extracts directives from a block's command metadata and
// from the first line of its content. It returns the directives and the
// source with pure directive lines removed. A create-file line is kept in the
// source because the file is written from the raw content.
func ParseDirectives(command, content string) (Directives, string) {
	var ds Directives
	for _, tok := range strings.Fields(command) {
		if !strings.HasPrefix(tok, ":") {
			continue
		}
		if d, ok := parseToken(tok[1:]); ok {
			ds = ds.add(d)
		}
	}

	first, rest, hasRest := strings.Cut(content, "\n")
	line := strings.TrimSpace(first)
	if line == "" {
		return ds, content
	}

	if name, ok := FileLine(line); ok {
		return ds.add(Directive{Kind: CreateFile, File: name}), content
	}

	for _, leader := range commentLeaders {
		if !strings.HasPrefix(line, leader) {
			continue
		}
		body := strings.TrimSpace(line[len(leader):])
		if !strings.HasPrefix(body, ":") {
			break
		}
		var found Directives
		for _, tok := range strings.Fields(body) {
			d, ok := parseToken(strings.TrimPrefix(tok, ":"))
			if !ok || !strings.HasPrefix(tok, ":") {
				// Not a pure directive line; leave it as code.
				return ds, content
			}
			found = append(found, d)
		}
		for _, d := range found {
			ds = ds.add(d)
		}
		if !hasRest {
			return ds, ""
		}
		return ds, rest
	}
	return ds, content
}

// FileLine recognizes "#file:name", "//file:name" and "create-file:name"
// first lines. Whitespace is ignored.
func FileLine(line string) (string, bool) {
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, line)
	for _, leader := range append([]string{""}, commentLeaders...) {
		for _, kw := range []string{"file:", "create-file:"} {
			if leader == "" && kw == "file:" {
				continue
			}
			prefix := leader + kw
			if strings.HasPrefix(compact, prefix) && len(compact) > len(prefix) {
				return compact[len(prefix):], true
			}
		}
	}
	return "", false
}

func parseToken(tok string) (Directive, bool) {
	switch tok {
	case "skip":
		return Directive{Kind: Skip}, true
	case "once":
		return Directive{Kind: Once}, true
	case "clear", "clear-output":
		return Directive{Kind: Clear}, true
	case "restart":
		return Directive{Kind: Restart}, true
	case "ignore":
		return Directive{Kind: Ignore}, true
	}
	for _, prefix := range []string{"create=", "create-file=", "create-file:", "file:"} {
		if name, ok := strings.CutPrefix(tok, prefix); ok && name != "" {
			return Directive{Kind: CreateFile, File: name}, true
		}
	}
	return Directive{}, false
}
