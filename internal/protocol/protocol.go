// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

// Package protocol implements the output boundary convention shared by every
// language adapter: each replayed cell prints Sentinel on its own line before
// anything else, and the combined stdout of the run is split back into
// per-cell segments on those lines.
package protocol

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Sentinel is the literal printed at the start of every replayed cell.
const Sentinel = "!!output-start-cell"

// boundaryRe tolerates a stray quote and trailing blanks that some shells
// leave behind, and CRLF line endings.
var boundaryRe = regexp.MustCompile(regexp.QuoteMeta(Sentinel) + `['"]?[ \t]*\r?\n`)

// pendingRe matches a sentinel whose line has not been terminated yet.
var pendingRe = regexp.MustCompile(`^['"]?[ \t]*\r?$`)

// Segment is a piece of stdout attributed to one cell.
type Segment struct {
	Ordinal int
	Text    string
}

// State is the demultiplexer's position in the stream. The zero value is
// ready to use with no offset.
type State struct {
	// Offset is the number of leading sentinels that belong to auxiliary
	// cells. They are consumed but never attributed to a user ordinal.
	Offset int

	buf  string
	seen int
}

// Seen returns the number of sentinels consumed so far.
func (s State) Seen() int { return s.seen }

// Open returns the ordinal owning text that arrives now, or zero while the
// stream is still in its preamble or in auxiliary output.
func (s State) Open() int {
	if o := s.seen - s.Offset; s.seen > 0 && o > 0 {
		return o
	}
	return 0
}

// Step appends chunk to the buffered tail and returns every segment that is
// now framed by two sentinels. Text before the first sentinel is preamble and
// is dropped. Step does not modify s.
func Step(s State, chunk []byte) (State, []Segment) {
	s.buf += string(chunk)
	var segs []Segment
	bounds := boundaryRe.FindAllStringIndex(s.buf, -1)
	prev := 0
	for _, b := range bounds {
		if o := s.Open(); o > 0 {
			segs = append(segs, Segment{Ordinal: o, Text: s.buf[prev:b[0]]})
		}
		s.seen++
		prev = b[1]
	}
	s.buf = s.buf[prev:]
	return s, segs
}

// Close finalizes the open segment at end of stream.
func Close(s State) (State, []Segment) {
	var segs []Segment
	if o := s.Open(); o > 0 {
		segs = append(segs, Segment{Ordinal: o, Text: s.buf})
	}
	s.buf = ""
	return s, segs
}

// Live returns the still-open segment as it stands, hiding any sentinel
// whose line is not yet complete and any trailing partial UTF-8 sequence.
func Live(s State) (Segment, bool) {
	o := s.Open()
	if o == 0 {
		return Segment{}, false
	}
	return Segment{Ordinal: o, Text: trimPending(s.buf)}, true
}

func trimPending(text string) string {
	if i := strings.LastIndex(text, Sentinel); i >= 0 && pendingRe.MatchString(text[i+len(Sentinel):]) {
		text = text[:i]
	} else {
		for k := len(Sentinel) - 1; k > 0; k-- {
			if strings.HasSuffix(text, Sentinel[:k]) {
				text = text[:len(text)-k]
				break
			}
		}
	}
	for n := 1; n < utf8.UTFMax && n <= len(text); n++ {
		r := text[len(text)-n:]
		if utf8.RuneStart(r[0]) {
			if !utf8.FullRuneInString(r) {
				text = text[:len(text)-n]
			}
			break
		}
	}
	return text
}

// Split runs a complete output through Step and Close.
func Split(out string, offset int) []Segment {
	s, segs := Step(State{Offset: offset}, []byte(out))
	_, tail := Close(s)
	return append(segs, tail...)
}
