package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/marcelocantos/codebook/internal/notebook"
)

// termSink streams output to a terminal and mirrors it into the document's
// blocks so it can be written back. The kernel serializes calls.
type termSink struct {
	doc     *notebook.Document
	stdout  io.Writer
	stderr  io.Writer
	printed map[notebook.Handle]string
}

func newTermSink(doc *notebook.Document, stdout, stderr io.Writer) *termSink {
	return &termSink{
		doc:     doc,
		stdout:  stdout,
		stderr:  stderr,
		printed: make(map[notebook.Handle]string),
	}
}

func (s *termSink) ClearOutput(h notebook.Handle) {
	delete(s.printed, h)
	if b := s.doc.Block(h); b != nil {
		b.Output = ""
	}
}

// ReplaceOutput prints only what extends the text already shown. Text that
// does not extend it is printed whole.
func (s *termSink) ReplaceOutput(h notebook.Handle, text string) {
	prev := s.printed[h]
	if rest, ok := strings.CutPrefix(text, prev); ok {
		io.WriteString(s.stdout, rest)
	} else {
		io.WriteString(s.stdout, text)
	}
	s.printed[h] = text
	if b := s.doc.Block(h); b != nil {
		b.Output = text
	}
}

func (s *termSink) AppendError(_ notebook.Handle, text string) {
	io.WriteString(s.stderr, text)
}

func (s *termSink) InsertCells(after notebook.Handle, blocks []*notebook.Block) {
	for _, b := range blocks {
		if b.Kind == notebook.Code {
			fmt.Fprintf(s.stdout, "```%s\n%s\n```\n", b.Language, b.Content)
		} else {
			fmt.Fprintln(s.stdout, b.Content)
		}
	}
}
