// Package notebook holds the document model: blocks parsed from markdown, the
// immutable cell snapshots captured for an execution, their directives, and the
// selection of same-language history that must be replayed to run a cell.
package notebook

import (
	"fmt"
	"strings"
)

// Kind distinguishes prose from executable blocks.
type Kind int

const (
	Markup Kind = iota
	Code
)

func (k Kind) String() string {
	if k == Code {
		return "code"
	}
	return "markup"
}

// Handle refers back to a block in the host document. For documents parsed
// from markdown it is the block's index.
type Handle int

// Block is the host's live view of one document block.
type Block struct {
	Kind     Kind
	Language string
	Content  string
	// Command is free-form metadata carrying colon-prefixed directive tokens
	// (":skip :once :create=out.json"). In markdown it follows the language
	// on the opening fence.
	Command string
	// Output is the last text output attached to a code block.
	Output string

	fence    string // language tag as written on the opening fence
	trailing int    // blank lines following the block
}

// Document is an ordered list of blocks plus the path it was loaded from.
type Document struct {
	Path   string
	Blocks []*Block

	leading        int
	noFinalNewline bool
}

// Block returns the block for h, or nil if h is out of range.
func (d *Document) Block(h Handle) *Block {
	if d == nil || int(h) < 0 || int(h) >= len(d.Blocks) {
		return nil
	}
	return d.Blocks[h]
}

// CodeHandles returns the handles of all code blocks in document order.
func (d *Document) CodeHandles() []Handle {
	var hs []Handle
	for i, b := range d.Blocks {
		if b.Kind == Code {
			hs = append(hs, Handle(i))
		}
	}
	return hs
}

// CodeCell returns the handle of the nth code block, counting from 1.
func (d *Document) CodeCell(n int) (Handle, error) {
	hs := d.CodeHandles()
	if n < 1 || n > len(hs) {
		return 0, fmt.Errorf("cell %d: document has %d code cells", n, len(hs))
	}
	return hs[n-1], nil
}

// CodeNumber is the inverse of CodeCell. It returns 0 for prose blocks.
func (d *Document) CodeNumber(h Handle) int {
	n := 0
	for i, b := range d.Blocks {
		if b.Kind == Code {
			n++
			if Handle(i) == h {
				return n
			}
		}
	}
	return 0
}

// NewProse returns a markup block followed by a blank line.
func NewProse(content string) *Block {
	return &Block{Kind: Markup, Language: "markdown", Content: content, trailing: 1}
}

// NewCode returns a code block followed by a blank line.
func NewCode(language, content string) *Block {
	return &Block{Kind: Code, Language: LanguageID(language), Content: content, trailing: 1}
}

// Insert places blocks immediately after h, separated from it by at least
// one blank line.
func (d *Document) Insert(after Handle, blocks []*Block) {
	at := int(after) + 1
	if at < 0 {
		at = 0
	}
	if at > len(d.Blocks) {
		at = len(d.Blocks)
	}
	if at > 0 && len(blocks) > 0 && d.Blocks[at-1].trailing == 0 {
		d.Blocks[at-1].trailing = 1
	}
	out := make([]*Block, 0, len(d.Blocks)+len(blocks))
	out = append(out, d.Blocks[:at]...)
	out = append(out, blocks...)
	out = append(out, d.Blocks[at:]...)
	d.Blocks = out
}

// Cell is the snapshot of a code block taken at execution time. The host's
// block may change while an execution is in flight; the cell does not.
type Cell struct {
	// Ordinal is 1-based and counts only the cells of the replay prefix.
	// It is the key used to attribute output segments back to the cell.
	Ordinal    int
	Language   string
	Source     string
	Directives Directives
	Handle     Handle
}

// Lines splits the source into lines, dropping trailing blank lines.
func (c Cell) Lines() []string {
	src := strings.TrimRight(strings.ReplaceAll(c.Source, "\r\n", "\n"), " \t\n")
	if src == "" {
		return nil
	}
	return strings.Split(src, "\n")
}

// Capture snapshots a block into a cell, parsing its directives once.
func Capture(h Handle, b *Block) Cell {
	dirs, src := ParseDirectives(b.Command, b.Content)
	return Cell{
		Language:   b.Language,
		Source:     src,
		Directives: dirs,
		Handle:     h,
	}
}
