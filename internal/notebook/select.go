package notebook

import (
	"errors"
	"fmt"
)

// ErrNotCode is returned when a selection targets a prose block.
var ErrNotCode = errors.New("not a code block")

// Selection is the replay prefix for one execution.
type Selection struct {
	// Active is the cell being run. Its Ordinal is zero when it is excluded
	// from the prefix (a skipped cell).
	Active Cell
	// Prefix holds, in document order, the same-language cells that must be
	// replayed, ending with Active. Ordinals run 1..len(Prefix).
	Prefix []Cell
}

// Language is the active cell's language.
func (s Selection) Language() string { return s.Active.Language }

// Select returns the history that must be replayed to run the block at h:
// every code block of the same language at or before h, excluding skipped
// cells and once cells other than the active one. A restart cell discards
// everything before it.
func Select(doc *Document, h Handle) (Selection, error) {
	b := doc.Block(h)
	if b == nil {
		return Selection{}, fmt.Errorf("cell %d: out of range", h)
	}
	if b.Kind != Code {
		return Selection{}, fmt.Errorf("cell %d: %w", h, ErrNotCode)
	}

	sel := Selection{
		Active: Capture(h, b),
		Prefix: history(doc, h, b.Language, true),
	}
	if n := len(sel.Prefix); n > 0 && sel.Prefix[n-1].Handle == h {
		sel.Active = sel.Prefix[n-1]
	}
	return sel, nil
}

// History returns the replayable cells of lang at or before h, with the
// same exclusions as Select. The block at h itself is treated as history,
// not as an active cell, so a once cell there is excluded.
func History(doc *Document, h Handle, lang string) []Cell {
	if int(h) >= len(doc.Blocks) {
		h = Handle(len(doc.Blocks) - 1)
	}
	return history(doc, h, lang, false)
}

func history(doc *Document, h Handle, lang string, activeAtH bool) []Cell {
	lang = LanguageID(lang)
	var cells []Cell
	for i := 0; i <= int(h); i++ {
		blk := doc.Blocks[i]
		if blk.Kind != Code || LanguageID(blk.Language) != lang {
			continue
		}
		c := Capture(Handle(i), blk)
		active := activeAtH && i == int(h)
		switch {
		case c.Directives.Has(Skip):
			continue
		case c.Directives.Has(Once) && !active:
			continue
		}
		if c.Directives.Has(Restart) {
			cells = cells[:0]
		}
		cells = append(cells, c)
	}
	for i := range cells {
		cells[i].Ordinal = i + 1
	}
	return cells
}
