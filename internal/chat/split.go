// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"strings"

	"github.com/marcelocantos/codebook/internal/notebook"
)

// SplitResponse turns an assistant reply into cells. Text between fences
// becomes prose; each fenced block becomes a code cell tagged with the
// fence's language. Empty pieces are dropped.
func SplitResponse(text string) []*notebook.Block {
	var blocks []*notebook.Block
	for i, piece := range strings.Split(text, "```") {
		code := i%2 == 1 && piece != "" && piece[0] != '\n'
		if code {
			lang, body, _ := strings.Cut(piece, "\n")
			body = strings.TrimSpace(body)
			if body == "" {
				continue
			}
			blocks = append(blocks, notebook.NewCode(strings.TrimSpace(lang), body))
			continue
		}
		if t := strings.TrimSpace(piece); t != "" {
			blocks = append(blocks, notebook.NewProse(t))
		}
	}
	return blocks
}
