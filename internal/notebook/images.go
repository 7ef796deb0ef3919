package notebook

import (
	"regexp"
	"strconv"
)

var imgSrcRe = regexp.MustCompile(`<img src="([^"]*?)(\?version=(\d+))?"`)

// BumpImageVersions rewrites every <img src="..."> in prose blocks to carry
// an incremented ?version=N query so viewers reload images a cell may have
// regenerated. It returns the handles of the blocks it changed.
func BumpImageVersions(doc *Document) []Handle {
	var changed []Handle
	for i, b := range doc.Blocks {
		if b.Kind != Markup {
			continue
		}
		text := BumpImageText(b.Content)
		if text != b.Content {
			b.Content = text
			changed = append(changed, Handle(i))
		}
	}
	return changed
}

// BumpImageText applies the version bump to a single piece of markup.
func BumpImageText(text string) string {
	return imgSrcRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := imgSrcRe.FindStringSubmatch(m)
		version := 1
		if sub[3] != "" {
			n, err := strconv.Atoi(sub[3])
			if err == nil {
				version = n + 1
			}
		}
		return `<img src="` + sub[1] + "?version=" + strconv.Itoa(version) + `"`
	})
}
