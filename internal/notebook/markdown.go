package notebook

import (
	"os"
	"regexp"
	"sort"
	"strings"
)

// OutputLanguage is the fence tag used to persist a code block's output.
const OutputLanguage = "output"

// langIDs maps fence tags to language ids. The language registry resolves
// tags through LanguageID, so this is the one alias table.
var langIDs = map[string]string{
	"bat":         "batch",
	"js":          "javascript",
	"node":        "javascript",
	"ts":          "typescript",
	"py":          "python",
	"python3":     "python",
	"rs":          "rust",
	"nu":          "nushell",
	"golang":      "go",
	"sh":          "bash",
	"shell":       "bash",
	"shellscript": "bash",
	"star":        "starlark",
	"bzl":         "starlark",
	"sky":         "starlark",
	"🔥":           "mojo",
}

// fenceTags is the tag written for blocks that carry no original fence.
var fenceTags = map[string]string{
	"batch":      "bat",
	"javascript": "js",
	"typescript": "ts",
	"python":     "py",
	"rust":       "rs",
	"nushell":    "nu",
}

var (
	fenceStartRe = regexp.MustCompile("^(?:    |\t)?```(\\S+)(.*)$")
	fenceEndRe   = regexp.MustCompile("^\\s*```")
)

// ReadFile loads and parses a markdown document.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc := Parse(string(data))
	doc.Path = path
	return doc, nil
}

// WriteFile serializes doc back to its path.
func WriteFile(doc *Document) error {
	return os.WriteFile(doc.Path, []byte(Write(doc)), 0o644)
}

// Parse splits markdown into prose and fenced code blocks. A fence tagged
// "output" directly after a code block becomes that block's Output.
func Parse(content string) *Document {
	text := strings.ReplaceAll(content, "\r\n", "\n")
	doc := &Document{noFinalNewline: !strings.HasSuffix(text, "\n")}
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return doc
	}
	lines := strings.Split(text, "\n")

	i := 0
	blanks := func() int {
		start := i
		for i < len(lines) && lines[i] == "" {
			i++
		}
		return i - start
	}
	doc.leading = blanks()

	for i < len(lines) {
		if tag, command, ok := fenceStart(lines[i]); ok {
			b := &Block{Kind: Code, fence: tag, Language: LanguageID(tag), Command: command}
			b.Content = readFence(lines, &i)
			if i < len(lines) {
				if otag, _, ok := fenceStart(lines[i]); ok && otag == OutputLanguage {
					b.Output = readFence(lines, &i)
					if b.Output != "" {
						b.Output += "\n"
					}
				}
			}
			b.trailing = blanks()
			doc.Blocks = append(doc.Blocks, b)
			continue
		}

		start := i
		for i < len(lines) {
			if _, _, ok := fenceStart(lines[i]); ok {
				break
			}
			i++
		}
		end := i
		for end > start && lines[end-1] == "" {
			end--
		}
		doc.Blocks = append(doc.Blocks, &Block{
			Kind:     Markup,
			Language: "markdown",
			Content:  strings.Join(lines[start:end], "\n"),
			trailing: i - end,
		})
	}
	return doc
}

// readFence consumes an opening fence at lines[*i] through its closing fence
// (or the end of input) and returns the enclosed text.
func readFence(lines []string, i *int) string {
	*i++
	start := *i
	for *i < len(lines) && !fenceEndRe.MatchString(lines[*i]) {
		*i++
	}
	body := strings.Join(lines[start:*i], "\n")
	if *i < len(lines) {
		*i++
	}
	return body
}

func fenceStart(line string) (tag, command string, ok bool) {
	m := fenceStartRe.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	return m[1], strings.TrimSpace(m[2]), true
}

// LanguageID maps a fence tag to a language id, expanding abbreviations.
func LanguageID(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if id, ok := langIDs[tag]; ok {
		return id
	}
	return tag
}

// Aliases returns the tags that LanguageID maps to id, sorted.
func Aliases(id string) []string {
	var out []string
	for tag, to := range langIDs {
		if to == id {
			out = append(out, tag)
		}
	}
	sort.Strings(out)
	return out
}

// Write serializes doc back to markdown. Parse(Write(doc)) reproduces doc.
func Write(doc *Document) string {
	var out []string
	for n := 0; n < doc.leading; n++ {
		out = append(out, "")
	}
	for _, b := range doc.Blocks {
		if b.Kind == Code {
			out = append(out, codeLines(b)...)
		} else {
			out = append(out, b.Content)
		}
		for n := 0; n < b.trailing; n++ {
			out = append(out, "")
		}
	}
	s := strings.Join(out, "\n")
	if !doc.noFinalNewline {
		s += "\n"
	}
	return s
}

func codeLines(b *Block) []string {
	tag := b.fence
	if tag == "" || LanguageID(tag) != b.Language {
		tag = b.Language
		if abbrev, ok := fenceTags[b.Language]; ok {
			tag = abbrev
		}
	}
	open := "```" + tag
	if b.Command != "" {
		open += " " + b.Command
	}
	lines := []string{open, b.Content, "```"}
	if out := strings.TrimSuffix(b.Output, "\n"); strings.TrimSpace(out) != "" {
		lines = append(lines, "```"+OutputLanguage, out, "```")
	}
	return lines
}
