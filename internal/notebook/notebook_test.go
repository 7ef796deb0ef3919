package notebook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = "# Title\n\nSome prose.\n\n```rs\nlet a = 1;\n```\n```output\n1\n```\n\n```python :skip\nprint(1)\n```\n\nMore prose.\n"

func TestParseBlocks(t *testing.T) {
	doc := Parse(sampleDoc)
	require.Len(t, doc.Blocks, 4)

	assert.Equal(t, Markup, doc.Blocks[0].Kind)
	assert.Equal(t, "# Title\n\nSome prose.", doc.Blocks[0].Content)

	rs := doc.Blocks[1]
	assert.Equal(t, Code, rs.Kind)
	assert.Equal(t, "rust", rs.Language)
	assert.Equal(t, "let a = 1;", rs.Content)
	assert.Equal(t, "1\n", rs.Output)

	py := doc.Blocks[2]
	assert.Equal(t, "python", py.Language)
	assert.Equal(t, ":skip", py.Command)

	assert.Equal(t, "More prose.", doc.Blocks[3].Content)
	assert.Equal(t, []Handle{1, 2}, doc.CodeHandles())
}

func TestWriteRoundTrip(t *testing.T) {
	for _, src := range []string{
		sampleDoc,
		"",
		"\n\nleading blanks\n",
		"no final newline",
		"```go\nfmt.Println(1)\n```",
		"```bash\necho hi\n```\n\n\n```sh\necho again\n```\n",
		"```js\n\n```\n",
	} {
		assert.Equal(t, src, Write(Parse(src)), "round trip of %q", src)
	}
}

func TestWriteUpdatedOutput(t *testing.T) {
	doc := Parse("```py\nprint(2)\n```\n")
	doc.Blocks[0].Output = "2\n"
	assert.Equal(t, "```py\nprint(2)\n```\n```output\n2\n```\n", Write(doc))

	doc.Blocks[0].Output = ""
	assert.Equal(t, "```py\nprint(2)\n```\n", Write(doc))
}

func TestWriteNewBlockUsesAbbreviation(t *testing.T) {
	doc := &Document{}
	doc.Blocks = append(doc.Blocks, &Block{Kind: Code, Language: "javascript", Content: "1"})
	assert.Equal(t, "```js\n1\n```\n", Write(doc))
}

func TestInlineFenceIsProse(t *testing.T) {
	doc := Parse("use ```js for code\n")
	require.Len(t, doc.Blocks, 1)
	assert.Equal(t, Markup, doc.Blocks[0].Kind)
}

func TestParseDirectivesCommand(t *testing.T) {
	ds, src := ParseDirectives(":skip :once :create=out.json other", "x")
	assert.True(t, ds.Has(Skip))
	assert.True(t, ds.Has(Once))
	name, ok := ds.File()
	assert.True(t, ok)
	assert.Equal(t, "out.json", name)
	assert.Equal(t, "x", src)
}

func TestParseDirectivesFirstLine(t *testing.T) {
	ds, src := ParseDirectives("", "#:restart :clear\nx = 1")
	assert.True(t, ds.Has(Restart))
	assert.True(t, ds.Has(Clear))
	assert.Equal(t, "x = 1", src)

	ds, src = ParseDirectives("", "// :ignore\nlet x = 1;")
	assert.True(t, ds.Has(Ignore))
	assert.Equal(t, "let x = 1;", src)
}

func TestParseDirectivesUnknownIsCode(t *testing.T) {
	ds, src := ParseDirectives("", "#:frobnicate\nx")
	assert.Empty(t, ds)
	assert.Equal(t, "#:frobnicate\nx", src)

	ds, src = ParseDirectives("", "# a comment\nx")
	assert.Empty(t, ds)
	assert.Equal(t, "# a comment\nx", src)
}

func TestParseDirectivesFileLine(t *testing.T) {
	content := "create-file:config.json\n{\"a\": 1}"
	ds, src := ParseDirectives("", content)
	name, ok := ds.File()
	require.True(t, ok)
	assert.Equal(t, "config.json", name)
	assert.Equal(t, content, src)

	ds, _ = ParseDirectives("", "# file: helpers.py\ndef f(): pass")
	name, _ = ds.File()
	assert.Equal(t, "helpers.py", name)
}

func code(lang, content string) *Block {
	return &Block{Kind: Code, Language: lang, Content: content}
}

func ordinals(cells []Cell) []int {
	var out []int
	for _, c := range cells {
		out = append(out, c.Ordinal)
	}
	return out
}

func TestSelectSameLanguagePrefix(t *testing.T) {
	doc := &Document{Blocks: []*Block{
		code("rust", "let a = 1;"),
		{Kind: Markup, Content: "prose"},
		code("python", "b = 2"),
		code("rust", "a + 2"),
		code("rust", "later"),
	}}
	sel, err := Select(doc, 3)
	require.NoError(t, err)
	require.Len(t, sel.Prefix, 2)
	assert.Equal(t, []int{1, 2}, ordinals(sel.Prefix))
	assert.Equal(t, Handle(0), sel.Prefix[0].Handle)
	assert.Equal(t, 2, sel.Active.Ordinal)
	assert.Equal(t, "rust", sel.Language())
}

func TestSelectSkipShiftsOrdinals(t *testing.T) {
	doc := &Document{Blocks: []*Block{
		code("go", "a := 1"),
		{Kind: Code, Language: "go", Command: ":skip", Content: "b := 2"},
		code("go", "a"),
	}}
	sel, err := Select(doc, 2)
	require.NoError(t, err)
	assert.Len(t, sel.Prefix, 2)
	assert.Equal(t, 2, sel.Active.Ordinal)
}

func TestSelectOnceOnlyWhenActive(t *testing.T) {
	doc := &Document{Blocks: []*Block{
		code("python", "#:once\nsetup()"),
		code("python", "run()"),
	}}
	sel, err := Select(doc, 1)
	require.NoError(t, err)
	require.Len(t, sel.Prefix, 1)
	assert.Equal(t, "run()", sel.Prefix[0].Source)

	sel, err = Select(doc, 0)
	require.NoError(t, err)
	require.Len(t, sel.Prefix, 1)
	assert.Equal(t, "setup()", sel.Active.Source)
	assert.Equal(t, 1, sel.Active.Ordinal)
}

func TestSelectRestartTrimsHistory(t *testing.T) {
	doc := &Document{Blocks: []*Block{
		code("rust", "let a = 1;"),
		code("rust", "//:restart\nlet b = 2;"),
		code("rust", "b"),
	}}
	sel, err := Select(doc, 2)
	require.NoError(t, err)
	require.Len(t, sel.Prefix, 2)
	assert.Equal(t, Handle(1), sel.Prefix[0].Handle)
	assert.Equal(t, "let b = 2;", sel.Prefix[0].Source)
	assert.Equal(t, 2, sel.Active.Ordinal)
}

func TestSelectSkippedActive(t *testing.T) {
	doc := &Document{Blocks: []*Block{
		code("rust", "let a = 1;"),
		{Kind: Code, Language: "rust", Command: ":skip", Content: "a"},
	}}
	sel, err := Select(doc, 1)
	require.NoError(t, err)
	assert.True(t, sel.Active.Directives.Has(Skip))
	assert.Zero(t, sel.Active.Ordinal)
}

func TestSelectErrors(t *testing.T) {
	doc := &Document{Blocks: []*Block{{Kind: Markup, Content: "x"}}}
	_, err := Select(doc, 0)
	assert.ErrorIs(t, err, ErrNotCode)
	_, err = Select(doc, 5)
	assert.Error(t, err)
}

func TestBumpImageVersions(t *testing.T) {
	doc := &Document{Blocks: []*Block{
		{Kind: Markup, Content: `<img src="plot.png" width="50">`},
		code("python", `print('<img src="x.png">')`),
		{Kind: Markup, Content: `<img src="plot.png?version=4">`},
		{Kind: Markup, Content: "no images"},
	}}
	changed := BumpImageVersions(doc)
	assert.Equal(t, []Handle{0, 2}, changed)
	assert.Equal(t, `<img src="plot.png?version=1" width="50">`, doc.Blocks[0].Content)
	assert.Equal(t, `<img src="plot.png?version=5">`, doc.Blocks[2].Content)
	assert.Equal(t, `print('<img src="x.png">')`, doc.Blocks[1].Content)
}

func TestInsert(t *testing.T) {
	doc := &Document{Blocks: []*Block{code("a", "1"), code("a", "2")}}
	doc.Insert(0, []*Block{code("b", "x")})
	require.Len(t, doc.Blocks, 3)
	assert.Equal(t, "b", doc.Blocks[1].Language)
}

func TestInsertedBlocksWriteSeparated(t *testing.T) {
	doc := Parse("```openai\nhi\n```\n```py\nprint(1)\n```\n")
	doc.Insert(0, []*Block{NewProse("Sure:"), NewCode("js", "1")})
	want := "```openai\nhi\n```\n\nSure:\n\n```js\n1\n```\n\n```py\nprint(1)\n```\n"
	assert.Equal(t, want, Write(doc))

	back := Parse(want)
	require.Len(t, back.Blocks, 4)
	assert.Equal(t, "markdown", back.Blocks[1].Language)
	assert.Equal(t, "Sure:", back.Blocks[1].Content)
}

func TestHistoryForCompanion(t *testing.T) {
	doc := &Document{Blocks: []*Block{
		code("python", "x = 1"),
		code("python", "#:once\nslow()"),
		code("mojo", "print(1)"),
		code("python", "y = 2"),
	}}
	cells := History(doc, 2, "python")
	require.Len(t, cells, 1)
	assert.Equal(t, "x = 1", cells[0].Source)

	assert.Len(t, History(doc, 99, "python"), 2)
	assert.Empty(t, History(doc, 2, "rust"))
}

func TestCodeCellNumbering(t *testing.T) {
	doc := Parse(sampleDoc)
	h, err := doc.CodeCell(2)
	require.NoError(t, err)
	assert.Equal(t, "python", doc.Block(h).Language)
	assert.Equal(t, 2, doc.CodeNumber(h))
	assert.Zero(t, doc.CodeNumber(0))

	_, err = doc.CodeCell(0)
	assert.Error(t, err)
	_, err = doc.CodeCell(3)
	assert.Error(t, err)
}

func TestSelectMergesAliases(t *testing.T) {
	doc := Parse("```python\na = 1\n```\n\n```python3\na + 1\n```\n\n```sh\necho hi\n```\n")
	assert.Equal(t, "python", doc.Blocks[1].Language)
	assert.Equal(t, "bash", doc.Blocks[2].Language)

	sel, err := Select(doc, 1)
	require.NoError(t, err)
	require.Len(t, sel.Prefix, 2)
	assert.Equal(t, "a = 1", sel.Prefix[0].Source)
	assert.Equal(t, 2, sel.Active.Ordinal)

	assert.Len(t, History(doc, 2, "py"), 2)
	assert.Contains(t, Write(doc), "```python3\na + 1\n```")
}

func TestLanguageID(t *testing.T) {
	for tag, want := range map[string]string{
		"py": "python", "Python3": "python", "shellscript": "bash", "bzl": "starlark",
		"🔥": "mojo", "node": "javascript", "json": "json",
	} {
		assert.Equal(t, want, LanguageID(tag), tag)
	}
	assert.Equal(t, []string{"py", "python3"}, Aliases("python"))
	assert.Empty(t, Aliases("json"))
}
