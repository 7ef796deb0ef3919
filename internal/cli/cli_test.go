package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/marcelocantos/codebook/internal/audit"
	"github.com/marcelocantos/codebook/internal/kernel"
	"github.com/marcelocantos/codebook/internal/notebook"
)

const notes = "# Notes\n\n```starlark\na = 40\n```\n\n```starlark\na + 2\n```\n"

// syncBuffer is a bytes.Buffer safe to read while a run writes to it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type harness struct {
	app    *App
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	path   string
}

func newHarness(t *testing.T, content string) *harness {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	h := &harness{stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}, path: path}
	h.app = &App{
		Kernel:   kernel.New(filepath.Join(dir, "tmp"), zaptest.NewLogger(t)),
		StateDir: filepath.Join(dir, "state"),
		Logger:   zaptest.NewLogger(t),
		Stdout:   h.stdout,
		Stderr:   h.stderr,
	}
	return h
}

func TestRunCell(t *testing.T) {
	h := newHarness(t, notes)
	code := h.app.RunDocument(context.Background(), h.path, RunOptions{Cell: 2})
	assert.Equal(t, ExitOK, code)
	assert.Equal(t, "42\n", h.stdout.String())
	assert.Contains(t, h.stderr.String(), "[cell 2 starlark] succeeded")

	data, err := os.ReadFile(h.path)
	require.NoError(t, err)
	assert.Equal(t, notes, string(data), "file must be untouched without --write")
}

func TestRunWriteBack(t *testing.T) {
	h := newHarness(t, notes)
	code := h.app.RunDocument(context.Background(), h.path, RunOptions{Write: true})
	assert.Equal(t, ExitOK, code)

	doc, err := notebook.ReadFile(h.path)
	require.NoError(t, err)
	c, err := doc.CodeCell(2)
	require.NoError(t, err)
	assert.Equal(t, "42\n", doc.Block(c).Output)
}

func TestRunBadCell(t *testing.T) {
	h := newHarness(t, notes)
	assert.Equal(t, ExitUsage, h.app.RunDocument(context.Background(), h.path, RunOptions{Cell: 5}))
	assert.Contains(t, h.stderr.String(), "2 code cells")

	assert.Equal(t, ExitUsage, h.app.RunDocument(context.Background(), filepath.Join(t.TempDir(), "none.md"), RunOptions{}))
}

func TestRunFailureExitCode(t *testing.T) {
	h := newHarness(t, "```starlark\nfail(\"nope\")\n```\n")
	assert.Equal(t, ExitFailed, h.app.RunDocument(context.Background(), h.path, RunOptions{}))
	assert.Contains(t, h.stderr.String(), "nope")
}

func TestExitCode(t *testing.T) {
	res := func(s kernel.Status) *kernel.Result { return &kernel.Result{Status: s} }
	tests := []struct {
		name    string
		results []*kernel.Result
		want    int
	}{
		{"none", nil, ExitOK},
		{"skipped", []*kernel.Result{res(kernel.Succeeded), res(kernel.Skipped)}, ExitOK},
		{"failed", []*kernel.Result{res(kernel.Failed), res(kernel.Succeeded)}, ExitFailed},
		{"recovered", []*kernel.Result{res(kernel.Recovered)}, ExitFailed},
		{"cancelled wins", []*kernel.Result{res(kernel.Failed), res(kernel.Cancelled)}, ExitCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.results))
		})
	}
}

func TestOpenAfterRun(t *testing.T) {
	h := newHarness(t, notes)
	assert.Equal(t, ExitFailed, h.app.RunOpen(h.path))

	require.Equal(t, ExitOK, h.app.RunDocument(context.Background(), h.path, RunOptions{Cell: 1}))
	h.stdout.Reset()
	assert.Equal(t, ExitOK, h.app.RunOpen(h.path))
	assert.Equal(t, filepath.Join(h.app.Kernel.TempDir, "starlark", "main.star")+"\n", h.stdout.String())

	st, err := LoadState(h.app.StateDir, h.path)
	require.NoError(t, err)
	assert.Equal(t, "starlark", st.Language)
}

func TestRunCells(t *testing.T) {
	h := newHarness(t, notes+"\n```python :skip :create=x.py\nprint(1)\n```\n")
	assert.Equal(t, ExitOK, h.app.RunCells(h.path))
	lines := strings.Split(strings.TrimSpace(h.stdout.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "starlark")
	assert.Contains(t, lines[0], "a = 40")
	assert.Contains(t, lines[2], ":skip")
	assert.Contains(t, lines[2], ":create-file:x.py")
}

func TestRunLanguages(t *testing.T) {
	h := newHarness(t, notes)
	h.app.Kernel.Finder.LookPath = func(name string) (string, error) { return "/opt/bin/" + name, nil }
	assert.Equal(t, ExitOK, h.app.RunLanguages())
	out := h.stdout.String()
	assert.Contains(t, out, "rust (rs)")
	assert.Contains(t, out, "/opt/bin/cargo")
	assert.Contains(t, out, "embedded")
}

func TestTermSinkPrintsDeltas(t *testing.T) {
	doc := notebook.Parse("```python\nprint(1)\n```\n")
	var out, errOut bytes.Buffer
	s := newTermSink(doc, &out, &errOut)

	s.ReplaceOutput(0, "a\n")
	s.ReplaceOutput(0, "a\nb\n")
	s.ReplaceOutput(0, "rerun\n")
	s.AppendError(0, "warn\n")
	assert.Equal(t, "a\nb\nrerun\n", out.String())
	assert.Equal(t, "warn\n", errOut.String())
	assert.Equal(t, "rerun\n", doc.Blocks[0].Output)

	s.ClearOutput(0)
	assert.Empty(t, doc.Blocks[0].Output)
}

func TestRunAudit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	var w bytes.Buffer

	assert.Equal(t, ExitOK, RunAudit(&w, path, []string{"verify"}, 20))
	assert.Contains(t, w.String(), "verified")

	al, err := audit.NewLogger(path)
	require.NoError(t, err)
	_, err = al.Log(audit.Record{RunID: "r1", Language: "go", Status: "succeeded"})
	require.NoError(t, err)

	w.Reset()
	assert.Equal(t, ExitOK, RunAudit(&w, path, []string{"tail"}, 5))
	assert.Contains(t, w.String(), `"run_id": "r1"`)

	assert.Equal(t, ExitUsage, RunAudit(&w, path, nil, 5))
	assert.Equal(t, ExitUsage, RunAudit(&w, path, []string{"bogus"}, 5))
}

func TestWatchRunsOnSave(t *testing.T) {
	h := newHarness(t, notes)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out syncBuffer
	h.app.Stdout = &out
	h.app.Stderr = &syncBuffer{}

	done := make(chan int, 1)
	go func() { done <- h.app.Watch(ctx, h.path, 20*time.Millisecond) }()

	require.Eventually(t, func() bool { return strings.Count(out.String(), "42\n") == 1 }, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, os.WriteFile(h.path, []byte(strings.Replace(notes, "a = 40", "a = 1", 1)), 0o600))
	require.Eventually(t, func() bool { return strings.Contains(out.String(), "3\n") }, 5*time.Second, 10*time.Millisecond)

	cancel()
	assert.Equal(t, ExitOK, <-done)
}
