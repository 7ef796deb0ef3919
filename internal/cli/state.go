package cli

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/marcelocantos/codebook/internal/kernel"
	"github.com/marcelocantos/codebook/internal/notebook"
)

// State is what codebook remembers about a document between runs.
type State struct {
	Document      string    `json:"document"`
	RunID         string    `json:"run_id"`
	Language      string    `json:"language"`
	GeneratedFile string    `json:"generated_file"`
	Time          time.Time `json:"time"`
}

// StatePath returns where the state for the document at path is kept.
func StatePath(stateDir, path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	sum := sha256.Sum256([]byte(abs))
	return filepath.Join(stateDir, fmt.Sprintf("%x.json", sum[:8]))
}

// LoadState reads the state for the document at path. A document that has
// never run has no state and no error.
func LoadState(stateDir, path string) (*State, error) {
	data, err := os.ReadFile(StatePath(stateDir, path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	return &st, nil
}

// SaveState records st for its document.
func SaveState(stateDir string, st *State) error {
	if err := os.MkdirAll(stateDir, 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(StatePath(stateDir, st.Document), append(data, '\n'), 0o600)
}

// saveState remembers the program a result generated. Results that wrote
// nothing leave the previous state alone.
func (a *App) saveState(doc *notebook.Document, res *kernel.Result) {
	if a.StateDir == "" || res.GeneratedFile == "" {
		return
	}
	abs, err := filepath.Abs(doc.Path)
	if err != nil {
		abs = doc.Path
	}
	st := &State{
		Document:      abs,
		RunID:         res.RunID,
		Language:      res.Language,
		GeneratedFile: res.GeneratedFile,
		Time:          res.Finished,
	}
	if err := SaveState(a.StateDir, st); err != nil {
		a.logger().Warn("saving state", zap.Error(err))
	}
}

// RunOpen prints the program most recently generated for the document.
func (a *App) RunOpen(path string) int {
	st, err := LoadState(a.StateDir, path)
	if err != nil {
		return a.errorf("%v", err)
	}
	if st == nil {
		fmt.Fprintf(a.Stderr, "codebook: %s has not been run\n", path)
		return ExitFailed
	}
	fmt.Fprintln(a.Stdout, st.GeneratedFile)
	return ExitOK
}
