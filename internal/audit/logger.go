package audit

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const genesisInput = "codebook-genesis"

// Logger appends execution records to the log, resuming the chain from the
// last entry on disk.
type Logger struct {
	mu       sync.Mutex
	path     string
	seq      uint64
	prevHash string
}

// NewLogger opens or creates the log at path.
func NewLogger(path string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	l := &Logger{path: path, prevHash: genesisHash()}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	if lines := splitLines(data); len(lines) > 0 {
		var last Entry
		if err := json.Unmarshal(lines[len(lines)-1], &last); err != nil {
			return nil, fmt.Errorf("audit log %s: last entry: %w", path, err)
		}
		l.seq, l.prevHash = last.Seq, last.Hash
	}
	return l, nil
}

// Log appends r and returns the stored entry.
func (l *Logger) Log(r Record) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := newEntry(l.seq+1, l.prevHash, r)
	e.Hash = computeHash(e)

	data, err := json.Marshal(e)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal audit entry: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return Entry{}, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return Entry{}, fmt.Errorf("write audit entry: %w", err)
	}

	l.seq, l.prevHash = e.Seq, e.Hash
	return e, nil
}

// Path returns the log file path.
func (l *Logger) Path() string { return l.path }

func genesisHash() string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(genesisInput)))
}

func computeHash(e Entry) string {
	e.Hash = ""
	data, _ := json.Marshal(e)
	return fmt.Sprintf("%x", sha256.Sum256(data))
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			if i > start {
				lines = append(lines, data[start:i])
			}
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}
