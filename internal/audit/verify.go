package audit

import (
	"encoding/json"
	"fmt"
	"os"
)

// ChainError locates the first broken link in a log.
type ChainError struct {
	Line   int
	Reason string
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

func short(h string) string {
	if len(h) > 16 {
		return h[:16] + "..."
	}
	return h
}

// Verify checks sequence numbers and the hash chain. An empty or missing
// log is valid.
func Verify(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read audit log: %w", err)
	}

	prev := genesisHash()
	for i, line := range splitLines(data) {
		n := i + 1
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return &ChainError{Line: n, Reason: "invalid JSON: " + err.Error()}
		}
		switch {
		case e.Seq != uint64(n):
			return &ChainError{Line: n, Reason: fmt.Sprintf("sequence gap: expected %d, got %d", n, e.Seq)}
		case e.PrevHash != prev:
			return &ChainError{Line: n, Reason: fmt.Sprintf("prev_hash mismatch: expected %s, got %s", short(prev), short(e.PrevHash))}
		}
		if h := computeHash(e); e.Hash != h {
			return &ChainError{Line: n, Reason: fmt.Sprintf("hash mismatch: expected %s, got %s", short(h), short(e.Hash))}
		}
		prev = e.Hash
	}
	return nil
}

// Tail returns up to the last n entries, oldest first. n <= 0 returns all.
func Tail(path string, n int) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	lines := splitLines(data)
	if n <= 0 || n > len(lines) {
		n = len(lines)
	}
	entries := make([]Entry, 0, n)
	for _, line := range lines[len(lines)-n:] {
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}
