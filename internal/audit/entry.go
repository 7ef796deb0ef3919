// Package audit keeps an append-only, hash-chained JSONL log of cell
// executions.
package audit

import (
	"time"
)

// Record describes one finished execution.
type Record struct {
	RunID         string
	Document      string
	Cell          int // block index in the document
	Language      string
	GeneratedFile string
	Status        string
	ExitCode      int
	Error         string
	Duration      time.Duration
}

// Entry is a Record as stored, linked to its predecessor by hash.
type Entry struct {
	Seq           uint64    `json:"seq"`
	Time          time.Time `json:"ts"`
	PrevHash      string    `json:"prev_hash"`
	RunID         string    `json:"run_id"`
	Document      string    `json:"document"`
	Cell          int       `json:"cell"`
	Language      string    `json:"language"`
	GeneratedFile string    `json:"generated_file,omitempty"`
	Status        string    `json:"status"`
	ExitCode      int       `json:"exit_code"`
	Error         string    `json:"error,omitempty"`
	Duration      float64   `json:"duration_ms"`
	Hash          string    `json:"hash"` // SHA-256 of this entry with hash empty
}

func newEntry(seq uint64, prev string, r Record) Entry {
	return Entry{
		Seq:           seq,
		Time:          time.Now().UTC(),
		PrevHash:      prev,
		RunID:         r.RunID,
		Document:      r.Document,
		Cell:          r.Cell,
		Language:      r.Language,
		GeneratedFile: r.GeneratedFile,
		Status:        r.Status,
		ExitCode:      r.ExitCode,
		Error:         r.Error,
		Duration:      float64(r.Duration.Microseconds()) / 1000.0,
	}
}
