// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"time"

	"github.com/marcelocantos/codebook/internal/notebook"
)

// Status is the outcome of one execution.
type Status int

const (
	Succeeded Status = iota
	Failed
	Cancelled
	// Skipped executions never started a process: skip cells and cells
	// in a language with no adapter.
	Skipped
	// Recovered means a repair process ran instead of reporting a failure.
	// The cell should be run again.
	Recovered
)

func (s Status) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	case Skipped:
		return "skipped"
	case Recovered:
		return "recovered"
	default:
		return "unknown"
	}
}

// Result reports one execution back to the host. It also carries what the
// host needs to open the generated program later.
type Result struct {
	RunID    string
	Handle   notebook.Handle
	Language string
	// GeneratedFile is the program written for this run, if any.
	GeneratedFile string
	Status        Status
	ExitCode      int
	// Output is the active cell's stdout segment; Stderr is the error
	// text shown to the host.
	Output string
	Stderr string
	// Changed lists prose blocks rewritten by the image version bump.
	Changed []notebook.Handle
	// Inserted is the number of blocks a chat reply added after the cell.
	Inserted int
	Started  time.Time
	Finished time.Time
	// Err explains a Failed or Skipped status that has no process output,
	// such as a missing toolchain.
	Err error
}

// OK reports whether the run should be shown as passing.
func (r *Result) OK() bool {
	return r.Status == Succeeded || r.Status == Skipped
}

// Duration is the wall time of the run.
func (r *Result) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}
