// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"sync"

	"github.com/marcelocantos/codebook/internal/notebook"
)

// Sink receives output for the host, keyed by block handle.
type Sink interface {
	ClearOutput(h notebook.Handle)
	// ReplaceOutput sets the cell's text output, replacing what was there.
	ReplaceOutput(h notebook.Handle, text string)
	AppendError(h notebook.Handle, text string)
	// InsertCells reports blocks the kernel has already inserted into the
	// document after h.
	InsertCells(after notebook.Handle, blocks []*notebook.Block)
}

// Discard is a Sink that drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) ClearOutput(notebook.Handle)                   {}
func (discard) ReplaceOutput(notebook.Handle, string)         {}
func (discard) AppendError(notebook.Handle, string)           {}
func (discard) InsertCells(notebook.Handle, []*notebook.Block) {}

// lockedSink serializes calls from the stdout and stderr readers so hosts
// need not be safe for concurrent use. Once muted it drops everything.
type lockedSink struct {
	mu    sync.Mutex
	sink  Sink
	muted bool
}

func (s *lockedSink) mute() {
	s.mu.Lock()
	s.muted = true
	s.mu.Unlock()
}

func (s *lockedSink) ClearOutput(h notebook.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.muted {
		s.sink.ClearOutput(h)
	}
}

func (s *lockedSink) ReplaceOutput(h notebook.Handle, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.muted {
		s.sink.ReplaceOutput(h, text)
	}
}

func (s *lockedSink) AppendError(h notebook.Handle, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.muted {
		s.sink.AppendError(h, text)
	}
}

func (s *lockedSink) InsertCells(after notebook.Handle, blocks []*notebook.Block) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.muted {
		s.sink.InsertCells(after, blocks)
	}
}

// Recorder is a Sink that keeps the latest output and all errors per
// handle. It is safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	Outputs  map[notebook.Handle]string
	Errors   map[notebook.Handle]string
	Inserted map[notebook.Handle][]*notebook.Block
	// Updates counts ReplaceOutput calls.
	Updates int
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		Outputs:  make(map[notebook.Handle]string),
		Errors:   make(map[notebook.Handle]string),
		Inserted: make(map[notebook.Handle][]*notebook.Block),
	}
}

func (r *Recorder) ClearOutput(h notebook.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.Outputs, h)
	delete(r.Errors, h)
}

func (r *Recorder) ReplaceOutput(h notebook.Handle, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Outputs[h] = text
	r.Updates++
}

func (r *Recorder) AppendError(h notebook.Handle, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors[h] += text
}

func (r *Recorder) InsertCells(after notebook.Handle, blocks []*notebook.Block) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Inserted[after] = append(r.Inserted[after], blocks...)
}

// Output returns the recorded output for h.
func (r *Recorder) Output(h notebook.Handle) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Outputs[h]
}

// Error returns the recorded error text for h.
func (r *Recorder) Error(h notebook.Handle) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Errors[h]
}
