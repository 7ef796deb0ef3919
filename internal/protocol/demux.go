// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

package protocol

// Demuxer tracks one run's stdout. Only the active cell's output is of
// interest to a host; segments for replayed history are still reported so
// callers can inspect them.
type Demuxer struct {
	state  State
	active int
	bytes  int
	final  *Segment
}

// NewDemuxer returns a demultiplexer for a run whose active cell has the
// given ordinal and whose first offset sentinels belong to auxiliary cells.
func NewDemuxer(active, offset int) *Demuxer {
	return &Demuxer{state: State{Offset: offset}, active: active}
}

// Feed consumes a chunk of stdout and returns the segments it completed.
func (d *Demuxer) Feed(p []byte) []Segment {
	d.bytes += len(p)
	var segs []Segment
	d.state, segs = Step(d.state, p)
	d.note(segs)
	return segs
}

// Close ends the stream and returns the final segment, if any.
func (d *Demuxer) Close() []Segment {
	var segs []Segment
	d.state, segs = Close(d.state)
	d.note(segs)
	return segs
}

func (d *Demuxer) note(segs []Segment) {
	for i := range segs {
		if segs[i].Ordinal == d.active {
			seg := segs[i]
			d.final = &seg
		}
	}
}

// Live returns the active cell's in-progress text. It reports false when the
// open segment belongs to another cell.
func (d *Demuxer) Live() (string, bool) {
	seg, ok := Live(d.state)
	if !ok || seg.Ordinal != d.active {
		return "", false
	}
	return seg.Text, true
}

// Active returns the active cell's finalized text once its segment has been
// framed.
func (d *Demuxer) Active() (string, bool) {
	if d.final == nil {
		return "", false
	}
	return d.final.Text, true
}

// Bytes returns the total stdout consumed, preamble included.
func (d *Demuxer) Bytes() int { return d.bytes }

// Sentinels returns the number of sentinels seen.
func (d *Demuxer) Sentinels() int { return d.state.Seen() }
