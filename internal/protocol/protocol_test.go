// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitTwoCells(t *testing.T) {
	out := Sentinel + "\nA\n" + Sentinel + "\nB\n"
	assert.Equal(t, []Segment{{1, "A\n"}, {2, "B\n"}}, Split(out, 0))
}

func TestSplitDropsPreamble(t *testing.T) {
	out := "warming up\n" + Sentinel + "\nA\n"
	assert.Equal(t, []Segment{{1, "A\n"}}, Split(out, 0))
}

func TestSplitOffset(t *testing.T) {
	out := Sentinel + "\npy\n" + Sentinel + "\nmojo1\n" + Sentinel + "\nmojo2\n"
	assert.Equal(t, []Segment{{1, "mojo1\n"}, {2, "mojo2\n"}}, Split(out, 1))
}

func TestSplitToleratesShellVariants(t *testing.T) {
	out := Sentinel + "'  \r\nA\r\n" + Sentinel + "\"\nB"
	assert.Equal(t, []Segment{{1, "A\r\n"}, {2, "B"}}, Split(out, 0))
}

func TestSplitEmptySegments(t *testing.T) {
	out := Sentinel + "\n" + Sentinel + "\n"
	assert.Equal(t, []Segment{{1, ""}, {2, ""}}, Split(out, 0))
	assert.Empty(t, Split("", 0))
}

func TestStepIsPure(t *testing.T) {
	s0 := State{}
	s1, segs := Step(s0, []byte(Sentinel+"\nA\n"))
	assert.Empty(t, segs)
	assert.Equal(t, 0, s0.Seen())
	assert.Equal(t, 1, s1.Seen())

	// Replaying the same input from the same state gives the same result.
	s1b, _ := Step(s0, []byte(Sentinel+"\nA\n"))
	assert.Equal(t, s1, s1b)
}

func TestStepChunkBoundaries(t *testing.T) {
	out := Sentinel + "\nhello\n" + Sentinel + "\nworld\n"
	for size := 1; size <= len(out); size++ {
		var (
			s    State
			segs []Segment
			got  []Segment
		)
		for i := 0; i < len(out); i += size {
			end := min(i+size, len(out))
			s, segs = Step(s, []byte(out[i:end]))
			got = append(got, segs...)
		}
		_, segs = Close(s)
		got = append(got, segs...)
		require.Equal(t, []Segment{{1, "hello\n"}, {2, "world\n"}}, got, "chunk size %d", size)
	}
}

func TestLiveHidesPartialSentinel(t *testing.T) {
	s, _ := Step(State{}, []byte(Sentinel+"\nabc\n!!output-st"))
	seg, ok := Live(s)
	require.True(t, ok)
	assert.Equal(t, Segment{1, "abc\n"}, seg)

	s, _ = Step(s, []byte("art-cell' "))
	seg, _ = Live(s)
	assert.Equal(t, "abc\n", seg.Text)

	s, _ = Step(s, []byte("\nnext"))
	seg, _ = Live(s)
	assert.Equal(t, Segment{2, "next"}, seg)
}

func TestLiveHidesPartialRune(t *testing.T) {
	euro := "€"
	s, _ := Step(State{}, []byte(Sentinel+"\nprice "+euro[:2]))
	seg, _ := Live(s)
	assert.Equal(t, "price ", seg.Text)

	s, _ = Step(s, []byte(euro[2:]))
	seg, _ = Live(s)
	assert.Equal(t, "price "+euro, seg.Text)
}

func TestLiveBeforeFirstSentinel(t *testing.T) {
	s, _ := Step(State{}, []byte("compiling"))
	_, ok := Live(s)
	assert.False(t, ok)
}

func TestDemuxerActiveOnly(t *testing.T) {
	d := NewDemuxer(2, 0)
	d.Feed([]byte(Sentinel + "\nold output\n" + Sentinel + "\npart"))
	live, ok := d.Live()
	require.True(t, ok)
	assert.Equal(t, "part", live)
	_, done := d.Active()
	assert.False(t, done)

	d.Feed([]byte("ial\n"))
	d.Close()
	final, ok := d.Active()
	require.True(t, ok)
	assert.Equal(t, "partial\n", final)
	assert.Equal(t, 2, d.Sentinels())
	assert.Equal(t, len(Sentinel)*2+2+len("old output\npartial\n"), d.Bytes())
}

func TestDemuxerLiveOtherCell(t *testing.T) {
	d := NewDemuxer(3, 0)
	d.Feed([]byte(Sentinel + "\nfirst"))
	_, ok := d.Live()
	assert.False(t, ok)
}

func TestDemuxerNoOutput(t *testing.T) {
	d := NewDemuxer(1, 0)
	assert.Empty(t, d.Close())
	_, ok := d.Active()
	assert.False(t, ok)
	assert.Zero(t, d.Bytes())
}
