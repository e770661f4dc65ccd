package graph

import (
	"sync"

	"github.com/gopxl/beep/v2"
)

// sourceStage streams the bound source, or silence while nothing plays.
// It runs inside guarded, so the graph mutex is held.
type sourceStage struct {
	g *Graph
}

func (s *sourceStage) Stream(samples [][2]float64) (int, bool) {
	g := s.g
	b := g.bound
	if b == nil || !g.playing || b.ended {
		clear(samples)
		return len(samples), true
	}

	n, ok := b.streamer.Stream(samples)
	if n < 0 {
		n = 0
	}
	if !ok || n < len(samples) {
		clear(samples[n:])
		b.ended = true
		g.playing = false
		g.emit(Event{Kind: EventEnded, Seq: b.seq})
	}
	return len(samples), true
}

func (s *sourceStage) Err() error {
	return nil
}

// tap copies a mono mix of everything passing through into a ring buffer
// that the analyser reads from.
type tap struct {
	s    beep.Streamer
	buf  []float64
	pos  int
	size int
}

func newTap(s beep.Streamer, size int) *tap {
	return &tap{
		s:    s,
		buf:  make([]float64, size),
		size: size,
	}
}

func (t *tap) Stream(samples [][2]float64) (int, bool) {
	n, ok := t.s.Stream(samples)
	for i := 0; i < n; i++ {
		t.buf[t.pos] = (samples[i][0] + samples[i][1]) / 2
		t.pos = (t.pos + 1) % t.size
	}
	return n, ok
}

func (t *tap) Err() error {
	return t.s.Err()
}

// samples returns the ring buffer in chronological order
func (t *tap) samples() []float64 {
	out := make([]float64, t.size)
	for i := range out {
		out[i] = t.buf[(t.pos+i)%t.size]
	}
	return out
}

// guarded serializes the audio thread with the graph API
type guarded struct {
	mu *sync.Mutex
	s  beep.Streamer
}

func (g guarded) Stream(samples [][2]float64) (int, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.s.Stream(samples)
}

func (g guarded) Err() error {
	return nil
}
