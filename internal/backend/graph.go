package backend

import (
	"sync/atomic"

	"github.com/gopxl/beep/v2"
)

var (
	_ beep.Streamer = (*guard)(nil)
	_ beep.Streamer = (*segment)(nil)
)

// guard wraps a render-graph source so a superseded schedule can be dropped
// from the mixer without draining it. Cancellation happens under the session
// lock, the same lock the render thread holds while streaming, so no extra
// synchronization is needed.
type guard struct {
	s         beep.Streamer
	cancelled bool
}

// Stream implements beep.Streamer.
func (g *guard) Stream(samples [][2]float64) (n int, ok bool) {
	if g.cancelled {
		return 0, false
	}
	return g.s.Stream(samples)
}

// Err implements beep.Streamer.
func (g *guard) Err() error {
	if g.cancelled {
		return nil
	}
	return g.s.Err()
}

// cancel marks the schedule as superseded. Must be called under the session
// lock.
func (g *guard) cancel() {
	g.cancelled = true
}

// segment is a scheduled contiguous run of samples starting at a frame
// offset. It counts frames actually rendered, serving as the render clock
// for backends that have no built-in notion of position.
type segment struct {
	src    beep.Streamer
	frames atomic.Int64
}

// Stream implements beep.Streamer.
func (s *segment) Stream(samples [][2]float64) (n int, ok bool) {
	n, ok = s.src.Stream(samples)
	s.frames.Add(int64(n))
	return n, ok
}

// Err implements beep.Streamer.
func (s *segment) Err() error {
	return s.src.Err()
}

// rendered returns the number of source frames rendered since scheduling.
func (s *segment) rendered() int {
	return int(s.frames.Load())
}
