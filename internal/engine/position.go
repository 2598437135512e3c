package engine

import "time"

// tracker derives absolute playback time from a backend-relative render
// clock plus a cumulative seek offset:
//
//	absolute = offset + backendRelativeElapsed
//
// Both terms are recomputed together after every seek, resume and backend
// switch (rebase); updating one without the other is what this type exists
// to prevent.
type tracker struct {
	offset time.Duration // cumulative seek offset
	last   time.Duration // last computed absolute position
}

// rebase moves the time base to pos after a reschedule: the backend clock
// restarts at zero, so offset and reported position are set atomically.
func (t *tracker) rebase(pos time.Duration) {
	t.offset = pos
	t.last = pos
}

// update recomputes the absolute position from the render clock.
func (t *tracker) update(elapsed time.Duration) time.Duration {
	t.last = t.offset + elapsed
	return t.last
}

// position returns the last computed absolute position without touching the
// render clock. Used while paused to avoid apparent drift.
func (t *tracker) position() time.Duration {
	return t.last
}

// reset zeroes the time base.
func (t *tracker) reset() {
	t.offset = 0
	t.last = 0
}
