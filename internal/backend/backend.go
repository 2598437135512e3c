// Package backend abstracts the two rendering paths a track can be bound to:
// a delegated player that decodes and renders on its own, and a native
// sample graph fed by scheduled segments. The engine picks one variant per
// file at load time and drives it through the Handle contract.
package backend

import (
	"time"

	"github.com/gopxl/beep/v2"

	"github.com/llehouerou/tide/internal/track"
)

// Variant names which backend implementation a handle came from.
type Variant int

const (
	VariantNone Variant = iota
	VariantDelegated
	VariantNative
)

// String returns the variant name.
func (v Variant) String() string {
	switch v {
	case VariantDelegated:
		return "delegated"
	case VariantNative:
		return "native"
	case VariantNone:
		return "none"
	default:
		return "unknown"
	}
}

// Backend opens handles for the codec families it can decode.
type Backend interface {
	Variant() Variant
	CanHandle(d track.Descriptor) bool
	Open(d track.Descriptor) (Handle, error)
}

// Handle is a track bound to one backend variant. All methods are called
// from the engine's serialized owner, never concurrently.
//
// A handle has no notion of absolute track position. Elapsed reports time
// rendered since the last (re)schedule; Seek reschedules from the target
// and resets Elapsed to zero. The engine keeps the seek offset and derives
// absolute position as offset + Elapsed.
type Handle interface {
	Play()
	Pause()
	Stop()

	// Seek reschedules rendering from the given position. The target must
	// be within [0, Duration); ErrSeekOutOfRange otherwise. After a
	// successful seek the handle is paused and Elapsed reports zero.
	Seek(pos time.Duration) error

	Elapsed() time.Duration
	Duration() time.Duration
	Format() beep.Format

	// Finished delivers one value when the scheduled run reaches its
	// natural end. Cancelled schedules (Seek, Stop) never signal.
	Finished() <-chan struct{}

	Close() error
}

// Session is the slice of the audio session controller the backends and the
// engine need: lazy hardware claim, the shared render graph, and the
// suspend/resume pair used around interruptions.
type Session interface {
	// Activate claims the output device at the given rate, lazily on first
	// call. A rate change beyond the controller epsilon tears down and
	// rebuilds the render graph.
	Activate(rate beep.SampleRate) error
	Rate() beep.SampleRate
	MaxSampleRate() int

	// Play adds a source to the session's render graph. Sources remove
	// themselves by returning false from Stream.
	Play(s beep.Streamer)
	Lock()
	Unlock()

	Suspend() error
	Resume() error
	Rebuild() error

	SetVolume(level float64)
	Volume() float64
	SetMuted(muted bool)
	Muted() bool
}
