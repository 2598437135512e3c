package backend

import (
	"fmt"
	"time"

	"github.com/gopxl/beep/v2"

	"github.com/llehouerou/tide/internal/track"
)

var (
	_ Backend = (*Native)(nil)
	_ Handle  = (*nativeHandle)(nil)
)

// nativeFormats are the PCM-derived families the sample graph can feed.
var nativeFormats = map[string]bool{
	"flac": true,
	"wav":  true,
}

// Native renders through the session's sample graph: source segment →
// equalizer stage → mixer → hardware output. It never reconfigures an
// active session; sources at other rates are resampled into it, which is
// what makes it the fallback for rates the delegated player rejects. It has
// no built-in position: the engine derives one from the segment render
// clock.
type Native struct {
	session Session
	eq      EQ
}

// NewNative creates the native backend bound to an audio session.
func NewNative(session Session, eq EQ) *Native {
	return &Native{session: session, eq: eq}
}

// Variant implements Backend.
func (b *Native) Variant() Variant { return VariantNative }

// CanHandle implements Backend.
func (b *Native) CanHandle(d track.Descriptor) bool {
	return nativeFormats[formatHint(d)]
}

// Open implements Backend.
func (b *Native) Open(d track.Descriptor) (Handle, error) {
	streamer, format, err := decodeFile(d.Path, formatHint(d))
	if err != nil {
		if err == ErrFileNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidAudioFile, err)
	}

	// Claim the device lazily at the source rate, clamped to what the
	// hardware supports. An already-active session keeps its rate.
	rate := format.SampleRate
	if int(rate) > b.session.MaxSampleRate() {
		rate = beep.SampleRate(b.session.MaxSampleRate())
	}
	if err := b.session.Activate(rate); err != nil {
		streamer.Close()
		return nil, err
	}

	h := &nativeHandle{
		session:  b.session,
		streamer: streamer,
		format:   format,
		eq:       b.eq,
		finished: make(chan struct{}, 1),
	}
	if err := h.schedule(0); err != nil {
		streamer.Close()
		return nil, fmt.Errorf("%w: %v", ErrInvalidAudioFile, err)
	}
	return h, nil
}

type nativeHandle struct {
	session  Session
	streamer beep.StreamSeekCloser
	format   beep.Format
	eq       EQ
	ctrl     *beep.Ctrl
	root     *guard
	seg      *segment
	finished chan struct{}
	closed   bool
}

// schedule cancels any pending segment and schedules a contiguous run of
// samples starting at the given frame. The new run starts paused and its
// render clock at zero.
func (h *nativeHandle) schedule(frame int) error {
	h.session.Lock()
	if h.root != nil {
		h.root.cancel()
	}
	if err := h.streamer.Seek(frame); err != nil {
		h.session.Unlock()
		return err
	}

	h.seg = &segment{src: h.streamer}
	var st beep.Streamer = h.seg
	if h.format.SampleRate != h.session.Rate() {
		st = beep.Resample(4, h.format.SampleRate, h.session.Rate(), st)
	}
	st = newEQStage(st, h.session.Rate(), h.eq)
	h.ctrl = &beep.Ctrl{Streamer: st, Paused: true}
	h.root = &guard{s: beep.Seq(h.ctrl, beep.Callback(h.signalFinished))}
	h.session.Unlock()

	h.session.Play(h.root)
	return nil
}

func (h *nativeHandle) signalFinished() {
	select {
	case h.finished <- struct{}{}:
	default:
	}
}

// Play implements Handle.
func (h *nativeHandle) Play() {
	h.session.Lock()
	if h.ctrl != nil {
		h.ctrl.Paused = false
	}
	h.session.Unlock()
}

// Pause implements Handle.
func (h *nativeHandle) Pause() {
	h.session.Lock()
	if h.ctrl != nil {
		h.ctrl.Paused = true
	}
	h.session.Unlock()
}

// Stop implements Handle.
func (h *nativeHandle) Stop() {
	h.session.Lock()
	if h.root != nil {
		h.root.cancel()
		h.root = nil
	}
	h.ctrl = nil
	h.session.Unlock()
}

// Seek implements Handle.
func (h *nativeHandle) Seek(pos time.Duration) error {
	frame := h.format.SampleRate.N(pos)
	if pos < 0 || frame >= h.streamer.Len() {
		return ErrSeekOutOfRange
	}
	return h.schedule(frame)
}

// Elapsed implements Handle: the render clock of the current segment.
func (h *nativeHandle) Elapsed() time.Duration {
	if h.seg == nil {
		return 0
	}
	return h.format.SampleRate.D(h.seg.rendered())
}

// Duration implements Handle.
func (h *nativeHandle) Duration() time.Duration {
	return h.format.SampleRate.D(h.streamer.Len())
}

// Format implements Handle.
func (h *nativeHandle) Format() beep.Format { return h.format }

// Finished implements Handle.
func (h *nativeHandle) Finished() <-chan struct{} { return h.finished }

// Close implements Handle.
func (h *nativeHandle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	h.Stop()
	return h.streamer.Close()
}
