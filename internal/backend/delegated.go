package backend

import (
	"fmt"
	"time"

	"github.com/gopxl/beep/v2"

	"github.com/llehouerou/tide/internal/track"
)

var (
	_ Backend = (*Delegated)(nil)
	_ Handle  = (*delegatedHandle)(nil)
)

// delegatedFormats are the codec families the delegated player claims.
var delegatedFormats = map[string]bool{
	"mp3":  true,
	"ogg":  true,
	"oga":  true,
	"flac": true,
	"wav":  true,
}

// Delegated wraps a complete decode-and-render player. It configures the
// session at the file's own sample rate and owns its clock through the
// decoder's stream position. Files whose rate exceeds device support are
// rejected at open with ErrUnsupportedRate.
type Delegated struct {
	session Session
}

// NewDelegated creates the delegated backend bound to an audio session.
func NewDelegated(session Session) *Delegated {
	return &Delegated{session: session}
}

// Variant implements Backend.
func (b *Delegated) Variant() Variant { return VariantDelegated }

// CanHandle implements Backend.
func (b *Delegated) CanHandle(d track.Descriptor) bool {
	return delegatedFormats[formatHint(d)]
}

// Open implements Backend.
func (b *Delegated) Open(d track.Descriptor) (Handle, error) {
	streamer, format, err := decodeFile(d.Path, formatHint(d))
	if err != nil {
		return nil, openError(err)
	}

	if int(format.SampleRate) > b.session.MaxSampleRate() {
		streamer.Close()
		return nil, ErrUnsupportedRate
	}

	if err := b.session.Activate(format.SampleRate); err != nil {
		streamer.Close()
		return nil, err
	}

	h := &delegatedHandle{
		session:  b.session,
		streamer: streamer,
		format:   format,
		finished: make(chan struct{}, 1),
	}
	if err := h.schedule(0); err != nil {
		streamer.Close()
		return nil, err
	}
	return h, nil
}

// openError maps decode failures to the backend error taxonomy.
func openError(err error) error {
	switch {
	case err == ErrFileNotFound, err == ErrInvalidAudioFile:
		return err
	default:
		return fmt.Errorf("%w: %v", ErrBackendOpenFailed, err)
	}
}

// formatHint returns the descriptor's format hint, falling back to the
// file extension.
func formatHint(d track.Descriptor) string {
	if d.Format != "" {
		return d.Format
	}
	return track.FormatFromPath(d.Path)
}

type delegatedHandle struct {
	session  Session
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	root     *guard
	base     int // source frame the current schedule started at
	finished chan struct{}
	closed   bool
}

// schedule cancels any pending run and schedules a fresh one from the given
// frame. The new run starts paused.
func (h *delegatedHandle) schedule(frame int) error {
	h.session.Lock()
	if h.root != nil {
		h.root.cancel()
	}
	err := h.streamer.Seek(frame)
	if err != nil {
		h.session.Unlock()
		return err
	}
	h.base = frame

	var st beep.Streamer = h.streamer
	if h.format.SampleRate != h.session.Rate() {
		st = beep.Resample(4, h.format.SampleRate, h.session.Rate(), st)
	}
	h.ctrl = &beep.Ctrl{Streamer: st, Paused: true}
	h.root = &guard{s: beep.Seq(h.ctrl, beep.Callback(h.signalFinished))}
	h.session.Unlock()

	h.session.Play(h.root)
	return nil
}

func (h *delegatedHandle) signalFinished() {
	select {
	case h.finished <- struct{}{}:
	default:
	}
}

// Play implements Handle.
func (h *delegatedHandle) Play() {
	h.session.Lock()
	if h.ctrl != nil {
		h.ctrl.Paused = false
	}
	h.session.Unlock()
}

// Pause implements Handle.
func (h *delegatedHandle) Pause() {
	h.session.Lock()
	if h.ctrl != nil {
		h.ctrl.Paused = true
	}
	h.session.Unlock()
}

// Stop implements Handle.
func (h *delegatedHandle) Stop() {
	h.session.Lock()
	if h.root != nil {
		h.root.cancel()
		h.root = nil
	}
	h.ctrl = nil
	h.session.Unlock()
}

// Seek implements Handle.
func (h *delegatedHandle) Seek(pos time.Duration) error {
	frame := h.format.SampleRate.N(pos)
	if pos < 0 || frame >= h.streamer.Len() {
		return ErrSeekOutOfRange
	}
	return h.schedule(frame)
}

// Elapsed implements Handle. Position is read without the session lock; it
// may be one buffer stale, which is within the reporting epsilon.
func (h *delegatedHandle) Elapsed() time.Duration {
	return h.format.SampleRate.D(h.streamer.Position() - h.base)
}

// Duration implements Handle.
func (h *delegatedHandle) Duration() time.Duration {
	return h.format.SampleRate.D(h.streamer.Len())
}

// Format implements Handle.
func (h *delegatedHandle) Format() beep.Format { return h.format }

// Finished implements Handle.
func (h *delegatedHandle) Finished() <-chan struct{} { return h.finished }

// Close implements Handle.
func (h *delegatedHandle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	h.Stop()
	return h.streamer.Close()
}
