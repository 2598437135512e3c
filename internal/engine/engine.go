// Package engine is the playback core: it binds tracks to a render backend,
// owns the play/pause/seek/stop state machine, tracks elapsed time against
// the render clock, recovers from audio session events and manages the play
// queue.
//
// All mutable state is owned by a single goroutine (the serialized owner).
// Public operations and internal events are funnelled through it; I/O-bound
// work runs in the background and rejoins the owner to apply its result,
// carrying the scheduling generation captured at issue time. A stale
// generation means the result is discarded; that is the sole cancellation
// mechanism.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/sirupsen/logrus"

	"github.com/llehouerou/tide/internal/audiosession"
	"github.com/llehouerou/tide/internal/backend"
	"github.com/llehouerou/tide/internal/queue"
	"github.com/llehouerou/tide/internal/track"
)

// Options wires the engine's collaborators. Session and Opener are
// required; the rest default to no-ops.
type Options struct {
	Session       backend.Session
	SessionEvents <-chan audiosession.Event
	Opener        Opener
	Store         TrackStore   // optional, needed for state restore
	Materializer  Materializer // optional
	Access        ScopedAccess // optional
	States        StateStore   // optional

	PositionPoll     time.Duration // defaults to 250ms
	SnapshotInterval time.Duration // defaults to 30s
}

// Engine is the playback engine. Construct with New, release with Close.
type Engine struct {
	session       backend.Session
	sessionEvents <-chan audiosession.Event
	opener        Opener
	store         TrackStore
	materializer  Materializer
	access        ScopedAccess
	states        StateStore

	positionPoll     time.Duration
	snapshotInterval time.Duration

	cmds chan func()
	done chan struct{}
	ctx  context.Context
	stop context.CancelFunc

	closeOnce sync.Once

	subsMu sync.Mutex
	subs   []*Subscription

	log *logrus.Entry

	// Everything below is owned by the run loop.
	st           State
	loading      bool
	interrupted  bool
	gen          uint64 // scheduling generation
	handle       backend.Handle
	variant      backend.Variant
	current      *track.Descriptor
	lastBound    *track.Descriptor // shown again if the next load fails
	queue        *queue.Queue
	pos          tracker
	lastRate     beep.SampleRate
	releaseScope func()
	finishCancel chan struct{}
	posPollStop  chan struct{}
	snapPollStop chan struct{}
}

// New creates the engine and starts its serialized owner.
func New(opts Options) *Engine {
	if opts.Materializer == nil {
		opts.Materializer = noopMaterializer{}
	}
	if opts.Access == nil {
		opts.Access = noopAccess{}
	}
	if opts.PositionPoll <= 0 {
		opts.PositionPoll = 250 * time.Millisecond
	}
	if opts.SnapshotInterval <= 0 {
		opts.SnapshotInterval = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		session:          opts.Session,
		sessionEvents:    opts.SessionEvents,
		opener:           opts.Opener,
		store:            opts.Store,
		materializer:     opts.Materializer,
		access:           opts.Access,
		states:           opts.States,
		positionPoll:     opts.PositionPoll,
		snapshotInterval: opts.SnapshotInterval,
		cmds:             make(chan func()),
		done:             make(chan struct{}),
		ctx:              ctx,
		stop:             cancel,
		queue:            queue.New(),
		log:              logrus.WithField("component", "engine"),
	}
	go e.run()
	return e
}

// run is the serialized owner. Nothing else touches mutable playback state.
func (e *Engine) run() {
	for {
		select {
		case fn := <-e.cmds:
			fn()
		case ev := <-e.sessionEvents:
			e.handleSessionEvent(ev)
		case <-e.done:
			return
		}
	}
}

// post schedules fn on the serialized owner without waiting.
func (e *Engine) post(fn func()) {
	select {
	case e.cmds <- fn:
	case <-e.done:
	}
}

// call runs fn on the serialized owner and waits for its result.
func (e *Engine) call(fn func() error) error {
	errc := make(chan error, 1)
	select {
	case e.cmds <- func() { errc <- fn() }:
	case <-e.done:
		return ErrClosed
	}
	select {
	case err := <-errc:
		return err
	case <-e.done:
		return ErrClosed
	}
}

// read runs fn on the serialized owner for a consistent state snapshot.
func (e *Engine) read(fn func()) {
	_ = e.call(func() error { fn(); return nil })
}

// Subscribe creates an event subscription. Events are delivered in order
// and dropped for subscribers that fall behind.
func (e *Engine) Subscribe() *Subscription {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	sub := newSubscription()
	e.subs = append(e.subs, sub)
	return sub
}

// publish fans an event out to all subscribers.
func (e *Engine) publish(ev Event) {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	for _, sub := range e.subs {
		sub.send(ev)
	}
}

// setState transitions the state machine and notifies subscribers.
func (e *Engine) setState(s State) {
	if s == e.st {
		return
	}
	prev := e.st
	e.st = s
	e.log.WithFields(logrus.Fields{"from": prev, "to": s}).Debug("state transition")
	e.publish(StateChanged{Previous: prev, Current: s})
}

// Close stops playback, saves state and releases the serialized owner.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		_ = e.call(func() error {
			e.shutdownLocked()
			return nil
		})
		e.stop()
		close(e.done)

		e.subsMu.Lock()
		for _, sub := range e.subs {
			sub.close()
		}
		e.subs = nil
		e.subsMu.Unlock()
	})
	return nil
}

func (e *Engine) shutdownLocked() {
	if e.st.IsActive() || !e.queue.IsEmpty() {
		e.saveStateLocked()
	}
	e.gen++
	e.cancelFinishWatcher()
	e.stopPositionPoll()
	e.stopSnapshotPoll()
	if e.handle != nil {
		e.handle.Stop()
		e.handle.Close()
		e.handle = nil
	}
	if e.releaseScope != nil {
		e.releaseScope()
		e.releaseScope = nil
	}
	e.variant = backend.VariantNone
	e.st = StateStopped
}

// State returns the current playback state.
func (e *Engine) State() State {
	var s State
	e.read(func() { s = e.st })
	return s
}

// Position returns the absolute playback position. While playing it is
// recomputed from the render clock; while paused the last computed value is
// returned so the display does not drift.
func (e *Engine) Position() time.Duration {
	var p time.Duration
	e.read(func() { p = e.positionLocked() })
	return p
}

func (e *Engine) positionLocked() time.Duration {
	if e.st == StatePlaying && e.handle != nil {
		return e.pos.update(e.handle.Elapsed())
	}
	return e.pos.position()
}

// Duration returns the bound track's duration, 0 when none.
func (e *Engine) Duration() time.Duration {
	var d time.Duration
	e.read(func() { d = e.durationLocked() })
	return d
}

func (e *Engine) durationLocked() time.Duration {
	if e.handle != nil {
		return e.handle.Duration()
	}
	if cur := e.currentLocked(); cur != nil {
		return cur.Duration
	}
	return 0
}

// CurrentTrack returns a copy of the current track, nil when none.
func (e *Engine) CurrentTrack() *track.Descriptor {
	var t *track.Descriptor
	e.read(func() {
		if cur := e.currentLocked(); cur != nil {
			c := *cur
			t = &c
		}
	})
	return t
}

func (e *Engine) currentLocked() *track.Descriptor {
	if e.current != nil {
		return e.current
	}
	return e.queue.Current()
}

// Variant reports which backend the current track is bound to.
func (e *Engine) Variant() backend.Variant {
	var v backend.Variant
	e.read(func() { v = e.variant })
	return v
}

// QueueTracks returns a copy of the queue in play order.
func (e *Engine) QueueTracks() []track.Descriptor {
	var ts []track.Descriptor
	e.read(func() { ts = e.queue.Tracks() })
	return ts
}

// QueueIndex returns the current queue index.
func (e *Engine) QueueIndex() int {
	var i int
	e.read(func() { i = e.queue.Index() })
	return i
}

// QueueLen returns the number of queued tracks.
func (e *Engine) QueueLen() int {
	var n int
	e.read(func() { n = e.queue.Len() })
	return n
}

// QueueIsEmpty returns true when no tracks are queued.
func (e *Engine) QueueIsEmpty() bool {
	return e.QueueLen() == 0
}

// HasNext returns true if a track follows the current one.
func (e *Engine) HasNext() bool {
	var h bool
	e.read(func() { h = e.queue.HasNext() })
	return h
}

// RepeatMode returns the active repeat mode.
func (e *Engine) RepeatMode() queue.RepeatMode {
	var m queue.RepeatMode
	e.read(func() { m = e.queue.RepeatMode() })
	return m
}

// SetRepeatMode sets the repeat mode.
func (e *Engine) SetRepeatMode(mode queue.RepeatMode) {
	e.read(func() {
		e.queue.SetRepeatMode(mode)
		e.publishModeLocked()
	})
}

// CycleRepeatMode advances Off → Queue → Song → Off.
func (e *Engine) CycleRepeatMode() queue.RepeatMode {
	var m queue.RepeatMode
	e.read(func() {
		m = e.queue.CycleRepeatMode()
		e.publishModeLocked()
	})
	return m
}

// Shuffled returns whether shuffle is on.
func (e *Engine) Shuffled() bool {
	var s bool
	e.read(func() { s = e.queue.Shuffled() })
	return s
}

// SetShuffle toggles shuffle, pinning the playing track at index 0 when
// enabling and restoring the original order when disabling.
func (e *Engine) SetShuffle(enabled bool) {
	e.read(func() {
		e.queue.SetShuffle(enabled)
		e.publishQueueLocked()
		e.publishModeLocked()
	})
}

// ToggleShuffle flips shuffle and returns the new state.
func (e *Engine) ToggleShuffle() bool {
	var s bool
	e.read(func() {
		s = e.queue.ToggleShuffle()
		e.publishQueueLocked()
		e.publishModeLocked()
	})
	return s
}

// AddTracks appends tracks without changing the current position.
func (e *Engine) AddTracks(tracks ...track.Descriptor) {
	e.read(func() {
		e.queue.Add(tracks...)
		e.publishQueueLocked()
	})
}

// RemoveTrack removes the queued track at index.
func (e *Engine) RemoveTrack(index int) bool {
	var ok bool
	e.read(func() {
		ok = e.queue.RemoveAt(index)
		if ok {
			e.publishQueueLocked()
		}
	})
	return ok
}

// MoveTrack reorders the queue, preserving the playing track's identity.
func (e *Engine) MoveTrack(from, to int) bool {
	var ok bool
	e.read(func() {
		ok = e.queue.Move(from, to)
		if ok {
			e.publishQueueLocked()
		}
	})
	return ok
}

// ClearQueue removes all queued tracks. The bound track keeps playing.
func (e *Engine) ClearQueue() {
	e.read(func() {
		e.queue.Clear()
		e.publishQueueLocked()
	})
}

// Volume returns the master volume level (0.0 to 1.0).
func (e *Engine) Volume() float64 {
	return e.session.Volume()
}

// SetVolume sets the master volume level.
func (e *Engine) SetVolume(level float64) {
	e.session.SetVolume(level)
	e.publish(VolumeChanged{Level: e.session.Volume(), Muted: e.session.Muted()})
}

// Muted returns the mute state.
func (e *Engine) Muted() bool {
	return e.session.Muted()
}

// SetMuted sets the mute state without losing the stored level.
func (e *Engine) SetMuted(muted bool) {
	e.session.SetMuted(muted)
	e.publish(VolumeChanged{Level: e.session.Volume(), Muted: muted})
}

func (e *Engine) publishQueueLocked() {
	e.publish(QueueChanged{Tracks: e.queue.Tracks(), Index: e.queue.Index()})
}

func (e *Engine) publishModeLocked() {
	e.publish(ModeChanged{Repeat: e.queue.RepeatMode(), Shuffle: e.queue.Shuffled()})
}
