package engine

import (
	"time"

	"github.com/llehouerou/tide/internal/backend"
	"github.com/llehouerou/tide/internal/errmsg"
	"github.com/llehouerou/tide/internal/queue"
	"github.com/llehouerou/tide/internal/track"
)

// previousRestartThreshold is how far into a track Previous restarts it
// instead of moving to the prior queue entry.
const previousRestartThreshold = 3 * time.Second

// PlayTracks replaces the queue with the given tracks and starts playing
// from start.
func (e *Engine) PlayTracks(tracks []track.Descriptor, start int) error {
	return e.call(func() error {
		if len(tracks) == 0 {
			return ErrNothingToPlay
		}
		if e.loading {
			return ErrLoadInProgress
		}
		e.queue.Replace(tracks, start)
		e.publishQueueLocked()
		return e.loadLocked(e.queue.Current(), true, 0)
	})
}

// LoadTrack binds a single track without starting playback. The engine
// lands in Paused at position 0 when the load succeeds.
func (e *Engine) LoadTrack(t track.Descriptor) error {
	return e.call(func() error {
		if e.loading {
			return ErrLoadInProgress
		}
		e.queue.Replace([]track.Descriptor{t}, 0)
		e.publishQueueLocked()
		return e.loadLocked(e.queue.Current(), false, 0)
	})
}

// Play starts or resumes playback. Calling it while already playing is a
// no-op. When stopped with a non-empty queue it loads the current track.
func (e *Engine) Play() error {
	return e.call(func() error { return e.playLocked() })
}

// Pause suspends playback, preserving the position.
func (e *Engine) Pause() error {
	return e.call(func() error {
		e.pauseLocked(true)
		return nil
	})
}

// TogglePlayPause flips between playing and paused.
func (e *Engine) TogglePlayPause() error {
	return e.call(func() error {
		if e.st == StatePlaying {
			e.pauseLocked(true)
			return nil
		}
		return e.playLocked()
	})
}

// Stop ends playback and releases the bound track. The queue is kept.
func (e *Engine) Stop() error {
	return e.call(func() error {
		e.stopLocked()
		return nil
	})
}

// SeekTo moves to an absolute position within the bound track. Positions
// outside [0, duration) are rejected and playback continues unchanged.
func (e *Engine) SeekTo(pos time.Duration) error {
	return e.call(func() error { return e.seekToLocked(pos) })
}

// SeekBy moves relative to the current position. Rewinds clamp to 0; a
// forward seek past the end is treated as the track finishing.
func (e *Engine) SeekBy(delta time.Duration) error {
	return e.call(func() error {
		if e.handle == nil {
			return ErrNothingToPlay
		}
		target := e.positionLocked() + delta
		if target < 0 {
			target = 0
		}
		if d := e.durationLocked(); d > 0 && target >= d {
			e.handleTrackFinished(e.gen)
			return nil
		}
		return e.seekToLocked(target)
	})
}

// Next skips to the following queue entry. Playback continues only if a
// track was playing.
func (e *Engine) Next() error {
	return e.call(func() error {
		if e.loading {
			return ErrLoadInProgress
		}
		next := e.queue.Advance()
		if next == nil {
			e.stopLocked()
			return ErrNothingToPlay
		}
		return e.loadLocked(next, e.st == StatePlaying, 0)
	})
}

// Previous restarts the current track when more than a few seconds in,
// otherwise moves to the prior queue entry.
func (e *Engine) Previous() error {
	return e.call(func() error {
		if e.loading {
			return ErrLoadInProgress
		}
		if e.handle != nil && e.positionLocked() > previousRestartThreshold {
			return e.seekToLocked(0)
		}
		prev := e.queue.Retreat()
		if prev == nil {
			if e.handle != nil {
				return e.seekToLocked(0)
			}
			return ErrNothingToPlay
		}
		return e.loadLocked(prev, e.st == StatePlaying, 0)
	})
}

// JumpTo plays the queue entry at index.
func (e *Engine) JumpTo(index int) error {
	return e.call(func() error {
		if e.loading {
			return ErrLoadInProgress
		}
		t := e.queue.JumpTo(index)
		if t == nil {
			return ErrNothingToPlay
		}
		return e.loadLocked(t, true, 0)
	})
}

func (e *Engine) playLocked() error {
	switch e.st {
	case StatePlaying:
		return nil
	case StateLoading:
		return ErrLoadInProgress
	case StatePaused:
		return e.resumeLocked()
	}
	// Stopped.
	if e.handle != nil {
		return e.resumeLocked()
	}
	cur := e.queue.Current()
	if cur == nil {
		return ErrNothingToPlay
	}
	return e.loadLocked(cur, true, e.pos.position())
}

// resumeLocked reschedules the bound track at the preserved position and
// starts rendering. Scheduling fresh on every resume keeps both backends on
// the same path and makes the position authoritative.
func (e *Engine) resumeLocked() error {
	pos := e.pos.position()
	if d := e.handle.Duration(); d > 0 && pos >= d {
		pos = 0
	}
	e.gen++
	e.cancelFinishWatcher()
	if err := e.handle.Seek(pos); err != nil {
		e.log.Warn(errmsg.Format(errmsg.OpSeek, err))
		if err := e.handle.Seek(0); err != nil {
			return err
		}
		pos = 0
	}
	e.pos.rebase(pos)
	if err := e.session.Resume(); err != nil {
		return err
	}
	e.handle.Play()
	e.interrupted = false
	e.armFinishWatcher(e.gen)
	e.setState(StatePlaying)
	e.startPositionPoll()
	e.startSnapshotPoll()
	return nil
}

// pauseLocked suspends rendering. recompute controls whether the position
// is re-read from the render clock first; interruption handling passes
// false so the position observed at interruption time is kept.
func (e *Engine) pauseLocked(recompute bool) {
	if e.st != StatePlaying {
		return
	}
	if recompute && e.handle != nil {
		e.pos.update(e.handle.Elapsed())
	}
	if e.handle != nil {
		e.handle.Pause()
	}
	e.stopPositionPoll()
	e.stopSnapshotPoll()
	e.setState(StatePaused)
	e.publish(PositionChanged{Position: e.pos.position()})
}

// stopLocked tears down the bound track. State is saved before the
// position is reset so the snapshot reflects where playback stopped.
func (e *Engine) stopLocked() {
	if e.st == StateStopped && e.handle == nil {
		return
	}
	e.saveStateLocked()
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
	e.current = nil
	e.variant = backend.VariantNone
	e.pos.reset()
	e.loading = false
	e.setState(StateStopped)
}

func (e *Engine) seekToLocked(pos time.Duration) error {
	if e.handle == nil {
		return ErrNothingToPlay
	}
	if d := e.handle.Duration(); pos < 0 || (d > 0 && pos >= d) {
		return backend.ErrSeekOutOfRange
	}
	wasPlaying := e.st == StatePlaying
	e.gen++
	e.cancelFinishWatcher()
	if err := e.handle.Seek(pos); err != nil {
		return err
	}
	e.pos.rebase(pos)
	if wasPlaying {
		e.handle.Play()
		e.armFinishWatcher(e.gen)
	}
	e.publish(PositionChanged{Position: pos})
	return nil
}

// loadLocked starts the asynchronous load of t. Only one load may be in
// flight; a second request is rejected rather than queued.
func (e *Engine) loadLocked(t *track.Descriptor, autoplay bool, startAt time.Duration) error {
	if t == nil {
		return ErrNothingToPlay
	}
	if e.loading {
		return ErrLoadInProgress
	}
	e.loading = true
	e.gen++
	gen := e.gen
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
	e.lastBound = e.current
	desc := *t
	e.current = &desc
	e.setState(StateLoading)
	go e.openTrack(desc, gen, autoplay, startAt)
	return nil
}

// openTrack runs off the serialized owner: it materializes the file,
// acquires access and opens a backend, then rejoins the owner to apply the
// result under the generation captured at load time.
func (e *Engine) openTrack(desc track.Descriptor, gen uint64, autoplay bool, startAt time.Duration) {
	path, err := e.materializer.EnsureLocal(e.ctx, desc)
	if err != nil {
		e.post(func() { e.applyLoad(loadResult{gen: gen, err: err, desc: desc}) })
		return
	}
	desc.Path = path

	release, err := e.access.Acquire(path)
	if err != nil {
		e.post(func() { e.applyLoad(loadResult{gen: gen, err: err, desc: desc}) })
		return
	}

	handle, variant, err := e.opener.Open(desc)
	if err != nil {
		release()
		e.post(func() { e.applyLoad(loadResult{gen: gen, err: err, desc: desc}) })
		return
	}
	e.post(func() {
		e.applyLoad(loadResult{
			gen:      gen,
			desc:     desc,
			handle:   handle,
			variant:  variant,
			release:  release,
			autoplay: autoplay,
			startAt:  startAt,
		})
	})
}

type loadResult struct {
	gen      uint64
	desc     track.Descriptor
	handle   backend.Handle
	variant  backend.Variant
	release  func()
	err      error
	autoplay bool
	startAt  time.Duration
}

// applyLoad binds the opened handle, runs on the serialized owner. A stale
// generation means the load was superseded; its resources are dropped.
func (e *Engine) applyLoad(res loadResult) {
	if res.gen != e.gen {
		if res.handle != nil {
			res.handle.Close()
		}
		if res.release != nil {
			res.release()
		}
		return
	}
	e.loading = false

	if res.err != nil {
		e.log.WithField("path", res.desc.Path).
			Error(errmsg.Format(errmsg.OpLoadTrack, res.err))
		e.publish(PlaybackError{Op: errmsg.OpLoadTrack, Path: res.desc.Path, Err: res.err})
		// Keep showing the track that was bound before the failed load.
		e.current = e.lastBound
		e.variant = backend.VariantNone
		e.pos.reset()
		e.setState(StateStopped)
		return
	}

	e.handle = res.handle
	e.variant = res.variant
	e.releaseScope = res.release
	e.lastBound = nil
	desc := res.desc
	if d := res.handle.Duration(); d > 0 {
		desc.Duration = d
	}
	e.current = &desc

	// A device rate change across loads invalidates a preserved resume
	// position; a fresh track starts at zero anyway.
	startAt := res.startAt
	if rate := e.session.Rate(); rate != e.lastRate {
		if e.lastRate != 0 {
			startAt = 0
		}
		e.lastRate = rate
	}
	if d := res.handle.Duration(); d > 0 && startAt >= d {
		startAt = 0
	}
	if startAt > 0 {
		if err := res.handle.Seek(startAt); err != nil {
			e.log.Warn(errmsg.Format(errmsg.OpSeek, err))
			startAt = 0
		}
	}
	e.pos.rebase(startAt)

	e.publish(TrackChanged{Track: desc, Index: e.queue.Index()})

	if res.autoplay {
		if err := e.session.Resume(); err != nil {
			e.log.Error(errmsg.Format(errmsg.OpSessionConfig, err))
		}
		res.handle.Play()
		e.interrupted = false
		e.armFinishWatcher(e.gen)
		e.setState(StatePlaying)
		e.startPositionPoll()
		e.startSnapshotPoll()
		return
	}
	e.setState(StatePaused)
	e.publish(PositionChanged{Position: startAt})
}

// armFinishWatcher watches the handle's Finished channel and rejoins the
// owner with the generation captured now. Each re-arm cancels the previous
// watcher so only one can ever deliver.
func (e *Engine) armFinishWatcher(gen uint64) {
	e.cancelFinishWatcher()
	cancel := make(chan struct{})
	e.finishCancel = cancel
	finished := e.handle.Finished()
	go func() {
		select {
		case <-finished:
			e.post(func() { e.handleTrackFinished(gen) })
		case <-cancel:
		case <-e.done:
		}
	}()
}

func (e *Engine) cancelFinishWatcher() {
	if e.finishCancel != nil {
		close(e.finishCancel)
		e.finishCancel = nil
	}
}

// CheckEndOfTrack detects a track that ran past its end while completion
// signals were unreliable (process backgrounded) and resolves it as a
// normal track end. No-op unless playing.
func (e *Engine) CheckEndOfTrack() {
	e.post(func() {
		if e.st != StatePlaying || e.handle == nil {
			return
		}
		d := e.durationLocked()
		if d > 0 && e.positionLocked() >= d {
			e.handleTrackFinished(e.gen)
		}
	})
}

// handleTrackFinished resolves what happens at end of track according to
// the repeat mode and queue position.
func (e *Engine) handleTrackFinished(gen uint64) {
	if gen != e.gen {
		return
	}
	wasPlaying := e.st == StatePlaying
	action, next := e.queue.ResolveEnd()
	switch action {
	case queue.EndReplay:
		e.gen++
		if err := e.handle.Seek(0); err != nil {
			e.log.Error(errmsg.Format(errmsg.OpTrackFinished, err))
			e.stopLocked()
			return
		}
		e.pos.rebase(0)
		if wasPlaying {
			e.handle.Play()
			e.armFinishWatcher(e.gen)
		} else {
			// A paused seek past the end replays from 0 without
			// resuming; the handle stays paused after Seek.
			e.cancelFinishWatcher()
		}
		if cur := e.currentLocked(); cur != nil {
			e.publish(TrackChanged{Track: *cur, Index: e.queue.Index()})
		}
		e.publish(PositionChanged{Position: 0})
	case queue.EndAdvance, queue.EndWrap:
		if err := e.loadLocked(next, wasPlaying, 0); err != nil {
			e.log.Error(errmsg.Format(errmsg.OpAdvance, err))
			e.stopLocked()
		}
	default:
		e.stopLocked()
	}
}
