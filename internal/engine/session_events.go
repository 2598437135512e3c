package engine

import (
	"github.com/llehouerou/tide/internal/audiosession"
	"github.com/llehouerou/tide/internal/backend"
	"github.com/llehouerou/tide/internal/errmsg"
)

// handleSessionEvent reacts to audio session notifications. Runs on the
// serialized owner.
func (e *Engine) handleSessionEvent(ev audiosession.Event) {
	e.log.WithField("event", ev.Kind).Debug("session event")
	switch ev.Kind {
	case audiosession.InterruptionBegan:
		if e.st != StatePlaying {
			return
		}
		// Keep the position observed when the interruption hit; the
		// render clock may already have been torn down underneath us.
		e.interrupted = true
		e.pauseLocked(false)
		e.session.Suspend()

	case audiosession.InterruptionEnded:
		e.session.Resume()
		if !ev.ShouldResume || !e.interrupted {
			return
		}
		e.interrupted = false
		if e.st != StatePaused {
			return
		}
		if err := e.playLocked(); err != nil {
			e.log.WithError(err).Warn("resume after interruption failed")
		}

	case audiosession.RouteChanged:
		// Headphones unplugged or output device gone: pause rather than
		// blast the new route.
		if e.st == StatePlaying {
			e.pauseLocked(true)
		}

	case audiosession.ServiceReset:
		e.recoverFromReset()
	}
}

// recoverFromReset rebuilds the audio session and rebinds the current
// track at the preserved position, resuming if playback was active.
func (e *Engine) recoverFromReset() {
	wasPlaying := e.st == StatePlaying
	pos := e.positionLocked()

	e.gen++
	e.cancelFinishWatcher()
	e.stopPositionPoll()
	e.stopSnapshotPoll()
	if e.handle != nil {
		e.handle.Close()
		e.handle = nil
	}
	e.variant = backend.VariantNone
	e.lastRate = 0

	if err := e.session.Rebuild(); err != nil {
		e.log.Error(errmsg.Format(errmsg.OpSessionRebuild, err))
		e.publish(PlaybackError{Op: errmsg.OpSessionRebuild, Err: err})
		e.stopLocked()
		return
	}

	cur := e.currentLocked()
	if cur == nil {
		e.setState(StateStopped)
		return
	}
	if err := e.loadLocked(cur, wasPlaying, pos); err != nil {
		e.log.Error(errmsg.Format(errmsg.OpSessionRebuild, err))
		e.stopLocked()
	}
}
