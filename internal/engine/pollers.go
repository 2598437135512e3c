package engine

import (
	"time"
)

// Pollers run only while playing. They emit their work as posted closures
// so all state reads happen on the serialized owner.

func (e *Engine) startPositionPoll() {
	if e.posPollStop != nil {
		return
	}
	stop := make(chan struct{})
	e.posPollStop = stop
	go func() {
		ticker := time.NewTicker(e.positionPoll)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				e.post(func() {
					if e.st != StatePlaying {
						return
					}
					e.publish(PositionChanged{Position: e.positionLocked()})
				})
			case <-stop:
				return
			case <-e.done:
				return
			}
		}
	}()
}

func (e *Engine) stopPositionPoll() {
	if e.posPollStop != nil {
		close(e.posPollStop)
		e.posPollStop = nil
	}
}

func (e *Engine) startSnapshotPoll() {
	if e.snapPollStop != nil {
		return
	}
	stop := make(chan struct{})
	e.snapPollStop = stop
	go func() {
		ticker := time.NewTicker(e.snapshotInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				e.post(func() {
					if e.st != StatePlaying {
						return
					}
					e.saveStateLocked()
				})
			case <-stop:
				return
			case <-e.done:
				return
			}
		}
	}()
}

func (e *Engine) stopSnapshotPoll() {
	if e.snapPollStop != nil {
		close(e.snapPollStop)
		e.snapPollStop = nil
	}
}
