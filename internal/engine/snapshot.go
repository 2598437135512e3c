package engine

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"

	"github.com/llehouerou/tide/internal/errmsg"
	"github.com/llehouerou/tide/internal/persist"
	"github.com/llehouerou/tide/internal/queue"
	"github.com/llehouerou/tide/internal/track"
)

// NowPlaying is a read-only snapshot of the engine for control surfaces.
type NowPlaying struct {
	State      State
	Track      *track.Descriptor
	Position   time.Duration
	Duration   time.Duration
	QueueIndex int
	QueueLen   int
	Repeat     queue.RepeatMode
	Shuffle    bool
	Volume     float64
	Muted      bool
}

// Snapshot returns a consistent view of the playback state.
func (e *Engine) Snapshot() NowPlaying {
	var np NowPlaying
	e.read(func() {
		np = NowPlaying{
			State:      e.st,
			Position:   e.positionLocked(),
			Duration:   e.durationLocked(),
			QueueIndex: e.queue.Index(),
			QueueLen:   e.queue.Len(),
			Repeat:     e.queue.RepeatMode(),
			Shuffle:    e.queue.Shuffled(),
			Volume:     e.session.Volume(),
			Muted:      e.session.Muted(),
		}
		if cur := e.currentLocked(); cur != nil {
			c := *cur
			np.Track = &c
		}
	})
	return np
}

// SaveState writes a snapshot immediately.
func (e *Engine) SaveState() error {
	return e.call(func() error {
		e.saveStateLocked()
		return nil
	})
}

func (e *Engine) saveStateLocked() {
	if e.states == nil {
		return
	}
	st := persist.PlayerState{
		Elapsed:      e.positionLocked(),
		CurrentIndex: e.queue.Index(),
		RepeatMode:   int(e.queue.RepeatMode()),
		Shuffle:      e.queue.Shuffled(),
		QueueTrackIDs: lo.Map(e.queue.Tracks(), func(t track.Descriptor, _ int) int64 {
			return t.ID
		}),
	}
	if cur := e.currentLocked(); cur != nil {
		st.CurrentTrackID = cur.ID
	}
	if st.Shuffle {
		st.OriginalQueueIDs = lo.Map(e.queue.OriginalTracks(), func(t track.Descriptor, _ int) int64 {
			return t.ID
		})
	}
	if err := e.states.Save(st); err != nil {
		e.log.Warn(errmsg.Format(errmsg.OpStateSave, err))
	}
}

// Restore loads the persisted snapshot and rebuilds the queue from the
// track store. Playback never resumes unattended: the engine stays stopped
// with the saved position preserved, so the next Play picks up where the
// previous run left off. Missing tracks are skipped.
func (e *Engine) Restore(ctx context.Context) error {
	if e.states == nil || e.store == nil {
		return nil
	}
	st, err := e.states.Load()
	if err != nil {
		e.log.Warn(errmsg.Format(errmsg.OpStateRestore, err))
		return err
	}
	if st == nil {
		return nil
	}
	e.log.WithField("saved", humanize.Time(st.SavedAt)).Info("restoring playback state")

	tracks := e.resolveTracks(ctx, st.QueueTrackIDs)
	if len(tracks) == 0 {
		return nil
	}
	original := tracks
	if st.Shuffle && len(st.OriginalQueueIDs) == len(st.QueueTrackIDs) {
		original = e.resolveTracks(ctx, st.OriginalQueueIDs)
		if len(original) != len(tracks) {
			original = tracks
		}
	}

	index := st.CurrentIndex
	if _, idx, found := lo.FindIndexOf(tracks, func(t track.Descriptor) bool {
		return t.ID == st.CurrentTrackID
	}); found {
		index = idx
	}

	return e.call(func() error {
		e.queue.Restore(tracks, original, index, queue.RepeatMode(st.RepeatMode), st.Shuffle)
		e.pos.rebase(st.Elapsed)
		e.publishQueueLocked()
		e.publishModeLocked()
		if cur := e.queue.Current(); cur != nil {
			e.publish(TrackChanged{Track: *cur, Index: e.queue.Index()})
			e.publish(PositionChanged{Position: st.Elapsed})
		}
		return nil
	})
}

func (e *Engine) resolveTracks(ctx context.Context, ids []int64) []track.Descriptor {
	tracks := make([]track.Descriptor, 0, len(ids))
	for _, id := range ids {
		t, err := e.store.TrackByID(ctx, id)
		if err != nil || t == nil {
			e.log.WithField("track_id", id).Warn("restored track no longer available")
			continue
		}
		tracks = append(tracks, *t)
	}
	return tracks
}
