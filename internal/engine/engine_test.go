package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/tide/internal/audiosession"
	"github.com/llehouerou/tide/internal/backend"
	"github.com/llehouerou/tide/internal/persist"
	"github.com/llehouerou/tide/internal/queue"
	"github.com/llehouerou/tide/internal/track"
)

// stubOpener hands out mock handles, optionally blocking until released so
// tests can observe in-flight loads.
type stubOpener struct {
	mu      sync.Mutex
	dur     time.Duration
	err     error
	block   chan struct{}
	calls   int
	handles []*backend.MockHandle
}

func newStubOpener(dur time.Duration) *stubOpener {
	return &stubOpener{dur: dur}
}

func (o *stubOpener) Open(_ track.Descriptor) (backend.Handle, backend.Variant, error) {
	if o.block != nil {
		<-o.block
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	if o.err != nil {
		return nil, backend.VariantNone, o.err
	}
	h := backend.NewMockHandle(o.dur)
	o.handles = append(o.handles, h)
	return h, backend.VariantDelegated, nil
}

func (o *stubOpener) setErr(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
}

func (o *stubOpener) openCalls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

func (o *stubOpener) handle(i int) *backend.MockHandle {
	o.mu.Lock()
	defer o.mu.Unlock()
	if i < 0 || i >= len(o.handles) {
		return nil
	}
	return o.handles[i]
}

type memStateStore struct {
	mu sync.Mutex
	st *persist.PlayerState
}

func (m *memStateStore) Save(st persist.PlayerState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st.SavedAt = time.Now()
	m.st = &st
	return nil
}

func (m *memStateStore) Load() (*persist.PlayerState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.st == nil {
		return nil, nil
	}
	cp := *m.st
	return &cp, nil
}

func (m *memStateStore) saved() *persist.PlayerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.st == nil {
		return nil
	}
	cp := *m.st
	return &cp
}

type memTrackStore struct {
	tracks map[int64]track.Descriptor
}

func (m *memTrackStore) TrackByID(_ context.Context, id int64) (*track.Descriptor, error) {
	t, ok := m.tracks[id]
	if !ok {
		return nil, fmt.Errorf("track %d not found", id)
	}
	return &t, nil
}

type testEnv struct {
	engine  *Engine
	opener  *stubOpener
	session *backend.MockSession
	events  chan audiosession.Event
	states  *memStateStore
}

func newTestEnv(t *testing.T, opts ...func(*Options)) *testEnv {
	t.Helper()
	env := &testEnv{
		opener:  newStubOpener(3 * time.Minute),
		session: backend.NewMockSession(192000),
		events:  make(chan audiosession.Event, 16),
		states:  &memStateStore{},
	}
	o := Options{
		Session:          env.session,
		SessionEvents:    env.events,
		Opener:           env.opener,
		States:           env.states,
		PositionPoll:     time.Hour, // polls are exercised separately
		SnapshotInterval: time.Hour,
	}
	for _, fn := range opts {
		fn(&o)
	}
	if o.Opener != env.opener {
		env.opener = o.Opener.(*stubOpener)
	}
	env.engine = New(o)
	t.Cleanup(func() { env.engine.Close() })
	return env
}

func testTracks(n int) []track.Descriptor {
	ts := make([]track.Descriptor, n)
	for i := range ts {
		ts[i] = track.Descriptor{
			ID:     int64(i + 1),
			Path:   fmt.Sprintf("/music/%02d.flac", i+1),
			Title:  fmt.Sprintf("Track %d", i+1),
			Format: "flac",
		}
	}
	return ts
}

func waitState(t *testing.T, e *Engine, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return e.State() == want },
		2*time.Second, 2*time.Millisecond, "waiting for state %v", want)
}

// advance moves a mock render clock forward on the owner goroutine so the
// engine never observes a torn update.
func (env *testEnv) advance(h *backend.MockHandle, d time.Duration) {
	env.engine.read(func() { h.Advance(d) })
}

func (env *testEnv) seekCalls(h *backend.MockHandle) []time.Duration {
	var calls []time.Duration
	env.engine.read(func() {
		calls = append(calls, h.SeekCalls...)
	})
	return calls
}

func TestPlayTracksStartsPlayback(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.engine.PlayTracks(testTracks(2), 0))
	waitState(t, env.engine, StatePlaying)

	assert.Equal(t, 1, env.opener.openCalls())
	assert.Equal(t, 0, env.engine.QueueIndex())
	cur := env.engine.CurrentTrack()
	require.NotNil(t, cur)
	assert.Equal(t, "Track 1", cur.Title)
	assert.Equal(t, backend.VariantDelegated, env.engine.Variant())
}

func TestPlayTracksEmpty(t *testing.T) {
	env := newTestEnv(t)
	assert.ErrorIs(t, env.engine.PlayTracks(nil, 0), ErrNothingToPlay)
}

func TestPlayIsIdempotentWhilePlaying(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.engine.PlayTracks(testTracks(1), 0))
	waitState(t, env.engine, StatePlaying)

	h := env.opener.handle(0)
	before := len(env.seekCalls(h))

	require.NoError(t, env.engine.Play())
	require.NoError(t, env.engine.Play())

	assert.Equal(t, StatePlaying, env.engine.State())
	assert.Len(t, env.seekCalls(h), before, "redundant Play must not reschedule")
}

func TestSeekPauseResume(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.engine.PlayTracks(testTracks(1), 0))
	waitState(t, env.engine, StatePlaying)

	require.NoError(t, env.engine.SeekTo(90*time.Second))
	assert.Equal(t, 90*time.Second, env.engine.Position())

	require.NoError(t, env.engine.Pause())
	assert.Equal(t, StatePaused, env.engine.State())
	assert.Equal(t, 90*time.Second, env.engine.Position())

	require.NoError(t, env.engine.Play())
	assert.Equal(t, StatePlaying, env.engine.State())
	assert.Equal(t, 90*time.Second, env.engine.Position())

	h := env.opener.handle(0)
	calls := env.seekCalls(h)
	assert.Equal(t, 90*time.Second, calls[len(calls)-1], "resume reschedules at the preserved position")
}

func TestSeekOutOfRangeLeavesPlaybackUntouched(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.engine.PlayTracks(testTracks(1), 0))
	waitState(t, env.engine, StatePlaying)
	require.NoError(t, env.engine.SeekTo(30*time.Second))

	err := env.engine.SeekTo(5 * time.Minute)
	assert.ErrorIs(t, err, backend.ErrSeekOutOfRange)
	assert.ErrorIs(t, env.engine.SeekTo(-time.Second), backend.ErrSeekOutOfRange)

	assert.Equal(t, StatePlaying, env.engine.State())
	assert.Equal(t, 30*time.Second, env.engine.Position())
}

func TestSeekTargetsAreExact(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.engine.PlayTracks(testTracks(1), 0))
	waitState(t, env.engine, StatePlaying)

	for _, target := range []time.Duration{
		0,
		1500 * time.Millisecond,
		minute(1) + 234*time.Millisecond,
		minute(2) + 59*time.Second,
	} {
		require.NoError(t, env.engine.SeekTo(target))
		assert.Equal(t, target, env.engine.Position())
	}
}

func minute(n int) time.Duration { return time.Duration(n) * time.Minute }

func TestPauseRecomputesPositionFromRenderClock(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.engine.PlayTracks(testTracks(1), 0))
	waitState(t, env.engine, StatePlaying)

	h := env.opener.handle(0)
	env.advance(h, 17*time.Second)

	require.NoError(t, env.engine.Pause())
	assert.Equal(t, 17*time.Second, env.engine.Position())
}

func TestPositionCombinesSeekOffsetAndRenderClock(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.engine.PlayTracks(testTracks(1), 0))
	waitState(t, env.engine, StatePlaying)

	require.NoError(t, env.engine.SeekTo(60*time.Second))
	env.advance(env.opener.handle(0), 5*time.Second)

	assert.Equal(t, 65*time.Second, env.engine.Position())
}

func TestStopReleasesTrackAndKeepsQueue(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.engine.PlayTracks(testTracks(3), 1))
	waitState(t, env.engine, StatePlaying)

	require.NoError(t, env.engine.Stop())
	assert.Equal(t, StateStopped, env.engine.State())
	assert.Equal(t, time.Duration(0), env.engine.Position())
	assert.Equal(t, 3, env.engine.QueueLen())
	assert.True(t, env.opener.handle(0).Closed)

	// Play from stopped reloads the current queue entry.
	require.NoError(t, env.engine.Play())
	waitState(t, env.engine, StatePlaying)
	assert.Equal(t, 2, env.opener.openCalls())
	assert.Equal(t, 1, env.engine.QueueIndex())
}

func TestNextPrevious(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.engine.PlayTracks(testTracks(3), 0))
	waitState(t, env.engine, StatePlaying)

	require.NoError(t, env.engine.Next())
	waitState(t, env.engine, StatePlaying)
	assert.Equal(t, 1, env.engine.QueueIndex())

	// Early in the track Previous moves back a queue entry.
	require.NoError(t, env.engine.Previous())
	waitState(t, env.engine, StatePlaying)
	assert.Equal(t, 0, env.engine.QueueIndex())
}

func TestPreviousRestartsDeepIntoTrack(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.engine.PlayTracks(testTracks(2), 1))
	waitState(t, env.engine, StatePlaying)

	require.NoError(t, env.engine.SeekTo(30*time.Second))
	require.NoError(t, env.engine.Previous())

	assert.Equal(t, 1, env.engine.QueueIndex(), "stays on the same track")
	assert.Equal(t, time.Duration(0), env.engine.Position())
	assert.Equal(t, 1, env.opener.openCalls())
}

func TestSeekByClampsAndFinishes(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.engine.PlayTracks(testTracks(1), 0))
	waitState(t, env.engine, StatePlaying)

	require.NoError(t, env.engine.SeekTo(10*time.Second))
	require.NoError(t, env.engine.SeekBy(-30*time.Second))
	assert.Equal(t, time.Duration(0), env.engine.Position())

	// Forward past the end with repeat off counts as the track finishing.
	require.NoError(t, env.engine.SeekBy(10*time.Minute))
	waitState(t, env.engine, StateStopped)
}

func TestSeekPastEndWhilePausedReplaysWithoutResuming(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.engine.PlayTracks(testTracks(1), 0))
	waitState(t, env.engine, StatePlaying)
	env.engine.SetRepeatMode(queue.RepeatSong)

	h := env.opener.handle(0)
	env.advance(h, 100*time.Second)
	require.NoError(t, env.engine.Pause())

	require.NoError(t, env.engine.SeekBy(10*time.Minute))

	assert.Equal(t, StatePaused, env.engine.State())
	assert.Equal(t, time.Duration(0), env.engine.Position())
	var playing bool
	env.engine.read(func() { playing = h.Playing })
	assert.False(t, playing, "replay while paused must not start the backend")

	require.NoError(t, env.engine.Play())
	waitState(t, env.engine, StatePlaying)
	env.engine.read(func() { playing = h.Playing })
	assert.True(t, playing)
}

func TestSeekPastEndWhilePausedAdvancesWithoutResuming(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.engine.PlayTracks(testTracks(2), 0))
	waitState(t, env.engine, StatePlaying)
	require.NoError(t, env.engine.Pause())

	require.NoError(t, env.engine.SeekBy(10*time.Minute))

	require.Eventually(t, func() bool {
		cur := env.engine.CurrentTrack()
		return env.engine.State() == StatePaused && cur != nil && cur.ID == 2
	}, 2*time.Second, 2*time.Millisecond, "next track must load without playing")
}

func TestTrackFinishedAdvances(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.engine.PlayTracks(testTracks(2), 0))
	waitState(t, env.engine, StatePlaying)

	env.opener.handle(0).FinishTrack()

	require.Eventually(t, func() bool { return env.engine.QueueIndex() == 1 },
		2*time.Second, 2*time.Millisecond)
	waitState(t, env.engine, StatePlaying)
	assert.Equal(t, 2, env.opener.openCalls())
}

func TestTrackFinishedStopsAtQueueEnd(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.engine.PlayTracks(testTracks(1), 0))
	waitState(t, env.engine, StatePlaying)

	env.opener.handle(0).FinishTrack()
	waitState(t, env.engine, StateStopped)
	assert.Equal(t, 1, env.opener.openCalls(), "nothing reloaded")
}

func TestSongLoopReplaysWithoutReopening(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.engine.PlayTracks(testTracks(2), 0))
	waitState(t, env.engine, StatePlaying)
	env.engine.SetRepeatMode(queue.RepeatSong)

	h := env.opener.handle(0)
	env.advance(h, time.Minute)
	h.FinishTrack()

	require.Eventually(t, func() bool { return env.engine.Position() == 0 },
		2*time.Second, 2*time.Millisecond)
	assert.Equal(t, StatePlaying, env.engine.State())
	assert.Equal(t, 0, env.engine.QueueIndex(), "song loop beats queue advance")
	assert.Equal(t, 1, env.opener.openCalls())
	calls := env.seekCalls(h)
	assert.Equal(t, time.Duration(0), calls[len(calls)-1])
}

func TestQueueLoopWrapsToStart(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.engine.PlayTracks(testTracks(2), 1))
	waitState(t, env.engine, StatePlaying)
	env.engine.SetRepeatMode(queue.RepeatQueue)

	env.opener.handle(0).FinishTrack()

	require.Eventually(t, func() bool { return env.engine.QueueIndex() == 0 },
		2*time.Second, 2*time.Millisecond)
	waitState(t, env.engine, StatePlaying)
	assert.Equal(t, 2, env.opener.openCalls())
}

func TestLoadInProgressRejected(t *testing.T) {
	env := newTestEnv(t, func(o *Options) {
		op := newStubOpener(3 * time.Minute)
		op.block = make(chan struct{})
		o.Opener = op
	})

	require.NoError(t, env.engine.PlayTracks(testTracks(2), 0))
	assert.Equal(t, StateLoading, env.engine.State())

	assert.ErrorIs(t, env.engine.Play(), ErrLoadInProgress)
	assert.ErrorIs(t, env.engine.PlayTracks(testTracks(1), 0), ErrLoadInProgress)
	assert.ErrorIs(t, env.engine.Next(), ErrLoadInProgress)

	close(env.opener.block)
	waitState(t, env.engine, StatePlaying)
}

func TestStaleLoadResultDiscarded(t *testing.T) {
	env := newTestEnv(t, func(o *Options) {
		op := newStubOpener(3 * time.Minute)
		op.block = make(chan struct{})
		o.Opener = op
	})

	require.NoError(t, env.engine.PlayTracks(testTracks(1), 0))
	require.NoError(t, env.engine.Stop())

	close(env.opener.block)

	require.Eventually(t, func() bool {
		var closed bool
		env.engine.read(func() {
			h := env.opener.handle(0)
			closed = h != nil && h.Closed
		})
		return closed
	}, 2*time.Second, 2*time.Millisecond, "superseded load must release its handle")
	assert.Equal(t, StateStopped, env.engine.State())
}

func TestLoadFailureStops(t *testing.T) {
	env := newTestEnv(t, func(o *Options) {
		op := newStubOpener(3 * time.Minute)
		op.err = backend.ErrInvalidAudioFile
		o.Opener = op
	})

	sub := env.engine.Subscribe()
	require.NoError(t, env.engine.PlayTracks(testTracks(1), 0))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sub.Events:
			if pe, ok := ev.(PlaybackError); ok {
				assert.ErrorIs(t, pe.Err, backend.ErrInvalidAudioFile)
				assert.Equal(t, StateStopped, env.engine.State())
				return
			}
		case <-deadline:
			t.Fatal("load failure was not published")
		}
	}
}

func TestLoadFailureKeepsPreviousTrackVisible(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.engine.PlayTracks(testTracks(1), 0))
	waitState(t, env.engine, StatePlaying)

	env.opener.setErr(backend.ErrInvalidAudioFile)
	sub := env.engine.Subscribe()
	broken := track.Descriptor{ID: 99, Path: "/music/broken.flac", Format: "flac"}
	require.NoError(t, env.engine.LoadTrack(broken))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sub.Events:
			if _, ok := ev.(PlaybackError); ok {
				waitState(t, env.engine, StateStopped)
				cur := env.engine.CurrentTrack()
				require.NotNil(t, cur)
				assert.Equal(t, int64(1), cur.ID, "failed load must not replace the shown track")
				return
			}
		case <-deadline:
			t.Fatal("load failure was not published")
		}
	}
}

func TestInterruptionPreservesPosition(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.engine.PlayTracks(testTracks(1), 0))
	waitState(t, env.engine, StatePlaying)

	env.advance(env.opener.handle(0), 42300*time.Millisecond)
	require.Equal(t, 42300*time.Millisecond, env.engine.Position())
	env.events <- audiosession.Event{Kind: audiosession.InterruptionBegan}

	waitState(t, env.engine, StatePaused)
	assert.Equal(t, 42300*time.Millisecond, env.engine.Position())

	// Without a resume hint playback stays paused at the same spot.
	env.events <- audiosession.Event{Kind: audiosession.InterruptionEnded, ShouldResume: false}
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StatePaused, env.engine.State())
	assert.Equal(t, 42300*time.Millisecond, env.engine.Position())
}

func TestInterruptionResumeHint(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.engine.PlayTracks(testTracks(1), 0))
	waitState(t, env.engine, StatePlaying)

	env.advance(env.opener.handle(0), 10*time.Second)
	require.Equal(t, 10*time.Second, env.engine.Position())
	env.events <- audiosession.Event{Kind: audiosession.InterruptionBegan}
	waitState(t, env.engine, StatePaused)

	env.events <- audiosession.Event{Kind: audiosession.InterruptionEnded, ShouldResume: true}
	waitState(t, env.engine, StatePlaying)
	assert.Equal(t, 10*time.Second, env.engine.Position())
}

func TestResumeHintIgnoredAfterManualPause(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.engine.PlayTracks(testTracks(1), 0))
	waitState(t, env.engine, StatePlaying)

	require.NoError(t, env.engine.Pause())
	env.events <- audiosession.Event{Kind: audiosession.InterruptionEnded, ShouldResume: true}
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StatePaused, env.engine.State(), "user pause wins over the resume hint")
}

func TestRouteChangePauses(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.engine.PlayTracks(testTracks(1), 0))
	waitState(t, env.engine, StatePlaying)

	env.advance(env.opener.handle(0), 8*time.Second)
	env.events <- audiosession.Event{Kind: audiosession.RouteChanged}

	waitState(t, env.engine, StatePaused)
	assert.Equal(t, 8*time.Second, env.engine.Position())
}

func TestServiceResetRecovers(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.engine.PlayTracks(testTracks(1), 0))
	waitState(t, env.engine, StatePlaying)

	require.NoError(t, env.engine.SeekTo(55*time.Second))
	env.events <- audiosession.Event{Kind: audiosession.ServiceReset}

	require.Eventually(t, func() bool { return env.opener.openCalls() == 2 },
		2*time.Second, 2*time.Millisecond)
	waitState(t, env.engine, StatePlaying)

	var rebuilds int
	env.engine.read(func() { rebuilds = env.session.Rebuilds })
	assert.Equal(t, 1, rebuilds)
	assert.Equal(t, 55*time.Second, env.engine.Position())
}

func TestSnapshotStateSaved(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.engine.PlayTracks(testTracks(3), 1))
	waitState(t, env.engine, StatePlaying)
	require.NoError(t, env.engine.SeekTo(20*time.Second))

	require.NoError(t, env.engine.SaveState())

	st := env.states.saved()
	require.NotNil(t, st)
	assert.Equal(t, int64(2), st.CurrentTrackID)
	assert.Equal(t, 1, st.CurrentIndex)
	assert.Equal(t, 20*time.Second, st.Elapsed)
	assert.Equal(t, []int64{1, 2, 3}, st.QueueTrackIDs)
	assert.False(t, st.IsPlaying)
}

func TestRestoreRebuildsQueueWithoutPlaying(t *testing.T) {
	tracks := testTracks(3)
	store := &memTrackStore{tracks: map[int64]track.Descriptor{}}
	for _, tr := range tracks {
		store.tracks[tr.ID] = tr
	}
	states := &memStateStore{}
	require.NoError(t, states.Save(persist.PlayerState{
		CurrentTrackID: 2,
		Elapsed:        75 * time.Second,
		QueueTrackIDs:  []int64{1, 2, 3},
		CurrentIndex:   1,
		RepeatMode:     int(queue.RepeatQueue),
	}))

	env := newTestEnv(t, func(o *Options) {
		o.Store = store
		o.States = states
	})
	require.NoError(t, env.engine.Restore(context.Background()))

	assert.Equal(t, StateStopped, env.engine.State())
	assert.Equal(t, 3, env.engine.QueueLen())
	assert.Equal(t, 1, env.engine.QueueIndex())
	assert.Equal(t, 75*time.Second, env.engine.Position())
	assert.Equal(t, queue.RepeatQueue, env.engine.RepeatMode())

	// Play resumes where the previous run left off.
	require.NoError(t, env.engine.Play())
	waitState(t, env.engine, StatePlaying)
	assert.Equal(t, 75*time.Second, env.engine.Position())
	h := env.opener.handle(0)
	calls := env.seekCalls(h)
	require.NotEmpty(t, calls)
	assert.Equal(t, 75*time.Second, calls[len(calls)-1])
}

func TestRestoreSkipsMissingTracks(t *testing.T) {
	tracks := testTracks(3)
	store := &memTrackStore{tracks: map[int64]track.Descriptor{
		1: tracks[0],
		3: tracks[2],
	}}
	states := &memStateStore{}
	require.NoError(t, states.Save(persist.PlayerState{
		CurrentTrackID: 2,
		QueueTrackIDs:  []int64{1, 2, 3},
		CurrentIndex:   1,
	}))

	env := newTestEnv(t, func(o *Options) {
		o.Store = store
		o.States = states
	})
	require.NoError(t, env.engine.Restore(context.Background()))

	assert.Equal(t, 2, env.engine.QueueLen())
}

func TestRestoreRelocatesCurrentAfterMissingTracks(t *testing.T) {
	tracks := testTracks(3)
	store := &memTrackStore{tracks: map[int64]track.Descriptor{
		2: tracks[1],
		3: tracks[2],
	}}
	states := &memStateStore{}
	require.NoError(t, states.Save(persist.PlayerState{
		CurrentTrackID: 3,
		QueueTrackIDs:  []int64{1, 2, 3},
		CurrentIndex:   2,
	}))

	env := newTestEnv(t, func(o *Options) {
		o.Store = store
		o.States = states
	})
	require.NoError(t, env.engine.Restore(context.Background()))

	// Track 1 disappeared; the saved index is stale and the current track
	// is found again by id.
	assert.Equal(t, 2, env.engine.QueueLen())
	assert.Equal(t, 1, env.engine.QueueIndex())
	cur := env.engine.CurrentTrack()
	require.NotNil(t, cur)
	assert.Equal(t, int64(3), cur.ID)
}

func TestCloseSavesState(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.engine.PlayTracks(testTracks(1), 0))
	waitState(t, env.engine, StatePlaying)
	require.NoError(t, env.engine.SeekTo(33*time.Second))

	require.NoError(t, env.engine.Close())

	st := env.states.saved()
	require.NotNil(t, st)
	assert.Equal(t, 33*time.Second, st.Elapsed)
	assert.ErrorIs(t, env.engine.Play(), ErrClosed)
}

func TestSubscriptionReceivesStateChanges(t *testing.T) {
	env := newTestEnv(t)
	sub := env.engine.Subscribe()

	require.NoError(t, env.engine.PlayTracks(testTracks(1), 0))
	waitState(t, env.engine, StatePlaying)

	var states []State
	for done := false; !done; {
		select {
		case ev := <-sub.Events:
			if sc, ok := ev.(StateChanged); ok {
				states = append(states, sc.Current)
			}
		default:
			done = true
		}
	}
	assert.Equal(t, []State{StateLoading, StatePlaying}, states)
}
