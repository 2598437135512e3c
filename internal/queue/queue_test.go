package queue

import (
	"testing"

	"github.com/llehouerou/tide/internal/track"
)

func tracks(ids ...int64) []track.Descriptor {
	out := make([]track.Descriptor, len(ids))
	for i, id := range ids {
		out[i] = track.Descriptor{ID: id, Path: "/music/t.mp3"}
	}
	return out
}

// checkInvariant asserts the index invariant: 0 <= current < len when
// non-empty, current == 0 and no current track when empty.
func checkInvariant(t *testing.T, q *Queue) {
	t.Helper()
	if q.IsEmpty() {
		if q.Index() != 0 {
			t.Errorf("empty queue Index() = %d, want 0", q.Index())
		}
		if q.Current() != nil {
			t.Error("empty queue Current() should be nil")
		}
		return
	}
	if q.Index() < 0 || q.Index() >= q.Len() {
		t.Errorf("Index() = %d out of [0, %d)", q.Index(), q.Len())
	}
}

func TestNew_Empty(t *testing.T) {
	q := New()
	checkInvariant(t, q)
	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0", q.Len())
	}
}

func TestReplace(t *testing.T) {
	q := New()
	q.Replace(tracks(1, 2, 3), 1)

	if q.Len() != 3 {
		t.Errorf("Len() = %d, want 3", q.Len())
	}
	if q.Current() == nil || q.Current().ID != 2 {
		t.Errorf("Current() = %v, want ID 2", q.Current())
	}
	checkInvariant(t, q)

	// Wholesale replacement resets position and shuffle.
	q.SetShuffle(true)
	q.Replace(tracks(4, 5), 0)
	if q.Shuffled() {
		t.Error("Replace should clear shuffle")
	}
	if q.Current().ID != 4 {
		t.Errorf("Current().ID = %d, want 4", q.Current().ID)
	}
}

func TestReplace_OutOfRangeStartClamped(t *testing.T) {
	q := New()
	q.Replace(tracks(1, 2), 10)
	checkInvariant(t, q)
	if q.Index() != 1 {
		t.Errorf("Index() = %d, want clamped 1", q.Index())
	}

	q.Replace(nil, 5)
	checkInvariant(t, q)
}

func TestRemoveAt(t *testing.T) {
	q := New()
	q.Replace(tracks(1, 2, 3), 1)

	// Removing before current shifts the index down.
	if !q.RemoveAt(0) {
		t.Fatal("RemoveAt(0) failed")
	}
	if q.Current().ID != 2 {
		t.Errorf("Current().ID = %d, want 2", q.Current().ID)
	}
	checkInvariant(t, q)

	// Removing the current track keeps the position on the successor.
	q.Replace(tracks(1, 2, 3), 1)
	q.RemoveAt(1)
	if q.Current().ID != 3 {
		t.Errorf("Current().ID = %d, want 3", q.Current().ID)
	}

	// Removing the last current track clamps.
	q.Replace(tracks(1, 2), 1)
	q.RemoveAt(1)
	if q.Current().ID != 1 {
		t.Errorf("Current().ID = %d, want 1", q.Current().ID)
	}
	checkInvariant(t, q)

	// Draining the queue restores the empty invariant.
	q.RemoveAt(0)
	checkInvariant(t, q)
}

func TestMove_PreservesCurrentIdentity(t *testing.T) {
	q := New()
	q.Replace(tracks(1, 2, 3, 4), 2) // playing 3

	// Move the playing track itself.
	if !q.Move(2, 0) {
		t.Fatal("Move failed")
	}
	if q.Current().ID != 3 {
		t.Errorf("Current().ID = %d, want 3", q.Current().ID)
	}
	if q.Index() != 0 {
		t.Errorf("Index() = %d, want 0", q.Index())
	}

	// Move another track across the current one.
	q.Replace(tracks(1, 2, 3, 4), 2)
	q.Move(3, 0)
	if q.Current().ID != 3 {
		t.Errorf("Current().ID = %d, want 3", q.Current().ID)
	}
	if q.Index() != 3 {
		t.Errorf("Index() = %d, want 3", q.Index())
	}
	checkInvariant(t, q)
}

func TestAdvanceRetreat(t *testing.T) {
	q := New()
	q.Replace(tracks(1, 2), 0)

	if got := q.Advance(); got == nil || got.ID != 2 {
		t.Errorf("Advance() = %v, want ID 2", got)
	}
	if got := q.Advance(); got != nil {
		t.Errorf("Advance() past end = %v, want nil", got)
	}
	if got := q.Retreat(); got == nil || got.ID != 1 {
		t.Errorf("Retreat() = %v, want ID 1", got)
	}
	if got := q.Retreat(); got != nil {
		t.Errorf("Retreat() past start = %v, want nil", got)
	}
}

func TestShuffle_PinsCurrentAndRestores(t *testing.T) {
	q := NewSeeded(42)
	q.Replace(tracks(1, 2, 3, 4, 5), 1) // playing 2

	q.SetShuffle(true)

	if q.Current().ID != 2 {
		t.Errorf("shuffled Current().ID = %d, want pinned 2", q.Current().ID)
	}
	if q.Index() != 0 {
		t.Errorf("shuffled Index() = %d, want 0", q.Index())
	}
	if q.Len() != 5 {
		t.Errorf("shuffled Len() = %d, want 5", q.Len())
	}
	seen := map[int64]bool{}
	for _, tr := range q.Tracks() {
		seen[tr.ID] = true
	}
	for id := int64(1); id <= 5; id++ {
		if !seen[id] {
			t.Errorf("track %d missing after shuffle", id)
		}
	}

	q.SetShuffle(false)

	want := []int64{1, 2, 3, 4, 5}
	for i, tr := range q.Tracks() {
		if tr.ID != want[i] {
			t.Errorf("restored order[%d] = %d, want %d", i, tr.ID, want[i])
		}
	}
	if q.Index() != 1 {
		t.Errorf("restored Index() = %d, want original 1", q.Index())
	}
	if q.Current().ID != 2 {
		t.Errorf("restored Current().ID = %d, want 2", q.Current().ID)
	}
}

func TestShuffle_CurrentSurvivesNavigation(t *testing.T) {
	q := NewSeeded(7)
	q.Replace(tracks(1, 2, 3, 4, 5), 0)
	q.SetShuffle(true)

	q.Advance()
	movedID := q.Current().ID

	q.SetShuffle(false)
	if q.Current().ID != movedID {
		t.Errorf("Current().ID = %d, want %d after unshuffle", q.Current().ID, movedID)
	}
	checkInvariant(t, q)
}

func TestCycleRepeatMode(t *testing.T) {
	q := New()

	if got := q.CycleRepeatMode(); got != RepeatQueue {
		t.Errorf("first cycle = %v, want RepeatQueue", got)
	}
	if got := q.CycleRepeatMode(); got != RepeatSong {
		t.Errorf("second cycle = %v, want RepeatSong", got)
	}
	if got := q.CycleRepeatMode(); got != RepeatOff {
		t.Errorf("third cycle = %v, want RepeatOff", got)
	}
}

func TestResolveEnd_SongLoop(t *testing.T) {
	q := New()
	q.Replace(tracks(1, 2, 3), 0)
	q.SetRepeatMode(RepeatSong)

	action, tr := q.ResolveEnd()

	if action != EndReplay {
		t.Errorf("action = %v, want EndReplay", action)
	}
	if tr.ID != 1 || q.Index() != 0 {
		t.Errorf("song loop changed position: ID %d index %d", tr.ID, q.Index())
	}
}

func TestResolveEnd_Advance(t *testing.T) {
	q := New()
	q.Replace(tracks(1, 2, 3), 0)

	action, tr := q.ResolveEnd()

	if action != EndAdvance || tr.ID != 2 {
		t.Errorf("ResolveEnd() = (%v, %v), want (EndAdvance, ID 2)", action, tr)
	}
}

func TestResolveEnd_QueueLoopWraps(t *testing.T) {
	q := New()
	q.Replace(tracks(1, 2, 3), 2)
	q.SetRepeatMode(RepeatQueue)

	action, tr := q.ResolveEnd()

	if action != EndWrap || tr.ID != 1 || q.Index() != 0 {
		t.Errorf("ResolveEnd() = (%v, %v) index %d, want wrap to ID 1 at 0",
			action, tr, q.Index())
	}
}

func TestResolveEnd_StopAtEnd(t *testing.T) {
	q := New()
	q.Replace(tracks(1, 2), 1)

	action, tr := q.ResolveEnd()

	if action != EndStop || tr != nil {
		t.Errorf("ResolveEnd() = (%v, %v), want (EndStop, nil)", action, tr)
	}
}

func TestResolveEnd_SongLoopBeatsNext(t *testing.T) {
	// Song loop wins over an available next track.
	q := New()
	q.Replace(tracks(1, 2), 0)
	q.SetRepeatMode(RepeatSong)

	action, _ := q.ResolveEnd()
	if action != EndReplay {
		t.Errorf("action = %v, want EndReplay over EndAdvance", action)
	}
}

func TestRestore(t *testing.T) {
	q := New()
	original := tracks(1, 2, 3)
	shuffledOrder := tracks(2, 1, 3)

	q.Restore(shuffledOrder, original, 0, RepeatQueue, true)

	if !q.Shuffled() || q.Current().ID != 2 {
		t.Errorf("restored shuffled queue: shuffled=%v current=%v", q.Shuffled(), q.Current())
	}
	if q.RepeatMode() != RepeatQueue {
		t.Errorf("RepeatMode() = %v, want RepeatQueue", q.RepeatMode())
	}

	q.SetShuffle(false)
	want := []int64{1, 2, 3}
	for i, tr := range q.Tracks() {
		if tr.ID != want[i] {
			t.Errorf("order[%d] = %d, want %d", i, tr.ID, want[i])
		}
	}
}
