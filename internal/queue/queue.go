// Package queue manages the ordered play queue: current index, shuffle with
// original-order restore, repeat modes and track-end resolution. It holds no
// locks; the engine's serialized owner is the only caller.
package queue

import (
	"math/rand"
	"time"

	"github.com/samber/lo"

	"github.com/llehouerou/tide/internal/track"
)

// Queue is an ordered sequence of tracks with a current position.
//
// Index invariant: 0 <= current < len whenever the queue is non-empty;
// current is 0 and Current returns nil when empty.
type Queue struct {
	tracks   []track.Descriptor
	original []track.Descriptor // pre-shuffle order, nil unless shuffled
	current  int
	repeat   RepeatMode
	shuffled bool
	rng      *rand.Rand
}

// New creates an empty queue.
func New() *Queue {
	return NewSeeded(time.Now().UnixNano())
}

// NewSeeded creates an empty queue with a deterministic shuffle source.
func NewSeeded(seed int64) *Queue {
	return &Queue{rng: rand.New(rand.NewSource(seed))}
}

// Len returns the number of tracks.
func (q *Queue) Len() int { return len(q.tracks) }

// IsEmpty returns true if the queue has no tracks.
func (q *Queue) IsEmpty() bool { return len(q.tracks) == 0 }

// Index returns the current index (0 when empty).
func (q *Queue) Index() int { return q.current }

// Current returns the current track, or nil when the queue is empty.
func (q *Queue) Current() *track.Descriptor {
	if q.IsEmpty() {
		return nil
	}
	return &q.tracks[q.current]
}

// Tracks returns a copy of the queue in play order.
func (q *Queue) Tracks() []track.Descriptor {
	out := make([]track.Descriptor, len(q.tracks))
	copy(out, q.tracks)
	return out
}

// OriginalTracks returns a copy of the pre-shuffle order, or nil when
// shuffle is off.
func (q *Queue) OriginalTracks() []track.Descriptor {
	if q.original == nil {
		return nil
	}
	out := make([]track.Descriptor, len(q.original))
	copy(out, q.original)
	return out
}

// Replace swaps the whole queue and positions it at start. Shuffle is
// cleared; repeat mode is kept.
func (q *Queue) Replace(tracks []track.Descriptor, start int) {
	q.tracks = make([]track.Descriptor, len(tracks))
	copy(q.tracks, tracks)
	q.original = nil
	q.shuffled = false
	q.current = clampIndex(start, len(q.tracks))
}

// Add appends tracks without changing the current position.
func (q *Queue) Add(tracks ...track.Descriptor) {
	q.tracks = append(q.tracks, tracks...)
	if q.original != nil {
		q.original = append(q.original, tracks...)
	}
}

// RemoveAt removes the track at index. When the current track is removed the
// position stays, now pointing at the following track (clamped at the end).
func (q *Queue) RemoveAt(index int) bool {
	if index < 0 || index >= len(q.tracks) {
		return false
	}
	removed := q.tracks[index]
	q.tracks = append(q.tracks[:index], q.tracks[index+1:]...)

	if q.original != nil {
		if _, i, ok := lo.FindIndexOf(q.original, func(t track.Descriptor) bool {
			return t.ID == removed.ID
		}); ok {
			q.original = append(q.original[:i], q.original[i+1:]...)
		}
	}

	if q.current > index {
		q.current--
	}
	q.current = clampIndex(q.current, len(q.tracks))
	if q.IsEmpty() {
		q.original = nil
		q.shuffled = false
	}
	return true
}

// Clear removes all tracks.
func (q *Queue) Clear() {
	q.tracks = nil
	q.original = nil
	q.shuffled = false
	q.current = 0
}

// Move moves the track at from to to. The currently playing track keeps its
// identity: the index is recomputed relative to the moved range.
func (q *Queue) Move(from, to int) bool {
	n := len(q.tracks)
	if from < 0 || from >= n || to < 0 || to >= n {
		return false
	}
	if from == to {
		return true
	}

	var currentID int64
	if cur := q.Current(); cur != nil {
		currentID = cur.ID
	}

	t := q.tracks[from]
	q.tracks = append(q.tracks[:from], q.tracks[from+1:]...)
	q.tracks = append(q.tracks[:to], append([]track.Descriptor{t}, q.tracks[to:]...)...)

	if _, i, ok := lo.FindIndexOf(q.tracks, func(t track.Descriptor) bool {
		return t.ID == currentID
	}); ok {
		q.current = i
	}
	return true
}

// JumpTo sets the current position. Returns the track there, nil if the
// index is out of bounds.
func (q *Queue) JumpTo(index int) *track.Descriptor {
	if index < 0 || index >= len(q.tracks) {
		return nil
	}
	q.current = index
	return q.Current()
}

// HasNext returns true if a track follows the current one.
func (q *Queue) HasNext() bool {
	return q.current < len(q.tracks)-1
}

// Advance moves to the next track and returns it, nil if at the end.
func (q *Queue) Advance() *track.Descriptor {
	if !q.HasNext() {
		return nil
	}
	q.current++
	return q.Current()
}

// Retreat moves to the previous track and returns it, nil if at the start.
func (q *Queue) Retreat() *track.Descriptor {
	if q.IsEmpty() || q.current == 0 {
		return nil
	}
	q.current--
	return q.Current()
}

// ResolveEnd resolves a natural track end, in precedence order: song loop
// replays the same track, then an existing next track, then a queue-loop
// wrap to index 0, otherwise stop. The index is already advanced when the
// returned action is EndAdvance or EndWrap.
func (q *Queue) ResolveEnd() (EndAction, *track.Descriptor) {
	if q.IsEmpty() {
		return EndStop, nil
	}
	if q.repeat == RepeatSong {
		return EndReplay, q.Current()
	}
	if next := q.Advance(); next != nil {
		return EndAdvance, next
	}
	if q.repeat == RepeatQueue {
		q.current = 0
		return EndWrap, q.Current()
	}
	return EndStop, nil
}

// RepeatMode returns the active repeat mode.
func (q *Queue) RepeatMode() RepeatMode { return q.repeat }

// SetRepeatMode sets the repeat mode.
func (q *Queue) SetRepeatMode(mode RepeatMode) { q.repeat = mode }

// CycleRepeatMode advances Off → Queue → Song → Off and returns the new
// mode.
func (q *Queue) CycleRepeatMode() RepeatMode {
	q.repeat = q.repeat.Cycle()
	return q.repeat
}

// Shuffled returns true while shuffle is on.
func (q *Queue) Shuffled() bool { return q.shuffled }

// SetShuffle toggles shuffle. Turning it on pins the current track at index
// 0 and permutes the rest, retaining the original order. Turning it off
// restores that order and re-locates the current track's original index.
func (q *Queue) SetShuffle(enabled bool) {
	if enabled == q.shuffled {
		return
	}
	if enabled {
		q.shuffle()
	} else {
		q.unshuffle()
	}
}

// ToggleShuffle flips shuffle and returns the new state.
func (q *Queue) ToggleShuffle() bool {
	q.SetShuffle(!q.shuffled)
	return q.shuffled
}

func (q *Queue) shuffle() {
	q.shuffled = true
	if len(q.tracks) < 2 {
		q.original = q.Tracks()
		return
	}

	q.original = q.Tracks()

	rest := make([]track.Descriptor, 0, len(q.tracks)-1)
	rest = append(rest, q.tracks[:q.current]...)
	rest = append(rest, q.tracks[q.current+1:]...)
	q.rng.Shuffle(len(rest), func(i, j int) {
		rest[i], rest[j] = rest[j], rest[i]
	})

	shuffled := make([]track.Descriptor, 0, len(q.tracks))
	shuffled = append(shuffled, q.tracks[q.current])
	shuffled = append(shuffled, rest...)
	q.tracks = shuffled
	q.current = 0
}

func (q *Queue) unshuffle() {
	q.shuffled = false
	if q.original == nil {
		return
	}

	var currentID int64
	if cur := q.Current(); cur != nil {
		currentID = cur.ID
	}

	q.tracks = q.original
	q.original = nil

	if _, i, ok := lo.FindIndexOf(q.tracks, func(t track.Descriptor) bool {
		return t.ID == currentID
	}); ok {
		q.current = i
	} else {
		q.current = clampIndex(q.current, len(q.tracks))
	}
}

// Restore rebuilds the queue from persisted state.
func (q *Queue) Restore(tracks, original []track.Descriptor, index int, repeat RepeatMode, shuffled bool) {
	q.tracks = make([]track.Descriptor, len(tracks))
	copy(q.tracks, tracks)
	q.original = nil
	if shuffled && len(original) > 0 {
		q.original = make([]track.Descriptor, len(original))
		copy(q.original, original)
	}
	q.shuffled = shuffled && q.original != nil
	q.repeat = repeat
	q.current = clampIndex(index, len(q.tracks))
}

func clampIndex(i, n int) int {
	if n == 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
