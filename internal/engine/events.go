package engine

import (
	"time"

	"github.com/llehouerou/tide/internal/errmsg"
	"github.com/llehouerou/tide/internal/queue"
	"github.com/llehouerou/tide/internal/track"
)

// Event is a playback notification delivered to subscribers. All events are
// emitted from the serialized owner, in order.
type Event interface {
	isEvent()
}

// StateChanged is emitted on every state machine transition.
type StateChanged struct {
	Previous State
	Current  State
}

// TrackChanged is emitted when a different track is bound, and when a song
// loop replays the current one.
type TrackChanged struct {
	Track track.Descriptor
	Index int
}

// PositionChanged is emitted by the position poll and after seeks.
type PositionChanged struct {
	Position time.Duration
}

// QueueChanged is emitted when queue contents or order change.
type QueueChanged struct {
	Tracks []track.Descriptor
	Index  int
}

// ModeChanged is emitted when repeat or shuffle change.
type ModeChanged struct {
	Repeat  queue.RepeatMode
	Shuffle bool
}

// VolumeChanged is emitted when the master volume or mute state changes.
type VolumeChanged struct {
	Level float64
	Muted bool
}

// PlaybackError is emitted when an operation fails without terminating
// playback.
type PlaybackError struct {
	Op   errmsg.Op
	Path string
	Err  error
}

func (StateChanged) isEvent()    {}
func (TrackChanged) isEvent()    {}
func (PositionChanged) isEvent() {}
func (QueueChanged) isEvent()    {}
func (ModeChanged) isEvent()     {}
func (VolumeChanged) isEvent()   {}
func (PlaybackError) isEvent()   {}
