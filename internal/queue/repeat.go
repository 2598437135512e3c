package queue

// RepeatMode defines what happens when a track reaches its end.
type RepeatMode int

const (
	RepeatOff RepeatMode = iota
	RepeatQueue
	RepeatSong
)

// String returns the repeat mode name.
func (m RepeatMode) String() string {
	switch m {
	case RepeatOff:
		return "Off"
	case RepeatQueue:
		return "Queue"
	case RepeatSong:
		return "Song"
	default:
		return "Unknown"
	}
}

// Cycle returns the next mode: Off → Queue → Song → Off. The two loop modes
// are mutually exclusive by construction.
func (m RepeatMode) Cycle() RepeatMode {
	switch m {
	case RepeatOff:
		return RepeatQueue
	case RepeatQueue:
		return RepeatSong
	default:
		return RepeatOff
	}
}

// EndAction is the resolution of a track reaching its natural end.
type EndAction int

const (
	// EndStop: nothing left to play.
	EndStop EndAction = iota
	// EndReplay: song loop, reload and replay the same track.
	EndReplay
	// EndAdvance: a next track exists, play it.
	EndAdvance
	// EndWrap: queue loop, wrap back to the first track.
	EndWrap
)
