package engine

// State is the authoritative playback state.
//
// Valid transitions:
//   - Stopped/Paused/Playing → Loading (via load)
//   - Loading → Stopped (ready, or on error)
//   - Stopped → Playing (via Play, from offset 0 or a preserved position)
//   - Playing ↔ Paused (via Pause/Play)
//   - any → Stopped (via Stop)
//
// Track end, interruptions and route changes drive transitions as internal
// events on the serialized owner, not as external calls.
type State int

const (
	StateStopped State = iota
	StateLoading
	StatePlaying
	StatePaused
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateLoading:
		return "Loading"
	case StatePlaying:
		return "Playing"
	case StatePaused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// IsActive returns true if playback is active (playing or paused).
func (s State) IsActive() bool {
	return s == StatePlaying || s == StatePaused
}
