package audiosession

// EventKind classifies the system-level audio events the engine reacts to.
type EventKind int

const (
	// InterruptionBegan means another process claimed the output device.
	InterruptionBegan EventKind = iota
	// InterruptionEnded means the device is available again. ShouldResume
	// carries the system's hint that playback should restart on its own.
	InterruptionEnded
	// RouteChanged means the output device changed or was removed.
	RouteChanged
	// ServiceReset means the audio subsystem restarted and the render
	// graph must be recreated from scratch.
	ServiceReset
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case InterruptionBegan:
		return "interruption-began"
	case InterruptionEnded:
		return "interruption-ended"
	case RouteChanged:
		return "route-changed"
	case ServiceReset:
		return "service-reset"
	default:
		return "unknown"
	}
}

// Event is delivered to the engine's serialized owner.
type Event struct {
	Kind         EventKind
	ShouldResume bool // only meaningful for InterruptionEnded
}
