package engine

const eventBufferSize = 32

// Subscription delivers engine events to one subscriber.
type Subscription struct {
	// Events carries all playback notifications in emission order.
	Events <-chan Event
	// Done is closed when the engine shuts down.
	Done <-chan struct{}

	ch     chan Event
	doneCh chan struct{}
}

func newSubscription() *Subscription {
	s := &Subscription{
		ch:     make(chan Event, eventBufferSize),
		doneCh: make(chan struct{}),
	}
	s.Events = s.ch
	s.Done = s.doneCh
	return s
}

// send delivers an event without blocking; a slow subscriber loses events
// rather than stalling the owner.
func (s *Subscription) send(ev Event) {
	select {
	case s.ch <- ev:
	default:
	}
}

func (s *Subscription) close() {
	close(s.doneCh)
}
