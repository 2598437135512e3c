package engine

import "errors"

var (
	// ErrLoadInProgress rejects a load while another is in flight.
	ErrLoadInProgress = errors.New("track load already in progress")
	// ErrNothingToPlay means no track is bound and the queue is empty.
	ErrNothingToPlay = errors.New("nothing to play")
	// ErrClosed is returned by operations on a closed engine.
	ErrClosed = errors.New("engine is closed")
)
