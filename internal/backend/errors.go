package backend

import (
	"errors"
	"fmt"
)

// Error taxonomy for load, seek and session failures. Callers match with
// errors.Is; open errors never terminate playback of the previous track.
var (
	ErrFileNotFound      = errors.New("audio file not found")
	ErrInvalidAudioFile  = errors.New("invalid audio file")
	ErrBackendOpenFailed = errors.New("backend open failed")
	ErrSessionConfig     = errors.New("audio session configuration failed")
	ErrSeekOutOfRange    = errors.New("seek position out of range")
)

// ErrUnsupportedRate is the one condition that triggers the native fallback:
// the delegated backend rejected a file whose sample rate exceeds what the
// output device supports. It matches ErrBackendOpenFailed under errors.Is.
var ErrUnsupportedRate = fmt.Errorf("%w: sample rate not supported by device", ErrBackendOpenFailed)
