package backend

import (
	"errors"

	"github.com/llehouerou/tide/internal/track"
)

// Selector resolves a descriptor to one backend variant at load time.
//
// The delegated player is probed first. If it claims the format but rejects
// the file for capability reasons (ErrUnsupportedRate) and the file is also
// natively decodable, exactly one fallback open against the native graph is
// attempted; any other delegated failure propagates directly. A file
// neither variant claims is an invalid audio file.
type Selector struct {
	Delegated Backend
	Native    Backend
}

// NewSelector builds a selector over the two concrete backends sharing one
// audio session.
func NewSelector(session Session, eq EQ) *Selector {
	return &Selector{
		Delegated: NewDelegated(session),
		Native:    NewNative(session, eq),
	}
}

// Open binds the descriptor to a backend and returns the handle and the
// variant that claimed it. A successful fallback is transparent: the caller
// only sees an error when the fallback itself also fails.
func (s *Selector) Open(d track.Descriptor) (Handle, Variant, error) {
	if s.Delegated.CanHandle(d) {
		h, err := s.Delegated.Open(d)
		if err == nil {
			return h, s.Delegated.Variant(), nil
		}
		if errors.Is(err, ErrUnsupportedRate) && s.Native.CanHandle(d) {
			h, err2 := s.Native.Open(d)
			if err2 == nil {
				return h, s.Native.Variant(), nil
			}
			return nil, VariantNone, err2
		}
		return nil, VariantNone, err
	}

	if !s.Native.CanHandle(d) {
		return nil, VariantNone, ErrInvalidAudioFile
	}
	h, err := s.Native.Open(d)
	if err != nil {
		return nil, VariantNone, err
	}
	return h, s.Native.Variant(), nil
}
