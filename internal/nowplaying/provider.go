// Package nowplaying publishes playback state to the OS media surface over
// MPRIS and answers remote commands by delegating to the engine.
package nowplaying

import "github.com/llehouerou/tide/internal/track"

// ArtworkProvider resolves a track to a local artwork file. An empty path
// with a nil error means no artwork is available.
type ArtworkProvider interface {
	ArtworkPath(t track.Descriptor) (string, error)
}

// NoArtwork is an ArtworkProvider that never finds artwork.
type NoArtwork struct{}

func (NoArtwork) ArtworkPath(track.Descriptor) (string, error) {
	return "", nil
}
