// Package track defines the descriptor for a playable unit. Descriptors are
// produced by the library layer and consumed read-only by the engine.
package track

import (
	"path/filepath"
	"strings"
	"time"
)

// Descriptor identifies a playable track.
type Descriptor struct {
	ID          int64  // stable identifier (library ID or path hash)
	Path        string // file locator
	Title       string
	Artist      string
	Album       string
	TrackNumber int
	Duration    time.Duration // 0 if unknown until a backend opens the file
	SampleRate  int           // container sample rate hint, 0 if unknown
	Format      string        // lowercase format hint: "mp3", "flac", ...
	HasArtwork  bool          // embedded artwork present
}

// FormatFromPath derives the format hint from a file extension.
func FormatFromPath(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}
