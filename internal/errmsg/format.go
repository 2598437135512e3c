// Package errmsg provides consistent error formatting for user-facing and
// logged messages.
package errmsg

import "fmt"

// Op represents an operation that can fail.
type Op string

// Operation constants - grouped by domain.
const (
	// Load and playback
	OpLoadTrack     Op = "load track"
	OpPlay          Op = "start playback"
	OpSeek          Op = "seek"
	OpAdvance       Op = "advance to next track"
	OpRetreat       Op = "go to previous track"
	OpTrackFinished Op = "handle end of track"

	// Session
	OpSessionConfig  Op = "configure audio session"
	OpSessionRebuild Op = "rebuild audio session"

	// Persistence
	OpStateSave    Op = "save player state"
	OpStateRestore Op = "restore player state"

	// Now-playing surface
	OpPublish Op = "publish now-playing state"
	OpArtwork Op = "load artwork"
)

// Format creates a user-friendly error message.
func Format(op Op, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Failed to %s: %v", op, err)
}

// FormatWith creates an error message with additional context.
func FormatWith(op Op, context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Format(op, err)
	}
	return fmt.Sprintf("Failed to %s '%s': %v", op, context, err)
}
