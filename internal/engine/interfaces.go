package engine

import (
	"context"

	"github.com/llehouerou/tide/internal/backend"
	"github.com/llehouerou/tide/internal/persist"
	"github.com/llehouerou/tide/internal/track"
)

// Collaborator interfaces. The engine consumes the library store, the cloud
// materialization layer and sandbox access through these and never embeds
// their logic.

// TrackStore looks up descriptors by stable id (used on state restore).
type TrackStore interface {
	TrackByID(ctx context.Context, id int64) (*track.Descriptor, error)
}

// Materializer ensures a possibly-remote file is locally readable before a
// backend opens it, returning the local path.
type Materializer interface {
	EnsureLocal(ctx context.Context, d track.Descriptor) (string, error)
}

// ScopedAccess acquires access to files outside the app's own sandbox. The
// returned release must be called when the file is no longer needed.
type ScopedAccess interface {
	Acquire(path string) (release func(), err error)
}

// StateStore persists playback snapshots. *persist.Store satisfies it.
type StateStore interface {
	Save(st persist.PlayerState) error
	Load() (*persist.PlayerState, error)
}

// Opener resolves a descriptor to a bound backend handle.
// *backend.Selector satisfies it.
type Opener interface {
	Open(d track.Descriptor) (backend.Handle, backend.Variant, error)
}

type noopMaterializer struct{}

func (noopMaterializer) EnsureLocal(_ context.Context, d track.Descriptor) (string, error) {
	return d.Path, nil
}

type noopAccess struct{}

func (noopAccess) Acquire(string) (func(), error) {
	return func() {}, nil
}
