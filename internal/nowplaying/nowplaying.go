//go:build linux

package nowplaying

import (
	"fmt"
	"hash/fnv"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/quarckster/go-mpris-server/pkg/server"
	"github.com/quarckster/go-mpris-server/pkg/types"

	"github.com/llehouerou/tide/internal/engine"
	"github.com/llehouerou/tide/internal/queue"
)

// Adapter exposes the engine on the session bus as an MPRIS media player.
type Adapter struct {
	engine *engine.Engine
	server *server.Server
	sub    *engine.Subscription
	done   chan struct{}
}

// New creates and starts the MPRIS adapter.
func New(e *engine.Engine, art ArtworkProvider) (*Adapter, error) {
	if art == nil {
		art = NoArtwork{}
	}
	a := &Adapter{
		engine: e,
		done:   make(chan struct{}),
	}

	rootAdapter := &rootAdapter{}
	playerAdapter := &playerAdapter{engine: e, art: art}

	a.server = server.NewServer("tide", rootAdapter, playerAdapter)
	a.sub = e.Subscribe()

	go func() {
		_ = a.server.Listen()
	}()
	go a.drain()

	return a, nil
}

// drain keeps the subscription from backing up. Property change signalling
// is pull-based through the adapter interfaces; the subscription exists so
// the engine side sees an attached surface.
func (a *Adapter) drain() {
	for {
		select {
		case <-a.sub.Events:
		case <-a.sub.Done:
			return
		case <-a.done:
			return
		}
	}
}

// Close stops the adapter and releases D-Bus resources.
func (a *Adapter) Close() error {
	close(a.done)
	return a.server.Stop()
}

// rootAdapter implements OrgMprisMediaPlayer2Adapter.
type rootAdapter struct{}

func (r *rootAdapter) Raise() error {
	return nil // Not supported
}

func (r *rootAdapter) Quit() error {
	return nil // Not supported - app manages its own lifecycle
}

func (r *rootAdapter) CanQuit() (bool, error) {
	return false, nil
}

func (r *rootAdapter) CanRaise() (bool, error) {
	return false, nil
}

func (r *rootAdapter) HasTrackList() (bool, error) {
	return false, nil // Track list interface not implemented
}

func (r *rootAdapter) Identity() (string, error) {
	return "Tide", nil
}

//nolint:revive // Method name required by interface.
func (r *rootAdapter) SupportedUriSchemes() ([]string, error) {
	return []string{"file"}, nil
}

func (r *rootAdapter) SupportedMimeTypes() ([]string, error) {
	return []string{"audio/mpeg", "audio/flac", "audio/ogg", "audio/wav"}, nil
}

// playerAdapter implements OrgMprisMediaPlayer2PlayerAdapter and the
// optional loop and shuffle interfaces.
type playerAdapter struct {
	engine *engine.Engine
	art    ArtworkProvider
}

func (p *playerAdapter) Next() error {
	return p.engine.Next()
}

func (p *playerAdapter) Previous() error {
	return p.engine.Previous()
}

func (p *playerAdapter) Pause() error {
	return p.engine.Pause()
}

func (p *playerAdapter) PlayPause() error {
	return p.engine.TogglePlayPause()
}

func (p *playerAdapter) Stop() error {
	return p.engine.Stop()
}

func (p *playerAdapter) Play() error {
	return p.engine.Play()
}

func (p *playerAdapter) Seek(offset types.Microseconds) error {
	return p.engine.SeekBy(time.Duration(offset) * time.Microsecond)
}

func (p *playerAdapter) SetPosition(_ string, position types.Microseconds) error {
	return p.engine.SeekTo(time.Duration(position) * time.Microsecond)
}

//nolint:revive // Method name required by interface.
func (p *playerAdapter) OpenUri(_ string) error {
	return nil // Not supported
}

func (p *playerAdapter) PlaybackStatus() (types.PlaybackStatus, error) {
	switch p.engine.State() {
	case engine.StatePlaying, engine.StateLoading:
		return types.PlaybackStatusPlaying, nil
	case engine.StatePaused:
		return types.PlaybackStatusPaused, nil
	case engine.StateStopped:
		return types.PlaybackStatusStopped, nil
	}
	return types.PlaybackStatusStopped, nil
}

func (p *playerAdapter) Rate() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) SetRate(_ float64) error {
	return nil // Not supported
}

func (p *playerAdapter) Metadata() (types.Metadata, error) {
	t := p.engine.CurrentTrack()
	if t == nil {
		return types.Metadata{}, nil
	}

	meta := types.Metadata{
		TrackId:     dbus.ObjectPath(formatTrackID(t.ID)),
		Length:      types.Microseconds(t.Duration.Microseconds()),
		Title:       t.Title,
		Artist:      []string{t.Artist},
		Album:       t.Album,
		TrackNumber: t.TrackNumber,
	}

	if artPath, err := p.art.ArtworkPath(*t); err == nil && artPath != "" {
		meta.ArtUrl = "file://" + artPath
	}

	return meta, nil
}

func (p *playerAdapter) Volume() (float64, error) {
	return p.engine.Volume(), nil
}

func (p *playerAdapter) SetVolume(level float64) error {
	p.engine.SetVolume(level)
	return nil
}

func (p *playerAdapter) Position() (int64, error) {
	return p.engine.Position().Microseconds(), nil
}

func (p *playerAdapter) MinimumRate() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) MaximumRate() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) CanGoNext() (bool, error) {
	return p.engine.HasNext(), nil
}

func (p *playerAdapter) CanGoPrevious() (bool, error) {
	return p.engine.QueueLen() > 0, nil
}

func (p *playerAdapter) CanPlay() (bool, error) {
	return !p.engine.QueueIsEmpty(), nil
}

func (p *playerAdapter) CanPause() (bool, error) {
	return true, nil
}

func (p *playerAdapter) CanSeek() (bool, error) {
	return true, nil
}

func (p *playerAdapter) CanControl() (bool, error) {
	return true, nil
}

// LoopStatus implements OrgMprisMediaPlayer2PlayerAdapterLoopStatus.
func (p *playerAdapter) LoopStatus() (types.LoopStatus, error) {
	switch p.engine.RepeatMode() {
	case queue.RepeatSong:
		return types.LoopStatusTrack, nil
	case queue.RepeatQueue:
		return types.LoopStatusPlaylist, nil
	case queue.RepeatOff:
		return types.LoopStatusNone, nil
	}
	return types.LoopStatusNone, nil
}

// SetLoopStatus implements OrgMprisMediaPlayer2PlayerAdapterLoopStatus.
func (p *playerAdapter) SetLoopStatus(status types.LoopStatus) error {
	switch status {
	case types.LoopStatusNone:
		p.engine.SetRepeatMode(queue.RepeatOff)
	case types.LoopStatusTrack:
		p.engine.SetRepeatMode(queue.RepeatSong)
	case types.LoopStatusPlaylist:
		p.engine.SetRepeatMode(queue.RepeatQueue)
	}
	return nil
}

// Shuffle implements OrgMprisMediaPlayer2PlayerAdapterShuffle.
func (p *playerAdapter) Shuffle() (bool, error) {
	return p.engine.Shuffled(), nil
}

// SetShuffle implements OrgMprisMediaPlayer2PlayerAdapterShuffle.
func (p *playerAdapter) SetShuffle(shuffle bool) error {
	p.engine.SetShuffle(shuffle)
	return nil
}

func formatTrackID(id int64) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d", id)
	return fmt.Sprintf("/org/mpris/MediaPlayer2/Track/%x", h.Sum64())
}
