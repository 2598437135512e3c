package library

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/tide/internal/backend"
	"github.com/llehouerou/tide/internal/track"
)

func TestTrackIDStable(t *testing.T) {
	a := TrackID("/music/a.flac")
	b := TrackID("/music/a.flac")
	c := TrackID("/music/b.flac")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestReadDescriptorFallsBackToFilename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Some Song.mp3")
	require.NoError(t, os.WriteFile(path, []byte("not audio"), 0o600))

	d, err := ReadDescriptor(path)
	require.NoError(t, err)
	assert.Equal(t, "Some Song", d.Title)
	assert.Equal(t, "mp3", d.Format)
	assert.Equal(t, TrackID(path), d.ID)
	assert.False(t, d.HasArtwork)
}

func TestReadDescriptorMissingFile(t *testing.T) {
	_, err := ReadDescriptor("/nonexistent/song.flac")
	assert.ErrorIs(t, err, backend.ErrFileNotFound)
}

func TestLibraryLookup(t *testing.T) {
	l := New()
	l.Add(track.Descriptor{ID: 42, Title: "The Answer"})

	got, err := l.TrackByID(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "The Answer", got.Title)

	_, err = l.TrackByID(context.Background(), 7)
	assert.Error(t, err)
}

func TestScanPathCollectsAudioFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"01.flac", "02.mp3", "cover.jpg", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600))
	}
	sub := filepath.Join(dir, "disc2")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "03.ogg"), []byte("x"), 0o600))

	l := New()
	tracks, err := l.ScanPath(dir)
	require.NoError(t, err)

	require.Len(t, tracks, 3)
	assert.Equal(t, "01", tracks[0].Title)
	assert.Equal(t, "02", tracks[1].Title)
	assert.Equal(t, "03", tracks[2].Title)
	assert.Equal(t, 3, l.Len())
}

func TestScanPathSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "one.wav")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	l := New()
	tracks, err := l.ScanPath(path)
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, path, tracks[0].Path)
}

func TestLocalMaterializer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "song.flac")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	m := LocalMaterializer{}
	got, err := m.EnsureLocal(context.Background(), track.Descriptor{Path: path})
	require.NoError(t, err)
	assert.Equal(t, path, got)

	_, err = m.EnsureLocal(context.Background(), track.Descriptor{Path: filepath.Join(dir, "gone.flac")})
	assert.ErrorIs(t, err, backend.ErrFileNotFound)
}
