// Package library provides filesystem-backed defaults for the engine's
// collaborator interfaces: descriptor extraction from audio files, an
// in-memory track store keyed by stable path-hash ids, and a local
// materializer.
package library

import (
	"context"
	"fmt"
	"hash/fnv"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dhowden/tag"
	"github.com/sirupsen/logrus"

	"github.com/llehouerou/tide/internal/backend"
	"github.com/llehouerou/tide/internal/track"
)

// audioExtensions lists the formats either backend can open.
var audioExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".ogg":  true,
	".oga":  true,
	".wav":  true,
}

// TrackID derives a stable id from the file path.
func TrackID(path string) int64 {
	h := fnv.New64a()
	h.Write([]byte(path))
	return int64(h.Sum64())
}

// ReadDescriptor builds a descriptor from a file's tags. Unreadable tags
// are not an error: the filename stands in for the title.
func ReadDescriptor(path string) (track.Descriptor, error) {
	d := track.Descriptor{
		ID:     TrackID(path),
		Path:   path,
		Title:  strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Format: track.FormatFromPath(path),
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return d, fmt.Errorf("%w: %s", backend.ErrFileNotFound, path)
		}
		return d, err
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		return d, nil
	}
	if t := meta.Title(); t != "" {
		d.Title = t
	}
	d.Artist = meta.Artist()
	d.Album = meta.Album()
	d.TrackNumber, _ = meta.Track()
	d.HasArtwork = meta.Picture() != nil
	return d, nil
}

// Library is an in-memory track store.
type Library struct {
	mu     sync.RWMutex
	tracks map[int64]track.Descriptor
	log    *logrus.Entry
}

// New creates an empty library.
func New() *Library {
	return &Library{
		tracks: make(map[int64]track.Descriptor),
		log:    logrus.WithField("component", "library"),
	}
}

// Add registers descriptors, replacing entries with the same id.
func (l *Library) Add(tracks ...track.Descriptor) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range tracks {
		l.tracks[t.ID] = t
	}
}

// Len returns the number of known tracks.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.tracks)
}

// TrackByID implements the engine's track lookup.
func (l *Library) TrackByID(_ context.Context, id int64) (*track.Descriptor, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.tracks[id]
	if !ok {
		return nil, fmt.Errorf("track %d not in library", id)
	}
	return &t, nil
}

// ScanPath walks a file or directory, reading descriptors for every audio
// file found. Returns the descriptors in path order.
func (l *Library) ScanPath(root string) ([]track.Descriptor, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}

	var paths []string
	if !info.IsDir() {
		paths = append(paths, root)
	} else {
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && audioExtensions[strings.ToLower(filepath.Ext(path))] {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		sort.Strings(paths)
	}

	tracks := make([]track.Descriptor, 0, len(paths))
	for _, p := range paths {
		d, err := ReadDescriptor(p)
		if err != nil {
			l.log.WithField("path", p).Warn("skipping unreadable file: ", err)
			continue
		}
		tracks = append(tracks, d)
	}
	l.Add(tracks...)
	return tracks, nil
}

// LocalMaterializer serves files that are already local. A missing file is
// the only failure mode.
type LocalMaterializer struct{}

// EnsureLocal implements the engine's materializer.
func (LocalMaterializer) EnsureLocal(_ context.Context, d track.Descriptor) (string, error) {
	if _, err := os.Stat(d.Path); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", backend.ErrFileNotFound, d.Path)
		}
		return "", err
	}
	return d.Path, nil
}
