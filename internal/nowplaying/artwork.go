package nowplaying

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // cover art decoding
	"os"
	"path/filepath"

	"github.com/dhowden/tag"
	"github.com/nfnt/resize"
	"github.com/sirupsen/logrus"

	"github.com/llehouerou/tide/internal/track"
)

// maxArtworkDim bounds the cached cover size. Media surfaces render small
// thumbnails; shipping a full scan wastes bus bandwidth.
const maxArtworkDim = 512

// coverNames lists common album art filenames in priority order.
var coverNames = []string{
	"cover.jpg", "cover.png", "cover.jpeg",
	"folder.jpg", "folder.png", "folder.jpeg",
	"album.jpg", "album.png", "album.jpeg",
	"front.jpg", "front.png", "front.jpeg",
}

// FindAlbumArt looks for album art in the same directory as the track.
// Returns the path to the art file, or empty string if not found.
func FindAlbumArt(trackPath string) string {
	dir := filepath.Dir(trackPath)
	for _, name := range coverNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ArtworkCache resolves artwork for a track, preferring art embedded in the
// file's tags over directory covers. Extracted images are resized and
// cached on disk keyed by track id, so repeated now-playing updates for the
// same track never re-decode the audio file.
type ArtworkCache struct {
	dir string
	log *logrus.Entry
}

// NewArtworkCache creates a cache rooted at dir, creating it as needed.
func NewArtworkCache(dir string) (*ArtworkCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &ArtworkCache{
		dir: dir,
		log: logrus.WithField("component", "artwork"),
	}, nil
}

// ArtworkPath implements ArtworkProvider.
func (c *ArtworkCache) ArtworkPath(t track.Descriptor) (string, error) {
	cached := filepath.Join(c.dir, fmt.Sprintf("%x.jpg", uint64(t.ID)))
	if _, err := os.Stat(cached); err == nil {
		return cached, nil
	}

	if path, err := c.extractEmbedded(t.Path, cached); err != nil {
		c.log.WithField("path", t.Path).Debug("no embedded artwork: ", err)
	} else if path != "" {
		return path, nil
	}

	return FindAlbumArt(t.Path), nil
}

// extractEmbedded pulls tag-embedded art out of the audio file, shrinks it
// and writes it to dst. Returns "" when the file carries no picture.
func (c *ArtworkCache) extractEmbedded(audioPath, dst string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		return "", err
	}
	pic := meta.Picture()
	if pic == nil || len(pic.Data) == 0 {
		return "", nil
	}

	img, _, err := image.Decode(bytes.NewReader(pic.Data))
	if err != nil {
		return "", err
	}
	img = resize.Thumbnail(maxArtworkDim, maxArtworkDim, img, resize.Lanczos3)

	tmp, err := os.CreateTemp(c.dir, "art-*.tmp")
	if err != nil {
		return "", err
	}
	if err := jpeg.Encode(tmp, img, &jpeg.Options{Quality: 85}); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return dst, nil
}
