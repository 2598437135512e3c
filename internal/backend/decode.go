package backend

import (
	"io"
	"os"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// decodeFile opens and decodes an audio file by format hint.
// The returned streamer owns the file and closes it with Close.
func decodeFile(path, format string) (beep.StreamSeekCloser, beep.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, beep.Format{}, ErrFileNotFound
		}
		return nil, beep.Format{}, err
	}

	var streamer beep.StreamSeekCloser
	var bf beep.Format

	switch format {
	case "mp3":
		streamer, bf, err = mp3.Decode(f)
	case "ogg", "oga":
		streamer, bf, err = vorbis.Decode(f)
	case "flac":
		// Some taggers prepend ID3v2 tags to FLAC files, which the
		// decoder does not handle.
		if err := skipID3v2(f); err != nil {
			f.Close()
			return nil, beep.Format{}, err
		}
		streamer, bf, err = flac.Decode(f)
	case "wav":
		streamer, bf, err = wav.Decode(f)
	default:
		f.Close()
		return nil, beep.Format{}, ErrInvalidAudioFile
	}
	if err != nil {
		f.Close()
		return nil, beep.Format{}, err
	}
	return streamer, bf, nil
}

// skipID3v2 skips an ID3v2 tag if present at the beginning of the file.
func skipID3v2(r io.ReadSeeker) error {
	header := make([]byte, 10)
	n, err := r.Read(header)
	if err != nil {
		return err
	}
	if n < 10 || string(header[0:3]) != "ID3" {
		_, err = r.Seek(0, io.SeekStart)
		return err
	}

	// Syncsafe integer in bytes 6-9, 7 bits per byte.
	size := int64(header[6])<<21 | int64(header[7])<<14 | int64(header[8])<<7 | int64(header[9])
	_, err = r.Seek(10+size, io.SeekStart)
	return err
}
