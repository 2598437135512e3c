// Package persist saves and restores playback state across process
// restarts. State is written on every pause, stop and backgrounding
// transition, and on a fixed interval while playing, so a crash loses at
// most one interval of progress.
package persist

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	_ "modernc.org/sqlite" // SQLite driver

	dbutil "github.com/llehouerou/tide/internal/db"
)

const (
	appName    = "tide"
	dbFileName = "tide.db"

	// maxSnapshotAge discards restored state older than this.
	maxSnapshotAge = 7 * 24 * time.Hour
)

// PlayerState is the serialized playback snapshot.
type PlayerState struct {
	CurrentTrackID   int64
	Elapsed          time.Duration
	IsPlaying        bool // always false on save
	QueueTrackIDs    []int64
	CurrentIndex     int
	RepeatMode       int
	Shuffle          bool
	OriginalQueueIDs []int64 // nil when shuffle is off
	SavedAt          time.Time
}

// Store persists PlayerState in a local sqlite database.
type Store struct {
	db *sql.DB
}

// Open opens the store at the XDG data path, creating it as needed.
func Open() (*Store, error) {
	path, err := xdg.DataFile(filepath.Join(appName, dbFileName))
	if err != nil {
		return nil, err
	}
	return OpenPath(path)
}

// OpenPath opens the store at an explicit path.
func OpenPath(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS player_state (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			current_track_id INTEGER,
			elapsed_ms INTEGER NOT NULL DEFAULT 0,
			is_playing INTEGER NOT NULL DEFAULT 0,
			current_index INTEGER NOT NULL DEFAULT 0,
			repeat_mode INTEGER NOT NULL DEFAULT 0,
			shuffle INTEGER NOT NULL DEFAULT 0,
			saved_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS player_queue (
			position INTEGER PRIMARY KEY,
			track_id INTEGER NOT NULL,
			original_position INTEGER
		);
	`)
	return err
}

// Save writes the snapshot, replacing any previous one. IsPlaying is forced
// to false: a restored session never auto-plays.
func (s *Store) Save(st PlayerState) error {
	savedAt := st.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}

	// Original position per track id, when a pre-shuffle order exists.
	originalPos := make(map[int64]int, len(st.OriginalQueueIDs))
	for i, id := range st.OriginalQueueIDs {
		originalPos[id] = i
	}

	return dbutil.WithTx(s.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM player_state`); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM player_queue`); err != nil {
			return err
		}

		_, err := tx.Exec(`
			INSERT INTO player_state
				(id, current_track_id, elapsed_ms, is_playing, current_index, repeat_mode, shuffle, saved_at)
			VALUES (1, ?, ?, 0, ?, ?, ?, ?)`,
			st.CurrentTrackID,
			st.Elapsed.Milliseconds(),
			st.CurrentIndex,
			st.RepeatMode,
			st.Shuffle,
			savedAt.Unix(),
		)
		if err != nil {
			return err
		}

		for pos, id := range st.QueueTrackIDs {
			var orig *int64
			if st.OriginalQueueIDs != nil {
				if op, ok := originalPos[id]; ok {
					v := int64(op)
					orig = &v
				}
			}
			_, err := tx.Exec(`
				INSERT INTO player_queue (position, track_id, original_position)
				VALUES (?, ?, ?)`,
				pos, id, dbutil.NullInt64(orig),
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Load reads the latest snapshot. Returns nil without error when there is
// none, or when the stored one is older than seven days (stale snapshots
// are deleted).
func (s *Store) Load() (*PlayerState, error) {
	var st PlayerState
	var elapsedMs, savedAt int64
	var trackID sql.NullInt64

	row := s.db.QueryRow(`
		SELECT current_track_id, elapsed_ms, current_index, repeat_mode, shuffle, saved_at
		FROM player_state WHERE id = 1`)
	err := row.Scan(&trackID, &elapsedMs, &st.CurrentIndex, &st.RepeatMode, &st.Shuffle, &savedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	st.SavedAt = time.Unix(savedAt, 0)
	if time.Since(st.SavedAt) > maxSnapshotAge {
		_ = s.Clear()
		return nil, nil
	}

	st.CurrentTrackID = trackID.Int64
	st.Elapsed = time.Duration(elapsedMs) * time.Millisecond

	rows, err := s.db.Query(`
		SELECT track_id, original_position
		FROM player_queue ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type origEntry struct {
		pos int64
		id  int64
	}
	var originals []origEntry
	for rows.Next() {
		var id int64
		var orig sql.NullInt64
		if err := rows.Scan(&id, &orig); err != nil {
			return nil, err
		}
		st.QueueTrackIDs = append(st.QueueTrackIDs, id)
		if orig.Valid {
			originals = append(originals, origEntry{pos: orig.Int64, id: id})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if st.Shuffle && len(originals) == len(st.QueueTrackIDs) {
		st.OriginalQueueIDs = make([]int64, len(originals))
		for _, e := range originals {
			if e.pos >= 0 && int(e.pos) < len(st.OriginalQueueIDs) {
				st.OriginalQueueIDs[e.pos] = e.id
			}
		}
	}

	return &st, nil
}

// Clear removes any stored snapshot.
func (s *Store) Clear() error {
	return dbutil.WithTx(s.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM player_state`); err != nil {
			return err
		}
		_, err := tx.Exec(`DELETE FROM player_queue`)
		return err
	})
}
