// Package store persists computed loop points in SQLite, keyed by a hash
// of the track's PCM content. Analysis costs seconds per track and players
// reopen the same tracks constantly, so the engine consults this cache
// before searching.
package store

import (
	"crypto/sha1"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/auralab/seamless/audio"
	"github.com/auralab/seamless/logging"
	"github.com/auralab/seamless/search"
)

// DB is a SQLite-backed loop point cache.
type DB struct {
	db     *sql.DB
	logger logging.Logger
}

// Open opens (or creates) the cache at the given path. Use ":memory:" for
// an ephemeral cache.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("error opening loop point cache: %w", err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{
		db: db,
		logger: logging.WithFields(logging.Fields{
			"component": "loop_point_store",
			"path":      path,
		}),
	}, nil
}

func createTables(db *sql.DB) error {
	schema := `
    CREATE TABLE IF NOT EXISTS loop_points (
        track_hash TEXT PRIMARY KEY,
        end_time REAL NOT NULL,
        start_time REAL NOT NULL,
        score REAL NOT NULL,
        created_at INTEGER NOT NULL
    );
    `
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("error creating loop_points table: %w", err)
	}
	return nil
}

// Get looks up a cached loop point. The second return reports a hit.
func (d *DB) Get(trackHash string) (*search.LoopPoint, bool, error) {
	row := d.db.QueryRow(
		`SELECT end_time, start_time, score FROM loop_points WHERE track_hash = ?`,
		trackHash)

	var lp search.LoopPoint
	err := row.Scan(&lp.EndTime, &lp.StartTime, &lp.Score)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("error reading loop point: %w", err)
	}
	return &lp, true, nil
}

// Put stores or replaces a loop point for a track.
func (d *DB) Put(trackHash string, lp *search.LoopPoint) error {
	if lp == nil {
		return fmt.Errorf("cannot store nil loop point")
	}
	_, err := d.db.Exec(
		`INSERT OR REPLACE INTO loop_points
         (track_hash, end_time, start_time, score, created_at)
         VALUES (?, ?, ?, ?, ?)`,
		trackHash, lp.EndTime, lp.StartTime, lp.Score, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("error storing loop point: %w", err)
	}

	d.logger.Debug("Loop point cached", logging.Fields{
		"track_hash": trackHash,
		"end_time":   lp.EndTime,
		"start_time": lp.StartTime,
	})
	return nil
}

// Close closes the cache.
func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// HashSamples derives a content key from a PCM buffer: length, rate, and a
// strided sampling of the data. Strided rather than full so hashing stays
// negligible next to analysis.
func HashSamples(s *audio.Samples) string {
	h := sha1.New()

	var header [16]byte
	binary.LittleEndian.PutUint64(header[0:], uint64(s.Len()))
	binary.LittleEndian.PutUint64(header[8:], uint64(s.SampleRate))
	h.Write(header[:])

	var buf [8]byte
	for i := 0; i < len(s.PCM); i += 1024 {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(s.PCM[i]))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}
