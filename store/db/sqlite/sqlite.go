// Package sqlite implements the store driver on a local SQLite file.
// SQLite is supported for development and single-user demo instances;
// k-NN probes fall back to the in-process index because there is no
// vector extension loaded here.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/talklens/talklens/internal/profile"
	"github.com/talklens/talklens/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens the SQLite file named by the profile DSN.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	// Notes:
	// - When using the `modernc.org/sqlite` driver, each pragma must be prefixed with `_pragma=`.
	// - WAL journal mode prevents locking issues for local usage.
	sqliteDB, err := sql.Open("sqlite", profile.DSN+"?_pragma=foreign_keys(0)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}

	// SQLite: a single connection is optimal with WAL.
	sqliteDB.SetMaxOpenConns(1)
	sqliteDB.SetMaxIdleConns(1)
	sqliteDB.SetConnMaxLifetime(0)
	sqliteDB.SetConnMaxIdleTime(0)

	driver := DB{db: sqliteDB, profile: profile}

	return &driver, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS talk (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		abstract TEXT NOT NULL DEFAULT '',
		keywords_csv TEXT NOT NULL DEFAULT '',
		category_primary TEXT NOT NULL DEFAULT '',
		track TEXT NOT NULL DEFAULT '',
		event_name TEXT NOT NULL DEFAULT '',
		industries TEXT NOT NULL DEFAULT '',
		speaker_name TEXT NOT NULL DEFAULT '',
		company_name TEXT NOT NULL DEFAULT '',
		tech_level INTEGER NOT NULL DEFAULT 0,
		views INTEGER NOT NULL DEFAULT 0,
		published_at INTEGER NOT NULL DEFAULT 0,
		duration_sec INTEGER NOT NULL DEFAULT 0,
		youtube_url TEXT NOT NULL DEFAULT '',
		youtube_id TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS person (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		company TEXT NOT NULL DEFAULT '',
		job_title TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS speaker_edge (
		talk_id TEXT NOT NULL,
		person_id TEXT NOT NULL,
		PRIMARY KEY (talk_id, person_id)
	)`,
	`CREATE TABLE IF NOT EXISTS transcript_chunk (
		talk_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		text TEXT NOT NULL DEFAULT '',
		start_sec INTEGER NOT NULL DEFAULT 0,
		end_sec INTEGER NOT NULL DEFAULT 0,
		embedding BLOB,
		PRIMARY KEY (talk_id, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS talk_meta (
		talk_id TEXT PRIMARY KEY,
		meta_text TEXT NOT NULL DEFAULT '',
		embedding BLOB
	)`,
	`CREATE TABLE IF NOT EXISTS speaker_bio (
		talk_id TEXT NOT NULL,
		person_id TEXT NOT NULL,
		bio_text TEXT NOT NULL DEFAULT '',
		embedding BLOB,
		PRIMARY KEY (talk_id, person_id)
	)`,
	`CREATE TABLE IF NOT EXISTS video (
		talk_id TEXT PRIMARY KEY,
		storage_ref TEXT NOT NULL DEFAULT '',
		duration_sec INTEGER NOT NULL DEFAULT 0,
		frame_width INTEGER NOT NULL DEFAULT 0,
		frame_height INTEGER NOT NULL DEFAULT 0,
		embedding BLOB
	)`,
	`CREATE INDEX IF NOT EXISTS idx_speaker_edge_person ON speaker_edge (person_id)`,
	`CREATE INDEX IF NOT EXISTS idx_talk_event ON talk (event_name)`,
}

func (d *DB) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to run migration")
		}
	}
	return nil
}

// encodeVector packs an embedding as little-endian float32 bytes. SQLite
// has no native vector type so embeddings live in BLOB columns.
func encodeVector(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	if len(buf) == 0 {
		return nil
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}

// placeholders renders "?, ?, ?" for an IN clause of n values.
func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	buf := make([]byte, 0, 3*n)
	for i := 0; i < n; i++ {
		if i > 0 {
			buf = append(buf, ", "...)
		}
		buf = append(buf, '?')
	}
	return string(buf)
}
