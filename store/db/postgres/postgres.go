// Package postgres implements the store driver on PostgreSQL with the
// pgvector extension. It is the production driver and additionally pushes
// k-NN probes down to the database (see SearchEmbeddings).
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/talklens/talklens/internal/profile"
	"github.com/talklens/talklens/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a PostgreSQL connection pool from the profile DSN.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	postgresDB, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}

	postgresDB.SetMaxOpenConns(25)
	postgresDB.SetMaxIdleConns(5)
	postgresDB.SetConnMaxLifetime(5 * time.Minute)

	driver := DB{db: postgresDB, profile: profile}

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
	`CREATE EXTENSION IF NOT EXISTS vector`,
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
		views BIGINT NOT NULL DEFAULT 0,
		published_at BIGINT NOT NULL DEFAULT 0,
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
		embedding vector(768),
		PRIMARY KEY (talk_id, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS talk_meta (
		talk_id TEXT PRIMARY KEY,
		meta_text TEXT NOT NULL DEFAULT '',
		embedding vector(768)
	)`,
	`CREATE TABLE IF NOT EXISTS speaker_bio (
		talk_id TEXT NOT NULL,
		person_id TEXT NOT NULL,
		bio_text TEXT NOT NULL DEFAULT '',
		embedding vector(768),
		PRIMARY KEY (talk_id, person_id)
	)`,
	`CREATE TABLE IF NOT EXISTS video (
		talk_id TEXT PRIMARY KEY,
		storage_ref TEXT NOT NULL DEFAULT '',
		duration_sec INTEGER NOT NULL DEFAULT 0,
		frame_width INTEGER NOT NULL DEFAULT 0,
		frame_height INTEGER NOT NULL DEFAULT 0,
		embedding vector(1024)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_speaker_edge_person ON speaker_edge (person_id)`,
	`CREATE INDEX IF NOT EXISTS idx_talk_event ON talk (event_name)`,
	`CREATE INDEX IF NOT EXISTS idx_transcript_chunk_embedding ON transcript_chunk
		USING hnsw (embedding vector_cosine_ops)`,
	`CREATE INDEX IF NOT EXISTS idx_talk_meta_embedding ON talk_meta
		USING hnsw (embedding vector_cosine_ops)`,
	`CREATE INDEX IF NOT EXISTS idx_speaker_bio_embedding ON speaker_bio
		USING hnsw (embedding vector_cosine_ops)`,
	`CREATE INDEX IF NOT EXISTS idx_video_embedding ON video
		USING hnsw (embedding vector_cosine_ops)`,
}

func (d *DB) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to run migration")
		}
	}
	return nil
}

func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}
