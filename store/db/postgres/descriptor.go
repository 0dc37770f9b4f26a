package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/talklens/talklens/store"
	"github.com/talklens/talklens/vector"
)

// embeddingValue renders an embedding column value, keeping NULL for
// descriptors that have not been embedded yet.
func embeddingValue(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	return pgvector.NewVector(v)
}

// scanEmbedding decodes a nullable vector column.
func scanEmbedding(raw sql.NullString) ([]float32, error) {
	if !raw.Valid {
		return nil, nil
	}
	var v pgvector.Vector
	if err := v.Scan([]byte(raw.String)); err != nil {
		return nil, errors.Wrap(err, "failed to decode embedding")
	}
	return v.Slice(), nil
}

// UpsertTranscriptChunk inserts or replaces a transcript chunk.
func (d *DB) UpsertTranscriptChunk(ctx context.Context, chunk *store.TranscriptChunk) error {
	stmt := `
		INSERT INTO transcript_chunk (talk_id, seq, text, start_sec, end_sec, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (talk_id, seq) DO UPDATE SET
			text = EXCLUDED.text,
			start_sec = EXCLUDED.start_sec,
			end_sec = EXCLUDED.end_sec,
			embedding = EXCLUDED.embedding
	`
	_, err := d.db.ExecContext(ctx, stmt,
		chunk.TalkID, chunk.Seq, chunk.Text, chunk.StartSec, chunk.EndSec, embeddingValue(chunk.Embedding))
	if err != nil {
		return errors.Wrap(err, "failed to upsert transcript chunk")
	}
	return nil
}

// ListTranscriptChunks lists transcript chunks ordered by (talk_id, seq).
func (d *DB) ListTranscriptChunks(ctx context.Context, find *store.FindTranscriptChunk) ([]*store.TranscriptChunk, error) {
	if find == nil {
		find = &store.FindTranscriptChunk{}
	}
	where, args := []string{"1 = 1"}, []any{}

	if len(find.TalkIDs) > 0 {
		where, args = append(where, "talk_id = ANY("+placeholder(len(args)+1)+")"), append(args, pq.Array(find.TalkIDs))
	}
	if find.MinStartSec != nil {
		where, args = append(where, "start_sec >= "+placeholder(len(args)+1)), append(args, *find.MinStartSec)
	}
	if find.MaxEndSec != nil {
		where, args = append(where, "end_sec <= "+placeholder(len(args)+1)), append(args, *find.MaxEndSec)
	}

	query := `SELECT talk_id, seq, text, start_sec, end_sec, embedding::text
		FROM transcript_chunk
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY talk_id ASC, seq ASC`
	if find.Limit > 0 {
		query += " LIMIT " + placeholder(len(args)+1)
		args = append(args, find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list transcript chunks")
	}
	defer rows.Close()

	var chunks []*store.TranscriptChunk
	for rows.Next() {
		var chunk store.TranscriptChunk
		var raw sql.NullString
		if err := rows.Scan(&chunk.TalkID, &chunk.Seq, &chunk.Text, &chunk.StartSec, &chunk.EndSec, &raw); err != nil {
			return nil, errors.Wrap(err, "failed to scan transcript chunk")
		}
		if chunk.Embedding, err = scanEmbedding(raw); err != nil {
			return nil, err
		}
		chunks = append(chunks, &chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return chunks, nil
}

// UpsertTalkMeta inserts or replaces a talk metadata descriptor.
func (d *DB) UpsertTalkMeta(ctx context.Context, meta *store.TalkMeta) error {
	stmt := `
		INSERT INTO talk_meta (talk_id, meta_text, embedding)
		VALUES ($1, $2, $3)
		ON CONFLICT (talk_id) DO UPDATE SET
			meta_text = EXCLUDED.meta_text,
			embedding = EXCLUDED.embedding
	`
	_, err := d.db.ExecContext(ctx, stmt, meta.TalkID, meta.MetaText, embeddingValue(meta.Embedding))
	if err != nil {
		return errors.Wrap(err, "failed to upsert talk meta")
	}
	return nil
}

// ListTalkMetas lists talk metadata descriptors ordered by talk_id.
func (d *DB) ListTalkMetas(ctx context.Context, find *store.FindTalkMeta) ([]*store.TalkMeta, error) {
	if find == nil {
		find = &store.FindTalkMeta{}
	}
	where, args := []string{"1 = 1"}, []any{}
	if len(find.TalkIDs) > 0 {
		where, args = append(where, "talk_id = ANY("+placeholder(len(args)+1)+")"), append(args, pq.Array(find.TalkIDs))
	}

	query := `SELECT talk_id, meta_text, embedding::text FROM talk_meta WHERE ` + strings.Join(where, " AND ") + ` ORDER BY talk_id ASC`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list talk metas")
	}
	defer rows.Close()

	var metas []*store.TalkMeta
	for rows.Next() {
		var meta store.TalkMeta
		var raw sql.NullString
		if err := rows.Scan(&meta.TalkID, &meta.MetaText, &raw); err != nil {
			return nil, errors.Wrap(err, "failed to scan talk meta")
		}
		if meta.Embedding, err = scanEmbedding(raw); err != nil {
			return nil, err
		}
		metas = append(metas, &meta)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return metas, nil
}

// UpsertSpeakerBio inserts or replaces a speaker bio descriptor.
func (d *DB) UpsertSpeakerBio(ctx context.Context, bio *store.SpeakerBio) error {
	stmt := `
		INSERT INTO speaker_bio (talk_id, person_id, bio_text, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (talk_id, person_id) DO UPDATE SET
			bio_text = EXCLUDED.bio_text,
			embedding = EXCLUDED.embedding
	`
	_, err := d.db.ExecContext(ctx, stmt, bio.TalkID, bio.PersonID, bio.BioText, embeddingValue(bio.Embedding))
	if err != nil {
		return errors.Wrap(err, "failed to upsert speaker bio")
	}
	return nil
}

// ListSpeakerBios lists speaker bios ordered by (talk_id, person_id).
func (d *DB) ListSpeakerBios(ctx context.Context, find *store.FindSpeakerBio) ([]*store.SpeakerBio, error) {
	if find == nil {
		find = &store.FindSpeakerBio{}
	}
	where, args := []string{"1 = 1"}, []any{}
	if len(find.TalkIDs) > 0 {
		where, args = append(where, "talk_id = ANY("+placeholder(len(args)+1)+")"), append(args, pq.Array(find.TalkIDs))
	}
	if len(find.PersonIDs) > 0 {
		where, args = append(where, "person_id = ANY("+placeholder(len(args)+1)+")"), append(args, pq.Array(find.PersonIDs))
	}

	query := `SELECT talk_id, person_id, bio_text, embedding::text
		FROM speaker_bio
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY talk_id ASC, person_id ASC`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list speaker bios")
	}
	defer rows.Close()

	var bios []*store.SpeakerBio
	for rows.Next() {
		var bio store.SpeakerBio
		var raw sql.NullString
		if err := rows.Scan(&bio.TalkID, &bio.PersonID, &bio.BioText, &raw); err != nil {
			return nil, errors.Wrap(err, "failed to scan speaker bio")
		}
		if bio.Embedding, err = scanEmbedding(raw); err != nil {
			return nil, err
		}
		bios = append(bios, &bio)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bios, nil
}

// UpsertVideo inserts or replaces a video descriptor.
func (d *DB) UpsertVideo(ctx context.Context, video *store.Video) error {
	stmt := `
		INSERT INTO video (talk_id, storage_ref, duration_sec, frame_width, frame_height, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (talk_id) DO UPDATE SET
			storage_ref = EXCLUDED.storage_ref,
			duration_sec = EXCLUDED.duration_sec,
			frame_width = EXCLUDED.frame_width,
			frame_height = EXCLUDED.frame_height,
			embedding = EXCLUDED.embedding
	`
	_, err := d.db.ExecContext(ctx, stmt,
		video.TalkID, video.StorageRef, video.DurationSec, video.FrameWidth, video.FrameHeight, embeddingValue(video.Embedding))
	if err != nil {
		return errors.Wrap(err, "failed to upsert video")
	}
	return nil
}

// ListVideos lists video descriptors ordered by talk_id.
func (d *DB) ListVideos(ctx context.Context, find *store.FindVideo) ([]*store.Video, error) {
	if find == nil {
		find = &store.FindVideo{}
	}
	where, args := []string{"1 = 1"}, []any{}
	if len(find.TalkIDs) > 0 {
		where, args = append(where, "talk_id = ANY("+placeholder(len(args)+1)+")"), append(args, pq.Array(find.TalkIDs))
	}

	query := `SELECT talk_id, storage_ref, duration_sec, frame_width, frame_height, embedding::text
		FROM video
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY talk_id ASC`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list videos")
	}
	defer rows.Close()

	var videos []*store.Video
	for rows.Next() {
		var video store.Video
		var raw sql.NullString
		if err := rows.Scan(&video.TalkID, &video.StorageRef, &video.DurationSec, &video.FrameWidth, &video.FrameHeight, &raw); err != nil {
			return nil, errors.Wrap(err, "failed to scan video")
		}
		if video.Embedding, err = scanEmbedding(raw); err != nil {
			return nil, err
		}
		videos = append(videos, &video)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return videos, nil
}

// ListEmbeddings loads every stored vector of one descriptor set ordered
// by ascending descriptor ID.
func (d *DB) ListEmbeddings(ctx context.Context, set string) ([]*store.Embedding, error) {
	var query string
	switch set {
	case vector.SetTranscriptChunks:
		query = `SELECT talk_id || '#' || lpad(seq::text, 5, '0'), talk_id, embedding
			FROM transcript_chunk WHERE embedding IS NOT NULL ORDER BY 1 ASC`
	case vector.SetTalkMeta:
		query = `SELECT talk_id, talk_id, embedding
			FROM talk_meta WHERE embedding IS NOT NULL ORDER BY 1 ASC`
	case vector.SetSpeakerBio:
		query = `SELECT talk_id || '#' || person_id, talk_id, embedding
			FROM speaker_bio WHERE embedding IS NOT NULL ORDER BY 1 ASC`
	case vector.SetVideo:
		query = `SELECT talk_id, talk_id, embedding
			FROM video WHERE embedding IS NOT NULL ORDER BY 1 ASC`
	default:
		return nil, vector.ErrIndexNotFound
	}

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list embeddings for %s", set)
	}
	defer rows.Close()

	var list []*store.Embedding
	for rows.Next() {
		e := &store.Embedding{Set: set}
		var vec pgvector.Vector
		if err := rows.Scan(&e.ID, &e.TalkID, &vec); err != nil {
			return nil, errors.Wrap(err, "failed to scan embedding")
		}
		e.Vector = vec.Slice()
		list = append(list, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}
