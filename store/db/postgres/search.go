package postgres

import (
	"context"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/talklens/talklens/vector"
)

// SearchEmbeddings performs a k-NN probe inside PostgreSQL using the
// pgvector <=> operator (cosine distance). When candidateTalkIDs is
// non-nil the probe is restricted to descriptors owned by those talks.
// Distance ties break on descriptor ID ascending so results are stable
// across runs.
func (d *DB) SearchEmbeddings(ctx context.Context, set string, query []float32, k int, candidateTalkIDs []string) ([]vector.Match, error) {
	if err := vector.ValidateQuery(set, query); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, errors.Errorf("k must be positive, got %d", k)
	}

	var table, idExpr string
	switch set {
	case vector.SetTranscriptChunks:
		table, idExpr = "transcript_chunk", "talk_id || '#' || lpad(seq::text, 5, '0')"
	case vector.SetTalkMeta:
		table, idExpr = "talk_meta", "talk_id"
	case vector.SetSpeakerBio:
		table, idExpr = "speaker_bio", "talk_id || '#' || person_id"
	case vector.SetVideo:
		table, idExpr = "video", "talk_id"
	default:
		return nil, errors.Wrapf(vector.ErrIndexNotFound, "set %q", set)
	}

	where, args := []string{"embedding IS NOT NULL"}, []any{}
	if candidateTalkIDs != nil {
		if len(candidateTalkIDs) == 0 {
			return []vector.Match{}, nil
		}
		where, args = append(where, "talk_id = ANY("+placeholder(len(args)+1)+")"), append(args, pq.Array(candidateTalkIDs))
	}

	queryVec := pgvector.NewVector(query)
	args = append(args, queryVec)
	distExpr := "embedding <=> " + placeholder(len(args))

	stmt := `SELECT ` + idExpr + `, talk_id, ` + distExpr + ` AS distance
		FROM ` + table + `
		WHERE ` + where[0]
	for _, w := range where[1:] {
		stmt += " AND " + w
	}
	args = append(args, k)
	stmt += `
		ORDER BY distance ASC, 1 ASC
		LIMIT ` + placeholder(len(args))

	rows, err := d.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to search embeddings in %s", set)
	}
	defer rows.Close()

	var matches []vector.Match
	for rows.Next() {
		var m vector.Match
		if err := rows.Scan(&m.ID, &m.TalkID, &m.Distance); err != nil {
			return nil, errors.Wrap(err, "failed to scan match")
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if matches == nil {
		matches = []vector.Match{}
	}
	return matches, nil
}
