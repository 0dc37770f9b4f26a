package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/talklens/talklens/store"
)

const talkColumns = `id, title, abstract, keywords_csv, category_primary, track, event_name,
		industries, speaker_name, company_name, tech_level, views, published_at,
		duration_sec, youtube_url, youtube_id`

// UpsertTalk inserts or replaces a talk row.
func (d *DB) UpsertTalk(ctx context.Context, talk *store.Talk) (*store.Talk, error) {
	stmt := `
		INSERT INTO talk (` + talkColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			abstract = EXCLUDED.abstract,
			keywords_csv = EXCLUDED.keywords_csv,
			category_primary = EXCLUDED.category_primary,
			track = EXCLUDED.track,
			event_name = EXCLUDED.event_name,
			industries = EXCLUDED.industries,
			speaker_name = EXCLUDED.speaker_name,
			company_name = EXCLUDED.company_name,
			tech_level = EXCLUDED.tech_level,
			views = EXCLUDED.views,
			published_at = EXCLUDED.published_at,
			duration_sec = EXCLUDED.duration_sec,
			youtube_url = EXCLUDED.youtube_url,
			youtube_id = EXCLUDED.youtube_id
	`
	_, err := d.db.ExecContext(ctx, stmt,
		talk.ID,
		talk.Title,
		talk.Abstract,
		talk.KeywordsCSV,
		talk.CategoryPrimary,
		talk.Track,
		talk.EventName,
		talk.Industries,
		talk.SpeakerName,
		talk.CompanyName,
		talk.TechLevel,
		talk.Views,
		talk.PublishedAt.Unix(),
		talk.DurationSec,
		talk.YouTubeURL,
		talk.YouTubeID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert talk")
	}
	return talk, nil
}

// ListTalks lists talks matching the find condition.
func (d *DB) ListTalks(ctx context.Context, find *store.FindTalk) ([]*store.Talk, error) {
	if find == nil {
		find = &store.FindTalk{}
	}
	where, args := []string{"1 = 1"}, []any{}

	if len(find.IDs) > 0 {
		where, args = append(where, "id = ANY("+placeholder(len(args)+1)+")"), append(args, pq.Array(find.IDs))
	}
	if find.EventName != nil {
		where, args = append(where, "event_name = "+placeholder(len(args)+1)), append(args, *find.EventName)
	}
	if find.CategoryPrimary != nil {
		where, args = append(where, "category_primary = "+placeholder(len(args)+1)), append(args, *find.CategoryPrimary)
	}
	if find.Track != nil {
		where, args = append(where, "track = "+placeholder(len(args)+1)), append(args, *find.Track)
	}
	if find.CompanyName != nil {
		where, args = append(where, "company_name = "+placeholder(len(args)+1)), append(args, *find.CompanyName)
	}
	if find.SpeakerName != nil {
		where, args = append(where, "speaker_name = "+placeholder(len(args)+1)), append(args, *find.SpeakerName)
	}
	if find.Industries != nil {
		where, args = append(where, "industries = "+placeholder(len(args)+1)), append(args, *find.Industries)
	}
	if find.TitleEquals != nil {
		where, args = append(where, "title = "+placeholder(len(args)+1)), append(args, *find.TitleEquals)
	}
	if find.TitleContains != nil {
		where, args = append(where, "title ILIKE "+placeholder(len(args)+1)), append(args, "%"+*find.TitleContains+"%")
	}
	if find.MinViews != nil {
		where, args = append(where, "views >= "+placeholder(len(args)+1)), append(args, *find.MinViews)
	}
	if find.MaxViews != nil {
		where, args = append(where, "views <= "+placeholder(len(args)+1)), append(args, *find.MaxViews)
	}
	if find.PublishedAfter != nil {
		where, args = append(where, "published_at >= "+placeholder(len(args)+1)), append(args, find.PublishedAfter.Unix())
	}
	if find.PublishedBefore != nil {
		where, args = append(where, "published_at <= "+placeholder(len(args)+1)), append(args, find.PublishedBefore.Unix())
	}
	if find.MinTechLevel != nil {
		where, args = append(where, "tech_level >= "+placeholder(len(args)+1)), append(args, *find.MinTechLevel)
	}
	if find.MaxTechLevel != nil {
		where, args = append(where, "tech_level <= "+placeholder(len(args)+1)), append(args, *find.MaxTechLevel)
	}

	query := `SELECT ` + talkColumns + ` FROM talk WHERE ` + strings.Join(where, " AND ")
	query += " ORDER BY " + talkOrderClause(find.OrderBy, find.Desc)
	if find.Limit > 0 {
		query += " LIMIT " + placeholder(len(args)+1)
		args = append(args, find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list talks")
	}
	defer rows.Close()

	var talks []*store.Talk
	for rows.Next() {
		var talk store.Talk
		var publishedAt int64
		err := rows.Scan(
			&talk.ID,
			&talk.Title,
			&talk.Abstract,
			&talk.KeywordsCSV,
			&talk.CategoryPrimary,
			&talk.Track,
			&talk.EventName,
			&talk.Industries,
			&talk.SpeakerName,
			&talk.CompanyName,
			&talk.TechLevel,
			&talk.Views,
			&publishedAt,
			&talk.DurationSec,
			&talk.YouTubeURL,
			&talk.YouTubeID,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan talk")
		}
		talk.PublishedAt = time.Unix(publishedAt, 0).UTC()
		talks = append(talks, &talk)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return talks, nil
}

func talkOrderClause(orderBy store.TalkOrderBy, desc bool) string {
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	switch orderBy {
	case store.OrderByViews:
		return "views " + dir + ", id ASC"
	case store.OrderByTitle:
		return "title " + dir + ", id ASC"
	case store.OrderByTechLevel:
		return "tech_level " + dir + ", id ASC"
	default:
		return "published_at " + dir + ", id ASC"
	}
}
