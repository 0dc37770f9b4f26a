package sqlite

import (
	"context"
	"strings"
	"time"

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
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			abstract = excluded.abstract,
			keywords_csv = excluded.keywords_csv,
			category_primary = excluded.category_primary,
			track = excluded.track,
			event_name = excluded.event_name,
			industries = excluded.industries,
			speaker_name = excluded.speaker_name,
			company_name = excluded.company_name,
			tech_level = excluded.tech_level,
			views = excluded.views,
			published_at = excluded.published_at,
			duration_sec = excluded.duration_sec,
			youtube_url = excluded.youtube_url,
			youtube_id = excluded.youtube_id
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
		where = append(where, "id IN ("+placeholders(len(find.IDs))+")")
		for _, id := range find.IDs {
			args = append(args, id)
		}
	}
	if find.EventName != nil {
		where, args = append(where, "event_name = ?"), append(args, *find.EventName)
	}
	if find.CategoryPrimary != nil {
		where, args = append(where, "category_primary = ?"), append(args, *find.CategoryPrimary)
	}
	if find.Track != nil {
		where, args = append(where, "track = ?"), append(args, *find.Track)
	}
	if find.CompanyName != nil {
		where, args = append(where, "company_name = ?"), append(args, *find.CompanyName)
	}
	if find.SpeakerName != nil {
		where, args = append(where, "speaker_name = ?"), append(args, *find.SpeakerName)
	}
	if find.Industries != nil {
		where, args = append(where, "industries = ?"), append(args, *find.Industries)
	}
	if find.TitleEquals != nil {
		where, args = append(where, "title = ?"), append(args, *find.TitleEquals)
	}
	if find.TitleContains != nil {
		where, args = append(where, "title LIKE ? ESCAPE '\\'"), append(args, "%"+escapeLike(*find.TitleContains)+"%")
	}
	if find.MinViews != nil {
		where, args = append(where, "views >= ?"), append(args, *find.MinViews)
	}
	if find.MaxViews != nil {
		where, args = append(where, "views <= ?"), append(args, *find.MaxViews)
	}
	if find.PublishedAfter != nil {
		where, args = append(where, "published_at >= ?"), append(args, find.PublishedAfter.Unix())
	}
	if find.PublishedBefore != nil {
		where, args = append(where, "published_at <= ?"), append(args, find.PublishedBefore.Unix())
	}
	if find.MinTechLevel != nil {
		where, args = append(where, "tech_level >= ?"), append(args, *find.MinTechLevel)
	}
	if find.MaxTechLevel != nil {
		where, args = append(where, "tech_level <= ?"), append(args, *find.MaxTechLevel)
	}

	query := `SELECT ` + talkColumns + ` FROM talk WHERE ` + strings.Join(where, " AND ")
	query += " ORDER BY " + talkOrderClause(find.OrderBy, find.Desc)
	if find.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list talks")
	}
	defer rows.Close()

	var talks []*store.Talk
	for rows.Next() {
		talk, err := scanTalk(rows)
		if err != nil {
			return nil, err
		}
		talks = append(talks, talk)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return talks, nil
}

// talkOrderClause maps the order key onto SQL. The secondary key is always
// id ascending so equal primary keys list deterministically.
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTalk(row rowScanner) (*store.Talk, error) {
	var talk store.Talk
	var publishedAt int64
	err := row.Scan(
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
	return &talk, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
