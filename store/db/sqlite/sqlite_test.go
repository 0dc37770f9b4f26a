package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talklens/talklens/internal/profile"
	"github.com/talklens/talklens/store"
	"github.com/talklens/talklens/vector"
)

func TestTalkOrderClause(t *testing.T) {
	assert.Equal(t, "published_at ASC, id ASC", talkOrderClause(store.OrderByDate, false))
	assert.Equal(t, "published_at DESC, id ASC", talkOrderClause("", true))
	assert.Equal(t, "views DESC, id ASC", talkOrderClause(store.OrderByViews, true))
	assert.Equal(t, "title ASC, id ASC", talkOrderClause(store.OrderByTitle, false))
	assert.Equal(t, "tech_level ASC, id ASC", talkOrderClause(store.OrderByTechLevel, false))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\% agents`, escapeLike("100% agents"))
	assert.Equal(t, `a\_b`, escapeLike("a_b"))
	assert.Equal(t, `c:\\dir`, escapeLike(`c:\dir`))
	assert.Equal(t, "plain", escapeLike("plain"))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", placeholders(0))
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?, ?, ?", placeholders(3))
}

func TestVectorCodecRoundTrip(t *testing.T) {
	v := []float32{0.25, -1.5, 3.0, 0}
	assert.Equal(t, v, decodeVector(encodeVector(v)))
	assert.Nil(t, encodeVector(nil))
	assert.Nil(t, decodeVector(nil))
}

func newFileDB(t *testing.T) store.Driver {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "talklens.db")
	db, err := NewDB(&profile.Profile{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func TestSQLiteRoundTrip(t *testing.T) {
	db := newFileDB(t)
	ctx := context.Background()

	talks := []*store.Talk{
		{ID: "t1", Title: "Agents in Production", CategoryPrimary: "Agents", Views: 900, PublishedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "t2", Title: "Deployment Pipelines", CategoryPrimary: "MLOps", Views: 300, PublishedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, talk := range talks {
		_, err := db.UpsertTalk(ctx, talk)
		require.NoError(t, err)
	}

	category := "Agents"
	got, err := db.ListTalks(ctx, &store.FindTalk{CategoryPrimary: &category})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "t1", got[0].ID)
	assert.Equal(t, "Agents in Production", got[0].Title)
	assert.Equal(t, talks[0].PublishedAt, got[0].PublishedAt)

	// Upsert replaces in place.
	talks[0].Views = 1000
	_, err = db.UpsertTalk(ctx, talks[0])
	require.NoError(t, err)
	got, err = db.ListTalks(ctx, &store.FindTalk{IDs: []string{"t1"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1000), got[0].Views)

	needle := "pipe"
	got, err = db.ListTalks(ctx, &store.FindTalk{TitleContains: &needle})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "t2", got[0].ID)
}

func TestSQLiteEmbeddingsRoundTrip(t *testing.T) {
	db := newFileDB(t)
	ctx := context.Background()

	vec := make([]float32, 768)
	vec[0] = 1
	require.NoError(t, db.UpsertTalkMeta(ctx, &store.TalkMeta{TalkID: "t1", MetaText: "meta", Embedding: vec}))
	require.NoError(t, db.UpsertTalkMeta(ctx, &store.TalkMeta{TalkID: "t2", MetaText: "no vector"}))

	embeddings, err := db.ListEmbeddings(ctx, vector.SetTalkMeta)
	require.NoError(t, err)
	require.Len(t, embeddings, 1)
	assert.Equal(t, "t1", embeddings[0].ID)
	assert.Equal(t, vec, embeddings[0].Vector)
}
