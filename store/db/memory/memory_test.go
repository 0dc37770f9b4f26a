package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talklens/talklens/store"
	"github.com/talklens/talklens/vector"
)

func strp(s string) *string { return &s }
func intp(i int) *int       { return &i }

func seedTalks(t *testing.T) *DB {
	t.Helper()
	db := NewDB()
	ctx := context.Background()
	day := func(d int) time.Time { return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC) }

	talks := []*store.Talk{
		{ID: "t1", Title: "Agents in Production", SpeakerName: "Ana Souza", CompanyName: "Acme", CategoryPrimary: "Agents", EventName: "E1", Views: 900, TechLevel: 5, PublishedAt: day(1)},
		{ID: "t2", Title: "Deployment Pipelines", SpeakerName: "Ben Okafor", CompanyName: "Globex", CategoryPrimary: "MLOps", EventName: "E1", Views: 300, TechLevel: 3, PublishedAt: day(5)},
		{ID: "t3", Title: "Agent Memory Systems", SpeakerName: "Ana Souza", CompanyName: "Acme", CategoryPrimary: "Agents", EventName: "E2", Views: 300, TechLevel: 6, PublishedAt: day(9)},
	}
	for _, talk := range talks {
		_, err := db.UpsertTalk(ctx, talk)
		require.NoError(t, err)
	}
	return db
}

func talkIDs(talks []*store.Talk) []string {
	ids := make([]string, len(talks))
	for i, t := range talks {
		ids[i] = t.ID
	}
	return ids
}

func TestListTalksPredicates(t *testing.T) {
	db := seedTalks(t)
	ctx := context.Background()

	cases := []struct {
		name string
		find *store.FindTalk
		want []string
	}{
		{"speaker", &store.FindTalk{SpeakerName: strp("Ana Souza")}, []string{"t1", "t3"}},
		{"category", &store.FindTalk{CategoryPrimary: strp("MLOps")}, []string{"t2"}},
		{"title contains is case-insensitive", &store.FindTalk{TitleContains: strp("agent")}, []string{"t1", "t3"}},
		{"title equals", &store.FindTalk{TitleEquals: strp("Deployment Pipelines")}, []string{"t2"}},
		{"views range", &store.FindTalk{MinViews: func() *int64 { v := int64(300); return &v }(), MaxViews: func() *int64 { v := int64(500); return &v }()}, []string{"t2", "t3"}},
		{"tech level range", &store.FindTalk{MinTechLevel: intp(5), MaxTechLevel: intp(6)}, []string{"t1", "t3"}},
		{"date window", &store.FindTalk{
			PublishedAfter:  func() *time.Time { d := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC); return &d }(),
			PublishedBefore: func() *time.Time { d := time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC); return &d }(),
		}, []string{"t2"}},
		{"conjunction", &store.FindTalk{CompanyName: strp("Acme"), EventName: strp("E2")}, []string{"t3"}},
		{"no match", &store.FindTalk{CompanyName: strp("Initech")}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			talks, err := db.ListTalks(ctx, tc.find)
			require.NoError(t, err)
			assert.ElementsMatch(t, tc.want, talkIDs(talks))
		})
	}
}

func TestListTalksOrdering(t *testing.T) {
	db := seedTalks(t)
	ctx := context.Background()

	// Default order is publish date ascending.
	talks, err := db.ListTalks(ctx, &store.FindTalk{})
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2", "t3"}, talkIDs(talks))

	// Views descending; t2 and t3 tie on views and break by ID ascending.
	talks, err = db.ListTalks(ctx, &store.FindTalk{OrderBy: store.OrderByViews, Desc: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2", "t3"}, talkIDs(talks))

	// Views ascending keeps the same ascending ID tie-break.
	talks, err = db.ListTalks(ctx, &store.FindTalk{OrderBy: store.OrderByViews})
	require.NoError(t, err)
	assert.Equal(t, []string{"t2", "t3", "t1"}, talkIDs(talks))

	talks, err = db.ListTalks(ctx, &store.FindTalk{OrderBy: store.OrderByTitle})
	require.NoError(t, err)
	assert.Equal(t, []string{"t3", "t1", "t2"}, talkIDs(talks))
}

func TestListTalksLimit(t *testing.T) {
	db := seedTalks(t)

	talks, err := db.ListTalks(context.Background(), &store.FindTalk{OrderBy: store.OrderByViews, Desc: true, Limit: 1})
	require.NoError(t, err)
	require.Len(t, talks, 1)
	assert.Equal(t, "t1", talks[0].ID)
}

func TestListTalksCopiesRows(t *testing.T) {
	db := seedTalks(t)
	ctx := context.Background()

	talks, err := db.ListTalks(ctx, &store.FindTalk{IDs: []string{"t1"}})
	require.NoError(t, err)
	require.Len(t, talks, 1)
	talks[0].Title = "mutated"

	again, err := db.ListTalks(ctx, &store.FindTalk{IDs: []string{"t1"}})
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, "Agents in Production", again[0].Title)
}

func TestListTranscriptChunksWindow(t *testing.T) {
	db := NewDB()
	ctx := context.Background()
	for i, win := range [][2]int{{0, 30}, {30, 60}, {60, 90}} {
		chunk := &store.TranscriptChunk{TalkID: "t1", Seq: i, Text: "c", StartSec: win[0], EndSec: win[1]}
		require.NoError(t, db.UpsertTranscriptChunk(ctx, chunk))
	}

	chunks, err := db.ListTranscriptChunks(ctx, &store.FindTranscriptChunk{
		TalkIDs:     []string{"t1"},
		MinStartSec: intp(30),
		MaxEndSec:   intp(90),
	})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 1, chunks[0].Seq)
	assert.Equal(t, 2, chunks[1].Seq)
}

func TestListEmbeddingsIDFormats(t *testing.T) {
	db := NewDB()
	ctx := context.Background()
	vec := make([]float32, 768)

	require.NoError(t, db.UpsertTranscriptChunk(ctx, &store.TranscriptChunk{TalkID: "t1", Seq: 2, Text: "x", Embedding: vec}))
	require.NoError(t, db.UpsertTranscriptChunk(ctx, &store.TranscriptChunk{TalkID: "t1", Seq: 0, Text: "x", Embedding: vec}))
	require.NoError(t, db.UpsertTalkMeta(ctx, &store.TalkMeta{TalkID: "t1", MetaText: "m", Embedding: vec}))
	require.NoError(t, db.UpsertSpeakerBio(ctx, &store.SpeakerBio{TalkID: "t1", PersonID: "p1", BioText: "b", Embedding: vec}))
	require.NoError(t, db.UpsertVideo(ctx, &store.Video{TalkID: "t1", StorageRef: "s3://x", Embedding: make([]float32, 1024)}))
	// Rows without a stored vector never surface in an index snapshot.
	require.NoError(t, db.UpsertTalkMeta(ctx, &store.TalkMeta{TalkID: "t2", MetaText: "no vector"}))

	chunks, err := db.ListEmbeddings(ctx, vector.SetTranscriptChunks)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "t1#00000", chunks[0].ID)
	assert.Equal(t, "t1#00002", chunks[1].ID)
	assert.Equal(t, "t1", chunks[0].TalkID)

	metas, err := db.ListEmbeddings(ctx, vector.SetTalkMeta)
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, "t1", metas[0].ID)

	bios, err := db.ListEmbeddings(ctx, vector.SetSpeakerBio)
	require.NoError(t, err)
	require.Len(t, bios, 1)
	assert.Equal(t, "t1#p1", bios[0].ID)

	videos, err := db.ListEmbeddings(ctx, vector.SetVideo)
	require.NoError(t, err)
	require.Len(t, videos, 1)
	assert.Len(t, videos[0].Vector, 1024)

	_, err = db.ListEmbeddings(ctx, "ds_bogus_v1")
	require.Error(t, err)
	assert.ErrorIs(t, err, vector.ErrIndexNotFound)
}

func TestListPersonsFilter(t *testing.T) {
	db := NewDB()
	ctx := context.Background()
	for _, p := range []*store.Person{
		{ID: "p1", Name: "Ana Souza", Company: "Acme"},
		{ID: "p2", Name: "Ben Okafor", Company: "Globex"},
	} {
		_, err := db.UpsertPerson(ctx, p)
		require.NoError(t, err)
	}

	persons, err := db.ListPersons(ctx, &store.FindPerson{NameContains: strp("souza")})
	require.NoError(t, err)
	require.Len(t, persons, 1)
	assert.Equal(t, "p1", persons[0].ID)
}

func TestUpsertOverwrites(t *testing.T) {
	db := seedTalks(t)
	ctx := context.Background()

	_, err := db.UpsertTalk(ctx, &store.Talk{ID: "t1", Title: "Revised", Views: 1000})
	require.NoError(t, err)

	talks, err := db.ListTalks(ctx, &store.FindTalk{IDs: []string{"t1"}})
	require.NoError(t, err)
	require.Len(t, talks, 1)
	assert.Equal(t, "Revised", talks[0].Title)
	assert.Equal(t, int64(1000), talks[0].Views)
}
