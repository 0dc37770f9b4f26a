package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talklens/talklens/internal/profile"
	"github.com/talklens/talklens/store"
	"github.com/talklens/talklens/store/db/memory"
	"github.com/talklens/talklens/vector"
)

// memoryIndexes serves snapshot indexes straight off a memory driver.
type memoryIndexes struct {
	driver store.Driver
}

func (p *memoryIndexes) Index(ctx context.Context, set string) (vector.Index, error) {
	return vector.NewMemory(ctx, p.driver, set)
}

// fixedEmbedder returns one canned vector for every text.
type fixedEmbedder struct {
	vec []float32
}

func (f *fixedEmbedder) Embed(context.Context, string) ([]float32, error) { return f.vec, nil }
func (f *fixedEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}
func (f *fixedEmbedder) Dimensions() int { return len(f.vec) }

// failingEmbedder simulates an embedding endpoint outage.
type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedding endpoint down")
}
func (failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("embedding endpoint down")
}
func (failingEmbedder) Dimensions() int { return 768 }

func axisVec(dim, hot int) []float32 {
	v := make([]float32, dim)
	v[hot] = 1
	return v
}

func blendVec(dim int, hots ...int) []float32 {
	v := make([]float32, dim)
	for _, h := range hots {
		v[h] = 1
	}
	return v
}

// seedCorpus loads a small three-talk snapshot: t1 about agents (axis 0),
// t2 about deployment (axis 1), t3 about agents too but from the same
// speaker as t1.
func seedCorpus(t *testing.T) store.Driver {
	t.Helper()
	db := memory.NewDB()
	ctx := context.Background()

	day := func(d int) time.Time { return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC) }
	talks := []*store.Talk{
		{ID: "t1", Title: "Agents in Production", CategoryPrimary: "MLOps", EventName: "MLOps World 2024", SpeakerName: "Ana Souza", CompanyName: "Acme", TechLevel: 5, Views: 900, PublishedAt: day(1)},
		{ID: "t2", Title: "Deployment Pipelines", CategoryPrimary: "Deployment", EventName: "MLOps World 2024", SpeakerName: "Ben Okafor", CompanyName: "Globex", TechLevel: 3, Views: 500, PublishedAt: day(2)},
		{ID: "t3", Title: "Agent Memory Systems", CategoryPrimary: "MLOps", EventName: "MLOps World 2024", SpeakerName: "Ana Souza", CompanyName: "Acme", TechLevel: 6, Views: 700, PublishedAt: day(3)},
	}
	for _, talk := range talks {
		_, err := db.UpsertTalk(ctx, talk)
		require.NoError(t, err)
	}

	persons := []*store.Person{
		{ID: "p1", Name: "Ana Souza", Company: "Acme"},
		{ID: "p2", Name: "Ben Okafor", Company: "Globex"},
	}
	for _, p := range persons {
		_, err := db.UpsertPerson(ctx, p)
		require.NoError(t, err)
	}
	for _, e := range []*store.SpeakerEdge{
		{TalkID: "t1", PersonID: "p1"},
		{TalkID: "t2", PersonID: "p2"},
		{TalkID: "t3", PersonID: "p1"},
	} {
		require.NoError(t, db.UpsertSpeakerEdge(ctx, e))
	}

	metaVecs := map[string][]float32{
		"t1": axisVec(768, 0),
		"t2": axisVec(768, 1),
		"t3": blendVec(768, 0, 2),
	}
	for id, v := range metaVecs {
		require.NoError(t, db.UpsertTalkMeta(ctx, &store.TalkMeta{TalkID: id, MetaText: "meta " + id, Embedding: v}))
	}
	return db
}

func newTestEngine(t *testing.T, driver store.Driver) *Engine {
	t.Helper()
	st := store.New(driver, &profile.Profile{Driver: "memory"})
	return NewEngine(st, &memoryIndexes{driver: driver}, &fixedEmbedder{vec: axisVec(768, 0)}, nil, time.Second, nil)
}

func TestSearchSemanticOnly(t *testing.T) {
	eng := newTestEngine(t, seedCorpus(t))

	results, err := eng.Search(context.Background(), &Request{
		Query: "agents",
		Sets:  []string{vector.SetTalkMeta},
		K:     3,
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "t1", results[0].Talk.ID)
	assert.Equal(t, "t3", results[1].Talk.ID)
	assert.Equal(t, "t2", results[2].Talk.ID)
	assert.Equal(t, []string{vector.SetTalkMeta}, results[0].Sources)
}

func TestSearchFilterThenSemantic(t *testing.T) {
	eng := newTestEngine(t, seedCorpus(t))
	category := "MLOps"

	results, err := eng.Search(context.Background(), &Request{
		Filter: &store.FindTalk{CategoryPrimary: &category},
		Query:  "agents",
		Sets:   []string{vector.SetTalkMeta},
		K:      10,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, "MLOps", r.Talk.CategoryPrimary)
	}
}

func TestSearchSemanticThenFilterAppliesFilter(t *testing.T) {
	eng := newTestEngine(t, seedCorpus(t))
	category := "Deployment"

	results, err := eng.Search(context.Background(), &Request{
		Mode:   ModeSemanticThenFilter,
		Filter: &store.FindTalk{CategoryPrimary: &category},
		Query:  "agents",
		Sets:   []string{vector.SetTalkMeta},
		K:      10,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "t2", results[0].Talk.ID)
}

func TestSearchSemanticThenFilterKeepsRanking(t *testing.T) {
	eng := newTestEngine(t, seedCorpus(t))
	category := "MLOps"

	results, err := eng.Search(context.Background(), &Request{
		Mode:   ModeSemanticThenFilter,
		Filter: &store.FindTalk{CategoryPrimary: &category},
		Query:  "agents",
		Sets:   []string{vector.SetTalkMeta},
		K:      10,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "t1", results[0].Talk.ID)
	assert.Equal(t, "t3", results[1].Talk.ID)
}

func TestSearchEmptyFilterScopeShortCircuits(t *testing.T) {
	eng := newTestEngine(t, seedCorpus(t))
	category := "Quantum Basket Weaving"

	results, err := eng.Search(context.Background(), &Request{
		Filter: &store.FindTalk{CategoryPrimary: &category},
		Query:  "agents",
		Sets:   []string{vector.SetTalkMeta},
		K:      10,
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchMetadataOnly(t *testing.T) {
	eng := newTestEngine(t, seedCorpus(t))
	speaker := "Ana Souza"

	results, err := eng.Search(context.Background(), &Request{
		Filter: &store.FindTalk{SpeakerName: &speaker},
		K:      10,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, "Ana Souza", r.Talk.SpeakerName)
		assert.Zero(t, r.Score)
	}
}

func TestSearchExcludesTalks(t *testing.T) {
	eng := newTestEngine(t, seedCorpus(t))

	results, err := eng.Search(context.Background(), &Request{
		Query:          "agents",
		Sets:           []string{vector.SetTalkMeta},
		K:              10,
		ExcludeTalkIDs: []string{"t1"},
	})
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "t1", r.Talk.ID)
	}
}

func TestSearchNoPartialSuccessOnEmbedFailure(t *testing.T) {
	driver := seedCorpus(t)
	st := store.New(driver, &profile.Profile{Driver: "memory"})
	eng := NewEngine(st, &memoryIndexes{driver: driver}, failingEmbedder{}, nil, time.Second, nil)

	results, err := eng.Search(context.Background(), &Request{
		Query: "agents",
		Sets:  []string{vector.SetTalkMeta},
		K:     3,
	})
	require.Error(t, err)
	assert.Nil(t, results)
}

func TestSearchCancelledContext(t *testing.T) {
	eng := newTestEngine(t, seedCorpus(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := eng.Search(ctx, &Request{
		Query: "agents",
		Sets:  []string{vector.SetTalkMeta},
		K:     3,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

// slowEmbedder blocks until the stage deadline fires.
type slowEmbedder struct{}

func (slowEmbedder) Embed(ctx context.Context, _ string) ([]float32, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(time.Second):
		return axisVec(768, 0), nil
	}
}

func (s slowEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	v, err := s.Embed(ctx, "")
	if err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = v
	}
	return out, nil
}

func (slowEmbedder) Dimensions() int { return 768 }

func TestSearchStageTimeoutMapsToUpstreamTimeout(t *testing.T) {
	driver := seedCorpus(t)
	st := store.New(driver, &profile.Profile{Driver: "memory"})
	eng := NewEngine(st, &memoryIndexes{driver: driver}, slowEmbedder{}, nil, 10*time.Millisecond, nil)

	results, err := eng.Search(context.Background(), &Request{
		Query: "agents",
		Sets:  []string{vector.SetTalkMeta},
		K:     3,
	})
	require.Error(t, err)
	assert.Nil(t, results)
	assert.Equal(t, KindUpstreamTimeout, Classify(err))
}

func TestSearchMultiHop(t *testing.T) {
	eng := newTestEngine(t, seedCorpus(t))
	title := "Agents in Production"

	// Seed with t1, expand over the speaker edge for two hops: t1's
	// speaker also gave t3.
	results, err := eng.Search(context.Background(), &Request{
		Filter:   &store.FindTalk{TitleEquals: &title},
		Traverse: &TraverseSpec{EdgeType: store.EdgeHasSpeaker, Direction: store.DirectionOut, Hops: 2},
		K:        10,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	ids := []string{results[0].Talk.ID, results[1].Talk.ID}
	assert.ElementsMatch(t, []string{"t1", "t3"}, ids)
}

func TestFindSimilarExcludesReference(t *testing.T) {
	eng := newTestEngine(t, seedCorpus(t))

	results, err := eng.FindSimilar(context.Background(), &SimilarRequest{
		TalkID: "t1",
		Sets:   []string{vector.SetTalkMeta},
		K:      10,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "t3", results[0].Talk.ID)
	for _, r := range results {
		assert.NotEqual(t, "t1", r.Talk.ID)
	}
}

func TestFindSimilarExcludesSameSpeaker(t *testing.T) {
	eng := newTestEngine(t, seedCorpus(t))

	results, err := eng.FindSimilar(context.Background(), &SimilarRequest{
		TalkID:             "t1",
		Sets:               []string{vector.SetTalkMeta},
		K:                  10,
		ExcludeSameSpeaker: true,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "t2", results[0].Talk.ID)
}

func TestFindSimilarMissingEmbedding(t *testing.T) {
	eng := newTestEngine(t, seedCorpus(t))

	_, err := eng.FindSimilar(context.Background(), &SimilarRequest{
		TalkID: "missing",
		Sets:   []string{vector.SetTalkMeta},
		K:      10,
	})
	require.Error(t, err)
	assert.Equal(t, KindNotFound, Classify(err))
}

func TestSearchByFiltersRejectsUnknownSort(t *testing.T) {
	eng := newTestEngine(t, seedCorpus(t))

	_, err := eng.SearchByFilters(context.Background(), &store.FindTalk{OrderBy: "relevance"})
	require.Error(t, err)
	assert.Equal(t, KindValidation, Classify(err))
}
