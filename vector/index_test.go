package vector_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talklens/talklens/store"
	"github.com/talklens/talklens/store/db/memory"
	"github.com/talklens/talklens/vector"
)

func unitVec(dim, hot int) []float32 {
	v := make([]float32, dim)
	v[hot] = 1
	return v
}

func seedMetaEmbeddings(t *testing.T, db *memory.DB) {
	t.Helper()
	ctx := context.Background()
	// t1 aligned with axis 0, t2 diagonal between 0 and 1, t3 orthogonal.
	vecs := map[string][]float32{
		"t1": unitVec(768, 0),
		"t2": func() []float32 { v := make([]float32, 768); v[0], v[1] = 1, 1; return v }(),
		"t3": unitVec(768, 1),
	}
	for id, v := range vecs {
		require.NoError(t, db.UpsertTalkMeta(ctx, &store.TalkMeta{TalkID: id, MetaText: id, Embedding: v}))
	}
}

func TestMemoryKNNOrdersByDistance(t *testing.T) {
	db := memory.NewDB()
	seedMetaEmbeddings(t, db)

	idx, err := vector.NewMemory(context.Background(), db, vector.SetTalkMeta)
	require.NoError(t, err)

	matches, err := idx.KNN(context.Background(), unitVec(768, 0), 3, nil)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "t1", matches[0].TalkID)
	assert.Equal(t, "t2", matches[1].TalkID)
	assert.Equal(t, "t3", matches[2].TalkID)
	assert.InDelta(t, 0, matches[0].Distance, 1e-9)
	assert.InDelta(t, 1, matches[2].Distance, 1e-9)
}

func TestMemoryKNNCandidateRestriction(t *testing.T) {
	db := memory.NewDB()
	seedMetaEmbeddings(t, db)

	idx, err := vector.NewMemory(context.Background(), db, vector.SetTalkMeta)
	require.NoError(t, err)

	matches, err := idx.KNN(context.Background(), unitVec(768, 0), 3, map[string]struct{}{"t3": {}})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "t3", matches[0].TalkID)

	// Non-nil empty candidate set means an empty scope: no matches, no
	// scan, no error.
	matches, err = idx.KNN(context.Background(), unitVec(768, 0), 3, map[string]struct{}{})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestMemoryKNNEqualDistanceTiesAscendByID(t *testing.T) {
	db := memory.NewDB()
	ctx := context.Background()
	for _, id := range []string{"t9", "t1", "t5"} {
		require.NoError(t, db.UpsertTalkMeta(ctx, &store.TalkMeta{TalkID: id, MetaText: id, Embedding: unitVec(768, 3)}))
	}

	idx, err := vector.NewMemory(ctx, db, vector.SetTalkMeta)
	require.NoError(t, err)
	matches, err := idx.KNN(ctx, unitVec(768, 3), 3, nil)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "t1", matches[0].TalkID)
	assert.Equal(t, "t5", matches[1].TalkID)
	assert.Equal(t, "t9", matches[2].TalkID)
}

func TestMemoryKNNDimensionMismatch(t *testing.T) {
	db := memory.NewDB()
	idx, err := vector.NewMemory(context.Background(), db, vector.SetTalkMeta)
	require.NoError(t, err)

	_, err = idx.KNN(context.Background(), make([]float32, 100), 3, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, vector.ErrDimensionMismatch))
}

func TestNewMemoryUnknownSet(t *testing.T) {
	_, err := vector.NewMemory(context.Background(), memory.NewDB(), "ds_bogus_v1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, vector.ErrIndexNotFound))
}

func TestSimilarityMapping(t *testing.T) {
	// Text sets: similarity is 1 - cosine distance.
	assert.InDelta(t, 1.0, vector.Similarity(vector.SetTalkMeta, 0), 1e-9)
	assert.InDelta(t, 0.25, vector.Similarity(vector.SetTranscriptChunks, 0.75), 1e-9)

	// The video space reports larger raw distances; its mapping rescales
	// and clamps at zero.
	assert.InDelta(t, 1.0, vector.Similarity(vector.SetVideo, 0), 1e-9)
	assert.InDelta(t, 0.5, vector.Similarity(vector.SetVideo, 5), 1e-9)
	assert.Equal(t, 0.0, vector.Similarity(vector.SetVideo, 25))
}

func TestValidateQuery(t *testing.T) {
	assert.NoError(t, vector.ValidateQuery(vector.SetTalkMeta, make([]float32, 768)))
	assert.NoError(t, vector.ValidateQuery(vector.SetVideo, make([]float32, 1024)))
	assert.Error(t, vector.ValidateQuery(vector.SetTalkMeta, make([]float32, 1024)))
	assert.Error(t, vector.ValidateQuery("ds_bogus_v1", make([]float32, 768)))
}
