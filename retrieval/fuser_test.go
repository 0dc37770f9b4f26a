package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuseNormalizesPerSource(t *testing.T) {
	sources := map[string][]Candidate{
		"a": {
			{ID: "t1", TalkID: "t1", Score: 0.9},
			{ID: "t2", TalkID: "t2", Score: 0.5},
			{ID: "t3", TalkID: "t3", Score: 0.1},
		},
	}
	out := Fuse(sources, nil, 10, 0)
	require.Len(t, out, 3)
	assert.Equal(t, "t1", out[0].TalkID)
	assert.InDelta(t, 1.0, out[0].Score, 1e-9)
	assert.Equal(t, "t2", out[1].TalkID)
	assert.InDelta(t, 0.5, out[1].Score, 1e-9)
	assert.Equal(t, "t3", out[2].TalkID)
	assert.InDelta(t, 0.0, out[2].Score, 1e-9)
}

func TestFuseMaxMergeAcrossSources(t *testing.T) {
	sources := map[string][]Candidate{
		"a": {
			{ID: "t1", TalkID: "t1", Score: 0.9},
			{ID: "t2", TalkID: "t2", Score: 0.1},
		},
		"b": {
			{ID: "t2", TalkID: "t2", Score: 0.8},
			{ID: "t3", TalkID: "t3", Score: 0.2},
		},
	}
	out := Fuse(sources, nil, 10, 0)
	require.Len(t, out, 3)

	byID := map[string]Ranked{}
	for _, r := range out {
		byID[r.TalkID] = r
	}
	// t2 is the weakest hit of source a (0.0 normalized) but the
	// strongest of source b (1.0 normalized); max wins.
	assert.InDelta(t, 1.0, byID["t2"].Score, 1e-9)
	assert.Equal(t, []string{"a", "b"}, byID["t2"].Sources)
	assert.Equal(t, []string{"a"}, byID["t1"].Sources)
	assert.Equal(t, []string{"b"}, byID["t3"].Sources)
}

func TestFuseDedupsWithinSource(t *testing.T) {
	// Two chunks of the same talk; the list arrives nearest-first, so the
	// first occurrence is the talk's best hit.
	sources := map[string][]Candidate{
		"chunks": {
			{ID: "t1#00001", TalkID: "t1", Score: 0.9},
			{ID: "t1#00007", TalkID: "t1", Score: 0.4},
			{ID: "t2#00002", TalkID: "t2", Score: 0.2},
		},
	}
	out := Fuse(sources, nil, 10, 0)
	require.Len(t, out, 2)
	assert.Equal(t, "t1", out[0].TalkID)
	assert.InDelta(t, 1.0, out[0].Score, 1e-9)
	assert.Equal(t, []string{"chunks"}, out[0].Sources)
}

func TestFuseDegenerateSourceScoresOne(t *testing.T) {
	sources := map[string][]Candidate{
		"a": {
			{ID: "t1", TalkID: "t1", Score: 0.42},
			{ID: "t2", TalkID: "t2", Score: 0.42},
		},
	}
	out := Fuse(sources, nil, 10, 0)
	require.Len(t, out, 2)
	for _, r := range out {
		assert.InDelta(t, 1.0, r.Score, 1e-9)
	}
}

func TestFuseTieBreaksByViewsThenID(t *testing.T) {
	sources := map[string][]Candidate{
		"a": {
			{ID: "t1", TalkID: "t1", Score: 0.5},
			{ID: "t2", TalkID: "t2", Score: 0.5},
			{ID: "t3", TalkID: "t3", Score: 0.5},
		},
	}
	views := map[string]int64{"t1": 100, "t2": 900, "t3": 100}
	out := Fuse(sources, views, 10, 0)
	require.Len(t, out, 3)
	assert.Equal(t, "t2", out[0].TalkID)
	assert.Equal(t, "t1", out[1].TalkID)
	assert.Equal(t, "t3", out[2].TalkID)
}

func TestFuseMinScoreAndTruncation(t *testing.T) {
	sources := map[string][]Candidate{
		"a": {
			{ID: "t1", TalkID: "t1", Score: 0.9},
			{ID: "t2", TalkID: "t2", Score: 0.6},
			{ID: "t3", TalkID: "t3", Score: 0.3},
			{ID: "t4", TalkID: "t4", Score: 0.0},
		},
	}
	out := Fuse(sources, nil, 2, 0.3)
	require.Len(t, out, 2)
	assert.Equal(t, "t1", out[0].TalkID)
	assert.Equal(t, "t2", out[1].TalkID)

	// Without truncation the min-score cut alone drops the tail.
	out = Fuse(sources, nil, 10, 0.3)
	require.Len(t, out, 3)
}

func TestFuseDeterministic(t *testing.T) {
	sources := map[string][]Candidate{
		"a": {
			{ID: "t1", TalkID: "t1", Score: 0.7},
			{ID: "t2", TalkID: "t2", Score: 0.3},
		},
		"b": {
			{ID: "t3", TalkID: "t3", Score: 0.6},
			{ID: "t1", TalkID: "t1", Score: 0.2},
		},
	}
	views := map[string]int64{"t1": 5, "t2": 10, "t3": 15}
	first := Fuse(sources, views, 10, 0)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Fuse(sources, views, 10, 0))
	}
}

func TestFuseEmptySources(t *testing.T) {
	assert.Empty(t, Fuse(map[string][]Candidate{}, nil, 10, 0))
	assert.Empty(t, Fuse(map[string][]Candidate{"a": {}}, nil, 10, 0))
}
