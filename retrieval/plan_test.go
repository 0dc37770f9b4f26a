package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talklens/talklens/store"
	"github.com/talklens/talklens/vector"
)

func TestBuildPlanModeInference(t *testing.T) {
	filter := &store.FindTalk{}

	tests := []struct {
		name   string
		req    *Request
		mode   Mode
		stages []StageKind
	}{
		{
			name:   "filters only",
			req:    &Request{Filter: filter, K: 10},
			mode:   ModeMetadataOnly,
			stages: []StageKind{StageFilter},
		},
		{
			name:   "query only",
			req:    &Request{Query: "agents", K: 10},
			mode:   ModeSemanticOnly,
			stages: []StageKind{StageProbe},
		},
		{
			name:   "both defaults to filter first",
			req:    &Request{Filter: filter, Query: "agents", K: 10},
			mode:   ModeFilterThenSemantic,
			stages: []StageKind{StageFilter, StageProbe},
		},
		{
			name: "traversal",
			req: &Request{
				Filter:   filter,
				Query:    "agents",
				Traverse: &TraverseSpec{EdgeType: store.EdgeHasSpeaker, Direction: store.DirectionOut, Hops: 2},
				K:        10,
			},
			mode:   ModeMultiHop,
			stages: []StageKind{StageFilter, StageTraverse, StageProbe},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			plan, err := BuildPlan(tc.req)
			require.NoError(t, err)
			assert.Equal(t, tc.mode, plan.Mode)
			kinds := make([]StageKind, 0, len(plan.Stages))
			for _, s := range plan.Stages {
				kinds = append(kinds, s.Kind)
			}
			assert.Equal(t, tc.stages, kinds)
		})
	}
}

func TestBuildPlanExplicitSemanticThenFilter(t *testing.T) {
	plan, err := BuildPlan(&Request{
		Mode:   ModeSemanticThenFilter,
		Filter: &store.FindTalk{},
		Query:  "agents",
		K:      5,
	})
	require.NoError(t, err)
	require.Len(t, plan.Stages, 2)
	assert.Equal(t, StageProbe, plan.Stages[0].Kind)
	assert.Equal(t, StageFilter, plan.Stages[1].Kind)
}

func TestBuildPlanProbeDefaultsToTalkMeta(t *testing.T) {
	plan, err := BuildPlan(&Request{Query: "agents", K: 5})
	require.NoError(t, err)
	require.Len(t, plan.Stages, 1)
	assert.Equal(t, []string{vector.SetTalkMeta}, plan.Stages[0].Sets)
}

func TestBuildPlanRejectsOddSpeakerHopsBeforeProbe(t *testing.T) {
	_, err := BuildPlan(&Request{
		Query:    "agents",
		Traverse: &TraverseSpec{EdgeType: store.EdgeHasSpeaker, Direction: store.DirectionOut, Hops: 1},
		K:        5,
	})
	require.Error(t, err)
	assert.Equal(t, KindValidation, Classify(err))

	// Without a probe the person frontier is a legal answer.
	plan, err := BuildPlan(&Request{
		Filter:   &store.FindTalk{},
		Traverse: &TraverseSpec{EdgeType: store.EdgeHasSpeaker, Direction: store.DirectionOut, Hops: 1},
		K:        5,
	})
	require.NoError(t, err)
	require.Len(t, plan.Stages, 2)
	assert.Equal(t, StageTraverse, plan.Stages[1].Kind)
}

func TestBuildPlanRejectsOrCombinator(t *testing.T) {
	_, err := BuildPlan(&Request{Combinator: "or", Filter: &store.FindTalk{}, K: 5})
	require.Error(t, err)
	assert.Equal(t, KindUnsupportedPredicate, Classify(err))
}

func TestBuildPlanValidation(t *testing.T) {
	_, err := BuildPlan(nil)
	assert.Equal(t, KindValidation, Classify(err))

	_, err = BuildPlan(&Request{Filter: &store.FindTalk{}, K: 0})
	assert.Equal(t, KindValidation, Classify(err))

	_, err = BuildPlan(&Request{Query: "x", K: 5, Sets: []string{"ds_bogus_v1"}})
	assert.Equal(t, KindIndexNotFound, Classify(err))

	_, err = BuildPlan(&Request{K: 5})
	assert.Equal(t, KindValidation, Classify(err))

	_, err = BuildPlan(&Request{
		Query:    "x",
		Traverse: &TraverseSpec{EdgeType: store.EdgeHasSpeaker, Direction: store.DirectionOut, Hops: 0},
		K:        5,
	})
	assert.Equal(t, KindValidation, Classify(err))
}
