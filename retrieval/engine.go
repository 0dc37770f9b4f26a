package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/talklens/talklens/embed"
	"github.com/talklens/talklens/store"
	"github.com/talklens/talklens/vector"
)

// ScoredTalk is one ranked result with its hydrated entity.
type ScoredTalk struct {
	Talk    *store.Talk
	Score   float64
	Sources []string
}

// Engine is the retrieval facade the tool layer binds against. It owns
// planning, execution and fusion; aggregations live beside it as free
// functions over the store.
type Engine struct {
	store    *store.Store
	executor *Executor
	logger   *slog.Logger
}

// NewEngine wires the full pipeline.
func NewEngine(st *store.Store, indexes IndexProvider, embedText, embedVideo embed.Service, stageTimeout time.Duration, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:    st,
		executor: NewExecutor(st, indexes, embedText, embedVideo, stageTimeout, logger),
		logger:   logger,
	}
}

// Store exposes the underlying store for detail lookups.
func (e *Engine) Store() *store.Store { return e.store }

// SearchByFilters resolves a pure metadata query. Results come back in
// the order the filter's sort key dictates.
func (e *Engine) SearchByFilters(ctx context.Context, find *store.FindTalk) ([]*store.Talk, error) {
	if find == nil {
		return nil, E(KindValidation, "nil filter")
	}
	if find.OrderBy != "" && !find.OrderBy.Valid() {
		return nil, E(KindValidation, "unknown sort field %q", find.OrderBy)
	}
	return e.store.ListTalks(ctx, find)
}

// Search plans and runs a hybrid request, fusing the per-source
// candidates into one ranked, de-duplicated talk list.
func (e *Engine) Search(ctx context.Context, req *Request) ([]ScoredTalk, error) {
	plan, err := BuildPlan(req)
	if err != nil {
		return nil, err
	}
	result, err := e.executor.Execute(ctx, plan, req)
	if err != nil {
		return nil, err
	}

	// Plans without a probe stage answer directly from the scope.
	if len(result.Sources) == 0 {
		return e.hydrateScope(ctx, req, result.Scope)
	}

	// A filter stage behind the probe narrows the scope below the
	// probe's candidates. Trim before fusing so dropped talks do not
	// skew the normalization.
	if result.Scope != nil {
		keep := make(map[string]struct{}, len(result.Scope))
		for _, id := range result.Scope {
			keep[id] = struct{}{}
		}
		for set, candidates := range result.Sources {
			kept := candidates[:0]
			for _, c := range candidates {
				if _, ok := keep[c.TalkID]; ok {
					kept = append(kept, c)
				}
			}
			result.Sources[set] = kept
		}
	}

	ids := map[string]struct{}{}
	for _, candidates := range result.Sources {
		for _, c := range candidates {
			ids[c.TalkID] = struct{}{}
		}
	}
	talks, err := e.talksByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	views := make(map[string]int64, len(talks))
	for id, t := range talks {
		views[id] = t.Views
	}

	ranked := Fuse(result.Sources, views, req.K, req.MinScore)
	out := make([]ScoredTalk, 0, len(ranked))
	for _, r := range ranked {
		talk, ok := talks[r.TalkID]
		if !ok {
			// Index knows a talk the store does not; snapshot skew.
			e.logger.WarnContext(ctx, "dropping unresolvable talk", "talk_id", r.TalkID)
			continue
		}
		out = append(out, ScoredTalk{Talk: talk, Score: r.Score, Sources: r.Sources})
	}
	return out, nil
}

// SimilarRequest describes a similarity search anchored on a stored talk.
type SimilarRequest struct {
	// TalkID names the reference talk. Its stored vector in Sets[0]
	// anchors the probe; the reference never appears in the output.
	TalkID string
	// Sets are the descriptor sets to probe. They must share one
	// dimensionality; empty defaults to talk metadata.
	Sets []string
	// Filter optionally bounds the candidates before probing.
	Filter             *store.FindTalk
	K                  int
	MinScore           float64
	ExcludeSameSpeaker bool
}

// FindSimilar ranks talks near a reference talk using the reference's own
// stored vector. Optionally the reference speakers' other talks are
// excluded too.
func (e *Engine) FindSimilar(ctx context.Context, req *SimilarRequest) ([]ScoredTalk, error) {
	if req == nil || req.TalkID == "" {
		return nil, E(KindValidation, "reference talk id required")
	}
	sets := req.Sets
	if len(sets) == 0 {
		sets = []string{vector.SetTalkMeta}
	}
	for _, set := range sets {
		if _, ok := vector.Spaces[set]; !ok {
			return nil, E(KindIndexNotFound, "unknown descriptor set %q", set)
		}
	}

	ref, err := e.referenceVector(ctx, req.TalkID, sets[0])
	if err != nil {
		return nil, err
	}

	exclude := []string{req.TalkID}
	if req.ExcludeSameSpeaker {
		// talk -> speakers -> their talks, two hops over the bipartite
		// speaker edge.
		reached, err := e.store.TraverseEdges(ctx, []string{req.TalkID}, store.EdgeHasSpeaker, store.DirectionOut, 2)
		if err != nil {
			return nil, err
		}
		for _, targets := range reached {
			exclude = append(exclude, targets...)
		}
	}

	search := &Request{
		Mode:           ModeSemanticOnly,
		QueryVector:    ref,
		Sets:           sets,
		K:              req.K,
		MinScore:       req.MinScore,
		ExcludeTalkIDs: exclude,
	}
	if req.Filter != nil {
		search.Mode = ModeFilterThenSemantic
		search.Filter = req.Filter
	}
	return e.Search(ctx, search)
}

// referenceVector loads the stored embedding of one talk in one set.
func (e *Engine) referenceVector(ctx context.Context, talkID, set string) ([]float32, error) {
	switch set {
	case vector.SetTalkMeta:
		metas, err := e.store.ListTalkMetas(ctx, &store.FindTalkMeta{TalkIDs: []string{talkID}})
		if err != nil {
			return nil, err
		}
		if len(metas) > 0 && len(metas[0].Embedding) > 0 {
			return metas[0].Embedding, nil
		}
	case vector.SetVideo:
		videos, err := e.store.ListVideos(ctx, &store.FindVideo{TalkIDs: []string{talkID}})
		if err != nil {
			return nil, err
		}
		if len(videos) > 0 && len(videos[0].Embedding) > 0 {
			return videos[0].Embedding, nil
		}
	case vector.SetSpeakerBio:
		bios, err := e.store.ListSpeakerBios(ctx, &store.FindSpeakerBio{TalkIDs: []string{talkID}})
		if err != nil {
			return nil, err
		}
		if len(bios) > 0 && len(bios[0].Embedding) > 0 {
			return bios[0].Embedding, nil
		}
	case vector.SetTranscriptChunks:
		chunks, err := e.store.ListTranscriptChunks(ctx, &store.FindTranscriptChunk{TalkIDs: []string{talkID}, Limit: 1})
		if err != nil {
			return nil, err
		}
		if len(chunks) > 0 && len(chunks[0].Embedding) > 0 {
			return chunks[0].Embedding, nil
		}
	}
	return nil, E(KindNotFound, "talk %q has no embedding in %q", talkID, set)
}

// hydrateScope turns a scope id list into unscored results, preserving
// the scope order and capping at k.
func (e *Engine) hydrateScope(ctx context.Context, req *Request, scope []string) ([]ScoredTalk, error) {
	if len(scope) == 0 {
		return []ScoredTalk{}, nil
	}
	if req.K > 0 && len(scope) > req.K {
		scope = scope[:req.K]
	}
	ids := make(map[string]struct{}, len(scope))
	for _, id := range scope {
		ids[id] = struct{}{}
	}
	talks, err := e.talksByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]ScoredTalk, 0, len(scope))
	for _, id := range scope {
		if talk, ok := talks[id]; ok {
			out = append(out, ScoredTalk{Talk: talk})
		}
	}
	return out, nil
}

func (e *Engine) talksByID(ctx context.Context, ids map[string]struct{}) (map[string]*store.Talk, error) {
	if len(ids) == 0 {
		return map[string]*store.Talk{}, nil
	}
	list := make([]string, 0, len(ids))
	for id := range ids {
		list = append(list, id)
	}
	talks, err := e.store.ListTalks(ctx, &store.FindTalk{IDs: list})
	if err != nil {
		return nil, fmt.Errorf("hydrate talks: %w", err)
	}
	byID := make(map[string]*store.Talk, len(talks))
	for _, t := range talks {
		byID[t.ID] = t
	}
	return byID, nil
}
