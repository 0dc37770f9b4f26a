package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/talklens/talklens/embed"
	"github.com/talklens/talklens/store"
	"github.com/talklens/talklens/vector"
)

// defaultStageTimeout bounds every store fetch, traversal and probe run.
const defaultStageTimeout = 10 * time.Second

// IndexProvider hands out the index handle for a descriptor set. The
// session resource cache implements it.
type IndexProvider interface {
	Index(ctx context.Context, set string) (vector.Index, error)
}

// Candidate is one scored hit from a single source. Score is the
// source-local similarity, not yet normalized for fusion.
type Candidate struct {
	ID     string
	TalkID string
	Score  float64
}

// ExecResult carries the per-source candidate sets a plan produced.
// Scope, when non-nil, is the final restricted talk-id set; for
// metadata-only plans it is the whole answer.
type ExecResult struct {
	Scope     []string
	Sources   map[string][]Candidate
	Traversal map[string][]string
}

// Executor runs plans stage by stage. Stages execute sequentially; each
// stage's output talk-id set is the next stage's candidate scope.
// A stage failure aborts the run with no partial results.
type Executor struct {
	store        *store.Store
	indexes      IndexProvider
	embedText    embed.Service
	embedVideo   embed.Service
	stageTimeout time.Duration
	logger       *slog.Logger
}

// NewExecutor wires an executor. embedVideo may be nil when the video
// space is not served; probing it then fails with a validation error.
func NewExecutor(st *store.Store, indexes IndexProvider, embedText, embedVideo embed.Service, stageTimeout time.Duration, logger *slog.Logger) *Executor {
	if stageTimeout <= 0 {
		stageTimeout = defaultStageTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		store:        st,
		indexes:      indexes,
		embedText:    embedText,
		embedVideo:   embedVideo,
		stageTimeout: stageTimeout,
		logger:       logger,
	}
}

// Execute runs the plan. Cancellation is checked before each stage; a
// single store or index call runs to completion or stage timeout.
func (e *Executor) Execute(ctx context.Context, plan *Plan, req *Request) (*ExecResult, error) {
	result := &ExecResult{
		Scope:   req.ScopeTalkIDs,
		Sources: map[string][]Candidate{},
	}

	for _, stage := range plan.Stages {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("cancelled before stage %s: %w", stage.Name, err)
		}

		stageCtx, cancel := context.WithTimeout(ctx, e.stageTimeout)
		var err error
		start := time.Now()
		switch stage.Kind {
		case StageFilter:
			err = e.runFilter(stageCtx, req, result)
		case StageTraverse:
			err = e.runTraverse(stageCtx, req, result)
		case StageProbe:
			err = e.runProbe(stageCtx, req, stage.Sets, result)
		default:
			err = E(KindInternal, "unknown stage kind %q", stage.Kind)
		}
		cancel()
		if err != nil {
			e.logger.ErrorContext(ctx, "stage failed",
				"stage", stage.Name, "mode", plan.Mode, "elapsed", time.Since(start), "error", err)
			return nil, fmt.Errorf("stage %s: %w", stage.Name, err)
		}
		e.logger.DebugContext(ctx, "stage done", "stage", stage.Name, "elapsed", time.Since(start))
	}

	return result, nil
}

// runFilter resolves the metadata predicates, intersected with the scope
// accumulated so far.
func (e *Executor) runFilter(ctx context.Context, req *Request, result *ExecResult) error {
	find := *req.Filter
	if result.Scope != nil {
		// A previous stage already bounded the candidates.
		find.IDs = result.Scope
		if len(find.IDs) == 0 {
			result.Scope = []string{}
			return nil
		}
	}
	talks, err := e.store.ListTalks(ctx, &find)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(talks))
	for _, t := range talks {
		ids = append(ids, t.ID)
	}
	result.Scope = ids
	return nil
}

// runTraverse expands the current scope through the entity graph and
// replaces it with the union of reached talk ids.
func (e *Executor) runTraverse(ctx context.Context, req *Request, result *ExecResult) error {
	if result.Scope == nil {
		return E(KindValidation, "traversal needs seed ids from a filter or explicit scope")
	}
	if len(result.Scope) == 0 {
		return nil
	}
	spec := req.Traverse
	reached, err := e.store.TraverseEdges(ctx, result.Scope, spec.EdgeType, spec.Direction, spec.Hops)
	if err != nil {
		return err
	}
	result.Traversal = reached

	union := map[string]struct{}{}
	for _, targets := range reached {
		for _, id := range targets {
			union[id] = struct{}{}
		}
	}
	ids := make([]string, 0, len(union))
	for id := range union {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	result.Scope = ids
	return nil
}

// runProbe executes the k-NN probes for every requested set in one
// stage. Set probes fan out concurrently; any probe failure fails the
// whole stage.
func (e *Executor) runProbe(ctx context.Context, req *Request, sets []string, result *ExecResult) error {
	var scopeSet map[string]struct{}
	if result.Scope != nil {
		scopeSet = make(map[string]struct{}, len(result.Scope))
		for _, id := range result.Scope {
			scopeSet[id] = struct{}{}
		}
	}

	exclude := make(map[string]struct{}, len(req.ExcludeTalkIDs))
	for _, id := range req.ExcludeTalkIDs {
		exclude[id] = struct{}{}
	}

	// The three text sets share one query embedding; compute it once
	// instead of once per probe.
	queries, err := e.queryVectors(ctx, req, sets)
	if err != nil {
		return err
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, set := range sets {
		set := set
		g.Go(func() error {
			query := queries[set]
			idx, err := e.indexes.Index(gctx, set)
			if err != nil {
				return err
			}
			matches, err := idx.KNN(gctx, query, probeK(req, set), scopeSet)
			if err != nil {
				return err
			}
			candidates := make([]Candidate, 0, len(matches))
			for _, m := range matches {
				if _, skip := exclude[m.TalkID]; skip {
					continue
				}
				candidates = append(candidates, Candidate{
					ID:     m.ID,
					TalkID: m.TalkID,
					Score:  vector.Similarity(set, m.Distance),
				})
			}
			mu.Lock()
			result.Sources[set] = candidates
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// The probe's candidate talks are the scope any later stage consumes.
	union := map[string]struct{}{}
	for _, set := range sets {
		for _, c := range result.Sources[set] {
			union[c.TalkID] = struct{}{}
		}
	}
	ids := make([]string, 0, len(union))
	for id := range union {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	result.Scope = ids
	return nil
}

// probeK oversizes the probe so exclusions and talk-level dedup still
// leave k distinct talks. Chunk probes oversample more because several
// chunks of one talk can crowd the neighborhood.
func probeK(req *Request, set string) int {
	k := req.K + len(req.ExcludeTalkIDs)
	if set == vector.SetTranscriptChunks {
		k *= 3
	}
	return k
}

// queryVectors resolves the query vector for every probed set. A
// pre-supplied vector is used as-is; otherwise the query text is embedded
// once per embedding service (the text sets share one vector).
func (e *Executor) queryVectors(ctx context.Context, req *Request, sets []string) (map[string][]float32, error) {
	queries := make(map[string][]float32, len(sets))
	if req.QueryVector != nil {
		for _, set := range sets {
			queries[set] = req.QueryVector
		}
		return queries, nil
	}
	if req.Query == "" {
		return nil, E(KindValidation, "no query text for probe")
	}

	var textQuery, videoQuery []float32
	for _, set := range sets {
		if set == vector.SetVideo {
			if videoQuery == nil {
				if e.embedVideo == nil {
					return nil, E(KindValidation, "no embedding service for %q", set)
				}
				q, err := e.embedVideo.Embed(ctx, req.Query)
				if err != nil {
					return nil, fmt.Errorf("embed video query: %w", err)
				}
				videoQuery = q
			}
			queries[set] = videoQuery
			continue
		}
		if textQuery == nil {
			if e.embedText == nil {
				return nil, E(KindValidation, "no embedding service for %q", set)
			}
			q, err := e.embedText.Embed(ctx, req.Query)
			if err != nil {
				return nil, fmt.Errorf("embed query: %w", err)
			}
			textQuery = q
		}
		queries[set] = textQuery
	}
	return queries, nil
}
