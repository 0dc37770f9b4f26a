package vector

import (
	"context"

	"github.com/pkg/errors"
)

// Searcher is an optional driver capability for pushing k-NN probes down
// to the database instead of scanning in process. The postgres driver
// implements it on top of pgvector.
type Searcher interface {
	SearchEmbeddings(ctx context.Context, set string, query []float32, k int, candidateTalkIDs []string) ([]Match, error)
}

// pushdown adapts a Searcher to the Index interface for one set.
type pushdown struct {
	set      string
	searcher Searcher
}

// NewPushdown wraps a driver-side searcher as an Index for the given set.
func NewPushdown(set string, searcher Searcher) (Index, error) {
	if _, ok := Spaces[set]; !ok {
		return nil, errors.Wrapf(ErrIndexNotFound, "set %q", set)
	}
	return &pushdown{set: set, searcher: searcher}, nil
}

func (p *pushdown) Set() string { return p.set }

func (p *pushdown) KNN(ctx context.Context, query []float32, k int, candidates map[string]struct{}) ([]Match, error) {
	if err := ValidateQuery(p.set, query); err != nil {
		return nil, err
	}
	if candidates != nil && len(candidates) == 0 {
		return []Match{}, nil
	}
	var ids []string
	if candidates != nil {
		ids = make([]string, 0, len(candidates))
		for id := range candidates {
			ids = append(ids, id)
		}
	}
	return p.searcher.SearchEmbeddings(ctx, p.set, query, k, ids)
}
