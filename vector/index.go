package vector

import (
	"context"
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/talklens/talklens/store"
)

// Match is a single k-NN hit. Distance is cosine distance; smaller is
// closer.
type Match struct {
	ID       string
	TalkID   string
	Distance float64
}

// Index answers k-NN probes against one descriptor set. Candidates, when
// non-nil, restricts matches to descriptors owned by the given talk IDs;
// a non-nil empty set matches nothing.
type Index interface {
	Set() string
	KNN(ctx context.Context, query []float32, k int, candidates map[string]struct{}) ([]Match, error)
}

// Memory is an exhaustive-scan index over a snapshot of one descriptor
// set. Built once per session from the driver and reused across probes.
type Memory struct {
	set     string
	entries []*store.Embedding
}

// NewMemory loads the full descriptor set from the driver. Entries arrive
// ordered by ascending descriptor ID, which fixes the tie-break order for
// equal distances.
func NewMemory(ctx context.Context, driver store.Driver, set string) (*Memory, error) {
	if _, ok := Spaces[set]; !ok {
		return nil, errors.Wrapf(ErrIndexNotFound, "set %q", set)
	}
	entries, err := driver.ListEmbeddings(ctx, set)
	if err != nil {
		return nil, errors.Wrapf(err, "load embeddings for %q", set)
	}
	return &Memory{set: set, entries: entries}, nil
}

func (m *Memory) Set() string { return m.set }

func (m *Memory) KNN(ctx context.Context, query []float32, k int, candidates map[string]struct{}) ([]Match, error) {
	if err := ValidateQuery(m.set, query); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, errors.Errorf("vector: k must be positive, got %d", k)
	}
	if candidates != nil && len(candidates) == 0 {
		return []Match{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	matches := make([]Match, 0, k)
	for _, e := range m.entries {
		if candidates != nil {
			if _, ok := candidates[e.TalkID]; !ok {
				continue
			}
		}
		matches = append(matches, Match{
			ID:       e.ID,
			TalkID:   e.TalkID,
			Distance: cosineDistance(query, e.Vector),
		})
	}

	// Entries were scanned in ascending ID order, so a stable sort keeps
	// equal-distance results deterministic.
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
