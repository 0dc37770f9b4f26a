package retrieval

import "sort"

// Ranked is one fused result. Sources lists the descriptor sets the talk
// was matched in, sorted by name.
type Ranked struct {
	TalkID  string
	Score   float64
	Sources []string
}

// Fuse merges per-source candidate sets into one ranking.
//
// Scores are min-max normalized within each source onto [0,1] first; raw
// distances from different embedding spaces are never comparable. A talk
// seen by several sources keeps the maximum of its normalized scores: a
// strong match in any one modality should surface the talk, and averaging
// would punish single-source matches. Ties break by descending view count
// then ascending talk id, so the ordering is stable across runs. The
// result is truncated to k after the optional minScore cut.
func Fuse(sources map[string][]Candidate, views map[string]int64, k int, minScore float64) []Ranked {
	type fused struct {
		score   float64
		sources []string
	}
	merged := map[string]*fused{}

	// Iterate sources in name order. The outcome is order-independent
	// because max is commutative, but the Sources lists stay sorted.
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		candidates := sources[name]
		normalized := normalize(candidates)
		seen := map[string]struct{}{}
		for i, c := range candidates {
			// A source can yield several descriptors of one talk
			// (transcript chunks); keep only its best hit.
			if _, dup := seen[c.TalkID]; dup {
				continue
			}
			seen[c.TalkID] = struct{}{}
			f, ok := merged[c.TalkID]
			if !ok {
				f = &fused{score: normalized[i]}
				merged[c.TalkID] = f
			} else if normalized[i] > f.score {
				f.score = normalized[i]
			}
			f.sources = append(f.sources, name)
		}
	}

	out := make([]Ranked, 0, len(merged))
	for id, f := range merged {
		if f.score < minScore {
			continue
		}
		out = append(out, Ranked{TalkID: id, Score: f.score, Sources: f.sources})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		vi, vj := views[out[i].TalkID], views[out[j].TalkID]
		if vi != vj {
			return vi > vj
		}
		return out[i].TalkID < out[j].TalkID
	})

	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}

// normalize min-max scales one source's scores onto [0,1]. Candidates
// within a source share a scale so the mapping is order preserving. A
// degenerate source where every score is equal maps to 1.0: its hits are
// indistinguishable from each other, not worthless.
func normalize(candidates []Candidate) []float64 {
	scores := make([]float64, len(candidates))
	if len(candidates) == 0 {
		return scores
	}
	min, max := candidates[0].Score, candidates[0].Score
	for _, c := range candidates[1:] {
		if c.Score < min {
			min = c.Score
		}
		if c.Score > max {
			max = c.Score
		}
	}
	for i, c := range candidates {
		if max == min {
			scores[i] = 1.0
			continue
		}
		scores[i] = (c.Score - min) / (max - min)
	}
	return scores
}
