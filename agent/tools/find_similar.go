package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/talklens/talklens/retrieval"
	"github.com/talklens/talklens/store"
	"github.com/talklens/talklens/vector"
)

// FindSimilarTool ranks talks near a reference talk or a free-form
// reference query.
type FindSimilarTool struct {
	rt *Runtime
}

func NewFindSimilarTool(rt *Runtime) *FindSimilarTool {
	return &FindSimilarTool{rt: rt}
}

func (t *FindSimilarTool) Name() string { return "find_similar_content" }

func (t *FindSimilarTool) Description() string {
	return "Find talks similar to a reference talk (by id or exact title) or to a reference query, by content, speaker profile, topic, or all of them."
}

type findSimilarInput struct {
	ReferenceTalkTitle string   `json:"reference_talk_title,omitempty"`
	ReferenceTalkID    string   `json:"reference_talk_id,omitempty"`
	ReferenceQuery     string   `json:"reference_query,omitempty"`
	SimilarityType     string   `json:"similarity_type,omitempty"`
	DateFrom           string   `json:"date_from,omitempty"`
	DateTo             string   `json:"date_to,omitempty"`
	Category           string   `json:"category,omitempty"`
	EventName          string   `json:"event_name,omitempty"`
	ExcludeSameSpeaker bool     `json:"exclude_same_speaker,omitempty"`
	MinSimilarity      *float64 `json:"min_similarity,omitempty"`
	Limit              int      `json:"limit,omitempty"`
}

func (t *FindSimilarTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"reference_talk_title": map[string]interface{}{"type": "string", "description": "Reference talk by exact title"},
			"reference_talk_id":    map[string]interface{}{"type": "string", "description": "Reference talk by id"},
			"reference_query":      map[string]interface{}{"type": "string", "description": "Free-form reference text when no reference talk is given"},
			"similarity_type":      map[string]interface{}{"type": "string", "enum": []string{"content", "speaker", "topic", "all"}, "default": "content", "description": "Similarity axis: 'content' (abstract/keywords), 'speaker' (bios), 'topic' (transcripts), 'all'"},
			"date_from":            map[string]interface{}{"type": "string", "description": "Only talks published from this date (YYYY, YYYY-MM or YYYY-MM-DD)"},
			"date_to":              map[string]interface{}{"type": "string", "description": "Only talks published up to this date (YYYY, YYYY-MM or YYYY-MM-DD)"},
			"category":             map[string]interface{}{"type": "string", "description": "Only talks in this primary category"},
			"event_name":           map[string]interface{}{"type": "string", "description": "Only talks from this event"},
			"exclude_same_speaker": map[string]interface{}{"type": "boolean", "default": false, "description": "Drop talks by the reference talk's speakers"},
			"min_similarity":       map[string]interface{}{"type": "number", "minimum": 0, "maximum": 1, "description": "Minimum similarity score"},
			"limit":                map[string]interface{}{"type": "integer", "minimum": 1, "maximum": maxK, "default": defaultK, "description": "Maximum number of results"},
		},
	}
}

// setsForSimilarityType maps the exposed similarity axes onto descriptor
// sets. The first set anchors reference-talk searches.
func setsForSimilarityType(similarityType string) ([]string, error) {
	switch similarityType {
	case "", "content":
		return []string{vector.SetTalkMeta}, nil
	case "speaker":
		return []string{vector.SetSpeakerBio}, nil
	case "topic":
		return []string{vector.SetTranscriptChunks}, nil
	case "all":
		return []string{vector.SetTalkMeta, vector.SetSpeakerBio, vector.SetTranscriptChunks}, nil
	default:
		return nil, retrieval.E(retrieval.KindValidation, "similarity_type must be one of content, speaker, topic, all, got %q", similarityType)
	}
}

func (t *FindSimilarTool) Run(ctx context.Context, inputJSON string) (string, error) {
	return t.rt.run(ctx, t.Name(), func(ctx context.Context, eng *retrieval.Engine) (any, error) {
		var in findSimilarInput
		if err := decode(inputJSON, &in); err != nil {
			return nil, err
		}

		hasRef := in.ReferenceTalkID != "" || in.ReferenceTalkTitle != ""
		hasQuery := strings.TrimSpace(in.ReferenceQuery) != ""
		if !hasRef && !hasQuery {
			return nil, retrieval.E(retrieval.KindValidation, "provide reference_talk_id, reference_talk_title or reference_query")
		}
		if in.ReferenceTalkID != "" && in.ReferenceTalkTitle != "" {
			return nil, retrieval.E(retrieval.KindValidation, "provide reference_talk_id or reference_talk_title, not both")
		}
		if in.MinSimilarity != nil && (*in.MinSimilarity < 0 || *in.MinSimilarity > 1) {
			return nil, retrieval.E(retrieval.KindValidation, "min_similarity must be in [0,1], got %g", *in.MinSimilarity)
		}

		sets, err := setsForSimilarityType(in.SimilarityType)
		if err != nil {
			return nil, err
		}
		filter, filterParts, err := similarFilter(&in)
		if err != nil {
			return nil, err
		}
		k := clampK(in.Limit)
		minScore := 0.0
		if in.MinSimilarity != nil {
			minScore = *in.MinSimilarity
		}

		var (
			results   []retrieval.ScoredTalk
			reference string
		)
		if hasRef {
			talk, err := t.resolveReference(ctx, eng, &in)
			if err != nil {
				return nil, err
			}
			reference = fmt.Sprintf("talk %q", talk.Title)
			results, err = eng.FindSimilar(ctx, &retrieval.SimilarRequest{
				TalkID:             talk.ID,
				Sets:               sets,
				Filter:             filter,
				K:                  k,
				MinScore:           minScore,
				ExcludeSameSpeaker: in.ExcludeSameSpeaker,
			})
			if err != nil {
				return nil, err
			}
		} else {
			reference = fmt.Sprintf("query %q", in.ReferenceQuery)
			req := &retrieval.Request{
				Query:    in.ReferenceQuery,
				Sets:     sets,
				K:        k,
				MinScore: minScore,
			}
			if filter != nil {
				req.Filter = filter
				req.Mode = retrieval.ModeFilterThenSemantic
			}
			results, err = eng.Search(ctx, req)
			if err != nil {
				return nil, err
			}
		}

		parts := []string{fmt.Sprintf("similar to %s over %s", reference, strings.Join(sets, ", "))}
		parts = append(parts, filterParts...)
		if in.ExcludeSameSpeaker {
			parts = append(parts, "excluding same speaker")
		}
		if in.MinSimilarity != nil {
			parts = append(parts, fmt.Sprintf("min similarity %g", *in.MinSimilarity))
		}
		return map[string]interface{}{
			"similarTalks":    toScoredViews(results),
			"totalFound":      len(results),
			"analysisSummary": strings.Join(parts, ", "),
		}, nil
	})
}

func (t *FindSimilarTool) resolveReference(ctx context.Context, eng *retrieval.Engine, in *findSimilarInput) (*store.Talk, error) {
	st := eng.Store()
	var (
		talk *store.Talk
		err  error
		ref  string
	)
	if in.ReferenceTalkID != "" {
		ref = in.ReferenceTalkID
		talk, err = st.GetTalk(ctx, in.ReferenceTalkID)
	} else {
		ref = in.ReferenceTalkTitle
		talk, err = st.GetTalkByTitle(ctx, in.ReferenceTalkTitle)
	}
	if err != nil {
		return nil, err
	}
	if talk == nil {
		return nil, retrieval.E(retrieval.KindNotFound, "reference talk %q not found", ref)
	}
	return talk, nil
}

func similarFilter(in *findSimilarInput) (*store.FindTalk, []string, error) {
	find := &store.FindTalk{}
	var parts []string

	if in.DateFrom != "" {
		from, err := parseDate(in.DateFrom, false)
		if err != nil {
			return nil, nil, err
		}
		find.PublishedAfter = &from
		parts = append(parts, "from "+in.DateFrom)
	}
	if in.DateTo != "" {
		to, err := parseDate(in.DateTo, true)
		if err != nil {
			return nil, nil, err
		}
		find.PublishedBefore = &to
		parts = append(parts, "until "+in.DateTo)
	}
	if in.Category != "" {
		find.CategoryPrimary = &in.Category
		parts = append(parts, "category "+in.Category)
	}
	if in.EventName != "" {
		find.EventName = &in.EventName
		parts = append(parts, "event "+in.EventName)
	}

	if len(parts) == 0 {
		return nil, nil, nil
	}
	return find, parts, nil
}
