package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/talklens/talklens/retrieval"
	"github.com/talklens/talklens/store"
	"github.com/talklens/talklens/vector"
)

// SearchSemanticTool answers natural-language queries over the text
// descriptor sets, optionally pre-filtered by metadata.
type SearchSemanticTool struct {
	rt *Runtime
}

func NewSearchSemanticTool(rt *Runtime) *SearchSemanticTool {
	return &SearchSemanticTool{rt: rt}
}

func (t *SearchSemanticTool) Name() string { return "search_talks_semantically" }

func (t *SearchSemanticTool) Description() string {
	return "Semantic search over talk transcripts, abstracts/keywords and speaker bios. Accepts a natural language query, an optional content type and optional metadata filters; results are ranked by similarity."
}

type searchSemanticInput struct {
	Query          string   `json:"query"`
	SearchType     string   `json:"search_type,omitempty"`
	DateFrom       string   `json:"date_from,omitempty"`
	DateTo         string   `json:"date_to,omitempty"`
	Category       string   `json:"category,omitempty"`
	EventName      string   `json:"event_name,omitempty"`
	SpeakerName    string   `json:"speaker_name,omitempty"`
	KNeighbors     int      `json:"k_neighbors,omitempty"`
	ScoreThreshold *float64 `json:"score_threshold,omitempty"`
}

func (t *SearchSemanticTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query":           map[string]interface{}{"type": "string", "description": "Natural language search query, e.g. 'AI agents with memory' or 'MLOps deployment strategies'"},
			"search_type":     map[string]interface{}{"type": "string", "enum": []string{"transcript", "meta", "bio", "all"}, "default": "all", "description": "Which content to search: 'transcript' (video transcripts), 'meta' (abstracts/keywords), 'bio' (speaker bios), 'all' (every text type)"},
			"date_from":       map[string]interface{}{"type": "string", "description": "Only talks published from this date (YYYY, YYYY-MM or YYYY-MM-DD)"},
			"date_to":         map[string]interface{}{"type": "string", "description": "Only talks published up to this date (YYYY, YYYY-MM or YYYY-MM-DD)"},
			"category":        map[string]interface{}{"type": "string", "description": "Only talks in this primary category"},
			"event_name":      map[string]interface{}{"type": "string", "description": "Only talks from this event"},
			"speaker_name":    map[string]interface{}{"type": "string", "description": "Only talks by this speaker (exact name match)"},
			"k_neighbors":     map[string]interface{}{"type": "integer", "minimum": 1, "maximum": maxK, "default": defaultK, "description": "Number of most similar results to return"},
			"score_threshold": map[string]interface{}{"type": "number", "minimum": 0, "maximum": 1, "description": "Minimum similarity score; results below it are dropped"},
		},
		"required": []string{"query"},
	}
}

// setsForSearchType maps the exposed content types onto descriptor sets.
func setsForSearchType(searchType string) ([]string, error) {
	switch searchType {
	case "", "all":
		return []string{vector.SetTranscriptChunks, vector.SetTalkMeta, vector.SetSpeakerBio}, nil
	case "transcript":
		return []string{vector.SetTranscriptChunks}, nil
	case "meta":
		return []string{vector.SetTalkMeta}, nil
	case "bio":
		return []string{vector.SetSpeakerBio}, nil
	default:
		return nil, retrieval.E(retrieval.KindValidation, "search_type must be one of transcript, meta, bio, all, got %q", searchType)
	}
}

func (t *SearchSemanticTool) Run(ctx context.Context, inputJSON string) (string, error) {
	return t.rt.run(ctx, t.Name(), func(ctx context.Context, eng *retrieval.Engine) (any, error) {
		var in searchSemanticInput
		if err := decode(inputJSON, &in); err != nil {
			return nil, err
		}
		if strings.TrimSpace(in.Query) == "" {
			return nil, retrieval.E(retrieval.KindValidation, "query is required")
		}
		sets, err := setsForSearchType(in.SearchType)
		if err != nil {
			return nil, err
		}
		if in.ScoreThreshold != nil && (*in.ScoreThreshold < 0 || *in.ScoreThreshold > 1) {
			return nil, retrieval.E(retrieval.KindValidation, "score_threshold must be in [0,1], got %g", *in.ScoreThreshold)
		}

		req := &retrieval.Request{
			Query: in.Query,
			Sets:  sets,
			K:     clampK(in.KNeighbors),
		}
		if in.ScoreThreshold != nil {
			req.MinScore = *in.ScoreThreshold
		}

		filter, filterParts, err := semanticFilter(&in)
		if err != nil {
			return nil, err
		}
		if filter != nil {
			req.Filter = filter
			req.Mode = retrieval.ModeFilterThenSemantic
		}

		results, err := eng.Search(ctx, req)
		if err != nil {
			return nil, err
		}

		parts := []string{fmt.Sprintf("query %q over %s", in.Query, strings.Join(sets, ", "))}
		parts = append(parts, filterParts...)
		if in.ScoreThreshold != nil {
			parts = append(parts, fmt.Sprintf("min similarity %g", *in.ScoreThreshold))
		}
		return map[string]interface{}{
			"talks":         toScoredViews(results),
			"totalFound":    len(results),
			"searchSummary": strings.Join(parts, ", "),
		}, nil
	})
}

// semanticFilter builds the optional metadata pre-filter. A nil return
// means the probe runs unrestricted.
func semanticFilter(in *searchSemanticInput) (*store.FindTalk, []string, error) {
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
	if in.SpeakerName != "" {
		find.SpeakerName = &in.SpeakerName
		parts = append(parts, "speaker "+in.SpeakerName)
	}

	if len(parts) == 0 {
		return nil, nil, nil
	}
	return find, parts, nil
}
