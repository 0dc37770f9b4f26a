package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/talklens/talklens/retrieval"
	"github.com/talklens/talklens/store"
)

// SearchByFiltersTool answers exact-match metadata queries over talks.
type SearchByFiltersTool struct {
	rt *Runtime
}

func NewSearchByFiltersTool(rt *Runtime) *SearchByFiltersTool {
	return &SearchByFiltersTool{rt: rt}
}

func (t *SearchByFiltersTool) Name() string { return "search_talks_by_filters" }

func (t *SearchByFiltersTool) Description() string {
	return "Search talks by exact metadata filters (date range, views, category, track, event, tech level, company, industries, speaker, title) with sorting. All filters combine with AND; issue multiple calls to union alternatives."
}

type searchByFiltersInput struct {
	DateFrom      string `json:"date_from,omitempty"`
	DateTo        string `json:"date_to,omitempty"`
	MinViews      *int64 `json:"min_views,omitempty"`
	MaxViews      *int64 `json:"max_views,omitempty"`
	Category      string `json:"category,omitempty"`
	Track         string `json:"track,omitempty"`
	EventName     string `json:"event_name,omitempty"`
	MinTechLevel  *int   `json:"min_tech_level,omitempty"`
	MaxTechLevel  *int   `json:"max_tech_level,omitempty"`
	CompanyName   string `json:"company_name,omitempty"`
	Industries    string `json:"industries,omitempty"`
	SpeakerName   string `json:"speaker_name,omitempty"`
	TitleContains string `json:"title_contains,omitempty"`
	Combinator    string `json:"combinator,omitempty"`
	SortBy        string `json:"sort_by,omitempty"`
	SortOrder     string `json:"sort_order,omitempty"`
	Limit         int    `json:"limit,omitempty"`
}

func (t *SearchByFiltersTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"date_from":      map[string]interface{}{"type": "string", "description": "Published from this date (YYYY, YYYY-MM or YYYY-MM-DD)"},
			"date_to":        map[string]interface{}{"type": "string", "description": "Published up to this date (YYYY, YYYY-MM or YYYY-MM-DD)"},
			"min_views":      map[string]interface{}{"type": "integer", "description": "Minimum YouTube view count"},
			"max_views":      map[string]interface{}{"type": "integer", "description": "Maximum YouTube view count"},
			"category":       map[string]interface{}{"type": "string", "description": "Primary category, e.g. 'MLOps'"},
			"track":          map[string]interface{}{"type": "string", "description": "Conference track"},
			"event_name":     map[string]interface{}{"type": "string", "description": "Event name, e.g. 'MLOps & GenAI World 2024'"},
			"min_tech_level": map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 7},
			"max_tech_level": map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 7},
			"company_name":   map[string]interface{}{"type": "string", "description": "Speaker's company"},
			"industries":     map[string]interface{}{"type": "string", "description": "Industries mentioned"},
			"speaker_name":   map[string]interface{}{"type": "string", "description": "Exact speaker name"},
			"title_contains": map[string]interface{}{"type": "string", "description": "Substring of the talk title"},
			"combinator":     map[string]interface{}{"type": "string", "enum": []string{"and"}, "description": "Predicate combinator; only 'and' is supported"},
			"sort_by":        map[string]interface{}{"type": "string", "enum": []string{"date", "views", "title", "tech_level"}},
			"sort_order":     map[string]interface{}{"type": "string", "enum": []string{"asc", "desc"}},
			"limit":          map[string]interface{}{"type": "integer", "minimum": 1, "maximum": maxK, "default": defaultK},
		},
	}
}

func (t *SearchByFiltersTool) Run(ctx context.Context, inputJSON string) (string, error) {
	return t.rt.run(ctx, t.Name(), func(ctx context.Context, eng *retrieval.Engine) (any, error) {
		var in searchByFiltersInput
		if err := decode(inputJSON, &in); err != nil {
			return nil, err
		}
		if in.Combinator != "" && in.Combinator != retrieval.CombinatorAnd {
			return nil, retrieval.E(retrieval.KindUnsupportedPredicate, "combinator %q not supported, issue one request per branch and union the results", in.Combinator)
		}

		find, summary, err := in.toFind()
		if err != nil {
			return nil, err
		}
		talks, err := eng.SearchByFilters(ctx, find)
		if err != nil {
			return nil, err
		}

		views := make([]talkView, 0, len(talks))
		for _, talk := range talks {
			views = append(views, toTalkView(talk))
		}
		return map[string]interface{}{
			"talks":        views,
			"totalFound":   len(views),
			"querySummary": summary,
			"sortInfo":     fmt.Sprintf("%s %s", find.OrderBy, order(find.Desc)),
		}, nil
	})
}

func (in *searchByFiltersInput) toFind() (*store.FindTalk, string, error) {
	find := &store.FindTalk{
		MinViews:     in.MinViews,
		MaxViews:     in.MaxViews,
		MinTechLevel: in.MinTechLevel,
		MaxTechLevel: in.MaxTechLevel,
		Limit:        clampK(in.Limit),
	}
	var parts []string

	if in.DateFrom != "" {
		from, err := parseDate(in.DateFrom, false)
		if err != nil {
			return nil, "", err
		}
		find.PublishedAfter = &from
		parts = append(parts, "from "+in.DateFrom)
	}
	if in.DateTo != "" {
		to, err := parseDate(in.DateTo, true)
		if err != nil {
			return nil, "", err
		}
		find.PublishedBefore = &to
		parts = append(parts, "until "+in.DateTo)
	}
	if in.Category != "" {
		find.CategoryPrimary = &in.Category
		parts = append(parts, "category "+in.Category)
	}
	if in.Track != "" {
		find.Track = &in.Track
		parts = append(parts, "track "+in.Track)
	}
	if in.EventName != "" {
		find.EventName = &in.EventName
		parts = append(parts, "event "+in.EventName)
	}
	if in.CompanyName != "" {
		find.CompanyName = &in.CompanyName
		parts = append(parts, "company "+in.CompanyName)
	}
	if in.Industries != "" {
		find.Industries = &in.Industries
		parts = append(parts, "industries "+in.Industries)
	}
	if in.TitleContains != "" {
		find.TitleContains = &in.TitleContains
		parts = append(parts, "title contains "+in.TitleContains)
	}
	if in.SpeakerName != "" {
		find.SpeakerName = &in.SpeakerName
		parts = append(parts, "speaker "+in.SpeakerName)
	}

	if tl := in.MinTechLevel; tl != nil && (*tl < 1 || *tl > 7) {
		return nil, "", retrieval.E(retrieval.KindValidation, "min_tech_level must be in [1,7], got %d", *tl)
	}
	if tl := in.MaxTechLevel; tl != nil && (*tl < 1 || *tl > 7) {
		return nil, "", retrieval.E(retrieval.KindValidation, "max_tech_level must be in [1,7], got %d", *tl)
	}

	switch in.SortBy {
	case "":
		find.OrderBy = store.OrderByDate
	case "date", "views", "title", "tech_level":
		find.OrderBy = store.TalkOrderBy(in.SortBy)
	default:
		return nil, "", retrieval.E(retrieval.KindValidation, "sort_by must be one of date, views, title, tech_level")
	}
	switch in.SortOrder {
	case "", "desc":
		find.Desc = true
	case "asc":
		find.Desc = false
	default:
		return nil, "", retrieval.E(retrieval.KindValidation, "sort_order must be asc or desc")
	}

	if len(parts) == 0 {
		parts = append(parts, "all talks")
	}
	return find, strings.Join(parts, ", "), nil
}

func order(desc bool) string {
	if desc {
		return "desc"
	}
	return "asc"
}
