package tools

import (
	"context"

	"github.com/talklens/talklens/retrieval"
)

// TopicsTool counts tool, technology, topic or keyword mentions over the
// selected talk content.
type TopicsTool struct {
	rt *Runtime
}

func NewTopicsTool(rt *Runtime) *TopicsTool {
	return &TopicsTool{rt: rt}
}

func (t *TopicsTool) Name() string { return "analyze_topics_and_trends" }

func (t *TopicsTool) Description() string {
	return "Frequency analysis of tools, technologies, topics or keywords mentioned across talk abstracts and transcripts, with optional filters and time-bucketed trends."
}

type topicsInput struct {
	AnalysisType  string `json:"analysis_type,omitempty"`
	DateFrom      string `json:"date_from,omitempty"`
	DateTo        string `json:"date_to,omitempty"`
	Category      string `json:"category,omitempty"`
	EventName     string `json:"event_name,omitempty"`
	ContentSource string `json:"content_source,omitempty"`
	TopN          int    `json:"top_n,omitempty"`
	TimeGrouping  string `json:"time_grouping,omitempty"`
	MinMentions   int    `json:"min_mentions,omitempty"`
}

func (t *TopicsTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"analysis_type":  map[string]interface{}{"type": "string", "enum": []string{"tools", "topics", "technologies", "trends", "keywords"}, "default": "topics", "description": "What to count"},
			"date_from":      map[string]interface{}{"type": "string", "description": "Only talks published from this date (YYYY, YYYY-MM or YYYY-MM-DD)"},
			"date_to":        map[string]interface{}{"type": "string", "description": "Only talks published up to this date (YYYY, YYYY-MM or YYYY-MM-DD)"},
			"category":       map[string]interface{}{"type": "string", "description": "Only talks in this primary category"},
			"event_name":     map[string]interface{}{"type": "string", "description": "Only talks from this event"},
			"content_source": map[string]interface{}{"type": "string", "enum": []string{"transcripts", "abstracts", "all"}, "default": "abstracts", "description": "Text to analyze"},
			"top_n":          map[string]interface{}{"type": "integer", "minimum": 1, "maximum": maxK, "default": defaultK, "description": "Number of top results"},
			"time_grouping":  map[string]interface{}{"type": "string", "enum": []string{"monthly", "yearly", "quarterly", "none"}, "default": "none", "description": "Bucket the top items by talk publish period"},
			"min_mentions":   map[string]interface{}{"type": "integer", "minimum": 1, "default": 2, "description": "Minimum mentions for inclusion"},
		},
	}
}

func (t *TopicsTool) Run(ctx context.Context, inputJSON string) (string, error) {
	return t.rt.run(ctx, t.Name(), func(ctx context.Context, eng *retrieval.Engine) (any, error) {
		var in topicsInput
		if err := decode(inputJSON, &in); err != nil {
			return nil, err
		}

		switch in.AnalysisType {
		case "", "tools", "topics", "technologies", "trends", "keywords":
		default:
			return nil, retrieval.E(retrieval.KindValidation, "analysis_type must be one of tools, topics, technologies, trends, keywords, got %q", in.AnalysisType)
		}
		switch in.ContentSource {
		case "", "transcripts", "abstracts", "all":
		default:
			return nil, retrieval.E(retrieval.KindValidation, "content_source must be one of transcripts, abstracts, all, got %q", in.ContentSource)
		}
		switch in.TimeGrouping {
		case "", "none", "monthly", "yearly", "quarterly":
		default:
			return nil, retrieval.E(retrieval.KindValidation, "time_grouping must be one of monthly, yearly, quarterly, none, got %q", in.TimeGrouping)
		}

		req := &retrieval.TopicAnalysisRequest{
			AnalysisType:  in.AnalysisType,
			ContentSource: in.ContentSource,
			TimeGrouping:  in.TimeGrouping,
			TopN:          in.TopN,
			MinMentions:   in.MinMentions,
		}
		if req.AnalysisType == "" {
			req.AnalysisType = "topics"
		}
		if req.TimeGrouping == "none" {
			req.TimeGrouping = ""
		}
		if req.TopN > maxK {
			req.TopN = maxK
		}
		if in.Category != "" {
			req.Category = &in.Category
		}
		if in.EventName != "" {
			req.EventName = &in.EventName
		}
		if in.DateFrom != "" {
			from, err := parseDate(in.DateFrom, false)
			if err != nil {
				return nil, err
			}
			req.DateFrom = &from
		}
		if in.DateTo != "" {
			to, err := parseDate(in.DateTo, true)
			if err != nil {
				return nil, err
			}
			req.DateTo = &to
		}

		analysis, err := retrieval.AnalyzeTopicsAndTrends(ctx, eng.Store(), req)
		if err != nil {
			return nil, err
		}
		return analysis, nil
	})
}
