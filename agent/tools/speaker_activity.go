package tools

import (
	"context"

	"github.com/talklens/talklens/retrieval"
)

// SpeakerActivityTool aggregates talks by speaker and reports counts,
// view totals and a company breakdown instead of raw talk payloads.
type SpeakerActivityTool struct {
	rt *Runtime
}

func NewSpeakerActivityTool(rt *Runtime) *SpeakerActivityTool {
	return &SpeakerActivityTool{rt: rt}
}

func (t *SpeakerActivityTool) Name() string { return "analyze_speaker_activity" }

func (t *SpeakerActivityTool) Description() string {
	return "Aggregate talk activity per speaker: talk counts, total and average views, repeat speakers and a company breakdown, optionally scoped by speaker, company, category, event or date range."
}

type speakerActivityInput struct {
	SpeakerName  string `json:"speaker_name,omitempty"`
	CompanyName  string `json:"company_name,omitempty"`
	DateFrom     string `json:"date_from,omitempty"`
	DateTo       string `json:"date_to,omitempty"`
	MinTalkCount int    `json:"min_talk_count,omitempty"`
	AnalysisType string `json:"analysis_type,omitempty"`
	EventName    string `json:"event_name,omitempty"`
	Category     string `json:"category,omitempty"`
	Limit        int    `json:"limit,omitempty"`
}

func (t *SpeakerActivityTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"speaker_name":   map[string]interface{}{"type": "string", "description": "Restrict the analysis to one speaker (exact name match)"},
			"company_name":   map[string]interface{}{"type": "string", "description": "Restrict to speakers from this company"},
			"date_from":      map[string]interface{}{"type": "string", "description": "Only talks published from this date (YYYY, YYYY-MM or YYYY-MM-DD)"},
			"date_to":        map[string]interface{}{"type": "string", "description": "Only talks published up to this date (YYYY, YYYY-MM or YYYY-MM-DD)"},
			"min_talk_count": map[string]interface{}{"type": "integer", "minimum": 1, "description": "Only report speakers with at least this many talks"},
			"analysis_type":  map[string]interface{}{"type": "string", "enum": []string{"talk_count", "topics", "companies", "all"}, "default": "all", "description": "Which sections of the aggregation to return"},
			"event_name":     map[string]interface{}{"type": "string", "description": "Only talks from this event"},
			"category":       map[string]interface{}{"type": "string", "description": "Only talks in this primary category"},
			"limit":          map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 100, "default": 20, "description": "Maximum number of speaker rows"},
		},
	}
}

func (t *SpeakerActivityTool) Run(ctx context.Context, inputJSON string) (string, error) {
	return t.rt.run(ctx, t.Name(), func(ctx context.Context, eng *retrieval.Engine) (any, error) {
		var in speakerActivityInput
		if err := decode(inputJSON, &in); err != nil {
			return nil, err
		}

		analysisType := in.AnalysisType
		switch analysisType {
		case "":
			analysisType = "all"
		case "talk_count", "topics", "companies", "all":
		default:
			return nil, retrieval.E(retrieval.KindValidation, "analysis_type must be one of talk_count, topics, companies, all, got %q", in.AnalysisType)
		}

		req := &retrieval.SpeakerActivityRequest{
			MinTalkCount: in.MinTalkCount,
			Limit:        in.Limit,
		}
		if in.SpeakerName != "" {
			req.SpeakerName = &in.SpeakerName
		}
		if in.CompanyName != "" {
			req.Company = &in.CompanyName
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

		activity, err := retrieval.AnalyzeSpeakerActivity(ctx, eng.Store(), req)
		if err != nil {
			return nil, err
		}

		out := map[string]interface{}{
			"analysisType":  analysisType,
			"totalTalks":    activity.TotalTalks,
			"totalSpeakers": activity.TotalSpeakers,
		}
		if analysisType == "talk_count" || analysisType == "topics" || analysisType == "all" {
			out["speakers"] = activity.Speakers
			out["repeatSpeakers"] = activity.RepeatSpeakers
		}
		if analysisType == "companies" || analysisType == "all" {
			out["companyBreakdown"] = activity.CompanyBreakdown
		}
		return out, nil
	})
}
