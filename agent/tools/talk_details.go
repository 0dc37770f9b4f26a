package tools

import (
	"context"

	"github.com/talklens/talklens/retrieval"
	"github.com/talklens/talklens/store"
	"github.com/talklens/talklens/vector"
)

const (
	defaultTranscriptChunks = 10
	maxTranscriptChunks     = 100
	defaultRelatedCount     = 5
)

// TalkDetailsTool resolves one talk by id or exact title and optionally
// attaches a transcript window, the speaker list and related talks.
type TalkDetailsTool struct {
	rt *Runtime
}

func NewTalkDetailsTool(rt *Runtime) *TalkDetailsTool {
	return &TalkDetailsTool{rt: rt}
}

func (t *TalkDetailsTool) Name() string { return "get_talk_details" }

func (t *TalkDetailsTool) Description() string {
	return "Fetch the full record of one talk by id or exact title, with optional transcript excerpt (time-windowed), speaker details and related talks."
}

type talkDetailsInput struct {
	TalkTitle         string `json:"talk_title,omitempty"`
	TalkID            string `json:"talk_id,omitempty"`
	IncludeTranscript bool   `json:"include_transcript,omitempty"`
	TimeStart         *int   `json:"time_start,omitempty"`
	TimeEnd           *int   `json:"time_end,omitempty"`
	MaxChunks         int    `json:"max_chunks,omitempty"`
	IncludeRelated    bool   `json:"include_related,omitempty"`
	RelatedCount      int    `json:"related_count,omitempty"`
}

func (t *TalkDetailsTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"talk_title":         map[string]interface{}{"type": "string", "description": "Exact talk title; provide this or talk_id"},
			"talk_id":            map[string]interface{}{"type": "string", "description": "Talk identifier; provide this or talk_title"},
			"include_transcript": map[string]interface{}{"type": "boolean", "default": false, "description": "Attach transcript chunks"},
			"time_start":         map[string]interface{}{"type": "integer", "minimum": 0, "description": "Transcript window start in seconds"},
			"time_end":           map[string]interface{}{"type": "integer", "minimum": 0, "description": "Transcript window end in seconds"},
			"max_chunks":         map[string]interface{}{"type": "integer", "minimum": 1, "maximum": maxTranscriptChunks, "default": defaultTranscriptChunks, "description": "Maximum transcript chunks to return"},
			"include_related":    map[string]interface{}{"type": "boolean", "default": false, "description": "Attach semantically related talks"},
			"related_count":      map[string]interface{}{"type": "integer", "minimum": 1, "maximum": maxK, "default": defaultRelatedCount, "description": "Number of related talks"},
		},
	}
}

type transcriptChunkView struct {
	Seq      int    `json:"seq"`
	StartSec int    `json:"startSec"`
	EndSec   int    `json:"endSec"`
	Text     string `json:"text"`
}

type speakerView struct {
	PersonID string `json:"personId"`
	Name     string `json:"name"`
	Company  string `json:"company,omitempty"`
	JobTitle string `json:"jobTitle,omitempty"`
}

func (t *TalkDetailsTool) Run(ctx context.Context, inputJSON string) (string, error) {
	return t.rt.run(ctx, t.Name(), func(ctx context.Context, eng *retrieval.Engine) (any, error) {
		var in talkDetailsInput
		if err := decode(inputJSON, &in); err != nil {
			return nil, err
		}
		if in.TalkID == "" && in.TalkTitle == "" {
			return nil, retrieval.E(retrieval.KindValidation, "provide talk_id or talk_title")
		}
		if in.TalkID != "" && in.TalkTitle != "" {
			return nil, retrieval.E(retrieval.KindValidation, "provide talk_id or talk_title, not both")
		}
		if in.TimeStart != nil && in.TimeEnd != nil && *in.TimeEnd < *in.TimeStart {
			return nil, retrieval.E(retrieval.KindValidation, "time_end %d precedes time_start %d", *in.TimeEnd, *in.TimeStart)
		}

		st := eng.Store()
		var (
			talk *store.Talk
			err  error
		)
		if in.TalkID != "" {
			talk, err = st.GetTalk(ctx, in.TalkID)
		} else {
			talk, err = st.GetTalkByTitle(ctx, in.TalkTitle)
		}
		if err != nil {
			return nil, err
		}
		if talk == nil {
			ref := in.TalkID
			if ref == "" {
				ref = in.TalkTitle
			}
			return nil, retrieval.E(retrieval.KindNotFound, "talk %q not found", ref)
		}

		out := map[string]interface{}{
			"talk": toTalkView(talk),
		}

		speakers, err := t.speakers(ctx, st, talk.ID)
		if err != nil {
			return nil, err
		}
		out["speakers"] = speakers

		if in.IncludeTranscript {
			chunks, err := t.transcript(ctx, st, talk.ID, &in)
			if err != nil {
				return nil, err
			}
			out["transcript"] = chunks
		}

		if in.IncludeRelated {
			count := in.RelatedCount
			if count <= 0 {
				count = defaultRelatedCount
			}
			related, err := eng.FindSimilar(ctx, &retrieval.SimilarRequest{
				TalkID: talk.ID,
				Sets:   []string{vector.SetTalkMeta},
				K:      clampK(count),
			})
			if err != nil {
				return nil, err
			}
			out["relatedTalks"] = toScoredViews(related)
		}

		return out, nil
	})
}

// speakers resolves the talk's people over the speaker edge.
func (t *TalkDetailsTool) speakers(ctx context.Context, st *store.Store, talkID string) ([]speakerView, error) {
	edges, err := st.ListSpeakerEdges(ctx, &store.FindSpeakerEdge{TalkIDs: []string{talkID}})
	if err != nil {
		return nil, err
	}
	if len(edges) == 0 {
		return []speakerView{}, nil
	}
	ids := make([]string, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.PersonID)
	}
	persons, err := st.ListPersons(ctx, &store.FindPerson{IDs: ids})
	if err != nil {
		return nil, err
	}
	views := make([]speakerView, 0, len(persons))
	for _, p := range persons {
		views = append(views, speakerView{
			PersonID: p.ID,
			Name:     p.Name,
			Company:  p.Company,
			JobTitle: p.JobTitle,
		})
	}
	return views, nil
}

// transcript loads the requested chunk window in (talk, seq) order.
func (t *TalkDetailsTool) transcript(ctx context.Context, st *store.Store, talkID string, in *talkDetailsInput) ([]transcriptChunkView, error) {
	maxChunks := in.MaxChunks
	if maxChunks <= 0 {
		maxChunks = defaultTranscriptChunks
	}
	if maxChunks > maxTranscriptChunks {
		maxChunks = maxTranscriptChunks
	}
	find := &store.FindTranscriptChunk{
		TalkIDs:     []string{talkID},
		MinStartSec: in.TimeStart,
		MaxEndSec:   in.TimeEnd,
		Limit:       maxChunks,
	}
	chunks, err := st.ListTranscriptChunks(ctx, find)
	if err != nil {
		return nil, err
	}
	views := make([]transcriptChunkView, 0, len(chunks))
	for _, c := range chunks {
		views = append(views, transcriptChunkView{
			Seq:      c.Seq,
			StartSec: c.StartSec,
			EndSec:   c.EndSec,
			Text:     c.Text,
		})
	}
	return views, nil
}
