package tools

import (
	"github.com/talklens/talklens/retrieval"
	"github.com/talklens/talklens/store"
)

// talkView is the wire shape for one talk across all tools.
type talkView struct {
	TalkID          string `json:"talkId"`
	Title           string `json:"title"`
	Abstract        string `json:"abstract,omitempty"`
	Keywords        string `json:"keywords,omitempty"`
	CategoryPrimary string `json:"categoryPrimary,omitempty"`
	Track           string `json:"track,omitempty"`
	EventName       string `json:"eventName,omitempty"`
	Industries      string `json:"industries,omitempty"`
	SpeakerName     string `json:"speakerName,omitempty"`
	CompanyName     string `json:"companyName,omitempty"`
	TechLevel       int    `json:"techLevel,omitempty"`
	Views           int64  `json:"views"`
	PublishedAt     string `json:"publishedAt,omitempty"`
	DurationSec     int    `json:"durationSec,omitempty"`
	YouTubeURL      string `json:"youtubeUrl,omitempty"`

	// Set for semantic results only.
	Score   *float64 `json:"score,omitempty"`
	Sources []string `json:"matchedIn,omitempty"`
}

func toTalkView(t *store.Talk) talkView {
	v := talkView{
		TalkID:          t.ID,
		Title:           t.Title,
		Abstract:        t.Abstract,
		Keywords:        t.KeywordsCSV,
		CategoryPrimary: t.CategoryPrimary,
		Track:           t.Track,
		EventName:       t.EventName,
		Industries:      t.Industries,
		SpeakerName:     t.SpeakerName,
		CompanyName:     t.CompanyName,
		TechLevel:       t.TechLevel,
		Views:           t.Views,
		DurationSec:     t.DurationSec,
		YouTubeURL:      t.YouTubeURL,
	}
	if !t.PublishedAt.IsZero() {
		v.PublishedAt = t.PublishedAt.Format("2006-01-02")
	}
	return v
}

func toScoredViews(results []retrieval.ScoredTalk) []talkView {
	views := make([]talkView, 0, len(results))
	for _, r := range results {
		v := toTalkView(r.Talk)
		score := r.Score
		v.Score = &score
		v.Sources = r.Sources
		views = append(views, v)
	}
	return views
}
