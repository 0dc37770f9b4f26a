package store

import "time"

// TalkOrderBy selects the sort field for talk listings.
type TalkOrderBy string

const (
	// OrderByDate sorts by publish date.
	OrderByDate TalkOrderBy = "date"
	// OrderByViews sorts by YouTube view count.
	OrderByViews TalkOrderBy = "views"
	// OrderByTitle sorts alphabetically by title.
	OrderByTitle TalkOrderBy = "title"
	// OrderByTechLevel sorts by technical level (1-7).
	OrderByTechLevel TalkOrderBy = "tech_level"
)

// Valid reports whether the order field is one of the supported sort keys.
func (o TalkOrderBy) Valid() bool {
	switch o {
	case OrderByDate, OrderByViews, OrderByTitle, OrderByTechLevel:
		return true
	}
	return false
}

// Talk represents a single conference talk. Talks are written once by the
// ingestion pipeline and treated as a frozen snapshot afterwards.
type Talk struct {
	ID              string
	Title           string
	Abstract        string
	KeywordsCSV     string
	CategoryPrimary string
	Track           string
	EventName       string
	Industries      string
	// SpeakerName and CompanyName are denormalized display copies of the
	// primary speaker; the authoritative relation is the HasSpeaker edge.
	SpeakerName string
	CompanyName string
	TechLevel   int
	Views       int64
	PublishedAt time.Time
	DurationSec int
	YouTubeURL  string
	YouTubeID   string
}

// FindTalk is the find condition for talks. Nil fields are ignored; set
// fields are combined with AND semantics.
type FindTalk struct {
	IDs             []string
	EventName       *string
	CategoryPrimary *string
	Track           *string
	CompanyName     *string
	SpeakerName     *string
	Industries      *string
	TitleEquals     *string
	TitleContains   *string
	MinViews        *int64
	MaxViews        *int64
	PublishedAfter  *time.Time
	PublishedBefore *time.Time
	MinTechLevel    *int
	MaxTechLevel    *int

	OrderBy TalkOrderBy
	Desc    bool
	Limit   int
}
