package store

// Person represents a speaker. A person may speak at multiple talks and a
// talk may have multiple speakers (HasSpeaker edge, many-to-many).
type Person struct {
	ID       string
	Name     string
	Company  string
	JobTitle string
}

// FindPerson is the find condition for persons.
type FindPerson struct {
	IDs          []string
	Name         *string
	NameContains *string
	Company      *string
	Limit        int
}

// SpeakerEdge links a talk to one of its speakers.
type SpeakerEdge struct {
	TalkID   string
	PersonID string
}

// FindSpeakerEdge is the find condition for speaker edges. Either side may
// be constrained; both empty lists all edges.
type FindSpeakerEdge struct {
	TalkIDs   []string
	PersonIDs []string
}
