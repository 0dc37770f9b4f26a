package store

// TranscriptChunk is one timed segment of a talk transcript. Identity is
// (talk_id, seq); a chunk never outlives its talk.
type TranscriptChunk struct {
	TalkID    string
	Seq       int
	Text      string
	StartSec  int
	EndSec    int
	Embedding []float32
}

// FindTranscriptChunk is the find condition for transcript chunks. Results
// are ordered by (talk_id, seq) ascending.
type FindTranscriptChunk struct {
	TalkIDs     []string
	MinStartSec *int
	MaxEndSec   *int
	Limit       int
}

// TalkMeta carries the embedded concatenation of a talk's title, abstract
// and keywords. One-to-one with Talk.
type TalkMeta struct {
	TalkID    string
	MetaText  string
	Embedding []float32
}

// FindTalkMeta is the find condition for talk metadata descriptors.
type FindTalkMeta struct {
	TalkIDs []string
}

// SpeakerBio is the embedded speaker biography for one (talk, person) pair.
type SpeakerBio struct {
	TalkID    string
	PersonID  string
	BioText   string
	Embedding []float32
}

// FindSpeakerBio is the find condition for speaker bios.
type FindSpeakerBio struct {
	TalkIDs   []string
	PersonIDs []string
}

// Video references the stored video payload for a talk together with its
// video-space embedding. The video embedding space has a different
// dimensionality than the text spaces.
type Video struct {
	TalkID      string
	StorageRef  string
	DurationSec int
	FrameWidth  int
	FrameHeight int
	Embedding   []float32
}

// FindVideo is the find condition for videos.
type FindVideo struct {
	TalkIDs []string
}

// Embedding is a generic view over one stored vector, used to build
// in-memory indexes for a descriptor set. ID is unique within a set
// (chunk: "talkID#seq", bio: "talkID#personID", meta/video: talkID).
type Embedding struct {
	Set    string
	ID     string
	TalkID string
	Vector []float32
}
