package store

import "github.com/pkg/errors"

// EdgeType names a directed relationship class in the talk graph.
type EdgeType string

const (
	// EdgeHasSpeaker links Talk -> Person (many-to-many).
	EdgeHasSpeaker EdgeType = "HasSpeaker"
	// EdgeHasTranscriptChunk links Talk -> TranscriptChunk.
	EdgeHasTranscriptChunk EdgeType = "HasTranscriptChunk"
	// EdgeHasMeta links Talk -> TalkMeta.
	EdgeHasMeta EdgeType = "HasMeta"
	// EdgeHasSpeakerBio links Talk -> SpeakerBio.
	EdgeHasSpeakerBio EdgeType = "HasSpeakerBio"
	// EdgeHasVideo links Talk -> Video.
	EdgeHasVideo EdgeType = "HasVideo"
)

// Direction selects which way an edge is followed.
type Direction string

const (
	// DirectionOut follows edges from source to target (talk outward).
	DirectionOut Direction = "out"
	// DirectionIn follows edges from target back to source.
	DirectionIn Direction = "in"
)

// maxTraversalHops is the hard cap on graph walk depth. Requests for deeper
// walks fail with ErrTraversalDepthExceeded instead of recursing.
const maxTraversalHops = 3

// ErrTraversalDepthExceeded is returned when a traversal requests more hops
// than the hard cap allows.
var ErrTraversalDepthExceeded = errors.New("traversal depth exceeded")
