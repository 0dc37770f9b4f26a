// Package vector provides k-NN probing over the descriptor embedding
// spaces. Queries go through a registry that validates the space name and
// the query dimension before any index is touched.
package vector

import (
	"github.com/pkg/errors"
)

// Descriptor set names. Each set is an independent embedding space with
// its own dimensionality.
const (
	SetTranscriptChunks = "ds_transcript_chunks_v1"
	SetTalkMeta         = "ds_talk_meta_v1"
	SetSpeakerBio       = "ds_speaker_bio_v1"
	SetVideo            = "ds_video_v1"
)

// Spaces maps every known descriptor set to its embedding dimension.
var Spaces = map[string]int{
	SetTranscriptChunks: 768,
	SetTalkMeta:         768,
	SetSpeakerBio:       768,
	SetVideo:            1024,
}

var (
	// ErrIndexNotFound is returned for a descriptor set name outside Spaces.
	ErrIndexNotFound = errors.New("vector: index not found")
	// ErrDimensionMismatch is returned when a query vector's length differs
	// from the set's dimension.
	ErrDimensionMismatch = errors.New("vector: dimension mismatch")
)

// ValidateQuery checks the set name and query dimension. Every probe path
// calls it before touching an index.
func ValidateQuery(set string, query []float32) error {
	dim, ok := Spaces[set]
	if !ok {
		return errors.Wrapf(ErrIndexNotFound, "set %q", set)
	}
	if len(query) != dim {
		return errors.Wrapf(ErrDimensionMismatch, "set %q wants %d dims, query has %d", set, dim, len(query))
	}
	return nil
}

// Similarity converts a cosine distance into the score surfaced to
// callers. Video embeddings live in a wider-spread space and use a scaled
// mapping clamped at zero.
func Similarity(set string, distance float64) float64 {
	if set == SetVideo {
		s := 1 - distance/10
		if s < 0 {
			return 0
		}
		return s
	}
	return 1 - distance
}
