package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/talklens/talklens/internal/profile"
)

// Store provides read access to the talk snapshot through a database driver.
// It owns no mutable state of its own; concurrent use is safe because the
// underlying snapshot is never written during a session.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.driver.Ping(ctx)
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) ListTalks(ctx context.Context, find *FindTalk) ([]*Talk, error) {
	return s.driver.ListTalks(ctx, find)
}

// UpsertTalk writes one talk, assigning an ID when the ingestion pipeline
// did not provide one.
func (s *Store) UpsertTalk(ctx context.Context, talk *Talk) (*Talk, error) {
	if talk.ID == "" {
		talk.ID = uuid.NewString()
	}
	return s.driver.UpsertTalk(ctx, talk)
}

// UpsertPerson writes one person, assigning an ID when absent.
func (s *Store) UpsertPerson(ctx context.Context, person *Person) (*Person, error) {
	if person.ID == "" {
		person.ID = uuid.NewString()
	}
	return s.driver.UpsertPerson(ctx, person)
}

func (s *Store) UpsertSpeakerEdge(ctx context.Context, edge *SpeakerEdge) error {
	return s.driver.UpsertSpeakerEdge(ctx, edge)
}

func (s *Store) UpsertTranscriptChunk(ctx context.Context, chunk *TranscriptChunk) error {
	return s.driver.UpsertTranscriptChunk(ctx, chunk)
}

func (s *Store) UpsertTalkMeta(ctx context.Context, meta *TalkMeta) error {
	return s.driver.UpsertTalkMeta(ctx, meta)
}

func (s *Store) UpsertSpeakerBio(ctx context.Context, bio *SpeakerBio) error {
	return s.driver.UpsertSpeakerBio(ctx, bio)
}

func (s *Store) UpsertVideo(ctx context.Context, video *Video) error {
	return s.driver.UpsertVideo(ctx, video)
}

// GetTalk returns the talk with the given ID, or nil when absent.
func (s *Store) GetTalk(ctx context.Context, id string) (*Talk, error) {
	talks, err := s.driver.ListTalks(ctx, &FindTalk{IDs: []string{id}})
	if err != nil {
		return nil, err
	}
	if len(talks) == 0 {
		return nil, nil
	}
	return talks[0], nil
}

// GetTalkByTitle returns the talk with the exact title, or nil when absent.
func (s *Store) GetTalkByTitle(ctx context.Context, title string) (*Talk, error) {
	talks, err := s.driver.ListTalks(ctx, &FindTalk{TitleEquals: &title})
	if err != nil {
		return nil, err
	}
	if len(talks) == 0 {
		return nil, nil
	}
	return talks[0], nil
}

func (s *Store) ListPersons(ctx context.Context, find *FindPerson) ([]*Person, error) {
	return s.driver.ListPersons(ctx, find)
}

func (s *Store) ListSpeakerEdges(ctx context.Context, find *FindSpeakerEdge) ([]*SpeakerEdge, error) {
	return s.driver.ListSpeakerEdges(ctx, find)
}

func (s *Store) ListTranscriptChunks(ctx context.Context, find *FindTranscriptChunk) ([]*TranscriptChunk, error) {
	return s.driver.ListTranscriptChunks(ctx, find)
}

func (s *Store) ListTalkMetas(ctx context.Context, find *FindTalkMeta) ([]*TalkMeta, error) {
	return s.driver.ListTalkMetas(ctx, find)
}

func (s *Store) ListSpeakerBios(ctx context.Context, find *FindSpeakerBio) ([]*SpeakerBio, error) {
	return s.driver.ListSpeakerBios(ctx, find)
}

func (s *Store) ListVideos(ctx context.Context, find *FindVideo) ([]*Video, error) {
	return s.driver.ListVideos(ctx, find)
}

func (s *Store) ListEmbeddings(ctx context.Context, set string) ([]*Embedding, error) {
	return s.driver.ListEmbeddings(ctx, set)
}

// DescriptorID returns the set-unique descriptor ID for a transcript chunk.
// The zero-padded sequence keeps lexicographic order equal to chunk order.
func (c *TranscriptChunk) DescriptorID() string {
	return fmt.Sprintf("%s#%05d", c.TalkID, c.Seq)
}

// DescriptorID returns the set-unique descriptor ID for a speaker bio.
func (b *SpeakerBio) DescriptorID() string {
	return b.TalkID + "#" + b.PersonID
}

// ownerTalkID extracts the owning talk ID from a descriptor ID.
func ownerTalkID(descriptorID string) string {
	if i := strings.IndexByte(descriptorID, '#'); i >= 0 {
		return descriptorID[:i]
	}
	return descriptorID
}

// TraverseEdges follows one edge class from the given source IDs for up to
// `hops` steps and returns, for each source, the sorted IDs reached on the
// final step. The HasSpeaker edge is bipartite, so consecutive hops over it
// alternate direction (talk -> person -> talk). Ownership edges terminate at
// their leaf entity; extra hops over them yield an empty frontier.
func (s *Store) TraverseEdges(ctx context.Context, fromIDs []string, edgeType EdgeType, direction Direction, hops int) (map[string][]string, error) {
	if hops < 1 {
		hops = 1
	}
	if hops > maxTraversalHops {
		return nil, errors.Wrapf(ErrTraversalDepthExceeded, "%d hops requested, cap is %d", hops, maxTraversalHops)
	}

	// frontier maps each currently reached node to the origin IDs that
	// reached it, so one batched edge query serves every origin.
	frontier := make(map[string]map[string]struct{}, len(fromIDs))
	for _, id := range fromIDs {
		frontier[id] = map[string]struct{}{id: {}}
	}

	dir := direction
	for h := 0; h < hops && len(frontier) > 0; h++ {
		ids := make([]string, 0, len(frontier))
		for id := range frontier {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		pairs, err := s.expandEdges(ctx, ids, edgeType, dir)
		if err != nil {
			return nil, err
		}

		next := make(map[string]map[string]struct{})
		for _, p := range pairs {
			origins, ok := frontier[p[0]]
			if !ok {
				continue
			}
			targets, ok := next[p[1]]
			if !ok {
				targets = make(map[string]struct{})
				next[p[1]] = targets
			}
			for origin := range origins {
				targets[origin] = struct{}{}
			}
		}
		frontier = next

		if edgeType == EdgeHasSpeaker {
			dir = flip(dir)
		}
	}

	result := make(map[string][]string, len(fromIDs))
	for target, origins := range frontier {
		for origin := range origins {
			result[origin] = append(result[origin], target)
		}
	}
	for origin := range result {
		sort.Strings(result[origin])
	}
	return result, nil
}

func flip(d Direction) Direction {
	if d == DirectionOut {
		return DirectionIn
	}
	return DirectionOut
}

// expandEdges resolves one hop of the given edge class and returns
// (from, to) ID pairs.
func (s *Store) expandEdges(ctx context.Context, ids []string, edgeType EdgeType, dir Direction) ([][2]string, error) {
	var pairs [][2]string

	switch edgeType {
	case EdgeHasSpeaker:
		find := &FindSpeakerEdge{}
		if dir == DirectionOut {
			find.TalkIDs = ids
		} else {
			find.PersonIDs = ids
		}
		edges, err := s.driver.ListSpeakerEdges(ctx, find)
		if err != nil {
			return nil, errors.Wrap(err, "list speaker edges")
		}
		for _, e := range edges {
			if dir == DirectionOut {
				pairs = append(pairs, [2]string{e.TalkID, e.PersonID})
			} else {
				pairs = append(pairs, [2]string{e.PersonID, e.TalkID})
			}
		}

	case EdgeHasTranscriptChunk:
		if dir == DirectionIn {
			for _, id := range ids {
				pairs = append(pairs, [2]string{id, ownerTalkID(id)})
			}
			break
		}
		chunks, err := s.driver.ListTranscriptChunks(ctx, &FindTranscriptChunk{TalkIDs: ids})
		if err != nil {
			return nil, errors.Wrap(err, "list transcript chunks")
		}
		for _, c := range chunks {
			pairs = append(pairs, [2]string{c.TalkID, c.DescriptorID()})
		}

	case EdgeHasMeta:
		if dir == DirectionIn {
			for _, id := range ids {
				pairs = append(pairs, [2]string{id, id})
			}
			break
		}
		metas, err := s.driver.ListTalkMetas(ctx, &FindTalkMeta{TalkIDs: ids})
		if err != nil {
			return nil, errors.Wrap(err, "list talk metas")
		}
		for _, m := range metas {
			pairs = append(pairs, [2]string{m.TalkID, m.TalkID})
		}

	case EdgeHasSpeakerBio:
		if dir == DirectionIn {
			for _, id := range ids {
				pairs = append(pairs, [2]string{id, ownerTalkID(id)})
			}
			break
		}
		bios, err := s.driver.ListSpeakerBios(ctx, &FindSpeakerBio{TalkIDs: ids})
		if err != nil {
			return nil, errors.Wrap(err, "list speaker bios")
		}
		for _, b := range bios {
			pairs = append(pairs, [2]string{b.TalkID, b.DescriptorID()})
		}

	case EdgeHasVideo:
		if dir == DirectionIn {
			for _, id := range ids {
				pairs = append(pairs, [2]string{id, id})
			}
			break
		}
		videos, err := s.driver.ListVideos(ctx, &FindVideo{TalkIDs: ids})
		if err != nil {
			return nil, errors.Wrap(err, "list videos")
		}
		for _, v := range videos {
			pairs = append(pairs, [2]string{v.TalkID, v.TalkID})
		}

	default:
		return nil, errors.Errorf("unknown edge type %q", edgeType)
	}

	return pairs, nil
}
