package store

import "context"

// Driver is an interface for store database drivers. The engine only reads;
// the Upsert methods exist for the ingestion pipeline and test fixtures.
type Driver interface {
	Ping(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	UpsertTalk(ctx context.Context, talk *Talk) (*Talk, error)
	ListTalks(ctx context.Context, find *FindTalk) ([]*Talk, error)

	UpsertPerson(ctx context.Context, person *Person) (*Person, error)
	ListPersons(ctx context.Context, find *FindPerson) ([]*Person, error)

	UpsertSpeakerEdge(ctx context.Context, edge *SpeakerEdge) error
	ListSpeakerEdges(ctx context.Context, find *FindSpeakerEdge) ([]*SpeakerEdge, error)

	UpsertTranscriptChunk(ctx context.Context, chunk *TranscriptChunk) error
	ListTranscriptChunks(ctx context.Context, find *FindTranscriptChunk) ([]*TranscriptChunk, error)

	UpsertTalkMeta(ctx context.Context, meta *TalkMeta) error
	ListTalkMetas(ctx context.Context, find *FindTalkMeta) ([]*TalkMeta, error)

	UpsertSpeakerBio(ctx context.Context, bio *SpeakerBio) error
	ListSpeakerBios(ctx context.Context, find *FindSpeakerBio) ([]*SpeakerBio, error)

	UpsertVideo(ctx context.Context, video *Video) error
	ListVideos(ctx context.Context, find *FindVideo) ([]*Video, error)

	// ListEmbeddings streams every stored vector of one descriptor set,
	// ordered by ascending ID. Used to build in-memory indexes.
	ListEmbeddings(ctx context.Context, set string) ([]*Embedding, error)
}
