// Package memory implements the store driver on plain in-process maps.
// It backs demo mode and the engine test suites; semantics here are the
// reference for the SQL drivers.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/talklens/talklens/store"
	"github.com/talklens/talklens/vector"
)

// DB holds the whole snapshot in memory.
type DB struct {
	mu sync.RWMutex

	talks        map[string]*store.Talk
	persons      map[string]*store.Person
	speakerEdges map[string]*store.SpeakerEdge // key talkID+"\x00"+personID
	chunks       map[string]*store.TranscriptChunk
	metas        map[string]*store.TalkMeta
	bios         map[string]*store.SpeakerBio
	videos       map[string]*store.Video
}

// NewDB creates an empty in-memory driver.
func NewDB() *DB {
	return &DB{
		talks:        make(map[string]*store.Talk),
		persons:      make(map[string]*store.Person),
		speakerEdges: make(map[string]*store.SpeakerEdge),
		chunks:       make(map[string]*store.TranscriptChunk),
		metas:        make(map[string]*store.TalkMeta),
		bios:         make(map[string]*store.SpeakerBio),
		videos:       make(map[string]*store.Video),
	}
}

func (d *DB) Ping(context.Context) error { return nil }
func (d *DB) Close() error               { return nil }

func (d *DB) Migrate(context.Context) error { return nil }

func (d *DB) UpsertTalk(_ context.Context, talk *store.Talk) (*store.Talk, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *talk
	d.talks[talk.ID] = &cp
	return talk, nil
}

func (d *DB) ListTalks(_ context.Context, find *store.FindTalk) ([]*store.Talk, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if find == nil {
		find = &store.FindTalk{}
	}

	var list []*store.Talk
	if len(find.IDs) > 0 {
		for _, id := range find.IDs {
			if t, ok := d.talks[id]; ok && matchTalk(t, find) {
				cp := *t
				list = append(list, &cp)
			}
		}
	} else {
		for _, t := range d.talks {
			if matchTalk(t, find) {
				cp := *t
				list = append(list, &cp)
			}
		}
	}

	sortTalks(list, find.OrderBy, find.Desc)
	if find.Limit > 0 && len(list) > find.Limit {
		list = list[:find.Limit]
	}
	return list, nil
}

func matchTalk(t *store.Talk, find *store.FindTalk) bool {
	if find.EventName != nil && t.EventName != *find.EventName {
		return false
	}
	if find.CategoryPrimary != nil && t.CategoryPrimary != *find.CategoryPrimary {
		return false
	}
	if find.Track != nil && t.Track != *find.Track {
		return false
	}
	if find.CompanyName != nil && t.CompanyName != *find.CompanyName {
		return false
	}
	if find.SpeakerName != nil && t.SpeakerName != *find.SpeakerName {
		return false
	}
	if find.Industries != nil && t.Industries != *find.Industries {
		return false
	}
	if find.TitleEquals != nil && t.Title != *find.TitleEquals {
		return false
	}
	if find.TitleContains != nil && !strings.Contains(strings.ToLower(t.Title), strings.ToLower(*find.TitleContains)) {
		return false
	}
	if find.MinViews != nil && t.Views < *find.MinViews {
		return false
	}
	if find.MaxViews != nil && t.Views > *find.MaxViews {
		return false
	}
	if find.PublishedAfter != nil && t.PublishedAt.Before(*find.PublishedAfter) {
		return false
	}
	if find.PublishedBefore != nil && t.PublishedAt.After(*find.PublishedBefore) {
		return false
	}
	if find.MinTechLevel != nil && t.TechLevel < *find.MinTechLevel {
		return false
	}
	if find.MaxTechLevel != nil && t.TechLevel > *find.MaxTechLevel {
		return false
	}
	return true
}

// sortTalks orders a talk list by the requested key with talk ID ascending
// as the deterministic secondary key.
func sortTalks(list []*store.Talk, orderBy store.TalkOrderBy, desc bool) {
	less := func(a, b *store.Talk) bool {
		switch orderBy {
		case store.OrderByViews:
			if a.Views != b.Views {
				return a.Views < b.Views
			}
		case store.OrderByTitle:
			if a.Title != b.Title {
				return a.Title < b.Title
			}
		case store.OrderByTechLevel:
			if a.TechLevel != b.TechLevel {
				return a.TechLevel < b.TechLevel
			}
		default: // OrderByDate
			if !a.PublishedAt.Equal(b.PublishedAt) {
				return a.PublishedAt.Before(b.PublishedAt)
			}
		}
		return a.ID < b.ID
	}
	sort.SliceStable(list, func(i, j int) bool {
		if desc {
			// Keep the ID tie-break ascending even for descending sorts.
			if less(list[i], list[j]) != less(list[j], list[i]) {
				return less(list[j], list[i])
			}
			return list[i].ID < list[j].ID
		}
		return less(list[i], list[j])
	})
}

func (d *DB) UpsertPerson(_ context.Context, person *store.Person) (*store.Person, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *person
	d.persons[person.ID] = &cp
	return person, nil
}

func (d *DB) ListPersons(_ context.Context, find *store.FindPerson) ([]*store.Person, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if find == nil {
		find = &store.FindPerson{}
	}

	idSet := toSet(find.IDs)
	var list []*store.Person
	for _, p := range d.persons {
		if len(idSet) > 0 {
			if _, ok := idSet[p.ID]; !ok {
				continue
			}
		}
		if find.Name != nil && p.Name != *find.Name {
			continue
		}
		if find.NameContains != nil && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(*find.NameContains)) {
			continue
		}
		if find.Company != nil && p.Company != *find.Company {
			continue
		}
		cp := *p
		list = append(list, &cp)
	}

	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	if find.Limit > 0 && len(list) > find.Limit {
		list = list[:find.Limit]
	}
	return list, nil
}

func (d *DB) UpsertSpeakerEdge(_ context.Context, edge *store.SpeakerEdge) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *edge
	d.speakerEdges[edge.TalkID+"\x00"+edge.PersonID] = &cp
	return nil
}

func (d *DB) ListSpeakerEdges(_ context.Context, find *store.FindSpeakerEdge) ([]*store.SpeakerEdge, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if find == nil {
		find = &store.FindSpeakerEdge{}
	}
	talkSet := toSet(find.TalkIDs)
	personSet := toSet(find.PersonIDs)

	var list []*store.SpeakerEdge
	for _, e := range d.speakerEdges {
		if len(talkSet) > 0 {
			if _, ok := talkSet[e.TalkID]; !ok {
				continue
			}
		}
		if len(personSet) > 0 {
			if _, ok := personSet[e.PersonID]; !ok {
				continue
			}
		}
		cp := *e
		list = append(list, &cp)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].TalkID != list[j].TalkID {
			return list[i].TalkID < list[j].TalkID
		}
		return list[i].PersonID < list[j].PersonID
	})
	return list, nil
}

func (d *DB) UpsertTranscriptChunk(_ context.Context, chunk *store.TranscriptChunk) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *chunk
	d.chunks[chunk.DescriptorID()] = &cp
	return nil
}

func (d *DB) ListTranscriptChunks(_ context.Context, find *store.FindTranscriptChunk) ([]*store.TranscriptChunk, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if find == nil {
		find = &store.FindTranscriptChunk{}
	}
	talkSet := toSet(find.TalkIDs)

	var list []*store.TranscriptChunk
	for _, c := range d.chunks {
		if len(talkSet) > 0 {
			if _, ok := talkSet[c.TalkID]; !ok {
				continue
			}
		}
		if find.MinStartSec != nil && c.StartSec < *find.MinStartSec {
			continue
		}
		if find.MaxEndSec != nil && c.EndSec > *find.MaxEndSec {
			continue
		}
		cp := *c
		list = append(list, &cp)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].TalkID != list[j].TalkID {
			return list[i].TalkID < list[j].TalkID
		}
		return list[i].Seq < list[j].Seq
	})
	if find.Limit > 0 && len(list) > find.Limit {
		list = list[:find.Limit]
	}
	return list, nil
}

func (d *DB) UpsertTalkMeta(_ context.Context, meta *store.TalkMeta) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *meta
	d.metas[meta.TalkID] = &cp
	return nil
}

func (d *DB) ListTalkMetas(_ context.Context, find *store.FindTalkMeta) ([]*store.TalkMeta, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if find == nil {
		find = &store.FindTalkMeta{}
	}
	talkSet := toSet(find.TalkIDs)

	var list []*store.TalkMeta
	for _, m := range d.metas {
		if len(talkSet) > 0 {
			if _, ok := talkSet[m.TalkID]; !ok {
				continue
			}
		}
		cp := *m
		list = append(list, &cp)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].TalkID < list[j].TalkID })
	return list, nil
}

func (d *DB) UpsertSpeakerBio(_ context.Context, bio *store.SpeakerBio) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *bio
	d.bios[bio.DescriptorID()] = &cp
	return nil
}

func (d *DB) ListSpeakerBios(_ context.Context, find *store.FindSpeakerBio) ([]*store.SpeakerBio, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if find == nil {
		find = &store.FindSpeakerBio{}
	}
	talkSet := toSet(find.TalkIDs)
	personSet := toSet(find.PersonIDs)

	var list []*store.SpeakerBio
	for _, b := range d.bios {
		if len(talkSet) > 0 {
			if _, ok := talkSet[b.TalkID]; !ok {
				continue
			}
		}
		if len(personSet) > 0 {
			if _, ok := personSet[b.PersonID]; !ok {
				continue
			}
		}
		cp := *b
		list = append(list, &cp)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].DescriptorID() < list[j].DescriptorID() })
	return list, nil
}

func (d *DB) UpsertVideo(_ context.Context, video *store.Video) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *video
	d.videos[video.TalkID] = &cp
	return nil
}

func (d *DB) ListVideos(_ context.Context, find *store.FindVideo) ([]*store.Video, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if find == nil {
		find = &store.FindVideo{}
	}
	talkSet := toSet(find.TalkIDs)

	var list []*store.Video
	for _, v := range d.videos {
		if len(talkSet) > 0 {
			if _, ok := talkSet[v.TalkID]; !ok {
				continue
			}
		}
		cp := *v
		list = append(list, &cp)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].TalkID < list[j].TalkID })
	return list, nil
}

func (d *DB) ListEmbeddings(_ context.Context, set string) ([]*store.Embedding, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var list []*store.Embedding
	switch set {
	case vector.SetTranscriptChunks:
		for _, c := range d.chunks {
			if len(c.Embedding) == 0 {
				continue
			}
			list = append(list, &store.Embedding{Set: set, ID: c.DescriptorID(), TalkID: c.TalkID, Vector: c.Embedding})
		}
	case vector.SetTalkMeta:
		for _, m := range d.metas {
			if len(m.Embedding) == 0 {
				continue
			}
			list = append(list, &store.Embedding{Set: set, ID: m.TalkID, TalkID: m.TalkID, Vector: m.Embedding})
		}
	case vector.SetSpeakerBio:
		for _, b := range d.bios {
			if len(b.Embedding) == 0 {
				continue
			}
			list = append(list, &store.Embedding{Set: set, ID: b.DescriptorID(), TalkID: b.TalkID, Vector: b.Embedding})
		}
	case vector.SetVideo:
		for _, v := range d.videos {
			if len(v.Embedding) == 0 {
				continue
			}
			list = append(list, &store.Embedding{Set: set, ID: v.TalkID, TalkID: v.TalkID, Vector: v.Embedding})
		}
	default:
		return nil, vector.ErrIndexNotFound
	}

	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func toSet(ids []string) map[string]struct{} {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
