package knowledge

import "strings"

// Store exposes topic retrieval for the tool layer.
type Store interface {
	List() []Topic
	FindByID(id string) (Topic, bool)
}

// MemoryStore implements Store with an in-memory slice; the topic table is
// small and fixed at startup.
type MemoryStore struct {
	items []Topic
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied topics.
func NewMemoryStore(items []Topic) *MemoryStore {
	return &MemoryStore{items: append([]Topic(nil), items...)}
}

// List returns the seeded topic list.
func (s *MemoryStore) List() []Topic {
	return append([]Topic(nil), s.items...)
}

// FindByID looks up a topic by identifier, case-insensitively.
func (s *MemoryStore) FindByID(id string) (Topic, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Topic{}, false
}
