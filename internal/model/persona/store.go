package persona

import "strings"

// Store exposes persona retrieval for HTTP handlers and the pipeline.
type Store interface {
	List() []Persona
	FindByID(id string) (Persona, bool)
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items []Persona
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied personas.
func NewMemoryStore(items []Persona) *MemoryStore {
	return &MemoryStore{items: append([]Persona(nil), items...)}
}

// List returns the persona catalog.
func (s *MemoryStore) List() []Persona {
	return append([]Persona(nil), s.items...)
}

// FindByID looks up a persona by identifier or alias, case-insensitively.
func (s *MemoryStore) FindByID(id string) (Persona, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return Persona{}, false
	}
	for _, item := range s.items {
		if item.ID == id || (item.Alias != "" && item.Alias == id) {
			return item, true
		}
	}
	return Persona{}, false
}
