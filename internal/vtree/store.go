package vtree

import "time"

type entry struct {
	slots          []any
	dirty          bool
	updateDuration time.Duration
}

// Store persists local state per node path. Entries are created the first
// time a path renders and removed once the path leaves the tree.
type Store struct {
	entries map[string]*entry
}

// NewStore creates an empty lifecycle store.
func NewStore() *Store {
	return &Store{entries: make(map[string]*entry)}
}

func (s *Store) get(path string) *entry {
	e, ok := s.entries[path]
	if !ok {
		e = &entry{}
		s.entries[path] = e
	}
	return e
}

func (s *Store) delete(path string) {
	delete(s.entries, path)
}

// Has reports whether state exists for path.
func (s *Store) Has(path string) bool {
	_, ok := s.entries[path]
	return ok
}

// Len returns the number of live entries.
func (s *Store) Len() int {
	return len(s.entries)
}

// TakeUpdateDuration returns the update cost accumulated for path since the
// previous call and resets it.
func (s *Store) TakeUpdateDuration(path string) time.Duration {
	e, ok := s.entries[path]
	if !ok {
		return 0
	}
	d := e.updateDuration
	e.updateDuration = 0
	return d
}
