package queue

import "sync"

// MemoryStore keeps entries in memory only. Useful for tests and for callers
// that do not want persistence across restarts.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) Put(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.CorrelationID] = e
	return nil
}

func (s *MemoryStore) Delete(correlationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, correlationID)
	return nil
}

func (s *MemoryStore) List() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sortByCreation(out)
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
