package draft

import (
	"context"
	"sync"
)

// MemoryStore keeps drafts for the lifetime of the process.
type MemoryStore struct {
	mu     sync.Mutex
	drafts map[string]Draft
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{drafts: make(map[string]Draft)}
}

func (s *MemoryStore) Get(ctx context.Context, sessionID string) (*Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[sessionID]
	if !ok {
		return nil, nil
	}
	d = normalize(d)
	return &d, nil
}

func (s *MemoryStore) Save(ctx context.Context, sessionID string, d Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.Empty() {
		delete(s.drafts, sessionID)
		return nil
	}
	s.drafts[sessionID] = normalize(d)
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, sessionID)
	return nil
}

func (s *MemoryStore) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts = make(map[string]Draft)
	return nil
}

func (s *MemoryStore) List(ctx context.Context) (map[string]Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Draft, len(s.drafts))
	for id, d := range s.drafts {
		out[id] = normalize(d)
	}
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
