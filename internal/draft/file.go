package draft

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps every draft in one JSON object on disk, keyed by session id.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by the JSON file at path. The file is
// created on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) load() (map[string]Draft, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Draft{}, nil
		}
		return nil, fmt.Errorf("failed to read drafts: %w", err)
	}

	drafts := map[string]Draft{}
	if len(data) == 0 {
		return drafts, nil
	}
	if err := json.Unmarshal(data, &drafts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal drafts: %w", err)
	}
	return drafts, nil
}

func (s *FileStore) store(drafts map[string]Draft) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	data, err := json.MarshalIndent(drafts, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal drafts: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write drafts: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write drafts: %w", err)
	}
	return nil
}

func (s *FileStore) Get(ctx context.Context, sessionID string) (*Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	drafts, err := s.load()
	if err != nil {
		return nil, err
	}
	d, ok := drafts[sessionID]
	if !ok {
		return nil, nil
	}
	d = normalize(d)
	return &d, nil
}

func (s *FileStore) Save(ctx context.Context, sessionID string, d Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	drafts, err := s.load()
	if err != nil {
		return err
	}
	if d.Empty() {
		if _, ok := drafts[sessionID]; !ok {
			return nil
		}
		delete(drafts, sessionID)
	} else {
		drafts[sessionID] = normalize(d)
	}
	return s.store(drafts)
}

func (s *FileStore) Clear(ctx context.Context, sessionID string) error {
	return s.Save(ctx, sessionID, Draft{})
}

func (s *FileStore) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove drafts: %w", err)
	}
	return nil
}

func (s *FileStore) List(ctx context.Context) (map[string]Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *FileStore) Close() error {
	return nil
}
