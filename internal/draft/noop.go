package draft

import "context"

// NoopStore is a no-op implementation of Store used when drafts are disabled.
// It silently discards all writes and returns empty results for reads.
type NoopStore struct{}

func (s *NoopStore) Get(ctx context.Context, sessionID string) (*Draft, error) {
	return nil, nil
}

func (s *NoopStore) Save(ctx context.Context, sessionID string, d Draft) error {
	return nil
}

func (s *NoopStore) Clear(ctx context.Context, sessionID string) error {
	return nil
}

func (s *NoopStore) ClearAll(ctx context.Context) error {
	return nil
}

func (s *NoopStore) List(ctx context.Context) (map[string]Draft, error) {
	return nil, nil
}

func (s *NoopStore) Close() error {
	return nil
}

// Compile-time check that NoopStore implements Store
var _ Store = (*NoopStore)(nil)
