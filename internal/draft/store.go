// Package draft persists unsent chat input per session so it survives
// switching away and back.
package draft

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Draft is the unsent input of one session.
type Draft struct {
	Message string   `json:"message"`
	FileIDs []string `json:"fileIds"`
}

// Empty reports whether the draft carries nothing worth keeping.
func (d Draft) Empty() bool {
	return strings.TrimSpace(d.Message) == "" && len(d.FileIDs) == 0
}

// Store is a key-value store of drafts keyed by session id.
// Get returns nil, nil when no draft exists. Save with an empty draft
// removes the entry.
type Store interface {
	Get(ctx context.Context, sessionID string) (*Draft, error)
	Save(ctx context.Context, sessionID string, d Draft) error
	Clear(ctx context.Context, sessionID string) error
	ClearAll(ctx context.Context) error
	List(ctx context.Context) (map[string]Draft, error)
	Close() error
}

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendNone   = "none"
)

// Config selects and locates a backend.
type Config struct {
	Backend string
	// Path overrides the default location for the sqlite and file backends.
	Path string
}

// Open returns the store for cfg.Backend. An empty backend means sqlite.
func Open(cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendSQLite:
		path := cfg.Path
		if path == "" {
			p, err := DefaultPath("drafts.db")
			if err != nil {
				return nil, err
			}
			path = p
		}
		return NewSQLiteStore(path)
	case BackendFile:
		path := cfg.Path
		if path == "" {
			p, err := DefaultPath("drafts.json")
			if err != nil {
				return nil, err
			}
			path = p
		}
		return NewFileStore(path), nil
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendNone:
		return &NoopStore{}, nil
	default:
		return nil, fmt.Errorf("unknown drafts backend %q (want sqlite, file, memory or none)", cfg.Backend)
	}
}

// DefaultPath returns name inside the floatchat data directory.
func DefaultPath(name string) (string, error) {
	// Use XDG_DATA_HOME if set, otherwise ~/.local/share
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "floatchat", name), nil
}

func normalize(d Draft) Draft {
	ids := make([]string, 0, len(d.FileIDs))
	ids = append(ids, d.FileIDs...)
	return Draft{Message: d.Message, FileIDs: ids}
}
