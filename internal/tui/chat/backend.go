package chat

import (
	"context"

	"github.com/floatplane/floatchat/internal/api"
	"github.com/floatplane/floatchat/internal/panel"
)

// Backend is the REST surface the chat UI uses besides streaming.
// *api.Client implements it.
type Backend interface {
	panel.Source
	ListModels(ctx context.Context) ([]api.ModelInfo, error)
	ListSessions(ctx context.Context) (*api.SessionList, error)
	CreateSession(ctx context.Context, in api.SessionCreate) (*api.Session, error)
	UpdateTitle(ctx context.Context, id, title string) (*api.Session, error)
	CloneSession(ctx context.Context, id string) (*api.Session, error)
	DeleteSession(ctx context.Context, id string) error
	UploadFile(ctx context.Context, sessionID, path string) (*api.FileInfo, error)
	DeleteFile(ctx context.Context, sessionID, fileID string) error
}
