// Package mockserver is an in-memory implementation of the chat backend's
// HTTP surface. Replies are generated locally and streamed as server-sent
// events, so the client can be developed and tested without a real backend.
package mockserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/floatplane/floatchat/internal/api"
	"github.com/floatplane/floatchat/internal/attach"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReplyFunc produces the assistant reply for message given the prior
// history. A returned error is streamed as an error event.
type ReplyFunc func(sess api.Session, history []api.Message, message string) (string, error)

// Options configures a Server.
type Options struct {
	// Token, when set, is required as a bearer token on every request.
	Token string
	// ChunkDelay is the pause between streamed deltas.
	ChunkDelay time.Duration
	// ChunkSize is the approximate size of each delta. Zero means 10.
	ChunkSize int
	// Reply generates replies. Nil echoes the message.
	Reply  ReplyFunc
	Models []api.ModelInfo
	Logger *zap.Logger
}

type sessionRecord struct {
	session  api.Session
	messages []api.Message
	files    []api.FileInfo
}

// Server is the in-memory backend.
type Server struct {
	opts   Options
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*sessionRecord
}

// New returns an empty server.
func New(opts Options) *Server {
	if opts.Reply == nil {
		opts.Reply = EchoReply
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 10
	}
	if opts.Models == nil {
		opts.Models = api.DefaultModels
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		opts:     opts,
		logger:   logger.Named("mockserver"),
		now:      func() time.Time { return time.Now().UTC() },
		sessions: make(map[string]*sessionRecord),
	}
}

// EchoReply answers with the message and the names of attached files.
func EchoReply(sess api.Session, history []api.Message, message string) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "You said: %s", message)
	if n := len(history); n > 1 {
		fmt.Fprintf(&b, "\n\n_%d earlier messages in this chat, model %s._", n-1, sess.LLMModel)
	}
	return b.String(), nil
}

// HTTPHandler returns an http.Handler for the backend endpoints.
func (s *Server) HTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/models", s.auth(s.handleModels))
	mux.HandleFunc("GET /api/sessions", s.auth(s.handleListSessions))
	mux.HandleFunc("POST /api/sessions", s.auth(s.handleCreateSession))
	mux.HandleFunc("GET /api/sessions/{id}", s.auth(s.handleGetSession))
	mux.HandleFunc("PATCH /api/sessions/{id}", s.auth(s.handleUpdateSession))
	mux.HandleFunc("DELETE /api/sessions/{id}", s.auth(s.handleDeleteSession))
	mux.HandleFunc("POST /api/sessions/{id}/clone", s.auth(s.handleCloneSession))
	mux.HandleFunc("GET /api/sessions/{id}/files", s.auth(s.handleListFiles))
	mux.HandleFunc("POST /api/sessions/{id}/files", s.auth(s.handleUploadFile))
	mux.HandleFunc("DELETE /api/sessions/{id}/files/{fileID}", s.auth(s.handleDeleteFile))
	mux.HandleFunc("GET /api/chat/sessions/{id}/messages", s.auth(s.handleMessages))
	mux.HandleFunc("POST "+api.EndpointChatStream, s.auth(s.handleStream))
	return mux
}

// ListenAndServe serves on addr until ctx is cancelled. ready, when non-nil,
// receives the bound address once the listener is open.
func (s *Server) ListenAndServe(ctx context.Context, addr string, ready func(net.Addr)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := &http.Server{Handler: s.HTTPHandler(), ReadHeaderTimeout: 10 * time.Second}
	if ready != nil {
		ready(ln.Addr())
	}
	s.logger.Info("mock server listening", zap.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authorized(r) {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		next(w, r)
	}
}

func (s *Server) authorized(r *http.Request) bool {
	token := strings.TrimSpace(s.opts.Token)
	if token == "" {
		return true
	}
	value := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(value, prefix) {
		return false
	}
	return strings.TrimSpace(strings.TrimPrefix(value, prefix)) == token
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// lookup returns the record for the {id} path value, writing a 404 when it
// does not exist. The caller must hold s.mu.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) *sessionRecord {
	id := r.PathValue("id")
	rec, ok := s.sessions[id]
	if !ok {
		writeDetail(w, http.StatusNotFound, fmt.Sprintf("Session %s not found", id))
		return nil
	}
	return rec
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.ModelList{Models: s.opts.Models})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	list := make([]api.Session, 0, len(s.sessions))
	for _, rec := range s.sessions {
		list = append(list, rec.session)
	}
	s.mu.Unlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].UpdatedAt.After(list[j].UpdatedAt.Time)
	})
	writeJSON(w, http.StatusOK, api.SessionList{Sessions: list, Total: len(list)})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var in api.SessionCreate
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid session body")
		return
	}
	if in.LLMProvider == "" || in.LLMModel == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "llm_provider and llm_model are required")
		return
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = "New Chat"
	}
	sess := s.createSession(title, in.LLMProvider, in.LLMModel)
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) createSession(title, provider, model string) api.Session {
	now := api.Time{Time: s.now()}
	sess := api.Session{
		ID:          uuid.NewString(),
		Title:       title,
		LLMProvider: provider,
		LLMModel:    model,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.mu.Lock()
	s.sessions[sess.ID] = &sessionRecord{session: sess}
	s.mu.Unlock()
	s.logger.Debug("session created", zap.String("session_id", sess.ID))
	return sess
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec := s.lookup(w, r); rec != nil {
		writeJSON(w, http.StatusOK, rec.session)
	}
}

func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Title *string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid session body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.lookup(w, r)
	if rec == nil {
		return
	}
	if in.Title != nil {
		rec.session.Title = *in.Title
		rec.session.UpdatedAt = api.Time{Time: s.now()}
	}
	writeJSON(w, http.StatusOK, rec.session)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec := s.lookup(w, r); rec != nil {
		delete(s.sessions, rec.session.ID)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleCloneSession(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	rec := s.lookup(w, r)
	if rec == nil {
		s.mu.Unlock()
		return
	}
	orig := rec.session
	s.mu.Unlock()

	clone := s.createSession(orig.Title+" (Copy)", orig.LLMProvider, orig.LLMModel)
	writeJSON(w, http.StatusCreated, clone)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.lookup(w, r)
	if rec == nil {
		return
	}
	msgs := append([]api.Message{}, rec.messages...)
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.lookup(w, r)
	if rec == nil {
		return
	}
	files := append([]api.FileInfo{}, rec.files...)
	writeJSON(w, http.StatusOK, files)
}

func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, attach.MaxFileSize+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.lookup(w, r)
	if rec == nil {
		return
	}
	if err := attach.CheckCapacity(len(rec.files), 1); err != nil {
		writeDetail(w, http.StatusBadRequest, "Maximum 3 files per session")
		return
	}
	fileType, err := attach.ValidateName(header.Filename)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, fmt.Sprintf("Unsupported file type: %s. Supported: %s",
			attach.FileType(header.Filename), strings.Join(attach.AllowedTypes, ", ")))
		return
	}
	if err := attach.ValidateSize(int64(len(content))); err != nil {
		writeDetail(w, http.StatusBadRequest, fmt.Sprintf("File too large: %d bytes. Maximum: %d bytes (10MB)",
			len(content), attach.MaxFileSize))
		return
	}

	info := api.FileInfo{
		ID:        uuid.NewString(),
		SessionID: rec.session.ID,
		Filename:  header.Filename,
		FileType:  fileType,
		FileSize:  int64(len(content)),
		CreatedAt: api.Time{Time: s.now()},
	}
	rec.files = append(rec.files, info)
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.lookup(w, r)
	if rec == nil {
		return
	}
	fileID := r.PathValue("fileID")
	for i, f := range rec.files {
		if f.ID == fileID {
			rec.files = append(rec.files[:i], rec.files[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeDetail(w, http.StatusNotFound, fmt.Sprintf("File %s not found", fileID))
}
