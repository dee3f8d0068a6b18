package mockserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/floatplane/floatchat/internal/api"
	"github.com/floatplane/floatchat/internal/stream"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// eventWriter writes server-sent events in the backend's framing: one
// event line, one data line, one blank line.
type eventWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (e *eventWriter) send(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	var req api.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid chat request")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "message must not be empty")
		return
	}

	now := api.Time{Time: s.now()}
	user := api.Message{
		ID:        uuid.NewString(),
		SessionID: req.SessionID,
		Role:      api.RoleUser,
		Content:   req.Message,
		CreatedAt: now,
	}
	if len(req.FilesMetadata) > 0 {
		user.Metadata = &api.MessageMetadata{Files: req.FilesMetadata}
	}

	s.mu.Lock()
	rec, ok := s.sessions[req.SessionID]
	if !ok {
		s.mu.Unlock()
		writeDetail(w, http.StatusNotFound, fmt.Sprintf("Session %s not found", req.SessionID))
		return
	}
	rec.messages = append(rec.messages, user)
	sess := rec.session
	history := append([]api.Message(nil), rec.messages...)
	s.mu.Unlock()

	logger := s.logger.With(zap.String("session_id", req.SessionID))
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	ew := &eventWriter{w: w, flusher: flusher}

	if err := ew.send("user_message", user); err != nil {
		return
	}

	reply, err := s.opts.Reply(sess, history, req.Message)
	if err != nil {
		logger.Info("scripted reply failure", zap.Error(err))
		_ = ew.send("error", map[string]string{"detail": err.Error()})
		return
	}

	ctx := r.Context()
	for _, chunk := range stream.ChunkText(reply, s.opts.ChunkSize) {
		if s.opts.ChunkDelay > 0 {
			select {
			case <-ctx.Done():
				logger.Debug("client went away mid-stream")
				return
			case <-time.After(s.opts.ChunkDelay):
			}
		}
		if ctx.Err() != nil {
			return
		}
		if err := ew.send("content_delta", map[string]string{"chunk": chunk}); err != nil {
			return
		}
	}

	assistant := api.Message{
		ID:        uuid.NewString(),
		SessionID: req.SessionID,
		Role:      api.RoleAssistant,
		Content:   reply,
		CreatedAt: api.Time{Time: s.now()},
	}
	s.mu.Lock()
	if rec, ok := s.sessions[req.SessionID]; ok {
		rec.messages = append(rec.messages, assistant)
		rec.session.UpdatedAt = assistant.CreatedAt
	}
	s.mu.Unlock()

	_ = ew.send("done", map[string]any{"message_id": assistant.ID, "message": assistant})
}
