package stream

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/floatplane/floatchat/internal/api"
	"github.com/google/uuid"
)

// MockTurn is one scripted reply of a MockStarter.
type MockTurn struct {
	Text  string        // Reply text, chunked into content deltas
	Error string        // Terminal error detail sent instead of done
	Delay time.Duration // Optional delay before the first delta
	// Hold keeps the stream open after the deltas until it is cancelled.
	// No terminal event is sent.
	Hold bool
}

// MockStarter is a Starter that answers with scripted turns instead of
// calling a server. It records every request for verification.
type MockStarter struct {
	mu        sync.Mutex
	turns     []MockTurn
	turnIndex int
	requests  []api.ChatRequest
}

func NewMockStarter() *MockStarter {
	return &MockStarter{}
}

// AddTurn adds a response turn and returns the starter for chaining.
func (m *MockStarter) AddTurn(t MockTurn) *MockStarter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, t)
	return m
}

// AddTextResponse is a convenience method to add a simple text reply.
func (m *MockStarter) AddTextResponse(text string) *MockStarter {
	return m.AddTurn(MockTurn{Text: text})
}

// AddError adds a turn that fails with detail.
func (m *MockStarter) AddError(detail string) *MockStarter {
	return m.AddTurn(MockTurn{Error: detail})
}

// Requests returns the requests received so far.
func (m *MockStarter) Requests() []api.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]api.ChatRequest(nil), m.requests...)
}

// Start implements Starter.
func (m *MockStarter) Start(ctx context.Context, req api.ChatRequest) *Handle {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	var turn MockTurn
	if m.turnIndex < len(m.turns) {
		turn = m.turns[m.turnIndex]
	} else {
		turn = MockTurn{Error: fmt.Sprintf("mock starter: no more turns configured (expected turn %d, have %d)", m.turnIndex, len(m.turns))}
	}
	m.turnIndex++
	m.mu.Unlock()

	h := newHandle(ctx)
	go func() {
		defer close(h.done)
		defer h.cancel()
		defer close(h.events)
		playTurn(h, req, turn)
	}()
	return h
}

func playTurn(h *Handle, req api.ChatRequest, turn MockTurn) {
	ctx := h.ctx
	user := api.Message{
		ID:        uuid.NewString(),
		SessionID: req.SessionID,
		Role:      api.RoleUser,
		Content:   req.Message,
		CreatedAt: api.Time{Time: time.Now().UTC()},
	}
	if len(req.FilesMetadata) > 0 {
		user.Metadata = &api.MessageMetadata{Files: req.FilesMetadata}
	}
	h.emit(UserMessageEvent(user))

	if turn.Delay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(turn.Delay):
		}
	}

	for _, chunk := range ChunkText(turn.Text, 10) {
		if ctx.Err() != nil {
			return
		}
		h.emit(DeltaEvent(chunk))
	}

	if turn.Hold {
		<-ctx.Done()
		return
	}
	if turn.Error != "" {
		h.emit(ErrorEvent(turn.Error))
		return
	}
	h.emit(DoneEvent(api.Message{
		ID:        uuid.NewString(),
		SessionID: req.SessionID,
		Role:      api.RoleAssistant,
		Content:   turn.Text,
		CreatedAt: api.Time{Time: time.Now().UTC()},
	}))
}

// ChunkText splits text into chunks of approximately the given size.
// It tries to break at word boundaries when possible.
func ChunkText(text string, chunkSize int) []string {
	if len(text) == 0 {
		return nil
	}
	if len(text) <= chunkSize {
		return []string{text}
	}

	var chunks []string
	for len(text) > 0 {
		if len(text) <= chunkSize {
			chunks = append(chunks, text)
			break
		}

		// Prefer a space near the chunk size, then back off to a rune start.
		breakPoint := chunkSize
		for i := chunkSize; i > chunkSize/2; i-- {
			if text[i] == ' ' {
				breakPoint = i + 1
				break
			}
		}
		if breakPoint >= len(text) {
			chunks = append(chunks, text)
			break
		}
		for breakPoint > 1 && !utf8.RuneStart(text[breakPoint]) {
			breakPoint--
		}

		chunks = append(chunks, text[:breakPoint])
		text = text[breakPoint:]
	}
	return chunks
}
