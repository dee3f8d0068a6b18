package api

import (
	"encoding/json"
	"strings"
	"time"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Time wraps time.Time to accept the backend's timestamps, which may be
// ISO-8601 without a zone offset (treated as UTC).
type Time struct {
	time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (t *Time) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	var lastErr error
	for _, layout := range timeLayouts {
		parsed, err := time.Parse(layout, raw)
		if err == nil {
			t.Time = parsed
			return nil
		}
		lastErr = err
	}
	return lastErr
}

// MarshalYAML writes the time as an RFC 3339 string.
func (t Time) MarshalYAML() (any, error) {
	if t.IsZero() {
		return "", nil
	}
	return t.Time.UTC().Format(time.RFC3339Nano), nil
}

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.Time.UTC().Format(time.RFC3339Nano))
}

// FileMetadata describes a file attached to a chat message.
type FileMetadata struct {
	Filename string `json:"filename" yaml:"filename"`
	FileType string `json:"file_type" yaml:"file_type"`
}

// MessageMetadata carries optional per-message data.
type MessageMetadata struct {
	Files []FileMetadata `json:"files,omitempty" yaml:"files,omitempty"`
}

// Message is a persisted chat message.
type Message struct {
	ID        string           `json:"id" yaml:"id"`
	SessionID string           `json:"session_id" yaml:"session_id"`
	Role      Role             `json:"role" yaml:"role"`
	Content   string           `json:"content" yaml:"content"`
	CreatedAt Time             `json:"created_at" yaml:"created_at"`
	Metadata  *MessageMetadata `json:"message_metadata,omitempty" yaml:"message_metadata,omitempty"`
}

// Files returns the attachment descriptors of the message, if any.
func (m Message) Files() []FileMetadata {
	if m.Metadata == nil {
		return nil
	}
	return m.Metadata.Files
}

// ChatRequest is the body of a streaming chat request. It is not modified
// after it has been sent.
type ChatRequest struct {
	SessionID     string         `json:"session_id" yaml:"session_id"`
	Message       string         `json:"message" yaml:"message"`
	FilesMetadata []FileMetadata `json:"files_metadata,omitempty" yaml:"files_metadata,omitempty"`
}

// Session is a conversation held by the backend.
type Session struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	LLMProvider string `json:"llm_provider" yaml:"llm_provider"`
	LLMModel    string `json:"llm_model" yaml:"llm_model"`
	CreatedAt   Time   `json:"created_at" yaml:"created_at"`
	UpdatedAt   Time   `json:"updated_at" yaml:"updated_at"`
}

// SessionCreate is the body for creating a session.
type SessionCreate struct {
	Title       string `json:"title,omitempty" yaml:"title,omitempty"`
	LLMProvider string `json:"llm_provider" yaml:"llm_provider"`
	LLMModel    string `json:"llm_model" yaml:"llm_model"`
}

// SessionList is the response of the session listing endpoint.
type SessionList struct {
	Sessions []Session `json:"sessions" yaml:"sessions"`
	Total    int       `json:"total" yaml:"total"`
}

// FileInfo describes an uploaded session file.
type FileInfo struct {
	ID        string `json:"id" yaml:"id"`
	SessionID string `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	Filename  string `json:"filename" yaml:"filename"`
	FileType  string `json:"file_type" yaml:"file_type"`
	FileSize  int64  `json:"file_size" yaml:"file_size"`
	CreatedAt Time   `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// Metadata converts the file into the descriptor sent with a chat request.
func (f FileInfo) Metadata() FileMetadata {
	return FileMetadata{Filename: f.Filename, FileType: f.FileType}
}

// ModelInfo is a model offered by the backend.
type ModelInfo struct {
	Provider    string `json:"provider" yaml:"provider"`
	Model       string `json:"model" yaml:"model"`
	DisplayName string `json:"display_name" yaml:"display_name"`
}

// Label returns the display name, falling back to provider/model.
func (m ModelInfo) Label() string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	return m.Provider + "/" + m.Model
}

// ModelList is the response of the models endpoint.
type ModelList struct {
	Models []ModelInfo `json:"models" yaml:"models"`
}

// DefaultModels are shown before the backend's list is known.
var DefaultModels = []ModelInfo{
	{Provider: "openai", Model: "gpt-4", DisplayName: "OpenAI / GPT-4"},
	{Provider: "anthropic", Model: "claude-sonnet-4-20250514", DisplayName: "Anthropic / Claude Sonnet 4"},
	{Provider: "google", Model: "gemini/gemini-2.5-flash", DisplayName: "Google / Gemini 2.5 Flash"},
}
