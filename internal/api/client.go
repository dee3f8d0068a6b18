package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	endpointModels       = "/api/models"
	endpointSessions     = "/api/sessions"
	endpointSession      = "/api/sessions/%s"
	endpointSessionClone = "/api/sessions/%s/clone"
	endpointSessionFiles = "/api/sessions/%s/files"
	endpointSessionFile  = "/api/sessions/%s/files/%s"
	endpointMessages     = "/api/chat/sessions/%s/messages"

	// EndpointChatStream is consumed by the stream controller.
	EndpointChatStream = "/api/chat/stream"
)

// Client talks to the chat backend's REST surface.
type Client struct {
	server     string
	token      string
	httpClient *http.Client
}

// NewClient creates a client for the given server. A nil httpClient uses a
// client without an overall timeout so long-lived streams are not cut off.
func NewClient(server, token string, httpClient *http.Client) (*Client, error) {
	normalized, err := normalizeServerURL(server)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		server:     normalized,
		token:      strings.TrimSpace(token),
		httpClient: httpClient,
	}, nil
}

// normalizeServerURL ensures a scheme and strips any trailing slash.
func normalizeServerURL(server string) (string, error) {
	server = strings.TrimSpace(server)
	if server == "" {
		return "", fmt.Errorf("server URL is required")
	}
	if !strings.Contains(server, "://") {
		server = "http://" + server
	}
	u, err := url.Parse(server)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid server URL %q", server)
	}
	return strings.TrimSuffix(fmt.Sprintf("%s://%s%s", u.Scheme, u.Host, u.Path), "/"), nil
}

// Server returns the normalized server URL.
func (c *Client) Server() string {
	return c.server
}

// HTTPClient returns the underlying HTTP client.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// NewRequest builds an authorized request against the server.
func (c *Client) NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.server+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := c.NewRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp)
	}
	if resp.StatusCode == http.StatusNoContent || out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// ValidateID checks that id is a UUID before it is placed in a URL path.
func ValidateID(kind, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid %s id %q", kind, id)
	}
	return nil
}

// ListModels returns the models the backend can serve.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	var out ModelList
	if err := c.doJSON(ctx, http.MethodGet, endpointModels, nil, &out); err != nil {
		return nil, err
	}
	return out.Models, nil
}

// CreateSession creates a session. The backend titles it "New Chat" when
// no title is given.
func (c *Client) CreateSession(ctx context.Context, in SessionCreate) (*Session, error) {
	var out Session
	if err := c.doJSON(ctx, http.MethodPost, endpointSessions, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListSessions returns sessions, most recently updated first.
func (c *Client) ListSessions(ctx context.Context) (*SessionList, error) {
	var out SessionList
	if err := c.doJSON(ctx, http.MethodGet, endpointSessions, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSession fetches one session.
func (c *Client) GetSession(ctx context.Context, id string) (*Session, error) {
	if err := ValidateID("session", id); err != nil {
		return nil, err
	}
	var out Session
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf(endpointSession, id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateTitle renames a session.
func (c *Client) UpdateTitle(ctx context.Context, id, title string) (*Session, error) {
	if err := ValidateID("session", id); err != nil {
		return nil, err
	}
	var out Session
	body := map[string]string{"title": title}
	if err := c.doJSON(ctx, http.MethodPatch, fmt.Sprintf(endpointSession, id), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteSession removes a session and its messages.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	if err := ValidateID("session", id); err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf(endpointSession, id), nil, nil)
}

// CloneSession duplicates a session with its history.
func (c *Client) CloneSession(ctx context.Context, id string) (*Session, error) {
	if err := ValidateID("session", id); err != nil {
		return nil, err
	}
	var out Session
	if err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf(endpointSessionClone, id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetMessages returns the ordered message history of a session.
func (c *Client) GetMessages(ctx context.Context, sessionID string) ([]Message, error) {
	if err := ValidateID("session", sessionID); err != nil {
		return nil, err
	}
	var out []Message
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf(endpointMessages, sessionID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListFiles returns the files uploaded to a session.
func (c *Client) ListFiles(ctx context.Context, sessionID string) ([]FileInfo, error) {
	if err := ValidateID("session", sessionID); err != nil {
		return nil, err
	}
	var out []FileInfo
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf(endpointSessionFiles, sessionID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteFile removes an uploaded file.
func (c *Client) DeleteFile(ctx context.Context, sessionID, fileID string) error {
	if err := ValidateID("session", sessionID); err != nil {
		return err
	}
	if err := ValidateID("file", fileID); err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf(endpointSessionFile, sessionID, fileID), nil, nil)
}

// UploadFile uploads a local file as multipart form data.
func (c *Client) UploadFile(ctx context.Context, sessionID, path string) (*FileInfo, error) {
	if err := ValidateID("session", sessionID); err != nil {
		return nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return c.UploadContent(ctx, sessionID, filepath.Base(path), content)
}

// UploadContent uploads in-memory content under the given filename.
func (c *Client) UploadContent(ctx context.Context, sessionID, filename string, content []byte) (*FileInfo, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("failed to write form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish form: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	req, err := c.NewRequest(ctx, http.MethodPost, fmt.Sprintf(endpointSessionFiles, sessionID), &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out FileInfo
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
