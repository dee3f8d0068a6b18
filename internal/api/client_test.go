package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const testSessionID = "3f1c7a52-9a8e-4c53-b1f4-2d6b1f0e8a11"

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(srv.URL, "secret", nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestNormalizeServerURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "http://localhost:8000", want: "http://localhost:8000"},
		{in: "localhost:8000/", want: "http://localhost:8000"},
		{in: " https://chat.example.com/base/ ", want: "https://chat.example.com/base"},
		{in: "", wantErr: true},
		{in: "http://", wantErr: true},
	}
	for _, tt := range tests {
		got, err := normalizeServerURL(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("normalizeServerURL(%q) = %q, want error", tt.in, got)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("normalizeServerURL(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestListModelsSendsToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/models" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		w.Write([]byte(`{"models":[{"provider":"openai","model":"gpt-4","display_name":"GPT-4"}]}`))
	})

	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	want := []ModelInfo{{Provider: "openai", Model: "gpt-4", DisplayName: "GPT-4"}}
	if diff := cmp.Diff(want, models); diff != "" {
		t.Fatalf("models mismatch (-want +got):\n%s", diff)
	}
}

func TestAPIErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"detail string", http.StatusNotFound, `{"detail":"Session not found"}`, "Session not found"},
		{"detail list kept raw", http.StatusUnprocessableEntity, `{"detail":[{"msg":"bad"}]}`, `{"detail":[{"msg":"bad"}]}`},
		{"plain text", http.StatusBadGateway, "upstream down\n", "upstream down"},
		{"empty body", http.StatusInternalServerError, "", "Internal Server Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})
			_, err := client.GetSession(context.Background(), testSessionID)
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("err = %v, want *APIError", err)
			}
			if apiErr.Status != tt.status || apiErr.Message != tt.want {
				t.Fatalf("got %d %q, want %d %q", apiErr.Status, apiErr.Message, tt.status, tt.want)
			}
			if IsNotFound(err) != (tt.status == http.StatusNotFound) {
				t.Fatalf("IsNotFound = %v for %d", IsNotFound(err), tt.status)
			}
		})
	}
}

func TestDeleteSessionNoContent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/api/sessions/"+testSessionID {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	})
	if err := client.DeleteSession(context.Background(), testSessionID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
}

func TestInvalidIDNeverReachesServer(t *testing.T) {
	var hits atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	})
	ctx := context.Background()

	if _, err := client.GetSession(ctx, "../admin"); err == nil {
		t.Error("GetSession accepted a non-uuid id")
	}
	if _, err := client.GetMessages(ctx, ""); err == nil {
		t.Error("GetMessages accepted an empty id")
	}
	if err := client.DeleteFile(ctx, testSessionID, "not-a-file"); err == nil {
		t.Error("DeleteFile accepted a non-uuid file id")
	}
	if n := hits.Load(); n != 0 {
		t.Fatalf("server received %d requests", n)
	}
}

func TestUpdateTitleBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %s", r.Method)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		json.NewEncoder(w).Encode(Session{ID: testSessionID, Title: body["title"]})
	})
	sess, err := client.UpdateTitle(context.Background(), testSessionID, "Renamed")
	if err != nil {
		t.Fatalf("UpdateTitle: %v", err)
	}
	if sess.Title != "Renamed" {
		t.Fatalf("title = %q", sess.Title)
	}
}

func TestUploadContentMultipart(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/sessions/"+testSessionID+"/files" {
			t.Errorf("path = %s", r.URL.Path)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(FileInfo{
			ID:       "f1",
			Filename: header.Filename,
			FileType: "md",
			FileSize: int64(len(data)),
		})
	})

	info, err := client.UploadContent(context.Background(), testSessionID, "notes.md", []byte("# notes"))
	if err != nil {
		t.Fatalf("UploadContent: %v", err)
	}
	want := &FileInfo{ID: "f1", Filename: "notes.md", FileType: "md", FileSize: 7}
	if diff := cmp.Diff(want, info); diff != "" {
		t.Fatalf("file info mismatch (-want +got):\n%s", diff)
	}
	if got := info.Metadata(); got != (FileMetadata{Filename: "notes.md", FileType: "md"}) {
		t.Fatalf("Metadata() = %+v", got)
	}
}

func TestTimeAcceptsNaiveTimestamps(t *testing.T) {
	var msg Message
	payload := `{"id":"m1","role":"assistant","content":"hi","created_at":"2025-06-01T12:30:00.123456"}`
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	want := time.Date(2025, 6, 1, 12, 30, 0, 123456000, time.UTC)
	if !msg.CreatedAt.Equal(want) {
		t.Fatalf("CreatedAt = %v, want %v", msg.CreatedAt.Time, want)
	}
	if msg.Files() != nil {
		t.Fatalf("Files() = %v, want nil", msg.Files())
	}
}
