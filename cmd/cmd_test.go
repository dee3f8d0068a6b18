package cmd

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/floatplane/floatchat/internal/api"
	"github.com/floatplane/floatchat/internal/config"
	"github.com/floatplane/floatchat/internal/exitcode"
	"github.com/floatplane/floatchat/internal/mockserver"
	"github.com/floatplane/floatchat/internal/stream"
	"github.com/google/go-cmp/cmp"
)

func TestParseModelFlag(t *testing.T) {
	models := []api.ModelInfo{
		{Provider: "openai", Model: "gpt-4"},
		{Provider: "azure", Model: "gpt-4"},
		{Provider: "anthropic", Model: "claude-sonnet-4-20250514"},
		{Provider: "google", Model: "gemini/gemini-2.5-flash"},
	}
	tests := []struct {
		flag    string
		want    api.ModelInfo
		wantErr bool
	}{
		{flag: "openai/gpt-4", want: models[0]},
		{flag: "claude-sonnet-4-20250514", want: models[2]},
		{flag: "google/gemini/gemini-2.5-flash", want: models[3]},
		{flag: "mistral/large", want: api.ModelInfo{Provider: "mistral", Model: "large"}},
		{flag: "gpt-4", wantErr: true},
		{flag: "unknown", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseModelFlag(tt.flag, models)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseModelFlag(%q) = %+v, want error", tt.flag, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseModelFlag(%q) error = %v", tt.flag, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseModelFlag(%q) = %+v, want %+v", tt.flag, got, tt.want)
		}
	}
}

func TestPreferredModelFromConfig(t *testing.T) {
	orig := cfg
	t.Cleanup(func() { cfg = orig })
	cfg = config.Default()
	cfg.Model = config.ModelConfig{Provider: "anthropic", Name: "claude-sonnet-4-20250514"}

	got, err := preferredModel(api.DefaultModels, "")
	if err != nil {
		t.Fatal(err)
	}
	if got.DisplayName != "Anthropic / Claude Sonnet 4" {
		t.Fatalf("got %+v, want the listed model", got)
	}

	cfg.Model = config.ModelConfig{Provider: "local", Name: "llama"}
	got, _ = preferredModel(api.DefaultModels, "")
	if got.Provider != "local" || got.Model != "llama" {
		t.Fatalf("unlisted configured model = %+v", got)
	}
}

func TestFormatRelativeTime(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{5 * time.Minute, "5m ago"},
		{3 * time.Hour, "3h ago"},
		{50 * time.Hour, "2d ago"},
	}
	for _, tt := range tests {
		if got := formatRelativeTime(now.Add(-tt.ago), now); got != tt.want {
			t.Errorf("formatRelativeTime(-%v) = %q, want %q", tt.ago, got, tt.want)
		}
	}
	if got := formatRelativeTime(time.Time{}, now); got != "-" {
		t.Errorf("zero time = %q", got)
	}
}

func TestPrintSessionTable(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	sessions := []api.Session{
		{ID: "0b5c7c1e-0000-4000-8000-000000000001", Title: "日本語のタイトル", LLMModel: "gpt-4", UpdatedAt: api.Time{Time: now.Add(-2 * time.Minute)}},
		{ID: "0b5c7c1e-0000-4000-8000-000000000002", Title: strings.Repeat("long title ", 10), LLMModel: "gemini/gemini-2.5-flash", UpdatedAt: api.Time{Time: now}},
	}
	var buf bytes.Buffer
	printSessionTable(&buf, sessions, now)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[2], "2m ago") || !strings.HasSuffix(lines[2], "日本語のタイトル") {
		t.Fatalf("row = %q", lines[2])
	}
	if !strings.HasSuffix(lines[3], "...") {
		t.Fatalf("long title not truncated: %q", lines[3])
	}
	// Title columns start at the same offset regardless of content.
	if strings.Index(lines[2], "日本語") != strings.Index(lines[3], "long title") {
		t.Fatalf("columns misaligned:\n%s", buf.String())
	}
}

func TestTranscriptMarkdown(t *testing.T) {
	sess := &api.Session{ID: "s1", Title: "Trip", LLMProvider: "openai", LLMModel: "gpt-4"}
	messages := []api.Message{
		{Role: api.RoleUser, Content: "Plan a trip", Metadata: &api.MessageMetadata{Files: []api.FileMetadata{{Filename: "itinerary.md", FileType: "md"}}}},
		{Role: api.RoleAssistant, Content: "Sure."},
	}
	md := transcriptMarkdown(sess, messages)
	for _, want := range []string{"# Trip", "**Model:** openai/gpt-4", "## You\n\nPlan a trip", "`itinerary.md` (md)", "## Assistant\n\nSure."} {
		if !strings.Contains(md, want) {
			t.Errorf("transcript missing %q:\n%s", want, md)
		}
	}
	if md := transcriptMarkdown(sess, nil); !strings.Contains(md, "_No messages yet._") {
		t.Errorf("empty transcript = %q", md)
	}
}

func TestExportFilename(t *testing.T) {
	if got := exportFilename(&api.Session{ID: "abc", Title: "a/b: c?"}); got != "a-b- c-.md" {
		t.Fatalf("got %q", got)
	}
	if got := exportFilename(&api.Session{ID: "abc", Title: "  "}); got != "abc.md" {
		t.Fatalf("got %q", got)
	}
}

func TestFindFile(t *testing.T) {
	files := []api.FileInfo{
		{ID: "f1", Filename: "notes.md"},
		{ID: "f2", Filename: "report.pdf"},
		{ID: "f3", Filename: "report.pdf"},
	}
	if f, err := findFile(files, "f2"); err != nil || f.ID != "f2" {
		t.Fatalf("by id = %+v, %v", f, err)
	}
	if f, err := findFile(files, "NOTES.md"); err != nil || f.ID != "f1" {
		t.Fatalf("by name = %+v, %v", f, err)
	}
	if _, err := findFile(files, "report.pdf"); err == nil {
		t.Fatal("expected ambiguity error")
	}
	if _, err := findFile(files, "missing.txt"); err == nil {
		t.Fatal("expected not found error")
	}
}

func TestStreamReplyRaw(t *testing.T) {
	starter := stream.NewMockStarter().AddTextResponse("Hello from the model")
	var buf bytes.Buffer
	p := &replyPrinter{out: &buf}

	msg, err := streamReply(context.Background(), starter, api.ChatRequest{SessionID: "s1", Message: "hi"}, p)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Content != "Hello from the model" {
		t.Fatalf("final = %+v", msg)
	}
	if diff := cmp.Diff("Hello from the model\n", buf.String()); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestStreamReplyRendered(t *testing.T) {
	starter := stream.NewMockStarter().AddTextResponse("# Title\n\nbody")
	var buf bytes.Buffer
	p := &replyPrinter{out: &buf, render: true, width: 60}

	if _, err := streamReply(context.Background(), starter, api.ChatRequest{SessionID: "s1", Message: "hi"}, p); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "# Title") {
		t.Fatalf("markdown was not rendered: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "body") {
		t.Fatalf("rendered output lost the body: %q", buf.String())
	}
}

func TestStreamReplyError(t *testing.T) {
	starter := stream.NewMockStarter().AddError("rate limited")
	var buf bytes.Buffer

	_, err := streamReply(context.Background(), starter, api.ChatRequest{SessionID: "s1", Message: "hi"}, &replyPrinter{out: &buf})
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("err = %v", err)
	}
}

// signalWriter closes wrote on the first write.
type signalWriter struct {
	bytes.Buffer
	once  sync.Once
	wrote chan struct{}
}

func (w *signalWriter) Write(p []byte) (int, error) {
	n, err := w.Buffer.Write(p)
	w.once.Do(func() { close(w.wrote) })
	return n, err
}

func TestStreamReplyCancelled(t *testing.T) {
	starter := stream.NewMockStarter().AddTurn(stream.MockTurn{Text: "partial", Hold: true})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := &signalWriter{wrote: make(chan struct{})}

	go func() {
		<-w.wrote
		cancel()
	}()
	_, err := streamReply(ctx, starter, api.ChatRequest{SessionID: "s1", Message: "hi"}, &replyPrinter{out: w})

	var exitErr exitcode.ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != exitcode.Cancelled {
		t.Fatalf("err = %v, want cancel exit code", err)
	}
}

func writeTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "drafts:\n  backend: memory\nlog:\n  level: \"off\"\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCLI(t *testing.T, serverURL string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(append([]string{"--config", writeTestConfig(t), "--server", serverURL}, args...))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestCommandsAgainstMockServer(t *testing.T) {
	srv := httptest.NewServer(mockserver.New(mockserver.Options{}).HTTPHandler())
	t.Cleanup(srv.Close)

	out, errOut, err := runCLI(t, srv.URL, "send", "hello", "world")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.HasPrefix(out, "You said: hello world") {
		t.Fatalf("send output = %q", out)
	}
	id := strings.TrimSpace(strings.TrimPrefix(errOut, "session:"))
	if id == "" {
		t.Fatalf("send did not report the session: %q", errOut)
	}

	out, _, err = runCLI(t, srv.URL, "sessions", "list")
	if err != nil {
		t.Fatalf("sessions list: %v", err)
	}
	if !strings.Contains(out, id) || !strings.Contains(out, "hello world") {
		t.Fatalf("list output = %q", out)
	}

	if _, _, err = runCLI(t, srv.URL, "sessions", "rename", id, "Greetings"); err != nil {
		t.Fatalf("sessions rename: %v", err)
	}
	out, _, err = runCLI(t, srv.URL, "sessions", "show", "--raw", id)
	if err != nil {
		t.Fatalf("sessions show: %v", err)
	}
	if !strings.Contains(out, "# Greetings") || !strings.Contains(out, "## Assistant\n\nYou said: hello world") {
		t.Fatalf("show output = %q", out)
	}

	if _, _, err = runCLI(t, srv.URL, "sessions", "delete", "--yes", id); err != nil {
		t.Fatalf("sessions delete: %v", err)
	}
	out, _, err = runCLI(t, srv.URL, "sessions", "list")
	if err != nil {
		t.Fatalf("sessions list: %v", err)
	}
	if !strings.Contains(out, "No chats found.") {
		t.Fatalf("list after delete = %q", out)
	}
}

func TestModelsCommand(t *testing.T) {
	models := []api.ModelInfo{{Provider: "local", Model: "llama", DisplayName: "Local Llama"}}
	srv := httptest.NewServer(mockserver.New(mockserver.Options{Models: models}).HTTPHandler())
	t.Cleanup(srv.Close)

	out, _, err := runCLI(t, srv.URL, "models")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "local/llama") || strings.Contains(out, "gpt-4") {
		t.Fatalf("models output = %q", out)
	}

	empty := httptest.NewServer(mockserver.New(mockserver.Options{Models: []api.ModelInfo{}}).HTTPHandler())
	t.Cleanup(empty.Close)
	out, _, err = runCLI(t, empty.URL, "models")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No models available.") {
		t.Fatalf("empty models output = %q", out)
	}
}
