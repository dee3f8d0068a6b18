package mockserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/floatplane/floatchat/internal/api"
	"github.com/floatplane/floatchat/internal/stream"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestClient(t *testing.T, opts Options) *api.Client {
	t.Helper()
	return serve(t, New(opts), opts.Token)
}

func serve(t *testing.T, s *Server, token string) *api.Client {
	t.Helper()
	srv := httptest.NewServer(s.HTTPHandler())
	t.Cleanup(srv.Close)
	client, err := api.NewClient(srv.URL, token, srv.Client())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func createSession(t *testing.T, client *api.Client) *api.Session {
	t.Helper()
	sess, err := client.CreateSession(context.Background(), api.SessionCreate{LLMProvider: "openai", LLMModel: "gpt-4"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return sess
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New(Options{})
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	client := serve(t, s, "")

	first := createSession(t, client)
	if first.Title != "New Chat" {
		t.Fatalf("default title = %q, want %q", first.Title, "New Chat")
	}

	renamed, err := client.UpdateTitle(ctx, first.ID, "Trip planning")
	if err != nil {
		t.Fatalf("UpdateTitle: %v", err)
	}
	if renamed.Title != "Trip planning" {
		t.Fatalf("title = %q", renamed.Title)
	}

	clone, err := client.CloneSession(ctx, first.ID)
	if err != nil {
		t.Fatalf("CloneSession: %v", err)
	}
	if clone.Title != "Trip planning (Copy)" || clone.LLMModel != "gpt-4" || clone.LLMProvider != "openai" {
		t.Fatalf("clone = %+v", clone)
	}

	list, err := client.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	var ids []string
	for _, sess := range list.Sessions {
		ids = append(ids, sess.ID)
	}
	if diff := cmp.Diff([]string{clone.ID, first.ID}, ids); diff != "" {
		t.Fatalf("session order mismatch (-want +got):\n%s", diff)
	}
	if list.Total != 2 {
		t.Fatalf("total = %d, want 2", list.Total)
	}

	if err := client.DeleteSession(ctx, first.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	_, err = client.GetSession(ctx, first.ID)
	if !api.IsNotFound(err) {
		t.Fatalf("GetSession after delete: err = %v, want not found", err)
	}
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || !strings.Contains(apiErr.Message, "not found") {
		t.Fatalf("error detail not unwrapped: %v", err)
	}
}

func TestRequiresBearerToken(t *testing.T) {
	s := New(Options{Token: "secret"})
	srv := httptest.NewServer(s.HTTPHandler())
	defer srv.Close()

	anon, err := api.NewClient(srv.URL, "", srv.Client())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = anon.ListSessions(context.Background())
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("err = %v, want 401", err)
	}

	authed, err := api.NewClient(srv.URL, "secret", srv.Client())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := authed.ListSessions(context.Background()); err != nil {
		t.Fatalf("authorized ListSessions: %v", err)
	}
}

func TestModels(t *testing.T) {
	client := newTestClient(t, Options{})
	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if diff := cmp.Diff(api.DefaultModels, models); diff != "" {
		t.Fatalf("models mismatch (-want +got):\n%s", diff)
	}
}

func TestFileRules(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, Options{})
	sess := createSession(t, client)

	if _, err := client.UploadContent(ctx, sess.ID, "image.png", []byte("x")); err == nil ||
		!strings.Contains(err.Error(), "Unsupported file type") {
		t.Fatalf("png upload err = %v", err)
	}

	var uploaded []string
	for _, name := range []string{"a.md", "b.txt", "c.PDF"} {
		info, err := client.UploadContent(ctx, sess.ID, name, []byte("content of "+name))
		if err != nil {
			t.Fatalf("upload %s: %v", name, err)
		}
		uploaded = append(uploaded, info.ID)
	}
	if _, err := client.UploadContent(ctx, sess.ID, "d.md", []byte("x")); err == nil ||
		!strings.Contains(err.Error(), "Maximum 3 files") {
		t.Fatalf("fourth upload err = %v", err)
	}

	files, err := client.ListFiles(ctx, sess.ID)
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	var types []string
	for _, f := range files {
		types = append(types, f.FileType)
	}
	if diff := cmp.Diff([]string{"md", "txt", "pdf"}, types); diff != "" {
		t.Fatalf("file types mismatch (-want +got):\n%s", diff)
	}

	if err := client.DeleteFile(ctx, sess.ID, uploaded[0]); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if err := client.DeleteFile(ctx, sess.ID, uploaded[0]); !api.IsNotFound(err) {
		t.Fatalf("second DeleteFile err = %v, want not found", err)
	}
}

func TestStreamPersistsTurn(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, Options{
		Reply: func(api.Session, []api.Message, string) (string, error) {
			return "the quick brown fox", nil
		},
	})
	sess := createSession(t, client)
	ctrl := stream.NewController(client, nil)

	var (
		echo   *api.Message
		deltas []string
		done   *api.Message
	)
	h := ctrl.Start(ctx, api.ChatRequest{
		SessionID:     sess.ID,
		Message:       "hi",
		FilesMetadata: []api.FileMetadata{{Filename: "notes.md", FileType: "md"}},
	})
	h.Consume(stream.Callbacks{
		OnUserMessage:  func(m api.Message) { echo = &m },
		OnContentDelta: func(c string) { deltas = append(deltas, c) },
		OnDone:         func(m api.Message) { done = &m },
		OnError:        func(d string) { t.Errorf("unexpected error event: %s", d) },
	})
	h.Wait()

	if echo == nil || echo.Content != "hi" || len(echo.Files()) != 1 {
		t.Fatalf("echo = %+v", echo)
	}
	if got := strings.Join(deltas, ""); got != "the quick brown fox" {
		t.Fatalf("deltas joined = %q", got)
	}
	if done == nil || done.Role != api.RoleAssistant || done.Content != "the quick brown fox" {
		t.Fatalf("done = %+v", done)
	}

	msgs, err := client.GetMessages(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	var roles []api.Role
	for _, m := range msgs {
		roles = append(roles, m.Role)
	}
	if diff := cmp.Diff([]api.Role{api.RoleUser, api.RoleAssistant}, roles); diff != "" {
		t.Fatalf("history roles mismatch (-want +got):\n%s", diff)
	}
}

func TestStreamReplyFailure(t *testing.T) {
	client := newTestClient(t, Options{
		Reply: func(api.Session, []api.Message, string) (string, error) {
			return "", errors.New("provider unavailable")
		},
	})
	sess := createSession(t, client)
	h := stream.NewController(client, nil).Start(context.Background(), api.ChatRequest{SessionID: sess.ID, Message: "hi"})

	var detail string
	h.Consume(stream.Callbacks{OnError: func(d string) { detail = d }})
	h.Wait()
	if detail != "provider unavailable" {
		t.Fatalf("error detail = %q", detail)
	}
}

func TestStreamUnknownSession(t *testing.T) {
	client := newTestClient(t, Options{})
	h := stream.NewController(client, nil).Start(context.Background(), api.ChatRequest{
		SessionID: "0b8f1e7a-1111-4f4f-9c9c-000000000000",
		Message:   "hi",
	})
	var detail string
	h.Consume(stream.Callbacks{OnError: func(d string) { detail = d }})
	h.Wait()
	if !strings.Contains(detail, "not found") {
		t.Fatalf("error detail = %q, want body text with not found", detail)
	}
}

func TestEchoReply(t *testing.T) {
	sess := api.Session{LLMModel: "gpt-4"}
	got, _ := EchoReply(sess, []api.Message{{Role: api.RoleUser}}, "ping")
	if got != "You said: ping" {
		t.Fatalf("first reply = %q", got)
	}
	got, _ = EchoReply(sess, make([]api.Message, 3), "ping")
	if !strings.Contains(got, "2 earlier messages") {
		t.Fatalf("follow-up reply = %q", got)
	}
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New(Options{})
	ready := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.ListenAndServe(ctx, "127.0.0.1:0", func(a net.Addr) { ready <- a.String() })
	}()

	var addr string
	select {
	case addr = <-ready:
	case err := <-errCh:
		t.Fatalf("ListenAndServe: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server never became ready")
	}

	httpClient := &http.Client{}
	client, err := api.NewClient(addr, "", httpClient)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := client.ListModels(context.Background()); err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	httpClient.CloseIdleConnections()

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("ListenAndServe returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
