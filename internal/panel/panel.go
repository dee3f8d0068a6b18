// Package panel holds the client-side state of one chat session: history,
// input, attachments and the live stream. It is driven from a single
// goroutine; events read from a stream handle are fed back through Apply.
package panel

import (
	"context"
	"errors"
	"strings"

	"github.com/floatplane/floatchat/internal/api"
	"github.com/floatplane/floatchat/internal/draft"
	"github.com/floatplane/floatchat/internal/stream"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// State is the send/stream lifecycle of the panel.
type State int

const (
	StateIdle State = iota
	StateSending
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

var (
	// ErrEmptyMessage is returned when the input is blank after trimming.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrBusy is returned by Submit while a send or stream is in flight.
	ErrBusy = errors.New("a reply is still streaming")
	// ErrClosed is returned once Teardown has run.
	ErrClosed = errors.New("panel is closed")
)

// Source loads the persisted state of a session.
type Source interface {
	GetMessages(ctx context.Context, sessionID string) ([]api.Message, error)
	ListFiles(ctx context.Context, sessionID string) ([]api.FileInfo, error)
}

// Options configures a Panel. Starter is required; the rest may be nil.
type Options struct {
	SessionID string
	Starter   stream.Starter
	Source    Source
	Drafts    draft.Store
	Logger    *zap.Logger
	// Telemetry enables per-reply stream statistics in the log.
	Telemetry bool
}

type sendSnapshot struct {
	text        string
	attachments []api.FileInfo
}

// Panel is the chat state machine for one session. It is not safe for
// concurrent use.
type Panel struct {
	sessionID string
	starter   stream.Starter
	source    Source
	drafts    draft.Store
	logger    *zap.Logger

	state       State
	messages    []api.Message
	files       []api.FileInfo
	input       string
	attachments []api.FileInfo
	streaming   strings.Builder
	errText     string

	handle   *stream.Handle
	snapshot sendSnapshot
	stats    *streamStats
	closed   bool
}

// New returns an idle panel for opts.SessionID.
func New(opts Options) *Panel {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	drafts := opts.Drafts
	if drafts == nil {
		drafts = &draft.NoopStore{}
	}
	p := &Panel{
		sessionID: opts.SessionID,
		starter:   opts.Starter,
		source:    opts.Source,
		drafts:    drafts,
		logger:    logger.Named("panel").With(zap.String("session_id", opts.SessionID)),
	}
	if opts.Telemetry {
		p.stats = newStreamStats(p.logger)
	}
	return p
}

func (p *Panel) SessionID() string { return p.sessionID }
func (p *Panel) State() State { return p.state }
func (p *Panel) Busy() bool { return p.state != StateIdle }
func (p *Panel) Messages() []api.Message { return p.messages }
func (p *Panel) Files() []api.FileInfo { return p.files }
func (p *Panel) Attachments() []api.FileInfo { return p.attachments }
func (p *Panel) Input() string { return p.input }
func (p *Panel) Streaming() string { return p.streaming.String() }
func (p *Panel) Err() string { return p.errText }
func (p *Panel) Closed() bool { return p.closed }
func (p *Panel) Handle() *stream.Handle { return p.handle }
func (p *Panel) SetInput(text string) { p.input = text }

// Load fetches history and the session file list, then restores the saved
// draft. A failure to list files only loses the draft attachments.
func (p *Panel) Load(ctx context.Context) error {
	if p.source == nil {
		return p.restoreDraft(ctx)
	}

	var messages []api.Message
	var files []api.FileInfo
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := p.source.GetMessages(gctx, p.sessionID)
		if err != nil {
			return err
		}
		messages = m
		return nil
	})
	g.Go(func() error {
		f, err := p.source.ListFiles(gctx, p.sessionID)
		if err != nil {
			p.logger.Warn("list files failed", zap.Error(err))
			return nil
		}
		files = f
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	p.messages = messages
	p.files = files
	return p.restoreDraft(ctx)
}

func (p *Panel) restoreDraft(ctx context.Context) error {
	d, err := p.drafts.Get(ctx, p.sessionID)
	if err != nil {
		p.logger.Warn("load draft failed", zap.Error(err))
		return nil
	}
	if d == nil {
		return nil
	}
	p.input = d.Message
	p.attachments = p.resolveFiles(d.FileIDs)
	return nil
}

// resolveFiles maps ids to known session files, in id order. Unknown ids
// are dropped.
func (p *Panel) resolveFiles(ids []string) []api.FileInfo {
	var out []api.FileInfo
	for _, id := range ids {
		for _, f := range p.files {
			if f.ID == id {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

// AddFile records a newly uploaded session file and attaches it.
func (p *Panel) AddFile(f api.FileInfo) {
	p.files = append(p.files, f)
	p.Attach(f)
}

// RemoveFile forgets a deleted session file.
func (p *Panel) RemoveFile(id string) {
	p.files = removeFile(p.files, id)
	p.attachments = removeFile(p.attachments, id)
}

// Attach selects f for the next send. Attaching twice is a no-op.
func (p *Panel) Attach(f api.FileInfo) {
	for _, a := range p.attachments {
		if a.ID == f.ID {
			return
		}
	}
	p.attachments = append(p.attachments, f)
}

// Detach removes the file with id from the next send.
func (p *Panel) Detach(id string) {
	p.attachments = removeFile(p.attachments, id)
}

func removeFile(files []api.FileInfo, id string) []api.FileInfo {
	out := files[:0:0]
	for _, f := range files {
		if f.ID != id {
			out = append(out, f)
		}
	}
	return out
}

// Submit sends the current input. It is refused while a reply is in flight.
func (p *Panel) Submit(ctx context.Context) (*stream.Handle, error) {
	if p.closed {
		return nil, ErrClosed
	}
	if p.state != StateIdle {
		return nil, ErrBusy
	}
	return p.Send(ctx, p.input)
}

// Send sends text, cancelling any stream still in flight. Only the newest
// handle is ever applied.
func (p *Panel) Send(ctx context.Context, text string) (*stream.Handle, error) {
	if p.closed {
		return nil, ErrClosed
	}
	message := strings.TrimSpace(text)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	if p.handle != nil {
		p.logger.Debug("superseding stream", zap.Uint64("stream", p.handle.ID()))
		p.handle.Cancel()
		p.handle = nil
	}

	p.errText = ""
	p.streaming.Reset()
	p.snapshot = sendSnapshot{
		text:        message,
		attachments: append([]api.FileInfo(nil), p.attachments...),
	}
	p.input = ""
	if err := p.drafts.Clear(ctx, p.sessionID); err != nil {
		p.logger.Warn("clear draft failed", zap.Error(err))
	}

	req := api.ChatRequest{SessionID: p.sessionID, Message: message}
	for _, f := range p.snapshot.attachments {
		req.FilesMetadata = append(req.FilesMetadata, f.Metadata())
	}

	p.state = StateSending
	p.handle = p.starter.Start(ctx, req)
	if p.stats != nil {
		p.stats.begin(p.handle.ID())
	}
	return p.handle, nil
}

// Apply folds ev from h into the panel. Events from any handle other than
// the live one are ignored. It reports whether the panel changed.
func (p *Panel) Apply(h *stream.Handle, ev stream.Event) bool {
	if p.closed || h == nil || h != p.handle {
		return false
	}

	switch ev.Type {
	case stream.EventUserMessage:
		if ev.Message != nil {
			p.messages = append(p.messages, *ev.Message)
		}
		p.attachments = nil
		p.state = StateStreaming
	case stream.EventContentDelta:
		p.streaming.WriteString(ev.Chunk)
		p.state = StateStreaming
		if p.stats != nil {
			p.stats.delta(len(ev.Chunk))
		}
	case stream.EventDone:
		p.streaming.Reset()
		if ev.Message != nil {
			p.messages = append(p.messages, *ev.Message)
		}
		p.settle("done")
	case stream.EventError:
		p.streaming.Reset()
		p.errText = ev.Detail
		p.input = p.snapshot.text
		p.attachments = p.snapshot.attachments
		p.settle("error")
	default:
		return false
	}
	return true
}

// Finish is called when h's event sequence ends. A live handle that ended
// without a terminal event was cancelled; the panel returns to idle.
func (p *Panel) Finish(h *stream.Handle) {
	if p.closed || h == nil || h != p.handle {
		return
	}
	p.streaming.Reset()
	p.settle("cancelled")
}

// Cancel stops the live stream. It is not an error: nothing is shown. When
// the server has not yet echoed the message, the input is restored.
func (p *Panel) Cancel() {
	if p.handle == nil {
		return
	}
	p.handle.Cancel()
	if p.state == StateSending {
		p.input = p.snapshot.text
		p.attachments = p.snapshot.attachments
	}
	p.streaming.Reset()
	p.settle("cancelled")
}

func (p *Panel) settle(outcome string) {
	if p.stats != nil {
		p.stats.end(outcome)
	}
	p.state = StateIdle
	p.handle = nil
	p.snapshot = sendSnapshot{}
}

// SaveDraft persists the current input and attachments. Failures are logged.
func (p *Panel) SaveDraft(ctx context.Context) {
	d := draft.Draft{Message: p.input}
	for _, f := range p.attachments {
		d.FileIDs = append(d.FileIDs, f.ID)
	}
	if err := p.drafts.Save(ctx, p.sessionID, d); err != nil {
		p.logger.Warn("save draft failed", zap.Error(err))
	}
}

// Teardown cancels any live stream and saves the draft. The panel ignores
// all later events.
func (p *Panel) Teardown(ctx context.Context) {
	if p.closed {
		return
	}
	if p.handle != nil {
		p.handle.Cancel()
		p.handle = nil
	}
	p.state = StateIdle
	p.streaming.Reset()
	p.SaveDraft(ctx)
	p.closed = true
}
