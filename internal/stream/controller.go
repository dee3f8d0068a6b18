package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/floatplane/floatchat/internal/api"
	"github.com/floatplane/floatchat/internal/sse"
	"go.uber.org/zap"
)

// ErrIncomplete is reported when the response body ends before a done or
// error event arrives.
var ErrIncomplete = errors.New("stream ended before completion")

var handleSeq atomic.Uint64

// Starter starts streams. *Controller implements it.
type Starter interface {
	Start(ctx context.Context, req api.ChatRequest) *Handle
}

// Controller issues streaming chat requests.
type Controller struct {
	client *api.Client
	logger *zap.Logger
}

// NewController returns a controller that sends requests through client.
func NewController(client *api.Client, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{client: client, logger: logger.Named("stream")}
}

// Handle is one live stream. Events are read with Next in decode order.
type Handle struct {
	id        uint64
	ctx       context.Context
	cancel    context.CancelFunc
	cancelled atomic.Bool
	events    chan Event
	done      chan struct{}
}

func newHandle(parent context.Context) *Handle {
	ctx, cancel := context.WithCancel(parent)
	return &Handle{
		id:     handleSeq.Add(1),
		ctx:    ctx,
		cancel: cancel,
		events: make(chan Event),
		done:   make(chan struct{}),
	}
}

// ID identifies the handle for logging and staleness checks.
func (h *Handle) ID() uint64 {
	return h.id
}

// Cancel aborts the request. It is safe to call more than once and after
// the stream has finished. No event is returned by Next once Cancel returns.
func (h *Handle) Cancel() {
	if h == nil {
		return
	}
	h.cancelled.Store(true)
	h.cancel()
}

// Cancelled reports whether Cancel was called.
func (h *Handle) Cancelled() bool {
	return h.cancelled.Load()
}

// Next blocks until the next event. It returns false once the stream has
// finished or the handle was cancelled.
func (h *Handle) Next() (Event, bool) {
	ev, ok := <-h.events
	if !ok || h.cancelled.Load() {
		return Event{}, false
	}
	return ev, true
}

// Done is closed when the stream goroutine has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the stream goroutine has exited.
func (h *Handle) Wait() {
	<-h.done
}

// Consume reads every event and invokes the matching callback. It returns
// when the stream finishes or is cancelled.
func (h *Handle) Consume(cb Callbacks) {
	d := NewDispatcher(cb)
	for {
		ev, ok := h.Next()
		if !ok {
			return
		}
		d.Dispatch(ev)
	}
}

func (h *Handle) emit(ev Event) {
	if h.ctx.Err() != nil {
		return
	}
	select {
	case h.events <- ev:
	case <-h.ctx.Done():
	}
}

// Start sends req and returns a handle to the streamed reply. The request
// message must be non-empty; it is not re-validated here.
func (c *Controller) Start(ctx context.Context, req api.ChatRequest) *Handle {
	h := newHandle(ctx)
	go c.run(h, req)
	return h
}

func (c *Controller) run(h *Handle, req api.ChatRequest) {
	defer close(h.done)
	defer h.cancel()
	defer close(h.events)

	ctx := h.ctx
	logger := c.logger.With(zap.Uint64("stream", h.id), zap.String("session_id", req.SessionID))
	started := time.Now()

	d := NewDispatcher(Callbacks{
		OnUserMessage:  func(m api.Message) { h.emit(UserMessageEvent(m)) },
		OnContentDelta: func(s string) { h.emit(DeltaEvent(s)) },
		OnDone:         func(m api.Message) { h.emit(DoneEvent(m)) },
		OnError:        func(s string) { h.emit(ErrorEvent(s)) },
	})

	fail := func(err error) {
		if ctx.Err() != nil {
			logger.Debug("stream cancelled", zap.Error(err))
			return
		}
		logger.Warn("stream failed", zap.Error(err))
		d.Dispatch(ErrorEvent(err.Error()))
	}

	body, err := json.Marshal(req)
	if err != nil {
		fail(err)
		return
	}
	httpReq, err := c.client.NewRequest(ctx, http.MethodPost, api.EndpointChatStream, bytes.NewReader(body))
	if err != nil {
		fail(err)
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	logger.Debug("stream starting", zap.Int("files", len(req.FilesMetadata)))
	resp, err := c.client.HTTPClient().Do(httpReq)
	if err != nil {
		fail(err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := api.ErrorText(resp)
		logger.Warn("stream rejected", zap.Int("status", resp.StatusCode), zap.String("detail", detail))
		d.Dispatch(ErrorEvent(detail))
		return
	}

	frames := 0
	err = sse.Read(ctx, resp.Body, func(f sse.Frame) error {
		frames++
		d.HandleFrame(f)
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.Terminated() {
			return sse.ErrStop
		}
		return nil
	})
	if err != nil {
		fail(err)
		return
	}
	if !d.Terminated() {
		fail(ErrIncomplete)
		return
	}
	logger.Debug("stream finished", zap.Int("frames", frames), zap.Duration("elapsed", time.Since(started)))
}
