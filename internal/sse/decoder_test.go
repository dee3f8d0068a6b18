package sse

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/google/go-cmp/cmp"
)

const sampleStream = "event: user_message\n" +
	"data: {\"id\":\"u1\",\"role\":\"user\",\"content\":\"Hi\"}\n\n" +
	"event: content_delta\n" +
	"data: {\"chunk\":\"He\"}\n\n" +
	"event: content_delta\n" +
	"data: {\"chunk\":\"llo\"}\n\n" +
	"event: content_delta\n" +
	"data: {\"chunk\":\"! ✓ naïve\"}\n\n" +
	"event: done\n" +
	"data: {\"message\":{\"id\":\"a1\",\"role\":\"assistant\",\"content\":\"Hello!\"}}\n\n"

var sampleFrames = []Frame{
	{Event: "user_message", Data: `{"id":"u1","role":"user","content":"Hi"}`},
	{Event: "content_delta", Data: `{"chunk":"He"}`},
	{Event: "content_delta", Data: `{"chunk":"llo"}`},
	{Event: "content_delta", Data: `{"chunk":"! ✓ naïve"}`},
	{Event: "done", Data: `{"message":{"id":"a1","role":"assistant","content":"Hello!"}}`},
}

func feedAll(chunks [][]byte) []Frame {
	dec := NewDecoder()
	var frames []Frame
	for _, c := range chunks {
		frames = append(frames, dec.Feed(c)...)
	}
	return frames
}

func TestDecoderWholeStream(t *testing.T) {
	got := feedAll([][]byte{[]byte(sampleStream)})
	if diff := cmp.Diff(sampleFrames, got); diff != "" {
		t.Fatalf("frames mismatch (-want +got):\n%s", diff)
	}
}

func TestDecoderChunkingInvariance_EverySplitPoint(t *testing.T) {
	data := []byte(sampleStream)
	for i := 0; i <= len(data); i++ {
		for j := i; j <= len(data); j += 7 {
			got := feedAll([][]byte{data[:i], data[i:j], data[j:]})
			if diff := cmp.Diff(sampleFrames, got); diff != "" {
				t.Fatalf("split at %d/%d changed frames (-want +got):\n%s", i, j, diff)
			}
		}
	}
}

func TestDecoderChunkingInvariance_RandomSplits(t *testing.T) {
	data := []byte(sampleStream)
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 200; trial++ {
		var chunks [][]byte
		rest := data
		for len(rest) > 0 {
			n := rng.Intn(9) + 1
			if n > len(rest) {
				n = len(rest)
			}
			chunks = append(chunks, rest[:n])
			rest = rest[n:]
		}
		got := feedAll(chunks)
		if diff := cmp.Diff(sampleFrames, got); diff != "" {
			t.Fatalf("trial %d changed frames (-want +got):\n%s", trial, diff)
		}
	}
}

func TestDecoderEmitsWithoutBlankLine(t *testing.T) {
	dec := NewDecoder()
	frames := dec.Feed([]byte("event: content_delta\ndata: {\"chunk\":\"a\"}\n"))
	if len(frames) != 1 {
		t.Fatalf("expected frame before blank separator, got %d", len(frames))
	}
}

func TestDecoderEventTypePersists(t *testing.T) {
	dec := NewDecoder()
	var frames []Frame
	frames = append(frames, dec.Feed([]byte("event: content_delta\n"))...)
	frames = append(frames, dec.Feed([]byte("data: {\"chunk\":\"a\"}\n"))...)
	frames = append(frames, dec.Feed([]byte("data: {\"chunk\":\"b\"}\n"))...)
	frames = append(frames, dec.Feed([]byte("event: done\ndata: {}\n"))...)

	want := []Frame{
		{Event: "content_delta", Data: `{"chunk":"a"}`},
		{Event: "content_delta", Data: `{"chunk":"b"}`},
		{Event: "done", Data: `{}`},
	}
	if diff := cmp.Diff(want, frames); diff != "" {
		t.Fatalf("frames mismatch (-want +got):\n%s", diff)
	}
}

func TestDecoderDropsMalformedJSON(t *testing.T) {
	dec := NewDecoder()
	frames := dec.Feed([]byte("event: content_delta\ndata: {\"chunk\":\ndata: {\"chunk\":\"ok\"}\n"))
	want := []Frame{{Event: "content_delta", Data: `{"chunk":"ok"}`}}
	if diff := cmp.Diff(want, frames); diff != "" {
		t.Fatalf("frames mismatch (-want +got):\n%s", diff)
	}
	if dec.Dropped() != 1 {
		t.Fatalf("dropped=%d, want 1", dec.Dropped())
	}
}

func TestDecoderToleratesCRLF(t *testing.T) {
	dec := NewDecoder()
	frames := dec.Feed([]byte("event: done\r\ndata: {\"message\":null}\r\n\r\n"))
	want := []Frame{{Event: "done", Data: `{"message":null}`}}
	if diff := cmp.Diff(want, frames); diff != "" {
		t.Fatalf("frames mismatch (-want +got):\n%s", diff)
	}
}

func TestDecoderIgnoresCommentsAndUnknownFields(t *testing.T) {
	dec := NewDecoder()
	frames := dec.Feed([]byte(": keepalive\nid: 7\nretry: 100\ndata:{\"x\":1}\n"))
	if len(frames) != 0 {
		t.Fatalf("expected no frames, got %+v", frames)
	}
}

func TestDecoderHoldsPartialLine(t *testing.T) {
	dec := NewDecoder()
	if frames := dec.Feed([]byte("event: content_delta\ndata: {\"chu")); len(frames) != 0 {
		t.Fatalf("expected no frames from partial line, got %+v", frames)
	}
	if dec.Pending() != len("data: {\"chu") {
		t.Fatalf("pending=%d", dec.Pending())
	}
	frames := dec.Feed([]byte("nk\":\"x\"}\n"))
	if len(frames) != 1 || frames[0].Data != `{"chunk":"x"}` {
		t.Fatalf("unexpected frames %+v", frames)
	}
	if dec.Pending() != 0 {
		t.Fatalf("pending=%d after complete line", dec.Pending())
	}
}

func TestReadDiscardsTrailingPartialLine(t *testing.T) {
	input := "event: content_delta\ndata: {\"chunk\":\"a\"}\ndata: {\"chunk\":\"b\"}"
	var got []Frame
	err := Read(context.Background(), iotest.OneByteReader(strings.NewReader(input)), func(f Frame) error {
		got = append(got, f)
		return nil
	})
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	want := []Frame{{Event: "content_delta", Data: `{"chunk":"a"}`}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("frames mismatch (-want +got):\n%s", diff)
	}
}

func TestReadStopsOnErrStop(t *testing.T) {
	var count int
	err := Read(context.Background(), strings.NewReader(sampleStream), func(f Frame) error {
		count++
		if f.Event == "content_delta" {
			return ErrStop
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if count != 2 {
		t.Fatalf("callback count=%d, want 2", count)
	}
}

func TestReadPropagatesCallbackAndReaderErrors(t *testing.T) {
	boom := errors.New("boom")
	err := Read(context.Background(), strings.NewReader(sampleStream), func(Frame) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}

	err = Read(context.Background(), iotest.ErrReader(boom), func(Frame) error { return nil })
	if !errors.Is(err, boom) {
		t.Fatalf("expected reader error, got %v", err)
	}
}

func TestReadHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Read(ctx, strings.NewReader(sampleStream), func(Frame) error {
		t.Fatal("callback must not run after cancellation")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
