// Package sse decodes the line-oriented event stream returned by the chat
// backend.
//
// The decoder is lenient: every "data: " line is emitted as a frame as soon
// as its line is complete, without waiting for the blank separator line that
// strict server-sent events require. The backend always writes one data line
// per event, so this is the framing it relies on.
package sse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
)

const (
	eventPrefix = "event: "
	dataPrefix  = "data: "

	readChunkSize = 4096
)

// Frame is one decoded event.
type Frame struct {
	Event string
	Data  string
}

// Decoder reassembles frames from arbitrarily split chunks of a stream.
// It is not safe for concurrent use.
type Decoder struct {
	buf     []byte
	event   string
	dropped int
}

// NewDecoder returns an empty decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends chunk to the buffer and returns the frames completed by it,
// in stream order. The trailing partial line is kept for the next call.
func (d *Decoder) Feed(chunk []byte) []Frame {
	d.buf = append(d.buf, chunk...)

	var frames []Frame
	for {
		idx := bytes.IndexByte(d.buf, '\n')
		if idx < 0 {
			break
		}
		line := d.buf[:idx]
		d.buf = d.buf[idx+1:]
		if frame, ok := d.parseLine(line); ok {
			frames = append(frames, frame)
		}
	}

	// Drop the consumed prefix so the backing array does not grow forever.
	if len(d.buf) == 0 {
		d.buf = d.buf[:0:0]
	}
	return frames
}

func (d *Decoder) parseLine(line []byte) (Frame, bool) {
	line = bytes.TrimSuffix(line, []byte("\r"))
	switch {
	case bytes.HasPrefix(line, []byte(eventPrefix)):
		d.event = string(line[len(eventPrefix):])
		return Frame{}, false
	case bytes.HasPrefix(line, []byte(dataPrefix)):
		data := line[len(dataPrefix):]
		if !json.Valid(data) {
			d.dropped++
			return Frame{}, false
		}
		return Frame{Event: d.event, Data: string(data)}, true
	default:
		return Frame{}, false
	}
}

// Pending returns the number of buffered bytes not yet forming a line.
func (d *Decoder) Pending() int {
	return len(d.buf)
}

// Dropped returns how many data lines were discarded as malformed.
func (d *Decoder) Dropped() int {
	return d.dropped
}

// Reset clears the buffer and the current event type.
func (d *Decoder) Reset() {
	d.buf = nil
	d.event = ""
	d.dropped = 0
}

// ErrStop may be returned by a Read callback to stop reading without error.
var ErrStop = errors.New("sse: stop")

// Read pumps r through a new decoder until EOF, calling fn for each frame.
// A partial line left at EOF is discarded. If fn returns ErrStop, Read
// returns nil; any other error from fn is returned as is.
func Read(ctx context.Context, r io.Reader, fn func(Frame) error) error {
	dec := NewDecoder()
	buf := make([]byte, readChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf)
		if n > 0 {
			for _, frame := range dec.Feed(buf[:n]) {
				if ferr := fn(frame); ferr != nil {
					if errors.Is(ferr, ErrStop) {
						return nil
					}
					return ferr
				}
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
