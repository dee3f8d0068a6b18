package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// StreamRenderer renders a reply that is still growing. Blocks that are
// closed by a blank line outside a code fence cannot change any more, so
// they are rendered once and only the open tail is rendered per frame.
type StreamRenderer struct {
	width    int
	scan     blockScanner
	seen     string
	source   string
	rendered string
}

func NewStreamRenderer(width int) *StreamRenderer {
	return &StreamRenderer{width: width}
}

// Render returns the rendering of text. text is expected to extend the
// previous call's text; anything else starts over.
func (r *StreamRenderer) Render(text string, width int) string {
	if width != r.width || !strings.HasPrefix(text, r.seen) {
		r.Reset()
		r.width = width
	}
	r.seen = text
	if cut := r.scan.advance(text); cut > len(r.source) {
		r.source = text[:cut]
		r.rendered = RenderMarkdown(r.source, r.width)
	}

	tail := RenderMarkdown(text[len(r.source):], r.width)
	switch {
	case r.rendered == "":
		return tail
	case tail == "":
		return r.rendered
	}
	return r.rendered + "\n\n" + tail
}

func (r *StreamRenderer) Reset() {
	r.scan = blockScanner{}
	r.seen = ""
	r.source = ""
	r.rendered = ""
}

// StableMarkdownPrefix returns the length of the longest prefix of text
// that ends on a block boundary, or 0 when no block is closed yet.
func StableMarkdownPrefix(text string) int {
	var s blockScanner
	return s.advance(text)
}

type blockScanner struct {
	pos   int    // start of the next unscanned line
	fence string // open fence marker, empty outside code
	cut   int    // end of the last closed block
}

// advance scans the complete lines of text past pos. A trailing partial
// line is left for the next call.
func (s *blockScanner) advance(text string) int {
	for {
		end := strings.IndexByte(text[s.pos:], '\n')
		if end < 0 {
			return s.cut
		}
		line := strings.TrimLeft(text[s.pos:s.pos+end], " \t")
		s.pos += end + 1

		switch {
		case s.fence != "":
			if strings.HasPrefix(line, s.fence) {
				s.fence = ""
			}
		case strings.HasPrefix(line, "```"):
			s.fence = "```"
		case strings.HasPrefix(line, "~~~"):
			s.fence = "~~~"
		case strings.TrimSpace(line) == "" && s.pos > 1:
			s.cut = s.pos
		}
	}
}

// StreamStatus is the one-line indicator shown while a reply is pending.
type StreamStatus struct {
	Spinner    string // spinner.View() output
	Phase      string // "Sending", "Thinking"
	Elapsed    time.Duration
	Chars      int // 0 = don't show
	ShowCancel bool
}

func (s StreamStatus) Render(muted lipgloss.Style) string {
	var b strings.Builder
	b.WriteString(s.Spinner)
	b.WriteString(" ")
	b.WriteString(s.Phase)
	b.WriteString("...")
	if s.Chars > 0 {
		fmt.Fprintf(&b, " %d chars |", s.Chars)
	}
	fmt.Fprintf(&b, " %.1fs", s.Elapsed.Seconds())
	if s.ShowCancel {
		b.WriteString(" ")
		b.WriteString(muted.Render("(esc to cancel)"))
	}
	return b.String()
}
