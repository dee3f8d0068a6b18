package panel

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTitleFromMessage(t *testing.T) {
	long := strings.Repeat("abcdefghij", 6)
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "blank", in: "   ", want: ""},
		{name: "short", in: "What is SSE?", want: "What is SSE?"},
		{name: "collapses whitespace", in: "two\n\nlines  here", want: "two lines here"},
		{name: "cut at fifty", in: long, want: long[:50]},
		{name: "trailing space trimmed", in: strings.Repeat("a", 49) + " tail", want: strings.Repeat("a", 49)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TitleFromMessage(tt.in); got != tt.want {
				t.Fatalf("TitleFromMessage(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	got := TitleFromMessage(strings.Repeat("é", 80))
	if n := utf8.RuneCountInString(got); n != TitleMaxRunes {
		t.Fatalf("multibyte title has %d runes, want %d", n, TitleMaxRunes)
	}
}
