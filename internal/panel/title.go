package panel

import "strings"

// TitleMaxRunes is the length of a title derived from a first message.
const TitleMaxRunes = 50

// TitleFromMessage returns the title for a chat started with message: its
// first TitleMaxRunes characters with whitespace collapsed. A blank message
// gives "", which lets the backend choose its default title.
func TitleFromMessage(message string) string {
	title := strings.Join(strings.Fields(message), " ")
	r := []rune(title)
	if len(r) > TitleMaxRunes {
		return strings.TrimSpace(string(r[:TitleMaxRunes]))
	}
	return title
}
