package transcript

import (
	"fmt"
	"strings"
	"time"
)

// Entry is a single recognized utterance within a session. Entries are
// created by the session listener and never mutated afterwards.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
	Language  string    `json:"language"`
	SessionID string    `json:"session_id"`
	Speaker   int       `json:"speaker"`
}

// SpeakerFor maps a zero-based utterance index to a 1-based speaker id by
// round-robin over speakerCount slots. A speakerCount below 1 is treated
// as a single speaker.
func SpeakerFor(index, speakerCount int) int {
	if speakerCount < 1 {
		speakerCount = 1
	}
	return index%speakerCount + 1
}

// FormatConversation renders entries as a conversation, one
// "Speaker N: text" block per entry separated by blank lines.
// It reads the speaker id stored on each entry rather than recomputing it.
func FormatConversation(entries []Entry) string {
	var sb strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&sb, "Speaker %d: %s\n\n", e.Speaker, e.Text)
	}
	return strings.TrimSpace(sb.String())
}

// Excerpt returns the first max runes of s, used to bound the context sent
// for title derivation.
func Excerpt(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
