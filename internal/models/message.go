package models

import (
	"time"
)

// SenderUser is the reserved sender ID for messages authored by the human user.
const SenderUser = "user"

// PlaceholderContent is the sentinel content of a message whose generation is
// still in flight. A placeholder is always either replaced by a final message
// with the same ID or removed entirely, never left behind.
const PlaceholderContent = "..."

// Message is one entry in a session transcript. The ID is assigned once, at
// placeholder creation time, and reused for the final form, which makes the
// placeholder-to-final transition a keyed replacement rather than an append.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Content    string    `json:"content"`
	ImageURL   string    `json:"image_url,omitempty"`
	VideoURL   string    `json:"video_url,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// IsPlaceholder reports whether the message is a pending generation marker.
func (m Message) IsPlaceholder() bool {
	return m.Content == PlaceholderContent
}

// FromUser reports whether the message was authored by the human user.
func (m Message) FromUser() bool {
	return m.SenderID == SenderUser
}

// TranscriptLine is the sender-name/text pair shape the generation service
// consumes as conversation context.
type TranscriptLine struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// Transcript flattens messages into the sender/text pairs used as generation
// context.
func Transcript(messages []Message) []TranscriptLine {
	lines := make([]TranscriptLine, len(messages))
	for i, m := range messages {
		lines[i] = TranscriptLine{Sender: m.SenderName, Text: m.Content}
	}
	return lines
}
