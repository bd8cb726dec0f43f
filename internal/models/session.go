package models

import (
	"time"
)

// ChatSession is the canonical snapshot of one conversation. Sessions are
// treated as immutable values: every mutation produces a new session derived
// from the previous one, and the latest value is pushed outward wholesale.
// They are persisted as JSON documents in the key-value store, not as rows.
type ChatSession struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Participants  []string  `json:"participants"`
	Messages      []Message `json:"messages"`
	BackgroundURL string    `json:"background_url,omitempty"`
	IsNSFW        bool      `json:"is_nsfw"`
	LastUpdated   time.Time `json:"last_updated"`
}

// Clone returns a deep enough copy for derive-and-commit mutation: the
// message slice is copied so appends and keyed replacements never alias the
// previous snapshot.
func (s ChatSession) Clone() ChatSession {
	copied := s
	copied.Messages = make([]Message, len(s.Messages))
	copy(copied.Messages, s.Messages)
	copied.Participants = make([]string, len(s.Participants))
	copy(copied.Participants, s.Participants)
	return copied
}

// LastSenderID returns the sender of the most recent message, or SenderUser
// when the transcript is empty.
func (s ChatSession) LastSenderID() string {
	if len(s.Messages) == 0 {
		return SenderUser
	}
	return s.Messages[len(s.Messages)-1].SenderID
}

type CreateSessionRequest struct {
	Name         string   `json:"name" binding:"required"`
	Participants []string `json:"participants" binding:"required,min=1"`
}
