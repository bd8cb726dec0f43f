package orchestrator

import (
	"sync"
	"time"

	"ensemble-chat/backend/internal/models"
)

// CommitHook receives every committed session value, in commit order. It is
// invoked with the cell lock held so that persistence and presentation see
// commits in the same order they happened.
type CommitHook func(session models.ChatSession)

// Cell is the versioned holder of one session's canonical state. Every
// writer derives a new session value from the latest committed one inside
// Update, so a commit can never clobber fields written by a concurrent
// writer working from a stale snapshot: conflicting writers re-derive from
// the latest version instead of overwriting it wholesale.
type Cell struct {
	mu      sync.Mutex
	version uint64
	session models.ChatSession
	onCommit CommitHook
}

// NewCell wraps a session snapshot. The hook may be nil.
func NewCell(session models.ChatSession, onCommit CommitHook) *Cell {
	return &Cell{session: session, onCommit: onCommit}
}

// Load returns the latest committed session value and its version.
func (c *Cell) Load() (models.ChatSession, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session, c.version
}

// Snapshot returns the latest committed session value.
func (c *Cell) Snapshot() models.ChatSession {
	s, _ := c.Load()
	return s
}

// Update derives a new session value from the latest committed one and
// commits it. The derive function receives a clone, so it may mutate its
// argument freely. The committed value is returned.
func (c *Cell) Update(derive func(*models.ChatSession)) models.ChatSession {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.session.Clone()
	derive(&next)
	next.LastUpdated = time.Now()

	c.session = next
	c.version++
	if c.onCommit != nil {
		c.onCommit(next)
	}
	return next
}

// Derivation helpers shared by the pipeline, the media workflow and the
// background updater. Each one is keyed, so it composes safely with
// interleaved commits from other components.

func appendMessage(msg models.Message) func(*models.ChatSession) {
	return func(s *models.ChatSession) {
		s.Messages = append(s.Messages, msg)
	}
}

func replaceMessage(id string, msg models.Message) func(*models.ChatSession) {
	return func(s *models.ChatSession) {
		for i := range s.Messages {
			if s.Messages[i].ID == id {
				s.Messages[i] = msg
				return
			}
		}
	}
}

func setMessageContent(id, content string) func(*models.ChatSession) {
	return func(s *models.ChatSession) {
		for i := range s.Messages {
			if s.Messages[i].ID == id {
				s.Messages[i].Content = content
				return
			}
		}
	}
}

func removeMessage(id string) func(*models.ChatSession) {
	return func(s *models.ChatSession) {
		for i := range s.Messages {
			if s.Messages[i].ID == id {
				s.Messages = append(s.Messages[:i], s.Messages[i+1:]...)
				return
			}
		}
	}
}

func setBackground(url string) func(*models.ChatSession) {
	return func(s *models.ChatSession) {
		s.BackgroundURL = url
	}
}
