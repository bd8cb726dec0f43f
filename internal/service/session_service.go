package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"ensemble-chat/backend/internal/models"
	"ensemble-chat/backend/internal/orchestrator"
	"ensemble-chat/backend/internal/store"
	apperrors "ensemble-chat/backend/pkg/errors"
	"ensemble-chat/backend/pkg/logger"
)

// activeSession is the live state behind one open session view: the
// versioned cell every commit flows through, the background updater, and
// the lifecycle context that cancels in-flight turns when the view closes.
type activeSession struct {
	cell    *orchestrator.Cell
	updater *orchestrator.BackgroundUpdater
	ctx     context.Context
	cancel  context.CancelFunc

	// turnRunning guards against overlapping scheduler loops. The client
	// disables input while turns run, but the API enforces it too.
	turnRunning atomic.Bool
}

// CharacterDirectory resolves participant IDs to characters. The
// CharacterService is the production implementation.
type CharacterDirectory interface {
	GetCharacters(ctx context.Context, ids []string) ([]models.Character, error)
}

// SessionService owns session CRUD over the key-value store and the
// open/close lifecycle of active sessions.
type SessionService struct {
	store      *store.SessionStore
	characters CharacterDirectory
	orch       *orchestrator.Orchestrator
	sink       orchestrator.Sink
	log        *logger.Logger

	mu     sync.Mutex
	active map[string]*activeSession
}

func NewSessionService(st *store.SessionStore, characters CharacterDirectory, orch *orchestrator.Orchestrator, sink orchestrator.Sink, log *logger.Logger) *SessionService {
	return &SessionService{
		store:      st,
		characters: characters,
		orch:       orch,
		sink:       sink,
		log:        log,
		active:     make(map[string]*activeSession),
	}
}

func (s *SessionService) CreateSession(ctx context.Context, req *models.CreateSessionRequest) (models.ChatSession, error) {
	// Every participant must exist before the session is created.
	if _, err := s.characters.GetCharacters(ctx, req.Participants); err != nil {
		return models.ChatSession{}, err
	}

	session := models.ChatSession{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Participants: req.Participants,
		Messages:     []models.Message{},
		LastUpdated:  time.Now(),
	}
	if err := s.store.Save(ctx, session); err != nil {
		return models.ChatSession{}, err
	}
	return session, nil
}

func (s *SessionService) GetSession(ctx context.Context, id string) (models.ChatSession, error) {
	// The live cell is authoritative for an open session and avoids a
	// disk read for the hot path.
	s.mu.Lock()
	if as, ok := s.active[id]; ok {
		s.mu.Unlock()
		return as.cell.Snapshot(), nil
	}
	s.mu.Unlock()

	session, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return models.ChatSession{}, apperrors.NewNotFoundError(apperrors.CodeSessionNotFound,
				fmt.Sprintf("session %s does not exist", id))
		}
		return models.ChatSession{}, err
	}
	return session, nil
}

func (s *SessionService) ListSessions(ctx context.Context) ([]models.ChatSession, error) {
	return s.store.List(ctx)
}

// DeleteSession closes the session if active, then removes it from storage.
func (s *SessionService) DeleteSession(ctx context.Context, id string) error {
	s.CloseSession(id)
	return s.store.Delete(ctx, id)
}

// OpenSession activates a session: loads it into a versioned cell whose
// commits are persisted and broadcast, and starts the ambient background
// updater. Opening an already-open session is a no-op.
func (s *SessionService) OpenSession(ctx context.Context, id string) (models.ChatSession, error) {
	s.mu.Lock()
	if as, ok := s.active[id]; ok {
		s.mu.Unlock()
		return as.cell.Snapshot(), nil
	}
	s.mu.Unlock()

	session, err := s.GetSession(ctx, id)
	if err != nil {
		return models.ChatSession{}, err
	}
	cast, err := s.characters.GetCharacters(ctx, session.Participants)
	if err != nil {
		return models.ChatSession{}, err
	}

	lifecycle, cancel := context.WithCancel(context.Background())
	cell := orchestrator.NewCell(session, func(committed models.ChatSession) {
		if err := s.store.Save(lifecycle, committed); err != nil {
			s.log.LogError(err, "failed to persist committed session", "session_id", committed.ID)
		}
		s.sink.SessionUpdated(committed)
	})

	as := &activeSession{
		cell:    cell,
		updater: s.orch.StartBackgroundUpdater(cell, cast),
		ctx:     lifecycle,
		cancel:  cancel,
	}

	s.mu.Lock()
	if existing, ok := s.active[id]; ok {
		// Lost the race to another opener.
		s.mu.Unlock()
		cancel()
		as.updater.Stop()
		return existing.cell.Snapshot(), nil
	}
	s.active[id] = as
	s.mu.Unlock()

	return cell.Snapshot(), nil
}

// CloseSession deactivates a session: stops the background updater and
// cancels any in-flight turn loop. Closing an inactive session is a no-op.
func (s *SessionService) CloseSession(id string) {
	s.mu.Lock()
	as, ok := s.active[id]
	if ok {
		delete(s.active, id)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	as.cancel()
	as.updater.Stop()
}

// Close deactivates every session. Called on shutdown.
func (s *SessionService) Close() {
	s.mu.Lock()
	active := s.active
	s.active = make(map[string]*activeSession)
	s.mu.Unlock()
	for _, as := range active {
		as.cancel()
		as.updater.Stop()
	}
}

func (s *SessionService) activeOrOpen(ctx context.Context, id string) (*activeSession, error) {
	s.mu.Lock()
	as, ok := s.active[id]
	s.mu.Unlock()
	if ok {
		return as, nil
	}
	if _, err := s.OpenSession(ctx, id); err != nil {
		return nil, err
	}
	s.mu.Lock()
	as = s.active[id]
	s.mu.Unlock()
	if as == nil {
		return nil, apperrors.NewNotFoundError(apperrors.CodeSessionNotFound,
			fmt.Sprintf("session %s does not exist", id))
	}
	return as, nil
}

// SendMessage appends the user's message and kicks the turn-taking loop in
// the background. It returns the session as of the user message commit; the
// agent turns stream out over the websocket.
func (s *SessionService) SendMessage(ctx context.Context, id, content string) (models.ChatSession, error) {
	as, err := s.activeOrOpen(ctx, id)
	if err != nil {
		return models.ChatSession{}, err
	}
	if !as.turnRunning.CompareAndSwap(false, true) {
		return models.ChatSession{}, apperrors.NewConflictError(apperrors.CodeSessionBusy,
			"agents are still responding to the previous message")
	}

	snapshot := as.cell.Snapshot()
	cast, err := s.characters.GetCharacters(ctx, snapshot.Participants)
	if err != nil {
		as.turnRunning.Store(false)
		return models.ChatSession{}, err
	}

	committed := as.cell.Update(func(session *models.ChatSession) {
		session.Messages = append(session.Messages, models.Message{
			ID:         uuid.NewString(),
			SenderID:   models.SenderUser,
			SenderName: "User",
			Content:    content,
			Timestamp:  time.Now(),
		})
	})

	go func() {
		defer as.turnRunning.Store(false)
		s.orch.RunTurns(as.ctx, as.cell, cast)
	}()

	return committed, nil
}

// GenerateMedia runs the on-demand photo or video workflow synchronously and
// returns the session including the committed media message.
func (s *SessionService) GenerateMedia(ctx context.Context, id, mediaType string) (models.ChatSession, error) {
	as, err := s.activeOrOpen(ctx, id)
	if err != nil {
		return models.ChatSession{}, err
	}
	cast, err := s.characters.GetCharacters(ctx, as.cell.Snapshot().Participants)
	if err != nil {
		return models.ChatSession{}, err
	}
	return s.orch.GenerateMedia(ctx, as.cell, cast, mediaType)
}

// ClearHistory drops every message from the session. The background URL and
// NSFW flag survive.
func (s *SessionService) ClearHistory(ctx context.Context, id string) (models.ChatSession, error) {
	return s.mutate(ctx, id, func(session *models.ChatSession) {
		session.Messages = []models.Message{}
	})
}

// ToggleNSFW flips the session's NSFW flag and returns the new state.
func (s *SessionService) ToggleNSFW(ctx context.Context, id string) (models.ChatSession, error) {
	return s.mutate(ctx, id, func(session *models.ChatSession) {
		session.IsNSFW = !session.IsNSFW
	})
}

// mutate applies a derivation through the live cell when the session is
// active, or directly against storage otherwise.
func (s *SessionService) mutate(ctx context.Context, id string, derive func(*models.ChatSession)) (models.ChatSession, error) {
	s.mu.Lock()
	as, ok := s.active[id]
	s.mu.Unlock()
	if ok {
		return as.cell.Update(derive), nil
	}

	session, err := s.GetSession(ctx, id)
	if err != nil {
		return models.ChatSession{}, err
	}
	derive(&session)
	session.LastUpdated = time.Now()
	if err := s.store.Save(ctx, session); err != nil {
		return models.ChatSession{}, err
	}
	s.sink.SessionUpdated(session)
	return session, nil
}
