package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ensemble-chat/backend/ai"
	"ensemble-chat/backend/internal/models"
	"ensemble-chat/backend/internal/orchestrator"
	"ensemble-chat/backend/internal/store"
	apperrors "ensemble-chat/backend/pkg/errors"
	"ensemble-chat/backend/pkg/logger"
)

// fakeGen is a scriptable generation service.
type fakeGen struct {
	streamText func(ctx context.Context, req ai.StreamTextRequest, onChunk ai.ChunkFunc) (string, error)
}

func (f *fakeGen) StreamText(ctx context.Context, req ai.StreamTextRequest, onChunk ai.ChunkFunc) (string, error) {
	if f.streamText != nil {
		return f.streamText(ctx, req, onChunk)
	}
	reply := "Indeed."
	if onChunk != nil {
		onChunk(reply)
	}
	return reply, nil
}

func (f *fakeGen) GenerateImage(ctx context.Context, prompt string, refs []string) (string, error) {
	return "https://img.example/scene.png", nil
}

func (f *fakeGen) GenerateVideo(ctx context.Context, prompt string) (string, error) {
	return "https://vid.example/scene.mp4", nil
}

func (f *fakeGen) SummarizePlot(ctx context.Context, transcript []models.TranscriptLine, descriptions []string) (string, error) {
	return "Two travelers argue over a map.", nil
}

func (f *fakeGen) SynthesizeSpeech(ctx context.Context, text, voiceID string) ([]byte, error) {
	return nil, nil
}

func (f *fakeGen) AnalyzeEvolution(ctx context.Context, req ai.EvolutionRequest) (string, error) {
	return req.EvolutionContext, nil
}

// fakeDirectory resolves participants from a fixed map.
type fakeDirectory struct {
	characters map[string]models.Character
}

func (d *fakeDirectory) GetCharacters(ctx context.Context, ids []string) ([]models.Character, error) {
	out := make([]models.Character, 0, len(ids))
	for _, id := range ids {
		c, ok := d.characters[id]
		if !ok {
			return nil, apperrors.NewNotFoundError(apperrors.CodeCharacterMissing,
				fmt.Sprintf("character %s does not exist", id))
		}
		out = append(out, c)
	}
	return out, nil
}

func (d *fakeDirectory) UpdateEvolutionContext(ctx context.Context, id, evo string) (models.Character, error) {
	c := d.characters[id]
	c.EvolutionContext = evo
	return c, nil
}

// recorderSink collects pushed events.
type recorderSink struct {
	mu       sync.Mutex
	sessions []models.ChatSession
	errors   []string
}

func (r *recorderSink) SessionUpdated(s models.ChatSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, s)
}

func (r *recorderSink) CharacterUpdated(models.Character) {}

func (r *recorderSink) Error(sessionID, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, message)
}

func (r *recorderSink) sessionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

type fixture struct {
	svc   *SessionService
	store *store.SessionStore
	gen   *fakeGen
	sink  *recorderSink
	dir   *fakeDirectory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.New(logger.Config{Level: "error", Output: io.Discard})

	st, err := store.Open(store.Options{InMemory: true, Logger: log})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	gen := &fakeGen{}
	dir := &fakeDirectory{characters: map[string]models.Character{
		"char-a": {ID: "char-a", Name: "Aria", Description: "a thoughtful bard"},
		"char-b": {ID: "char-b", Name: "Brook", Description: "a restless scout"},
	}}
	sink := &recorderSink{}

	orch := orchestrator.New(gen, dir, sink, orchestrator.Config{
		MaxTurns:               1,
		MinTurnDelay:           time.Millisecond,
		MaxTurnDelay:           2 * time.Millisecond,
		BackgroundInitialDelay: time.Hour,
		BackgroundInterval:     time.Hour,
	}, log)
	t.Cleanup(orch.Close)

	svc := NewSessionService(st, dir, orch, sink, log)
	t.Cleanup(svc.Close)

	return &fixture{svc: svc, store: st, gen: gen, sink: sink, dir: dir}
}

func (f *fixture) createSession(t *testing.T) models.ChatSession {
	t.Helper()
	session, err := f.svc.CreateSession(context.Background(), &models.CreateSessionRequest{
		Name:         "Crossroads",
		Participants: []string{"char-a", "char-b"},
	})
	require.NoError(t, err)
	return session
}

func TestCreateSessionPersists(t *testing.T) {
	f := newFixture(t)
	session := f.createSession(t)

	stored, err := f.store.Get(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, "Crossroads", stored.Name)
	assert.Equal(t, []string{"char-a", "char-b"}, stored.Participants)
	assert.Empty(t, stored.Messages)
}

func TestCreateSessionRejectsUnknownParticipant(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateSession(context.Background(), &models.CreateSessionRequest{
		Name:         "Ghost Town",
		Participants: []string{"char-a", "char-z"},
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeCharacterMissing, apperrors.GetErrorCode(err))
}

func TestGetSessionNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GetSession(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeSessionNotFound, apperrors.GetErrorCode(err))
}

func TestOpenSessionIsIdempotent(t *testing.T) {
	f := newFixture(t)
	session := f.createSession(t)

	first, err := f.svc.OpenSession(context.Background(), session.ID)
	require.NoError(t, err)
	second, err := f.svc.OpenSession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestSendMessageCommitsUserAndAgentTurn(t *testing.T) {
	f := newFixture(t)
	session := f.createSession(t)

	committed, err := f.svc.SendMessage(context.Background(), session.ID, "Which way now?")
	require.NoError(t, err)
	require.Len(t, committed.Messages, 1)
	assert.Equal(t, models.SenderUser, committed.Messages[0].SenderID)
	assert.Equal(t, "Which way now?", committed.Messages[0].Content)

	// One agent turn lands asynchronously.
	require.Eventually(t, func() bool {
		current, err := f.svc.GetSession(context.Background(), session.ID)
		if err != nil || len(current.Messages) != 2 {
			return false
		}
		return current.Messages[1].Content == "Indeed." && !current.Messages[1].IsPlaceholder()
	}, 2*time.Second, 5*time.Millisecond)

	// The agent turn was persisted, not only held in memory.
	require.Eventually(t, func() bool {
		stored, err := f.store.Get(context.Background(), session.ID)
		return err == nil && len(stored.Messages) == 2
	}, 2*time.Second, 5*time.Millisecond)

	assert.Greater(t, f.sink.sessionCount(), 0)
}

func TestSendMessageWhileTurnsRunningConflicts(t *testing.T) {
	f := newFixture(t)
	session := f.createSession(t)

	release := make(chan struct{})
	f.gen.streamText = func(ctx context.Context, req ai.StreamTextRequest, onChunk ai.ChunkFunc) (string, error) {
		<-release
		return "Done waiting.", nil
	}

	_, err := f.svc.SendMessage(context.Background(), session.ID, "first")
	require.NoError(t, err)

	_, err = f.svc.SendMessage(context.Background(), session.ID, "second")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeSessionBusy, apperrors.GetErrorCode(err))

	close(release)
}

func TestGenerateMediaCommitsPhotoMessage(t *testing.T) {
	f := newFixture(t)
	session := f.createSession(t)

	_, err := f.svc.SendMessage(context.Background(), session.ID, "Look at this place.")
	require.NoError(t, err)

	// Wait for the turn loop to settle before the deterministic media call.
	require.Eventually(t, func() bool {
		current, _ := f.svc.GetSession(context.Background(), session.ID)
		return len(current.Messages) == 2
	}, 2*time.Second, 5*time.Millisecond)

	result, err := f.svc.GenerateMedia(context.Background(), session.ID, orchestrator.MediaPhoto)
	require.NoError(t, err)

	last := result.Messages[len(result.Messages)-1]
	assert.Equal(t, "https://img.example/scene.png", last.ImageURL)
	assert.Equal(t, "char-a", last.SenderID)
}

func TestGenerateMediaEmptyTranscript(t *testing.T) {
	f := newFixture(t)
	session := f.createSession(t)

	_, err := f.svc.GenerateMedia(context.Background(), session.ID, orchestrator.MediaPhoto)
	assert.ErrorIs(t, err, orchestrator.ErrEmptyTranscript)
}

func TestClearHistoryInactiveSession(t *testing.T) {
	f := newFixture(t)
	session := f.createSession(t)

	// Seed a message directly in storage while the session is inactive.
	session.Messages = append(session.Messages, models.Message{
		ID: "m1", SenderID: models.SenderUser, SenderName: "User", Content: "hi",
	})
	require.NoError(t, f.store.Save(context.Background(), session))

	cleared, err := f.svc.ClearHistory(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Empty(t, cleared.Messages)

	stored, err := f.store.Get(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Messages)
	assert.Greater(t, f.sink.sessionCount(), 0)
}

func TestToggleNSFW(t *testing.T) {
	f := newFixture(t)
	session := f.createSession(t)

	toggled, err := f.svc.ToggleNSFW(context.Background(), session.ID)
	require.NoError(t, err)
	assert.True(t, toggled.IsNSFW)

	toggled, err = f.svc.ToggleNSFW(context.Background(), session.ID)
	require.NoError(t, err)
	assert.False(t, toggled.IsNSFW)
}

func TestDeleteSessionClosesAndRemoves(t *testing.T) {
	f := newFixture(t)
	session := f.createSession(t)

	_, err := f.svc.OpenSession(context.Background(), session.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteSession(context.Background(), session.ID))

	_, err = f.svc.GetSession(context.Background(), session.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeSessionNotFound, apperrors.GetErrorCode(err))
}
