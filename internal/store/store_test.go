package store

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ensemble-chat/backend/internal/models"
	"ensemble-chat/backend/pkg/logger"
)

func newTestStore(t *testing.T) *SessionStore {
	t.Helper()
	s, err := Open(Options{
		InMemory: true,
		Logger:   logger.New(logger.Config{Level: "error", Output: io.Discard}),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleSession(id string) models.ChatSession {
	return models.ChatSession{
		ID:           id,
		Name:         "Tavern Night",
		Participants: []string{"char-a", "char-b"},
		Messages: []models.Message{
			{ID: "m1", SenderID: models.SenderUser, Content: "hello"},
		},
		LastUpdated: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	want := sampleSession("sess-1")
	require.NoError(t, s.Save(ctx, want))

	got, err := s.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, want.Participants, got.Participants)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "hello", got.Messages[0].Content)
}

func TestSaveRequiresID(t *testing.T) {
	s := newTestStore(t)
	err := s.Save(context.Background(), models.ChatSession{Name: "no id"})
	assert.Error(t, err)
}

func TestGetMissingSession(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSaveOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := sampleSession("sess-1")
	require.NoError(t, s.Save(ctx, first))

	second := first
	second.Name = "Renamed"
	second.Messages = append([]models.Message{}, first.Messages...)
	second.Messages = append(second.Messages, models.Message{ID: "m2", SenderID: "char-a", Content: "hi"})
	require.NoError(t, s.Save(ctx, second))

	got, err := s.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Len(t, got.Messages, 2)
}

func TestListOrdersByLastUpdated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	older := sampleSession("sess-old")
	older.LastUpdated = time.Now().Add(-time.Hour)
	newer := sampleSession("sess-new")
	newer.LastUpdated = time.Now()

	require.NoError(t, s.Save(ctx, older))
	require.NoError(t, s.Save(ctx, newer))

	sessions, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "sess-new", sessions[0].ID)
	assert.Equal(t, "sess-old", sessions[1].ID)
}

func TestListEmptyStore(t *testing.T) {
	s := newTestStore(t)
	sessions, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, sampleSession("sess-1")))
	require.NoError(t, s.Delete(ctx, "sess-1"))

	_, err := s.Get(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// Deleting again is a no-op.
	assert.NoError(t, s.Delete(ctx, "sess-1"))
}
