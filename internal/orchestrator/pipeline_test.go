package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ensemble-chat/backend/ai"
	"ensemble-chat/backend/internal/models"
)

func TestTurnFinalizesWithPlaceholderID(t *testing.T) {
	gen := &fakeGen{}
	sink := &recorder{}
	o := newTestOrchestrator(gen, newFakeWriter(), sink)
	defer o.Close()

	cell := NewCell(testSession(userMessage("Hi")), sink.SessionUpdated)
	o.RunTurns(context.Background(), cell, testCast())

	final := cell.Snapshot()
	require.Len(t, final.Messages, 2)
	finalMsg := final.Messages[1]
	assert.Equal(t, "Hello from Aria", finalMsg.Content)

	// Find the placeholder in the intermediate snapshots: its ID must be
	// the one the final message carries.
	var placeholderID string
	for _, snap := range sink.snapshots() {
		for _, m := range snap.Messages {
			if m.IsPlaceholder() {
				placeholderID = m.ID
			}
		}
	}
	require.NotEmpty(t, placeholderID, "a placeholder was pushed outward mid-turn")
	assert.Equal(t, placeholderID, finalMsg.ID)
}

func TestNoPlaceholderSurvivesTurnResolution(t *testing.T) {
	gen := &fakeGen{}
	o := newTestOrchestrator(gen, newFakeWriter(), &recorder{})
	defer o.Close()
	o.randFloat = func() float64 { return 0 }

	cell := NewCell(testSession(userMessage("Hi")), nil)
	o.RunTurns(context.Background(), cell, testCast())

	for _, m := range cell.Snapshot().Messages {
		assert.False(t, m.IsPlaceholder(), "placeholders never persist past a turn's resolution")
	}
}

func TestStreamingChunksReplacePlaceholderContent(t *testing.T) {
	gen := &fakeGen{}
	gen.streamFn = func(_ ai.StreamTextRequest, onChunk ai.ChunkFunc) (string, error) {
		onChunk("He")
		onChunk("Hello")
		onChunk("Hello there")
		return "Hello there", nil
	}
	sink := &recorder{}
	o := newTestOrchestrator(gen, newFakeWriter(), sink)
	defer o.Close()

	cell := NewCell(testSession(userMessage("Hi")), sink.SessionUpdated)
	o.RunTurns(context.Background(), cell, testCast())

	// Each increment replaces the previous content wholesale.
	var seen []string
	for _, snap := range sink.snapshots() {
		if len(snap.Messages) == 2 {
			seen = append(seen, snap.Messages[1].Content)
		}
	}
	assert.Contains(t, seen, "He")
	assert.Contains(t, seen, "Hello")
	assert.Contains(t, seen, "Hello there")
}

func TestSilentTurnIsNetNoOp(t *testing.T) {
	gen := &fakeGen{}
	gen.streamFn = func(_ ai.StreamTextRequest, onChunk ai.ChunkFunc) (string, error) {
		onChunk("Hello")
		onChunk("Hello [SILENCE]")
		return "Hello [SILENCE]", nil
	}
	sink := &recorder{}
	o := newTestOrchestrator(gen, newFakeWriter(), sink)
	defer o.Close()

	before := testSession(userMessage("Hi"))
	cell := NewCell(before, nil)
	o.RunTurns(context.Background(), cell, testCast())

	after := cell.Snapshot()
	assert.Len(t, after.Messages, len(before.Messages), "silent turn leaves the transcript unchanged")
	assert.Zero(t, sink.errorCount(), "silence is not an error")
}

func TestStreamFreezesAfterSilenceMarker(t *testing.T) {
	gen := &fakeGen{}
	gen.streamFn = func(_ ai.StreamTextRequest, onChunk ai.ChunkFunc) (string, error) {
		onChunk("Thinking")
		onChunk("Thinking [SILENCE]")
		onChunk("Thinking [SILENCE] but wait, more text")
		return "Thinking [SILENCE] but wait, more text", nil
	}
	sink := &recorder{}
	o := newTestOrchestrator(gen, newFakeWriter(), sink)
	defer o.Close()

	cell := NewCell(testSession(userMessage("Hi")), sink.SessionUpdated)
	o.RunTurns(context.Background(), cell, testCast())

	for _, snap := range sink.snapshots() {
		for _, m := range snap.Messages {
			assert.NotContains(t, m.Content, "but wait", "no update is applied after the silence marker appears")
		}
	}
}

func TestInlineImageDirective(t *testing.T) {
	gen := &fakeGen{}
	gen.streamFn = func(_ ai.StreamTextRequest, onChunk ai.ChunkFunc) (string, error) {
		return "Here: [GEN_IMG: a sunset]", nil
	}
	var gotRefs []string
	gen.imageFn = func(prompt string, refs []string) (string, error) {
		gotRefs = refs
		return "https://cdn.example/sunset.png", nil
	}
	o := newTestOrchestrator(gen, newFakeWriter(), &recorder{})
	defer o.Close()

	cell := NewCell(testSession(userMessage("Hi")), nil)
	o.RunTurns(context.Background(), cell, testCast())

	final := cell.Snapshot()
	require.Len(t, final.Messages, 2)
	msg := final.Messages[1]
	assert.Equal(t, "Here:", msg.Content)
	assert.Equal(t, "https://cdn.example/sunset.png", msg.ImageURL)

	require.Len(t, gen.imageCalls, 1)
	assert.Equal(t, "a thoughtful bard, a sunset", gen.imageCalls[0])
	// Only inline-data avatars are passed as references.
	assert.Equal(t, []string{"data:image/png;base64,aaa"}, gotRefs)
}

func TestInlineImageFailureIsSwallowed(t *testing.T) {
	gen := &fakeGen{}
	gen.streamFn = func(_ ai.StreamTextRequest, onChunk ai.ChunkFunc) (string, error) {
		return "Here: [GEN_IMG: a sunset]", nil
	}
	gen.imageFn = func(string, []string) (string, error) {
		return "", &ai.GenerationError{Op: "generate_image", Message: "render farm down"}
	}
	sink := &recorder{}
	o := newTestOrchestrator(gen, newFakeWriter(), sink)
	defer o.Close()

	cell := NewCell(testSession(userMessage("Hi")), nil)
	o.RunTurns(context.Background(), cell, testCast())

	final := cell.Snapshot()
	require.Len(t, final.Messages, 2)
	assert.Equal(t, "Here:", final.Messages[1].Content)
	assert.Empty(t, final.Messages[1].ImageURL, "message finalizes with text only")
	assert.Zero(t, sink.errorCount(), "secondary-effect failures never surface")
}

func TestTurnContextCarriesEvolutionAndNSFW(t *testing.T) {
	gen := &fakeGen{}
	o := newTestOrchestrator(gen, newFakeWriter(), &recorder{})
	defer o.Close()

	cast := testCast()
	cast[0].EvolutionContext = "remembers the user likes riddles"
	session := testSession(userMessage("Hi"))
	session.IsNSFW = true
	cell := NewCell(session, nil)

	o.RunTurns(context.Background(), cell, cast)

	require.Equal(t, 1, gen.streamCount())
	req := gen.streamCalls[0]
	assert.Equal(t, "remembers the user likes riddles", req.EvolutionContext)
	assert.True(t, req.NSFW)
	assert.Equal(t, []string{"Brook", "User"}, req.OtherNames)
	require.Len(t, req.Transcript, 1)
	assert.Equal(t, "Hi", req.Transcript[0].Text)
}

func TestSpokenTurnFeedsEvolutionAnalyzer(t *testing.T) {
	gen := &fakeGen{}
	gen.evoFn = func(req ai.EvolutionRequest) (string, error) {
		return "has grown fond of the user", nil
	}
	writer := newFakeWriter()
	sink := &recorder{}
	o := newTestOrchestrator(gen, writer, sink)

	cell := NewCell(testSession(userMessage("Hi")), nil)
	o.RunTurns(context.Background(), cell, testCast())
	o.Close() // drains the analyzer queue

	assert.Equal(t, "has grown fond of the user", writer.contextFor("char-a"))

	require.Len(t, gen.evoCalls, 1)
	lines := gen.evoCalls[0].Transcript
	require.Len(t, lines, 2, "transcript includes the agent's new line")
	assert.Equal(t, "Hello from Aria", lines[1].Text)
}

func TestUnchangedEvolutionContextIsNotWritten(t *testing.T) {
	gen := &fakeGen{}
	gen.evoFn = func(req ai.EvolutionRequest) (string, error) {
		return req.EvolutionContext, nil
	}
	writer := newFakeWriter()
	o := newTestOrchestrator(gen, writer, &recorder{})

	cast := testCast()
	cast[0].EvolutionContext = "steady as ever"
	cell := NewCell(testSession(userMessage("Hi")), nil)
	o.RunTurns(context.Background(), cell, cast)
	o.Close()

	assert.Empty(t, writer.contextFor("char-a"))
}

func TestUserScenarioTwoParticipants(t *testing.T) {
	// Participants [A, B], user sends "Hi": turn 1 picks one of them,
	// turn 2 (if any) must pick the other.
	gen := &fakeGen{}
	o := newTestOrchestrator(gen, newFakeWriter(), &recorder{})
	defer o.Close()
	o.randFloat = func() float64 { return 0 }

	cell := NewCell(testSession(userMessage("Hi")), nil)
	o.RunTurns(context.Background(), cell, testCast())

	seq := gen.speakerSequence()
	require.GreaterOrEqual(t, len(seq), 2)
	assert.NotEqual(t, seq[0], seq[1])

	messages := cell.Snapshot().Messages
	for _, m := range messages[1:] {
		assert.NotEqual(t, models.SenderUser, m.SenderID, "agent turns never speak as the user")
	}
}
