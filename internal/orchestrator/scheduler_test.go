package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ensemble-chat/backend/ai"
	"ensemble-chat/backend/internal/models"
)

func TestSchedulerStopsOnEmptyTranscript(t *testing.T) {
	gen := &fakeGen{}
	o := newTestOrchestrator(gen, newFakeWriter(), &recorder{})
	defer o.Close()
	cell := NewCell(testSession(), nil)

	o.RunTurns(context.Background(), cell, testCast())

	assert.Zero(t, gen.streamCount(), "no one speaks first autonomously")
}

func TestSchedulerNeverPicksUserAndNeverRepeatsSpeaker(t *testing.T) {
	gen := &fakeGen{}
	sink := &recorder{}
	o := newTestOrchestrator(gen, newFakeWriter(), sink)
	defer o.Close()
	o.randFloat = func() float64 { return 0 } // always continue

	cell := NewCell(testSession(userMessage("Hi")), nil)
	o.RunTurns(context.Background(), cell, testCast())

	seq := gen.speakerSequence()
	require.NotEmpty(t, seq)
	assert.Contains(t, []string{"Aria", "Brook"}, seq[0])
	for i := 1; i < len(seq); i++ {
		assert.NotEqual(t, seq[i-1], seq[i], "no agent responds to itself back-to-back")
	}
}

func TestSchedulerRespectsTurnCap(t *testing.T) {
	gen := &fakeGen{}
	o := newTestOrchestrator(gen, newFakeWriter(), &recorder{})
	defer o.Close()
	o.randFloat = func() float64 { return 0 } // every draw favors continuation

	cell := NewCell(testSession(userMessage("Hi")), nil)
	o.RunTurns(context.Background(), cell, testCast())

	assert.Equal(t, 5, gen.streamCount())
}

func TestSchedulerStopsWhenDrawExceedsPropensity(t *testing.T) {
	gen := &fakeGen{}
	o := newTestOrchestrator(gen, newFakeWriter(), &recorder{})
	defer o.Close()
	// After one spoken turn the propensity is 0.75; a 0.8 draw stops.
	o.randFloat = func() float64 { return 0.8 }

	cell := NewCell(testSession(userMessage("Hi")), nil)
	o.RunTurns(context.Background(), cell, testCast())

	assert.Equal(t, 1, gen.streamCount())
}

func TestSilentTurnDecrementsPropensityLess(t *testing.T) {
	// A silent first turn leaves the propensity at 0.9, so a 0.8 draw
	// continues; a spoken first turn would have stopped (0.8 > 0.75).
	gen := &fakeGen{}
	gen.streamFn = func(req ai.StreamTextRequest, onChunk ai.ChunkFunc) (string, error) {
		if gen.streamCount() == 1 {
			return "Hello [SILENCE]", nil
		}
		return "Actually, hello", nil
	}
	o := newTestOrchestrator(gen, newFakeWriter(), &recorder{})
	defer o.Close()
	draws := []float64{0.8, 0.99}
	o.randFloat = func() float64 {
		d := draws[0]
		if len(draws) > 1 {
			draws = draws[1:]
		}
		return d
	}

	cell := NewCell(testSession(userMessage("Hi")), nil)
	o.RunTurns(context.Background(), cell, testCast())

	assert.Equal(t, 2, gen.streamCount(), "silent turn should not have stopped the loop")
}

func TestSchedulerSingleParticipantBacksOff(t *testing.T) {
	gen := &fakeGen{}
	o := newTestOrchestrator(gen, newFakeWriter(), &recorder{})
	defer o.Close()
	o.randFloat = func() float64 { return 0 }

	solo := testCast()[:1]
	lastFromSolo := models.Message{ID: "m1", SenderID: "char-a", SenderName: "Aria", Content: "mine"}
	cell := NewCell(testSession(lastFromSolo), nil)

	o.RunTurns(context.Background(), cell, solo)

	assert.Zero(t, gen.streamCount(), "the only participant just spoke, so no one is eligible")
}

func TestSchedulerAbortsLoopOnTurnFailure(t *testing.T) {
	gen := &fakeGen{}
	gen.streamFn = func(ai.StreamTextRequest, ai.ChunkFunc) (string, error) {
		return "", &ai.GenerationError{Op: "stream_text", Message: "service exploded"}
	}
	sink := &recorder{}
	o := newTestOrchestrator(gen, newFakeWriter(), sink)
	defer o.Close()
	o.randFloat = func() float64 { return 0 }

	cell := NewCell(testSession(userMessage("Hi")), nil)
	o.RunTurns(context.Background(), cell, testCast())

	assert.Equal(t, 1, gen.streamCount(), "loop halts after the failing turn")
	assert.Equal(t, 1, sink.errorCount())

	final := cell.Snapshot()
	require.Len(t, final.Messages, 1, "failed turn rolled back")
	assert.Equal(t, "Hi", final.Messages[0].Content)
}
