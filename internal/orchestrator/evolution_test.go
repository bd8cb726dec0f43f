package orchestrator

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"ensemble-chat/backend/ai"
	"ensemble-chat/backend/internal/models"
)

func TestEvolutionAnalysisFailureIsSwallowed(t *testing.T) {
	gen := &fakeGen{}
	gen.evoFn = func(ai.EvolutionRequest) (string, error) {
		return "", &ai.GenerationError{Op: "analyze_evolution", Message: "model overloaded"}
	}
	writer := newFakeWriter()
	sink := &recorder{}
	worker := newEvolutionWorker(gen, writer, sink, 4, testLogger())

	worker.enqueue(evolutionJob{
		character:  models.Character{ID: "char-a", Name: "Aria"},
		transcript: []models.TranscriptLine{{Sender: "Aria", Text: "hello"}},
	})
	worker.close()

	assert.Empty(t, writer.contextFor("char-a"))
	assert.Zero(t, sink.errorCount(), "analysis failures never reach the user")
}

func TestEvolutionQueueIsBoundedPerCharacter(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	gen := &fakeGen{}
	gen.evoFn = func(ai.EvolutionRequest) (string, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return "evolved", nil
	}
	writer := newFakeWriter()
	worker := newEvolutionWorker(gen, writer, &recorder{}, 2, testLogger())

	job := evolutionJob{character: models.Character{ID: "char-a", Name: "Aria"}}
	worker.enqueue(job)
	<-started // first job is in flight

	// Queue capacity is 2; further enqueues must not block the caller.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			worker.enqueue(job)
		}
		close(done)
	}()
	<-done

	close(release)
	worker.close()
}

func TestEvolutionSerializesPerCharacter(t *testing.T) {
	var mu sync.Mutex
	inFlight := 0
	maxInFlight := 0
	gen := &fakeGen{}
	gen.evoFn = func(ai.EvolutionRequest) (string, error) {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()

		mu.Lock()
		inFlight--
		mu.Unlock()
		return "evolved", nil
	}
	worker := newEvolutionWorker(gen, newFakeWriter(), &recorder{}, 4, testLogger())

	job := evolutionJob{character: models.Character{ID: "char-a", Name: "Aria"}}
	worker.enqueue(job)
	worker.enqueue(job)
	worker.enqueue(job)
	worker.close()

	assert.LessOrEqual(t, maxInFlight, 1, "same-character analyses never overlap")
}
