package orchestrator

import (
	"context"
	"sync"
	"time"

	"ensemble-chat/backend/ai"
	"ensemble-chat/backend/internal/models"
	"ensemble-chat/backend/pkg/logger"
)

// evolutionJob asks for one character's memory to be re-analyzed against a
// transcript that includes its just-finalized line.
type evolutionJob struct {
	character  models.Character
	transcript []models.TranscriptLine
}

// evolutionWorker runs fire-and-forget evolution analyses. Jobs are
// serialized per character on a bounded queue, so overlapping analyses for
// the same character cannot race each other and a stuck call cannot pile up
// unbounded requests. Completion is never awaited by the scheduler.
type evolutionWorker struct {
	gen        ai.Service
	characters CharacterWriter
	sink       Sink
	log        *logger.Logger
	queueSize  int

	mu     sync.Mutex
	queues map[string]chan evolutionJob
	closed bool
	wg     sync.WaitGroup
}

const evolutionTimeout = 90 * time.Second

func newEvolutionWorker(gen ai.Service, characters CharacterWriter, sink Sink, queueSize int, log *logger.Logger) *evolutionWorker {
	return &evolutionWorker{
		gen:        gen,
		characters: characters,
		sink:       sink,
		log:        log,
		queueSize:  queueSize,
		queues:     make(map[string]chan evolutionJob),
	}
}

// enqueue hands a job to the character's queue without blocking. A full
// queue drops the job: the next turn will supersede it anyway.
func (w *evolutionWorker) enqueue(job evolutionJob) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	queue, ok := w.queues[job.character.ID]
	if !ok {
		queue = make(chan evolutionJob, w.queueSize)
		w.queues[job.character.ID] = queue
		w.wg.Add(1)
		go w.drain(queue)
	}

	// Non-blocking send under the lock: close() also takes the lock, so a
	// send can never hit a closed channel.
	select {
	case queue <- job:
	default:
		w.log.Warn("Evolution queue full, dropping analysis",
			"character", job.character.Name,
		)
	}
}

func (w *evolutionWorker) drain(queue chan evolutionJob) {
	defer w.wg.Done()
	for job := range queue {
		w.analyze(job)
	}
}

// analyze runs one analysis. Failures are diagnostics only; they never
// surface to the user and never roll anything back.
func (w *evolutionWorker) analyze(job evolutionJob) {
	ctx, cancel := context.WithTimeout(context.Background(), evolutionTimeout)
	defer cancel()

	evolved, err := w.gen.AnalyzeEvolution(ctx, ai.EvolutionRequest{
		AgentName:        job.character.Name,
		AgentDescription: job.character.Description,
		EvolutionContext: job.character.EvolutionContext,
		Transcript:       job.transcript,
	})
	if err != nil {
		w.log.Warn("Evolution analysis failed",
			"character", job.character.Name,
			"error", err.Error(),
		)
		return
	}
	if evolved == "" || evolved == job.character.EvolutionContext {
		return
	}

	updated, err := w.characters.UpdateEvolutionContext(ctx, job.character.ID, evolved)
	if err != nil {
		w.log.Warn("Evolution context write failed",
			"character", job.character.Name,
			"error", err.Error(),
		)
		return
	}
	w.sink.CharacterUpdated(updated)
}

// close stops accepting jobs and waits for in-flight analyses to finish.
func (w *evolutionWorker) close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	for _, queue := range w.queues {
		close(queue)
	}
	w.mu.Unlock()
	w.wg.Wait()
}
