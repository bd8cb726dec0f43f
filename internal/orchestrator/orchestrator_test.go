package orchestrator

import (
	"context"
	"io"
	"sync"
	"time"

	"ensemble-chat/backend/ai"
	"ensemble-chat/backend/internal/models"
	"ensemble-chat/backend/pkg/logger"
)

// fakeGen is a scriptable generation service for orchestrator tests.
type fakeGen struct {
	mu sync.Mutex

	streamFn func(req ai.StreamTextRequest, onChunk ai.ChunkFunc) (string, error)
	imageFn  func(prompt string, refs []string) (string, error)
	videoFn  func(prompt string) (string, error)
	plotFn   func(transcript []models.TranscriptLine, descriptions []string) (string, error)
	evoFn    func(req ai.EvolutionRequest) (string, error)

	streamCalls []ai.StreamTextRequest
	imageCalls  []string
	videoCalls  []string
	plotCalls   int
	evoCalls    []ai.EvolutionRequest
}

func (f *fakeGen) StreamText(_ context.Context, req ai.StreamTextRequest, onChunk ai.ChunkFunc) (string, error) {
	f.mu.Lock()
	f.streamCalls = append(f.streamCalls, req)
	fn := f.streamFn
	f.mu.Unlock()
	if fn != nil {
		return fn(req, onChunk)
	}
	text := "Hello from " + req.AgentName
	if onChunk != nil {
		onChunk(text)
	}
	return text, nil
}

func (f *fakeGen) GenerateImage(_ context.Context, prompt string, refs []string) (string, error) {
	f.mu.Lock()
	f.imageCalls = append(f.imageCalls, prompt)
	fn := f.imageFn
	f.mu.Unlock()
	if fn != nil {
		return fn(prompt, refs)
	}
	return "https://cdn.example/image.png", nil
}

func (f *fakeGen) GenerateVideo(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.videoCalls = append(f.videoCalls, prompt)
	fn := f.videoFn
	f.mu.Unlock()
	if fn != nil {
		return fn(prompt)
	}
	return "https://cdn.example/video.mp4", nil
}

func (f *fakeGen) SummarizePlot(_ context.Context, transcript []models.TranscriptLine, descriptions []string) (string, error) {
	f.mu.Lock()
	f.plotCalls++
	fn := f.plotFn
	f.mu.Unlock()
	if fn != nil {
		return fn(transcript, descriptions)
	}
	return "two friends talking at dusk", nil
}

func (f *fakeGen) SynthesizeSpeech(_ context.Context, _, _ string) ([]byte, error) {
	return nil, nil
}

func (f *fakeGen) AnalyzeEvolution(_ context.Context, req ai.EvolutionRequest) (string, error) {
	f.mu.Lock()
	f.evoCalls = append(f.evoCalls, req)
	fn := f.evoFn
	f.mu.Unlock()
	if fn != nil {
		return fn(req)
	}
	return req.EvolutionContext, nil
}

func (f *fakeGen) streamCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.streamCalls)
}

func (f *fakeGen) speakerSequence() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(f.streamCalls))
	for i, call := range f.streamCalls {
		names[i] = call.AgentName
	}
	return names
}

// recorder captures everything pushed outward.
type recorder struct {
	mu         sync.Mutex
	sessions   []models.ChatSession
	characters []models.Character
	errors     []string
}

func (r *recorder) SessionUpdated(session models.ChatSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, session)
}

func (r *recorder) CharacterUpdated(character models.Character) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.characters = append(r.characters, character)
}

func (r *recorder) Error(_, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, message)
}

func (r *recorder) errorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errors)
}

func (r *recorder) snapshots() []models.ChatSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.ChatSession, len(r.sessions))
	copy(out, r.sessions)
	return out
}

// fakeWriter records evolution-context writes.
type fakeWriter struct {
	mu      sync.Mutex
	updates map[string]string
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{updates: make(map[string]string)}
}

func (w *fakeWriter) UpdateEvolutionContext(_ context.Context, characterID, evolutionContext string) (models.Character, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.updates[characterID] = evolutionContext
	return models.Character{ID: characterID, EvolutionContext: evolutionContext}, nil
}

func (w *fakeWriter) contextFor(id string) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.updates[id]
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Output: io.Discard})
}

// newTestOrchestrator builds an orchestrator with pacing disabled and a
// pessimistic random draw (always stop after the first turn) unless a test
// overrides the hooks.
func newTestOrchestrator(gen *fakeGen, writer CharacterWriter, sink Sink) *Orchestrator {
	o := New(gen, writer, sink, Config{}, testLogger())
	o.sleep = func(context.Context, time.Duration) {}
	o.randFloat = func() float64 { return 1.0 }
	o.randIntn = func(n int) int { return 0 }
	return o
}

func testCast() []models.Character {
	return []models.Character{
		{ID: "char-a", Name: "Aria", Description: "a thoughtful bard", Avatar: "data:image/png;base64,aaa"},
		{ID: "char-b", Name: "Brook", Description: "a restless ranger", Avatar: "https://cdn.example/brook.png"},
	}
}

func testSession(messages ...models.Message) models.ChatSession {
	return models.ChatSession{
		ID:           "session-1",
		Name:         "Campfire",
		Participants: []string{"char-a", "char-b"},
		Messages:     messages,
	}
}

func userMessage(content string) models.Message {
	return models.Message{
		ID:         "msg-user",
		SenderID:   models.SenderUser,
		SenderName: "You",
		Content:    content,
		Timestamp:  time.Now(),
	}
}
