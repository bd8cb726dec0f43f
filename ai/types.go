package ai

import (
	"context"
	"errors"

	"ensemble-chat/backend/internal/models"
)

// GenerationError is any failure reported by (or while reaching) the
// generation service. Its message is human-readable and safe to surface on
// the user-visible error channel.
type GenerationError struct {
	Op      string
	Message string
	Err     error
}

func (e *GenerationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "generation failed"
}

func (e *GenerationError) Unwrap() error { return e.Err }

// AsGenerationError unwraps err into a *GenerationError when possible.
func AsGenerationError(err error) (*GenerationError, bool) {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr, true
	}
	return nil, false
}

// StreamTextRequest carries everything one agent turn needs from the
// generation service.
type StreamTextRequest struct {
	AgentName        string                  `json:"agent_name"`
	AgentDescription string                  `json:"agent_description"`
	EvolutionContext string                  `json:"evolution_context,omitempty"`
	Transcript       []models.TranscriptLine `json:"transcript"`
	OtherNames       []string                `json:"other_names"`
	NSFW             bool                    `json:"nsfw"`
}

// ChunkFunc receives the cumulative response text after each increment, not
// a delta.
type ChunkFunc func(cumulative string)

// EvolutionRequest asks for an updated long-term memory summary for an agent
// after one of its turns.
type EvolutionRequest struct {
	AgentName        string                  `json:"agent_name"`
	AgentDescription string                  `json:"agent_description"`
	EvolutionContext string                  `json:"evolution_context,omitempty"`
	Transcript       []models.TranscriptLine `json:"transcript"`
}

// Service is the generation-service surface the orchestrator consumes.
// Implementations make a single best-effort attempt per call; retry policy
// belongs to the service, not to callers.
type Service interface {
	// StreamText produces one agent's reply. onChunk, when non-nil, is
	// invoked with the cumulative text after each increment; the return
	// value is the final cumulative text.
	StreamText(ctx context.Context, req StreamTextRequest, onChunk ChunkFunc) (string, error)

	// GenerateImage renders a prompt, optionally guided by inline reference
	// images. An empty result is reported as an error by callers that need
	// a concrete artifact.
	GenerateImage(ctx context.Context, prompt string, referenceImages []string) (string, error)

	// GenerateVideo renders a short clip for the prompt.
	GenerateVideo(ctx context.Context, prompt string) (string, error)

	// SummarizePlot condenses a transcript into a short scene summary.
	SummarizePlot(ctx context.Context, transcript []models.TranscriptLine, participantDescriptions []string) (string, error)

	// SynthesizeSpeech returns encoded audio for the text, or nil when no
	// audio is available. A nil buffer is not an error.
	SynthesizeSpeech(ctx context.Context, text, voiceID string) ([]byte, error)

	// AnalyzeEvolution returns an updated evolution context for an agent.
	AnalyzeEvolution(ctx context.Context, req EvolutionRequest) (string, error)
}
