package service

import (
	"context"

	"ensemble-chat/backend/ai"
	"ensemble-chat/backend/pkg/logger"
)

// SpeechService synthesizes playback audio for individual messages. A nil
// buffer means the generation service has no audio for this text, which the
// handler translates to 204 No Content.
type SpeechService struct {
	gen ai.Service
	log *logger.Logger
}

func NewSpeechService(gen ai.Service, log *logger.Logger) *SpeechService {
	return &SpeechService{gen: gen, log: log}
}

func (s *SpeechService) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	audio, err := s.gen.SynthesizeSpeech(ctx, text, voiceID)
	if err != nil {
		return nil, err
	}
	return audio, nil
}
