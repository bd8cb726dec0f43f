package orchestrator

import (
	"context"
	"math/rand"
	"time"

	"ensemble-chat/backend/ai"
	"ensemble-chat/backend/internal/models"
	"ensemble-chat/backend/pkg/logger"
)

// Sink receives committed state and surfaced errors. The websocket hub is
// the production implementation; tests use a recorder.
type Sink interface {
	// SessionUpdated is called for every committed session value.
	SessionUpdated(session models.ChatSession)
	// CharacterUpdated is called when an evolution analysis lands.
	CharacterUpdated(character models.Character)
	// Error surfaces a human-readable message on the user-visible error
	// channel for the session.
	Error(sessionID, message string)
}

// CharacterWriter is the external collaborator that owns durable character
// state. The orchestrator only ever writes the evolution context.
type CharacterWriter interface {
	UpdateEvolutionContext(ctx context.Context, characterID, evolutionContext string) (models.Character, error)
}

// Config tunes the scheduling loop and the background processes. Zero
// values are replaced with the defaults below.
type Config struct {
	// MaxTurns caps agent turns per user message regardless of propensity.
	MaxTurns int
	// SpokenDecrement is subtracted from the continuation propensity after
	// a normal turn; SilentDecrement after a silent one.
	SpokenDecrement float64
	SilentDecrement float64
	// MinTurnDelay/MaxTurnDelay bound the randomized pacing pause between
	// committed turns. Pacing is cosmetic, not a correctness requirement.
	MinTurnDelay time.Duration
	MaxTurnDelay time.Duration
	// BackgroundInitialDelay is the near-immediate kick after a session
	// view opens; BackgroundInterval the recurring period after that.
	BackgroundInitialDelay time.Duration
	BackgroundInterval     time.Duration
	// BackgroundMinMessages is the transcript size below which a tick is
	// skipped.
	BackgroundMinMessages int
	// EvolutionQueueSize bounds the per-character analysis backlog.
	EvolutionQueueSize int
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		MaxTurns:               5,
		SpokenDecrement:        0.25,
		SilentDecrement:        0.1,
		MinTurnDelay:           time.Second,
		MaxTurnDelay:           2 * time.Second,
		BackgroundInitialDelay: 5 * time.Second,
		BackgroundInterval:     60 * time.Second,
		BackgroundMinMessages:  3,
		EvolutionQueueSize:     4,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxTurns == 0 {
		c.MaxTurns = def.MaxTurns
	}
	if c.SpokenDecrement == 0 {
		c.SpokenDecrement = def.SpokenDecrement
	}
	if c.SilentDecrement == 0 {
		c.SilentDecrement = def.SilentDecrement
	}
	if c.MinTurnDelay == 0 {
		c.MinTurnDelay = def.MinTurnDelay
	}
	if c.MaxTurnDelay == 0 {
		c.MaxTurnDelay = def.MaxTurnDelay
	}
	if c.BackgroundInitialDelay == 0 {
		c.BackgroundInitialDelay = def.BackgroundInitialDelay
	}
	if c.BackgroundInterval == 0 {
		c.BackgroundInterval = def.BackgroundInterval
	}
	if c.BackgroundMinMessages == 0 {
		c.BackgroundMinMessages = def.BackgroundMinMessages
	}
	if c.EvolutionQueueSize == 0 {
		c.EvolutionQueueSize = def.EvolutionQueueSize
	}
	return c
}

// Orchestrator drives multi-agent turn taking for chat sessions: speaker
// selection, response streaming with optimistic placeholders, on-demand
// media generation, ambient background refresh and character evolution.
type Orchestrator struct {
	gen       ai.Service
	sink      Sink
	log       *logger.Logger
	cfg       Config
	metrics   *metrics
	evolution *evolutionWorker

	// Injected for deterministic tests.
	randFloat func() float64
	randIntn  func(n int) int
	sleep     func(ctx context.Context, d time.Duration)
}

// New creates an orchestrator. Close must be called to drain the evolution
// worker.
func New(gen ai.Service, characters CharacterWriter, sink Sink, cfg Config, log *logger.Logger) *Orchestrator {
	cfg = cfg.withDefaults()
	o := &Orchestrator{
		gen:       gen,
		sink:      sink,
		log:       log,
		cfg:       cfg,
		metrics:   newMetrics(),
		randFloat: rand.Float64,
		randIntn:  rand.Intn,
		sleep:     sleepContext,
	}
	o.evolution = newEvolutionWorker(gen, characters, sink, cfg.EvolutionQueueSize, log)
	return o
}

// Close stops the evolution worker. In-flight analyses finish; queued ones
// are dropped.
func (o *Orchestrator) Close() {
	o.evolution.close()
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
