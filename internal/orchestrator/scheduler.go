package orchestrator

import (
	"context"
	"time"

	"ensemble-chat/backend/internal/models"
)

// RunTurns drives the agent turn loop after a user message has been
// committed. Turns are strictly sequential: each agent's generation fully
// resolves (spoken, silent or failed) before the next speaker is chosen.
//
// The loop stops when: the hard turn cap is reached, no eligible speaker
// exists, the decaying continuation propensity loses a random draw, or a
// turn fails. A failed turn is rolled back by the pipeline before the loop
// aborts, and its message is surfaced on the error channel.
func (o *Orchestrator) RunTurns(ctx context.Context, cell *Cell, cast []models.Character) {
	propensity := 1.0

	for turn := 0; turn < o.cfg.MaxTurns; turn++ {
		snapshot := cell.Snapshot()
		if len(snapshot.Messages) == 0 {
			// No one speaks first autonomously.
			return
		}

		eligible := eligibleSpeakers(cast, snapshot.LastSenderID())
		if len(eligible) == 0 {
			return
		}
		speaker := eligible[o.randIntn(len(eligible))]

		o.metrics.turnStarted(ctx)
		start := time.Now()
		outcome, err := o.runTurn(ctx, cell, speaker, cast, snapshot)
		if err != nil {
			o.metrics.turnRolledBack(ctx)
			o.log.LogError(err, "Agent turn failed",
				"session_id", snapshot.ID,
				"speaker", speaker.Name,
			)
			if msg := err.Error(); msg != "" {
				o.sink.Error(snapshot.ID, msg)
			}
			return
		}

		switch outcome {
		case turnSilent:
			o.metrics.turnSilent(ctx)
			propensity -= o.cfg.SilentDecrement
		default:
			o.metrics.turnCommitted(ctx, time.Since(start))
			propensity -= o.cfg.SpokenDecrement
		}

		if o.randFloat() > propensity {
			return
		}
		o.pause(ctx)
		if ctx.Err() != nil {
			return
		}
	}
}

// eligibleSpeakers returns every cast member other than the previous
// sender, so no agent ever responds to itself back to back.
func eligibleSpeakers(cast []models.Character, lastSenderID string) []models.Character {
	eligible := make([]models.Character, 0, len(cast))
	for _, c := range cast {
		if c.ID != lastSenderID {
			eligible = append(eligible, c)
		}
	}
	return eligible
}

// pause inserts the randomized conversational pacing delay between turns.
func (o *Orchestrator) pause(ctx context.Context) {
	span := o.cfg.MaxTurnDelay - o.cfg.MinTurnDelay
	delay := o.cfg.MinTurnDelay
	if span > 0 {
		delay += time.Duration(o.randFloat() * float64(span))
	}
	if delay > 0 {
		o.sleep(ctx, delay)
	}
}
