package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"ensemble-chat/backend/ai"
	"ensemble-chat/backend/internal/models"
)

type turnOutcome int

const (
	turnSpoken turnOutcome = iota
	turnSilent
)

// runTurn executes one agent's generation-and-commit cycle against the
// transcript captured in snapshot. A placeholder is inserted before the
// call and is always resolved: replaced by the final message (same ID),
// removed on silence, or removed on failure.
func (o *Orchestrator) runTurn(ctx context.Context, cell *Cell, speaker models.Character, cast []models.Character, snapshot models.ChatSession) (turnOutcome, error) {
	// The pre-turn transcript is captured before the placeholder goes in;
	// downstream effects (evolution analysis) are computed against it.
	transcript := models.Transcript(snapshot.Messages)

	placeholder := models.Message{
		ID:         uuid.NewString(),
		SenderID:   speaker.ID,
		SenderName: speaker.Name,
		Content:    models.PlaceholderContent,
		Timestamp:  time.Now(),
	}
	cell.Update(appendMessage(placeholder))

	req := ai.StreamTextRequest{
		AgentName:        speaker.Name,
		AgentDescription: speaker.Description,
		EvolutionContext: speaker.EvolutionContext,
		Transcript:       transcript,
		OtherNames:       otherParticipantNames(cast, speaker.ID),
		NSFW:             snapshot.IsNSFW,
	}

	// Once the silence directive shows up in the stream the placeholder
	// visibly freezes; remaining increments are not applied.
	silenceSeen := false
	final, err := o.gen.StreamText(ctx, req, func(cumulative string) {
		if ContainsSilence(cumulative) {
			silenceSeen = true
		}
		if silenceSeen {
			return
		}
		cell.Update(setMessageContent(placeholder.ID, cumulative))
	})
	if err != nil {
		cell.Update(removeMessage(placeholder.ID))
		return turnSpoken, err
	}

	if silenceSeen || ContainsSilence(final) {
		cell.Update(removeMessage(placeholder.ID))
		return turnSilent, nil
	}

	content, scene, hasDirective := ExtractImageDirective(final)
	imageURL := ""
	if hasDirective {
		// Secondary effect: an inline image failure never fails the turn.
		prompt := speaker.Description + ", " + scene
		url, imgErr := o.gen.GenerateImage(ctx, prompt, inlineAvatars(cast))
		if imgErr != nil {
			o.log.Warn("Inline image generation failed",
				"session_id", snapshot.ID,
				"speaker", speaker.Name,
				"error", imgErr.Error(),
			)
		} else {
			imageURL = url
		}
	}

	finalMsg := models.Message{
		ID:         placeholder.ID,
		SenderID:   speaker.ID,
		SenderName: speaker.Name,
		Content:    content,
		ImageURL:   imageURL,
		Timestamp:  time.Now(),
	}
	cell.Update(replaceMessage(placeholder.ID, finalMsg))

	// Fire-and-forget: the analyzer sees the transcript extended with the
	// line that just landed, and never delays the next scheduling decision.
	o.evolution.enqueue(evolutionJob{
		character: speaker,
		transcript: append(transcript, models.TranscriptLine{
			Sender: speaker.Name,
			Text:   content,
		}),
	})

	return turnSpoken, nil
}

// otherParticipantNames lists everyone the speaker is talking to, including
// the literal user label.
func otherParticipantNames(cast []models.Character, speakerID string) []string {
	names := make([]string, 0, len(cast))
	for _, c := range cast {
		if c.ID != speakerID {
			names = append(names, c.Name)
		}
	}
	return append(names, "User")
}

// inlineAvatars collects the avatars usable as image-generation references:
// only those embedded as inline image data, never external URLs.
func inlineAvatars(cast []models.Character) []string {
	avatars := make([]string, 0, len(cast))
	for _, c := range cast {
		if c.HasInlineAvatar() {
			avatars = append(avatars, c.Avatar)
		}
	}
	return avatars
}
