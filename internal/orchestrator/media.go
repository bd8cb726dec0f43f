package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"ensemble-chat/backend/internal/models"
)

// Requested media kinds.
const (
	MediaPhoto = "photo"
	MediaVideo = "video"
)

// ErrEmptyTranscript is returned when media is requested before anyone has
// said anything; no service call is made in that case.
var ErrEmptyTranscript = errors.New("start a conversation before requesting media")

// ErrEmptyMediaResult marks a generation call that succeeded but produced
// nothing usable; callers treat it like any other generation failure.
var ErrEmptyMediaResult = errors.New("media generation returned no result")

const (
	photoBusyCaption = "\U0001F4F8 Generating photo..."
	videoBusyCaption = "\U0001F4F9 Generating video (this may take a while)..."

	photoFinalCaption = "Here is a photo of the current situation:"
	videoFinalCaption = "Video from the scene:"
)

// GenerateMedia handles an explicit photo or video request for the current
// situation: summarize the transcript, run the generation behind a
// busy-caption placeholder, and commit or roll back. It never triggers
// agent turns.
func (o *Orchestrator) GenerateMedia(ctx context.Context, cell *Cell, cast []models.Character, mediaType string) (models.ChatSession, error) {
	snapshot := cell.Snapshot()
	if len(snapshot.Messages) == 0 {
		return snapshot, ErrEmptyTranscript
	}

	// Media messages are attributed to the first participant, the way a
	// shared camera would be.
	author := models.Message{
		SenderID:   "system",
		SenderName: "System",
	}
	if len(cast) > 0 {
		author.SenderID = cast[0].ID
		author.SenderName = cast[0].Name
	}

	busyCaption := photoBusyCaption
	if mediaType == MediaVideo {
		busyCaption = videoBusyCaption
	}

	placeholder := models.Message{
		ID:         uuid.NewString(),
		SenderID:   author.SenderID,
		SenderName: author.SenderName,
		Content:    busyCaption,
		Timestamp:  time.Now(),
	}
	cell.Update(appendMessage(placeholder))

	session, err := o.produceMedia(ctx, cell, cast, mediaType, snapshot, placeholder)
	if err != nil {
		session = cell.Update(removeMessage(placeholder.ID))
		o.sink.Error(snapshot.ID, err.Error())
		return session, err
	}
	return session, nil
}

func (o *Orchestrator) produceMedia(ctx context.Context, cell *Cell, cast []models.Character, mediaType string, snapshot models.ChatSession, placeholder models.Message) (models.ChatSession, error) {
	descriptions := make([]string, 0, len(cast))
	for _, c := range cast {
		descriptions = append(descriptions, c.Name+": "+c.Description)
	}

	plot, err := o.gen.SummarizePlot(ctx, models.Transcript(snapshot.Messages), descriptions)
	if err != nil {
		return snapshot, err
	}

	var mediaURL, caption string
	switch mediaType {
	case MediaVideo:
		caption = videoFinalCaption
		mediaURL, err = o.gen.GenerateVideo(ctx, plot)
	default:
		caption = photoFinalCaption
		mediaURL, err = o.gen.GenerateImage(ctx, "Scene description based on plot: "+plot, inlineAvatars(cast))
	}
	if err != nil {
		return snapshot, err
	}
	if mediaURL == "" {
		return snapshot, ErrEmptyMediaResult
	}

	finalMsg := models.Message{
		ID:         placeholder.ID,
		SenderID:   placeholder.SenderID,
		SenderName: placeholder.SenderName,
		Content:    caption,
		Timestamp:  time.Now(),
	}
	if mediaType == MediaVideo {
		finalMsg.VideoURL = mediaURL
	} else {
		finalMsg.ImageURL = mediaURL
	}

	return cell.Update(replaceMessage(placeholder.ID, finalMsg)), nil
}
