package orchestrator

import (
	"context"

	"ensemble-chat/backend/internal/models"
)

// BackgroundUpdater periodically refreshes a session's ambient background
// image from a rolling plot summary. One updater runs per open session
// view; Stop tears it down when the view closes or switches.
type BackgroundUpdater struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// StartBackgroundUpdater begins the refresh schedule for the session held
// by cell: one near-immediate kick, then a fixed recurring interval,
// independent of user activity.
func (o *Orchestrator) StartBackgroundUpdater(cell *Cell, cast []models.Character) *BackgroundUpdater {
	ctx, cancel := context.WithCancel(context.Background())
	u := &BackgroundUpdater{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(u.done)

		o.sleep(ctx, o.cfg.BackgroundInitialDelay)
		if ctx.Err() != nil {
			return
		}
		o.RefreshBackground(ctx, cell, cast)

		for {
			o.sleep(ctx, o.cfg.BackgroundInterval)
			if ctx.Err() != nil {
				return
			}
			o.RefreshBackground(ctx, cell, cast)
		}
	}()

	return u
}

// Stop cancels the schedule. An in-flight refresh that already started may
// still commit; its write goes through the cell like any other.
func (u *BackgroundUpdater) Stop() {
	u.cancel()
	<-u.done
}

// RefreshBackground performs one tick: read the live session, skip short
// transcripts, summarize, render, commit. Failures are logged and the tick
// is skipped; the next one starts fresh.
func (o *Orchestrator) RefreshBackground(ctx context.Context, cell *Cell, cast []models.Character) {
	snapshot := cell.Snapshot()
	if len(snapshot.Messages) < o.cfg.BackgroundMinMessages {
		return
	}

	descriptions := make([]string, 0, len(cast))
	for _, c := range cast {
		descriptions = append(descriptions, c.Name+": "+c.Description)
	}

	plot, err := o.gen.SummarizePlot(ctx, models.Transcript(snapshot.Messages), descriptions)
	if err != nil {
		o.log.Warn("Background summary failed", "session_id", snapshot.ID, "error", err.Error())
		return
	}

	url, err := o.gen.GenerateImage(ctx, "Wide atmospheric scene background: "+plot, inlineAvatars(cast))
	if err != nil {
		o.log.Warn("Background render failed", "session_id", snapshot.ID, "error", err.Error())
		return
	}
	if url == "" {
		return
	}

	cell.Update(setBackground(url))
	o.metrics.backgroundRefreshed(ctx)
}
