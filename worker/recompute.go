package worker

import (
	"context"
	"log/slog"

	"nichewatch/internal/feedback"

	"github.com/robfig/cron/v3"
)

// FeedbackRecompute runs the scoring-weight recompute on a cron schedule,
// independent of the acquisition cycle.
type FeedbackRecompute struct {
	Ingestor *feedback.Ingestor
	Schedule string // cron spec, e.g., "0 3 * * *"
}

func (w *FeedbackRecompute) Start(ctx context.Context) error {
	if w.Schedule == "" {
		w.Schedule = "0 3 * * *"
	}
	c := cron.New()
	_, err := c.AddFunc(w.Schedule, func() {
		if _, err := w.Ingestor.RecomputeWeights(ctx); err != nil {
			slog.Error("feedback-recompute: error", "error", err)
		}
	})
	if err != nil {
		return err
	}
	c.Start()
	<-ctx.Done()
	// let an in-flight recompute finish
	<-c.Stop().Done()
	return nil
}
