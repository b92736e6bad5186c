package delivery

import (
	"context"
	"log/slog"

	"nichewatch/internal/model"
)

// LogSink is the delivery fallback when no webhook is configured: alerts are
// logged and counted as delivered. Useful for local runs and dry testing.
type LogSink struct{}

func (LogSink) Deliver(_ context.Context, opp model.Opportunity) (bool, error) {
	reply := ""
	if opp.GeneratedReply != nil {
		reply = opp.GeneratedReply.Text
	}
	slog.Info("delivery: alert (log sink)",
		"opportunity", opp.ID,
		"tier", opp.Tier,
		"score", opp.Score,
		"author", opp.Item.AuthorID,
		"text", opp.Item.Text,
		"reply", reply)
	return true, nil
}
