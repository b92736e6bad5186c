package cmd

import (
	"context"
	"fmt"
	"time"

	"nichewatch/internal/feedback"
	"nichewatch/internal/model"
	"nichewatch/internal/redisclient"
	"nichewatch/internal/scoring"
	"nichewatch/internal/storage"
	"nichewatch/internal/watchlist"

	"github.com/spf13/cobra"
)

var (
	feedbackRating int
	feedbackUsage  string
)

// feedbackCmd records a quality rating / reply usage for an opportunity
// without going through the HTTP intake.
var feedbackCmd = &cobra.Command{
	Use:   "feedback <opportunity-id>",
	Short: "Record feedback for an opportunity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		rdb := redisclient.New(cfg.Redis)
		defer rdb.Close()
		store := storage.NewRedisStore(rdb)

		// the sink is unused for a one-shot record; a bare engine satisfies it
		engine := scoring.NewEngine(&watchlist.Watchlist{}, scoring.Config{})
		ing := feedback.NewIngestor(store, engine, 0, 0)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		rec := model.FeedbackRecord{
			OpportunityID: args[0],
			QualityRating: feedbackRating,
			ReplyUsage:    model.ReplyUsage(feedbackUsage),
			ReceivedAt:    time.Now().UTC(),
		}
		if err := ing.RecordFeedback(ctx, rec); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "recorded")
		return nil
	},
}

func init() {
	feedbackCmd.Flags().IntVar(&feedbackRating, "rating", 0, "quality rating 1-5")
	feedbackCmd.Flags().StringVar(&feedbackUsage, "usage", "", "reply usage: primary|alt1|alt2|custom|none")
	rootCmd.AddCommand(feedbackCmd)
}
