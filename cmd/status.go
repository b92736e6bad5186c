package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"nichewatch/internal/model"
	"nichewatch/internal/redisclient"
	"nichewatch/internal/storage"

	"github.com/spf13/cobra"
)

// statusCmd prints the persisted quota and weights snapshots.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print persisted quota state and scoring weights",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		rdb := redisclient.New(cfg.Redis)
		defer rdb.Close()
		store := storage.NewRedisStore(rdb)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		snap, err := store.LoadQuotaSnapshot(ctx)
		if err != nil {
			return err
		}
		if snap == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "quota: no snapshot persisted")
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "quota: %s\n", snap)
		}

		w, found, err := store.LoadWeights(ctx)
		if err != nil {
			return err
		}
		if !found {
			w = model.DefaultWeights()
			fmt.Fprintln(cmd.OutOrStdout(), "weights: defaults (no recompute persisted)")
		}
		b, err := json.MarshalIndent(w, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "weights: %s\n", b)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
