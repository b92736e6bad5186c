package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nichewatch/internal/ai"
	"nichewatch/internal/alert"
	"nichewatch/internal/config"
	"nichewatch/internal/dedup"
	"nichewatch/internal/delivery"
	"nichewatch/internal/feedback"
	"nichewatch/internal/gateway"
	"nichewatch/internal/quota"
	"nichewatch/internal/redisclient"
	"nichewatch/internal/rotation"
	"nichewatch/internal/scoring"
	"nichewatch/internal/storage"
	"nichewatch/internal/watchlist"
	"nichewatch/internal/web"
	"nichewatch/internal/xapi"
	"nichewatch/worker"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the opportunity-detection pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		rdb := redisclient.New(cfg.Redis)
		defer rdb.Close()
		store := storage.NewRedisStore(rdb)

		wl, err := watchlist.Load(cfg.Watchlist)
		if err != nil {
			return err
		}

		// quota tracker, restored so a restart doesn't re-exhaust quota
		tracker := quota.NewTracker()
		if snap, err := store.LoadQuotaSnapshot(ctx); err != nil {
			slog.Warn("serve: quota snapshot load failed", "error", err)
		} else if snap != nil {
			if err := tracker.Restore(snap); err != nil {
				slog.Warn("serve: quota snapshot restore failed", "error", err)
			}
		}

		gw, err := buildGateway(cfg, tracker)
		if err != nil {
			return err
		}

		retention, err := time.ParseDuration(cfg.Dedup.Retention)
		if err != nil {
			return fmt.Errorf("invalid dedup retention: %w", err)
		}
		dedupStore := dedup.NewRedisStore(rdb, retention)

		engine := scoring.NewEngine(wl, scoring.Config{
			MinSentiment:  cfg.Scoring.MinSentiment,
			HighRelevance: cfg.Scoring.HighRelevance,
			EngagementCap: cfg.Scoring.EngagementCap,
		})
		if w, found, err := store.LoadWeights(ctx); err != nil {
			slog.Warn("serve: weights load failed, using defaults", "error", err)
		} else if found {
			engine.SetWeights(w)
		}
		classifier := scoring.Classifier{
			Immediate:    cfg.Scoring.ImmediateThreshold,
			Priority:     cfg.Scoring.PriorityThreshold,
			Digest:       cfg.Scoring.DigestThreshold,
			TierOneFloor: cfg.Scoring.TierOneFloor,
		}

		var judge ai.Judge
		var replies ai.ReplyGenerator
		if cfg.OpenAI.APIKey != "" {
			oc := ai.NewOpenAI(ai.Config{APIKey: cfg.OpenAI.APIKey, Model: cfg.OpenAI.Model, BaseURL: cfg.OpenAI.BaseURL})
			judge = oc
			replies = oc
		}

		var deliverer alert.Deliverer = delivery.LogSink{}
		if cfg.Alerts.WebhookURL != "" {
			dt, err := time.ParseDuration(cfg.Alerts.RequestTimeout)
			if err != nil {
				return fmt.Errorf("invalid alerts request_timeout: %w", err)
			}
			deliverer = delivery.New(cfg.Alerts.WebhookURL, dt)
		}
		dispatcher := alert.NewDispatcher(deliverer, store)

		pipeline := &worker.Pipeline{
			Dedup:         dedupStore,
			Engine:        engine,
			Classifier:    classifier,
			Dispatcher:    dispatcher,
			Opportunities: store,
			Tiers:         wl,
			Judge:         judge,
			Replies:       replies,
			VoiceProfile:  cfg.OpenAI.VoiceProfile,
		}

		keywordInterval, err := time.ParseDuration(cfg.Monitor.KeywordInterval)
		if err != nil {
			return fmt.Errorf("invalid keyword_interval: %w", err)
		}
		timelineInterval, err := time.ParseDuration(cfg.Monitor.TimelineInterval)
		if err != nil {
			return fmt.Errorf("invalid timeline_interval: %w", err)
		}
		recency, err := time.ParseDuration(cfg.Monitor.RecencyWindow)
		if err != nil {
			return fmt.Errorf("invalid recency_window: %w", err)
		}

		rotator := rotation.New(wl, rotation.Strategy(cfg.Monitor.RotationStrategy), time.Now().UnixNano())

		// accounts tier 1 first so high-priority timelines win the quota race
		var accounts []worker.TrackedAccount
		for _, id := range wl.Accounts.Tier1 {
			accounts = append(accounts, worker.TrackedAccount{ID: id, Tier: 1})
		}
		for _, id := range wl.Accounts.Tier2 {
			accounts = append(accounts, worker.TrackedAccount{ID: id, Tier: 2})
		}

		feedbackWindow, err := time.ParseDuration(cfg.Feedback.Window)
		if err != nil {
			return fmt.Errorf("invalid feedback window: %w", err)
		}
		ingestor := feedback.NewIngestor(store, engine, feedbackWindow, cfg.Feedback.MinSamples)

		ws := []worker.Worker{
			&worker.KeywordSweep{
				Gateway:  gw,
				Rotator:  rotator,
				Pipeline: pipeline,
				Interval: keywordInterval,
				Count:    cfg.Monitor.KeywordsPerSweep,
			},
			&worker.TimelineSweep{
				Gateway:       gw,
				Pipeline:      pipeline,
				Accounts:      accounts,
				Interval:      timelineInterval,
				RecencyWindow: recency,
			},
			&worker.FeedbackRecompute{
				Ingestor: ingestor,
				Schedule: cfg.Feedback.RecomputeSchedule,
			},
			&worker.QuotaPersister{
				Tracker: tracker,
				Store:   store,
			},
			&web.Server{
				Addr:     cfg.Web.ListenAddr,
				Ingestor: ingestor,
				Tracker:  tracker,
				Engine:   engine,
			},
		}

		slog.Info("serve: starting workers",
			"keywords", len(wl.AllTerms()),
			"accounts", len(accounts),
			"keyword_interval", keywordInterval,
			"timeline_interval", timelineInterval)

		// Signal handling for systemd
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			s := <-sigc
			slog.Info("serve: received signal, shutting down", "signal", s.String())
			cancel()
		}()

		return worker.NewManager(ws...).Start(ctx)
	},
}

func buildGateway(cfg config.Config, tracker *quota.Tracker) (*gateway.Gateway, error) {
	reqTimeout, err := time.ParseDuration(cfg.Source.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid source request_timeout: %w", err)
	}
	base, err := time.ParseDuration(cfg.Gateway.BackoffBase)
	if err != nil {
		return nil, fmt.Errorf("invalid backoff_base: %w", err)
	}
	maxDelay, err := time.ParseDuration(cfg.Gateway.BackoffCap)
	if err != nil {
		return nil, fmt.Errorf("invalid backoff_cap: %w", err)
	}
	src := xapi.NewClient(cfg.Source.BaseURL, cfg.Source.BearerToken, reqTimeout, cfg.Source.MaxResults)
	return gateway.New(src, tracker, gateway.Options{
		BackoffBase: base,
		BackoffCap:  maxDelay,
		MaxAttempts: cfg.Gateway.MaxAttempts,
	}), nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
