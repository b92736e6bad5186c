package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"nichewatch/internal/feedback"
	"nichewatch/internal/model"
	"nichewatch/internal/quota"
	"nichewatch/internal/scoring"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the feedback intake, the status surface, and prometheus
// metrics. It runs as a worker under the manager.
type Server struct {
	Addr     string
	Ingestor *feedback.Ingestor
	Tracker  *quota.Tracker
	Engine   *scoring.Engine
}

func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/feedback", s.handleFeedback)
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("web: listening", "addr", s.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type feedbackRequest struct {
	OpportunityID string `json:"opportunity_id"`
	QualityRating int    `json:"quality_rating,omitempty"`
	ReplyUsage    string `json:"reply_usage,omitempty"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}
	rec := model.FeedbackRecord{
		OpportunityID: req.OpportunityID,
		QualityRating: req.QualityRating,
		ReplyUsage:    model.ReplyUsage(req.ReplyUsage),
		ReceivedAt:    time.Now().UTC(),
	}
	if err := s.Ingestor.RecordFeedback(r.Context(), rec); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "recorded"})
}

type statusResponse struct {
	Quota   map[string]quota.State `json:"quota"`
	Weights model.ScoringWeights   `json:"weights"`
	Time    time.Time              `json:"time"`
}

// handleStatus is the explicit observability surface: absence of alerts
// under quota exhaustion or auth failure must be visible here, not just in
// logs.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp := statusResponse{
		Quota: map[string]quota.State{
			string(quota.EndpointSearch):   s.Tracker.Get(quota.EndpointSearch),
			string(quota.EndpointTimeline): s.Tracker.Get(quota.EndpointTimeline),
		},
		Weights: s.Engine.Weights(),
		Time:    time.Now().UTC(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
