package config

// AppConfig holds application-level settings.
type AppConfig struct {
	LogLevel string `mapstructure:"log_level"`
}

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SourceConfig controls the platform read API (keyword search + timelines).
type SourceConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	BearerToken    string `mapstructure:"bearer_token"`
	RequestTimeout string `mapstructure:"request_timeout"` // duration string, e.g., "15s"
	MaxResults     int    `mapstructure:"max_results"`     // per search/timeline call
}

// GatewayConfig controls retry behavior for source calls.
type GatewayConfig struct {
	BackoffBase string `mapstructure:"backoff_base"` // base delay, e.g., "2s"
	BackoffCap  string `mapstructure:"backoff_cap"`  // max delay, e.g., "60s"
	MaxAttempts int    `mapstructure:"max_attempts"` // transient retry ceiling
}

// MonitorConfig controls the acquisition sweeps.
type MonitorConfig struct {
	KeywordInterval  string `mapstructure:"keyword_interval"`  // e.g., "15m"
	TimelineInterval string `mapstructure:"timeline_interval"` // e.g., "30m"
	KeywordsPerSweep int    `mapstructure:"keywords_per_sweep"`
	RotationStrategy string `mapstructure:"rotation_strategy"` // focused|broad|narrative|mixed
	RecencyWindow    string `mapstructure:"recency_window"`    // timeline lookback, e.g., "2h"
}

// ScoringConfig tunes the scoring engine and tier thresholds.
type ScoringConfig struct {
	ImmediateThreshold float64 `mapstructure:"immediate_threshold"`
	PriorityThreshold  float64 `mapstructure:"priority_threshold"`
	DigestThreshold    float64 `mapstructure:"digest_threshold"`
	TierOneFloor       float64 `mapstructure:"tier_one_floor"`
	MinSentiment       float64 `mapstructure:"min_sentiment"`
	HighRelevance      float64 `mapstructure:"high_relevance"` // relevance that overrides the sentiment floor
	EngagementCap      int     `mapstructure:"engagement_cap"` // metric total treated as max engagement
}

// OpenAIConfig configures the AI collaborators (judge + reply generator).
type OpenAIConfig struct {
	APIKey       string `mapstructure:"api_key"`
	Model        string `mapstructure:"model"`
	BaseURL      string `mapstructure:"base_url"`
	VoiceProfile string `mapstructure:"voice_profile"`
}

// AlertsConfig controls alert delivery.
type AlertsConfig struct {
	WebhookURL     string `mapstructure:"webhook_url"`
	RequestTimeout string `mapstructure:"request_timeout"`
}

// FeedbackConfig controls feedback aggregation and weight recompute.
type FeedbackConfig struct {
	RecomputeSchedule string `mapstructure:"recompute_schedule"` // cron spec
	Window            string `mapstructure:"window"`             // lookback, e.g., "720h"
	MinSamples        int    `mapstructure:"min_samples"`
}

// DedupConfig controls dedup retention.
type DedupConfig struct {
	Retention string `mapstructure:"retention"` // e.g., "168h"
}

// WebConfig controls the feedback/status HTTP server.
type WebConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// Config is the top-level configuration structure.
type Config struct {
	App       AppConfig      `mapstructure:"app"`
	Redis     RedisConfig    `mapstructure:"redis"`
	Source    SourceConfig   `mapstructure:"source"`
	Gateway   GatewayConfig  `mapstructure:"gateway"`
	Monitor   MonitorConfig  `mapstructure:"monitor"`
	Scoring   ScoringConfig  `mapstructure:"scoring"`
	OpenAI    OpenAIConfig   `mapstructure:"openai"`
	Alerts    AlertsConfig   `mapstructure:"alerts"`
	Feedback  FeedbackConfig `mapstructure:"feedback"`
	Dedup     DedupConfig    `mapstructure:"dedup"`
	Web       WebConfig      `mapstructure:"web"`
	Watchlist string         `mapstructure:"watchlist"` // path to the watchlist YAML
}

// FillDefaults applies default values if not provided.
func (c *Config) FillDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "127.0.0.1:6379"
	}
	if c.Source.BaseURL == "" {
		c.Source.BaseURL = "https://api.x.com/2"
	}
	if c.Source.RequestTimeout == "" {
		c.Source.RequestTimeout = "15s"
	}
	if c.Source.MaxResults == 0 {
		c.Source.MaxResults = 25
	}
	if c.Gateway.BackoffBase == "" {
		c.Gateway.BackoffBase = "2s"
	}
	if c.Gateway.BackoffCap == "" {
		c.Gateway.BackoffCap = "60s"
	}
	if c.Gateway.MaxAttempts == 0 {
		c.Gateway.MaxAttempts = 3
	}
	if c.Monitor.KeywordInterval == "" {
		c.Monitor.KeywordInterval = "15m"
	}
	if c.Monitor.TimelineInterval == "" {
		c.Monitor.TimelineInterval = "30m"
	}
	if c.Monitor.KeywordsPerSweep == 0 {
		c.Monitor.KeywordsPerSweep = 5
	}
	if c.Monitor.RotationStrategy == "" {
		c.Monitor.RotationStrategy = "mixed"
	}
	if c.Monitor.RecencyWindow == "" {
		c.Monitor.RecencyWindow = "2h"
	}
	if c.Scoring.ImmediateThreshold == 0 {
		c.Scoring.ImmediateThreshold = 0.80
	}
	if c.Scoring.PriorityThreshold == 0 {
		c.Scoring.PriorityThreshold = 0.60
	}
	if c.Scoring.DigestThreshold == 0 {
		c.Scoring.DigestThreshold = 0.40
	}
	if c.Scoring.TierOneFloor == 0 {
		c.Scoring.TierOneFloor = 0.85
	}
	if c.Scoring.MinSentiment == 0 {
		c.Scoring.MinSentiment = 0.4
	}
	if c.Scoring.HighRelevance == 0 {
		c.Scoring.HighRelevance = 0.85
	}
	if c.Scoring.EngagementCap == 0 {
		c.Scoring.EngagementCap = 500
	}
	if c.Alerts.RequestTimeout == "" {
		c.Alerts.RequestTimeout = "10s"
	}
	if c.Feedback.RecomputeSchedule == "" {
		c.Feedback.RecomputeSchedule = "0 3 * * *"
	}
	if c.Feedback.Window == "" {
		c.Feedback.Window = "720h" // 30 days
	}
	if c.Feedback.MinSamples == 0 {
		c.Feedback.MinSamples = 10
	}
	if c.Dedup.Retention == "" {
		c.Dedup.Retention = "168h" // a week; bounds dedup growth
	}
	if c.Web.ListenAddr == "" {
		c.Web.ListenAddr = ":8090"
	}
	if c.Watchlist == "" {
		c.Watchlist = "watchlist.yaml"
	}
}
