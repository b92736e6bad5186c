package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"nichewatch/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// Judge produces the external sentiment/engagement-potential judgment used
// as a scoring input.
type Judge interface {
	Assess(ctx context.Context, text string) (model.Signal, error)
}

// ReplyGenerator drafts a suggested reply for an opportunity. Best-effort:
// dispatch proceeds without a reply when generation fails.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, item model.ContentItem, voiceProfile string) (model.GeneratedReply, error)
}

// OpenAIClient implements Judge and ReplyGenerator on the Chat Completions API.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

type Config struct {
	APIKey  string
	Model   string
	BaseURL string // optional
}

func NewOpenAI(cfg Config) *OpenAIClient {
	var c *openai.Client
	if cfg.BaseURL != "" {
		cc := openai.DefaultConfig(cfg.APIKey)
		cc.BaseURL = cfg.BaseURL
		c = openai.NewClientWithConfig(cc)
	} else {
		c = openai.NewClient(cfg.APIKey)
	}
	model := cfg.Model
	if model == "" {
		panic("OpenAI model must be specified")
	}
	return &OpenAIClient{client: c, model: model}
}

type signalPayload struct {
	Sentiment           float64 `json:"sentiment"`
	EngagementPotential float64 `json:"engagement_potential"`
}

// Assess judges sentiment and engagement potential for a post, both in [0,1].
func (o *OpenAIClient) Assess(ctx context.Context, text string) (model.Signal, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	text = truncate(strings.TrimSpace(text), 800)
	sys := `You judge short social-media posts about DeFi and onchain infrastructure.
Return strict JSON: {"sentiment": <0..1>, "engagement_potential": <0..1>}.
Sentiment: 0 hostile, 0.5 neutral, 1 enthusiastic.
Engagement potential: how likely a thoughtful technical reply earns genuine discussion.`
	out, err := o.create(ctx, sys, "Post: "+text)
	if err != nil {
		slog.Error("openai: assess error", "err", err)
		return model.NeutralSignal(), err
	}
	var p signalPayload
	if err := json.Unmarshal([]byte(extractJSON(out)), &p); err != nil {
		return model.NeutralSignal(), fmt.Errorf("ai: parse signal: %w", err)
	}
	return model.Signal{
		Sentiment:           clamp01(p.Sentiment),
		EngagementPotential: clamp01(p.EngagementPotential),
	}, nil
}

type replyPayload struct {
	Reply      string  `json:"reply"`
	Confidence float64 `json:"confidence"`
}

// GenerateReply drafts a reply in the configured voice.
func (o *OpenAIClient) GenerateReply(ctx context.Context, item model.ContentItem, voiceProfile string) (model.GeneratedReply, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	if strings.TrimSpace(voiceProfile) == "" {
		voiceProfile = "a practical engineer who has shipped AMM integrations; direct, no hype, no emoji"
	}
	sys := fmt.Sprintf(`You draft one short reply (under 280 characters) to a social-media post, written as %s.
Add something substantive: a concrete experience, a pointed question, or a technical nuance.
Return strict JSON: {"reply": "...", "confidence": <0..1>}.`, voiceProfile)
	user := fmt.Sprintf("Post: %s\nMatched topic: %s", truncate(item.Text, 800), item.MatchedKeyword)
	out, err := o.create(ctx, sys, user)
	if err != nil {
		slog.Error("openai: generate reply error", "err", err)
		return model.GeneratedReply{}, err
	}
	var p replyPayload
	if err := json.Unmarshal([]byte(extractJSON(out)), &p); err != nil {
		return model.GeneratedReply{}, fmt.Errorf("ai: parse reply: %w", err)
	}
	return model.GeneratedReply{Text: strings.TrimSpace(p.Reply), Confidence: clamp01(p.Confidence)}, nil
}

func (o *OpenAIClient) create(ctx context.Context, system, user string) (string, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 60*time.Second)
		defer cancel()
	}
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// extractJSON pulls the first {...} block out of a model response that may
// wrap the JSON in prose or code fences.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
