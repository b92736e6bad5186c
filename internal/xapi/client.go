package xapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"nichewatch/internal/model"
	"nichewatch/internal/quota"
)

// Client is a minimal client for the platform's v2 read API: recent keyword
// search and account timelines. Every response carries rate-limit headers
// which are surfaced to the caller as quota.Meta.
type Client struct {
	baseURL    string
	bearer     string
	maxResults int
	client     *http.Client
}

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	Code     int
	Endpoint string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("xapi: %s status %d", e.Endpoint, e.Code)
}

// NewClient creates a platform API client. baseURL should be something like
// "https://api.x.com/2".
func NewClient(baseURL, bearerToken string, timeout time.Duration, maxResults int) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if maxResults <= 0 {
		maxResults = 25
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		bearer:     bearerToken,
		maxResults: maxResults,
		client:     &http.Client{Timeout: timeout},
	}
}

// apiTweet mirrors the subset of tweet fields we care about.
type apiTweet struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	AuthorID      string `json:"author_id"`
	CreatedAt     string `json:"created_at"`
	PublicMetrics struct {
		LikeCount    int `json:"like_count"`
		RetweetCount int `json:"retweet_count"`
		ReplyCount   int `json:"reply_count"`
	} `json:"public_metrics"`
}

type apiResponse struct {
	Data []apiTweet `json:"data"`
}

// SearchRecent runs a recent-search query and returns matching items plus
// the quota metadata echoed in the response headers.
func (c *Client) SearchRecent(ctx context.Context, query string) ([]model.ContentItem, quota.Meta, error) {
	q := url.Values{}
	q.Set("query", query+" -is:retweet lang:en")
	q.Set("max_results", strconv.Itoa(c.maxResults))
	q.Set("tweet.fields", "created_at,author_id,public_metrics")
	endpoint := fmt.Sprintf("%s/tweets/search/recent?%s", c.baseURL, q.Encode())

	tweets, meta, err := c.get(ctx, endpoint, "search")
	if err != nil {
		return nil, meta, err
	}
	items := make([]model.ContentItem, 0, len(tweets))
	for _, t := range tweets {
		it := convertTweet(t, model.SourceKeywordSearch)
		it.MatchedKeyword = query
		items = append(items, it)
	}
	return items, meta, nil
}

// UserTimeline fetches an account's recent posts newer than since.
func (c *Client) UserTimeline(ctx context.Context, accountID string, since time.Time) ([]model.ContentItem, quota.Meta, error) {
	q := url.Values{}
	q.Set("max_results", strconv.Itoa(c.maxResults))
	q.Set("tweet.fields", "created_at,author_id,public_metrics")
	q.Set("exclude", "retweets,replies")
	if !since.IsZero() {
		q.Set("start_time", since.UTC().Format(time.RFC3339))
	}
	endpoint := fmt.Sprintf("%s/users/%s/tweets?%s", c.baseURL, url.PathEscape(accountID), q.Encode())

	tweets, meta, err := c.get(ctx, endpoint, "timeline")
	if err != nil {
		return nil, meta, err
	}
	items := make([]model.ContentItem, 0, len(tweets))
	for _, t := range tweets {
		it := convertTweet(t, model.SourceAccountTimeline)
		if it.AuthorID == "" {
			it.AuthorID = accountID
		}
		items = append(items, it)
	}
	return items, meta, nil
}

func (c *Client) get(ctx context.Context, endpoint, name string) ([]apiTweet, quota.Meta, error) {
	var meta quota.Meta
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, meta, err
	}
	req.Header.Set("Authorization", "Bearer "+c.bearer)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, meta, err
	}
	defer resp.Body.Close()

	meta = parseQuotaHeaders(resp.Header)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, meta, &StatusError{Code: resp.StatusCode, Endpoint: name}
	}
	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, meta, fmt.Errorf("xapi: decode %s response: %w", name, err)
	}
	return body.Data, meta, nil
}

// parseQuotaHeaders reads the x-rate-limit-* trio. Missing headers leave the
// corresponding Meta field zero, which the quota tracker ignores.
func parseQuotaHeaders(h http.Header) quota.Meta {
	var m quota.Meta
	if v := h.Get("x-rate-limit-limit"); v != "" {
		m.Limit, _ = strconv.Atoi(v)
	}
	if v := h.Get("x-rate-limit-remaining"); v != "" {
		m.Remaining, _ = strconv.Atoi(v)
	}
	if v := h.Get("x-rate-limit-reset"); v != "" {
		if sec, err := strconv.ParseInt(v, 10, 64); err == nil && sec > 0 {
			m.ResetAt = time.Unix(sec, 0)
		}
	}
	return m
}

func convertTweet(t apiTweet, src model.Source) model.ContentItem {
	created, _ := time.Parse(time.RFC3339, t.CreatedAt)
	return model.ContentItem{
		ID:        t.ID,
		Source:    src,
		AuthorID:  t.AuthorID,
		Text:      t.Text,
		CreatedAt: created,
		PublicMetrics: model.PublicMetrics{
			Likes:   t.PublicMetrics.LikeCount,
			Reposts: t.PublicMetrics.RetweetCount,
			Replies: t.PublicMetrics.ReplyCount,
		},
	}
}
