package xapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"nichewatch/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchBody = `{
  "data": [
    {
      "id": "1901",
      "text": "Anyone tried unichain hooks for MEV protection?",
      "author_id": "42",
      "created_at": "2026-08-29T10:00:00Z",
      "public_metrics": {"like_count": 12, "retweet_count": 3, "reply_count": 5}
    }
  ]
}`

func TestSearchRecentConvertsItemsAndHeaders(t *testing.T) {
	reset := time.Now().Add(10 * time.Minute).Unix()
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		w.Header().Set("x-rate-limit-limit", "60")
		w.Header().Set("x-rate-limit-remaining", "41")
		w.Header().Set("x-rate-limit-reset", strconv.FormatInt(reset, 10))
		_, _ = w.Write([]byte(searchBody))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "token-1", time.Second, 25)
	items, meta, err := c.SearchRecent(context.Background(), "unichain")
	require.NoError(t, err)

	assert.Equal(t, "unichain -is:retweet lang:en", gotQuery)
	require.Len(t, items, 1)
	it := items[0]
	assert.Equal(t, "1901", it.ID)
	assert.Equal(t, model.SourceKeywordSearch, it.Source)
	assert.Equal(t, "42", it.AuthorID)
	assert.Equal(t, "unichain", it.MatchedKeyword)
	assert.Equal(t, 20, it.PublicMetrics.Total())
	assert.Equal(t, 2026, it.CreatedAt.Year())

	assert.Equal(t, 60, meta.Limit)
	assert.Equal(t, 41, meta.Remaining)
	assert.Equal(t, reset, meta.ResetAt.Unix())
}

func TestUserTimelineFillsAuthorAndExcludes(t *testing.T) {
	var gotPath, gotExclude, gotStart string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotExclude = r.URL.Query().Get("exclude")
		gotStart = r.URL.Query().Get("start_time")
		_, _ = w.Write([]byte(`{"data":[{"id":"1902","text":"shipping a new hook design today"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "token-1", time.Second, 25)
	since := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	items, _, err := c.UserTimeline(context.Background(), "42", since)
	require.NoError(t, err)

	assert.Equal(t, "/users/42/tweets", gotPath)
	assert.Equal(t, "retweets,replies", gotExclude)
	assert.Equal(t, "2026-08-28T12:00:00Z", gotStart)
	require.Len(t, items, 1)
	assert.Equal(t, model.SourceAccountTimeline, items[0].Source)
	// author_id missing from the payload: backfilled from the request
	assert.Equal(t, "42", items[0].AuthorID)
}

func TestStatusErrorCarriesCodeAndQuota(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-rate-limit-limit", "60")
		w.Header().Set("x-rate-limit-remaining", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "token-1", time.Second, 25)
	_, meta, err := c.SearchRecent(context.Background(), "unichain")
	require.Error(t, err)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.Code)
	assert.Equal(t, "search", se.Endpoint)
	// quota headers are surfaced even on an error response
	assert.Equal(t, 60, meta.Limit)
	assert.Zero(t, meta.Remaining)
}

func TestMissingHeadersLeaveMetaZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "token-1", time.Second, 25)
	items, meta, err := c.SearchRecent(context.Background(), "unichain")
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, meta.Limit)
	assert.True(t, meta.ResetAt.IsZero())
}
