package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"nichewatch/internal/model"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists the state the pipeline owns: opportunities, feedback
// records, dispatch markers, and the quota/weights snapshots that survive
// restarts.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func oppKey(id string) string {
	return fmt.Sprintf("opp:item:%s", id)
}

func feedbackKey(id string) string {
	return fmt.Sprintf("opp:feedback:%s", id)
}

func dispatchedKey(id string) string {
	return fmt.Sprintf("alert:dispatched:%s", id)
}

func failedKey(id string) string {
	return fmt.Sprintf("alert:failed:%s", id)
}

const (
	feedbackIndexKey = "opp:feedback:index" // ZSET scored by receivedAt
	quotaKey         = "quota:state"
	weightsKey       = "scoring:weights"

	oppTTL      = 30 * 24 * time.Hour
	feedbackTTL = 60 * 24 * time.Hour
	markerTTL   = 30 * 24 * time.Hour
)

// SaveOpportunity stores a scored opportunity. Discarded items are never
// passed here; the dedup mark alone keeps them from being rescored.
func (s *RedisStore) SaveOpportunity(ctx context.Context, opp model.Opportunity) error {
	b, err := json.Marshal(opp)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, oppKey(opp.ID), b, oppTTL).Err()
}

// GetOpportunity loads one opportunity; found=false when it expired or never
// existed.
func (s *RedisStore) GetOpportunity(ctx context.Context, id string) (model.Opportunity, bool, error) {
	var opp model.Opportunity
	b, err := s.rdb.Get(ctx, oppKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return opp, false, nil
	}
	if err != nil {
		return opp, false, err
	}
	if err := json.Unmarshal(b, &opp); err != nil {
		return opp, false, err
	}
	return opp, true, nil
}

// SaveFeedback stores the latest feedback for an opportunity and indexes it
// by receipt time so recompute can scan a bounded window.
func (s *RedisStore) SaveFeedback(ctx context.Context, rec model.FeedbackRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, feedbackKey(rec.OpportunityID), b, feedbackTTL)
	pipe.ZAdd(ctx, feedbackIndexKey, redis.Z{
		Score:  float64(rec.ReceivedAt.Unix()),
		Member: rec.OpportunityID,
	})
	_, err = pipe.Exec(ctx)
	return err
}

// FeedbackSince returns feedback records received at or after the cutoff.
func (s *RedisStore) FeedbackSince(ctx context.Context, cutoff time.Time) ([]model.FeedbackRecord, error) {
	ids, err := s.rdb.ZRangeByScore(ctx, feedbackIndexKey, &redis.ZRangeBy{
		Min: fmt.Sprintf("%d", cutoff.Unix()),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]model.FeedbackRecord, 0, len(ids))
	for _, id := range ids {
		b, err := s.rdb.Get(ctx, feedbackKey(id)).Bytes()
		if errors.Is(err, redis.Nil) {
			continue // record expired under the index entry
		}
		if err != nil {
			return nil, err
		}
		var rec model.FeedbackRecord
		if err := json.Unmarshal(b, &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// TryMarkDispatched atomically records the dispatched-marker for an
// opportunity. Returns false when an alert was already sent for it.
func (s *RedisStore) TryMarkDispatched(ctx context.Context, oppID string) (bool, error) {
	return s.rdb.SetNX(ctx, dispatchedKey(oppID), time.Now().UTC().Format(time.RFC3339), markerTTL).Result()
}

// ClearDispatched removes the marker so a failed delivery can be retried.
func (s *RedisStore) ClearDispatched(ctx context.Context, oppID string) error {
	return s.rdb.Del(ctx, dispatchedKey(oppID)).Err()
}

// RecordDispatchFailure keeps a durable trace of an alert dropped after its
// retry, so failures are never silently lost.
func (s *RedisStore) RecordDispatchFailure(ctx context.Context, oppID, reason string) error {
	return s.rdb.Set(ctx, failedKey(oppID), reason, markerTTL).Err()
}

// SaveQuotaSnapshot / LoadQuotaSnapshot persist tracker state across restarts
// so a restart doesn't immediately re-exhaust quota.
func (s *RedisStore) SaveQuotaSnapshot(ctx context.Context, b []byte) error {
	return s.rdb.Set(ctx, quotaKey, b, 0).Err()
}

func (s *RedisStore) LoadQuotaSnapshot(ctx context.Context) ([]byte, error) {
	b, err := s.rdb.Get(ctx, quotaKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return b, err
}

// SaveWeights / LoadWeights persist the scoring-weights snapshot.
func (s *RedisStore) SaveWeights(ctx context.Context, w model.ScoringWeights) error {
	b, err := json.Marshal(w)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, weightsKey, b, 0).Err()
}

func (s *RedisStore) LoadWeights(ctx context.Context) (model.ScoringWeights, bool, error) {
	var w model.ScoringWeights
	b, err := s.rdb.Get(ctx, weightsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return w, false, nil
	}
	if err != nil {
		return w, false, err
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return w, false, err
	}
	return w, true, nil
}
