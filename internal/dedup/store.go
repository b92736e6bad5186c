package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the persistent set of already-processed content identifiers.
// MarkSeen is idempotent and visible to Seen before Flush; Flush makes
// pending marks durable. Retention is a concern of the store, not the
// pipeline: implementations may evict old entries.
type Store interface {
	Seen(ctx context.Context, contentID string) (bool, error)
	MarkSeen(ctx context.Context, contentID string) error
	Flush(ctx context.Context) error
}

func seenKey(contentID string) string {
	return fmt.Sprintf("dedup:seen:%s", contentID)
}

// RedisStore persists seen-marks as per-id keys with a retention TTL, so the
// set stays bounded to the relevant recency window without any sweeper.
// Marks are buffered in memory and written out on Flush.
type RedisStore struct {
	rdb       *redis.Client
	retention time.Duration

	mu      sync.Mutex
	cache   map[string]struct{} // everything known seen in this process
	pending []string            // marks not yet flushed
}

func NewRedisStore(rdb *redis.Client, retention time.Duration) *RedisStore {
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	return &RedisStore{
		rdb:       rdb,
		retention: retention,
		cache:     map[string]struct{}{},
	}
}

func (s *RedisStore) Seen(ctx context.Context, contentID string) (bool, error) {
	s.mu.Lock()
	if _, ok := s.cache[contentID]; ok {
		s.mu.Unlock()
		return true, nil
	}
	s.mu.Unlock()

	n, err := s.rdb.Exists(ctx, seenKey(contentID)).Result()
	if err != nil {
		return false, fmt.Errorf("dedup: seen check %s: %w", contentID, err)
	}
	if n > 0 {
		s.mu.Lock()
		s.cache[contentID] = struct{}{}
		s.mu.Unlock()
		return true, nil
	}
	return false, nil
}

// MarkSeen records the id locally right away; re-marking a known id is a
// no-op, not an error.
func (s *RedisStore) MarkSeen(_ context.Context, contentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cache[contentID]; ok {
		return nil
	}
	s.cache[contentID] = struct{}{}
	s.pending = append(s.pending, contentID)
	return nil
}

// Flush durably persists pending marks. SETNX keeps the first-seen timestamp
// stable when another writer got there first.
func (s *RedisStore) Flush(ctx context.Context) error {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()
	if len(pending) == 0 {
		return nil
	}

	now := time.Now().UTC().Format(time.RFC3339)
	pipe := s.rdb.Pipeline()
	for _, id := range pending {
		pipe.SetNX(ctx, seenKey(id), now, s.retention)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		// put them back so the next flush retries
		s.mu.Lock()
		s.pending = append(pending, s.pending...)
		s.mu.Unlock()
		return fmt.Errorf("dedup: flush %d marks: %w", len(pending), err)
	}
	slog.Debug("dedup: flushed marks", "count", len(pending))
	return nil
}

// MemoryStore is an in-process Store for tests and redis-less runs.
type MemoryStore struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: map[string]time.Time{}}
}

func (s *MemoryStore) Seen(_ context.Context, contentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[contentID]
	return ok, nil
}

func (s *MemoryStore) MarkSeen(_ context.Context, contentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[contentID]; !ok {
		s.seen[contentID] = time.Now()
	}
	return nil
}

func (s *MemoryStore) Flush(context.Context) error { return nil }
