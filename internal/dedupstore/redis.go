package dedupstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps entries in one sorted set: member = signature, score =
// unix-second timestamp. Re-adding a signature updates its score, which is
// exactly the sliding-window refresh the pipeline wants. Expiry is a score
// range delete; membership is a score lookup.
//
// Bulk clearing a sorted set across a sharded deployment is best-effort;
// Cleanup here only prunes the one key this store owns.
type RedisStore struct {
	client *redis.Client
	key    string
	window time.Duration

	now func() time.Time
}

// NewRedisStore builds a store talking to the redis instance at addr. prefix
// namespaces the sorted-set key.
func NewRedisStore(addr, prefix string, window time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "logfold_"
	}
	return &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		key:    prefix + "dedup",
		window: window,
		now:    time.Now,
	}
}

// Get returns the valid members by score range. Server-side filtering only;
// expired members stay until Cleanup runs.
func (s *RedisStore) Get(ctx context.Context) ([]Entry, error) {
	limit := cutoff(s.now(), s.window)
	members, err := s.client.ZRangeByScoreWithScores(ctx, s.key, &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(limit, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}

	entries := make([]Entry, 0, len(members))
	for _, m := range members {
		sig, ok := m.Member.(string)
		if !ok {
			continue
		}
		entries = append(entries, Entry{Timestamp: int64(m.Score), Signature: sig})
	}
	return entries, nil
}

// Add upserts the signature with score now.
func (s *RedisStore) Add(ctx context.Context, signature string) error {
	err := s.client.ZAdd(ctx, s.key, redis.Z{
		Score:  float64(s.now().Unix()),
		Member: signature,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to add entry: %w", err)
	}
	return nil
}

// IsDuplicate checks the member's score against the validity window.
func (s *RedisStore) IsDuplicate(ctx context.Context, signature string) (bool, error) {
	score, err := s.client.ZScore(ctx, s.key, signature).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check for duplicate: %w", err)
	}
	return int64(score) > cutoff(s.now(), s.window), nil
}

// Cleanup removes members whose score has left the window.
func (s *RedisStore) Cleanup(ctx context.Context) error {
	limit := strconv.FormatInt(cutoff(s.now(), s.window), 10)
	if err := s.client.ZRemRangeByScore(ctx, s.key, "-inf", limit).Err(); err != nil {
		return fmt.Errorf("failed to remove expired entries: %w", err)
	}
	return nil
}

// Close closes the redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
