package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/avidquiz/internal/domain"
)

const allModes = "all"

// RedisStore keeps one sorted set per mode plus one across modes. Members
// are the JSON-encoded entries, scored by the entry score.
type RedisStore struct {
	redis    redis.UniversalClient
	prefix   string
	capacity int
}

func NewRedisStore(r redis.UniversalClient, prefix string, capacity int) *RedisStore {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &RedisStore{redis: r, prefix: prefix, capacity: capacity}
}

func (s *RedisStore) Insert(ctx context.Context, e domain.LeaderboardEntry) (int, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return 0, fmt.Errorf("marshal entry: %w", err)
	}

	z := redis.Z{Score: float64(e.Score), Member: string(b)}
	modeKey := s.getLeaderboardKey(string(e.Mode))

	var higher *redis.IntCmd
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		higher = pipe.ZCount(ctx, modeKey, "("+strconv.Itoa(e.Score), "+inf")
		for _, key := range []string{modeKey, s.getLeaderboardKey(allModes)} {
			pipe.ZAdd(ctx, key, z)
			pipe.ZRemRangeByRank(ctx, key, 0, int64(-s.capacity-1))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("insert entry: %w", err)
	}

	return int(higher.Val()) + 1, nil
}

func (s *RedisStore) Top(ctx context.Context, mode domain.Mode, limit int) ([]domain.LeaderboardEntry, error) {
	key := s.getLeaderboardKey(allModes)
	if mode != "" {
		key = s.getLeaderboardKey(string(mode))
	}

	res, err := s.redis.ZRevRange(ctx, key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(res))
	for _, m := range res {
		var e domain.LeaderboardEntry
		if err := json.Unmarshal([]byte(m), &e); err != nil {
			return nil, fmt.Errorf("decode entry: %w", err)
		}
		entries = append(entries, e)
	}

	sortEntries(entries)
	return entries, nil
}

func (s *RedisStore) getLeaderboardKey(mode string) string {
	return fmt.Sprintf("%s:leaderboard:%s", s.prefix, mode)
}
