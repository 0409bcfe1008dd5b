package session

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/avidquiz/internal/domain"
)

const maxTxAttempts = 16

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisStore keeps each session as a JSON value. Updates are optimistic
// transactions on the session key: a concurrent write to the same session
// aborts the transaction and fn is re-run on the fresh value.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisStore(r redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		redis:  r,
		prefix: prefix,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *RedisStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	return s.read(ctx, s.redis, id)
}

func (s *RedisStore) Update(ctx context.Context, id string, fn UpdateFunc) (*domain.Session, error) {
	key := s.getSessionKey(id)

	var out *domain.Session
	txf := func(tx *redis.Tx) error {
		ss, err := s.read(ctx, tx, id)
		if err != nil {
			return err
		}

		if err := fn(ss); err != nil {
			return err
		}
		ss.UpdateTime = s.now()

		b, err := json.Marshal(ss)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}

		out = ss
		return nil
	}

	for range maxTxAttempts {
		err := s.redis.Watch(ctx, txf, key)
		if stderrors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}

	return nil, fmt.Errorf("update session %s: too much contention", id)
}

func (s *RedisStore) read(ctx context.Context, c getter, id string) (*domain.Session, error) {
	b, err := c.Get(ctx, s.getSessionKey(id)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return domain.NewSession(id), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	ss := new(domain.Session)
	if err := json.Unmarshal(b, ss); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if ss.HintIndex == nil {
		ss.HintIndex = make(map[string]int)
	}
	return ss, nil
}

func (s *RedisStore) getSessionKey(id string) string {
	return fmt.Sprintf("%s:session:%s", s.prefix, id)
}
