package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/goOTC/store"
	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "otc"

// incrementAttemptsLua bumps the attempt counter of an existing code.
// KEYS[1] = code key
//
// Returns the new count or error "not_found".
var incrementAttemptsLua = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return {err='not_found'}
end
return redis.call('HINCRBY', KEYS[1], 'attempts', 1)
`)

// CodeStore is a Redis-backed store.CodeStore.
type CodeStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewCodeStore(redisClient redis.UniversalClient, prefix string) *CodeStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &CodeStore{redis: redisClient, prefix: prefix}
}

func (s *CodeStore) codeKey(id string) string {
	return s.prefix + ":code:" + id
}

func (s *CodeStore) emailKey(email string) string {
	return s.prefix + ":codes:" + email
}

func (s *CodeStore) expiryKey() string {
	return s.prefix + ":codes:expiry"
}

func (s *CodeStore) Create(ctx context.Context, c store.Code) error {
	ttl := c.ExpiresAt.Sub(c.CreatedAt)
	if ttl <= 0 {
		ttl = time.Second
	}

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		key := s.codeKey(c.ID)
		pipe.HSet(ctx, key,
			"email", c.Email,
			"hash", c.SecretHash,
			"created", strconv.FormatInt(c.CreatedAt.UnixNano(), 10),
			"expires", strconv.FormatInt(c.ExpiresAt.UnixNano(), 10),
			"attempts", c.Attempts,
			"max", c.MaxAttempts,
		)
		pipe.PExpire(ctx, key, ttl)
		pipe.SAdd(ctx, s.emailKey(c.Email), c.ID)
		pipe.PExpire(ctx, s.emailKey(c.Email), ttl)
		pipe.ZAdd(ctx, s.expiryKey(), redis.Z{Score: float64(c.ExpiresAt.UnixMilli()), Member: c.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redisstore: create code: %w", err)
	}
	return nil
}

func (s *CodeStore) FindLatestValid(ctx context.Context, email string, now time.Time) (store.Code, error) {
	ids, err := s.redis.SMembers(ctx, s.emailKey(email)).Result()
	if err != nil {
		return store.Code{}, fmt.Errorf("redisstore: list codes: %w", err)
	}
	if len(ids) == 0 {
		return store.Code{}, store.ErrNotFound
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.codeKey(id))
		}
		return nil
	})
	if err != nil {
		return store.Code{}, fmt.Errorf("redisstore: load codes: %w", err)
	}

	var (
		latest store.Code
		found  bool
	)
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		c, err := decodeCode(ids[i], fields)
		if err != nil {
			return store.Code{}, err
		}
		if c.Expired(now) {
			continue
		}
		if !found || store.Newer(c, latest) {
			latest, found = c, true
		}
	}
	if !found {
		return store.Code{}, store.ErrNotFound
	}
	return latest, nil
}

func (s *CodeStore) IncrementAttempts(ctx context.Context, id string) (int, error) {
	n, err := incrementAttemptsLua.Run(ctx, s.redis, []string{s.codeKey(id)}).Int()
	if err != nil {
		if err.Error() == "not_found" {
			return 0, store.ErrNotFound
		}
		return 0, fmt.Errorf("redisstore: increment attempts: %w", err)
	}
	return n, nil
}

func (s *CodeStore) DeleteByEmail(ctx context.Context, email string) (int, error) {
	ids, err := s.redis.SMembers(ctx, s.emailKey(email)).Result()
	if err != nil {
		return 0, fmt.Errorf("redisstore: list codes: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	// Only the ids read above leave the index; a code created meanwhile stays.
	n, err := s.deleteCodes(ctx, ids, func(pipe redis.Pipeliner) {
		members := make([]interface{}, len(ids))
		for i, id := range ids {
			members[i] = id
		}
		pipe.SRem(ctx, s.emailKey(email), members...)
	})
	if err != nil {
		return 0, fmt.Errorf("redisstore: delete codes: %w", err)
	}
	return n, nil
}

func (s *CodeStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.redis.ZRangeByScore(ctx, s.expiryKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("redisstore: list expired: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	emails := make([]*redis.StringCmd, len(ids))
	_, err = s.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			emails[i] = pipe.HGet(ctx, s.codeKey(id), "email")
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("redisstore: load expired: %w", err)
	}

	n, err := s.deleteCodes(ctx, ids, func(pipe redis.Pipeliner) {
		for i, id := range ids {
			if email := emails[i].Val(); email != "" {
				pipe.SRem(ctx, s.emailKey(email), id)
			}
		}
	})
	if err != nil {
		return 0, fmt.Errorf("redisstore: delete expired: %w", err)
	}
	return n, nil
}

// deleteCodes removes the code hashes and their expiry entries in one
// transaction and returns how many hashes still existed.
func (s *CodeStore) deleteCodes(ctx context.Context, ids []string, extra func(redis.Pipeliner)) (int, error) {
	dels := make([]*redis.IntCmd, len(ids))
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			dels[i] = pipe.Del(ctx, s.codeKey(id))
		}
		members := make([]interface{}, len(ids))
		for i, id := range ids {
			members[i] = id
		}
		pipe.ZRem(ctx, s.expiryKey(), members...)
		extra(pipe)
		return nil
	})
	if err != nil {
		return 0, err
	}
	n := 0
	for _, d := range dels {
		n += int(d.Val())
	}
	return n, nil
}

func decodeCode(id string, fields map[string]string) (store.Code, error) {
	created, err := strconv.ParseInt(fields["created"], 10, 64)
	if err != nil {
		return store.Code{}, fmt.Errorf("redisstore: corrupt code %s: %w", id, err)
	}
	expires, err := strconv.ParseInt(fields["expires"], 10, 64)
	if err != nil {
		return store.Code{}, fmt.Errorf("redisstore: corrupt code %s: %w", id, err)
	}
	attempts, err := strconv.Atoi(fields["attempts"])
	if err != nil {
		return store.Code{}, fmt.Errorf("redisstore: corrupt code %s: %w", id, err)
	}
	maxAttempts, err := strconv.Atoi(fields["max"])
	if err != nil {
		return store.Code{}, fmt.Errorf("redisstore: corrupt code %s: %w", id, err)
	}
	return store.Code{
		ID:          id,
		Email:       fields["email"],
		SecretHash:  fields["hash"],
		CreatedAt:   time.Unix(0, created).UTC(),
		ExpiresAt:   time.Unix(0, expires).UTC(),
		Attempts:    attempts,
		MaxAttempts: maxAttempts,
	}, nil
}
