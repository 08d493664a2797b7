package redisstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goOTC/store"
	"github.com/MrEthical07/goOTC/store/storetest"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestCodeStoreContract(t *testing.T) {
	storetest.RunCodeStore(t, func(t *testing.T) store.CodeStore {
		_, rdb := newRedis(t)
		return NewCodeStore(rdb, "")
	})
}

func TestIdentityStoreContract(t *testing.T) {
	storetest.RunIdentityStore(t, func(t *testing.T) store.IdentityStore {
		_, rdb := newRedis(t)
		return NewIdentityStore(rdb, "")
	})
}

func TestCodeKeysExpireWithTheCode(t *testing.T) {
	mr, rdb := newRedis(t)
	s := NewCodeStore(rdb, "t")
	created := time.Now()

	require.NoError(t, s.Create(context.Background(), store.Code{
		ID:          "c1",
		Email:       "a@x.io",
		SecretHash:  "h",
		CreatedAt:   created,
		ExpiresAt:   created.Add(10 * time.Minute),
		MaxAttempts: 5,
	}))

	assert.Equal(t, 10*time.Minute, mr.TTL("t:code:c1"))
	assert.True(t, mr.Exists("t:codes:a@x.io"))

	mr.FastForward(11 * time.Minute)
	assert.False(t, mr.Exists("t:code:c1"))

	_, err := s.FindLatestValid(context.Background(), "a@x.io", created)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestCodeStoreNeverStoresPlaintext(t *testing.T) {
	mr, rdb := newRedis(t)
	s := NewCodeStore(rdb, "t")
	now := time.Now()

	require.NoError(t, s.Create(context.Background(), store.Code{
		ID: "c1", Email: "a@x.io", SecretHash: "$2a$10$hash", CreatedAt: now, ExpiresAt: now.Add(time.Minute), MaxAttempts: 5,
	}))
	assert.Equal(t, "$2a$10$hash", mr.HGet("t:code:c1", "hash"))
}

func TestIdentityStoreSubjectConflict(t *testing.T) {
	_, rdb := newRedis(t)
	s := NewIdentityStore(rdb, "t")
	ctx := context.Background()
	at := time.Now()

	_, err := s.Upsert(ctx, "a@x.io", store.IdentityUpdate{Provider: store.ProviderFederated, SubjectID: "sub-1", At: at})
	require.NoError(t, err)

	_, err = s.Upsert(ctx, "b@x.io", store.IdentityUpdate{Provider: store.ProviderFederated, SubjectID: "sub-1", At: at})
	assert.True(t, errors.Is(err, store.ErrSubjectTaken))
	assert.False(t, errors.Is(err, store.ErrConflict))
}

func TestIdentityStoreReleasesClearedSubject(t *testing.T) {
	mr, rdb := newRedis(t)
	s := NewIdentityStore(rdb, "t")
	ctx := context.Background()
	at := time.Now()

	_, err := s.Upsert(ctx, "a@x.io", store.IdentityUpdate{Provider: store.ProviderFederated, SubjectID: "sub-1", At: at})
	require.NoError(t, err)
	require.True(t, mr.Exists("t:identity:subject:sub-1"))

	_, err = s.Upsert(ctx, "a@x.io", store.IdentityUpdate{Provider: store.ProviderCode, At: at})
	require.NoError(t, err)
	assert.False(t, mr.Exists("t:identity:subject:sub-1"))

	got, err := s.Upsert(ctx, "b@x.io", store.IdentityUpdate{Provider: store.ProviderFederated, SubjectID: "sub-1", At: at})
	require.NoError(t, err)
	assert.Equal(t, "sub-1", got.SubjectID)
	owner, err := mr.Get("t:identity:subject:sub-1")
	require.NoError(t, err)
	assert.Equal(t, "b@x.io", owner)
}

// onFirstTx runs fn once, just before the first transaction pipeline is sent.
type onFirstTx struct {
	once sync.Once
	fn   func()
}

func (h *onFirstTx) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *onFirstTx) ProcessHook(next redis.ProcessHook) redis.ProcessHook { return next }

func (h *onFirstTx) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		h.once.Do(h.fn)
		return next(ctx, cmds)
	}
}

func TestDeleteByEmailKeepsCodeCreatedMeanwhile(t *testing.T) {
	mr, rdb := newRedis(t)
	ctx := context.Background()
	now := time.Now()
	newCode := func(id string, created time.Time) store.Code {
		return store.Code{ID: id, Email: "a@x.io", SecretHash: "h", CreatedAt: created, ExpiresAt: created.Add(10 * time.Minute), MaxAttempts: 5}
	}

	writer := NewCodeStore(rdb, "t")
	require.NoError(t, writer.Create(ctx, newCode("old", now)))

	concurrent := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = concurrent.Close() })
	hook := &onFirstTx{fn: func() {
		require.NoError(t, NewCodeStore(concurrent, "t").Create(ctx, newCode("fresh", now.Add(time.Second))))
	}}
	deleter := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	deleter.AddHook(hook)
	t.Cleanup(func() { _ = deleter.Close() })

	n, err := NewCodeStore(deleter, "t").DeleteByEmail(ctx, "a@x.io")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	latest, err := writer.FindLatestValid(ctx, "a@x.io", now)
	require.NoError(t, err)
	assert.Equal(t, "fresh", latest.ID)
	assert.False(t, mr.Exists("t:code:old"))
}

func TestStoreUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	codes := NewCodeStore(rdb, "t")
	ids := NewIdentityStore(rdb, "t")
	mr.Close()

	_, err = codes.FindLatestValid(context.Background(), "a@x.io", time.Now())
	require.Error(t, err)
	assert.False(t, errors.Is(err, store.ErrNotFound))

	_, err = ids.FindByID(context.Background(), "x")
	require.Error(t, err)
	assert.False(t, errors.Is(err, store.ErrNotFound))
}
