package mongostore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goOTC/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

var at = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func codeBSON(id string, attempts int) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "email", Value: "a@x.io"},
		{Key: "codeHash", Value: "hash-" + id},
		{Key: "createdAt", Value: at},
		{Key: "expiresAt", Value: at.Add(10 * time.Minute)},
		{Key: "attempts", Value: attempts},
		{Key: "maxAttempts", Value: 5},
	}
}

func TestCodeStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	defer mt.Close()
	ctx := context.Background()

	mt.Run("create", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		err := NewCodeStore(mt.Coll).Create(ctx, store.Code{
			ID: "c1", Email: "a@x.io", SecretHash: "h", CreatedAt: at, ExpiresAt: at.Add(time.Minute), MaxAttempts: 5,
		})
		require.NoError(mt, err)
	})

	mt.Run("create duplicate id", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "duplicate key error"}))
		err := NewCodeStore(mt.Coll).Create(ctx, store.Code{ID: "c1", Email: "a@x.io"})
		assert.True(mt, errors.Is(err, store.ErrConflict))
	})

	mt.Run("find latest", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, codeBSON("c2", 1)))

		got, err := NewCodeStore(mt.Coll).FindLatestValid(ctx, "a@x.io", at)
		require.NoError(mt, err)
		assert.Equal(mt, "c2", got.ID)
		assert.Equal(mt, "hash-c2", got.SecretHash)
		assert.Equal(mt, 1, got.Attempts)
		assert.True(mt, got.ExpiresAt.Equal(at.Add(10*time.Minute)))
	})

	mt.Run("find none", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := NewCodeStore(mt.Coll).FindLatestValid(ctx, "a@x.io", at)
		assert.True(mt, errors.Is(err, store.ErrNotFound))
	})

	mt.Run("increment attempts", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: codeBSON("c1", 3)}))

		n, err := NewCodeStore(mt.Coll).IncrementAttempts(ctx, "c1")
		require.NoError(mt, err)
		assert.Equal(mt, 3, n)
	})

	mt.Run("increment missing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))

		_, err := NewCodeStore(mt.Coll).IncrementAttempts(ctx, "gone")
		assert.True(mt, errors.Is(err, store.ErrNotFound))
	})

	mt.Run("delete by email", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(2)}))

		n, err := NewCodeStore(mt.Coll).DeleteByEmail(ctx, "a@x.io")
		require.NoError(mt, err)
		assert.Equal(mt, 2, n)
	})

	mt.Run("delete expired", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(4)}))

		n, err := NewCodeStore(mt.Coll).DeleteExpired(ctx, at)
		require.NoError(mt, err)
		assert.Equal(mt, 4, n)
	})

	mt.Run("backend error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 91, Name: "ShutdownInProgress", Message: "shutting down"}))

		_, err := NewCodeStore(mt.Coll).DeleteExpired(ctx, at)
		require.Error(mt, err)
		assert.False(mt, errors.Is(err, store.ErrNotFound))
	})
}

func TestIdentityStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	defer mt.Close()
	ctx := context.Background()

	mt.Run("upsert", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: "id-1"},
			{Key: "email", Value: "a@x.io"},
			{Key: "name", Value: "Ann"},
			{Key: "provider", Value: "federated"},
			{Key: "subjectId", Value: "sub-1"},
			{Key: "createdAt", Value: at},
			{Key: "updatedAt", Value: at},
		}}))

		s := NewIdentityStore(mt.Coll)
		s.newID = func() string { return "id-1" }
		got, err := s.Upsert(ctx, "a@x.io", store.IdentityUpdate{
			Name: "Ann", Provider: store.ProviderFederated, SubjectID: "sub-1", At: at,
		})
		require.NoError(mt, err)
		assert.Equal(mt, store.Identity{
			ID: "id-1", Email: "a@x.io", Name: "Ann", Provider: store.ProviderFederated,
			SubjectID: "sub-1", CreatedAt: at, UpdatedAt: at,
		}, got)

		started := mt.GetStartedEvent()
		require.NotNil(mt, started)
		assert.Equal(mt, "findAndModify", started.CommandName)
		assert.Equal(mt, true, started.Command.Lookup("upsert").Boolean())
	})

	mt.Run("upsert duplicate", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code: 11000, Name: "DuplicateKey", Message: "E11000 duplicate key error",
		}))

		_, err := NewIdentityStore(mt.Coll).Upsert(ctx, "a@x.io", store.IdentityUpdate{Provider: store.ProviderCode, At: at})
		assert.True(mt, errors.Is(err, store.ErrConflict))
	})

	mt.Run("upsert subject taken", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code: 11000, Name: "DuplicateKey",
			Message: `E11000 duplicate key error collection: otc.users index: subjectId_1 dup key: { subjectId: "sub-1" }`,
		}))

		_, err := NewIdentityStore(mt.Coll).Upsert(ctx, "b@x.io", store.IdentityUpdate{
			Provider: store.ProviderFederated, SubjectID: "sub-1", At: at,
		})
		assert.True(mt, errors.Is(err, store.ErrSubjectTaken))
		assert.False(mt, errors.Is(err, store.ErrConflict))
	})

	mt.Run("find by id missing", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := NewIdentityStore(mt.Coll).FindByID(ctx, "nope")
		assert.True(mt, errors.Is(err, store.ErrNotFound))
	})
}
