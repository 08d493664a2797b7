package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/goOTC/store"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// IdentityStore is a Redis-backed store.IdentityStore.
type IdentityStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewIdentityStore(redisClient redis.UniversalClient, prefix string) *IdentityStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &IdentityStore{redis: redisClient, prefix: prefix}
}

func (s *IdentityStore) identityKey(id string) string {
	return s.prefix + ":identity:" + id
}

func (s *IdentityStore) emailKey(email string) string {
	return s.prefix + ":identity:email:" + email
}

func (s *IdentityStore) subjectKey(subject string) string {
	return s.prefix + ":identity:subject:" + subject
}

// Upsert runs one optimistic transaction watching the email index and, for
// federated updates, the subject index. A lost race returns store.ErrConflict
// and a subject owned by another email returns store.ErrSubjectTaken. A
// subject the identity no longer carries is released in the same transaction.
func (s *IdentityStore) Upsert(ctx context.Context, email string, u store.IdentityUpdate) (store.Identity, error) {
	emailKey := s.emailKey(email)
	watched := []string{emailKey}
	subjectKey := ""
	if u.Provider == store.ProviderFederated && u.SubjectID != "" {
		subjectKey = s.subjectKey(u.SubjectID)
		watched = append(watched, subjectKey)
	}

	var result store.Identity
	err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
		if subjectKey != "" {
			owner, err := tx.Get(ctx, subjectKey).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
			if owner != "" && owner != email {
				return store.ErrSubjectTaken
			}
		}

		var current store.Identity
		id, err := tx.Get(ctx, emailKey).Result()
		switch {
		case errors.Is(err, redis.Nil):
			current = store.Identity{ID: uuid.NewString(), Email: email, CreatedAt: u.At}
		case err != nil:
			return err
		default:
			fields, err := tx.HGetAll(ctx, s.identityKey(id)).Result()
			if err != nil {
				return err
			}
			if len(fields) == 0 {
				return fmt.Errorf("redisstore: identity %s missing for indexed email", id)
			}
			current, err = decodeIdentity(id, fields)
			if err != nil {
				return err
			}
		}

		result = u.Apply(current)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, s.identityKey(result.ID), encodeIdentity(result))
			pipe.Set(ctx, emailKey, result.ID, 0)
			if subjectKey != "" {
				pipe.Set(ctx, subjectKey, email, 0)
			}
			if current.SubjectID != "" && current.SubjectID != result.SubjectID {
				pipe.Del(ctx, s.subjectKey(current.SubjectID))
			}
			return nil
		})
		return err
	}, watched...)

	if err != nil {
		if errors.Is(err, store.ErrSubjectTaken) {
			return store.Identity{}, store.ErrSubjectTaken
		}
		if errors.Is(err, redis.TxFailedErr) {
			return store.Identity{}, store.ErrConflict
		}
		return store.Identity{}, fmt.Errorf("redisstore: upsert identity: %w", err)
	}
	return result, nil
}

func (s *IdentityStore) FindByID(ctx context.Context, id string) (store.Identity, error) {
	fields, err := s.redis.HGetAll(ctx, s.identityKey(id)).Result()
	if err != nil {
		return store.Identity{}, fmt.Errorf("redisstore: find identity: %w", err)
	}
	if len(fields) == 0 {
		return store.Identity{}, store.ErrNotFound
	}
	return decodeIdentity(id, fields)
}

func encodeIdentity(id store.Identity) map[string]interface{} {
	return map[string]interface{}{
		"email":    id.Email,
		"name":     id.Name,
		"provider": string(id.Provider),
		"subject":  id.SubjectID,
		"created":  strconv.FormatInt(id.CreatedAt.UnixNano(), 10),
		"updated":  strconv.FormatInt(id.UpdatedAt.UnixNano(), 10),
	}
}

func decodeIdentity(id string, fields map[string]string) (store.Identity, error) {
	created, err := strconv.ParseInt(fields["created"], 10, 64)
	if err != nil {
		return store.Identity{}, fmt.Errorf("redisstore: corrupt identity %s: %w", id, err)
	}
	updated, err := strconv.ParseInt(fields["updated"], 10, 64)
	if err != nil {
		return store.Identity{}, fmt.Errorf("redisstore: corrupt identity %s: %w", id, err)
	}
	return store.Identity{
		ID:        id,
		Email:     fields["email"],
		Name:      fields["name"],
		Provider:  store.Provider(fields["provider"]),
		SubjectID: fields["subject"],
		CreatedAt: time.Unix(0, created).UTC(),
		UpdatedAt: time.Unix(0, updated).UTC(),
	}, nil
}
