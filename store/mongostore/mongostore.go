// Package mongostore implements store.CodeStore and store.IdentityStore on
// MongoDB.
//
// Codes live in one collection with a TTL index on expiresAt, so MongoDB
// removes expired codes on its own; DeleteExpired only narrows the window
// between expiry and the TTL monitor's next pass. Identities carry a unique
// email index and a partial unique index on subjectId.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goOTC/store"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	DefaultCodesCollection      = "otps"
	DefaultIdentitiesCollection = "users"
)

// EnsureIndexes creates the indexes both stores rely on. It is idempotent.
func EnsureIndexes(ctx context.Context, codes, identities *mongo.Collection) error {
	_, err := codes.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
	})
	if err != nil {
		return fmt.Errorf("mongostore: code indexes: %w", err)
	}

	_, err = identities.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{
			Keys: bson.D{{Key: "subjectId", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "subjectId", Value: bson.D{{Key: "$type", Value: "string"}}}}),
		},
	})
	if err != nil {
		return fmt.Errorf("mongostore: identity indexes: %w", err)
	}
	return nil
}

type codeDoc struct {
	ID          string    `bson:"_id"`
	Email       string    `bson:"email"`
	CodeHash    string    `bson:"codeHash"`
	CreatedAt   time.Time `bson:"createdAt"`
	ExpiresAt   time.Time `bson:"expiresAt"`
	Attempts    int       `bson:"attempts"`
	MaxAttempts int       `bson:"maxAttempts"`
}

func (d codeDoc) code() store.Code {
	return store.Code{
		ID:          d.ID,
		Email:       d.Email,
		SecretHash:  d.CodeHash,
		CreatedAt:   d.CreatedAt.UTC(),
		ExpiresAt:   d.ExpiresAt.UTC(),
		Attempts:    d.Attempts,
		MaxAttempts: d.MaxAttempts,
	}
}

// CodeStore is a MongoDB-backed store.CodeStore.
type CodeStore struct {
	coll *mongo.Collection
}

func NewCodeStore(coll *mongo.Collection) *CodeStore {
	return &CodeStore{coll: coll}
}

func (s *CodeStore) Create(ctx context.Context, c store.Code) error {
	_, err := s.coll.InsertOne(ctx, codeDoc{
		ID:          c.ID,
		Email:       c.Email,
		CodeHash:    c.SecretHash,
		CreatedAt:   c.CreatedAt,
		ExpiresAt:   c.ExpiresAt,
		Attempts:    c.Attempts,
		MaxAttempts: c.MaxAttempts,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrConflict
		}
		return fmt.Errorf("mongostore: insert code: %w", err)
	}
	return nil
}

func (s *CodeStore) FindLatestValid(ctx context.Context, email string, now time.Time) (store.Code, error) {
	filter := bson.D{
		{Key: "email", Value: email},
		{Key: "expiresAt", Value: bson.D{{Key: "$gt", Value: now}}},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})

	var doc codeDoc
	if err := s.coll.FindOne(ctx, filter, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return store.Code{}, store.ErrNotFound
		}
		return store.Code{}, fmt.Errorf("mongostore: find code: %w", err)
	}
	return doc.code(), nil
}

func (s *CodeStore) IncrementAttempts(ctx context.Context, id string) (int, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc codeDoc
	err := s.coll.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "attempts", Value: 1}}}},
		opts,
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, store.ErrNotFound
		}
		return 0, fmt.Errorf("mongostore: increment attempts: %w", err)
	}
	return doc.Attempts, nil
}

func (s *CodeStore) DeleteByEmail(ctx context.Context, email string) (int, error) {
	res, err := s.coll.DeleteMany(ctx, bson.D{{Key: "email", Value: email}})
	if err != nil {
		return 0, fmt.Errorf("mongostore: delete codes: %w", err)
	}
	return int(res.DeletedCount), nil
}

func (s *CodeStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.coll.DeleteMany(ctx, bson.D{{Key: "expiresAt", Value: bson.D{{Key: "$lte", Value: now}}}})
	if err != nil {
		return 0, fmt.Errorf("mongostore: delete expired: %w", err)
	}
	return int(res.DeletedCount), nil
}

type identityDoc struct {
	ID        string    `bson:"_id"`
	Email     string    `bson:"email"`
	Name      string    `bson:"name,omitempty"`
	Provider  string    `bson:"provider"`
	SubjectID string    `bson:"subjectId,omitempty"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func (d identityDoc) identity() store.Identity {
	return store.Identity{
		ID:        d.ID,
		Email:     d.Email,
		Name:      d.Name,
		Provider:  store.Provider(d.Provider),
		SubjectID: d.SubjectID,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

// IdentityStore is a MongoDB-backed store.IdentityStore.
type IdentityStore struct {
	coll  *mongo.Collection
	newID func() string
}

func NewIdentityStore(coll *mongo.Collection) *IdentityStore {
	return &IdentityStore{coll: coll, newID: uuid.NewString}
}

// Upsert is a single findAndModify with upsert. Two concurrent inserts for
// one email surface as a duplicate key error, reported as store.ErrConflict.
// A duplicate on the subject index is reported as store.ErrSubjectTaken.
func (s *IdentityStore) Upsert(ctx context.Context, email string, u store.IdentityUpdate) (store.Identity, error) {
	set := bson.D{
		{Key: "provider", Value: string(u.Provider)},
		{Key: "updatedAt", Value: u.At},
	}
	if u.Name != "" {
		set = append(set, bson.E{Key: "name", Value: u.Name})
	}
	federated := u.Provider == store.ProviderFederated && u.SubjectID != ""
	if federated {
		set = append(set, bson.E{Key: "subjectId", Value: u.SubjectID})
	}

	update := bson.D{
		{Key: "$set", Value: set},
		{Key: "$setOnInsert", Value: bson.D{
			{Key: "_id", Value: s.newID()},
			{Key: "email", Value: email},
			{Key: "createdAt", Value: u.At},
		}},
	}
	if !federated {
		update = append(update, bson.E{Key: "$unset", Value: bson.D{{Key: "subjectId", Value: ""}}})
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var doc identityDoc
	err := s.coll.FindOneAndUpdate(ctx, bson.D{{Key: "email", Value: email}}, update, opts).Decode(&doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			if strings.Contains(err.Error(), "subjectId") {
				return store.Identity{}, store.ErrSubjectTaken
			}
			return store.Identity{}, store.ErrConflict
		}
		return store.Identity{}, fmt.Errorf("mongostore: upsert identity: %w", err)
	}
	return doc.identity(), nil
}

func (s *IdentityStore) FindByID(ctx context.Context, id string) (store.Identity, error) {
	var doc identityDoc
	if err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return store.Identity{}, store.ErrNotFound
		}
		return store.Identity{}, fmt.Errorf("mongostore: find identity: %w", err)
	}
	return doc.identity(), nil
}
