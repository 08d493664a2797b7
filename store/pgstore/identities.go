package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MrEthical07/goOTC/store"
	"github.com/google/uuid"
)

// IdentityStore is a PostgreSQL-backed store.IdentityStore.
type IdentityStore struct {
	db    DBTX
	newID func() string
}

func NewIdentityStore(db DBTX) *IdentityStore {
	return &IdentityStore{db: db, newID: uuid.NewString}
}

// Upsert relies on ON CONFLICT (email), so concurrent calls for one email
// converge on a single row. A subject id already owned by another email
// returns store.ErrSubjectTaken.
func (s *IdentityStore) Upsert(ctx context.Context, email string, u store.IdentityUpdate) (store.Identity, error) {
	query := `
		INSERT INTO otc_identities (id, email, name, provider, subject_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (email) DO UPDATE SET
			name = CASE WHEN EXCLUDED.name = '' THEN otc_identities.name ELSE EXCLUDED.name END,
			provider = EXCLUDED.provider,
			subject_id = EXCLUDED.subject_id,
			updated_at = EXCLUDED.updated_at
		RETURNING id, email, name, provider, subject_id, created_at, updated_at
	`
	var subject sql.NullString
	if u.Provider == store.ProviderFederated && u.SubjectID != "" {
		subject = sql.NullString{String: u.SubjectID, Valid: true}
	}

	row := s.db.QueryRowContext(ctx, query, s.newID(), email, u.Name, string(u.Provider), subject, u.At)
	id, err := scanIdentity(row)
	if err != nil {
		if isSubjectViolation(err) {
			return store.Identity{}, store.ErrSubjectTaken
		}
		if isUniqueViolation(err) {
			return store.Identity{}, store.ErrConflict
		}
		return store.Identity{}, fmt.Errorf("pgstore: upsert identity: %w", err)
	}
	return id, nil
}

func (s *IdentityStore) FindByID(ctx context.Context, id string) (store.Identity, error) {
	query := `
		SELECT id, email, name, provider, subject_id, created_at, updated_at
		FROM otc_identities
		WHERE id = $1
	`
	ident, err := scanIdentity(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Identity{}, store.ErrNotFound
		}
		return store.Identity{}, fmt.Errorf("pgstore: find identity: %w", err)
	}
	return ident, nil
}

func scanIdentity(row *sql.Row) (store.Identity, error) {
	var (
		id       store.Identity
		provider string
		subject  sql.NullString
	)
	if err := row.Scan(&id.ID, &id.Email, &id.Name, &provider, &subject, &id.CreatedAt, &id.UpdatedAt); err != nil {
		return store.Identity{}, err
	}
	id.Provider = store.Provider(provider)
	id.SubjectID = subject.String
	id.CreatedAt = id.CreatedAt.UTC()
	id.UpdatedAt = id.UpdatedAt.UTC()
	return id, nil
}
