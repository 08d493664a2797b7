package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goOTC/store"
)

// CodeStore is a PostgreSQL-backed store.CodeStore.
type CodeStore struct {
	db DBTX
}

func NewCodeStore(db DBTX) *CodeStore {
	return &CodeStore{db: db}
}

func (s *CodeStore) Create(ctx context.Context, c store.Code) error {
	query := `
		INSERT INTO otc_codes (id, email, code_hash, created_at, expires_at, attempts, max_attempts)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query, c.ID, c.Email, c.SecretHash, c.CreatedAt, c.ExpiresAt, c.Attempts, c.MaxAttempts)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return fmt.Errorf("pgstore: insert code: %w", err)
	}
	return nil
}

func (s *CodeStore) FindLatestValid(ctx context.Context, email string, now time.Time) (store.Code, error) {
	query := `
		SELECT id, email, code_hash, created_at, expires_at, attempts, max_attempts
		FROM otc_codes
		WHERE email = $1 AND expires_at > $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	var c store.Code
	err := s.db.QueryRowContext(ctx, query, email, now).Scan(
		&c.ID, &c.Email, &c.SecretHash, &c.CreatedAt, &c.ExpiresAt, &c.Attempts, &c.MaxAttempts,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Code{}, store.ErrNotFound
		}
		return store.Code{}, fmt.Errorf("pgstore: find code: %w", err)
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.ExpiresAt = c.ExpiresAt.UTC()
	return c, nil
}

func (s *CodeStore) IncrementAttempts(ctx context.Context, id string) (int, error) {
	query := `
		UPDATE otc_codes
		SET attempts = attempts + 1
		WHERE id = $1
		RETURNING attempts
	`
	var attempts int
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&attempts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, store.ErrNotFound
		}
		return 0, fmt.Errorf("pgstore: increment attempts: %w", err)
	}
	return attempts, nil
}

func (s *CodeStore) DeleteByEmail(ctx context.Context, email string) (int, error) {
	return s.delete(ctx, `DELETE FROM otc_codes WHERE email = $1`, email)
}

func (s *CodeStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	return s.delete(ctx, `DELETE FROM otc_codes WHERE expires_at <= $1`, now)
}

func (s *CodeStore) delete(ctx context.Context, query string, arg any) (int, error) {
	res, err := s.db.ExecContext(ctx, query, arg)
	if err != nil {
		return 0, fmt.Errorf("pgstore: delete codes: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pgstore: delete codes: %w", err)
	}
	return int(n), nil
}
