package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/MrEthical07/goOTC/store"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var at = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

var codeColumns = []string{"id", "email", "code_hash", "created_at", "expires_at", "attempts", "max_attempts"}

func TestCodeStoreCreate(t *testing.T) {
	db, mock := newMock(t)
	s := NewCodeStore(db)

	mock.ExpectExec(`(?s)^\s*INSERT\s+INTO\s+otc_codes\b.*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6,\s*\$7\)\s*$`).
		WithArgs("c1", "a@x.io", "hash", at, at.Add(time.Minute), 0, 5).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.Create(context.Background(), store.Code{
		ID: "c1", Email: "a@x.io", SecretHash: "hash", CreatedAt: at, ExpiresAt: at.Add(time.Minute), MaxAttempts: 5,
	})
	require.NoError(t, err)
}

func TestCodeStoreCreateDuplicate(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`INSERT\s+INTO\s+otc_codes`).WillReturnError(&pgconn.PgError{Code: "23505"})

	err := NewCodeStore(db).Create(context.Background(), store.Code{ID: "c1"})
	assert.True(t, errors.Is(err, store.ErrConflict))
}

func TestCodeStoreFindLatestValid(t *testing.T) {
	db, mock := newMock(t)
	rows := sqlmock.NewRows(codeColumns).AddRow("c2", "a@x.io", "hash", at, at.Add(10*time.Minute), 2, 5)
	mock.ExpectQuery(`(?s)SELECT\s+id,.*FROM\s+otc_codes\s+WHERE\s+email\s*=\s*\$1\s+AND\s+expires_at\s*>\s*\$2\s+ORDER\s+BY\s+created_at\s+DESC,\s*id\s+DESC\s+LIMIT\s+1`).
		WithArgs("a@x.io", at).
		WillReturnRows(rows)

	got, err := NewCodeStore(db).FindLatestValid(context.Background(), "a@x.io", at)
	require.NoError(t, err)
	assert.Equal(t, store.Code{
		ID: "c2", Email: "a@x.io", SecretHash: "hash", CreatedAt: at, ExpiresAt: at.Add(10 * time.Minute), Attempts: 2, MaxAttempts: 5,
	}, got)
}

func TestCodeStoreFindLatestValidNone(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`FROM\s+otc_codes`).WithArgs("a@x.io", at).WillReturnRows(sqlmock.NewRows(codeColumns))

	_, err := NewCodeStore(db).FindLatestValid(context.Background(), "a@x.io", at)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestCodeStoreIncrementAttempts(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`(?s)UPDATE\s+otc_codes\s+SET\s+attempts\s*=\s*attempts\s*\+\s*1\s+WHERE\s+id\s*=\s*\$1\s+RETURNING\s+attempts`).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"attempts"}).AddRow(3))
	mock.ExpectQuery(`UPDATE\s+otc_codes`).
		WithArgs("gone").
		WillReturnRows(sqlmock.NewRows([]string{"attempts"}))

	s := NewCodeStore(db)
	n, err := s.IncrementAttempts(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = s.IncrementAttempts(context.Background(), "gone")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestCodeStoreDeletes(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`DELETE\s+FROM\s+otc_codes\s+WHERE\s+email\s*=\s*\$1`).
		WithArgs("a@x.io").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE\s+FROM\s+otc_codes\s+WHERE\s+expires_at\s*<=\s*\$1`).
		WithArgs(at).
		WillReturnResult(sqlmock.NewResult(0, 5))

	s := NewCodeStore(db)
	n, err := s.DeleteByEmail(context.Background(), "a@x.io")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.DeleteExpired(context.Background(), at)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestCodeStoreBackendError(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`DELETE\s+FROM\s+otc_codes`).WillReturnError(errors.New("db down"))

	_, err := NewCodeStore(db).DeleteExpired(context.Background(), at)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.False(t, errors.Is(err, store.ErrNotFound))
}

var identityColumns = []string{"id", "email", "name", "provider", "subject_id", "created_at", "updated_at"}

func TestIdentityStoreUpsertFederated(t *testing.T) {
	db, mock := newMock(t)
	s := NewIdentityStore(db)
	s.newID = func() string { return "id-1" }

	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+otc_identities.*ON\s+CONFLICT\s+\(email\)\s+DO\s+UPDATE.*RETURNING`).
		WithArgs("id-1", "a@x.io", "Ann", "federated", "sub-1", at).
		WillReturnRows(sqlmock.NewRows(identityColumns).AddRow("id-1", "a@x.io", "Ann", "federated", "sub-1", at, at))

	got, err := s.Upsert(context.Background(), "a@x.io", store.IdentityUpdate{
		Name: "Ann", Provider: store.ProviderFederated, SubjectID: "sub-1", At: at,
	})
	require.NoError(t, err)
	assert.Equal(t, store.Identity{
		ID: "id-1", Email: "a@x.io", Name: "Ann", Provider: store.ProviderFederated, SubjectID: "sub-1", CreatedAt: at, UpdatedAt: at,
	}, got)
}

func TestIdentityStoreUpsertCodeClearsSubject(t *testing.T) {
	db, mock := newMock(t)
	s := NewIdentityStore(db)
	s.newID = func() string { return "id-2" }

	mock.ExpectQuery(`INSERT\s+INTO\s+otc_identities`).
		WithArgs("id-2", "b@x.io", "", "code", nil, at).
		WillReturnRows(sqlmock.NewRows(identityColumns).AddRow("id-1", "b@x.io", "Bea", "code", nil, at.Add(-time.Hour), at))

	got, err := s.Upsert(context.Background(), "b@x.io", store.IdentityUpdate{Provider: store.ProviderCode, SubjectID: "ignored", At: at})
	require.NoError(t, err)
	assert.Equal(t, "id-1", got.ID)
	assert.Equal(t, "Bea", got.Name)
	assert.Empty(t, got.SubjectID)
}

func TestIdentityStoreUpsertSubjectConflict(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`INSERT\s+INTO\s+otc_identities`).WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "otc_identities_subject_id_key"})

	_, err := NewIdentityStore(db).Upsert(context.Background(), "c@x.io", store.IdentityUpdate{
		Provider: store.ProviderFederated, SubjectID: "sub-1", At: at,
	})
	assert.True(t, errors.Is(err, store.ErrSubjectTaken))
	assert.False(t, errors.Is(err, store.ErrConflict))
}

func TestIdentityStoreUpsertEmailRace(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`INSERT\s+INTO\s+otc_identities`).WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "otc_identities_email_key"})

	_, err := NewIdentityStore(db).Upsert(context.Background(), "c@x.io", store.IdentityUpdate{Provider: store.ProviderCode, At: at})
	assert.True(t, errors.Is(err, store.ErrConflict))
}

func TestIdentityStoreFindByID(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`(?s)SELECT\s+id,.*FROM\s+otc_identities\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("id-1").
		WillReturnRows(sqlmock.NewRows(identityColumns).AddRow("id-1", "a@x.io", "", "code", nil, at, at))
	mock.ExpectQuery(`FROM\s+otc_identities`).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(identityColumns))

	s := NewIdentityStore(db)
	got, err := s.FindByID(context.Background(), "id-1")
	require.NoError(t, err)
	assert.Equal(t, store.ProviderCode, got.Provider)

	_, err = s.FindByID(context.Background(), "nope")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}
