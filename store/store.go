// Package store defines the persistence contracts for one-time codes and
// identities, plus the record types shared by every backend.
//
// Backends live in sub-packages: memory (tests, single process), redisstore,
// mongostore and pgstore. All of them return [ErrNotFound], [ErrConflict] and
// [ErrSubjectTaken] for the conditions callers branch on; any other error is
// treated as the backend being unavailable.
package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a lookup matches no record.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when a write loses a uniqueness or optimistic-lock race.
	ErrConflict = errors.New("store: conflict")
	// ErrSubjectTaken is returned when a federated subject id already belongs
	// to an identity with a different email. Retrying cannot succeed.
	ErrSubjectTaken = errors.New("store: subject taken")
)

// Provider identifies how an identity proved ownership of its email.
type Provider string

const (
	ProviderCode      Provider = "code"
	ProviderFederated Provider = "federated"
)

// Valid reports whether p is a known provider.
func (p Provider) Valid() bool {
	return p == ProviderCode || p == ProviderFederated
}

// Code is a persisted one-time code. SecretHash is the only form of the
// secret that ever reaches storage.
type Code struct {
	ID          string
	Email       string
	SecretHash  string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	Attempts    int
	MaxAttempts int
}

// Expired reports whether the code is no longer valid at now.
func (c Code) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Identity is a verified principal keyed by email.
type Identity struct {
	ID        string
	Email     string
	Name      string
	Provider  Provider
	SubjectID string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IdentityUpdate carries the mutable fields applied by Upsert.
//
// An empty Name leaves the stored name untouched. SubjectID is kept only for
// federated identities and cleared otherwise.
type IdentityUpdate struct {
	Name      string
	Provider  Provider
	SubjectID string
	At        time.Time
}

// Apply merges u into id and returns the result.
func (u IdentityUpdate) Apply(id Identity) Identity {
	if u.Name != "" {
		id.Name = u.Name
	}
	id.Provider = u.Provider
	if u.Provider == ProviderFederated {
		id.SubjectID = u.SubjectID
	} else {
		id.SubjectID = ""
	}
	id.UpdatedAt = u.At
	return id
}

// CodeStore persists one-time codes.
type CodeStore interface {
	// Create persists c. c.ID is assigned by the caller.
	Create(ctx context.Context, c Code) error
	// FindLatestValid returns the most recently created code for email that
	// has not expired at now, or ErrNotFound.
	FindLatestValid(ctx context.Context, email string, now time.Time) (Code, error)
	// IncrementAttempts adds one to the attempt counter and returns the new value.
	// It returns ErrNotFound if the code is gone.
	IncrementAttempts(ctx context.Context, id string) (int, error)
	// DeleteByEmail removes every code for email.
	DeleteByEmail(ctx context.Context, email string) (int, error)
	// DeleteExpired removes every code whose expiry is not after now.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// IdentityStore persists identities.
type IdentityStore interface {
	// Upsert atomically creates the identity for email or applies u to the
	// existing one.
	Upsert(ctx context.Context, email string, u IdentityUpdate) (Identity, error)
	// FindByID returns the identity or ErrNotFound.
	FindByID(ctx context.Context, id string) (Identity, error)
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Newer reports whether a should be preferred over b as the latest code.
func Newer(a, b Code) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
