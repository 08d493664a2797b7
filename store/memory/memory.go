// Package memory implements the store contracts with mutex-guarded maps.
// State lives for the life of the process.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/goOTC/store"
	"github.com/google/uuid"
)

// CodeStore is an in-memory store.CodeStore.
type CodeStore struct {
	mu    sync.Mutex
	codes map[string]store.Code
}

func NewCodeStore() *CodeStore {
	return &CodeStore{codes: make(map[string]store.Code)}
}

func (s *CodeStore) Create(_ context.Context, c store.Code) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.codes[c.ID]; ok {
		return store.ErrConflict
	}
	s.codes[c.ID] = c
	return nil
}

func (s *CodeStore) FindLatestValid(_ context.Context, email string, now time.Time) (store.Code, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		latest store.Code
		found  bool
	)
	for _, c := range s.codes {
		if c.Email != email || c.Expired(now) {
			continue
		}
		if !found || store.Newer(c, latest) {
			latest = c
			found = true
		}
	}
	if !found {
		return store.Code{}, store.ErrNotFound
	}
	return latest, nil
}

func (s *CodeStore) IncrementAttempts(_ context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[id]
	if !ok {
		return 0, store.ErrNotFound
	}
	c.Attempts++
	s.codes[id] = c
	return c.Attempts, nil
}

func (s *CodeStore) DeleteByEmail(_ context.Context, email string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, c := range s.codes {
		if c.Email == email {
			delete(s.codes, id)
			n++
		}
	}
	return n, nil
}

func (s *CodeStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, c := range s.codes {
		if c.Expired(now) {
			delete(s.codes, id)
			n++
		}
	}
	return n, nil
}

// Len reports the number of stored codes, expired ones included.
func (s *CodeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.codes)
}

// IdentityStore is an in-memory store.IdentityStore.
type IdentityStore struct {
	mu      sync.Mutex
	byEmail map[string]string
	byID    map[string]store.Identity
}

func NewIdentityStore() *IdentityStore {
	return &IdentityStore{
		byEmail: make(map[string]string),
		byID:    make(map[string]store.Identity),
	}
}

func (s *IdentityStore) Upsert(_ context.Context, email string, u store.IdentityUpdate) (store.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.Provider == store.ProviderFederated && u.SubjectID != "" {
		for _, other := range s.byID {
			if other.Email != email && other.Provider == store.ProviderFederated && other.SubjectID == u.SubjectID {
				return store.Identity{}, store.ErrSubjectTaken
			}
		}
	}

	if id, ok := s.byEmail[email]; ok {
		updated := u.Apply(s.byID[id])
		s.byID[id] = updated
		return updated, nil
	}

	created := u.Apply(store.Identity{
		ID:        uuid.NewString(),
		Email:     email,
		CreatedAt: u.At,
	})
	s.byEmail[email] = created.ID
	s.byID[created.ID] = created
	return created, nil
}

func (s *IdentityStore) FindByID(_ context.Context, id string) (store.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ident, ok := s.byID[id]
	if !ok {
		return store.Identity{}, store.ErrNotFound
	}
	return ident, nil
}
