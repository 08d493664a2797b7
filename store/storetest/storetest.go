// Package storetest holds behavioral checks shared by every store backend.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goOTC/store"
)

var base = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func code(id, email string, created time.Time, ttl time.Duration) store.Code {
	return store.Code{
		ID:          id,
		Email:       email,
		SecretHash:  "hash-" + id,
		CreatedAt:   created,
		ExpiresAt:   created.Add(ttl),
		MaxAttempts: 5,
	}
}

// RunCodeStore exercises a CodeStore built fresh for every subtest.
func RunCodeStore(t *testing.T, newStore func(t *testing.T) store.CodeStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("LatestValidWins", func(t *testing.T) {
		s := newStore(t)
		mustCreate(t, s, code("c1", "a@x.io", base, 10*time.Minute))
		mustCreate(t, s, code("c2", "a@x.io", base.Add(time.Second), 10*time.Minute))
		mustCreate(t, s, code("c3", "b@x.io", base.Add(2*time.Second), 10*time.Minute))

		got, err := s.FindLatestValid(ctx, "a@x.io", base.Add(time.Minute))
		if err != nil {
			t.Fatalf("FindLatestValid: %v", err)
		}
		if got.ID != "c2" || got.SecretHash != "hash-c2" || got.MaxAttempts != 5 {
			t.Fatalf("unexpected code %+v", got)
		}
		if !got.ExpiresAt.Equal(base.Add(time.Second + 10*time.Minute)) {
			t.Fatalf("unexpected expiry %v", got.ExpiresAt)
		}
	})

	t.Run("ExpiredIgnored", func(t *testing.T) {
		s := newStore(t)
		mustCreate(t, s, code("c1", "a@x.io", base, time.Minute))

		if _, err := s.FindLatestValid(ctx, "a@x.io", base.Add(time.Minute)); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound for expired code, got %v", err)
		}
	})

	t.Run("AbsentIsNotFound", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.FindLatestValid(ctx, "none@x.io", base); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("IncrementAttempts", func(t *testing.T) {
		s := newStore(t)
		mustCreate(t, s, code("c1", "a@x.io", base, 10*time.Minute))

		for want := 1; want <= 3; want++ {
			got, err := s.IncrementAttempts(ctx, "c1")
			if err != nil {
				t.Fatalf("IncrementAttempts: %v", err)
			}
			if got != want {
				t.Fatalf("expected attempts=%d, got %d", want, got)
			}
		}
		c, err := s.FindLatestValid(ctx, "a@x.io", base)
		if err != nil {
			t.Fatal(err)
		}
		if c.Attempts != 3 {
			t.Fatalf("expected persisted attempts=3, got %d", c.Attempts)
		}
		if _, err := s.IncrementAttempts(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound for missing id, got %v", err)
		}
	})

	t.Run("ConcurrentIncrementsNotLost", func(t *testing.T) {
		s := newStore(t)
		mustCreate(t, s, code("c1", "a@x.io", base, 10*time.Minute))

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = s.IncrementAttempts(ctx, "c1")
			}()
		}
		wg.Wait()

		c, err := s.FindLatestValid(ctx, "a@x.io", base)
		if err != nil {
			t.Fatal(err)
		}
		if c.Attempts != 10 {
			t.Fatalf("expected 10 attempts, got %d", c.Attempts)
		}
	})

	t.Run("DeleteByEmail", func(t *testing.T) {
		s := newStore(t)
		mustCreate(t, s, code("c1", "a@x.io", base, 10*time.Minute))
		mustCreate(t, s, code("c2", "a@x.io", base.Add(time.Second), 10*time.Minute))
		mustCreate(t, s, code("c3", "b@x.io", base, 10*time.Minute))

		n, err := s.DeleteByEmail(ctx, "a@x.io")
		if err != nil {
			t.Fatalf("DeleteByEmail: %v", err)
		}
		if n != 2 {
			t.Fatalf("expected 2 deleted, got %d", n)
		}
		if _, err := s.FindLatestValid(ctx, "a@x.io", base); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected codes gone, got %v", err)
		}
		if _, err := s.FindLatestValid(ctx, "b@x.io", base); err != nil {
			t.Fatalf("other email must survive: %v", err)
		}
	})

	t.Run("DeleteExpired", func(t *testing.T) {
		s := newStore(t)
		mustCreate(t, s, code("old", "a@x.io", base, time.Minute))
		mustCreate(t, s, code("new", "b@x.io", base, time.Hour))

		n, err := s.DeleteExpired(ctx, base.Add(2*time.Minute))
		if err != nil {
			t.Fatalf("DeleteExpired: %v", err)
		}
		if n != 1 {
			t.Fatalf("expected 1 swept, got %d", n)
		}
		if _, err := s.FindLatestValid(ctx, "b@x.io", base.Add(2*time.Minute)); err != nil {
			t.Fatalf("live code must survive sweep: %v", err)
		}
	})
}

// RunIdentityStore exercises an IdentityStore built fresh for every subtest.
func RunIdentityStore(t *testing.T, newStore func(t *testing.T) store.IdentityStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("CreateThenUpdate", func(t *testing.T) {
		s := newStore(t)

		first, err := s.Upsert(ctx, "a@x.io", store.IdentityUpdate{Provider: store.ProviderCode, At: base})
		if err != nil {
			t.Fatalf("Upsert create: %v", err)
		}
		if first.ID == "" || first.Email != "a@x.io" || first.Provider != store.ProviderCode {
			t.Fatalf("unexpected created identity %+v", first)
		}

		later := base.Add(time.Hour)
		second, err := s.Upsert(ctx, "a@x.io", store.IdentityUpdate{
			Name:      "Ann",
			Provider:  store.ProviderFederated,
			SubjectID: "sub-1",
			At:        later,
		})
		if err != nil {
			t.Fatalf("Upsert update: %v", err)
		}
		if second.ID != first.ID {
			t.Fatalf("upsert must keep identity id: %s != %s", second.ID, first.ID)
		}
		if second.Name != "Ann" || second.Provider != store.ProviderFederated || second.SubjectID != "sub-1" {
			t.Fatalf("unexpected updated identity %+v", second)
		}
		if !second.CreatedAt.Equal(base) || !second.UpdatedAt.Equal(later) {
			t.Fatalf("unexpected timestamps %+v", second)
		}

		found, err := s.FindByID(ctx, first.ID)
		if err != nil {
			t.Fatalf("FindByID: %v", err)
		}
		if found.Email != "a@x.io" || found.Name != "Ann" {
			t.Fatalf("unexpected found identity %+v", found)
		}
	})

	t.Run("ConcurrentUpsertsYieldOneIdentity", func(t *testing.T) {
		s := newStore(t)

		var (
			wg  sync.WaitGroup
			mu  sync.Mutex
			ids = map[string]struct{}{}
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for attempt := 0; attempt < 3; attempt++ {
					id, err := s.Upsert(ctx, "race@x.io", store.IdentityUpdate{Provider: store.ProviderCode, At: base})
					if errors.Is(err, store.ErrConflict) {
						continue
					}
					if err != nil {
						t.Errorf("Upsert: %v", err)
						return
					}
					mu.Lock()
					ids[id.ID] = struct{}{}
					mu.Unlock()
					return
				}
			}()
		}
		wg.Wait()

		if len(ids) != 1 {
			t.Fatalf("expected one identity id, got %d", len(ids))
		}
	})

	t.Run("SubjectTakenIsNotAConflict", func(t *testing.T) {
		s := newStore(t)
		fed := store.IdentityUpdate{Provider: store.ProviderFederated, SubjectID: "sub-x", At: base}
		if _, err := s.Upsert(ctx, "owner@x.io", fed); err != nil {
			t.Fatalf("Upsert owner: %v", err)
		}
		_, err := s.Upsert(ctx, "other@x.io", fed)
		if !errors.Is(err, store.ErrSubjectTaken) {
			t.Fatalf("expected ErrSubjectTaken, got %v", err)
		}
		if errors.Is(err, store.ErrConflict) {
			t.Fatalf("subject taken must not be retryable: %v", err)
		}
	})

	t.Run("ReleasedSubjectCanBeClaimed", func(t *testing.T) {
		s := newStore(t)
		fed := store.IdentityUpdate{Provider: store.ProviderFederated, SubjectID: "sub-y", At: base}
		if _, err := s.Upsert(ctx, "first@x.io", fed); err != nil {
			t.Fatalf("Upsert first: %v", err)
		}
		cleared, err := s.Upsert(ctx, "first@x.io", store.IdentityUpdate{Provider: store.ProviderCode, At: base})
		if err != nil {
			t.Fatalf("Upsert code login: %v", err)
		}
		if cleared.SubjectID != "" {
			t.Fatalf("code login must clear subject, got %q", cleared.SubjectID)
		}
		claimed, err := s.Upsert(ctx, "second@x.io", fed)
		if err != nil {
			t.Fatalf("released subject should be claimable, got %v", err)
		}
		if claimed.SubjectID != "sub-y" {
			t.Fatalf("unexpected identity %+v", claimed)
		}
	})

	t.Run("ChangedSubjectReleasesOld", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.Upsert(ctx, "first@x.io", store.IdentityUpdate{Provider: store.ProviderFederated, SubjectID: "old", At: base}); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
		if _, err := s.Upsert(ctx, "first@x.io", store.IdentityUpdate{Provider: store.ProviderFederated, SubjectID: "new", At: base}); err != nil {
			t.Fatalf("Upsert new subject: %v", err)
		}
		if _, err := s.Upsert(ctx, "second@x.io", store.IdentityUpdate{Provider: store.ProviderFederated, SubjectID: "old", At: base}); err != nil {
			t.Fatalf("old subject should be free, got %v", err)
		}
	})

	t.Run("FindByIDMissing", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.FindByID(ctx, "nope"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func mustCreate(t *testing.T, s store.CodeStore, c store.Code) {
	t.Helper()
	if err := s.Create(context.Background(), c); err != nil {
		t.Fatalf("Create(%s): %v", c.ID, err)
	}
}
