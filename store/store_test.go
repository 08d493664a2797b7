package store

import (
	"testing"
	"time"
)

func TestIdentityUpdateApply(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	id := Identity{ID: "u1", Email: "a@x.io", Name: "Ann", Provider: ProviderFederated, SubjectID: "sub-1", CreatedAt: t0, UpdatedAt: t0}

	got := IdentityUpdate{Provider: ProviderCode, At: t1}.Apply(id)
	if got.Name != "Ann" {
		t.Fatalf("empty name must not overwrite, got %q", got.Name)
	}
	if got.Provider != ProviderCode || got.SubjectID != "" {
		t.Fatalf("code provider must clear subject, got %+v", got)
	}
	if !got.CreatedAt.Equal(t0) || !got.UpdatedAt.Equal(t1) {
		t.Fatalf("unexpected timestamps %+v", got)
	}

	got = IdentityUpdate{Name: "Anne", Provider: ProviderFederated, SubjectID: "sub-2", At: t1}.Apply(got)
	if got.Name != "Anne" || got.SubjectID != "sub-2" {
		t.Fatalf("unexpected federated apply %+v", got)
	}
}

func TestNewerTieBreaksByID(t *testing.T) {
	t0 := time.Now()
	a := Code{ID: "b", CreatedAt: t0}
	b := Code{ID: "a", CreatedAt: t0}
	if !Newer(a, b) || Newer(b, a) {
		t.Fatal("expected lexicographically greater id to win ties")
	}
	c := Code{ID: "a", CreatedAt: t0.Add(time.Millisecond)}
	if !Newer(c, a) {
		t.Fatal("expected later creation to win")
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Foo@Bar.COM "); got != "foo@bar.com" {
		t.Fatalf("got %q", got)
	}
}

func TestCodeExpired(t *testing.T) {
	now := time.Now()
	c := Code{ExpiresAt: now}
	if !c.Expired(now) {
		t.Fatal("code expiring exactly now must be expired")
	}
	if c.Expired(now.Add(-time.Nanosecond)) {
		t.Fatal("code must be valid before expiry")
	}
}
