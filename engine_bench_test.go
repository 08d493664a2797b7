package goOTC

import (
	"context"
	"testing"

	"github.com/MrEthical07/goOTC/codehash"
	"github.com/MrEthical07/goOTC/store/memory"
)

func newBenchmarkEngine(b *testing.B) (*Engine, *captureDispatcher) {
	b.Helper()

	cfg := DefaultConfig()
	cfg.Session.PrivateKey = []byte(testSecret)
	cfg.RateLimit.Enabled = false
	cfg.Audit.Enabled = false

	hasher, err := codehash.NewBcrypt(4)
	if err != nil {
		b.Fatalf("NewBcrypt: %v", err)
	}
	d := &captureDispatcher{codes: map[string]string{}}

	engine, err := New().
		WithConfig(cfg).
		WithCodeStore(memory.NewCodeStore()).
		WithIdentityStore(memory.NewIdentityStore()).
		WithDispatcher(d).
		WithHasher(hasher).
		Build()
	if err != nil {
		b.Fatalf("Build: %v", err)
	}
	b.Cleanup(engine.Close)
	return engine, d
}

func benchmarkLogin(b *testing.B, engine *Engine, d *captureDispatcher) *LoginResult {
	b.Helper()
	ctx := context.Background()
	if _, err := engine.RequestCode(ctx, "alice@example.com"); err != nil {
		b.Fatalf("request failed: %v", err)
	}
	login, err := engine.VerifyCode(ctx, "alice@example.com", d.code("alice@example.com"))
	if err != nil {
		b.Fatalf("verify failed: %v", err)
	}
	return login
}

func BenchmarkValidateSession(b *testing.B) {
	engine, d := newBenchmarkEngine(b)
	login := benchmarkLogin(b, engine, d)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.ValidateSession(login.Token); err != nil {
			b.Fatalf("validate failed: %v", err)
		}
	}
}

func BenchmarkValidateSessionParallel(b *testing.B) {
	engine, d := newBenchmarkEngine(b)
	login := benchmarkLogin(b, engine, d)

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := engine.ValidateSession(login.Token); err != nil {
				b.Errorf("validate failed: %v", err)
				return
			}
		}
	})
}

func BenchmarkRequestCode(b *testing.B) {
	engine, _ := newBenchmarkEngine(b)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.RequestCode(ctx, "alice@example.com"); err != nil {
			b.Fatalf("request failed: %v", err)
		}
	}
}

func BenchmarkCodeLogin(b *testing.B) {
	engine, d := newBenchmarkEngine(b)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		benchmarkLogin(b, engine, d)
	}
}

func BenchmarkCurrentIdentity(b *testing.B) {
	engine, d := newBenchmarkEngine(b)
	login := benchmarkLogin(b, engine, d)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.CurrentIdentity(ctx, login.Token); err != nil {
			b.Fatalf("current identity failed: %v", err)
		}
	}
}
