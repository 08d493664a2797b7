package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/goOTC/federated"
	"github.com/MrEthical07/goOTC/internal/otc"
	"github.com/MrEthical07/goOTC/jwt"
	"github.com/MrEthical07/goOTC/store"
)

// CodeService is the subset of *otc.Service used by the code flows.
type CodeService interface {
	Issue(ctx context.Context, email string) (otc.Issued, error)
	Verify(ctx context.Context, email, candidate string) (otc.Verified, error)
}

// AssertionVerifier is satisfied by *federated.Verifier.
type AssertionVerifier interface {
	Verify(ctx context.Context, assertion string) (federated.Identity, error)
}

// SessionIssuer is satisfied by *jwt.Manager.
type SessionIssuer interface {
	Issue(identityID, email string) (string, time.Time, error)
	Parse(token string) (*jwt.SessionClaims, error)
}

// Limiter is satisfied by *limiters.AuthLimiters.
type Limiter interface {
	CheckAuth(ip string) error
	CheckCodeRequest(ip string) error
	CheckCodeVerify(ip string) error
}

// Errors holds the public sentinels flows return.
type Errors struct {
	EngineNotReady      error
	InvalidInput        error
	RateLimited         error
	CodeExpiredOrAbsent error
	CodeInvalid         error
	MaxAttemptsExceeded error
	InvalidAssertion    error
	EmailMissing        error
	SessionExpired      error
	SessionInvalid      error
	DeliveryFailed      error
	StorageUnavailable  error
	IdentityNotFound    error
	FederatedDisabled   error
	ProviderUnavailable error
	Internal            error
}

// Metrics holds the metric ids flows increment.
type Metrics struct {
	CodeRequested       int
	CodeRequestFailure  int
	DeliveryFailure     int
	CodeVerified        int
	CodeInvalid         int
	CodeExpired         int
	MaxAttemptsExceeded int
	FederatedSuccess    int
	FederatedFailure    int
	SessionIssued       int
	SessionValidated    int
	SessionRejected     int
	SessionEnded        int
	UpsertRetry         int
	StorageFailure      int
}

// Deps groups everything the flows need. The engine builds it once.
type Deps struct {
	Codes      CodeService
	Identities store.IdentityStore
	Sessions   SessionIssuer
	Federated  AssertionVerifier
	Limiters   Limiter

	Now      func() time.Time
	ClientIP func(context.Context) string

	MetricInc     func(int)
	ObserveVerify func(time.Duration)
	// EmitAudit receives event type, success, identity id, email, error and
	// a lazily built metadata map.
	EmitAudit     func(context.Context, string, bool, string, string, error, func() map[string]string)
	EmitRateLimit func(context.Context, string, func() map[string]string)

	Metrics Metrics
	Errors  Errors
}

func normalizeDeps(deps *Deps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.ClientIP == nil {
		deps.ClientIP = func(context.Context) string { return "" }
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.ObserveVerify == nil {
		deps.ObserveVerify = func(time.Duration) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
	if deps.EmitRateLimit == nil {
		deps.EmitRateLimit = func(context.Context, string, func() map[string]string) {}
	}
}

func state(s string, kv ...string) func() map[string]string {
	return func() map[string]string {
		m := make(map[string]string, 1+len(kv)/2)
		m["state"] = s
		for i := 0; i+1 < len(kv); i += 2 {
			m[kv[i]] = kv[i+1]
		}
		return m
	}
}
