package goOTC

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goOTC/internal/audit"
	"github.com/MrEthical07/goOTC/internal/flows"
	"github.com/MrEthical07/goOTC/internal/limiters"
	"github.com/MrEthical07/goOTC/internal/otc"
	"github.com/MrEthical07/goOTC/jwt"
	"github.com/MrEthical07/goOTC/logging"
	"github.com/MrEthical07/goOTC/store"
)

// Engine issues and verifies one-time codes, verifies federated assertions
// and mints session tokens. It is safe for concurrent use once built.
type Engine struct {
	config     Config
	codeStore  store.CodeStore
	identities store.IdentityStore
	codes      *otc.Service
	sessions   *jwt.Manager
	verifier   FederatedVerifier
	limiters   *limiters.AuthLimiters
	audit      *audit.Dispatcher
	metrics    *Metrics
	log        logging.Logger
	clock      func() time.Time
	deps       flows.Deps

	sweepMu     sync.Mutex
	sweepCancel context.CancelFunc
	sweepDone   chan struct{}

	closed    atomic.Bool
	closeOnce sync.Once
}

func (e *Engine) ready() bool {
	return e != nil && e.codes != nil && !e.closed.Load()
}

func (e *Engine) flowDeps() flows.Deps {
	deps := flows.Deps{
		Codes:      e.codes,
		Identities: e.identities,
		Sessions:   e.sessions,
		Limiters:   e.limiters,
		Now:        e.now,
		ClientIP:   ClientIPFromContext,
		MetricInc: func(id int) {
			e.metrics.Inc(MetricID(id))
		},
		ObserveVerify: func(d time.Duration) {
			e.metrics.Observe(MetricVerifyLatency, d)
		},
		EmitAudit:     e.emitAudit,
		EmitRateLimit: e.emitRateLimit,
		Metrics: flows.Metrics{
			CodeRequested:       int(MetricCodeRequested),
			CodeRequestFailure:  int(MetricCodeRequestFailure),
			DeliveryFailure:     int(MetricCodeDeliveryFailure),
			CodeVerified:        int(MetricCodeVerified),
			CodeInvalid:         int(MetricCodeInvalid),
			CodeExpired:         int(MetricCodeExpired),
			MaxAttemptsExceeded: int(MetricCodeMaxAttempts),
			FederatedSuccess:    int(MetricFederatedSuccess),
			FederatedFailure:    int(MetricFederatedFailure),
			SessionIssued:       int(MetricSessionIssued),
			SessionValidated:    int(MetricSessionValidated),
			SessionRejected:     int(MetricSessionRejected),
			SessionEnded:        int(MetricSessionEnded),
			UpsertRetry:         int(MetricUpsertRetry),
			StorageFailure:      int(MetricStorageFailure),
		},
		Errors: flows.Errors{
			EngineNotReady:      ErrEngineNotReady,
			InvalidInput:        ErrInvalidInput,
			RateLimited:         ErrRateLimited,
			CodeExpiredOrAbsent: ErrCodeExpiredOrAbsent,
			CodeInvalid:         ErrCodeInvalid,
			MaxAttemptsExceeded: ErrMaxAttemptsExceeded,
			InvalidAssertion:    ErrInvalidAssertion,
			EmailMissing:        ErrEmailMissing,
			SessionExpired:      ErrSessionExpired,
			SessionInvalid:      ErrSessionInvalid,
			DeliveryFailed:      ErrDeliveryFailed,
			StorageUnavailable:  ErrStorageUnavailable,
			IdentityNotFound:    ErrIdentityNotFound,
			FederatedDisabled:   ErrFederatedDisabled,
			ProviderUnavailable: ErrProviderUnavailable,
			Internal:            ErrInternal,
		},
	}
	if e.verifier != nil {
		deps.Federated = e.verifier
	}
	return deps
}

// RequestCode issues a fresh code for email and hands it to the dispatcher.
// Earlier codes for the email stop working. When delivery fails the code is
// still stored and the result is returned together with ErrDeliveryFailed.
func (e *Engine) RequestCode(ctx context.Context, email string) (*CodeRequestResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	res, err := flows.RunRequestCode(ctx, email, e.deps)
	if err != nil {
		e.logFailure(ctx, "request code", err)
		if errors.Is(err, ErrDeliveryFailed) {
			return &CodeRequestResult{Email: res.Email, ExpiresAt: res.ExpiresAt}, err
		}
		return nil, err
	}
	return &CodeRequestResult{Email: res.Email, ExpiresAt: res.ExpiresAt}, nil
}

// VerifyCode checks code against the latest code for email. On success the
// code is consumed, the identity is created or updated and a session token
// is returned.
func (e *Engine) VerifyCode(ctx context.Context, email, code string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	login, err := flows.RunVerifyCode(ctx, email, code, e.deps)
	if err != nil {
		e.logFailure(ctx, "verify code", err)
		return nil, err
	}
	return loginResult(login), nil
}

// FederatedLogin verifies an identity provider's assertion and returns a
// session for the asserted email.
func (e *Engine) FederatedLogin(ctx context.Context, assertion string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	login, err := flows.RunFederatedLogin(ctx, assertion, e.deps)
	if err != nil {
		e.logFailure(ctx, "federated login", err)
		return nil, err
	}
	return loginResult(login), nil
}

// CurrentIdentity validates token and returns a fresh summary of its identity.
func (e *Engine) CurrentIdentity(ctx context.Context, token string) (*IdentitySummary, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	id, err := flows.RunCurrentIdentity(ctx, token, e.deps)
	if err != nil {
		e.logFailure(ctx, "current identity", err)
		return nil, err
	}
	summary := summarize(id)
	return &summary, nil
}

// ValidateSession checks token signature and expiry only. It performs no I/O
// and is not rate limited.
func (e *Engine) ValidateSession(token string) (*Session, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	s, err := flows.RunValidateSession(token, e.deps)
	if err != nil {
		return nil, err
	}
	return &Session{IdentityID: s.IdentityID, Email: s.Email, ExpiresAt: s.ExpiresAt}, nil
}

// EndSession acknowledges a logout. Tokens are stateless; the caller is
// expected to discard its copy.
func (e *Engine) EndSession(ctx context.Context) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	return flows.RunEndSession(ctx, e.deps)
}

// SweepExpiredCodes deletes expired codes and prunes idle rate limit
// windows. It returns the number of codes removed.
func (e *Engine) SweepExpiredCodes(ctx context.Context) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	n, err := e.codes.SweepExpired(ctx)
	pruned := e.limiters.Prune()
	if err != nil {
		e.metrics.Inc(MetricStorageFailure)
		e.log.Error(ctx, "sweep failed", "error", err)
		return n, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	e.metrics.Add(MetricCodesSwept, uint64(n))
	if n > 0 {
		e.emitAudit(ctx, AuditEventCodesSwept, true, "", "", nil, func() map[string]string {
			return map[string]string{"count": strconv.Itoa(n)}
		})
	}
	e.log.Debug(ctx, "sweep completed", "codes", n, "limiter_windows", pruned)
	return n, nil
}

// Close stops the sweeper and flushes pending audit events. Every method
// returns ErrEngineNotReady afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		e.stopSweeper()
		e.audit.Close()
		e.log.Info(context.Background(), "engine closed")
	})
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return NewMetrics(MetricsConfig{}).Snapshot()
	}
	return e.metrics.Snapshot()
}

// AuditDropped returns the number of audit events dropped because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// Config returns a copy of the active configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

func (e *Engine) logFailure(ctx context.Context, op string, err error) {
	switch KindOf(err) {
	case KindStorageUnavailable, KindDeliveryError, KindInternal:
		e.log.Error(ctx, op+" failed", "error", err, "kind", KindOf(err), "ip", ClientIPFromContext(ctx))
	case KindRateLimited:
		// logged by emitRateLimit
	default:
		e.log.Debug(ctx, op+" rejected", "kind", KindOf(err))
	}
}

func loginResult(l flows.Login) *LoginResult {
	return &LoginResult{
		Token:     l.Token,
		ExpiresAt: l.ExpiresAt,
		Identity:  summarize(l.Identity),
	}
}
