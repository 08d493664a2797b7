package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goOTC/internal/audit"
	"github.com/MrEthical07/goOTC/store"
)

// CodeRequest is the result of a successful RunRequestCode.
type CodeRequest struct {
	Email     string
	ExpiresAt time.Time
}

// Login is the result of a successful code or federated login.
type Login struct {
	Token     string
	ExpiresAt time.Time
	Identity  store.Identity
}

// RunRequestCode gates on the code-request budget, then issues and
// dispatches a fresh code. A delivery failure returns the stored record
// alongside the error.
func RunRequestCode(ctx context.Context, email string, deps Deps) (CodeRequest, error) {
	normalizeDeps(&deps)
	if deps.Codes == nil || deps.Limiters == nil {
		return CodeRequest{}, deps.Errors.EngineNotReady
	}

	masked := audit.MaskEmail(store.NormalizeEmail(email))
	if err := deps.Limiters.CheckCodeRequest(deps.ClientIP(ctx)); err != nil {
		return CodeRequest{}, rateLimited(ctx, deps, EventCodeRequested, masked, err)
	}

	issued, err := deps.Codes.Issue(ctx, email)
	if err != nil {
		mapped := mapCodeError(err, deps.Errors)
		switch {
		case errors.Is(mapped, deps.Errors.DeliveryFailed):
			deps.MetricInc(deps.Metrics.DeliveryFailure)
		case errors.Is(mapped, deps.Errors.StorageUnavailable):
			deps.MetricInc(deps.Metrics.StorageFailure)
		}
		deps.MetricInc(deps.Metrics.CodeRequestFailure)
		deps.EmitAudit(ctx, EventCodeRequested, false, "", masked, mapped, state(StateRequested))
		if errors.Is(mapped, deps.Errors.DeliveryFailed) {
			return CodeRequest{Email: issued.Email, ExpiresAt: issued.ExpiresAt}, mapped
		}
		return CodeRequest{}, mapped
	}

	deps.MetricInc(deps.Metrics.CodeRequested)
	deps.EmitAudit(ctx, EventCodeRequested, true, "", audit.MaskEmail(issued.Email), nil, state(StateCodeIssued, "code_id", issued.CodeID))
	return CodeRequest{Email: issued.Email, ExpiresAt: issued.ExpiresAt}, nil
}

// RunVerifyCode gates on the code-verify budget, verifies the candidate and
// on success upserts the identity and issues a session.
func RunVerifyCode(ctx context.Context, email, code string, deps Deps) (Login, error) {
	normalizeDeps(&deps)
	if deps.Codes == nil || deps.Limiters == nil || deps.Identities == nil || deps.Sessions == nil {
		return Login{}, deps.Errors.EngineNotReady
	}

	masked := audit.MaskEmail(store.NormalizeEmail(email))
	if err := deps.Limiters.CheckCodeVerify(deps.ClientIP(ctx)); err != nil {
		return Login{}, rateLimited(ctx, deps, EventCodeVerified, masked, err)
	}

	start := deps.Now()
	verified, err := deps.Codes.Verify(ctx, email, code)
	deps.ObserveVerify(deps.Now().Sub(start))
	if err != nil {
		mapped := mapCodeError(err, deps.Errors)
		switch {
		case errors.Is(mapped, deps.Errors.CodeInvalid):
			deps.MetricInc(deps.Metrics.CodeInvalid)
		case errors.Is(mapped, deps.Errors.CodeExpiredOrAbsent):
			deps.MetricInc(deps.Metrics.CodeExpired)
		case errors.Is(mapped, deps.Errors.MaxAttemptsExceeded):
			deps.MetricInc(deps.Metrics.MaxAttemptsExceeded)
		case errors.Is(mapped, deps.Errors.StorageUnavailable):
			deps.MetricInc(deps.Metrics.StorageFailure)
		}
		deps.EmitAudit(ctx, EventCodeVerified, false, "", masked, mapped,
			state(StateVerifyFailed, "kind", failureKind(mapped, deps.Errors)))
		return Login{}, mapped
	}

	deps.MetricInc(deps.Metrics.CodeVerified)
	deps.EmitAudit(ctx, EventCodeVerified, true, "", audit.MaskEmail(verified.Email), nil, state(StateCodeVerified, "code_id", verified.CodeID))

	return finishLogin(ctx, deps, verified.Email, store.IdentityUpdate{Provider: store.ProviderCode})
}

func rateLimited(ctx context.Context, deps Deps, event, maskedEmail string, err error) error {
	mapped := mapLimiterError(err, deps.Errors)
	if !errors.Is(mapped, deps.Errors.RateLimited) {
		deps.EmitAudit(ctx, event, false, "", maskedEmail, mapped, nil)
		return mapped
	}
	scope := limiterScope(err)
	deps.EmitAudit(ctx, event, false, "", maskedEmail, mapped, state(StateRateLimited, "scope", scope))
	deps.EmitRateLimit(ctx, scope, nil)
	return mapped
}

// finishLogin is the shared tail of both login flows: upsert, then issue.
func finishLogin(ctx context.Context, deps Deps, email string, update store.IdentityUpdate) (Login, error) {
	identity, err := upsertIdentity(ctx, deps, email, update)
	if err != nil {
		mapped := mapIdentityError(err, deps.Errors)
		if errors.Is(mapped, deps.Errors.StorageUnavailable) {
			deps.MetricInc(deps.Metrics.StorageFailure)
		}
		deps.EmitAudit(ctx, EventSessionIssued, false, "", audit.MaskEmail(email), mapped, state(StateSessionIssued, "provider", string(update.Provider)))
		return Login{}, mapped
	}

	token, expiresAt, err := deps.Sessions.Issue(identity.ID, identity.Email)
	if err != nil {
		mapped := wrap(deps.Errors.Internal, err)
		deps.EmitAudit(ctx, EventSessionIssued, false, identity.ID, audit.MaskEmail(identity.Email), mapped, state(StateSessionIssued, "provider", string(update.Provider)))
		return Login{}, mapped
	}

	deps.MetricInc(deps.Metrics.SessionIssued)
	deps.EmitAudit(ctx, EventSessionIssued, true, identity.ID, audit.MaskEmail(identity.Email), nil, state(StateSessionIssued, "provider", string(identity.Provider)))
	return Login{Token: token, ExpiresAt: expiresAt, Identity: identity}, nil
}
