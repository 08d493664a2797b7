package flows

import (
	"context"
	"strings"

	"github.com/MrEthical07/goOTC/internal/audit"
	"github.com/MrEthical07/goOTC/store"
)

// RunFederatedLogin verifies a provider-issued assertion and converts the
// asserted identity into a session.
func RunFederatedLogin(ctx context.Context, assertion string, deps Deps) (Login, error) {
	normalizeDeps(&deps)
	if deps.Limiters == nil || deps.Identities == nil || deps.Sessions == nil {
		return Login{}, deps.Errors.EngineNotReady
	}

	if err := deps.Limiters.CheckAuth(deps.ClientIP(ctx)); err != nil {
		return Login{}, rateLimited(ctx, deps, EventFederatedLogin, "", err)
	}
	if deps.Federated == nil {
		deps.EmitAudit(ctx, EventFederatedLogin, false, "", "", deps.Errors.FederatedDisabled, state(StateAssertionRejected))
		return Login{}, deps.Errors.FederatedDisabled
	}
	if strings.TrimSpace(assertion) == "" {
		deps.MetricInc(deps.Metrics.FederatedFailure)
		deps.EmitAudit(ctx, EventFederatedLogin, false, "", "", deps.Errors.InvalidInput, state(StateAssertionRejected, "reason", "empty_assertion"))
		return Login{}, deps.Errors.InvalidInput
	}

	identity, err := deps.Federated.Verify(ctx, assertion)
	if err != nil {
		mapped := mapAssertionError(err, deps.Errors)
		deps.MetricInc(deps.Metrics.FederatedFailure)
		deps.EmitAudit(ctx, EventFederatedLogin, false, "", "", mapped, state(StateAssertionRejected))
		return Login{}, mapped
	}

	email := store.NormalizeEmail(identity.Email)
	deps.MetricInc(deps.Metrics.FederatedSuccess)
	deps.EmitAudit(ctx, EventFederatedLogin, true, "", audit.MaskEmail(email), nil, state(StateIdentityVerified, "issuer", identity.Issuer))

	return finishLogin(ctx, deps, email, store.IdentityUpdate{
		Name:      identity.Name,
		Provider:  store.ProviderFederated,
		SubjectID: identity.SubjectID,
	})
}
