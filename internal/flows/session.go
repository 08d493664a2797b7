package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/goOTC/internal/audit"
	"github.com/MrEthical07/goOTC/store"
)

// Session is the validated content of a session token.
type Session struct {
	IdentityID string
	Email      string
	ExpiresAt  time.Time
}

// RunValidateSession parses token without touching storage or limiters.
func RunValidateSession(token string, deps Deps) (Session, error) {
	normalizeDeps(&deps)
	if deps.Sessions == nil {
		return Session{}, deps.Errors.EngineNotReady
	}
	claims, err := deps.Sessions.Parse(token)
	if err != nil {
		deps.MetricInc(deps.Metrics.SessionRejected)
		return Session{}, mapSessionError(err, deps.Errors)
	}
	deps.MetricInc(deps.Metrics.SessionValidated)

	s := Session{IdentityID: claims.IdentityID(), Email: claims.Email}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}

// RunCurrentIdentity validates token and loads a fresh copy of its identity.
func RunCurrentIdentity(ctx context.Context, token string, deps Deps) (store.Identity, error) {
	normalizeDeps(&deps)
	if deps.Limiters == nil || deps.Identities == nil || deps.Sessions == nil {
		return store.Identity{}, deps.Errors.EngineNotReady
	}
	if err := deps.Limiters.CheckAuth(deps.ClientIP(ctx)); err != nil {
		return store.Identity{}, rateLimited(ctx, deps, EventSessionValidated, "", err)
	}

	session, err := RunValidateSession(token, deps)
	if err != nil {
		deps.EmitAudit(ctx, EventSessionValidated, false, "", "", err, nil)
		return store.Identity{}, err
	}

	identity, err := deps.Identities.FindByID(ctx, session.IdentityID)
	if err != nil {
		mapped := mapIdentityError(err, deps.Errors)
		deps.EmitAudit(ctx, EventSessionValidated, false, session.IdentityID, audit.MaskEmail(session.Email), mapped, nil)
		return store.Identity{}, mapped
	}
	return identity, nil
}

// RunEndSession records a logout. Sessions are stateless so nothing is
// revoked.
func RunEndSession(ctx context.Context, deps Deps) error {
	normalizeDeps(&deps)
	if deps.Limiters == nil {
		return deps.Errors.EngineNotReady
	}
	if err := deps.Limiters.CheckAuth(deps.ClientIP(ctx)); err != nil {
		return rateLimited(ctx, deps, EventSessionEnded, "", err)
	}
	deps.MetricInc(deps.Metrics.SessionEnded)
	deps.EmitAudit(ctx, EventSessionEnded, true, "", "", nil, nil)
	return nil
}
