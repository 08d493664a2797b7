package goOTC

import "errors"

var (
	// ErrEngineNotReady is returned by a zero or closed Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrInvalidInput is returned for a malformed email or an empty assertion.
	ErrInvalidInput = errors.New("invalid input")
	// ErrRateLimited is returned when a per-client budget is exhausted.
	ErrRateLimited = errors.New("too many requests")

	// ErrCodeExpiredOrAbsent is returned when no valid code exists for the email.
	ErrCodeExpiredOrAbsent = errors.New("code expired or not found")
	// ErrCodeInvalid is returned when the candidate does not match.
	ErrCodeInvalid = errors.New("invalid code")
	// ErrMaxAttemptsExceeded is returned when the code has been purged after
	// too many failed attempts.
	ErrMaxAttemptsExceeded = errors.New("too many failed attempts")
	// ErrDeliveryFailed is returned when the code was stored but could not be sent.
	ErrDeliveryFailed = errors.New("failed to send code")

	ErrInvalidAssertion = errors.New("invalid identity assertion")
	ErrEmailMissing     = errors.New("email not provided by identity provider")
	// ErrFederatedDisabled is returned by FederatedLogin when no verifier is configured.
	ErrFederatedDisabled = errors.New("federated login not configured")
	// ErrProviderUnavailable is returned when the provider's keys cannot be fetched.
	ErrProviderUnavailable = errors.New("identity provider unavailable")

	ErrSessionExpired = errors.New("token expired")
	ErrSessionInvalid = errors.New("invalid token")
	// ErrSessionMissing is returned by adapters when no token was presented.
	ErrSessionMissing = errors.New("access token required")

	// ErrIdentityNotFound is returned when a valid session names a missing identity.
	ErrIdentityNotFound = errors.New("user not found")
	// ErrStorageUnavailable wraps backend failures. The wrapped detail is for
	// logs only.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrInternal wraps anything unclassified.
	ErrInternal = errors.New("internal error")
)
