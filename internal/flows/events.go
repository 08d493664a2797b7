package flows

// Audit event types.
const (
	EventCodeRequested    = "code_requested"
	EventCodeVerified     = "code_verified"
	EventFederatedLogin   = "federated_login"
	EventSessionIssued    = "session_issued"
	EventSessionValidated = "session_validated"
	EventSessionEnded     = "session_ended"
	EventRateLimited      = "rate_limit_triggered"
)

// Flow states recorded under metadata["state"].
const (
	StateRequested         = "requested"
	StateCodeIssued        = "code_issued"
	StateCodeVerified      = "code_verified"
	StateVerifyFailed      = "verify_failed"
	StateRateLimited       = "rate_limited"
	StateIdentityVerified  = "identity_verified"
	StateAssertionRejected = "assertion_rejected"
	StateSessionIssued     = "session_issued"
)

// Rate limit scopes.
const (
	ScopeCodeRequest = "code_request"
	ScopeCodeVerify  = "code_verify"
	ScopeAuth        = "auth"
)
