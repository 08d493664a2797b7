package security

import "time"

type Report struct {
	ProductionMode         bool
	SigningAlgorithm       string
	SessionTTL             time.Duration
	CodeTTL                time.Duration
	CodeMaxAttempts        int
	CodeHashAlgorithm      string
	RateLimitingActive     bool
	FederatedActive        bool
	FederatedVerifiedEmail bool
	PlaintextCodesLogged   bool
	AuditActive            bool
	// Grade is "strong", "acceptable" or "weak".
	Grade string
}

type ReportInput struct {
	ProductionMode         bool
	SigningAlgorithm       string
	SessionTTL             time.Duration
	CodeTTL                time.Duration
	CodeMaxAttempts        int
	CodeHashAlgorithm      string
	RateLimitEnabled       bool
	CodeVerifyPoints       int
	FederatedEnabled       bool
	RequireVerifiedEmail   bool
	LogPlaintextCodes      bool
	AuditEnabled           bool
	HighSeverityLintIssues int
}

// BuildReport summarises the posture described by input. A deployment is
// weak when codes can leak or guessing is unbounded, and strong when it runs
// in production mode with rate limits, audit and no high lint findings.
func BuildReport(input ReportInput) Report {
	plaintext := input.LogPlaintextCodes && !input.ProductionMode
	rateLimiting := input.RateLimitEnabled && input.CodeVerifyPoints > 0

	grade := "acceptable"
	switch {
	case plaintext || !rateLimiting || input.HighSeverityLintIssues > 0:
		grade = "weak"
	case input.ProductionMode && input.AuditEnabled &&
		(!input.FederatedEnabled || input.RequireVerifiedEmail):
		grade = "strong"
	}

	return Report{
		ProductionMode:         input.ProductionMode,
		SigningAlgorithm:       input.SigningAlgorithm,
		SessionTTL:             input.SessionTTL,
		CodeTTL:                input.CodeTTL,
		CodeMaxAttempts:        input.CodeMaxAttempts,
		CodeHashAlgorithm:      input.CodeHashAlgorithm,
		RateLimitingActive:     rateLimiting,
		FederatedActive:        input.FederatedEnabled,
		FederatedVerifiedEmail: input.FederatedEnabled && input.RequireVerifiedEmail,
		PlaintextCodesLogged:   plaintext,
		AuditActive:            input.AuditEnabled,
		Grade:                  grade,
	}
}
