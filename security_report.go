package goOTC

import "github.com/MrEthical07/goOTC/internal/security"

// SecurityReport summarises the active configuration for startup logs and
// health endpoints.
type SecurityReport = security.Report

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	cfg := e.config
	return security.BuildReport(security.ReportInput{
		ProductionMode:         cfg.ProductionMode,
		SigningAlgorithm:       cfg.Session.SigningMethod,
		SessionTTL:             cfg.Session.TTL,
		CodeTTL:                cfg.Code.TTL,
		CodeMaxAttempts:        cfg.Code.MaxAttempts,
		CodeHashAlgorithm:      cfg.Code.HashAlgorithm,
		RateLimitEnabled:       cfg.RateLimit.Enabled,
		CodeVerifyPoints:       cfg.RateLimit.CodeVerify.Points,
		FederatedEnabled:       e.verifier != nil,
		RequireVerifiedEmail:   cfg.Federated.RequireVerifiedEmail,
		LogPlaintextCodes:      cfg.Development.LogPlaintextCodes,
		AuditEnabled:           cfg.Audit.Enabled,
		HighSeverityLintIssues: len(cfg.Lint().AtLeast(LintHigh)),
	})
}
