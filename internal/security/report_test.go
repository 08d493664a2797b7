package security

import (
	"testing"
	"time"
)

func strongInput() ReportInput {
	return ReportInput{
		ProductionMode:       true,
		SigningAlgorithm:     "hs256",
		SessionTTL:           24 * time.Hour,
		CodeTTL:              5 * time.Minute,
		CodeMaxAttempts:      3,
		CodeHashAlgorithm:    "argon2id",
		RateLimitEnabled:     true,
		CodeVerifyPoints:     3,
		FederatedEnabled:     true,
		RequireVerifiedEmail: true,
		AuditEnabled:         true,
	}
}

func TestBuildReportGrades(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*ReportInput)
		grade  string
	}{
		{name: "strong", mutate: func(*ReportInput) {}, grade: "strong"},
		{name: "no federated", mutate: func(in *ReportInput) { in.FederatedEnabled = false; in.RequireVerifiedEmail = false }, grade: "strong"},
		{name: "unverified federated email", mutate: func(in *ReportInput) { in.RequireVerifiedEmail = false }, grade: "acceptable"},
		{name: "not production", mutate: func(in *ReportInput) { in.ProductionMode = false }, grade: "acceptable"},
		{name: "no audit", mutate: func(in *ReportInput) { in.AuditEnabled = false }, grade: "acceptable"},
		{name: "rate limits off", mutate: func(in *ReportInput) { in.RateLimitEnabled = false }, grade: "weak"},
		{name: "plaintext codes", mutate: func(in *ReportInput) { in.ProductionMode = false; in.LogPlaintextCodes = true }, grade: "weak"},
		{name: "plaintext ignored in production", mutate: func(in *ReportInput) { in.LogPlaintextCodes = true }, grade: "strong"},
		{name: "high lint", mutate: func(in *ReportInput) { in.HighSeverityLintIssues = 1 }, grade: "weak"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := strongInput()
			tc.mutate(&in)
			if got := BuildReport(in).Grade; got != tc.grade {
				t.Fatalf("grade = %q, want %q", got, tc.grade)
			}
		})
	}
}

func TestBuildReportCopiesFields(t *testing.T) {
	r := BuildReport(strongInput())
	if !r.ProductionMode || r.SigningAlgorithm != "hs256" || r.CodeTTL != 5*time.Minute || r.CodeMaxAttempts != 3 {
		t.Fatalf("unexpected report %+v", r)
	}
	if !r.RateLimitingActive || !r.FederatedVerifiedEmail || !r.AuditActive || r.PlaintextCodesLogged {
		t.Fatalf("unexpected flags %+v", r)
	}
}
