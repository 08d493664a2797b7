package goOTC

import (
	"slices"
	"testing"
	"time"
)

func TestLint_DefaultConfig(t *testing.T) {
	cfg := validConfig()
	codes := cfg.Lint().Codes()

	for _, code := range []string{"rate_limits_disabled", "plaintext_codes_logged", "code_ttl_long"} {
		if slices.Contains(codes, code) {
			t.Errorf("default config should not produce %q", code)
		}
	}
}

func TestLint_HighSecurityConfigMinimalWarnings(t *testing.T) {
	cfg := HighSecurityConfig()
	if high := cfg.Lint().AtLeast(LintWarn); len(high) != 0 {
		t.Fatalf("expected no warnings at warn level, got %v", high.Codes())
	}
}

func TestLint_Codes(t *testing.T) {
	tests := []struct {
		code     string
		severity LintSeverity
		mutate   func(*Config)
	}{
		{"plaintext_codes_logged", LintHigh, func(c *Config) { c.Development.LogPlaintextCodes = true }},
		{"plaintext_codes_ignored", LintInfo, func(c *Config) {
			c.Development.LogPlaintextCodes = true
			c.ProductionMode = true
		}},
		{"rate_limits_disabled", LintHigh, func(c *Config) { c.RateLimit.Enabled = false }},
		{"verify_budget_high", LintWarn, func(c *Config) { c.RateLimit.CodeVerify.Points = 50 }},
		{"code_ttl_long", LintWarn, func(c *Config) { c.Code.TTL = time.Hour }},
		{"max_attempts_high", LintWarn, func(c *Config) { c.Code.MaxAttempts = 20 }},
		{"bcrypt_cost_low", LintWarn, func(c *Config) { c.Code.BcryptCost = 6 }},
		{"session_ttl_long", LintWarn, func(c *Config) { c.Session.TTL = 60 * 24 * time.Hour }},
		{"leeway_large", LintWarn, func(c *Config) { c.Session.Leeway = 90 * time.Second }},
		{"session_issuer_empty", LintInfo, func(c *Config) { c.Session.Issuer = "" }},
		{"federated_unverified_email", LintWarn, func(c *Config) { c.Federated.Enabled = true }},
		{"sweep_disabled", LintInfo, func(c *Config) { c.Sweep.Interval = 0 }},
		{"audit_drop_if_full", LintInfo, func(c *Config) { c.Audit.Enabled = true }},
		{"audit_disabled_in_production", LintWarn, func(c *Config) { c.ProductionMode = true }},
	}

	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			var found *LintWarning
			for _, w := range cfg.Lint() {
				if w.Code == tc.code {
					found = &w
					break
				}
			}
			if found == nil {
				t.Fatalf("expected %q warning", tc.code)
			}
			if found.Severity != tc.severity {
				t.Fatalf("%q severity=%v want %v", tc.code, found.Severity, tc.severity)
			}
		})
	}
}

func TestLintResultAtLeast(t *testing.T) {
	r := LintResult{
		{Code: "a", Severity: LintInfo},
		{Code: "b", Severity: LintWarn},
		{Code: "c", Severity: LintHigh},
	}
	if got := r.AtLeast(LintWarn).Codes(); !slices.Equal(got, []string{"b", "c"}) {
		t.Fatalf("AtLeast(warn)=%v", got)
	}
	if LintHigh.String() != "high" || LintSeverity(9).String() != "unknown" {
		t.Fatalf("unexpected severity strings")
	}
}
