package goOTC

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/MrEthical07/goOTC/codehash"
	"github.com/MrEthical07/goOTC/federated"
	"github.com/MrEthical07/goOTC/jwt"
)

// Config is the complete Engine configuration. Start from DefaultConfig and
// override what you need; Build validates the result.
type Config struct {
	Code        CodeConfig
	RateLimit   RateLimitConfig
	Session     SessionConfig
	Federated   FederatedConfig
	Sweep       SweepConfig
	Audit       AuditConfig
	Metrics     MetricsConfig
	Development DevelopmentConfig

	// ProductionMode disables every development affordance regardless of
	// the Development section.
	ProductionMode bool
}

/*
====================================
CODE CONFIG
====================================
*/

type CodeConfig struct {
	TTL         time.Duration
	MaxAttempts int
	// HashAlgorithm is codehash.AlgorithmBcrypt (default) or codehash.AlgorithmArgon2id.
	HashAlgorithm string
	BcryptCost    int
	Argon2        codehash.Argon2Config
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateWindow allows Points requests per client address per Window.
type RateWindow struct {
	Points int
	Window time.Duration
}

type RateLimitConfig struct {
	Enabled bool
	// Auth applies to every Engine entry point.
	Auth        RateWindow
	CodeRequest RateWindow
	CodeVerify  RateWindow
}

/*
====================================
SESSION CONFIG
====================================
*/

type SessionConfig struct {
	TTL time.Duration
	// SigningMethod is "hs256" (default) or "ed25519".
	SigningMethod string
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
}

/*
====================================
FEDERATED CONFIG
====================================
*/

type FederatedConfig struct {
	Enabled  bool
	Audience string
	Issuers  []string
	// JWKSURL is fetched when no verifier is supplied to the Builder.
	JWKSURL              string
	JWKSCacheTTL         time.Duration
	RequireVerifiedEmail bool
	Leeway               time.Duration
}

/*
====================================
OPERATIONAL CONFIG
====================================
*/

type SweepConfig struct {
	// Interval is used by StartSweeper when it is passed zero.
	Interval time.Duration
}

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

type DevelopmentConfig struct {
	// LogPlaintextCodes logs each issued code at debug level. Ignored in
	// ProductionMode.
	LogPlaintextCodes bool
}

// DefaultConfig returns the baseline policy: 6 digit codes valid for ten
// minutes with five attempts, 20/5/3 per hour rate limits and seven day
// HS256 sessions. Session.PrivateKey must still be set.
func DefaultConfig() Config {
	return Config{
		Code: CodeConfig{
			TTL:           10 * time.Minute,
			MaxAttempts:   5,
			HashAlgorithm: codehash.AlgorithmBcrypt,
			BcryptCost:    codehash.DefaultBcryptCost,
			Argon2:        codehash.DefaultArgon2Config(),
		},
		RateLimit: RateLimitConfig{
			Enabled:     true,
			Auth:        RateWindow{Points: 20, Window: time.Hour},
			CodeRequest: RateWindow{Points: 5, Window: time.Hour},
			CodeVerify:  RateWindow{Points: 3, Window: time.Hour},
		},
		Session: SessionConfig{
			TTL:           jwt.DefaultTTL,
			SigningMethod: string(jwt.MethodHS256),
			Issuer:        "goOTC",
		},
		Federated: FederatedConfig{
			Issuers:      slices.Clone(federated.GoogleIssuers),
			JWKSURL:      federated.GoogleJWKSURL,
			JWKSCacheTTL: time.Hour,
		},
		Sweep: SweepConfig{
			Interval: 5 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// HighSecurityConfig tightens DefaultConfig for production deployments.
func HighSecurityConfig() Config {
	cfg := DefaultConfig()
	cfg.ProductionMode = true
	cfg.Code.TTL = 5 * time.Minute
	cfg.Code.MaxAttempts = 3
	cfg.Code.HashAlgorithm = codehash.AlgorithmArgon2id
	cfg.Session.TTL = 24 * time.Hour
	cfg.Federated.RequireVerifiedEmail = true
	cfg.Audit.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Session.PrivateKey = cloneBytes(cfg.Session.PrivateKey)
	out.Session.PublicKey = cloneBytes(cfg.Session.PublicKey)
	if cfg.Session.VerifyKeys != nil {
		out.Session.VerifyKeys = make(map[string][]byte, len(cfg.Session.VerifyKeys))
		for kid, key := range cfg.Session.VerifyKeys {
			out.Session.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	out.Federated.Issuers = slices.Clone(cfg.Federated.Issuers)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration error.
func (c *Config) Validate() error {
	// Code
	if c.Code.TTL <= 0 {
		return errors.New("Code TTL must be > 0")
	}
	if c.Code.TTL > 24*time.Hour {
		return errors.New("Code TTL must be <= 24h")
	}
	if c.Code.MaxAttempts <= 0 {
		return errors.New("Code MaxAttempts must be > 0")
	}
	switch c.Code.HashAlgorithm {
	case codehash.AlgorithmBcrypt, codehash.AlgorithmArgon2id:
	default:
		return errors.New("Code HashAlgorithm must be 'bcrypt' or 'argon2id'")
	}

	// Rate limits
	if c.RateLimit.Enabled {
		for name, w := range map[string]RateWindow{
			"Auth":        c.RateLimit.Auth,
			"CodeRequest": c.RateLimit.CodeRequest,
			"CodeVerify":  c.RateLimit.CodeVerify,
		} {
			if w.Points <= 0 {
				return fmt.Errorf("RateLimit %s Points must be > 0", name)
			}
			if w.Window <= 0 {
				return fmt.Errorf("RateLimit %s Window must be > 0", name)
			}
		}
	}

	// Session
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	switch jwt.SigningMethod(c.Session.SigningMethod) {
	case jwt.MethodHS256:
		if len(c.Session.PrivateKey) < jwt.MinSecretLength {
			return fmt.Errorf("Session PrivateKey must be at least %d bytes for hs256", jwt.MinSecretLength)
		}
	case jwt.MethodEd25519:
		if len(c.Session.PrivateKey) == 0 {
			return errors.New("ed25519 requires Session PrivateKey")
		}
	default:
		return errors.New("unsupported Session SigningMethod")
	}
	if c.Session.Leeway < 0 || c.Session.Leeway > 2*time.Minute {
		return errors.New("Session Leeway must be between 0 and 2m")
	}

	// Federated
	if c.Federated.Enabled {
		if strings.TrimSpace(c.Federated.Audience) == "" {
			return errors.New("Federated Audience required when Federated is enabled")
		}
		if len(c.Federated.Issuers) == 0 {
			return errors.New("Federated Issuers required when Federated is enabled")
		}
		if c.Federated.Leeway < 0 || c.Federated.Leeway > 5*time.Minute {
			return errors.New("Federated Leeway must be between 0 and 5m")
		}
	}

	// Operational
	if c.Sweep.Interval < 0 {
		return errors.New("Sweep Interval must be >= 0")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}
	return nil
}

/*
====================================
LINT
====================================
*/

// LintSeverity ranks lint warnings.
type LintSeverity int

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "info"
	case LintWarn:
		return "warn"
	case LintHigh:
		return "high"
	default:
		return "unknown"
	}
}

// LintWarning is a configuration that validates but is probably a mistake.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, 0, len(r))
	for _, w := range r {
		out = append(out, w.Code)
	}
	return out
}

// AtLeast filters r to warnings of at least min severity.
func (r LintResult) AtLeast(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// Lint reports risky settings that Validate accepts.
func (c *Config) Lint() LintResult {
	var ws LintResult
	add := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if c.Development.LogPlaintextCodes {
		if c.ProductionMode {
			add("plaintext_codes_ignored", LintInfo, "Development.LogPlaintextCodes is ignored in ProductionMode")
		} else {
			add("plaintext_codes_logged", LintHigh, "issued codes are written to the debug log")
		}
	}
	if !c.RateLimit.Enabled {
		add("rate_limits_disabled", LintHigh, "code requests and verifications are not rate limited")
	} else if c.RateLimit.CodeVerify.Points > 10 {
		add("verify_budget_high", LintWarn, "more than 10 verification attempts per window per client")
	}
	if c.Code.TTL > 15*time.Minute {
		add("code_ttl_long", LintWarn, "codes stay valid for more than 15 minutes")
	}
	if c.Code.MaxAttempts > 10 {
		add("max_attempts_high", LintWarn, "more than 10 attempts per code")
	}
	if c.Code.HashAlgorithm == codehash.AlgorithmBcrypt && c.Code.BcryptCost != 0 && c.Code.BcryptCost < codehash.DefaultBcryptCost {
		add("bcrypt_cost_low", LintWarn, "bcrypt cost below the default")
	}
	if c.Session.TTL > 30*24*time.Hour {
		add("session_ttl_long", LintWarn, "sessions last more than 30 days and cannot be revoked")
	}
	if c.Session.Leeway > time.Minute {
		add("leeway_large", LintWarn, "session leeway above one minute")
	}
	if c.Session.Issuer == "" {
		add("session_issuer_empty", LintInfo, "session tokens carry no issuer")
	}
	if c.Federated.Enabled && !c.Federated.RequireVerifiedEmail {
		add("federated_unverified_email", LintWarn, "federated assertions with unverified emails are accepted")
	}
	if c.Sweep.Interval == 0 {
		add("sweep_disabled", LintInfo, "expired codes rely on storage TTL only")
	}
	if c.Audit.Enabled && c.Audit.DropIfFull {
		add("audit_drop_if_full", LintInfo, "audit events are dropped when the buffer is full")
	}
	if c.ProductionMode && !c.Audit.Enabled {
		add("audit_disabled_in_production", LintWarn, "ProductionMode without audit events")
	}
	return ws
}
