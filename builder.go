package goOTC

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MrEthical07/goOTC/codehash"
	"github.com/MrEthical07/goOTC/federated"
	"github.com/MrEthical07/goOTC/internal/audit"
	"github.com/MrEthical07/goOTC/internal/limiters"
	"github.com/MrEthical07/goOTC/internal/otc"
	"github.com/MrEthical07/goOTC/jwt"
	"github.com/MrEthical07/goOTC/logging"
	"github.com/MrEthical07/goOTC/store"
)

// Dispatcher delivers a plaintext code. See package dispatch for
// implementations.
type Dispatcher interface {
	SendCode(ctx context.Context, email, code string) error
}

// FederatedVerifier verifies identity assertions. *federated.Verifier
// implements it.
type FederatedVerifier interface {
	Verify(ctx context.Context, assertion string) (federated.Identity, error)
}

// Builder assembles an Engine. A Builder can be used once.
type Builder struct {
	config Config

	codes      store.CodeStore
	identities store.IdentityStore
	dispatcher Dispatcher
	verifier   FederatedVerifier
	hasher     codehash.Hasher
	httpClient *http.Client

	logger    logging.Logger
	auditSink AuditSink
	clock     func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

func (b *Builder) WithCodeStore(s store.CodeStore) *Builder {
	b.codes = s
	return b
}

func (b *Builder) WithIdentityStore(s store.IdentityStore) *Builder {
	b.identities = s
	return b
}

func (b *Builder) WithDispatcher(d Dispatcher) *Builder {
	b.dispatcher = d
	return b
}

// WithFederatedVerifier supplies the assertion verifier and enables
// FederatedLogin regardless of Config.Federated.Enabled.
func (b *Builder) WithFederatedVerifier(v FederatedVerifier) *Builder {
	b.verifier = v
	return b
}

// WithHasher overrides the hasher selected by Config.Code.
func (b *Builder) WithHasher(h codehash.Hasher) *Builder {
	b.hasher = h
	return b
}

// WithHTTPClient sets the client used to fetch the provider's JWKS.
func (b *Builder) WithHTTPClient(c *http.Client) *Builder {
	b.httpClient = c
	return b
}

func (b *Builder) WithLogger(l logging.Logger) *Builder {
	b.logger = l
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides time.Now for every time-dependent component.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.codes == nil {
		return nil, errors.New("code store required")
	}
	if b.identities == nil {
		return nil, errors.New("identity store required")
	}
	if b.dispatcher == nil {
		return nil, errors.New("dispatcher required")
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.With("component", "goOTC")

	// -------- CODE SERVICE --------
	hasher := b.hasher
	if hasher == nil {
		h, err := codehash.New(codehash.Config{
			Algorithm:  cfg.Code.HashAlgorithm,
			BcryptCost: cfg.Code.BcryptCost,
			Argon2:     cfg.Code.Argon2,
		})
		if err != nil {
			return nil, err
		}
		hasher = h
	}

	codes, err := otc.NewService(otc.Config{
		TTL:               cfg.Code.TTL,
		MaxAttempts:       cfg.Code.MaxAttempts,
		LogPlaintextCodes: cfg.Development.LogPlaintextCodes,
		ProductionMode:    cfg.ProductionMode,
	}, b.codes, hasher, b.dispatcher, otc.WithClock(clock), otc.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	// -------- SESSIONS --------
	sessions, err := jwt.NewManager(jwt.Config{
		TTL:           cfg.Session.TTL,
		SigningMethod: jwt.SigningMethod(cfg.Session.SigningMethod),
		PrivateKey:    cloneBytes(cfg.Session.PrivateKey),
		PublicKey:     cloneBytes(cfg.Session.PublicKey),
		Issuer:        cfg.Session.Issuer,
		Audience:      cfg.Session.Audience,
		Leeway:        cfg.Session.Leeway,
		KeyID:         cfg.Session.KeyID,
		VerifyKeys:    cfg.Session.VerifyKeys,
		Now:           clock,
	})
	if err != nil {
		return nil, err
	}

	// -------- FEDERATED --------
	verifier := b.verifier
	if verifier == nil && cfg.Federated.Enabled {
		keys := federated.NewJWKS(cfg.Federated.JWKSURL,
			federated.WithHTTPClient(b.httpClient),
			federated.WithCacheTTL(cfg.Federated.JWKSCacheTTL),
			federated.WithJWKSClock(clock),
		)
		v, err := federated.NewVerifier(federated.Config{
			Audience:             cfg.Federated.Audience,
			Issuers:              cfg.Federated.Issuers,
			RequireVerifiedEmail: cfg.Federated.RequireVerifiedEmail,
			Leeway:               cfg.Federated.Leeway,
			Now:                  clock,
		}, keys)
		if err != nil {
			return nil, err
		}
		verifier = v
	}

	engine := &Engine{
		config:     cfg,
		codeStore:  b.codes,
		identities: b.identities,
		codes:      codes,
		sessions:   sessions,
		verifier:   verifier,
		log:        logger,
		clock:      clock,
		metrics:    NewMetrics(cfg.Metrics),
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
	}
	if cfg.RateLimit.Enabled {
		engine.limiters = limiters.NewAuthLimiters(limiters.AuthConfig{
			Auth:        limiters.Window(cfg.RateLimit.Auth),
			CodeRequest: limiters.Window(cfg.RateLimit.CodeRequest),
			CodeVerify:  limiters.Window(cfg.RateLimit.CodeVerify),
		}, clock)
	}
	engine.deps = engine.flowDeps()

	b.built = true
	logger.Info(context.Background(), "engine built",
		"rate_limits", cfg.RateLimit.Enabled,
		"federated", verifier != nil,
		"hash", cfg.Code.HashAlgorithm,
		"production", cfg.ProductionMode,
	)
	return engine, nil
}
