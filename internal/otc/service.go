// Package otc owns the one-time code lifecycle: issue, verify and sweep.
//
// A code is a uniformly random six digit secret. Only its salted hash is
// persisted; the plaintext exists in memory between generation and dispatch.
// Every issue and every successful verification purges all codes for the
// email, so at most one code is ever authoritative.
//
// # What this package must NOT do
//
//   - Rate limit callers; flow functions gate entry before calling in.
//   - Import goOTC or map errors to public kinds.
package otc

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/MrEthical07/goOTC/codehash"
	"github.com/MrEthical07/goOTC/internal"
	"github.com/MrEthical07/goOTC/logging"
	"github.com/MrEthical07/goOTC/store"
	"github.com/google/uuid"
)

const (
	CodeDigits         = 6
	DefaultTTL         = 10 * time.Minute
	DefaultMaxAttempts = 5
	maxEmailLength     = 254
)

var (
	ErrInvalidEmail        = errors.New("invalid email")
	ErrCodeExpiredOrAbsent = errors.New("code expired or absent")
	ErrCodeInvalid         = errors.New("code invalid")
	ErrMaxAttempts         = errors.New("max attempts exceeded")
	ErrDeliveryFailed      = errors.New("code delivery failed")
	ErrStoreUnavailable    = errors.New("code store unavailable")
	ErrHashFailed          = errors.New("code hashing failed")
)

// Dispatcher delivers a plaintext code to its owner.
type Dispatcher interface {
	SendCode(ctx context.Context, email, code string) error
}

type Config struct {
	TTL         time.Duration
	MaxAttempts int

	// LogPlaintextCodes logs each issued code at debug level. Ignored when
	// ProductionMode is set.
	LogPlaintextCodes bool
	ProductionMode    bool
}

// Issued describes a freshly stored code. It never carries the plaintext.
type Issued struct {
	CodeID    string
	Email     string
	ExpiresAt time.Time
}

// Verified describes a consumed code.
type Verified struct {
	CodeID string
	Email  string
}

type Service struct {
	codes        store.CodeStore
	hasher       codehash.Hasher
	dispatcher   Dispatcher
	log          logging.Logger
	now          func() time.Time
	generate     func() (string, error)
	ttl          time.Duration
	maxAttempts  int
	logPlaintext bool
}

type Option func(*Service)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithGenerator overrides code generation. Tests only.
func WithGenerator(gen func() (string, error)) Option {
	return func(s *Service) {
		if gen != nil {
			s.generate = gen
		}
	}
}

func NewService(cfg Config, codes store.CodeStore, hasher codehash.Hasher, dispatcher Dispatcher, opts ...Option) (*Service, error) {
	if codes == nil {
		return nil, errors.New("otc: code store required")
	}
	if hasher == nil {
		return nil, errors.New("otc: hasher required")
	}
	if dispatcher == nil {
		return nil, errors.New("otc: dispatcher required")
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.TTL < 0 || cfg.MaxAttempts < 0 {
		return nil, errors.New("otc: ttl and max attempts must be positive")
	}

	s := &Service{
		codes:        codes,
		hasher:       hasher,
		dispatcher:   dispatcher,
		log:          logging.Nop(),
		now:          time.Now,
		generate:     func() (string, error) { return internal.NewNumericCode(CodeDigits) },
		ttl:          cfg.TTL,
		maxAttempts:  cfg.MaxAttempts,
		logPlaintext: cfg.LogPlaintextCodes && !cfg.ProductionMode,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "otc")
	return s, nil
}

// Issue replaces every code for email with a fresh one and dispatches it.
//
// When dispatch fails the code stays stored and Issue returns the Issued
// record together with an error wrapping ErrDeliveryFailed.
func (s *Service) Issue(ctx context.Context, email string) (Issued, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return Issued{}, err
	}

	if _, err := s.codes.DeleteByEmail(ctx, email); err != nil {
		return Issued{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	plaintext, err := s.generate()
	if err != nil {
		return Issued{}, fmt.Errorf("%w: %v", ErrHashFailed, err)
	}
	hash, err := s.hasher.Hash(plaintext)
	if err != nil {
		return Issued{}, fmt.Errorf("%w: %v", ErrHashFailed, err)
	}

	now := s.now()
	record := store.Code{
		ID:          uuid.NewString(),
		Email:       email,
		SecretHash:  hash,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
		Attempts:    0,
		MaxAttempts: s.maxAttempts,
	}
	if err := s.codes.Create(ctx, record); err != nil {
		return Issued{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	issued := Issued{CodeID: record.ID, Email: email, ExpiresAt: record.ExpiresAt}

	if s.logPlaintext {
		s.log.Debug(ctx, "one-time code issued", "email", email, "code", plaintext, "expires_at", record.ExpiresAt)
	}

	if err := s.dispatcher.SendCode(ctx, email, plaintext); err != nil {
		s.log.Error(ctx, "code dispatch failed", "email", email, "code_id", record.ID, "err", err)
		return issued, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return issued, nil
}

// Verify checks candidate against the latest valid code for email.
func (s *Service) Verify(ctx context.Context, email, candidate string) (Verified, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return Verified{}, err
	}

	record, err := s.codes.FindLatestValid(ctx, email, s.now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Verified{}, ErrCodeExpiredOrAbsent
		}
		return Verified{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if record.Attempts >= record.MaxAttempts {
		if err := s.purge(ctx, email); err != nil {
			return Verified{}, err
		}
		return Verified{}, ErrMaxAttempts
	}

	match := false
	candidate = strings.TrimSpace(candidate)
	if internal.IsNumericCode(candidate, CodeDigits) {
		match, err = s.hasher.Verify(candidate, record.SecretHash)
		if err != nil {
			return Verified{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	if !match {
		attempts, err := s.codes.IncrementAttempts(ctx, record.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return Verified{}, ErrCodeExpiredOrAbsent
			}
			return Verified{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if attempts >= record.MaxAttempts {
			if err := s.purge(ctx, email); err != nil {
				return Verified{}, err
			}
			return Verified{}, ErrMaxAttempts
		}
		return Verified{}, ErrCodeInvalid
	}

	if err := s.purge(ctx, email); err != nil {
		return Verified{}, err
	}
	return Verified{CodeID: record.ID, Email: email}, nil
}

// SweepExpired deletes every code whose expiry has passed.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	n, err := s.codes.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if n > 0 {
		s.log.Info(ctx, "expired codes swept", "count", n)
	}
	return n, nil
}

func (s *Service) purge(ctx context.Context, email string) error {
	if _, err := s.codes.DeleteByEmail(ctx, email); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// NormalizeEmail lower-cases and trims email, then checks it is a bare
// RFC 5322 address.
func NormalizeEmail(email string) (string, error) {
	email = store.NormalizeEmail(email)
	if email == "" || len(email) > maxEmailLength {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || strings.ToLower(addr.Address) != email {
		return "", ErrInvalidEmail
	}
	if !strings.Contains(email[strings.LastIndexByte(email, '@')+1:], ".") {
		return "", ErrInvalidEmail
	}
	return email, nil
}
