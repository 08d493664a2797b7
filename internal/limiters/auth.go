package limiters

import (
	"errors"
	"time"

	"github.com/MrEthical07/goOTC/internal/rate"
)

var (
	ErrAuthRateLimited        = errors.New("auth rate limited")
	ErrCodeRequestRateLimited = errors.New("code request rate limited")
	ErrCodeVerifyRateLimited  = errors.New("code verify rate limited")
)

// UnknownClient is the key used when the caller's address is not known.
const UnknownClient = "unknown"

type Window struct {
	Points int
	Window time.Duration
}

type AuthConfig struct {
	Auth        Window
	CodeRequest Window
	CodeVerify  Window
}

// DefaultAuthConfig returns the 20/5/3 per hour policy.
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		Auth:        Window{Points: 20, Window: time.Hour},
		CodeRequest: Window{Points: 5, Window: time.Hour},
		CodeVerify:  Window{Points: 3, Window: time.Hour},
	}
}

type AuthLimiters struct {
	auth        *rate.Limiter
	codeRequest *rate.Limiter
	codeVerify  *rate.Limiter
}

func NewAuthLimiters(cfg AuthConfig, now func() time.Time) *AuthLimiters {
	return &AuthLimiters{
		auth:        rate.New(rate.Config{Points: cfg.Auth.Points, Window: cfg.Auth.Window}, now),
		codeRequest: rate.New(rate.Config{Points: cfg.CodeRequest.Points, Window: cfg.CodeRequest.Window}, now),
		codeVerify:  rate.New(rate.Config{Points: cfg.CodeVerify.Points, Window: cfg.CodeVerify.Window}, now),
	}
}

// CheckAuth gates any entry point on the general auth budget.
func (l *AuthLimiters) CheckAuth(ip string) error {
	if l == nil {
		return nil
	}
	return check(l.auth, ip, ErrAuthRateLimited)
}

// CheckCodeRequest applies the auth budget, then the code request budget.
func (l *AuthLimiters) CheckCodeRequest(ip string) error {
	if l == nil {
		return nil
	}
	if err := l.CheckAuth(ip); err != nil {
		return err
	}
	return check(l.codeRequest, ip, ErrCodeRequestRateLimited)
}

// CheckCodeVerify applies the auth budget, then the code verify budget.
func (l *AuthLimiters) CheckCodeVerify(ip string) error {
	if l == nil {
		return nil
	}
	if err := l.CheckAuth(ip); err != nil {
		return err
	}
	return check(l.codeVerify, ip, ErrCodeVerifyRateLimited)
}

// Prune drops elapsed windows from every limiter.
func (l *AuthLimiters) Prune() int {
	if l == nil {
		return 0
	}
	return l.auth.Prune() + l.codeRequest.Prune() + l.codeVerify.Prune()
}

func check(limiter *rate.Limiter, ip string, denied error) error {
	err := limiter.Check(clientKey(ip))
	if errors.Is(err, rate.ErrRateLimited) {
		return denied
	}
	return err
}

func clientKey(ip string) string {
	if ip == "" {
		return UnknownClient
	}
	return ip
}
