package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	goOTC "github.com/MrEthical07/goOTC"
)

// DefaultCookieName is the cookie the server sets on login.
const DefaultCookieName = "access_token"

// Error codes written by the default error handler.
const (
	CodeTokenMissing = "TOKEN_MISSING"
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeTokenInvalid = "TOKEN_INVALID"
)

type sessionContextKey struct{}
type tokenContextKey struct{}

// SessionFromContext returns the session injected by RequireSession.
func SessionFromContext(ctx context.Context) (*goOTC.Session, bool) {
	s, ok := ctx.Value(sessionContextKey{}).(*goOTC.Session)
	return s, ok && s != nil
}

// TokenFromContext returns the raw token injected by RequireSession.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenContextKey{}).(string)
	return token, ok && token != ""
}

// ErrorHandler writes the response for a rejected request. err wraps one of
// goOTC.ErrSessionMissing, goOTC.ErrSessionExpired or goOTC.ErrSessionInvalid
// unless the engine itself failed.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

type options struct {
	cookieName string
	onError    ErrorHandler
}

type Option func(*options)

// WithCookieName changes the cookie searched before the Authorization
// header. An empty name disables the cookie lookup.
func WithCookieName(name string) Option {
	return func(o *options) {
		o.cookieName = name
	}
}

// WithErrorHandler replaces the default JSON error response.
func WithErrorHandler(h ErrorHandler) Option {
	return func(o *options) {
		if h != nil {
			o.onError = h
		}
	}
}

// RequireSession rejects requests without a valid session token.
func RequireSession(engine *goOTC.Engine, opts ...Option) func(http.Handler) http.Handler {
	o := options{cookieName: DefaultCookieName, onError: WriteError}
	for _, opt := range opts {
		opt(&o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				o.onError(w, r, goOTC.ErrEngineNotReady)
				return
			}

			token, ok := requestToken(r, o.cookieName)
			if !ok {
				o.onError(w, r, goOTC.ErrSessionMissing)
				return
			}

			session, err := engine.ValidateSession(token)
			if err != nil {
				o.onError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey{}, session)
			ctx = context.WithValue(ctx, tokenContextKey{}, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WriteError is the default ErrorHandler. It writes
// {"success":false,"message":...,"code":...} with the status of err.
func WriteError(w http.ResponseWriter, _ *http.Request, err error) {
	status := http.StatusUnauthorized
	message, code := goOTC.MessageOf(err), string(goOTC.KindOf(err))

	switch {
	case errors.Is(err, goOTC.ErrSessionMissing):
		code = CodeTokenMissing
	case errors.Is(err, goOTC.ErrSessionExpired):
		code = CodeTokenExpired
	case errors.Is(err, goOTC.ErrSessionInvalid):
		code = CodeTokenInvalid
	default:
		status = goOTC.HTTPStatus(err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Code    string `json:"code"`
	}{false, message, code})
}

// requestToken prefers the cookie over the Authorization header.
func requestToken(r *http.Request, cookieName string) (string, bool) {
	if cookieName != "" {
		if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
			return c.Value, true
		}
	}
	return bearerToken(r.Header.Get("Authorization"))
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
