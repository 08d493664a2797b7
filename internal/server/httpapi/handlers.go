// Package httpapi exposes the Engine as the JSON API served by otc-server.
//
// Every response uses the envelope {"success":true,"data":...} or
// {"success":false,"message":...,"code":...}.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	goOTC "github.com/MrEthical07/goOTC"
	"github.com/MrEthical07/goOTC/logging"
	"github.com/MrEthical07/goOTC/middleware"
)

const maxBodyBytes = 64 << 10

type Options struct {
	Cookie        CookieConfig
	ClientOrigins []string
	TrustProxy    bool

	// Metrics is mounted at MetricsPath when both are set.
	Metrics     http.Handler
	MetricsPath string

	Logger logging.Logger
}

type handler struct {
	engine *goOTC.Engine
	cookie CookieConfig
	log    logging.Logger
}

// New returns the routed and wrapped API handler.
func New(engine *goOTC.Engine, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	cookie := opts.Cookie
	if cookie.Name == "" {
		cookie.Name = middleware.DefaultCookieName
	}
	if cookie.MaxAge <= 0 {
		cookie.MaxAge = 7 * 24 * time.Hour
	}

	h := &handler{engine: engine, cookie: cookie, log: logger.With("component", "httpapi")}
	requireSession := middleware.RequireSession(engine, middleware.WithCookieName(cookie.Name))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", h.health)
	mux.HandleFunc("POST /api/auth/request-otp", h.requestCode)
	mux.HandleFunc("POST /api/auth/verify-otp", h.verifyCode)
	mux.HandleFunc("POST /api/auth/google", h.federatedLogin)
	mux.Handle("GET /api/auth/me", requireSession(http.HandlerFunc(h.me)))
	mux.HandleFunc("POST /api/auth/logout", h.logout)
	if opts.Metrics != nil && opts.MetricsPath != "" {
		mux.Handle("GET "+opts.MetricsPath, opts.Metrics)
	}
	mux.HandleFunc("/", notFound)

	return Chain(mux,
		WithRequestID,
		WithClientIP(opts.TrustProxy),
		WithRecover(h.log),
		WithAccessLog(h.log),
		WithCORS(opts.ClientOrigins),
	)
}

type identityResponse struct {
	User      goOTC.IdentitySummary `json:"user"`
	Token     string                `json:"token,omitempty"`
	ExpiresAt *time.Time            `json:"expiresAt,omitempty"`
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) requestCode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	res, err := h.engine.RequestCode(r.Context(), body.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, map[string]any{
		"message":   "OTP sent successfully",
		"expiresAt": res.ExpiresAt,
	})
}

func (h *handler) verifyCode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
		Code  string `json:"otp"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	res, err := h.engine.VerifyCode(r.Context(), body.Email, body.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	h.login(w, res)
}

func (h *handler) federatedLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IDToken string `json:"idToken"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	res, err := h.engine.FederatedLogin(r.Context(), body.IDToken)
	if err != nil {
		writeError(w, err)
		return
	}
	h.login(w, res)
}

func (h *handler) login(w http.ResponseWriter, res *goOTC.LoginResult) {
	h.cookie.set(w, res.Token)
	expiresAt := res.ExpiresAt
	writeOK(w, identityResponse{User: res.Identity, Token: res.Token, ExpiresAt: &expiresAt})
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.TokenFromContext(r.Context())

	identity, err := h.engine.CurrentIdentity(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, identityResponse{User: *identity})
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.EndSession(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	h.cookie.clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeFail(w, http.StatusNotFound, "Route not found", "NOT_FOUND")
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeFail(w, http.StatusBadRequest, "Validation failed", string(goOTC.KindInvalidInput))
		return false
	}
	return true
}
