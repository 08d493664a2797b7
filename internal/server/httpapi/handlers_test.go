package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	goOTC "github.com/MrEthical07/goOTC"
	"github.com/MrEthical07/goOTC/dispatch"
	"github.com/MrEthical07/goOTC/federated"
	"github.com/MrEthical07/goOTC/logging"
	"github.com/MrEthical07/goOTC/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type assertionVerifier struct{}

func (assertionVerifier) Verify(_ context.Context, assertion string) (federated.Identity, error) {
	if assertion != "good-assertion" {
		return federated.Identity{}, federated.ErrInvalidAssertion
	}
	return federated.Identity{
		Email:         "grace@example.com",
		Name:          "Grace",
		SubjectID:     "sub-42",
		EmailVerified: true,
	}, nil
}

type apiFixture struct {
	server *httptest.Server
	client *http.Client

	mu    sync.Mutex
	codes map[string]string
}

func (f *apiFixture) lastCode(email string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.codes[email]
}

func newAPIFixture(t *testing.T, mutate func(*Options)) *apiFixture {
	t.Helper()

	f := &apiFixture{codes: map[string]string{}}

	cfg := goOTC.DefaultConfig()
	cfg.Session.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Code.BcryptCost = 4

	engine, err := goOTC.New().
		WithConfig(cfg).
		WithCodeStore(memory.NewCodeStore()).
		WithIdentityStore(memory.NewIdentityStore()).
		WithDispatcher(dispatch.Func(func(_ context.Context, email, code string) error {
			f.mu.Lock()
			f.codes[email] = code
			f.mu.Unlock()
			return nil
		})).
		WithFederatedVerifier(assertionVerifier{}).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	opts := Options{
		Cookie:        CookieConfig{Name: "access_token"},
		ClientOrigins: []string{"http://localhost:5173"},
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "metrics")
		}),
		MetricsPath: "/metrics",
	}
	if mutate != nil {
		mutate(&opts)
	}

	f.server = httptest.NewServer(New(engine, opts))
	t.Cleanup(f.server.Close)
	f.client = f.server.Client()
	return f
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, mutate func(*http.Request)) *http.Response {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, f.server.URL+path, r)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if mutate != nil {
		mutate(req)
	}

	resp, err := f.client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == "access_token" {
			return c
		}
	}
	return nil
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t, nil)

	resp := f.do(t, http.MethodGet, "/api/health", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decode(t, resp)["status"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestNotFound(t *testing.T) {
	f := newAPIFixture(t, nil)

	resp := f.do(t, http.MethodGet, "/api/nope", nil, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func TestCodeLoginFlow(t *testing.T) {
	f := newAPIFixture(t, nil)

	resp := f.do(t, http.MethodPost, "/api/auth/request-otp", map[string]string{"email": "Ada@Example.com"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "OTP sent successfully", data["message"])
	assert.NotContains(t, data, "code")

	code := f.lastCode("ada@example.com")
	require.Len(t, code, 6)

	resp = f.do(t, http.MethodPost, "/api/auth/verify-otp", map[string]string{"email": "ada@example.com", "otp": code}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cookie := sessionCookie(resp)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.False(t, cookie.Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, int((7 * 24 * time.Hour).Seconds()), cookie.MaxAge)

	body = decode(t, resp)
	user := body["data"].(map[string]any)["user"].(map[string]any)
	assert.Equal(t, "ada@example.com", user["email"])
	assert.Equal(t, "code", user["provider"])

	resp = f.do(t, http.MethodGet, "/api/auth/me", nil, func(r *http.Request) { r.AddCookie(cookie) })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	me := decode(t, resp)["data"].(map[string]any)["user"].(map[string]any)
	assert.Equal(t, user["id"], me["id"])

	resp = f.do(t, http.MethodPost, "/api/auth/verify-otp", map[string]string{"email": "ada@example.com", "otp": code}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, string(goOTC.KindCodeExpiredOrAbsent), decode(t, resp)["code"])
}

func TestVerifyWrongCode(t *testing.T) {
	f := newAPIFixture(t, nil)

	resp := f.do(t, http.MethodPost, "/api/auth/request-otp", map[string]string{"email": "ada@example.com"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	wrong := "000000"
	if f.lastCode("ada@example.com") == wrong {
		wrong = "111111"
	}
	resp = f.do(t, http.MethodPost, "/api/auth/verify-otp", map[string]string{"email": "ada@example.com", "otp": wrong}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, string(goOTC.KindCodeInvalid), body["code"])
	assert.Equal(t, "Invalid code", body["message"])
}

func TestMeUsesBearerHeader(t *testing.T) {
	f := newAPIFixture(t, nil)

	resp := f.do(t, http.MethodPost, "/api/auth/google", map[string]string{"idToken": "good-assertion"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := decode(t, resp)["data"].(map[string]any)
	token, _ := data["token"].(string)
	require.NotEmpty(t, token)
	assert.Equal(t, "federated", data["user"].(map[string]any)["provider"])

	resp = f.do(t, http.MethodGet, "/api/auth/me", nil, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	user := decode(t, resp)["data"].(map[string]any)["user"].(map[string]any)
	assert.Equal(t, "grace@example.com", user["email"])
	assert.Equal(t, "Grace", user["name"])
}

func TestMeWithoutToken(t *testing.T) {
	f := newAPIFixture(t, nil)

	resp := f.do(t, http.MethodGet, "/api/auth/me", nil, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "TOKEN_MISSING", decode(t, resp)["code"])
}

func TestFederatedInvalid(t *testing.T) {
	f := newAPIFixture(t, nil)

	resp := f.do(t, http.MethodPost, "/api/auth/google", map[string]string{"idToken": "forged"}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, string(goOTC.KindInvalidAssertion), decode(t, resp)["code"])
	assert.Nil(t, sessionCookie(resp))
}

func TestValidationErrors(t *testing.T) {
	f := newAPIFixture(t, nil)

	resp := f.do(t, http.MethodPost, "/api/auth/request-otp", map[string]string{"email": "not-an-email"}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, string(goOTC.KindInvalidInput), decode(t, resp)["code"])

	req, err := http.NewRequest(http.MethodPost, f.server.URL+"/api/auth/request-otp", strings.NewReader("{"))
	require.NoError(t, err)
	raw, err := f.client.Do(req)
	require.NoError(t, err)
	defer raw.Body.Close()
	require.Equal(t, http.StatusBadRequest, raw.StatusCode)
	assert.Equal(t, "Validation failed", decode(t, raw)["message"])
}

func TestRequestCodeRateLimited(t *testing.T) {
	f := newAPIFixture(t, nil)

	for i := 0; i < 5; i++ {
		resp := f.do(t, http.MethodPost, "/api/auth/request-otp", map[string]string{"email": "ada@example.com"}, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, "request %d", i+1)
	}

	resp := f.do(t, http.MethodPost, "/api/auth/request-otp", map[string]string{"email": "ada@example.com"}, nil)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, string(goOTC.KindRateLimited), body["code"])
	assert.Equal(t, "Too many requests", body["message"])
}

func TestRateLimitKeyFromProxyHeader(t *testing.T) {
	f := newAPIFixture(t, func(o *Options) { o.TrustProxy = true })

	for i := 0; i < 5; i++ {
		resp := f.do(t, http.MethodPost, "/api/auth/request-otp", map[string]string{"email": "ada@example.com"}, func(r *http.Request) {
			r.Header.Set("X-Forwarded-For", "10.0.0.1, 203.0.113.1")
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp := f.do(t, http.MethodPost, "/api/auth/request-otp", map[string]string{"email": "ada@example.com"}, func(r *http.Request) {
		r.Header.Set("X-Forwarded-For", "203.0.113.2")
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, "a different forwarded address has its own budget")
}

func TestRateLimitIgnoresClientSuppliedForwardedPrefix(t *testing.T) {
	f := newAPIFixture(t, func(o *Options) { o.TrustProxy = true })

	for i := 0; i < 5; i++ {
		spoofed := fmt.Sprintf("198.51.100.%d, 203.0.113.5", i+1)
		resp := f.do(t, http.MethodPost, "/api/auth/request-otp", map[string]string{"email": "ada@example.com"}, func(r *http.Request) {
			r.Header.Set("X-Forwarded-For", spoofed)
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, "request %d", i+1)
	}

	resp := f.do(t, http.MethodPost, "/api/auth/request-otp", map[string]string{"email": "ada@example.com"}, func(r *http.Request) {
		r.Header.Set("X-Forwarded-For", "198.51.100.99, 203.0.113.5")
	})
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode, "rotating the leftmost entry must not reset the budget")
}

func TestLogoutClearsCookie(t *testing.T) {
	f := newAPIFixture(t, nil)

	resp := f.do(t, http.MethodPost, "/api/auth/logout", nil, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	cookie := sessionCookie(resp)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.Less(t, cookie.MaxAge, 0)
}

func TestSecureCookie(t *testing.T) {
	f := newAPIFixture(t, func(o *Options) { o.Cookie.Secure = true })

	resp := f.do(t, http.MethodPost, "/api/auth/google", map[string]string{"idToken": "good-assertion"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cookie := sessionCookie(resp)
	require.NotNil(t, cookie)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteNoneMode, cookie.SameSite)
}

func TestCORS(t *testing.T) {
	f := newAPIFixture(t, nil)

	resp := f.do(t, http.MethodOptions, "/api/auth/request-otp", nil, func(r *http.Request) {
		r.Header.Set("Origin", "http://localhost:5173")
		r.Header.Set("Access-Control-Request-Method", http.MethodPost)
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), "Authorization")

	resp = f.do(t, http.MethodOptions, "/api/auth/request-otp", nil, func(r *http.Request) {
		r.Header.Set("Origin", "https://evil.example")
	})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))

	resp = f.do(t, http.MethodGet, "/api/health", nil, func(r *http.Request) {
		r.Header.Set("Origin", "https://evil.example")
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestMetricsMounted(t *testing.T) {
	f := newAPIFixture(t, nil)

	resp := f.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "metrics", string(b))
}

func TestRecoverWritesEnvelope(t *testing.T) {
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), WithRequestID, WithRecover(logging.Nop()))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/x", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, string(goOTC.KindInternal), body["code"])
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.7:5555"
	r.Header.Set("X-Forwarded-For", "203.0.113.9")

	assert.Equal(t, "192.0.2.7", clientIP(r, false))
	assert.Equal(t, "203.0.113.9", clientIP(r, true))

	r.Header.Set("X-Forwarded-For", "1.2.3.4, 203.0.113.9 ")
	assert.Equal(t, "203.0.113.9", clientIP(r, true))

	r.Header.Set("X-Forwarded-For", "1.2.3.4")
	r.Header.Add("X-Forwarded-For", "203.0.113.11,")
	assert.Equal(t, "203.0.113.11", clientIP(r, true))

	r.Header.Del("X-Forwarded-For")
	r.Header.Set("X-Real-Ip", "203.0.113.10")
	assert.Equal(t, "203.0.113.10", clientIP(r, true))
}
