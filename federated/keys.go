package federated

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

var (
	ErrUnknownKey      = errors.New("federated: unknown signing key")
	ErrKeysUnavailable = errors.New("federated: signing keys unavailable")
)

// KeySource resolves a verification key by kid.
type KeySource interface {
	Key(ctx context.Context, kid string) (crypto.PublicKey, error)
}

// StaticKeys is a fixed kid to key map. When it holds exactly one key an
// empty kid resolves to it.
type StaticKeys map[string]crypto.PublicKey

func (s StaticKeys) Key(_ context.Context, kid string) (crypto.PublicKey, error) {
	if key, ok := s[kid]; ok {
		return key, nil
	}
	if kid == "" && len(s) == 1 {
		for _, key := range s {
			return key, nil
		}
	}
	return nil, ErrUnknownKey
}

const (
	defaultJWKSTTL         = time.Hour
	defaultMinRefresh      = time.Minute
	maxJWKSDocumentBytes   = 1 << 20
	defaultJWKSHTTPTimeout = 10 * time.Second
)

// JWKS fetches and caches a provider's JSON Web Key Set.
type JWKS struct {
	url        string
	client     *http.Client
	ttl        time.Duration
	minRefresh time.Duration
	now        func() time.Time

	group singleflight.Group

	mu        sync.RWMutex
	keys      map[string]crypto.PublicKey
	fetchedAt time.Time
}

type JWKSOption func(*JWKS)

func WithHTTPClient(c *http.Client) JWKSOption {
	return func(j *JWKS) {
		if c != nil {
			j.client = c
		}
	}
}

// WithCacheTTL sets how long a fetched key set is trusted.
func WithCacheTTL(ttl time.Duration) JWKSOption {
	return func(j *JWKS) {
		if ttl > 0 {
			j.ttl = ttl
		}
	}
}

// WithMinRefreshInterval bounds how often an unknown kid can trigger a refetch.
func WithMinRefreshInterval(d time.Duration) JWKSOption {
	return func(j *JWKS) {
		if d >= 0 {
			j.minRefresh = d
		}
	}
}

func WithJWKSClock(now func() time.Time) JWKSOption {
	return func(j *JWKS) {
		if now != nil {
			j.now = now
		}
	}
}

func NewJWKS(url string, opts ...JWKSOption) *JWKS {
	j := &JWKS{
		url:        url,
		client:     &http.Client{Timeout: defaultJWKSHTTPTimeout},
		ttl:        defaultJWKSTTL,
		minRefresh: defaultMinRefresh,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

func (j *JWKS) Key(ctx context.Context, kid string) (crypto.PublicKey, error) {
	key, fresh, lastFetch := j.lookup(kid)
	if key != nil && fresh {
		return key, nil
	}
	if key == nil && !lastFetch.IsZero() && j.now().Sub(lastFetch) < j.minRefresh && fresh {
		return nil, ErrUnknownKey
	}

	if err := j.refresh(ctx); err != nil {
		if key != nil {
			// serve the stale key while the provider is unreachable
			return key, nil
		}
		return nil, err
	}

	key, _, _ = j.lookup(kid)
	if key == nil {
		return nil, ErrUnknownKey
	}
	return key, nil
}

func (j *JWKS) lookup(kid string) (crypto.PublicKey, bool, time.Time) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	fresh := !j.fetchedAt.IsZero() && j.now().Sub(j.fetchedAt) < j.ttl
	key := j.keys[kid]
	if key == nil && kid == "" && len(j.keys) == 1 {
		for _, k := range j.keys {
			key = k
		}
	}
	return key, fresh, j.fetchedAt
}

func (j *JWKS) refresh(ctx context.Context) error {
	_, err, _ := j.group.Do("jwks", func() (interface{}, error) {
		keys, err := j.fetch(ctx)
		if err != nil {
			return nil, err
		}
		j.mu.Lock()
		j.keys = keys
		j.fetchedAt = j.now()
		j.mu.Unlock()
		return nil, nil
	})
	return err
}

func (j *JWKS) fetch(ctx context.Context) (map[string]crypto.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeysUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := j.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeysUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrKeysUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeysUnavailable, err)
	}
	keys, err := ParseJWKS(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeysUnavailable, err)
	}
	return keys, nil
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

// ParseJWKS decodes a JWK Set document. Keys not meant for signatures and
// unsupported key types are skipped.
func ParseJWKS(data []byte) (map[string]crypto.PublicKey, error) {
	var doc struct {
		Keys []jwk `json:"keys"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	out := make(map[string]crypto.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Use != "" && k.Use != "sig" {
			continue
		}
		var (
			key crypto.PublicKey
			err error
		)
		switch k.Kty {
		case "RSA":
			key, err = k.rsaKey()
		case "EC":
			key, err = k.ecKey()
		default:
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("jwk %q: %w", k.Kid, err)
		}
		out[k.Kid] = key
	}
	if len(out) == 0 {
		return nil, errors.New("jwks contains no usable keys")
	}
	return out, nil
}

func (k jwk) rsaKey() (*rsa.PublicKey, error) {
	n, err := decodeBigInt(k.N)
	if err != nil {
		return nil, err
	}
	e, err := decodeBigInt(k.E)
	if err != nil {
		return nil, err
	}
	if n.BitLen() < 2048 {
		return nil, errors.New("rsa modulus too small")
	}
	if !e.IsInt64() || e.Int64() < 3 || e.Int64() > 1<<31-1 {
		return nil, errors.New("invalid rsa exponent")
	}
	return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
}

func (k jwk) ecKey() (*ecdsa.PublicKey, error) {
	var curve elliptic.Curve
	switch k.Crv {
	case "P-256":
		curve = elliptic.P256()
	case "P-384":
		curve = elliptic.P384()
	default:
		return nil, fmt.Errorf("unsupported curve %q", k.Crv)
	}
	x, err := decodeBigInt(k.X)
	if err != nil {
		return nil, err
	}
	y, err := decodeBigInt(k.Y)
	if err != nil {
		return nil, err
	}
	if !curve.IsOnCurve(x, y) {
		return nil, errors.New("ec point not on curve")
	}
	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
}

func decodeBigInt(s string) (*big.Int, error) {
	if s == "" {
		return nil, errors.New("missing key parameter")
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(raw), nil
}
