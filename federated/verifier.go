package federated

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const GoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

var GoogleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

var (
	ErrInvalidAssertion = errors.New("invalid identity assertion")
	ErrEmailMissing     = errors.New("identity assertion carries no email")
	ErrEmailUnverified  = errors.New("identity assertion email not verified")
)

var supportedAlgs = []string{"RS256", "RS384", "RS512", "ES256", "ES384"}

// Identity is the verified content of an assertion.
type Identity struct {
	Email         string
	Name          string
	SubjectID     string
	Issuer        string
	EmailVerified bool
}

type Config struct {
	Audience string
	Issuers  []string
	// RequireVerifiedEmail rejects assertions whose email_verified claim is false.
	RequireVerifiedEmail bool
	Leeway               time.Duration
	Now                  func() time.Time
}

type Verifier struct {
	config Config
	keys   KeySource
}

func NewVerifier(cfg Config, keys KeySource) (*Verifier, error) {
	if strings.TrimSpace(cfg.Audience) == "" {
		return nil, errors.New("federated: audience required")
	}
	if len(cfg.Issuers) == 0 {
		return nil, errors.New("federated: at least one issuer required")
	}
	if keys == nil {
		return nil, errors.New("federated: key source required")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 5*time.Minute {
		return nil, errors.New("federated: invalid leeway")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.Issuers = slices.Clone(cfg.Issuers)
	return &Verifier{config: cfg, keys: keys}, nil
}

type idTokenClaims struct {
	Email         string   `json:"email"`
	EmailVerified flexBool `json:"email_verified"`
	Name          string   `json:"name"`
	jwt.RegisteredClaims
}

// Verify validates assertion and returns the identity it asserts.
func (v *Verifier) Verify(ctx context.Context, assertion string) (Identity, error) {
	assertion = strings.TrimSpace(assertion)
	if assertion == "" {
		return Identity{}, ErrInvalidAssertion
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods(supportedAlgs),
		jwt.WithAudience(v.config.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.config.Now),
	}
	if v.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(v.config.Leeway))
	}

	claims := &idTokenClaims{}
	token, err := jwt.NewParser(options...).ParseWithClaims(assertion, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		return v.keys.Key(ctx, kid)
	})
	if err != nil {
		if errors.Is(err, ErrKeysUnavailable) {
			return Identity{}, fmt.Errorf("%w: %v", ErrKeysUnavailable, err)
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidAssertion, err)
	}
	if !token.Valid {
		return Identity{}, ErrInvalidAssertion
	}
	if !slices.Contains(v.config.Issuers, claims.Issuer) {
		return Identity{}, fmt.Errorf("%w: untrusted issuer %q", ErrInvalidAssertion, claims.Issuer)
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidAssertion)
	}

	email := strings.ToLower(strings.TrimSpace(claims.Email))
	if email == "" {
		return Identity{}, ErrEmailMissing
	}
	if v.config.RequireVerifiedEmail && !bool(claims.EmailVerified) {
		return Identity{}, ErrEmailUnverified
	}

	return Identity{
		Email:         email,
		Name:          strings.TrimSpace(claims.Name),
		SubjectID:     claims.Subject,
		Issuer:        claims.Issuer,
		EmailVerified: bool(claims.EmailVerified),
	}, nil
}

// flexBool accepts both true and "true"; some providers send the string form.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch val := raw.(type) {
	case bool:
		*b = flexBool(val)
	case string:
		*b = flexBool(strings.EqualFold(val, "true"))
	default:
		*b = false
	}
	return nil
}
