package codehash

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedHash is returned when a stored hash cannot be parsed.
	ErrMalformedHash = errors.New("codehash: malformed hash")
	// ErrEmptySecret is returned when asked to hash an empty secret.
	ErrEmptySecret = errors.New("codehash: empty secret")
)

// Hasher turns a plaintext secret into a salted, storable digest.
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(secret, encoded string) (bool, error)
}

const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// Config selects and tunes a Hasher.
type Config struct {
	Algorithm  string
	BcryptCost int
	Argon2     Argon2Config
}

// DefaultConfig returns bcrypt at cost 10.
func DefaultConfig() Config {
	return Config{
		Algorithm:  AlgorithmBcrypt,
		BcryptCost: DefaultBcryptCost,
		Argon2:     DefaultArgon2Config(),
	}
}

// New builds the Hasher named by cfg.Algorithm.
func New(cfg Config) (Hasher, error) {
	switch strings.ToLower(cfg.Algorithm) {
	case "", AlgorithmBcrypt:
		return NewBcrypt(cfg.BcryptCost)
	case AlgorithmArgon2id:
		return NewArgon2(cfg.Argon2)
	default:
		return nil, fmt.Errorf("codehash: unsupported algorithm %q", cfg.Algorithm)
	}
}
