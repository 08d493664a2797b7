package internal

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

const (
	minCodeDigits = 4
	maxCodeDigits = 10
)

var errCodeDigits = errors.New("invalid code digits")

// NewNumericCode returns a uniformly random decimal code of exactly digits
// characters. Leading zeros are kept.
func NewNumericCode(digits int) (string, error) {
	if digits < minCodeDigits || digits > maxCodeDigits {
		return "", errCodeDigits
	}

	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}

	code := fmt.Sprintf("%0*d", digits, n.Int64())
	if len(code) != digits {
		return "", fmt.Errorf("invalid code generation length")
	}
	return code, nil
}

// IsNumericCode reports whether code is exactly digits ASCII digits.
func IsNumericCode(code string, digits int) bool {
	if len(code) != digits {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
