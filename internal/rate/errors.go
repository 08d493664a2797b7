package rate

import "errors"

var (
	// ErrRateLimited is returned by Check when the key has exhausted its window.
	ErrRateLimited = errors.New("rate limited")
	// ErrInvalidCost is returned for non-positive costs.
	ErrInvalidCost = errors.New("rate cost must be > 0")
)
