package rate

import (
	"sync"
	"time"
)

// Config holds limiter tuning parameters.
type Config struct {
	Points int
	Window time.Duration
}

// Decision is the outcome of a single consumption.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

type window struct {
	start  time.Time
	points int
}

// Limiter is a fixed-window counter keyed by an arbitrary string.
// It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	config  Config
	now     func() time.Time
	windows map[string]*window
}

// New creates a [Limiter]. A nil now defaults to time.Now.
func New(cfg Config, now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	return &Limiter{
		config:  cfg,
		now:     now,
		windows: make(map[string]*window),
	}
}

// Consume spends cost points for key in the current window.
func (l *Limiter) Consume(key string, cost int) (Decision, error) {
	if cost <= 0 {
		return Decision{}, ErrInvalidCost
	}

	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || !now.Before(w.start.Add(l.config.Window)) {
		w = &window{start: now}
		l.windows[key] = w
	}

	if w.points+cost > l.config.Points {
		return Decision{
			Allowed:    false,
			Remaining:  l.config.Points - w.points,
			RetryAfter: w.start.Add(l.config.Window).Sub(now),
		}, nil
	}

	w.points += cost
	return Decision{
		Allowed:   true,
		Remaining: l.config.Points - w.points,
	}, nil
}

// Check consumes one point and returns ErrRateLimited on denial.
func (l *Limiter) Check(key string) error {
	d, err := l.Consume(key, 1)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return ErrRateLimited
	}
	return nil
}

// Prune drops windows that have fully elapsed and returns how many were removed.
func (l *Limiter) Prune() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, w := range l.windows {
		if !now.Before(w.start.Add(l.config.Window)) {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
