package dispatch

import (
	"context"
	"errors"

	"github.com/MrEthical07/goOTC/logging"
)

// ErrNotConfigured is returned by a zero dispatcher.
var ErrNotConfigured = errors.New("dispatch: dispatcher not configured")

// Func adapts an ordinary function to a dispatcher.
type Func func(ctx context.Context, email, code string) error

func (f Func) SendCode(ctx context.Context, email, code string) error {
	if f == nil {
		return ErrNotConfigured
	}
	return f(ctx, email, code)
}

// Log logs each code instead of delivering it.
type Log struct {
	logger logging.Logger
}

func NewLog(logger logging.Logger) *Log {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Log{logger: logger.With("component", "dispatch.log")}
}

func (l *Log) SendCode(ctx context.Context, email, code string) error {
	if l == nil || l.logger == nil {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	l.logger.Info(ctx, "one-time code (development dispatcher)", "email", email, "code", code)
	return nil
}
