package goOTC

import (
	"context"
	"errors"
	"time"
)

// ErrSweeperRunning is returned by StartSweeper when a sweeper is active.
var ErrSweeperRunning = errors.New("sweeper already running")

// StartSweeper runs SweepExpiredCodes every interval until ctx is cancelled
// or the Engine is closed. A zero interval uses Config.Sweep.Interval. Only
// one sweeper runs at a time; call StopSweeper before starting another.
func (e *Engine) StartSweeper(ctx context.Context, interval time.Duration) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if interval == 0 {
		interval = e.config.Sweep.Interval
	}
	if interval <= 0 {
		return errors.New("sweep interval must be > 0")
	}

	e.sweepMu.Lock()
	defer e.sweepMu.Unlock()
	if e.sweepCancel != nil {
		return ErrSweeperRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	e.sweepCancel = cancel
	e.sweepDone = done

	go func() {
		defer close(done)
		defer e.releaseSweeper(done, cancel)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// failures are counted and logged by SweepExpiredCodes
				_, _ = e.SweepExpiredCodes(ctx)
			}
		}
	}()

	e.log.Info(ctx, "sweeper started", "interval", interval.String())
	return nil
}

// releaseSweeper frees the sweeper slot when the loop exits, unless a newer
// sweeper already holds it.
func (e *Engine) releaseSweeper(done chan struct{}, cancel context.CancelFunc) {
	cancel()
	e.sweepMu.Lock()
	if e.sweepDone == done {
		e.sweepCancel, e.sweepDone = nil, nil
	}
	e.sweepMu.Unlock()
}

// StopSweeper stops a running sweeper and waits for an in-flight sweep.
func (e *Engine) StopSweeper() {
	if e == nil {
		return
	}
	e.stopSweeper()
}

func (e *Engine) stopSweeper() {
	e.sweepMu.Lock()
	cancel, done := e.sweepCancel, e.sweepDone
	e.sweepCancel, e.sweepDone = nil, nil
	e.sweepMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
