package channels

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/haasonsaas/cerebot/internal/observability"
	"github.com/haasonsaas/cerebot/internal/retry"
)

// ReconnectConfig controls reconnection behavior.
type ReconnectConfig struct {
	// MaxAttempts is the number of consecutive failed cycles tolerated before
	// giving up. Zero retries forever.
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Factor       float64
	Jitter       bool

	// StableAfter resets the failure count when a cycle stayed up at least
	// this long before failing.
	StableAfter time.Duration
}

// DefaultReconnectConfig returns a baseline reconnection config.
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		MaxAttempts:  0,
		InitialDelay: 2 * time.Second,
		MaxDelay:     60 * time.Second,
		Factor:       2,
		Jitter:       true,
		StableAfter:  time.Minute,
	}
}

// Reconnector supervises a connection cycle, restarting it after faults.
type Reconnector struct {
	Config  ReconnectConfig
	Logger  *slog.Logger
	State   *StateTracker
	Metrics *observability.Metrics
}

// Run calls run repeatedly. A nil return from run ends supervision (the
// connection was shut down on purpose). Errors restart the cycle after a
// backoff delay unless they are permanent, ctx is done, or MaxAttempts
// consecutive cycles have failed.
func (r *Reconnector) Run(ctx context.Context, run func(context.Context) error) error {
	if run == nil {
		return errors.New("reconnector: run func is nil")
	}
	cfg := r.Config
	defaults := DefaultReconnectConfig()
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = defaults.InitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = defaults.MaxDelay
	}
	if cfg.Factor <= 0 {
		cfg.Factor = defaults.Factor
	}
	if cfg.StableAfter <= 0 {
		cfg.StableAfter = defaults.StableAfter
	}
	policy := retry.Policy{
		InitialDelay: cfg.InitialDelay,
		MaxDelay:     cfg.MaxDelay,
		Factor:       cfg.Factor,
		Jitter:       cfg.Jitter,
	}

	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	failures := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		started := time.Now()
		err := run(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if retry.IsPermanent(err) {
			logger.Error("connection failed permanently", "error", err)
			return err
		}

		if time.Since(started) >= cfg.StableAfter {
			failures = 0
		}
		failures++

		if r.State != nil {
			r.State.RecordReconnectAttempt()
		}
		r.Metrics.RecordReconnect(err)
		r.Metrics.RecordError("reconnect", string(GetErrorCode(err)))

		if cfg.MaxAttempts > 0 && failures >= cfg.MaxAttempts {
			return fmt.Errorf("giving up after %d attempts: %w", failures, err)
		}

		delay := policy.Delay(failures)
		logger.Warn("connection cycle ended, reconnecting",
			"attempt", failures,
			"delay", delay,
			"error", err)

		if err := retry.Sleep(ctx, delay); err != nil {
			return err
		}
	}
}
