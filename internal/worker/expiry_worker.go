package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper cancels payment records whose approval window has lapsed.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// ExpiryWorker periodically sweeps the payment ledger so unapproved deposits
// do not sit in pending forever. Sweep failures back off per the retry
// policy instead of hammering the store.
type ExpiryWorker struct {
	ledger   Sweeper
	interval time.Duration
	retry    RetryPolicy
	logger   zerolog.Logger
}

func NewExpiryWorker(ledger Sweeper, interval time.Duration, logger *zerolog.Logger) *ExpiryWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	var l zerolog.Logger
	if logger != nil {
		l = logger.With().Str("component", "expiry-worker").Logger()
	}
	return &ExpiryWorker{
		ledger:   ledger,
		interval: interval,
		retry: RetryPolicy{
			MaxRetries:    5,
			InitialDelay:  interval,
			MaxDelay:      10 * interval,
			BackoffFactor: 2,
		},
		logger: l,
	}
}

// Start runs the sweep loop until ctx is done. The first sweep fires after
// one interval, not immediately.
func (w *ExpiryWorker) Start(ctx context.Context) {
	w.logger.Info().Dur("interval", w.interval).Msg("expiry worker started")
	defer w.logger.Info().Msg("expiry worker stopped")

	failures := 0
	timer := time.NewTimer(w.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		cancelled, err := w.ledger.SweepExpired(ctx)
		if err != nil {
			failures++
			delay := w.retry.NextDelay(failures)
			w.logger.Error().Err(err).Int("failures", failures).Dur("next_in", delay).Msg("sweep failed")
			timer.Reset(delay)
			continue
		}

		failures = 0
		if cancelled > 0 {
			w.logger.Info().Int("cancelled", cancelled).Msg("expired payments swept")
		}
		timer.Reset(w.interval)
	}
}
