package serp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

const (
	defaultBreakerMaxFailures uint32        = 3
	defaultBreakerTimeout     time.Duration = 2 * time.Minute
	defaultBreakerInterval    time.Duration = 10 * time.Minute
)

// BreakerConfig configures a BreakerProvider. Zero values select defaults.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before a half-open probe.
	Timeout time.Duration
	// Interval clears the failure counts while closed.
	Interval time.Duration
}

// BreakerProvider stops searching an engine that keeps failing, most often
// because it has started serving captchas, until a cooldown has passed.
type BreakerProvider struct {
	inner   Provider
	breaker *gobreaker.CircuitBreaker[[]Result]
}

var _ Provider = (*BreakerProvider)(nil)

// NewBreakerProvider wraps inner with a circuit breaker.
func NewBreakerProvider(inner Provider, cfg BreakerConfig, logger *slog.Logger) *BreakerProvider {
	if logger == nil {
		logger = slog.Default()
	}
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultBreakerMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultBreakerTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultBreakerInterval
	}

	cb := gobreaker.NewCircuitBreaker[[]Result](gobreaker.Settings{
		Name:        "serp:" + inner.Name(),
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		// Caller mistakes and cancellations say nothing about engine health.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrInvalidTimeLimit) ||
				errors.Is(err, ErrDisallowed) ||
				errors.Is(err, context.Canceled)
		},
	})

	return &BreakerProvider{inner: inner, breaker: cb}
}

func (b *BreakerProvider) Name() string { return b.inner.Name() }

// Search routes the call through the breaker.
func (b *BreakerProvider) Search(ctx context.Context, q Query) ([]Result, error) {
	results, err := b.breaker.Execute(func() ([]Result, error) {
		return b.inner.Search(ctx, q)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %s: %w", ErrCircuitOpen, b.inner.Name(), err)
	}
	return results, err
}

// State returns the breaker state for monitoring.
func (b *BreakerProvider) State() gobreaker.State {
	return b.breaker.State()
}
