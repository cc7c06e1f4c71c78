package ai

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

type GuardConfig struct {
	Timeout        time.Duration
	RatePerSecond  float64
	Burst          int
	BreakerEnabled bool
	// Breaker trips after this many consecutive provider failures.
	BreakerFailures    uint32
	BreakerOpenTimeout time.Duration
}

// Guard bounds a provider call in time and budget. It never retries: a refused
// or failed call surfaces as one *ProviderError.
type Guard struct {
	next    Provider
	timeout time.Duration
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[string]
}

const DefaultLLMTimeout = 30 * time.Second

func NewGuard(next Provider, cfg GuardConfig) *Guard {
	g := &Guard{next: next, timeout: cfg.Timeout}
	if g.timeout <= 0 {
		g.timeout = DefaultLLMTimeout
	}
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	if cfg.BreakerEnabled {
		failures := cfg.BreakerFailures
		if failures == 0 {
			failures = 5
		}
		openTimeout := cfg.BreakerOpenTimeout
		if openTimeout <= 0 {
			openTimeout = 30 * time.Second
		}
		g.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
			Name:        next.Name(),
			MaxRequests: 1,
			Timeout:     openTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
		})
	}
	return g
}

func (g *Guard) Name() string { return g.next.Name() }

func (g *Guard) Invoke(ctx context.Context, in DisputeInput) (string, error) {
	if g.limiter != nil && !g.limiter.Allow() {
		return "", providerErr(g.Name(), 0, ErrRateLimited)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if g.breaker == nil {
		out, err := g.next.Invoke(ctx, in)
		if err != nil {
			return "", providerErr(g.Name(), 0, err)
		}
		return out, nil
	}
	out, err := g.breaker.Execute(func() (string, error) {
		return g.next.Invoke(ctx, in)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", providerErr(g.Name(), 0, errors.Join(ErrCircuitOpen, err))
	}
	if err != nil {
		return "", providerErr(g.Name(), 0, err)
	}
	return out, nil
}
