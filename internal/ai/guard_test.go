package ai

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type funcProvider struct {
	name  string
	calls atomic.Int32
	fn    func(ctx context.Context) (string, error)
}

func (p *funcProvider) Name() string { return p.name }

func (p *funcProvider) Invoke(ctx context.Context, _ DisputeInput) (string, error) {
	p.calls.Add(1)
	return p.fn(ctx)
}

func TestGuardTimeout(t *testing.T) {
	slow := &funcProvider{name: "slow", fn: func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	g := NewGuard(slow, GuardConfig{Timeout: 20 * time.Millisecond})

	start := time.Now()
	_, err := g.Invoke(context.Background(), sampleInput)
	if time.Since(start) > time.Second {
		t.Fatalf("guard did not enforce the timeout")
	}
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Provider != "slow" {
		t.Fatalf("expected provider error, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestGuardRateLimitFailsFast(t *testing.T) {
	p := &funcProvider{name: "p", fn: func(context.Context) (string, error) { return "{}", nil }}
	g := NewGuard(p, GuardConfig{RatePerSecond: 0.001, Burst: 1})

	if _, err := g.Invoke(context.Background(), sampleInput); err != nil {
		t.Fatalf("first call must pass: %v", err)
	}
	_, err := g.Invoke(context.Background(), sampleInput)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}
	if p.calls.Load() != 1 {
		t.Fatalf("limited call must not reach the provider, calls=%d", p.calls.Load())
	}
}

func TestGuardBreakerOpens(t *testing.T) {
	boom := errors.New("boom")
	p := &funcProvider{name: "p", fn: func(context.Context) (string, error) { return "", boom }}
	g := NewGuard(p, GuardConfig{BreakerEnabled: true, BreakerFailures: 2, BreakerOpenTimeout: time.Minute})

	for i := 0; i < 2; i++ {
		if _, err := g.Invoke(context.Background(), sampleInput); !errors.Is(err, boom) {
			t.Fatalf("call %d: expected provider failure, got %v", i, err)
		}
	}
	_, err := g.Invoke(context.Background(), sampleInput)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected open circuit, got %v", err)
	}
	if p.calls.Load() != 2 {
		t.Fatalf("open breaker must not call the provider, calls=%d", p.calls.Load())
	}
}

func TestGuardPassesThrough(t *testing.T) {
	p := &funcProvider{name: "p", fn: func(context.Context) (string, error) { return "out", nil }}
	g := NewGuard(p, GuardConfig{BreakerEnabled: true})
	out, err := g.Invoke(context.Background(), sampleInput)
	if err != nil || out != "out" {
		t.Fatalf("unexpected result %q %v", out, err)
	}
	if g.Name() != "p" {
		t.Fatalf("guard must report the wrapped provider name")
	}
}
