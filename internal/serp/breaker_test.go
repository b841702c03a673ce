package serp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

type stubProvider struct {
	calls int
	err   error
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Search(ctx context.Context, q Query) ([]Result, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return []Result{{Title: "t", Href: "https://example.com/"}}, nil
}

func TestBreakerProvider_PassesThrough(t *testing.T) {
	inner := &stubProvider{}
	b := NewBreakerProvider(inner, BreakerConfig{}, nil)

	results, err := b.Search(context.Background(), Query{Text: "cats"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("expected inner results, got %+v", results)
	}
	if b.Name() != "stub" {
		t.Errorf("unexpected name %q", b.Name())
	}
}

func TestBreakerProvider_OpensAfterFailures(t *testing.T) {
	inner := &stubProvider{err: ErrBlocked}
	b := NewBreakerProvider(inner, BreakerConfig{MaxFailures: 2, Timeout: time.Hour}, nil)

	for i := 0; i < 2; i++ {
		if _, err := b.Search(context.Background(), Query{}); !errors.Is(err, ErrBlocked) {
			t.Fatalf("call %d: expected ErrBlocked, got %v", i, err)
		}
	}
	if b.State() != gobreaker.StateOpen {
		t.Fatalf("expected open state, got %s", b.State())
	}

	_, err := b.Search(context.Background(), Query{})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("expected wrapped gobreaker error, got %v", err)
	}
	if inner.calls != 2 {
		t.Errorf("open circuit must not reach the provider, got %d calls", inner.calls)
	}
}

func TestBreakerProvider_HalfOpenRecovers(t *testing.T) {
	inner := &stubProvider{err: ErrStatus}
	b := NewBreakerProvider(inner, BreakerConfig{MaxFailures: 1, Timeout: 20 * time.Millisecond}, nil)

	_, _ = b.Search(context.Background(), Query{})
	if b.State() != gobreaker.StateOpen {
		t.Fatalf("expected open state, got %s", b.State())
	}

	time.Sleep(30 * time.Millisecond)
	inner.err = nil

	if _, err := b.Search(context.Background(), Query{}); err != nil {
		t.Fatalf("expected probe to succeed, got %v", err)
	}
	if b.State() != gobreaker.StateClosed {
		t.Errorf("expected closed state after probe, got %s", b.State())
	}
}

func TestBreakerProvider_CallerErrorsDoNotTrip(t *testing.T) {
	for _, callerErr := range []error{ErrInvalidTimeLimit, ErrDisallowed, context.Canceled} {
		inner := &stubProvider{err: callerErr}
		b := NewBreakerProvider(inner, BreakerConfig{MaxFailures: 1}, nil)

		for i := 0; i < 3; i++ {
			if _, err := b.Search(context.Background(), Query{}); !errors.Is(err, callerErr) {
				t.Fatalf("expected %v, got %v", callerErr, err)
			}
		}
		if b.State() != gobreaker.StateClosed {
			t.Errorf("%v should not open the circuit", callerErr)
		}
	}
}
