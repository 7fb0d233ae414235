package queue

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingPublisher struct {
	calls atomic.Int64
	err   error
}

func (p *countingPublisher) Publish(_ string, _ []byte) error {
	p.calls.Add(1)
	return p.err
}

func TestBreakerPublisher_OpensAfterFailures(t *testing.T) {
	t.Parallel()

	inner := &countingPublisher{err: errors.New("connection refused")}
	p := NewBreakerPublisher(inner, BreakerConfig{ConsecutiveFailures: 3, OpenTimeout: time.Minute})

	for i := 0; i < 3; i++ {
		if err := p.Publish("coastal-events", []byte("x")); err == nil || errors.Is(err, ErrBreakerOpen) {
			t.Fatalf("call %d: expected inner error, got %v", i, err)
		}
	}
	err := p.Publish("coastal-events", []byte("x"))
	if !errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("expected ErrBreakerOpen, got %v", err)
	}
	if got := inner.calls.Load(); got != 3 {
		t.Fatalf("expected inner called 3 times, got %d", got)
	}
	if s := p.(*breakerPublisher).State(); s != "open" {
		t.Fatalf("expected open state, got %q", s)
	}
}

func TestBreakerPublisher_RecoversAfterTimeout(t *testing.T) {
	t.Parallel()

	inner := &countingPublisher{err: errors.New("down")}
	p := NewBreakerPublisher(inner, BreakerConfig{ConsecutiveFailures: 1, OpenTimeout: 20 * time.Millisecond})

	_ = p.Publish("t", nil)
	if err := p.Publish("t", nil); !errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("expected open breaker, got %v", err)
	}

	inner.err = nil
	time.Sleep(40 * time.Millisecond)
	if err := p.Publish("t", nil); err != nil {
		t.Fatalf("expected half-open trial call to succeed, got %v", err)
	}
	if s := p.(*breakerPublisher).State(); s != "closed" {
		t.Fatalf("expected closed state, got %q", s)
	}
}

func TestNewBreakerPublisher_Nil(t *testing.T) {
	t.Parallel()

	if NewBreakerPublisher(nil, BreakerConfig{}) != nil {
		t.Fatalf("expected nil publisher")
	}
}
