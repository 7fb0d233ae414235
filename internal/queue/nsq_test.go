package queue

import (
	"testing"
)

func TestNewNSQPublisher_EmptyAddr(t *testing.T) {
	t.Parallel()

	if _, err := NewNSQPublisher(""); err == nil {
		t.Fatalf("expected error for empty address")
	}
}

func TestNSQPublisher_NoNSQD(t *testing.T) {
	t.Parallel()

	p, err := NewNSQPublisher("127.0.0.1:1")
	if err != nil {
		t.Fatalf("NewNSQPublisher: %v", err)
	}
	defer p.Stop()
	if err := p.Ping(); err == nil {
		t.Fatalf("expected ping error without nsqd")
	}
	if err := p.Publish("coastal-events", []byte(`{"type":"new-alert"}`)); err == nil {
		t.Fatalf("expected publish error without nsqd")
	}
}
