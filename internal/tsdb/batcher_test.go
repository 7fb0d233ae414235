package tsdb

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBatcher_FlushOnMaxSize(t *testing.T) {
	t.Parallel()

	flushed := make(chan []int, 1)
	b := NewBatcher[int](2, time.Hour, time.Second, func(ctx context.Context, items []int) error {
		cp := append([]int(nil), items...)
		flushed <- cp
		return nil
	})
	t.Cleanup(b.Close)

	done1 := make(chan struct{})
	go func() {
		_ = b.Add(1)
		close(done1)
	}()

	select {
	case <-done1:
		t.Fatalf("Add returned before flush")
	case <-time.After(50 * time.Millisecond):
	}

	if err := b.Add(2); err != nil {
		t.Fatalf("Add(2): %v", err)
	}

	select {
	case <-done1:
	case <-time.After(time.Second):
		t.Fatalf("expected Add(1) to return after flush")
	}

	select {
	case got := <-flushed:
		if len(got) != 2 || got[0] != 1 || got[1] != 2 {
			t.Fatalf("unexpected flushed items: %v", got)
		}
	default:
		t.Fatalf("expected flush to run")
	}
}

func TestBatcher_FlushErrorPropagates(t *testing.T) {
	t.Parallel()

	want := errors.New("boom")
	b := NewBatcher[int](1, time.Hour, time.Second, func(ctx context.Context, items []int) error {
		return want
	})
	t.Cleanup(b.Close)

	if err := b.Add(1); !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestBatcher_EnqueueFlushesOnIntervalAndClose(t *testing.T) {
	t.Parallel()

	flushed := make(chan []int, 4)
	b := NewBatcher[int](10, 20*time.Millisecond, time.Second, func(ctx context.Context, items []int) error {
		flushed <- append([]int(nil), items...)
		return nil
	})

	if !b.Enqueue(1) || !b.Enqueue(2) {
		t.Fatalf("Enqueue rejected items on an idle batcher")
	}
	select {
	case got := <-flushed:
		if len(got) != 2 {
			t.Fatalf("unexpected interval flush: %v", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected interval flush")
	}

	b.Enqueue(3)
	b.Close()
	if b.Enqueue(4) {
		t.Fatalf("Enqueue must fail after Close")
	}
	var rest []int
	for len(flushed) > 0 {
		rest = append(rest, <-flushed...)
	}
	if len(rest) != 1 || rest[0] != 3 {
		t.Fatalf("expected pending item flushed on close, got %v", rest)
	}
}
