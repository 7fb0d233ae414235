package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/DivyPatel-31/coastwatch/internal/model"
	"github.com/DivyPatel-31/coastwatch/internal/obs"
	"github.com/DivyPatel-31/coastwatch/internal/store"
)

func TestWorkerRunOnce_DeletesOnlyOldReadNotifications(t *testing.T) {
	t.Parallel()

	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := store.NewMemory(store.WithClock(func() time.Time { return clock }))
	ctx := context.Background()
	if _, err := s.UpsertUser(ctx, model.User{ID: "u1"}); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}

	create := func(read bool) string {
		n, err := s.CreateNotification(ctx, model.Notification{UserID: "u1", Title: "t", Message: "m", Type: model.NotificationInfo})
		if err != nil {
			t.Fatalf("CreateNotification: %v", err)
		}
		if read {
			if err := s.MarkNotificationRead(ctx, n.ID, "u1"); err != nil {
				t.Fatalf("MarkNotificationRead: %v", err)
			}
		}
		return n.ID
	}
	for i := 0; i < 3; i++ {
		create(true)
	}
	oldUnread := create(false)
	clock = clock.Add(40 * 24 * time.Hour)
	recentRead := create(true)

	stats := obs.New()
	w := NewWorker(s, 30*24*time.Hour)
	w.Now = func() time.Time { return clock }
	w.DeleteBatchSize = 2
	w.MaxBatches = 5
	w.Stats = stats

	n, err := w.runOnce(ctx)
	if err != nil {
		t.Fatalf("runOnce: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 deleted, got %d", n)
	}

	left, err := s.ListNotificationsByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListNotificationsByUser: %v", err)
	}
	ids := map[string]bool{}
	for _, row := range left {
		ids[row.ID] = true
	}
	if len(left) != 2 || !ids[oldUnread] || !ids[recentRead] {
		t.Fatalf("unexpected survivors: %+v", left)
	}
	if snap := stats.Snapshot(); snap.Cleanup.DeletedNotifications != 3 {
		t.Fatalf("unexpected stats: %+v", snap.Cleanup)
	}
}

func TestWorkerServe_DisabledWaitsForCancel(t *testing.T) {
	t.Parallel()

	w := NewWorker(store.NewMemory(), 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Serve(ctx); err == nil {
		t.Fatalf("expected context error")
	}
}
