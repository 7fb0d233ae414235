// Package notify creates per-user notifications when alerts are raised or
// reports are submitted, and pushes each one to its owner.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/DivyPatel-31/coastwatch/internal/model"
	"github.com/DivyPatel-31/coastwatch/internal/obs"
	"github.com/DivyPatel-31/coastwatch/internal/realtime"
	"github.com/DivyPatel-31/coastwatch/internal/store"
	"go.uber.org/zap"
)

type Notifier struct {
	store   store.Storage
	bus     realtime.Publisher
	log     *zap.Logger
	stats   *obs.Stats
	timeout time.Duration
}

func New(s store.Storage, bus realtime.Publisher, log *zap.Logger, stats *obs.Stats) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{store: s, bus: bus, log: log, stats: stats, timeout: 10 * time.Second}
}

// AlertRaised gives every user an alert notification linked to a.
// It returns the number of notifications created.
func (n *Notifier) AlertRaised(ctx context.Context, a model.Alert) int {
	if n == nil {
		return 0
	}
	alertID := a.ID
	return n.fanOut(ctx, "alert", a.ID, func(model.User) bool { return true }, model.Notification{
		AlertID: &alertID,
		Title:   a.Title,
		Message: alertMessage(a),
		Type:    model.NotificationAlert,
	})
}

// ReportSubmitted tells government and NGO users about a new community report.
func (n *Notifier) ReportSubmitted(ctx context.Context, r model.Report) int {
	if n == nil {
		return 0
	}
	moderators := func(u model.User) bool {
		return u.Role == model.RoleGovernment || u.Role == model.RoleNGO
	}
	return n.fanOut(ctx, "report", r.ID, moderators, model.Notification{
		Title:   "New community report",
		Message: fmt.Sprintf("%s reported at %s: %s", humanize(string(r.Type)), r.Location, r.Title),
		Type:    model.NotificationInfo,
	})
}

func (n *Notifier) fanOut(ctx context.Context, source, sourceID string, match func(model.User) bool, tmpl model.Notification) int {
	// The triggering request may finish before every user is notified.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()

	users, err := n.store.ListUsers(ctx)
	if err != nil {
		n.stats.ObserveNotification(err)
		n.log.Error("notify: list users", zap.String("source", source), zap.String("source_id", sourceID), zap.Error(err))
		return 0
	}

	created := 0
	for _, u := range users {
		if !match(u) {
			continue
		}
		row := tmpl
		row.UserID = u.ID
		saved, err := n.store.CreateNotification(ctx, row)
		n.stats.ObserveNotification(err)
		if err != nil {
			n.log.Warn("notify: create notification",
				zap.String("source", source),
				zap.String("source_id", sourceID),
				zap.String("user_id", u.ID),
				zap.Error(err))
			continue
		}
		created++
		if n.bus != nil {
			n.bus.Publish(ctx, realtime.Notification{Notification: saved})
		}
	}
	n.log.Debug("notify: fan-out done", zap.String("source", source), zap.String("source_id", sourceID), zap.Int("created", created))
	return created
}

func alertMessage(a model.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s alert at %s", humanize(string(a.Severity)), strings.ToLower(humanize(string(a.Type))), a.Location)
	if d := strings.TrimSpace(a.Description); d != "" {
		b.WriteString(": ")
		b.WriteString(d)
	}
	return b.String()
}

// humanize turns "storm_surge" into "Storm surge".
func humanize(s string) string {
	s = strings.ReplaceAll(s, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
