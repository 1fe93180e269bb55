// Package service contains the application services of the rate engine.
package service

import (
	"context"
	"log/slog"

	"github.com/kursd/kursd/internal/port/notifier"
)

// NotificationService dispatches notifications to all registered sinks.
// Dispatch is fire-and-forget: sink failures are logged and never reach
// the engine's callers.
type NotificationService struct {
	notifiers []notifier.Notifier
}

// NewNotificationService creates a NotificationService with the given sinks.
func NewNotificationService(notifiers ...notifier.Notifier) *NotificationService {
	return &NotificationService{notifiers: notifiers}
}

// Notify sends a notification to all registered sinks.
// Errors are logged but do not interrupt delivery to other sinks.
func (s *NotificationService) Notify(ctx context.Context, n notifier.Notification) {
	for _, sink := range s.notifiers {
		if err := sink.Send(ctx, n); err != nil {
			slog.Warn("notification send failed",
				"sink", sink.Name(),
				"kind", n.Kind,
				"error", err,
			)
			continue
		}
		slog.Debug("notification sent", "sink", sink.Name(), "kind", n.Kind)
	}
}

// SinkCount returns the number of registered sinks.
func (s *NotificationService) SinkCount() int {
	return len(s.notifiers)
}
