package ws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kursd/kursd/internal/port/notifier"
)

const sinkName = "websocket"

// HubNotifier adapts the hub to the notifier port so dashboards receive
// engine notifications live.
type HubNotifier struct {
	hub *Hub
}

// NewHubNotifier creates a notifier broadcasting through the given hub.
func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) Name() string { return sinkName }

// Send broadcasts the notification to all connected clients.
func (n *HubNotifier) Send(ctx context.Context, notification notifier.Notification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("websocket notifier marshal: %w", err)
	}

	n.hub.Broadcast(ctx, Message{
		Type:    "notification." + string(notification.Kind),
		Payload: payload,
	})
	return nil
}
