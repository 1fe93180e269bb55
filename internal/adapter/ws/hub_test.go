package ws

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/kursd/kursd/internal/port/notifier"
)

func TestNewHub(t *testing.T) {
	hub := NewHub()
	if hub == nil {
		t.Fatal("expected non-nil hub")
	}
	if hub.ConnectionCount() != 0 {
		t.Fatalf("expected 0 connections, got %d", hub.ConnectionCount())
	}
}

func TestHubBroadcastNoConnections(t *testing.T) {
	hub := NewHub()

	// Broadcast with no connections should not panic.
	hub.Broadcast(context.Background(), Message{
		Type:    "test",
		Payload: []byte(`{"key":"value"}`),
	})
}

func TestHubRemoveNonexistent(t *testing.T) {
	hub := NewHub()

	// Removing a connection that was never added should not panic.
	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := &conn{ws: nil, cancel: cancel}
	hub.remove(c)
}

func TestHubNotifierMessageType(t *testing.T) {
	hub := NewHub()
	n := NewHubNotifier(hub)

	if n.Name() != "websocket" {
		t.Fatalf("unexpected sink name %q", n.Name())
	}

	// No connections registered, so Send only exercises the marshal path.
	err := n.Send(context.Background(), notifier.Notification{
		Kind:     notifier.KindWarning,
		TenantID: "tenant-1",
		Title:    "Provider quota warning",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
}

func TestNotificationPayloadRoundTrip(t *testing.T) {
	src := notifier.Notification{
		Kind:     notifier.KindProviderSwitch,
		TenantID: "tenant-1",
		Title:    "Rate provider switched",
		Message:  "switched from a to b",
		Meta:     map[string]any{"reason": "quota_exhausted"},
	}

	payload, err := json.Marshal(src)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got notifier.Notification
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Kind != src.Kind || got.Meta["reason"] != "quota_exhausted" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}
