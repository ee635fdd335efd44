package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-shelly/internal/bridges/shelly"
	"github.com/nerrad567/gray-logic-shelly/internal/infrastructure/config"
)

// ─── Hub ───────────────────────────────────────────────────────────

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func newFakeClient(hub *Hub, channels ...string) *WSClient {
	subs := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		subs[ch] = struct{}{}
	}
	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: subs,
	}
	hub.Register(client)
	return client
}

func TestHub_NotifyRoutesByKind(t *testing.T) {
	hub := newTestHub(t)
	changes := newFakeClient(hub, string(shelly.NotificationPropertyChanged))
	everything := newFakeClient(hub, WSChannelAll)
	connectivity := newFakeClient(hub, string(shelly.NotificationConnectivity))

	hub.Notify(shelly.Notification{
		Kind:     shelly.NotificationPropertyChanged,
		DeviceID: "A4CF12",
		Property: "relay0",
		Value:    true,
	})

	for name, client := range map[string]*WSClient{"subscribed": changes, "wildcard": everything} {
		select {
		case raw := <-client.send:
			var msg WSMessage
			if err := json.Unmarshal(raw, &msg); err != nil {
				t.Fatalf("%s: unmarshal: %v", name, err)
			}
			if msg.Type != WSTypeEvent || msg.EventType != "property_changed" {
				t.Errorf("%s: got type=%q event_type=%q", name, msg.Type, msg.EventType)
			}
			payload, _ := msg.Payload.(map[string]any)
			if payload["device_id"] != "A4CF12" || payload["property"] != "relay0" {
				t.Errorf("%s: payload = %v", name, payload)
			}
		case <-time.After(time.Second):
			t.Errorf("%s: timed out waiting for notification", name)
		}
	}

	select {
	case <-connectivity.send:
		t.Error("connectivity subscriber should not receive property_changed")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_ClientCount(t *testing.T) {
	hub := newTestHub(t)
	if hub.ClientCount() != 0 {
		t.Errorf("initial client count = %d, want 0", hub.ClientCount())
	}

	client := newFakeClient(hub)
	if hub.ClientCount() != 1 {
		t.Errorf("after register count = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(client)
	hub.Unregister(client) // second call must not double-close
	if hub.ClientCount() != 0 {
		t.Errorf("after unregister count = %d, want 0", hub.ClientCount())
	}
}

func TestHub_BroadcastAfterUnregister(t *testing.T) {
	hub := newTestHub(t)
	client := newFakeClient(hub, WSChannelAll)
	hub.Unregister(client)

	// Must not panic on the closed send channel.
	client.trySend([]byte("late"))
	hub.Broadcast("event", map[string]string{"k": "v"})
}

// ─── Full connection ───────────────────────────────────────────────

// dialTestServer serves the router over a real listener and connects.
func dialTestServer(t *testing.T) (*Server, *websocket.Conn) {
	t.Helper()
	srv := testServer(t, &mockBridge{}, nil)
	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	ws, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v (resp: %v)", err, resp)
	}
	t.Cleanup(func() { ws.Close() })
	return srv, ws
}

func readWS(t *testing.T, ws *websocket.Conn) WSMessage {
	t.Helper()
	//nolint:errcheck // Test deadline
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := ws.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestWebSocket_SubscribeAndReceive(t *testing.T) {
	srv, ws := dialTestServer(t)

	if err := ws.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: []string{"connectivity"}},
	}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	resp := readWS(t, ws)
	if resp.Type != WSTypeResponse || resp.ID != "sub-1" {
		t.Fatalf("subscribe response = %+v", resp)
	}
	if srv.hub.ClientCount() != 1 {
		t.Errorf("hub client count = %d, want 1", srv.hub.ClientCount())
	}

	connected := false
	srv.hub.Notify(shelly.Notification{Kind: shelly.NotificationConnectivity, DeviceID: "B7", Connected: &connected})

	ev := readWS(t, ws)
	if ev.Type != WSTypeEvent || ev.EventType != "connectivity" {
		t.Errorf("event = %+v", ev)
	}
}

func TestWebSocket_Messages(t *testing.T) {
	tests := []struct {
		name     string
		send     string
		wantType string
	}{
		{"ping", `{"type":"ping","id":"p1"}`, WSTypePong},
		{"invalid json", `not json`, WSTypeError},
		{"unknown type", `{"type":"dance","id":"x"}`, WSTypeError},
		{"subscribe without channels", `{"type":"subscribe","id":"s","payload":{}}`, WSTypeError},
		{"unsubscribe", `{"type":"unsubscribe","id":"u","payload":{"channels":["event"]}}`, WSTypeResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ws := dialTestServer(t)
			if err := ws.WriteMessage(websocket.TextMessage, []byte(tt.send)); err != nil {
				t.Fatalf("write: %v", err)
			}
			if got := readWS(t, ws); got.Type != tt.wantType {
				t.Errorf("reply type = %q, want %q", got.Type, tt.wantType)
			}
		})
	}
}
