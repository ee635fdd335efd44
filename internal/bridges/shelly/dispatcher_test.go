package shelly

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// recordingRecorder implements CommandRecorder.
type recordingRecorder struct {
	mu      sync.Mutex
	records []CommandRecord
}

func (r *recordingRecorder) RecordCommand(_ context.Context, rec CommandRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

// staticResolver implements AddressResolver.
type staticResolver map[string]string

func (s staticResolver) AddressPrefix(id string) (string, bool) {
	p, ok := s[id]
	return p, ok
}

func newTestDispatcher(t *testing.T, resolver AddressResolver, rec CommandRecorder) (*Dispatcher, *MockMQTTClient) {
	t.Helper()
	mqtt := NewMockMQTTClient()
	d, err := NewDispatcher(DispatcherOptions{Publisher: mqtt, Resolver: resolver, Recorder: rec})
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}
	return d, mqtt
}

func TestNewDispatcher_Validation(t *testing.T) {
	if _, err := NewDispatcher(DispatcherOptions{Resolver: staticResolver{}}); err == nil {
		t.Error("NewDispatcher() without publisher should fail")
	}
	if _, err := NewDispatcher(DispatcherOptions{Publisher: NewMockMQTTClient()}); err == nil {
		t.Error("NewDispatcher() without resolver should fail")
	}
}

func TestDispatcher_SendUnknownDevice(t *testing.T) {
	d, mqtt := newTestDispatcher(t, staticResolver{}, nil)

	err := d.Send(context.Background(), "never-seen", "relay/0/command", "on")
	if !errors.Is(err, ErrUnknownDevice) {
		t.Fatalf("Send() error = %v, want ErrUnknownDevice", err)
	}
	if len(mqtt.GetPublished()) != 0 {
		t.Error("Send() to unknown device must not publish")
	}
}

func TestDispatcher_Send(t *testing.T) {
	d, mqtt := newTestDispatcher(t, staticResolver{"A4CF12": "shelly1l-A4CF12"}, nil)

	if err := d.Send(context.Background(), "A4CF12", "relay/0/command", "on"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	pubs := mqtt.GetPublished()
	if len(pubs) != 1 {
		t.Fatalf("publishes = %d, want 1", len(pubs))
	}
	if pubs[0].Topic != "shellies/shelly1l-A4CF12/relay/0/command" {
		t.Errorf("topic = %s", pubs[0].Topic)
	}
	if pubs[0].Retained {
		t.Error("commands must not be retained")
	}
	if pubs[0].QoS != defaultCommandQoS {
		t.Errorf("QoS = %d, want %d", pubs[0].QoS, defaultCommandQoS)
	}
}

func TestDispatcher_TransportError(t *testing.T) {
	rec := &recordingRecorder{}
	d, mqtt := newTestDispatcher(t, staticResolver{"A": "shelly1-A"}, rec)
	mqtt.SetPublishError(errors.New("broker gone"))

	err := d.Execute(context.Background(), Command{ID: "cmd-1", DeviceID: "A", Kind: CommandSetRelay, On: true})
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("Execute() error = %v, want ErrTransport", err)
	}
	if _, failed := d.Stats(); failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
	if len(rec.records) != 1 || rec.records[0].Err == nil {
		t.Errorf("recorder should hold the failed command, got %+v", rec.records)
	}
}

func TestDispatcher_CancelledContext(t *testing.T) {
	d, mqtt := newTestDispatcher(t, staticResolver{"A": "shelly1-A"}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := d.Send(ctx, "A", "relay/0/command", "on"); !errors.Is(err, context.Canceled) {
		t.Errorf("Send() error = %v, want context.Canceled", err)
	}
	if len(mqtt.GetPublished()) != 0 {
		t.Error("cancelled Send() must not publish")
	}
}

func TestDispatcher_ExecuteAllFanOut(t *testing.T) {
	rec := &recordingRecorder{}
	d, mqtt := newTestDispatcher(t, staticResolver{"R02": "shelly4pro-R02"}, rec)
	dev := Build("R02", "shelly4pro-R02", DeviceShelly4Pro, ModeRelay, Capabilities{RelayChannels: []int{0, 2}})

	cmds, err := dev.WriteProperty("relay", true)
	if err != nil {
		t.Fatalf("WriteProperty() error = %v", err)
	}
	if err := d.ExecuteAll(context.Background(), cmds); err != nil {
		t.Fatalf("ExecuteAll() error = %v", err)
	}

	pubs := mqtt.GetPublished()
	if len(pubs) != 2 {
		t.Fatalf("publishes = %d, want exactly 2", len(pubs))
	}
	wantTopics := []string{"shellies/shelly4pro-R02/relay/0/command", "shellies/shelly4pro-R02/relay/2/command"}
	for i, p := range pubs {
		if p.Topic != wantTopics[i] {
			t.Errorf("publish %d topic = %s, want %s", i, p.Topic, wantTopics[i])
		}
		if string(p.Payload) != "on" {
			t.Errorf("publish %d payload = %s, want on", i, p.Payload)
		}
	}
	if len(rec.records) != 2 {
		t.Errorf("recorded = %d, want 2", len(rec.records))
	}
}

func TestCommand_Translate(t *testing.T) {
	tests := []struct {
		name        string
		cmd         Command
		wantSubPath string
		wantPayload string
		wantErr     bool
	}{
		{"relay on", Command{Kind: CommandSetRelay, Channel: 1, On: true}, "relay/1/command", "on", false},
		{"relay off", Command{Kind: CommandSetRelay, Channel: 0}, "relay/0/command", "off", false},
		{"roller open", Command{Kind: CommandRollerState, State: "open"}, "roller/0/command", "open", false},
		{"roller bad state", Command{Kind: CommandRollerState, State: "up"}, "", "", true},
		{"roller position", Command{Kind: CommandRollerPosition, Position: 75}, "roller/0/command/pos", "75", false},
		{"white", Command{Kind: CommandSetWhite, Brightness: 50, On: true}, "white/0/set", `{"brightness":50,"turn":true}`, false},
		{"unknown kind", Command{}, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, payload, err := tt.cmd.Translate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Translate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if sub != tt.wantSubPath || payload != tt.wantPayload {
				t.Errorf("Translate() = %q %q, want %q %q", sub, payload, tt.wantSubPath, tt.wantPayload)
			}
		})
	}
}
