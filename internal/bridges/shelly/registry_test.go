package shelly

import (
	"sync"
	"testing"
)

func mustParse(t *testing.T, topic string) TopicIdentifier {
	t.Helper()
	ident, err := ParseTopic(topic)
	if err != nil {
		t.Fatalf("ParseTopic(%q) error = %v", topic, err)
	}
	return ident
}

func TestRegistry_GetOrCreateIsIdempotent(t *testing.T) {
	notifier := &recordingNotifier{}
	r := NewRegistry(RegistryOptions{Notifier: notifier})
	ident := mustParse(t, "shellies/shelly1l-A4CF12/relay/0")

	first, err := r.GetOrCreate(ident)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	second, err := r.GetOrCreate(ident)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}

	if first != second {
		t.Error("GetOrCreate() returned different devices for the same instance")
	}
	if got := len(notifier.OfKind(NotificationDeviceAdded)); got != 1 {
		t.Errorf("device_added notifications = %d, want 1", got)
	}
}

func TestRegistry_ConcurrentFirstSight(t *testing.T) {
	notifier := &recordingNotifier{}
	r := NewRegistry(RegistryOptions{Notifier: notifier})
	ident := mustParse(t, "shellies/shellyswitch25-C0FFEE/relay/1")

	const callers = 32
	devices := make([]*Device, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d, err := r.GetOrCreate(ident)
			if err != nil {
				t.Errorf("GetOrCreate() error = %v", err)
				return
			}
			devices[i] = d
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		if devices[i] != devices[0] {
			t.Fatalf("caller %d saw a different device", i)
		}
	}
	if got := len(notifier.OfKind(NotificationDeviceAdded)); got != 1 {
		t.Errorf("device_added notifications = %d, want 1", got)
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}
}

func TestRegistry_UnknownTypeCreatesNothing(t *testing.T) {
	notifier := &recordingNotifier{}
	r := NewRegistry(RegistryOptions{Notifier: notifier})

	payloads := []string{"on", "1", "", `{"event_cnt":1,"event":"S"}`}
	for _, p := range payloads {
		ident := mustParse(t, "shellies/shellyfoobar-abc123/relay/0")
		if _, err := r.GetOrCreate(ident); err == nil {
			t.Fatalf("GetOrCreate() with payload %q should fail", p)
		}
	}

	if r.Count() != 0 {
		t.Errorf("Count() = %d, want 0", r.Count())
	}
	if len(notifier.All()) != 0 {
		t.Errorf("notifications = %d, want 0", len(notifier.All()))
	}
}

func TestRegistry_ModeSelection(t *testing.T) {
	r := NewRegistry(RegistryOptions{Modes: map[string]string{
		"ROLL":  "roller",
		"BAD":   "shutter",
		"PLAIN": "roller",
	}})

	tests := []struct {
		topic string
		want  Mode
	}{
		{"shellies/shellyswitch25-ROLL/online", ModeRoller},
		{"shellies/shellyswitch25-BAD/online", ModeRelay},
		{"shellies/shelly1-PLAIN/online", ModeRelay},
		{"shellies/shellyswitch25-OTHER/online", ModeRelay},
	}
	for _, tt := range tests {
		d, err := r.GetOrCreate(mustParse(t, tt.topic))
		if err != nil {
			t.Fatalf("GetOrCreate(%s) error = %v", tt.topic, err)
		}
		if d.Mode() != tt.want {
			t.Errorf("%s mode = %s, want %s", tt.topic, d.Mode(), tt.want)
		}
	}
}

func TestRegistry_LookupAndPrefix(t *testing.T) {
	r := NewRegistry(RegistryOptions{})
	if _, err := r.GetOrCreate(mustParse(t, "shellies/shellyplug-s-7B2C/relay/0")); err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}

	prefix, ok := r.AddressPrefix("7B2C")
	if !ok || prefix != "shellyplug-s-7B2C" {
		t.Errorf("AddressPrefix() = %q, %v", prefix, ok)
	}
	if _, ok := r.Lookup("shelly-mqtt-7B2C"); !ok {
		t.Error("Lookup() should accept the host id form")
	}
	if _, ok := r.AddressPrefix("missing"); ok {
		t.Error("AddressPrefix() for unknown device should be false")
	}
	if len(r.List()) != 1 {
		t.Errorf("List() = %d devices, want 1", len(r.List()))
	}
}
