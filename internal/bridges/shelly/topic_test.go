package shelly

import (
	"errors"
	"testing"
)

func TestParseTopic(t *testing.T) {
	tests := []struct {
		name       string
		topic      string
		wantType   string
		wantID     string
		wantProp   string
		wantSubKey string
	}{
		{"three parts verbatim", "shellies/shellyht-ABC123/online", "shellyht", "ABC123", "online", ""},
		{"sensor lux", "shellies/shellydw2-D1/sensor/lux", "shellydw2", "D1", "illuminance", "lux"},
		{"sensor passthrough", "shellies/shellyht-ABC123/sensor/temperature", "shellyht", "ABC123", "temperature", "temperature"},
		{"relay index", "shellies/shelly1l-A4CF12/relay/0", "shelly1l", "A4CF12", "relay0", "0"},
		{"input index", "shellies/shelly1l-A4CF12/input/1", "shelly1l", "A4CF12", "input1", "1"},
		{"input event index", "shellies/shelly1l-A4CF12/input_event/0", "shelly1l", "A4CF12", "input_event0", "0"},
		{"status battery sentinel", "shellies/shellyplusht-P1/status/devicepower:0", "shellyplusht", "P1", "battery", "devicepower:0"},
		{"status separator stripped", "shellies/shellyplusht-P1/status/temperature:0", "shellyplusht", "P1", "temperature0", "temperature:0"},
		{"relay power meter", "shellies/shelly1l-A4CF12/relay/0/power", "shelly1l", "A4CF12", "powerMeter0", "power"},
		{"type containing delimiter", "shellies/shellyplug-s-7B2C/relay/0", "shellyplug-s", "7B2C", "relay0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTopic(tt.topic)
			if err != nil {
				t.Fatalf("ParseTopic(%q) error = %v", tt.topic, err)
			}
			if got.DeviceType != tt.wantType {
				t.Errorf("DeviceType = %q, want %q", got.DeviceType, tt.wantType)
			}
			if got.InstanceID != tt.wantID {
				t.Errorf("InstanceID = %q, want %q", got.InstanceID, tt.wantID)
			}
			if got.Property != tt.wantProp {
				t.Errorf("Property = %q, want %q", got.Property, tt.wantProp)
			}
			if got.SubProperty != tt.wantSubKey {
				t.Errorf("SubProperty = %q, want %q", got.SubProperty, tt.wantSubKey)
			}
			if got.AddressPrefix != tt.wantType+"-"+tt.wantID {
				t.Errorf("AddressPrefix = %q", got.AddressPrefix)
			}
		})
	}
}

func TestParseTopic_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		topic string
	}{
		{"empty", ""},
		{"root only", "shellies"},
		{"no delimiter", "shellies/announce"},
		{"delimiter at start", "shellies/-ABC/online"},
		{"device only", "shellies/shellyht-ABC"},
		{"unknown four part kind", "shellies/shellyht-ABC/light/0"},
		{"empty sub key", "shellies/shelly1-ABC/relay/"},
		{"unknown five part kind", "shellies/shelly1-ABC/input/0/power"},
		{"relay five part not power", "shellies/shelly1-ABC/relay/0/energy"},
		{"six parts", "shellies/shelly1-ABC/relay/0/power/x"},
		{"empty property", "shellies/shelly1-ABC/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTopic(tt.topic)
			if !errors.Is(err, ErrMalformedTopic) {
				t.Errorf("ParseTopic(%q) error = %v, want ErrMalformedTopic", tt.topic, err)
			}
		})
	}
}

func TestCommandTopic(t *testing.T) {
	got := CommandTopic("shelly1l-A4CF12", "relay/0/command")
	if got != "shellies/shelly1l-A4CF12/relay/0/command" {
		t.Errorf("CommandTopic() = %q", got)
	}
	if SubscribeTopic() != "shellies/#" {
		t.Errorf("SubscribeTopic() = %q", SubscribeTopic())
	}
}
