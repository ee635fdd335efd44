package shelly

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// CommandKind is the closed set of outbound operations.
type CommandKind int

// Command kinds.
const (
	CommandSetRelay CommandKind = iota + 1
	CommandRollerState
	CommandRollerPosition
	CommandSetWhite
)

// String returns a stable name for logs and the command log.
func (k CommandKind) String() string {
	switch k {
	case CommandSetRelay:
		return "set_relay"
	case CommandRollerState:
		return "roller_state"
	case CommandRollerPosition:
		return "roller_position"
	case CommandSetWhite:
		return "set_white"
	default:
		return "unknown"
	}
}

// Command describes one outbound operation on one device. Devices produce
// commands; the Dispatcher turns them into topics and payloads.
type Command struct {
	ID       string      `json:"id"`
	DeviceID string      `json:"device_id"`
	Kind     CommandKind `json:"-"`

	Channel    int    `json:"channel,omitempty"`
	On         bool   `json:"on,omitempty"`
	State      string `json:"state,omitempty"`
	Position   int    `json:"position,omitempty"`
	Brightness int    `json:"brightness,omitempty"`

	IssuedAt time.Time `json:"issued_at"`
}

// whitePayload is the JSON body of white/0/set.
type whitePayload struct {
	Brightness int  `json:"brightness"`
	Turn       bool `json:"turn"`
}

// newCommand creates a command for this device with a fresh id.
func (d *Device) newCommand(kind CommandKind, fill func(*Command)) Command {
	c := Command{
		ID:       "cmd-" + uuid.NewString(),
		DeviceID: d.id,
		Kind:     kind,
		IssuedAt: time.Now().UTC(),
	}
	fill(&c)
	return c
}

// Translate returns the sub path and payload that carry out the command.
//
//	set_relay        relay/<n>/command      on | off
//	roller_state     roller/0/command       open | stop | close
//	roller_position  roller/0/command/pos   0..100
//	set_white        white/0/set            {"brightness":N,"turn":bool}
func (c Command) Translate() (subPath, payload string, err error) {
	switch c.Kind {
	case CommandSetRelay:
		state := "off"
		if c.On {
			state = "on"
		}
		return fmt.Sprintf("relay/%d/command", c.Channel), state, nil

	case CommandRollerState:
		switch c.State {
		case "open", "stop", "close":
			return "roller/0/command", c.State, nil
		default:
			return "", "", fmt.Errorf("%w: roller state %q", ErrInvalidValue, c.State)
		}

	case CommandRollerPosition:
		return "roller/0/command/pos", strconv.Itoa(c.Position), nil

	case CommandSetWhite:
		body, err := json.Marshal(whitePayload{Brightness: c.Brightness, Turn: c.On})
		if err != nil {
			return "", "", fmt.Errorf("encoding white payload: %w", err)
		}
		return "white/0/set", string(body), nil

	default:
		return "", "", fmt.Errorf("%w: command kind %d", ErrInvalidValue, c.Kind)
	}
}
