// Package gpio implements the GPIO control plane: pin registry, line
// backends, edge listeners, and event dispatch.
package gpio

import (
	"encoding/json"
	"fmt"
)

// PinId identifies a declared pin. Chosen as uint32 (rather than string) to
// match the deployment convention fixed across config keys, URL paths,
// history map and event payloads.
type PinId = uint32

// GpioState is both the electrical mode a pin is configured for and, reused
// as GpioCapability, a mode a pin is permitted to assume per configuration.
type GpioState int

const (
	Disabled GpioState = iota
	PushPull
	OpenDrain
	OpenSource
	Floating
	PullUp
	PullDown
	Error
)

// GpioCapability is the same value space as GpioState, reused per spec.
type GpioCapability = GpioState

var stateNames = map[GpioState]string{
	Disabled:   "disabled",
	PushPull:   "push-pull",
	OpenDrain:  "open-drain",
	OpenSource: "open-source",
	Floating:   "floating",
	PullUp:     "pull-up",
	PullDown:   "pull-down",
	Error:      "error",
}

var namesToState = func() map[string]GpioState {
	m := make(map[string]GpioState, len(stateNames))
	for k, v := range stateNames {
		m[v] = k
	}
	return m
}()

func (s GpioState) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("GpioState(%d)", int(s))
}

// IsWritable reports whether the state is one of the output drive modes.
func (s GpioState) IsWritable() bool {
	switch s {
	case PushPull, OpenDrain, OpenSource:
		return true
	default:
		return false
	}
}

// IsEdgeDetectable reports whether the state is one of the input modes.
func (s GpioState) IsEdgeDetectable() bool {
	switch s {
	case Floating, PullUp, PullDown:
		return true
	default:
		return false
	}
}

// MarshalJSON renders the kebab-case wire form.
func (s GpioState) MarshalJSON() ([]byte, error) {
	n, ok := stateNames[s]
	if !ok {
		return nil, fmt.Errorf("gpio: cannot marshal unknown state %d", int(s))
	}
	return []byte(`"` + n + `"`), nil
}

// UnmarshalJSON parses the kebab-case wire form.
func (s *GpioState) UnmarshalJSON(data []byte) error {
	name, err := unquote(data)
	if err != nil {
		return err
	}
	st, ok := namesToState[name]
	if !ok {
		return fmt.Errorf("gpio: unknown state %q", name)
	}
	*s = st
	return nil
}

// EdgeDetect selects which logical transitions a pin reports.
type EdgeDetect int

const (
	EdgeNone EdgeDetect = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

var edgeNames = map[EdgeDetect]string{
	EdgeNone:    "none",
	EdgeRising:  "rising",
	EdgeFalling: "falling",
	EdgeBoth:    "both",
}

var namesToEdge = func() map[string]EdgeDetect {
	m := make(map[string]EdgeDetect, len(edgeNames))
	for k, v := range edgeNames {
		m[v] = k
	}
	return m
}()

func (e EdgeDetect) String() string {
	if n, ok := edgeNames[e]; ok {
		return n
	}
	return fmt.Sprintf("EdgeDetect(%d)", int(e))
}

func (e EdgeDetect) MarshalJSON() ([]byte, error) {
	n, ok := edgeNames[e]
	if !ok {
		return nil, fmt.Errorf("gpio: cannot marshal unknown edge %d", int(e))
	}
	return []byte(`"` + n + `"`), nil
}

func (e *EdgeDetect) UnmarshalJSON(data []byte) error {
	name, err := unquote(data)
	if err != nil {
		return err
	}
	ed, ok := namesToEdge[name]
	if !ok {
		return fmt.Errorf("gpio: unknown edge %q", name)
	}
	*e = ed
	return nil
}

func unquote(data []byte) (string, error) {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return "", fmt.Errorf("gpio: expected JSON string, got %s", data)
	}
	return string(data[1 : len(data)-1]), nil
}

// PinConfig is immutable, declared by the configuration file.
type PinConfig struct {
	Name         string          `json:"name"`
	ChipPath     string          `json:"chip"`
	LineOffset   uint32          `json:"line"`
	Capabilities map[GpioState]struct{} `json:"capabilities"`
}

// HasCapability reports whether state is in the declared capability set.
func (c PinConfig) HasCapability(state GpioState) bool {
	_, ok := c.Capabilities[state]
	return ok
}

// MarshalJSON renders capabilities as a JSON array of kebab-case strings.
func (c PinConfig) MarshalJSON() ([]byte, error) {
	caps := make([]GpioState, 0, len(c.Capabilities))
	for s := range c.Capabilities {
		caps = append(caps, s)
	}
	aux := struct {
		Name         string      `json:"name"`
		ChipPath     string      `json:"chip"`
		LineOffset   uint32      `json:"line"`
		Capabilities []GpioState `json:"capabilities"`
	}{c.Name, c.ChipPath, c.LineOffset, caps}
	return json.Marshal(aux)
}

// UnmarshalJSON parses capabilities from a JSON array of kebab-case strings.
func (c *PinConfig) UnmarshalJSON(data []byte) error {
	aux := struct {
		Name         string      `json:"name"`
		ChipPath     string      `json:"chip"`
		LineOffset   uint32      `json:"line"`
		Capabilities []GpioState `json:"capabilities"`
	}{}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	c.Name = aux.Name
	c.ChipPath = aux.ChipPath
	c.LineOffset = aux.LineOffset
	c.Capabilities = make(map[GpioState]struct{}, len(aux.Capabilities))
	for _, s := range aux.Capabilities {
		c.Capabilities[s] = struct{}{}
	}
	return nil
}

// PinSettings is the mutable per-pin configuration.
type PinSettings struct {
	State      GpioState  `json:"state"`
	Edge       EdgeDetect `json:"edge"`
	DebounceMs uint64     `json:"debounce_ms"`
}

// DefaultPinSettings is the neutral settings value: Disabled, no edge, no debounce.
func DefaultPinSettings() PinSettings {
	return PinSettings{State: Disabled, Edge: EdgeNone, DebounceMs: 0}
}

// Validate checks the settings invariants. This is the check shared by
// every backend implementation in addition to whatever the backend itself
// enforces locally.
func (s PinSettings) Validate() error {
	if s.State == Error {
		return InvalidState("state must not be Error")
	}
	if s.State == Disabled {
		if s.Edge != EdgeNone {
			return InvalidState("disabled pin cannot have edge detection enabled")
		}
		if s.DebounceMs != 0 {
			return InvalidState("disabled pin cannot have a debounce period")
		}
		return nil
	}
	if s.Edge == EdgeNone && s.DebounceMs != 0 {
		return InvalidState("debounce requires edge detection to be enabled")
	}
	if s.Edge != EdgeNone && !s.State.IsEdgeDetectable() {
		return InvalidState("edge detection requires an input-capable state")
	}
	return nil
}

// EdgeEvent is a single observed transition.
type EdgeEvent struct {
	PinId       PinId      `json:"pin_id"`
	Edge        EdgeDetect `json:"edge"`
	TimestampMs uint64     `json:"timestamp_ms"`
}

// PinDescriptor is the combined view returned by list/describe operations.
type PinDescriptor struct {
	Info     PinConfig   `json:"info"`
	Settings PinSettings `json:"settings"`
}
