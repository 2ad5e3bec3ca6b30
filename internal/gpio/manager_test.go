package gpio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePins() map[PinId]PinConfig {
	return map[PinId]PinConfig{
		1: {Name: "led", ChipPath: "/dev/gpiochip0", LineOffset: 1, Capabilities: capSet(PushPull)},
		2: {Name: "button", ChipPath: "/dev/gpiochip0", LineOffset: 2, Capabilities: capSet(Floating, PullUp, PullDown)},
		42: {Name: "general", ChipPath: "/dev/gpiochip0", LineOffset: 3,
			Capabilities: capSet(Disabled, PushPull, OpenDrain, OpenSource, Floating, PullUp, PullDown)},
	}
}

func capSet(states ...GpioState) map[GpioState]struct{} {
	m := make(map[GpioState]struct{}, len(states))
	for _, s := range states {
		m[s] = struct{}{}
	}
	return m
}

func newTestManager() *Manager {
	pins := samplePins()
	backend := NewMockBackend()
	dispatcher := NewDispatcher([]PinId{1, 2, 42}, 32, DefaultBroadcastCapacity)
	return NewManager(pins, backend, dispatcher)
}

func TestManagerListPinsDefaultsToDisabled(t *testing.T) {
	m := newTestManager()
	pins := m.ListPins()
	require.Len(t, pins, 3)
	assert.Equal(t, Disabled, pins[1].Settings.State)
}

func TestManagerUnknownPinIsNotFound(t *testing.T) {
	m := newTestManager()
	_, err := m.GetPinInfo(999)
	require.Error(t, err)
	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, KindNotFoundPin, gerr.Kind)
}

func TestManagerSetSettingsRejectsUnsupportedState(t *testing.T) {
	m := newTestManager()
	err := m.SetPinSettings(2, PinSettings{State: PushPull})
	require.Error(t, err)
	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, KindInvalidState, gerr.Kind)
}

func TestManagerWriteReadHappyPath(t *testing.T) {
	m := newTestManager()
	require.NoError(t, m.SetPinSettings(1, PinSettings{State: PushPull}))
	require.NoError(t, m.WriteValue(1, 1))

	v, err := m.ReadValue(1)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), v)
}

func TestManagerRejectsWriteOnNonWritablePin(t *testing.T) {
	m := newTestManager()
	err := m.WriteValue(2, 1)
	require.Error(t, err)
	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, KindInvalidState, gerr.Kind)
}

func TestManagerRejectsOutOfRangeValue(t *testing.T) {
	m := newTestManager()
	err := m.WriteValue(1, 5)
	require.Error(t, err)
	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, KindInvalidValue, gerr.Kind)
}

func TestManagerEventHistoryBound(t *testing.T) {
	m := newTestManager()
	require.NoError(t, m.SetPinSettings(42, PinSettings{State: PullUp, Edge: EdgeBoth}))

	backend := m.backend.(*MockBackend)
	for i := 0; i < 100; i++ {
		require.NoError(t, backend.SimulateEdge(42, i%2 == 0))
	}

	events, err := m.GetEvents(42, 0)
	require.NoError(t, err)
	assert.Len(t, events, 32)
}
