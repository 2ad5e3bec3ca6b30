package gpio

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGpioStateJSONRoundTrip(t *testing.T) {
	for _, s := range []GpioState{Disabled, PushPull, OpenDrain, OpenSource, Floating, PullUp, PullDown, Error} {
		data, err := json.Marshal(s)
		require.NoError(t, err)

		var decoded GpioState
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, s, decoded)
	}
}

func TestGpioStateWireNames(t *testing.T) {
	data, err := json.Marshal(OpenDrain)
	require.NoError(t, err)
	assert.Equal(t, `"open-drain"`, string(data))
}

func TestEdgeDetectJSONRoundTrip(t *testing.T) {
	for _, e := range []EdgeDetect{EdgeNone, EdgeRising, EdgeFalling, EdgeBoth} {
		data, err := json.Marshal(e)
		require.NoError(t, err)

		var decoded EdgeDetect
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, e, decoded)
	}
}

func TestPinConfigJSONRoundTrip(t *testing.T) {
	cfg := PinConfig{
		Name:         "button",
		ChipPath:     "/dev/gpiochip0",
		LineOffset:   27,
		Capabilities: map[GpioState]struct{}{Floating: {}, PullUp: {}, PullDown: {}},
	}

	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	var decoded PinConfig
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, cfg.Name, decoded.Name)
	assert.Equal(t, cfg.ChipPath, decoded.ChipPath)
	assert.True(t, decoded.HasCapability(Floating))
	assert.True(t, decoded.HasCapability(PullUp))
	assert.False(t, decoded.HasCapability(PushPull))
}

func TestPinSettingsValidateDisabledMustBeBare(t *testing.T) {
	err := PinSettings{State: Disabled, Edge: EdgeRising}.Validate()
	require.Error(t, err)

	err = PinSettings{State: Disabled, DebounceMs: 10}.Validate()
	require.Error(t, err)

	require.NoError(t, PinSettings{State: Disabled}.Validate())
}

func TestPinSettingsValidateDebounceRequiresEdge(t *testing.T) {
	err := PinSettings{State: PullUp, DebounceMs: 10}.Validate()
	require.Error(t, err)
}

func TestPinSettingsValidateEdgeRequiresInputState(t *testing.T) {
	err := PinSettings{State: PushPull, Edge: EdgeRising}.Validate()
	require.Error(t, err)
}

func TestPinSettingsValidateRejectsErrorState(t *testing.T) {
	err := PinSettings{State: Error}.Validate()
	require.Error(t, err)
}

func TestPinSettingsValidateAcceptsEdgeOnInputState(t *testing.T) {
	require.NoError(t, PinSettings{State: PullUp, Edge: EdgeBoth, DebounceMs: 5}.Validate())
}
