package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmgr/gmgr/internal/gpio"
)

const testEventHistoryCapacity = 32

func capSet(states ...gpio.GpioState) map[gpio.GpioState]struct{} {
	m := make(map[gpio.GpioState]struct{}, len(states))
	for _, s := range states {
		m[s] = struct{}{}
	}
	return m
}

// newTestApp wires a manager over the mock backend with the sample
// three-pin configuration from original_source/tests/api_tests.rs, mounted
// under /api/v1 as SPEC_FULL.md's scenarios assume. It returns the mock
// backend alongside the app so tests can drive edges directly, the only way
// the mock backend produces events on the edge-detectable pins (2, 42),
// since their states are never writable.
func newTestApp(t *testing.T) (*fiber.App, *gpio.MockBackend) {
	t.Helper()

	pins := map[gpio.PinId]gpio.PinConfig{
		1: {Name: "led", ChipPath: "/dev/gpiochip0", LineOffset: 17, Capabilities: capSet(gpio.PushPull)},
		2: {Name: "button", ChipPath: "/dev/gpiochip0", LineOffset: 27,
			Capabilities: capSet(gpio.Floating, gpio.PullUp, gpio.PullDown)},
		42: {Name: "general", ChipPath: "/dev/gpiochip0", LineOffset: 5, Capabilities: capSet(
			gpio.Disabled, gpio.PushPull, gpio.OpenDrain, gpio.OpenSource, gpio.Floating, gpio.PullUp, gpio.PullDown)},
	}

	backend := gpio.NewMockBackend()
	dispatcher := gpio.NewDispatcher([]gpio.PinId{1, 2, 42}, testEventHistoryCapacity, gpio.DefaultBroadcastCapacity)
	manager := gpio.NewManager(pins, backend, dispatcher)

	app := fiber.New()
	NewServer(manager, nil, "/api/v1").Mount(app)
	return app, backend
}

func do(t *testing.T, app *fiber.App, method, path, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

// S1: list default.
func TestListGpiosDefaultsToDisabled(t *testing.T) {
	app, _ := newTestApp(t)
	resp := do(t, app, fiber.MethodGet, "/api/v1/gpios", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var pins map[gpio.PinId]gpio.PinDescriptor
	require.NoError(t, json.Unmarshal(body, &pins))
	require.Len(t, pins, 3)
	assert.Equal(t, gpio.Disabled, pins[1].Settings.State)
}

// S2: wrong method.
func TestWrongMethodReturns405(t *testing.T) {
	app, _ := newTestApp(t)
	resp := do(t, app, fiber.MethodPost, "/api/v1/gpio/1/info", "")
	assert.Equal(t, fiber.StatusMethodNotAllowed, resp.StatusCode)
}

// S3: unknown pin.
func TestUnknownPinReturns404(t *testing.T) {
	app, _ := newTestApp(t)
	resp := do(t, app, fiber.MethodGet, "/api/v1/gpio/999/info", "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

// S4: happy path write/read.
func TestWriteThenReadValue(t *testing.T) {
	app, _ := newTestApp(t)

	resp := do(t, app, fiber.MethodPost, "/api/v1/gpio/1/settings", `{"state":"push-pull"}`)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = do(t, app, fiber.MethodPost, "/api/v1/gpio/1/value", "1")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = do(t, app, fiber.MethodGet, "/api/v1/gpio/1/value", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "1", strings.TrimSpace(string(body)))
}

// S5: non-writable rejection.
func TestWriteToNonWritablePinFails(t *testing.T) {
	app, _ := newTestApp(t)
	resp := do(t, app, fiber.MethodPost, "/api/v1/gpio/2/value", "1")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

// S6: history bound, driven through the full settings->edge->events round
// trip. The mock backend's edge-detectable states (pull-up here) are never
// writable, so the transitions are driven via SimulateEdge directly on the
// backend rather than through the value endpoint, the same way an external
// signal would toggle a real input line.
func TestEventHistoryBoundedThroughAPI(t *testing.T) {
	app, backend := newTestApp(t)

	resp := do(t, app, fiber.MethodPost, "/api/v1/gpio/42/settings", `{"state":"pull-up","edge":"both"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	const driven = testEventHistoryCapacity + 10
	for i := 0; i < driven; i++ {
		require.NoError(t, backend.SimulateEdge(42, i%2 == 0))
	}

	resp = do(t, app, fiber.MethodGet, "/api/v1/gpio/42/events", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var events []gpio.EdgeEvent
	require.NoError(t, json.Unmarshal(body, &events))

	require.Len(t, events, testEventHistoryCapacity, "history must be bounded to event_history_capacity")

	for i := 0; i < len(events)-1; i++ {
		assert.LessOrEqual(t, events[i].TimestampMs, events[i+1].TimestampMs, "events must be chronological")
	}

	last := events[len(events)-1]
	lastDrivenIsRising := (driven-1)%2 == 0
	if lastDrivenIsRising {
		assert.Equal(t, gpio.EdgeRising, last.Edge, "newest event must be the last driven edge")
	} else {
		assert.Equal(t, gpio.EdgeFalling, last.Edge, "newest event must be the last driven edge")
	}
}

func TestInvalidPinIDIsBadRequest(t *testing.T) {
	app, _ := newTestApp(t)
	resp := do(t, app, fiber.MethodGet, "/api/v1/gpio/not-a-number/info", "")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
