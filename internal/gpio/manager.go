package gpio

import (
	"sort"
)

// Manager is the façade through which the HTTP layer drives a Backend. It
// owns capability validation so no Backend implementation has to repeat it,
// mirroring GenericGpioManager (original_source/src/gpio.rs).
type Manager struct {
	pins       map[PinId]PinConfig
	orderedIDs []PinId
	backend    Backend
	dispatcher *Dispatcher
}

// NewManager builds a façade over backend for the given pin configuration.
// dispatcher must already have history rings for every id in pins (see
// NewDispatcher).
func NewManager(pins map[PinId]PinConfig, backend Backend, dispatcher *Dispatcher) *Manager {
	ids := make([]PinId, 0, len(pins))
	for id := range pins {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return &Manager{
		pins:       pins,
		orderedIDs: ids,
		backend:    backend,
		dispatcher: dispatcher,
	}
}

func (m *Manager) pinConfig(pinID PinId) (PinConfig, error) {
	cfg, ok := m.pins[pinID]
	if !ok {
		return PinConfig{}, NotFoundPin("pin %d is not configured", pinID)
	}
	return cfg, nil
}

// capabilityMatches mirrors GenericGpioManager::capability_matches: Disabled
// is always reachable regardless of the pin's declared capability set, and
// Error is never settable from the API.
func capabilityMatches(state GpioState, cfg PinConfig) bool {
	switch state {
	case Error:
		return false
	case Disabled:
		return true
	default:
		return cfg.HasCapability(state)
	}
}

// ListPins returns every configured pin's descriptor, keyed by pin id. The
// result is a map and carries no order; PinIDs gives the ids in ascending
// order.
func (m *Manager) ListPins() map[PinId]PinDescriptor {
	out := make(map[PinId]PinDescriptor, len(m.pins))
	for _, id := range m.orderedIDs {
		out[id] = PinDescriptor{Info: m.pins[id], Settings: m.backend.GetSettings(id)}
	}
	return out
}

// PinIDs returns the configured pin ids in ascending order.
func (m *Manager) PinIDs() []PinId {
	return m.orderedIDs
}

func (m *Manager) GetPinDescriptor(pinID PinId) (PinDescriptor, error) {
	cfg, err := m.pinConfig(pinID)
	if err != nil {
		return PinDescriptor{}, err
	}
	return PinDescriptor{Info: cfg, Settings: m.backend.GetSettings(pinID)}, nil
}

func (m *Manager) GetPinInfo(pinID PinId) (PinConfig, error) {
	return m.pinConfig(pinID)
}

func (m *Manager) GetPinSettings(pinID PinId) (PinSettings, error) {
	if _, err := m.pinConfig(pinID); err != nil {
		return PinSettings{}, err
	}
	return m.backend.GetSettings(pinID), nil
}

// SetPinSettings validates settings against the pin's declared capabilities
// and edge-detectability before delegating to the backend.
func (m *Manager) SetPinSettings(pinID PinId, settings PinSettings) error {
	cfg, err := m.pinConfig(pinID)
	if err != nil {
		return err
	}

	if !capabilityMatches(settings.State, cfg) {
		return InvalidState("state %s not supported by pin %d", settings.State, pinID)
	}

	var sink EventSink
	if settings.Edge != EdgeNone {
		if !settings.State.IsEdgeDetectable() {
			return InvalidState("edge detection requires an input-capable state for pin %d", pinID)
		}
		sink = m.dispatcher
	}

	return m.backend.SetSettings(pinID, cfg, settings, sink)
}

func (m *Manager) ReadValue(pinID PinId) (uint8, error) {
	if _, err := m.pinConfig(pinID); err != nil {
		return 0, err
	}
	return m.backend.ReadValue(pinID)
}

func (m *Manager) WriteValue(pinID PinId, value uint8) error {
	if value > 1 {
		return InvalidValue("value must be 0 or 1")
	}
	if _, err := m.pinConfig(pinID); err != nil {
		return err
	}
	return m.backend.WriteValue(pinID, value)
}

func (m *Manager) SubscribeEvents() *Subscription {
	return m.dispatcher.Subscribe()
}

// GetEvents returns up to limit events for pinID, oldest first. limit <= 0
// returns the full retained history.
func (m *Manager) GetEvents(pinID PinId, limit int) ([]EdgeEvent, error) {
	if _, err := m.pinConfig(pinID); err != nil {
		return nil, err
	}
	events, _ := m.dispatcher.Events(pinID, limit)
	return events, nil
}

func (m *Manager) GetLastEvent(pinID PinId) (*EdgeEvent, error) {
	if _, err := m.pinConfig(pinID); err != nil {
		return nil, err
	}
	ev, found, _ := m.dispatcher.LastEvent(pinID)
	if !found {
		return nil, nil
	}
	return &ev, nil
}
