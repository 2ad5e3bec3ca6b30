package gpio

import (
	"sync"
	"time"
)

// MockBackend is a software-simulated line backend for tests and
// hardware-less deployments. WriteValue transitions on writable pins run
// through the same edge logic, but a writable state never has edge
// detection enabled (PinSettings.Validate rejects it), so they never emit
// events. Edge-detectable input pins (Floating, PullUp, PullDown) are never
// writable, so SimulateEdge drives their observed level directly, the same
// way an external signal would toggle a real input line; it is the only
// path that produces edge events.
type MockBackend struct {
	mu   sync.RWMutex
	pins map[PinId]*mockPinState
}

type mockPinState struct {
	mu        sync.Mutex
	settings  PinSettings
	value     uint8
	sink      EventSink
	lastEvent time.Time
	hasLast   bool
}

// NewMockBackend returns an empty mock backend; every pin starts unconfigured.
func NewMockBackend() *MockBackend {
	return &MockBackend{pins: make(map[PinId]*mockPinState)}
}

func (b *MockBackend) entry(pinID PinId) *mockPinState {
	b.mu.RLock()
	p, ok := b.pins[pinID]
	b.mu.RUnlock()
	if ok {
		return p
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.pins[pinID]; ok {
		return p
	}
	p = &mockPinState{settings: DefaultPinSettings()}
	b.pins[pinID] = p
	return p
}

func (b *MockBackend) GetSettings(pinID PinId) PinSettings {
	b.mu.RLock()
	p, ok := b.pins[pinID]
	b.mu.RUnlock()
	if !ok {
		return DefaultPinSettings()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settings
}

func (b *MockBackend) SetSettings(pinID PinId, _ PinConfig, settings PinSettings, sink EventSink) error {
	if err := validateSettings(settings); err != nil {
		return err
	}

	p := b.entry(pinID)
	p.mu.Lock()
	defer p.mu.Unlock()

	p.settings = settings
	switch {
	case settings.State == Disabled:
		p.value = 0
		p.sink = nil
	case settings.Edge != EdgeNone:
		p.sink = sink
		p.hasLast = false
	default:
		p.sink = nil
	}
	return nil
}

func (b *MockBackend) lookup(pinID PinId) (*mockPinState, bool) {
	b.mu.RLock()
	p, ok := b.pins[pinID]
	b.mu.RUnlock()
	return p, ok
}

func (b *MockBackend) ReadValue(pinID PinId) (uint8, error) {
	p, ok := b.lookup(pinID)
	if !ok {
		return 0, InvalidState("pin not configured, set state first")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.settings.State == Disabled {
		return 0, InvalidState("pin is disabled and cannot be read")
	}
	return p.value, nil
}

func (b *MockBackend) WriteValue(pinID PinId, value uint8) error {
	p, ok := b.lookup(pinID)
	if !ok {
		return InvalidState("pin not configured, set state first")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.settings.State.IsWritable() {
		return InvalidState("pin must be in a writable state to set value")
	}

	p.applyTransition(pinID, value)
	return nil
}

// applyTransition records value, and if it's a rising/falling transition
// matching the pin's configured edge that clears debounce, dispatches an
// EdgeEvent. Callers must hold p.mu.
func (p *mockPinState) applyTransition(pinID PinId, value uint8) {
	old := p.value
	p.value = value

	var observed EdgeDetect
	switch {
	case old == 0 && value == 1:
		observed = EdgeRising
	case old == 1 && value == 0:
		observed = EdgeFalling
	default:
		return
	}

	if !edgeMatches(p.settings.Edge, observed) {
		return
	}

	now := time.Now()
	debounce := time.Duration(p.settings.DebounceMs) * time.Millisecond
	if p.hasLast && now.Sub(p.lastEvent) < debounce {
		return
	}
	p.lastEvent = now
	p.hasLast = true

	if p.sink != nil {
		p.sink.Dispatch(EdgeEvent{
			PinId:       pinID,
			Edge:        observed,
			TimestampMs: uint64(now.UnixMilli()),
		})
	}
}

func edgeMatches(configured, observed EdgeDetect) bool {
	switch configured {
	case EdgeNone:
		return false
	case EdgeRising:
		return observed == EdgeRising
	case EdgeFalling:
		return observed == EdgeFalling
	case EdgeBoth:
		return observed == EdgeRising || observed == EdgeFalling
	default:
		return false
	}
}

// SimulateEdge drives pinID's observed level directly, bypassing the
// writable gate WriteValue applies. Edge-detectable input states (Floating,
// PullUp, PullDown) are never writable, so this is the only way the mock
// backend can produce edges on a legally edge-configured pin, standing in
// for whatever external signal toggles a real input line.
func (b *MockBackend) SimulateEdge(pinID PinId, high bool) error {
	p, ok := b.lookup(pinID)
	if !ok {
		return InvalidState("pin not configured, set state first")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.settings.State == Disabled {
		return InvalidState("pin is disabled and cannot observe a transition")
	}

	v := uint8(0)
	if high {
		v = 1
	}
	p.applyTransition(pinID, v)
	return nil
}
