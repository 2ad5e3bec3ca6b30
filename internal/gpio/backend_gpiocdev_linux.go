//go:build linux
// +build linux

package gpio

import (
	"time"

	"github.com/warthog618/go-gpiocdev"
	periphgpio "periph.io/x/conn/v3/gpio"
)

// GpiocdevBackend is the real kernel-GPIO backend, built on the Linux GPIO
// character device ABI via go-gpiocdev. One *gpiocdev.Line is requested per
// configured pin and reconfigured in place across settings changes that
// don't turn edge detection off.
type GpiocdevBackend struct {
	registry *pinRegistry
	logger   Logger
}

// NewGpiocdevBackend returns a backend with no pins configured yet; a pin's
// line is requested lazily, on the first non-Disabled SetSettings call for
// it, from the pin's configured chip path.
func NewGpiocdevBackend(logger Logger) *GpiocdevBackend {
	return &GpiocdevBackend{registry: newPinRegistry(), logger: logger}
}

// gpiocdevRequest is the backend-request handle shared between the registry
// (value I/O, reconfigure) and the listener (edge polling), guarded by a
// fair lock.
type gpiocdevRequest struct {
	pinID  PinId
	fair   *fairMutex
	line   *gpiocdev.Line
	events chan gpiocdev.LineEvent
}

func (r *gpiocdevRequest) Close() error {
	return r.line.Close()
}

// WaitEvents implements edgeWaiter: block up to timeout for the first event,
// then greedily drain whatever else is already queued without blocking
// further, into a fixed-size buffer.
func (r *gpiocdevRequest) WaitEvents(timeout time.Duration, buf []EdgeEvent) (int, bool, error) {
	select {
	case first := <-r.events:
		n := 0
		if ev, ok := r.translateEvent(first); ok {
			buf[n] = ev
			n++
		}
		for n < len(buf) {
			select {
			case ev := <-r.events:
				if translated, ok := r.translateEvent(ev); ok {
					buf[n] = translated
					n++
				}
			default:
				return n, true, nil
			}
		}
		return n, true, nil
	case <-time.After(timeout):
		return 0, false, nil
	}
}

func (r *gpiocdevRequest) translateEvent(evt gpiocdev.LineEvent) (EdgeEvent, bool) {
	var edge EdgeDetect
	switch evt.Type {
	case gpiocdev.LineEventRisingEdge:
		edge = EdgeRising
	case gpiocdev.LineEventFallingEdge:
		edge = EdgeFalling
	default:
		return EdgeEvent{}, false
	}
	return EdgeEvent{PinId: r.pinID, Edge: edge, TimestampMs: uint64(evt.Timestamp.Milliseconds())}, true
}

func (b *GpiocdevBackend) GetSettings(pinID PinId) PinSettings {
	h, ok := b.registry.lookup(pinID)
	if !ok {
		return DefaultPinSettings()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.settings
}

func (b *GpiocdevBackend) SetSettings(pinID PinId, cfg PinConfig, settings PinSettings, sink EventSink) error {
	if err := validateSettings(settings); err != nil {
		return err
	}

	existing, ok := b.registry.lookup(pinID)

	if settings.State == Disabled {
		if !ok {
			return nil
		}
		existing.mu.Lock()
		if existing.listener != nil {
			existing.listener.stop()
			existing.listener = nil
		}
		req := existing.request
		existing.mu.Unlock()
		b.registry.delete(pinID)
		if req != nil {
			if err := req.Close(); err != nil {
				return Gpio("close line %d: %v", cfg.LineOffset, err)
			}
		}
		return nil
	}

	lineOpts, err := lineOptionsFor(settings.State)
	if err != nil {
		return err
	}

	if ok {
		existing.mu.Lock()
		defer existing.mu.Unlock()

		// Turning edges off stops the listener before reconfigure so it
		// never reads from a request mid-teardown.
		if existing.settings.Edge != EdgeNone && settings.Edge == EdgeNone && existing.listener != nil {
			existing.listener.stop()
			existing.listener = nil
		}

		gr := existing.request.(*gpiocdevRequest)
		reconfigOpts := lineOpts
		if settings.Edge != EdgeNone {
			reconfigOpts = append(reconfigOpts, edgeOptionsFor(settings)...)
		} else {
			reconfigOpts = append(reconfigOpts, gpiocdev.WithoutEdges)
		}

		gr.fair.Lock()
		err := gr.line.Reconfigure(reconfigOpts...)
		gr.fair.Unlock()
		if err != nil {
			return Gpio("reconfigure pin %d (line %d): %v", pinID, cfg.LineOffset, err)
		}
		existing.settings = settings

		// Turning edges back on starts a new listener after reconfigure.
		if settings.Edge != EdgeNone && existing.listener == nil {
			existing.listener = startListener(pinID, gr.fair, gr, sink, b.logger)
		}
		return nil
	}

	// The event handler is installed at request time regardless of whether
	// edges are enabled right now: go-gpiocdev only accepts WithEventHandler
	// on RequestLine, not on Reconfigure, so a pin first requested without
	// edges and later reconfigured into one still needs somewhere for the
	// kernel to deliver events. When edges are off the handler simply never
	// fires, since WithoutEdges stops the kernel from generating any.
	events := make(chan gpiocdev.LineEvent, ListenerBufferCap)
	opts := append(lineOpts, gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
		select {
		case events <- evt:
		default:
		}
	}))
	if settings.Edge != EdgeNone {
		opts = append(opts, edgeOptionsFor(settings)...)
	} else {
		opts = append(opts, gpiocdev.WithoutEdges)
	}

	line, err := gpiocdev.RequestLine(cfg.ChipPath, int(cfg.LineOffset), opts...)
	if err != nil {
		return Gpio("request pin %d (chip %s, line %d): %v", pinID, cfg.ChipPath, cfg.LineOffset, err)
	}

	gr := &gpiocdevRequest{pinID: pinID, fair: newFairMutex(), line: line, events: events}
	h := &pinHandle{lineOffset: cfg.LineOffset, settings: settings, request: gr}
	if settings.Edge != EdgeNone {
		h.listener = startListener(pinID, gr.fair, gr, sink, b.logger)
	}
	b.registry.store(pinID, h)
	return nil
}

func (b *GpiocdevBackend) ReadValue(pinID PinId) (uint8, error) {
	h, ok := b.registry.lookup(pinID)
	if !ok {
		return 0, InvalidState("pin not configured, set state first")
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	gr := h.request.(*gpiocdevRequest)
	gr.fair.Lock()
	defer gr.fair.Unlock()

	v, err := gr.line.Value()
	if err != nil {
		return 0, Gpio("read pin %d: %v", pinID, err)
	}
	return levelToValue(periphgpio.Level(v != 0)), nil
}

// levelToValue and valueToLevel bridge gpiocdev's raw 0/1 ints and the
// spec's uint8 wire value through periph.io/x/conn's digital-level
// vocabulary, the same narrow reuse diamondburned-periph-gpioc's pinAdapter
// makes of periph.io/x/conn/v3/gpio.Level.
func levelToValue(l periphgpio.Level) uint8 {
	if l {
		return 1
	}
	return 0
}

func valueToLevel(v uint8) periphgpio.Level {
	return periphgpio.Level(v != 0)
}

func (b *GpiocdevBackend) WriteValue(pinID PinId, value uint8) error {
	h, ok := b.registry.lookup(pinID)
	if !ok {
		return InvalidState("pin not configured, set state first")
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.settings.State.IsWritable() {
		return InvalidState("pin must be in a writable state to set value")
	}

	gr := h.request.(*gpiocdevRequest)
	gr.fair.Lock()
	defer gr.fair.Unlock()

	level := valueToLevel(value)
	raw := 0
	if bool(level) {
		raw = 1
	}
	if err := gr.line.SetValue(raw); err != nil {
		return Gpio("write pin %d: %v", pinID, err)
	}
	return nil
}

func lineOptionsFor(state GpioState) ([]gpiocdev.LineReqOption, error) {
	switch state {
	case PushPull:
		return []gpiocdev.LineReqOption{gpiocdev.AsOutput(), gpiocdev.AsPushPull}, nil
	case OpenDrain:
		return []gpiocdev.LineReqOption{gpiocdev.AsOutput(), gpiocdev.AsOpenDrain}, nil
	case OpenSource:
		return []gpiocdev.LineReqOption{gpiocdev.AsOutput(), gpiocdev.AsOpenSource}, nil
	case Floating:
		return []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithBiasDisabled}, nil
	case PullUp:
		return []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithPullUp}, nil
	case PullDown:
		return []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithPullDown}, nil
	default:
		return nil, InvalidState("state %s has no hardware line configuration", state)
	}
}

func edgeOptionsFor(settings PinSettings) []gpiocdev.LineReqOption {
	opts := make([]gpiocdev.LineReqOption, 0, 3)
	switch settings.Edge {
	case EdgeRising:
		opts = append(opts, gpiocdev.WithRisingEdge)
	case EdgeFalling:
		opts = append(opts, gpiocdev.WithFallingEdge)
	case EdgeBoth:
		opts = append(opts, gpiocdev.WithBothEdges)
	}
	if settings.DebounceMs > 0 {
		opts = append(opts, gpiocdev.WithDebounce(time.Duration(settings.DebounceMs)*time.Millisecond))
	}
	return opts
}
