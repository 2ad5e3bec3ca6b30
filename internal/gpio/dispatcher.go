package gpio

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// DefaultBroadcastCapacity and DefaultEventHistoryCapacity back the config
// defaults applied when a deployment's config.json omits them.
const (
	DefaultBroadcastCapacity    = 256
	DefaultEventHistoryCapacity = 64
)

// ring is a fixed-capacity FIFO event history for a single pin, evicting the
// oldest entry once full. Grounded on EventCallbackHandler.dispatch's
// VecDeque eviction loop (original_source/src/gpio.rs).
type ring struct {
	mu       sync.RWMutex
	buf      []EdgeEvent
	capacity int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]EdgeEvent, 0, capacity), capacity: capacity}
}

func (r *ring) push(event EdgeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.buf) >= r.capacity {
		r.buf = r.buf[1:]
	}
	r.buf = append(r.buf, event)
}

// recent returns up to limit events, oldest first. limit <= 0 means "all".
func (r *ring) recent(limit int) []EdgeEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if limit <= 0 || limit >= len(r.buf) {
		out := make([]EdgeEvent, len(r.buf))
		copy(out, r.buf)
		return out
	}
	start := len(r.buf) - limit
	out := make([]EdgeEvent, limit)
	copy(out, r.buf[start:])
	return out
}

func (r *ring) last() (EdgeEvent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.buf) == 0 {
		return EdgeEvent{}, false
	}
	return r.buf[len(r.buf)-1], true
}

// subscriber is one broadcast listener. Its channel is sized to
// broadcastCapacity; a dispatch that finds it full drops the subscriber's
// oldest queued event and counts a lag, mirroring tokio::sync::broadcast's
// Lagged(n) behavior (original_source/src/routes.rs's
// handle_event_websocket) rather than blocking the dispatcher on a slow
// reader.
type subscriber struct {
	id  uuid.UUID
	ch  chan EdgeEvent
	lag uint64
}

// Dispatcher fans out edge events to subscribers and keeps a bounded
// per-pin history, combining EventCallbackHandler's two responsibilities
// (original_source/src/gpio.rs) behind a Go channel-based broadcast in place
// of tokio::sync::broadcast, in the style of internal/websocket/hub.go's
// register/unregister/broadcast hub.
type Dispatcher struct {
	historyMu sync.RWMutex
	history   map[PinId]*ring

	subMu sync.RWMutex
	subs  map[uuid.UUID]*subscriber

	broadcastCapacity int
}

// NewDispatcher allocates empty history rings for every pin named in
// pinIDs, matching the Rust constructor's eager per-pin history
// initialization so Get events on a configured-but-never-fired pin returns
// an empty slice rather than NotFoundPin.
func NewDispatcher(pinIDs []PinId, eventHistoryCapacity, broadcastCapacity int) *Dispatcher {
	if eventHistoryCapacity <= 0 {
		eventHistoryCapacity = DefaultEventHistoryCapacity
	}
	if broadcastCapacity <= 0 {
		broadcastCapacity = DefaultBroadcastCapacity
	}
	history := make(map[PinId]*ring, len(pinIDs))
	for _, id := range pinIDs {
		history[id] = newRing(eventHistoryCapacity)
	}
	return &Dispatcher{
		history:           history,
		subs:              make(map[uuid.UUID]*subscriber),
		broadcastCapacity: broadcastCapacity,
	}
}

// Dispatch implements EventSink: record the event in its pin's history, then
// fan it out to every live subscriber without blocking on any of them.
func (d *Dispatcher) Dispatch(event EdgeEvent) {
	d.historyMu.RLock()
	r, ok := d.history[event.PinId]
	d.historyMu.RUnlock()
	if ok {
		r.push(event)
	}

	d.subMu.RLock()
	defer d.subMu.RUnlock()
	for _, s := range d.subs {
		select {
		case s.ch <- event:
		default:
			select {
			case <-s.ch:
			default:
			}
			atomic.AddUint64(&s.lag, 1)
			select {
			case s.ch <- event:
			default:
			}
		}
	}
}

// Subscription is a live broadcast feed returned by Subscribe.
type Subscription struct {
	ID     uuid.UUID
	Events <-chan EdgeEvent

	d *Dispatcher
	s *subscriber
}

// TakeLag returns and resets the count of events this subscription has
// missed due to a full channel since the last call, for surfacing as a
// lag-notice frame on a WebSocket feed.
func (s *Subscription) TakeLag() uint64 {
	return atomic.SwapUint64(&s.s.lag, 0)
}

// Close unregisters the subscription; its channel is closed so a reader
// ranging over Events terminates.
func (s *Subscription) Close() {
	s.d.subMu.Lock()
	delete(s.d.subs, s.ID)
	s.d.subMu.Unlock()
	close(s.s.ch)
}

// Subscribe registers a new broadcast listener, matching
// GenericGpioManager::subscribe_events.
func (d *Dispatcher) Subscribe() *Subscription {
	s := &subscriber{id: uuid.New(), ch: make(chan EdgeEvent, d.broadcastCapacity)}
	d.subMu.Lock()
	d.subs[s.id] = s
	d.subMu.Unlock()
	return &Subscription{ID: s.id, Events: s.ch, d: d, s: s}
}

// Events returns up to limit events for pinID, oldest first, per
// GenericGpioManager::get_events. limit <= 0 returns the full retained
// history. The second return is false if pinID has no history ring
// (unconfigured pin); callers translate that to NotFoundPin.
func (d *Dispatcher) Events(pinID PinId, limit int) ([]EdgeEvent, bool) {
	d.historyMu.RLock()
	r, ok := d.history[pinID]
	d.historyMu.RUnlock()
	if !ok {
		return nil, false
	}
	return r.recent(limit), true
}

// LastEvent returns the most recent event for pinID, per
// GenericGpioManager::get_last_event.
func (d *Dispatcher) LastEvent(pinID PinId) (EdgeEvent, bool, bool) {
	d.historyMu.RLock()
	r, ok := d.history[pinID]
	d.historyMu.RUnlock()
	if !ok {
		return EdgeEvent{}, false, false
	}
	ev, found := r.last()
	return ev, found, true
}
