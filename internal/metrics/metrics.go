// Package metrics is a minimal, concurrency-safe counter registry.
//
// The relay is expected to plug into a real metrics backend eventually;
// this keeps drop accounting testable in the meantime.
package metrics

import "sync"

// Event names counted by the relay. Silent drops are deliberate protocol
// behavior (stale signaling, dead rooms) and are only observable here.
const (
	EventUnknownTarget    = "unknown_target"
	EventRoomGone         = "room_gone"
	EventMalformedMessage = "malformed_message"
	EventRateLimited      = "rate_limited"
	EventSendQueueFull    = "send_queue_full"
	EventChatTooLarge     = "chat_too_large"

	EventConnectionOpened = "connection_opened"
	EventConnectionClosed = "connection_closed"
	EventRoomJoined       = "room_joined"
	EventSignalRelayed    = "signal_relayed"
	EventChatRelayed      = "chat_relayed"
	EventRoomsSwept       = "rooms_swept"
)

type Metrics struct {
	mu sync.Mutex
	m  map[string]uint64
}

func New() *Metrics {
	return &Metrics{m: make(map[string]uint64)}
}

func (m *Metrics) Inc(name string) {
	m.Add(name, 1)
}

func (m *Metrics) Add(name string, delta uint64) {
	m.mu.Lock()
	if m.m == nil {
		m.m = make(map[string]uint64)
	}
	m.m[name] += delta
	m.mu.Unlock()
}

func (m *Metrics) Get(name string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

// Snapshot returns a copy of all counters.
func (m *Metrics) Snapshot() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.m))
	for k, v := range m.m {
		out[k] = v
	}
	return out
}
