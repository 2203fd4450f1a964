package hub

import (
	"io"
	"log/slog"
	"sync"

	"github.com/wearlab/motion-relay-service/internal/metrics"
	"github.com/wearlab/motion-relay-service/internal/packet"
)

// Subscriber is one observer's send half. Implementations must bound Send
// (a write deadline on the underlying transport) so a stalled observer
// cannot block the broadcast loop.
type Subscriber interface {
	Send(p packet.Packet) error
}

// Hub owns the subscriber set and the latest-packet slot. All methods are
// safe for concurrent use.
type Hub struct {
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu     sync.RWMutex
	subs   map[Subscriber]struct{}
	latest *packet.Packet
}

// New creates an empty hub.
func New(logger *slog.Logger, m *metrics.Metrics) *Hub {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Hub{
		logger:  logger,
		metrics: m,
		subs:    make(map[Subscriber]struct{}),
	}
}

// Add registers a subscriber. Adding the same subscriber twice is a no-op.
func (h *Hub) Add(sub Subscriber) {
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	count := len(h.subs)
	h.mu.Unlock()

	h.metrics.SetSubscribers(count)
	h.logger.Debug("subscriber added", slog.Int("subscribers", count))
}

// Remove unregisters a subscriber. Safe to call more than once per
// subscriber; the connection teardown path and a failed broadcast send may
// both reach it.
func (h *Hub) Remove(sub Subscriber) {
	h.mu.Lock()
	_, present := h.subs[sub]
	delete(h.subs, sub)
	count := len(h.subs)
	h.mu.Unlock()

	if present {
		h.metrics.SetSubscribers(count)
		h.logger.Debug("subscriber removed", slog.Int("subscribers", count))
	}
}

// Snapshot returns a copy of the current subscriber set, safe to iterate
// while other connections come and go.
func (h *Hub) Snapshot() []Subscriber {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subs := make([]Subscriber, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	return subs
}

// Count returns the current number of subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// SetLatest overwrites the latest-packet slot.
func (h *Hub) SetLatest(p packet.Packet) {
	h.mu.Lock()
	h.latest = &p
	h.mu.Unlock()
}

// Latest returns the most recently cached packet, if any. Never blocks.
func (h *Hub) Latest() (packet.Packet, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.latest == nil {
		return packet.Packet{}, false
	}
	return *h.latest, true
}

// Broadcast delivers p to every subscriber in a point-in-time snapshot.
// A send failure removes that subscriber and delivery continues with the
// rest; failures are never surfaced to the caller. Returns the number of
// successful deliveries.
func (h *Hub) Broadcast(p packet.Packet) int {
	delivered := 0
	for _, sub := range h.Snapshot() {
		if err := sub.Send(p); err != nil {
			h.logger.Debug("dropping subscriber after send failure",
				slog.String("error", err.Error()),
			)
			h.metrics.RecordDeliveryFailure()
			h.Remove(sub)
			continue
		}
		delivered++
	}

	h.metrics.RecordBroadcast()
	return delivered
}
