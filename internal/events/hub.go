package events

import (
	"sync"
)

// OrderEvent is the in-process form of an order notification delivered to
// live dashboard subscribers.
type OrderEvent struct {
	EventType string `json:"event_type"`
	StoreID   string `json:"store_id"`
	OrderID   string `json:"order_id"`
	Status    string `json:"status,omitempty"`
	Total     int64  `json:"total_cents,omitempty"`
}

// Hub fans order events out to per-store subscribers. It implements
// Publisher so it can sit behind the same interface as the Kafka producer;
// slow subscribers drop events rather than block the order path.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan OrderEvent]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan OrderEvent]struct{})}
}

// Subscribe registers a listener for one store's order events. The
// returned cancel func must be called when the listener goes away.
func (h *Hub) Subscribe(storeID string) (<-chan OrderEvent, func()) {
	ch := make(chan OrderEvent, 16)

	h.mu.Lock()
	if h.subs[storeID] == nil {
		h.subs[storeID] = make(map[chan OrderEvent]struct{})
	}
	h.subs[storeID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set := h.subs[storeID]; set != nil {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, storeID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *Hub) broadcast(storeID string, evt OrderEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[storeID] {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (h *Hub) PublishOrderCreated(storeID string, payload OrderCreatedPayload) {
	h.broadcast(storeID, OrderEvent{
		EventType: TypeOrderCreated,
		StoreID:   storeID,
		OrderID:   payload.OrderID,
		Total:     payload.TotalCents,
	})
}

func (h *Hub) PublishOrderStatusChanged(storeID string, payload OrderStatusChangedPayload) {
	h.broadcast(storeID, OrderEvent{
		EventType: TypeOrderStatusChanged,
		StoreID:   storeID,
		OrderID:   payload.OrderID,
		Status:    payload.To,
	})
}

func (h *Hub) Close() error { return nil }

// Fanout delivers every event to all targets in order. Used to pair the
// Kafka producer with the in-process hub.
type Fanout []Publisher

func (f Fanout) PublishOrderCreated(storeID string, payload OrderCreatedPayload) {
	for _, p := range f {
		p.PublishOrderCreated(storeID, payload)
	}
}

func (f Fanout) PublishOrderStatusChanged(storeID string, payload OrderStatusChangedPayload) {
	for _, p := range f {
		p.PublishOrderStatusChanged(storeID, payload)
	}
}

func (f Fanout) Close() error {
	var first error
	for _, p := range f {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
