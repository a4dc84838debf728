package conversations

import "sync"

// ActiveContextV0 exposes the conversation to response generators.
type ActiveContextV0 interface {
	// Past exchanges only. Ordering: oldest -> newest.
	History() []Exchange
}

// History is an in-memory, goroutine safe list of exchanges with an optional
// size limit. The oldest exchanges are dropped first.
type History struct {
	mu        sync.RWMutex
	exchanges []Exchange
	limit     int
}

// NewHistory keeps at most limit exchanges; limit <= 0 keeps everything.
func NewHistory(limit int) *History {
	return &History{limit: limit}
}

func (h *History) Push(exchange Exchange) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.exchanges = append(h.exchanges, exchange)
	if h.limit > 0 && len(h.exchanges) > h.limit {
		h.exchanges = append([]Exchange(nil), h.exchanges[len(h.exchanges)-h.limit:]...)
	}
}

func (h *History) Pop() *Exchange {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.exchanges) == 0 {
		return nil
	}
	last := h.exchanges[len(h.exchanges)-1]
	h.exchanges = h.exchanges[:len(h.exchanges)-1]
	return &last
}

func (h *History) Clear() {
	h.mu.Lock()
	h.exchanges = nil
	h.mu.Unlock()
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.exchanges)
}

// History returns a snapshot, oldest first.
func (h *History) History() []Exchange {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Exchange(nil), h.exchanges...)
}

func (h *History) Values(yield func(Exchange) bool) {
	for _, exchange := range h.History() {
		if !yield(exchange) {
			return
		}
	}
}

func (h *History) RValues(yield func(Exchange) bool) {
	exchanges := h.History()
	for i := len(exchanges) - 1; i >= 0; i-- {
		if !yield(exchanges[i]) {
			return
		}
	}
}

var _ ActiveContextV0 = (*History)(nil)
