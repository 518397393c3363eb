package server

import (
	"sync"

	"archmap/internal/runner"
)

// eventHub fans run events out to websocket subscribers. Slow subscribers
// drop events rather than stall the pipeline.
type eventHub struct {
	mu   sync.Mutex
	subs map[string]map[chan runner.RunEvent]struct{}
}

func newEventHub() *eventHub {
	return &eventHub{subs: make(map[string]map[chan runner.RunEvent]struct{})}
}

func (h *eventHub) subscribe(runID string) chan runner.RunEvent {
	ch := make(chan runner.RunEvent, 32)
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[runID]
	if set == nil {
		set = make(map[chan runner.RunEvent]struct{})
		h.subs[runID] = set
	}
	set[ch] = struct{}{}
	return ch
}

func (h *eventHub) unsubscribe(runID string, ch chan runner.RunEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[runID]; ok {
		delete(set, ch)
		if len(set) == 0 {
			delete(h.subs, runID)
		}
	}
}

func (h *eventHub) publish(runID string, ev runner.RunEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[runID] {
		select {
		case ch <- ev:
		default: // drop for slow readers
		}
	}
}
