package activity

import (
	"context"
	"sync"
)

// CaptureHook records events in memory. When Verbs is set only those verbs
// are kept. Err is returned from every Notify that records an event.
type CaptureHook struct {
	Verbs  []string
	Events []Event
	Err    error
	mu     sync.Mutex
}

func (h *CaptureHook) Notify(_ context.Context, event Event) error {
	if !MatchVerb(h.Verbs, event.Verb) {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Events = append(h.Events, NormalizeEvent(event))
	return h.Err
}

// Count returns how many recorded events carry verb.
func (h *CaptureHook) Count(verb string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, event := range h.Events {
		if event.Verb == verb {
			n++
		}
	}
	return n
}

// Recorded lists the verbs seen, in order.
func (h *CaptureHook) Recorded() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	verbs := make([]string, 0, len(h.Events))
	for _, event := range h.Events {
		verbs = append(verbs, event.Verb)
	}
	return verbs
}

// ForView returns the events of one view.
func (h *CaptureHook) ForView(viewID string) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	var events []Event
	for _, event := range h.Events {
		if event.View.ViewID == viewID {
			events = append(events, event)
		}
	}
	return events
}

func (h *CaptureHook) Reset() {
	h.mu.Lock()
	h.Events = nil
	h.mu.Unlock()
}
