package trial

import "sync"

// InMemorySink implements EventSink without a database, for tests and
// single-process deployments.
type InMemorySink struct {
	mu     sync.Mutex
	events []Event
}

// NewInMemorySink creates an in-memory event sink.
func NewInMemorySink() *InMemorySink {
	return &InMemorySink{}
}

// SaveEvent stores an event in memory.
func (s *InMemorySink) SaveEvent(event Event) error {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	return nil
}

// Events returns the persisted events in order.
func (s *InMemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
