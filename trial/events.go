package trial

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JakobNicolas/Privacy-Preserving-Clinical-Trial-Management/protocol"
)

// EventType names an entry in the trial's append-only event log.
type EventType string

const (
	EventEnrollment          EventType = "enrollment"
	EventMeasurement         EventType = "measurement_submitted"
	EventPhaseTransition     EventType = "phase_transition"
	EventDecryptionRequested EventType = "decryption_requested"
	EventTrialCompleted      EventType = "trial_completed"
	EventResultsPublished    EventType = "results_published"
)

// Event is one committed entry. External collaborators (doc generation,
// deployment tooling) consume the log read-only.
type Event struct {
	ID      uuid.UUID       `json:"id"`
	Type    EventType       `json:"type"`
	At      time.Time       `json:"at"`
	Payload json.RawMessage `json:"payload"`
}

// EnrollmentEvent is emitted when a participant enrolls.
type EnrollmentEvent struct {
	Identity Identity `json:"identity"`
	Index    int      `json:"index"`
}

// MeasurementEvent is emitted when a weekly measurement is accepted.
type MeasurementEvent struct {
	Identity Identity `json:"identity"`
	Week     int      `json:"week"`
}

// PhaseTransitionEvent is emitted on every phase change.
type PhaseTransitionEvent struct {
	From protocol.Phase `json:"from"`
	To   protocol.Phase `json:"to"`
}

// DecryptionRequestedEvent is emitted when the oracle batch is issued.
type DecryptionRequestedEvent struct {
	RequestID   uuid.UUID `json:"request_id"`
	HandleCount int       `json:"handle_count"`
}

// TrialCompletedEvent is emitted when the trial reaches a completed
// result, either through aggregation or emergency termination.
type TrialCompletedEvent struct {
	Phase     protocol.Phase `json:"phase"`
	Emergency bool           `json:"emergency"`
}

// ResultsPublishedEvent is emitted after a verified callback has been
// aggregated.
type ResultsPublishedEvent struct {
	RequestID        uuid.UUID `json:"request_id"`
	ParticipantCount int       `json:"participant_count"`
	Significant      bool      `json:"significant"`
}

// EventSink receives committed events for persistence. Sink failures are
// logged, not propagated: the in-memory log is the source of truth for
// the current process.
type EventSink interface {
	SaveEvent(Event) error
}

// EventLog is the append-only event log.
type EventLog struct {
	mu     sync.RWMutex
	events []Event
	log    *slog.Logger
	sink   EventSink
}

// NewEventLog creates an event log. A nil logger defaults to slog.Default;
// sink may be nil.
func NewEventLog(log *slog.Logger, sink EventSink) *EventLog {
	if log == nil {
		log = slog.Default()
	}
	return &EventLog{log: log, sink: sink}
}

// Append records an event with the given payload.
func (l *EventLog) Append(eventType EventType, at time.Time, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		l.log.Error("marshal event payload", "type", eventType, "err", err)
		raw = []byte("{}")
	}

	event := Event{
		ID:      uuid.New(),
		Type:    eventType,
		At:      at,
		Payload: raw,
	}

	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()

	l.log.Info("trial event", "type", eventType, "id", event.ID)

	if l.sink != nil {
		if err := l.sink.SaveEvent(event); err != nil {
			l.log.Error("persist event", "type", eventType, "err", err)
		}
	}
}

// All returns the committed events in order.
func (l *EventLog) All() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// ByType returns the committed events of one type, in order.
func (l *EventLog) ByType(eventType EventType) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Event
	for _, e := range l.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of committed events.
func (l *EventLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}
