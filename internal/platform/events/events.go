// Package events publishes appointment lifecycle events for downstream
// consumers (reminders, analytics).
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event types.
const (
	AppointmentBooked    = "appointment.booked"
	AppointmentCompleted = "appointment.completed"
	AppointmentCancelled = "appointment.cancelled"
	PrescriptionIssued   = "prescription.issued"
	RefillRequested      = "prescription.refill_requested"
	ConsultationJoined   = "consultation.joined"
)

// Event is the envelope written to the broker. AggregateID is used as the
// partition key so events for one appointment stay ordered.
type Event struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	AggregateID string          `json:"aggregate_id"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Payload     json.RawMessage `json:"payload"`
}

// New builds an event with a fresh ID, marshalling payload as JSON.
func New(eventType, aggregateID string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		AggregateID: aggregateID,
		OccurredAt:  time.Now().UTC(),
		Payload:     raw,
	}, nil
}

// Publisher delivers events. Publishing is best effort from the caller's point
// of view: a failed publish never undoes a committed write.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// LogPublisher writes events to the log. Used when no brokers are configured.
type LogPublisher struct {
	logger zerolog.Logger
}

func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, evt Event) error {
	p.logger.Info().
		Str("event_id", evt.ID).
		Str("event_type", evt.Type).
		Str("aggregate_id", evt.AggregateID).
		RawJSON("payload", evt.Payload).
		Msg("event")
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

func (r *Recorder) Publish(_ context.Context, evt Event) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the published event types in order.
func (r *Recorder) Types() []string {
	var out []string
	for _, e := range r.Events() {
		out = append(out, e.Type)
	}
	return out
}

// SplitBrokers parses a comma separated broker list.
func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
