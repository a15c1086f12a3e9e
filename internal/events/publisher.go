package events

//go:generate go run go.uber.org/mock/mockgen@latest -source=publisher.go -destination=mocks_test.go -package=events

import (
	"context"
	"time"

	"reservation-bridge/internal/kafka"
	"reservation-bridge/internal/observability"
	"reservation-bridge/internal/voicecall/session"

	"github.com/google/uuid"
)

const (
	TypeCallStarted          = "call.started"
	TypeReservationConfirmed = "reservation.confirmed"
	TypeCallEnded            = "call.ended"
)

// MessageProducer writes one message to the call events topic.
type MessageProducer interface {
	ProduceMessage(ctx context.Context, msg kafka.Message) error
}

// EventMessage is the JSON value of every call event.
type EventMessage struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	StreamSID string                 `json:"stream_sid"`
	CallSID   string                 `json:"call_sid,omitempty"`
	Data      map[string]interface{} `json:"data"`
	Timestamp string                 `json:"timestamp"`
}

// CallSummary is reported once a call has been torn down.
type CallSummary struct {
	Step           string
	Confirmed      bool
	Duration       time.Duration
	InboundFrames  int
	OutboundFrames int
	Truncations    int
	ToolCalls      int
}

// Publisher handles publishing call events to Kafka. A publisher without a
// producer drops every event.
type Publisher struct {
	producer MessageProducer
	logger   *observability.Logger
	now      func() time.Time
}

// NewPublisher creates a new event publisher. producer may be nil.
func NewPublisher(producer MessageProducer, logger *observability.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		logger:   logger,
		now:      time.Now,
	}
}

// Enabled reports whether events are actually sent.
func (p *Publisher) Enabled() bool {
	return p != nil && p.producer != nil
}

// PublishCallStarted publishes a call.started event
func (p *Publisher) PublishCallStarted(ctx context.Context, streamSID, callSID string) error {
	return p.publish(ctx, TypeCallStarted, streamSID, callSID, map[string]interface{}{})
}

// PublishReservationConfirmed publishes a reservation.confirmed event with
// every slot collected so far
func (p *Publisher) PublishReservationConfirmed(ctx context.Context, streamSID, callSID string, fields session.Fields) error {
	data := make(map[string]interface{}, len(session.Slots))
	for _, slot := range session.Slots {
		if v, ok := fields.Get(slot); ok {
			data[string(slot)] = v
		}
	}
	return p.publish(ctx, TypeReservationConfirmed, streamSID, callSID, data)
}

// PublishCallEnded publishes a call.ended event
func (p *Publisher) PublishCallEnded(ctx context.Context, streamSID, callSID string, summary CallSummary) error {
	return p.publish(ctx, TypeCallEnded, streamSID, callSID, map[string]interface{}{
		"step":            summary.Step,
		"confirmed":       summary.Confirmed,
		"duration_ms":     summary.Duration.Milliseconds(),
		"inbound_frames":  summary.InboundFrames,
		"outbound_frames": summary.OutboundFrames,
		"truncations":     summary.Truncations,
		"tool_calls":      summary.ToolCalls,
	})
}

func (p *Publisher) publish(ctx context.Context, eventType, streamSID, callSID string, data map[string]interface{}) error {
	if !p.Enabled() {
		return nil
	}

	now := p.now().UTC()
	event := EventMessage{
		ID:        uuid.New().String(),
		Type:      eventType,
		StreamSID: streamSID,
		CallSID:   callSID,
		Data:      data,
		Timestamp: now.Format(time.RFC3339),
	}

	ctx = observability.WithFields(ctx,
		observability.Field{Key: "event_type", Value: event.Type},
		observability.Field{Key: "event_id", Value: event.ID},
	)

	err := p.producer.ProduceMessage(ctx, kafka.Message{
		Key:       streamSID,
		Value:     event,
		Headers:   map[string]string{"event_type": eventType},
		Timestamp: now,
	})
	if err != nil {
		p.logger.Error(ctx, "failed to publish call event", err)
		return err
	}
	return nil
}
