package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderCreated     = "order.created"
	EventOrderCompleted   = "order.completed"
	EventOrderFailed      = "order.failed"
	EventChapterCompleted = "chapter.completed"
	EventCourseEnrolled   = "course.enrolled"

	producerName = "learnhub-api"
)

// Envelope wraps every event written to the bus.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

func NewEnvelope(eventType, correlationID string, payload interface{}) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producerName,
		CorrelationID: correlationID,
		Payload:       raw,
	}, nil
}

// UnwrapPayload decodes the envelope payload into T.
func UnwrapPayload[T any](payload json.RawMessage) (T, error) {
	var out T
	if err := json.Unmarshal(payload, &out); err != nil {
		return out, fmt.Errorf("decode payload: %w", err)
	}
	return out, nil
}

type OrderPayload struct {
	OrderID        uint   `json:"order_id"`
	GatewayOrderID string `json:"gateway_order_id"`
	UserID         uint   `json:"user_id"`
	Target         string `json:"target"`
	CourseID       *uint  `json:"course_id,omitempty"`
	ChapterID      *uint  `json:"chapter_id,omitempty"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
}

type ChapterCompletedPayload struct {
	UserID       uint  `json:"user_id"`
	ChapterID    uint  `json:"chapter_id"`
	CourseID     uint  `json:"course_id"`
	CoinsAwarded int64 `json:"coins_awarded"`
}

type CourseEnrolledPayload struct {
	UserID   uint `json:"user_id"`
	CourseID uint `json:"course_id"`
}

// Publisher delivers a single envelope synchronously.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
	Close() error
}

// Emitter hands events off for delivery without blocking the caller.
type Emitter interface {
	Emit(ctx context.Context, eventType, correlationID string, payload interface{})
}

// Discard drops every event.
var Discard Emitter = discard{}

type discard struct{}

func (discard) Emit(context.Context, string, string, interface{}) {}
