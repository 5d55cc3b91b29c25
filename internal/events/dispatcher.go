package events

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"learnhub-backend/internal/background"
	"learnhub-backend/pkg/logger"
)

var eventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "learnhub",
	Subsystem: "events",
	Name:      "emitted_total",
	Help:      "Domain events handed to the background publisher",
}, []string{"type", "result"})

// Dispatcher delivers events through the background scheduler so request paths never
// wait on the broker. Delivery is at-least-once within the retry budget; events that
// find the queue full are dropped and counted.
type Dispatcher struct {
	scheduler *background.Scheduler
	publisher Publisher
	retry     background.RetryPolicy
	timeout   time.Duration
}

func NewDispatcher(scheduler *background.Scheduler, publisher Publisher) *Dispatcher {
	return &Dispatcher{
		scheduler: scheduler,
		publisher: publisher,
		retry:     background.RetryPolicy{MaxRetries: 5, Backoff: 500 * time.Millisecond},
		timeout:   10 * time.Second,
	}
}

func (d *Dispatcher) Emit(ctx context.Context, eventType, correlationID string, payload interface{}) {
	if d == nil || d.scheduler == nil || d.publisher == nil {
		return
	}

	env, err := NewEnvelope(eventType, correlationID, payload)
	if err != nil {
		eventsEmitted.WithLabelValues(eventType, "encode_error").Inc()
		logger.FromContext(ctx).WithError(err).Error("Failed to encode event")
		return
	}

	job := background.Job{
		Name: "event:" + eventType,
		Key:  "event:" + env.EventID,
		Run: func(jobCtx context.Context) error {
			return d.publisher.Publish(jobCtx, env)
		},
		Timeout:     d.timeout,
		RetryPolicy: d.retry,
	}

	if err := d.scheduler.TryScheduleUnique(job); err != nil {
		result := "dropped"
		if errors.Is(err, background.ErrQueueFull) {
			result = "queue_full"
		}
		eventsEmitted.WithLabelValues(eventType, result).Inc()
		logger.FromContext(ctx).WithError(err).WithField("event_type", eventType).Warn("Event dropped")
		return
	}

	eventsEmitted.WithLabelValues(eventType, "queued").Inc()
}

// LogPublisher stands in for Kafka when no brokers are configured.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, env Envelope) error {
	logger.Debug("Event published", map[string]interface{}{
		"event_id":       env.EventID,
		"event_type":     env.EventType,
		"correlation_id": env.CorrelationID,
	})
	return nil
}

func (LogPublisher) Close() error { return nil }
