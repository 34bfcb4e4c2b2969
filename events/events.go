package events

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypePipelineCompleted EventType = "pipeline_completed"
	EventTypePipelineFailed    EventType = "pipeline_failed"
	EventTypeKpiSnapshot       EventType = "kpi_snapshot"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// PipelineCompletedEvent is emitted after a run reaches the success state
type PipelineCompletedEvent struct {
	ExecutionID   string
	RowsProcessed int64
	Inserted      int64
	Updated       int64
	Duration      time.Duration
	SourceFile    string
}

func (e PipelineCompletedEvent) Type() EventType {
	return EventTypePipelineCompleted
}

// PipelineFailedEvent is emitted after a run reaches the failed state
type PipelineFailedEvent struct {
	ExecutionID   string
	RowsProcessed int64
	ErrorMessage  string
}

func (e PipelineFailedEvent) Type() EventType {
	return EventTypePipelineFailed
}

// KpiSnapshotEvent is emitted after a historical KPI snapshot is written
type KpiSnapshotEvent struct {
	CalculationDate time.Time
	Period          string
	KpiCount        int
}

func (e KpiSnapshotEvent) Type() EventType {
	return EventTypeKpiSnapshot
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// Emit publishes an event to all registered handlers. Handlers run
// asynchronously so a slow subscriber cannot stall the pipeline; panics are
// recovered and logged.
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event to handlers")

	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}
