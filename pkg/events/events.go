// Package events defines the run lifecycle and dispatch events published on the event bus.
package events

import (
	"time"

	"github.com/dukex/changewatch/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries every changewatch event; the metadata key routes by target.
const Topic = "changewatch.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Run lifecycle events.
	RunStartedEvent   EventType = "run.started"
	RunStepEvent      EventType = "run.step"
	RunRetryingEvent  EventType = "run.retrying"
	RunCompletedEvent EventType = "run.completed"
	RunFailedEvent    EventType = "run.failed"

	// Detection events.
	ChangeDetectedEvent EventType = "change.detected"

	// Dispatch events.
	TargetDueEvent      EventType = "target.due"
	DispatchFailedEvent EventType = "dispatch.failed"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id,omitempty"`
	WorkerID   string         `json:"worker_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		Metadata:   make(map[string]any),
	}
}

type RunStarted struct {
	BaseEvent

	Target models.TargetRef `json:"target"`
}

func (e RunStarted) GetType() EventType {
	return RunStartedEvent
}

type RunStep struct {
	BaseEvent

	From       models.Step `json:"from"`
	To         models.Step `json:"to"`
	RetryCount int         `json:"retry_count"`
}

func (e RunStep) GetType() EventType {
	return RunStepEvent
}

type RunRetrying struct {
	BaseEvent

	RetryCount int           `json:"retry_count"`
	Delay      time.Duration `json:"delay"`
	ErrorKind  string        `json:"error_kind"`
}

func (e RunRetrying) GetType() EventType {
	return RunRetryingEvent
}

type RunCompleted struct {
	BaseEvent

	Record models.AuditRecord `json:"record"`
}

func (e RunCompleted) GetType() EventType {
	return RunCompletedEvent
}

type RunFailed struct {
	BaseEvent

	Record models.AuditRecord `json:"record"`
}

func (e RunFailed) GetType() EventType {
	return RunFailedEvent
}

type ChangeDetected struct {
	BaseEvent

	Entry     models.ChangeEntry `json:"entry"`
	Recipient string             `json:"recipient,omitempty"`
}

func (e ChangeDetected) GetType() EventType {
	return ChangeDetectedEvent
}

// TargetDue is published by an external scheduler to request a run.
type TargetDue struct {
	BaseEvent

	TargetURL string    `json:"target_url"`
	DueAt     time.Time `json:"due_at"`
}

func (e TargetDue) GetType() EventType {
	return TargetDueEvent
}

type DispatchFailed struct {
	BaseEvent

	TargetURL string    `json:"target_url"`
	Error     string    `json:"error"`
	RetryAt   time.Time `json:"retry_at"`
}

func (e DispatchFailed) GetType() EventType {
	return DispatchFailedEvent
}
