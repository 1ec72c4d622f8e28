package events

import (
	"time"

	"github.com/spec-kit/support-reconciler/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventRequestReconciled EventType = "request_reconciled"
	EventMovementRecorded  EventType = "movement_recorded"
	EventEscalationDerived EventType = "escalation_derived"
	EventSyncCompleted     EventType = "sync_completed"
)

// Event represents a domain event emitted by the reconciliation engines.
type Event struct {
	Type      EventType   `json:"type"`
	RequestID int64       `json:"request_id,omitempty"`
	Source    string      `json:"source,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// RequestReconciledPayload payload.
type RequestReconciledPayload struct {
	ExternalID string              `json:"external_id"`
	Level      domain.SupportLevel `json:"level"`
	Team       string              `json:"team"`
	Created    bool                `json:"created"`
}

// MovementRecordedPayload payload.
type MovementRecordedPayload struct {
	ExternalID string              `json:"external_id"`
	FromLevel  domain.SupportLevel `json:"from_level"`
	ToLevel    domain.SupportLevel `json:"to_level"`
	ChangedBy  string              `json:"changed_by"`
}

// EscalationDerivedPayload payload.
type EscalationDerivedPayload struct {
	FromLevel  domain.SupportLevel `json:"from_level"`
	ToLevel    domain.SupportLevel `json:"to_level"`
	Downgraded bool                `json:"downgraded"`
}

// SyncCompletedPayload payload.
type SyncCompletedPayload struct {
	Kind      string `json:"kind"`
	Processed int    `json:"processed"`
	Skipped   int    `json:"skipped"`
}
