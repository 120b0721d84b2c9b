package domain

import (
	"encoding/json"
	"time"
)

// Lifecycle event types recorded on every audit mutation.
const (
	EventAuditCreated        = "audit.created"
	EventAuditStarted        = "audit.started"
	EventResponseSaved       = "audit.response_saved"
	EventAuditCompleted      = "audit.completed"
	EventAuditCancelled      = "audit.cancelled"
	EventRecommendationsMade = "audit.recommendations_generated"
)

// LifecycleEvent is the persisted trail row written in the same transaction
// as the mutation it describes.
type LifecycleEvent struct {
	ID           int64           `json:"id"`
	EventID      string          `json:"event_id"`
	AuditID      string          `json:"audit_id"`
	Action       string          `json:"action"`
	Actor        string          `json:"actor"`
	BeforeStatus Status          `json:"before_status"`
	AfterStatus  Status          `json:"after_status"`
	Detail       json.RawMessage `json:"detail,omitempty"`
	OccurredAt   time.Time       `json:"occurred_at"`
}

// EventEnvelope is the outbox payload pushed to external receivers.
type EventEnvelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	AuditID    string          `json:"audit_id"`
	Actor      string          `json:"actor"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

type OutboxEvent struct {
	ID            int64
	EventID       string
	AuditID       string
	Topic         string
	PayloadJSON   json.RawMessage
	Status        string
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
	DispatchedAt  *time.Time
}
