package notifications

import (
	"time"

	"gorm.io/datatypes"
)

// EventKind identifies the kind of outbound notification intent.
type EventKind string

const (
	EventVerificationCreated   EventKind = "verification_created"
	EventPaymentRecorded       EventKind = "payment_recorded"
	EventPaymentRefunded       EventKind = "payment_refunded"
	EventStatusChanged         EventKind = "status_changed"
	EventVerificationCompleted EventKind = "verification_completed"
	EventVerificationOverdue   EventKind = "verification_overdue"
)

// IntentStatus is the delivery state of an intent.
type IntentStatus string

const (
	IntentPending    IntentStatus = "pending"
	IntentDispatched IntentStatus = "dispatched"
	IntentFailed     IntentStatus = "failed"
)

// Intent is one outbound notification, written in the same transaction
// as the state mutation that produced it. Delivery is the external
// sender's job; the engine only records what should be sent.
type Intent struct {
	ID             uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	VerificationID string         `gorm:"index;not null" json:"verification_id"`
	Kind           EventKind      `gorm:"not null;index" json:"kind"`
	Payload        datatypes.JSON `gorm:"type:jsonb" json:"payload"`
	Status         IntentStatus   `gorm:"not null;default:'pending';index" json:"status"`
	Attempts       int            `gorm:"not null;default:0" json:"attempts"`
	CreatedAt      time.Time      `json:"created_at"`
	DispatchedAt   *time.Time     `json:"dispatched_at,omitempty"`
	LastError      string         `json:"last_error,omitempty"`
}

// Sink delivers intents to the external notification sender. Errors are
// logged and retried on the next poll; they never surface to the
// operation that produced the intent.
type Sink interface {
	Emit(kind EventKind, payload []byte) error
}
