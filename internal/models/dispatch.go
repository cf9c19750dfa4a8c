package models

import (
	"time"

	"gorm.io/datatypes"
)

// Dispatch status constants
const (
	DispatchStatusScheduled = "scheduled"
	DispatchStatusSent      = "sent"
	DispatchStatusDelivered = "delivered"
	DispatchStatusFailed    = "failed"
)

// Dispatch is an outbound notification keyed by a deterministic id so it can
// be replaced or cancelled without a lookup table.
type Dispatch struct {
	DispatchID        string         `gorm:"primaryKey;type:varchar(255)" json:"dispatchId"`
	RecipientClientID string         `gorm:"type:varchar(36);not null;index" json:"recipientClientId"`
	SenderClientID    string         `gorm:"type:varchar(36);not null;default:'';index" json:"senderClientId"`
	ContentKey        string         `gorm:"not null;index" json:"contentKey"`
	AppointmentID     *string        `gorm:"type:varchar(36);index" json:"appointmentId,omitempty"`
	CorrelationID     string         `gorm:"not null;default:''" json:"correlationId"`
	Payload           datatypes.JSON `gorm:"type:jsonb" json:"payload,omitempty"`
	Status            string         `gorm:"not null;default:'scheduled';index" json:"status"`
	TriggersAt        *time.Time     `json:"triggersAt"`
	SentAt            *time.Time     `json:"sentAt"`
	DeliveredAt       *time.Time     `json:"deliveredAt"`
	FailureReason     string         `gorm:"type:text;not null;default:''" json:"failureReason,omitempty"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}
