package models

import (
	"fmt"
	"time"
)

type AlertType string

const (
	AlertTypeMemberAssigned              AlertType = "memberAssigned"
	AlertTypeAppointmentReviewed         AlertType = "appointmentReviewed"
	AlertTypeAppointmentSubmitOverdue    AlertType = "appointmentSubmitOverdue"
	AlertTypeNewChatMessageFromMember    AlertType = "newChatMessageFromMember"
	AlertTypeMemberNotFeelingWellMessage AlertType = "memberNotFeelingWellMessage"
)

// Alert is derived on read and never stored as a primary record.
type Alert struct {
	ID        string    `json:"id"`
	MemberID  string    `json:"memberId"`
	Type      AlertType `json:"type"`
	Date      time.Time `json:"date"`
	Dismissed bool      `json:"dismissed"`
	IsNew     bool      `json:"isNew"`
}

// AlertID builds the composite alert id "<sourceId>_<type>".
func AlertID(sourceID string, t AlertType) string {
	return fmt.Sprintf("%s_%s", sourceID, t)
}

// DismissedAlert records that a user dismissed an alert from their feed.
type DismissedAlert struct {
	UserID    string    `gorm:"primaryKey;type:varchar(36)"`
	AlertID   string    `gorm:"primaryKey;type:varchar(255)"`
	CreatedAt time.Time
}

// All lists every persisted model, in dependency order.
func All() []any {
	return []any{
		&User{},
		&Member{},
		&Appointment{},
		&Notes{},
		&Recording{},
		&Dispatch{},
		&DismissedAlert{},
	}
}
