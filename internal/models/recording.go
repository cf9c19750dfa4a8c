package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RecordingReview is left by a user after listening to a recording.
type RecordingReview struct {
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Recording is a call recording captured during an appointment.
type Recording struct {
	ID            string           `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AppointmentID string           `gorm:"type:varchar(36);not null;index" json:"appointmentId"`
	MemberID      string           `gorm:"type:varchar(36);not null;index" json:"memberId"`
	UserID        string           `gorm:"type:varchar(36);not null" json:"userId"`
	Review        *RecordingReview `gorm:"serializer:json;type:text" json:"review"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
	DeletedAt     gorm.DeletedAt   `gorm:"index" json:"-"`
	DeletedBy     *string          `gorm:"type:varchar(36)" json:"deletedBy,omitempty"`
}

func (r *Recording) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
