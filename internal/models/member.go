package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Member is a patient assigned to a primary user.
type Member struct {
	ID              string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	PrimaryUserID   string         `gorm:"not null;index" json:"primaryUserId"`
	FirstName       string         `gorm:"not null;default:''" json:"firstName"`
	LastName        string         `gorm:"not null;default:''" json:"lastName"`
	Phone           string         `gorm:"not null;default:''" json:"phone"`
	Adherence       *int           `json:"adherence"`
	Wellbeing       *int           `json:"wellbeing"`
	ScoresUpdatedAt *time.Time     `json:"scoresUpdatedAt"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
	DeletedBy       *string        `gorm:"type:varchar(36)" json:"deletedBy,omitempty"`
}

func (m *Member) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
