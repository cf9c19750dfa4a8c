package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a coach or clinician who owns members and runs appointments.
type User struct {
	ID             string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Email          string         `gorm:"uniqueIndex:idx_users_email_not_deleted,where:deleted_at IS NULL;not null" json:"email"`
	Name           string         `gorm:"not null;default:''" json:"name"`
	Phone          string         `gorm:"not null;default:''" json:"phone"`
	Timezone       string         `gorm:"not null;default:'UTC'" json:"timezone"`
	LastQueryAlert *time.Time     `json:"lastQueryAlert"`
	LastLoginAt    *time.Time     `json:"lastLoginAt"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
