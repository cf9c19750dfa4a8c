package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AppointmentStatus moves requested -> scheduled -> done.
type AppointmentStatus string

const (
	AppointmentStatusRequested AppointmentStatus = "requested"
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusDone      AppointmentStatus = "done"
)

type AppointmentMethod string

const (
	AppointmentMethodChat  AppointmentMethod = "chat"
	AppointmentMethodPhone AppointmentMethod = "phone"
	AppointmentMethodVideo AppointmentMethod = "video"
)

// Valid reports whether m is one of the supported meeting methods.
func (m AppointmentMethod) Valid() bool {
	switch m {
	case AppointmentMethodChat, AppointmentMethodPhone, AppointmentMethodVideo:
		return true
	}
	return false
}

// Appointment is a requested or scheduled meeting between a user and a member.
// Start and End live in start_at/end_at since "end" is reserved in Postgres.
type Appointment struct {
	ID               string             `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID           string             `gorm:"type:varchar(36);not null;index:idx_appointments_user_member" json:"userId"`
	MemberID         string             `gorm:"type:varchar(36);not null;index:idx_appointments_user_member;index" json:"memberId"`
	JourneyID        *string            `gorm:"type:varchar(36);index" json:"journeyId,omitempty"`
	Status           AppointmentStatus  `gorm:"not null;index" json:"status"`
	NotBefore        *time.Time         `json:"notBefore"`
	Start            *time.Time         `gorm:"column:start_at;index" json:"start"`
	End              *time.Time         `gorm:"column:end_at" json:"end"`
	Method           *AppointmentMethod `json:"method"`
	NoShow           bool               `gorm:"not null;default:false" json:"noShow"`
	NoShowReason     *string            `gorm:"type:text" json:"noShowReason"`
	RecordingConsent *bool              `json:"recordingConsent"`
	Notes            *Notes             `gorm:"foreignKey:AppointmentID;constraint:OnDelete:CASCADE;" json:"notes"`
	CreatedAt        time.Time          `json:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt"`
	DeletedAt        gorm.DeletedAt     `gorm:"index" json:"deletedAt"`
	DeletedBy        *string            `gorm:"type:varchar(36)" json:"deletedBy,omitempty"`

	Deleted bool   `gorm:"-" json:"deleted"`
	Link    string `gorm:"-" json:"link"`
}

func (a *Appointment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

func (a *Appointment) AfterFind(tx *gorm.DB) error {
	a.Deleted = a.DeletedAt.Valid
	return nil
}
