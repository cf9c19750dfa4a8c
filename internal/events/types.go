package events

import "github.com/carecircle/hub/internal/models"

// Type identifies an event kind on the bus.
type Type string

const (
	TypeNewAppointment           Type = "newAppointment"
	TypeUpdatedAppointment       Type = "updatedAppointment"
	TypeDeletedAppointment       Type = "deletedAppointment"
	TypeUpdatedAppointmentScores Type = "updatedAppointmentScores"
	TypeDeleteMember             Type = "deleteMember"
	TypeUpdatedUser              Type = "updatedUser"
)

// Event is implemented by every payload published on the bus.
type Event interface {
	EventType() Type
}

// NewAppointment is emitted only when a brand-new appointment row is created.
type NewAppointment struct {
	MemberID      string `json:"memberId"`
	UserID        string `json:"userId"`
	AppointmentID string `json:"appointmentId"`
}

func (NewAppointment) EventType() Type { return TypeNewAppointment }

// UpdatedAppointment is emitted when schedule overwrites an existing row.
type UpdatedAppointment struct {
	MemberID      string `json:"memberId"`
	UserID        string `json:"userId"`
	AppointmentID string `json:"appointmentId"`
}

func (UpdatedAppointment) EventType() Type { return TypeUpdatedAppointment }

type DeletedAppointment struct {
	MemberID      string `json:"memberId"`
	UserID        string `json:"userId"`
	AppointmentID string `json:"appointmentId"`
	Hard          bool   `json:"hard"`
}

func (DeletedAppointment) EventType() Type { return TypeDeletedAppointment }

// UpdatedAppointmentScores carries nil Scores when notes were cleared.
type UpdatedAppointmentScores struct {
	MemberID string         `json:"memberId"`
	Scores   *models.Scores `json:"scores"`
}

func (UpdatedAppointmentScores) EventType() Type { return TypeUpdatedAppointmentScores }

type DeleteMember struct {
	MemberID  string `json:"memberId"`
	DeletedBy string `json:"deletedBy"`
	Hard      bool   `json:"hard"`
}

func (DeleteMember) EventType() Type { return TypeDeleteMember }

type UpdatedUser struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Phone  string `json:"phone"`
}

func (UpdatedUser) EventType() Type { return TypeUpdatedUser }
