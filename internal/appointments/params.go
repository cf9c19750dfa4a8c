package appointments

import (
	"time"

	"github.com/carecircle/hub/internal/models"
	"github.com/oapi-codegen/nullable"
)

type RequestParams struct {
	ID        string    `json:"id"`
	MemberID  string    `json:"memberId"`
	UserID    string    `json:"userId"`
	NotBefore time.Time `json:"notBefore"`
	JourneyID string    `json:"journeyId"`
}

type ScheduleParams struct {
	ID        string                   `json:"id"`
	MemberID  string                   `json:"memberId"`
	UserID    string                   `json:"userId"`
	Method    models.AppointmentMethod `json:"method"`
	Start     time.Time                `json:"start"`
	End       time.Time                `json:"end"`
	JourneyID string                   `json:"journeyId"`
}

// NotesInput is the client-facing shape of appointment notes.
type NotesInput struct {
	Recap            string         `json:"recap"`
	Strengths        string         `json:"strengths"`
	UserActionItem   string         `json:"userActionItem"`
	MemberActionItem string         `json:"memberActionItem"`
	Scores           *models.Scores `json:"scores"`
}

func (n NotesInput) toModel() *models.Notes {
	return &models.Notes{
		Recap:            n.Recap,
		Strengths:        n.Strengths,
		UserActionItem:   n.UserActionItem,
		MemberActionItem: n.MemberActionItem,
		Scores:           n.Scores,
	}
}

// EndParams uses tri-state fields: an omitted field keeps the stored value,
// an explicit null clears it.
type EndParams struct {
	ID           string                        `json:"id"`
	NoShow       nullable.Nullable[bool]       `json:"noShow"`
	NoShowReason nullable.Nullable[string]     `json:"noShowReason"`
	Notes        nullable.Nullable[NotesInput] `json:"notes"`
}

type UpdateNotesParams struct {
	AppointmentID string                        `json:"appointmentId"`
	Notes         nullable.Nullable[NotesInput] `json:"notes"`
}

type DeleteParams struct {
	ID        string
	DeletedBy string
	Hard      bool
}

type DeleteMemberParams struct {
	MemberID  string
	DeletedBy string
	Hard      bool
}

// FutureFilter narrows GetFutureAppointments; empty fields match anything.
type FutureFilter struct {
	UserID    string `form:"userId"`
	MemberID  string `form:"memberId"`
	JourneyID string `form:"journeyId"`
}

type RecordingParams struct {
	ID            string `json:"id"`
	AppointmentID string `json:"appointmentId"`
	UserID        string `json:"userId"`
}

type ReviewParams struct {
	RecordingID string `json:"recordingId"`
	UserID      string `json:"userId"`
	Content     string `json:"content"`
}
