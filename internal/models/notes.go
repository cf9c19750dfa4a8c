package models

import (
	"time"

	"github.com/carecircle/hub/internal/crypto"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var encryptor *crypto.FieldEncryptor

// InitEncryption enables at-rest encryption of note text. Without it notes are
// stored as plaintext.
func InitEncryption(encryptionKey string) error {
	e, err := crypto.NewFieldEncryptor(encryptionKey)
	if err != nil {
		return err
	}
	encryptor = e
	return nil
}

// Scores are the member self-reported scores captured in appointment notes.
type Scores struct {
	Adherence     int    `json:"adherence"`
	AdherenceText string `json:"adherenceText,omitempty"`
	Wellbeing     int    `json:"wellbeing"`
	WellbeingText string `json:"wellbeingText,omitempty"`
}

// Notes is the 1:1 recap attached to an appointment.
type Notes struct {
	ID               string         `gorm:"primaryKey;type:varchar(36)" json:"-"`
	AppointmentID    string         `gorm:"type:varchar(36);not null;uniqueIndex" json:"-"`
	Recap            string         `gorm:"type:text" json:"recap"`
	Strengths        string         `gorm:"type:text" json:"strengths"`
	UserActionItem   string         `gorm:"type:text" json:"userActionItem"`
	MemberActionItem string         `gorm:"type:text" json:"memberActionItem"`
	Scores           *Scores        `gorm:"serializer:json;type:text" json:"scores"`
	CreatedAt        time.Time      `json:"-"`
	UpdatedAt        time.Time      `json:"-"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
	DeletedBy        *string        `gorm:"type:varchar(36)" json:"-"`
}

func (n *Notes) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}

func (n *Notes) textFields() map[string]*string {
	return map[string]*string{
		"recap":              &n.Recap,
		"strengths":          &n.Strengths,
		"user_action_item":   &n.UserActionItem,
		"member_action_item": &n.MemberActionItem,
	}
}

// BeforeSave encrypts the free-text fields.
func (n *Notes) BeforeSave(tx *gorm.DB) error {
	if encryptor == nil {
		return nil
	}
	for col, f := range n.textFields() {
		enc, err := encryptor.Seal(col, *f)
		if err != nil {
			return err
		}
		*f = enc
	}
	return nil
}

// AfterSave restores plaintext on the in-memory value so callers never see
// ciphertext.
func (n *Notes) AfterSave(tx *gorm.DB) error {
	return n.decrypt()
}

func (n *Notes) AfterFind(tx *gorm.DB) error {
	return n.decrypt()
}

func (n *Notes) decrypt() error {
	if encryptor == nil {
		return nil
	}
	for col, f := range n.textFields() {
		dec, err := encryptor.Open(col, *f)
		if err != nil {
			return err
		}
		*f = dec
	}
	return nil
}
