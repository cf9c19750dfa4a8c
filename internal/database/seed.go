package database

import (
	"errors"
	"log/slog"
	"time"

	"github.com/carecircle/hub/internal/models"
	"gorm.io/gorm"
)

const devUserEmail = "dev@carecircle.local"

// SeedDevData populates the database with a user, two members and one
// scheduled appointment. Idempotent: skips if the dev user exists.
func SeedDevData(db *gorm.DB) error {
	var existing models.User
	err := db.Where("email = ?", devUserEmail).First(&existing).Error
	if err == nil {
		slog.Info("Seed data already exists, skipping")
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		user := models.User{
			Email:    devUserEmail,
			Name:     "Dev Coach",
			Timezone: "America/Chicago",
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}

		members := []models.Member{
			{PrimaryUserID: user.ID, FirstName: "Ada", LastName: "Lovelace"},
			{PrimaryUserID: user.ID, FirstName: "Alan", LastName: "Turing"},
		}
		if err := tx.Create(&members).Error; err != nil {
			return err
		}

		start := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Hour)
		end := start.Add(30 * time.Minute)
		method := models.AppointmentMethodVideo
		appt := models.Appointment{
			UserID:   user.ID,
			MemberID: members[0].ID,
			Status:   models.AppointmentStatusScheduled,
			Start:    &start,
			End:      &end,
			Method:   &method,
		}
		if err := tx.Create(&appt).Error; err != nil {
			return err
		}

		slog.Info("Seeded dev data", "user_id", user.ID, "members", len(members), "appointments", 1)
		return nil
	})
}
