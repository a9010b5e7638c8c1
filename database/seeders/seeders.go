package seeders

import (
	"time"

	"nexus_go/models"
	"nexus_go/utils"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SeedAll runs all seeders. Each seeder skips tables that already have rows.
func SeedAll(db *gorm.DB) error {
	logrus.Info("Starting database seeding...")

	for _, seed := range []func(*gorm.DB) error{SeedUsers, SeedRequirements, SeedEvents} {
		if err := seed(db); err != nil {
			return err
		}
	}

	logrus.Info("Database seeding completed successfully!")
	return nil
}

func hasRows(db *gorm.DB, model interface{}) (bool, error) {
	var count int64
	if err := db.Model(model).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// SeedUsers creates the default admin and officer accounts.
func SeedUsers(db *gorm.DB) error {
	if ok, err := hasRows(db, &models.User{}); err != nil || ok {
		if ok {
			logrus.Info("Users already seeded, skipping...")
		}
		return err
	}

	hash, err := utils.HashPassword("password123")
	if err != nil {
		return err
	}

	users := []models.User{
		{Name: "System Admin", FirstName: "System", LastName: "Admin", Email: "admin@nexus.local",
			Password: hash, Role: models.RoleAdmin, Status: models.UserStatusActive},
		{Name: "Org Treasurer", FirstName: "Org", LastName: "Treasurer", Email: "treasurer@nexus.local",
			Password: hash, Role: models.RoleOfficer, Status: models.UserStatusActive},
		{Name: "Sample Member", FirstName: "Sample", LastName: "Member", Email: "member@nexus.local",
			Password: hash, StudentID: strPtr("2024-0001"), Program: "BSIT", Year: "1",
			Role: models.RoleMember, Status: models.UserStatusActive},
	}
	for i := range users {
		if err := db.Create(&users[i]).Error; err != nil {
			logrus.WithError(err).Errorf("Error seeding user %s", users[i].Email)
			return err
		}
	}

	logrus.Info("Users seeded successfully")
	return nil
}

// SeedRequirements creates a couple of open requirements with nobody paid.
func SeedRequirements(db *gorm.DB) error {
	if ok, err := hasRows(db, &models.Requirement{}); err != nil || ok {
		return err
	}

	deadline := time.Now().AddDate(0, 1, 0).Truncate(24 * time.Hour)
	reqs := []models.Requirement{
		{Title: "Membership Fee", Description: "Semestral membership dues",
			Amount: decimal.NewFromInt(150), Deadline: deadline, TotalUsers: 50, Unpaid: 50},
		{Title: "Org Shirt", Description: "Official organization shirt",
			Amount: decimal.NewFromInt(350), Deadline: deadline.AddDate(0, 0, 14), TotalUsers: 50, Unpaid: 50},
	}
	if err := db.Create(&reqs).Error; err != nil {
		return err
	}

	logrus.Info("Requirements seeded successfully")
	return nil
}

// SeedEvents creates an upcoming general assembly.
func SeedEvents(db *gorm.DB) error {
	if ok, err := hasRows(db, &models.Event{}); err != nil || ok {
		return err
	}

	ev := models.Event{
		Title:       "General Assembly",
		Description: "Start of semester assembly",
		Date:        time.Now().AddDate(0, 0, 14).Truncate(24 * time.Hour),
		Time:        "13:00",
		Location:    "Main Auditorium",
		Capacity:    100,
		Category:    "Meeting",
		Status:      models.EventUpcoming,
	}
	if err := db.Create(&ev).Error; err != nil {
		return err
	}

	logrus.Info("Events seeded successfully")
	return nil
}

func strPtr(s string) *string { return &s }
