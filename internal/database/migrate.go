package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/noah-isme/levelup-api/internal/models"
)

// Models lists every persisted model in dependency order.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.StudentProfile{},
		&models.TeacherProfile{},
		&models.AdminProfile{},
		&models.Course{},
		&models.Subject{},
		&models.Enrollment{},
		&models.TeacherAssignment{},
		&models.ReinforcementGroup{},
		&models.Activity{},
		&models.ActivityItem{},
		&models.ActivityAssignment{},
		&models.Submission{},
		&models.Answer{},
		&models.GamificationProfile{},
		&models.Reward{},
		&models.UserReward{},
		&models.ActivityLog{},
	}
}

// Migrate creates or updates the schema for all models.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
