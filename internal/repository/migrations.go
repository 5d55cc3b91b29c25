package repository

import (
	"gorm.io/gorm"

	"learnhub-backend/internal/models"
)

// AutoMigrate creates or updates every table, including the unique keys the
// exactly-once writes depend on.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Course{},
		&models.Chapter{},
		&models.CourseChapter{},
		&models.ChapterQuestion{},
		&models.ChapterPurchase{},
		&models.UserCourse{},
		&models.CourseLearner{},
		&models.QuizAnswer{},
		&models.CourseCoin{},
		&models.Progress{},
		&models.Order{},
		&models.Instructor{},
		&models.Job{},
		&models.Vacancy{},
	)
}
