package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"learnhub-backend/internal/models"
)

var errAnswerExists = errors.New("quiz answer already recorded")

type ProgressRepository interface {
	HasAnswer(userID, chapterID, courseID uint) (bool, error)
	RecordQuizPass(answer *models.QuizAnswer, reward int64) (bool, error)
	MarkCompleted(userID, chapterID uint, courseID *uint) error
	IsCompleted(userID, chapterID uint) (bool, error)
	ListCompletedChapterIDs(userID uint) ([]uint, error)
	CountCompletedInCourse(userID, courseID uint) (int64, error)
	ListAnswers(userID uint) ([]models.QuizAnswer, error)
	ListCoins(userID uint) ([]models.CourseCoin, error)
}

type progressRepository struct {
	db *gorm.DB
}

func NewProgressRepository(db *gorm.DB) ProgressRepository {
	return &progressRepository{db: db}
}

func (r *progressRepository) HasAnswer(userID, chapterID, courseID uint) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("progress repository is not initialised")
	}
	var count int64
	err := r.db.Model(&models.QuizAnswer{}).
		Where("user_id = ? AND chapter_id = ? AND course_id = ?", userID, chapterID, courseID).
		Count(&count).Error
	return count > 0, err
}

// RecordQuizPass stores a passed attempt, marks the chapter completed and credits the
// reward, all in one transaction. The unique (user, chapter, course) key on answers is
// re-checked at write time; it reports false and writes nothing when the attempt was
// already recorded.
func (r *progressRepository) RecordQuizPass(answer *models.QuizAnswer, reward int64) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("progress repository is not initialised")
	}
	if answer == nil {
		return false, errors.New("answer is required")
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(answer)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errAnswerExists
		}

		courseID := answer.CourseID
		if err := upsertProgress(tx, answer.UserID, answer.ChapterID, &courseID); err != nil {
			return err
		}

		coins := models.CourseCoin{UserID: answer.UserID, CourseID: answer.CourseID, Coins: reward}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"coins":      gorm.Expr("course_coins.coins + ?", reward),
				"updated_at": time.Now(),
			}),
		}).Create(&coins).Error
	})

	if errors.Is(err, errAnswerExists) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *progressRepository) MarkCompleted(userID, chapterID uint, courseID *uint) error {
	if r == nil || r.db == nil {
		return errors.New("progress repository is not initialised")
	}
	return upsertProgress(r.db, userID, chapterID, courseID)
}

func (r *progressRepository) IsCompleted(userID, chapterID uint) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("progress repository is not initialised")
	}
	var count int64
	err := r.db.Model(&models.Progress{}).
		Where("user_id = ? AND chapter_id = ? AND is_completed = ?", userID, chapterID, true).
		Count(&count).Error
	return count > 0, err
}

func (r *progressRepository) ListCompletedChapterIDs(userID uint) ([]uint, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("progress repository is not initialised")
	}
	ids := make([]uint, 0)
	err := r.db.Model(&models.Progress{}).
		Where("user_id = ? AND is_completed = ?", userID, true).
		Order("created_at ASC").
		Order("id ASC").
		Pluck("chapter_id", &ids).Error
	return ids, err
}

// CountCompletedInCourse counts completed chapters among the course's published chapters.
func (r *progressRepository) CountCompletedInCourse(userID, courseID uint) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("progress repository is not initialised")
	}
	var count int64
	err := r.db.Model(&models.Progress{}).
		Joins("JOIN course_chapters ON course_chapters.chapter_id = progresses.chapter_id AND course_chapters.course_id = ?", courseID).
		Joins("JOIN chapters ON chapters.id = progresses.chapter_id AND chapters.deleted_at IS NULL").
		Where("progresses.user_id = ? AND progresses.is_completed = ? AND chapters.is_published = ?", userID, true, true).
		Count(&count).Error
	return count, err
}

func (r *progressRepository) ListAnswers(userID uint) ([]models.QuizAnswer, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("progress repository is not initialised")
	}
	answers := make([]models.QuizAnswer, 0)
	err := r.db.Where("user_id = ?", userID).Order("created_at ASC").Order("id ASC").Find(&answers).Error
	return answers, err
}

func (r *progressRepository) ListCoins(userID uint) ([]models.CourseCoin, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("progress repository is not initialised")
	}
	coins := make([]models.CourseCoin, 0)
	err := r.db.Where("user_id = ?", userID).Order("course_id ASC").Find(&coins).Error
	return coins, err
}

func upsertProgress(db *gorm.DB, userID, chapterID uint, courseID *uint) error {
	progress := models.Progress{UserID: userID, ChapterID: chapterID, CourseID: courseID, IsCompleted: true}
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "chapter_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"is_completed": true,
			"updated_at":   time.Now(),
		}),
	}).Create(&progress).Error
}
