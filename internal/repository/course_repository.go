package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"learnhub-backend/internal/models"
)

type CourseRepository interface {
	Create(course *models.Course) error
	GetByID(id uint) (*models.Course, error)
	List(publishedOnly bool) ([]models.Course, error)
	ListChapterLinks(courseID uint) ([]models.CourseChapter, error)
	GetChapterLink(courseID, chapterID uint) (*models.CourseChapter, error)
	ListCourseIDsForChapter(chapterID uint) ([]uint, error)
	AttachChapter(link *models.CourseChapter) (bool, error)
	CountPublishedChapters(courseID uint) (int64, error)
	IsLearner(courseID, userID uint) (bool, error)
	AddLearner(courseID, userID uint) (bool, error)
	ListRecommendedLearners(courseID uint, minCoins int64) ([]models.RecommendedLearner, error)
}

type courseRepository struct {
	db *gorm.DB
}

func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepository{db: db}
}

func (r *courseRepository) Create(course *models.Course) error {
	if r == nil || r.db == nil {
		return errors.New("course repository is not initialised")
	}
	if course == nil {
		return errors.New("course is required")
	}
	return r.db.Create(course).Error
}

// GetByID treats soft-deleted courses as missing.
func (r *courseRepository) GetByID(id uint) (*models.Course, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("course repository is not initialised")
	}
	var course models.Course
	if err := r.db.Where("deleted = ?", false).First(&course, id).Error; err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *courseRepository) List(publishedOnly bool) ([]models.Course, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("course repository is not initialised")
	}
	query := r.db.Where("deleted = ?", false)
	if publishedOnly {
		query = query.Where("is_published = ?", true)
	}
	var courses []models.Course
	if err := query.Order("created_at DESC").Find(&courses).Error; err != nil {
		return nil, err
	}
	return courses, nil
}

func (r *courseRepository) ListChapterLinks(courseID uint) ([]models.CourseChapter, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("course repository is not initialised")
	}
	links := make([]models.CourseChapter, 0)
	err := r.db.Where("course_id = ?", courseID).
		Order("position ASC").
		Order("id ASC").
		Find(&links).Error
	return links, err
}

func (r *courseRepository) GetChapterLink(courseID, chapterID uint) (*models.CourseChapter, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("course repository is not initialised")
	}
	var link models.CourseChapter
	if err := r.db.Where("course_id = ? AND chapter_id = ?", courseID, chapterID).First(&link).Error; err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *courseRepository) ListCourseIDsForChapter(chapterID uint) ([]uint, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("course repository is not initialised")
	}
	ids := make([]uint, 0)
	err := r.db.Model(&models.CourseChapter{}).
		Joins("JOIN courses ON courses.id = course_chapters.course_id AND courses.deleted = ? AND courses.deleted_at IS NULL", false).
		Where("course_chapters.chapter_id = ?", chapterID).
		Pluck("course_chapters.course_id", &ids).Error
	return ids, err
}

// AttachChapter links a chapter into a course. It reports false when the pair already exists.
func (r *courseRepository) AttachChapter(link *models.CourseChapter) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("course repository is not initialised")
	}
	if link == nil {
		return false, errors.New("course chapter link is required")
	}
	result := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(link)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *courseRepository) CountPublishedChapters(courseID uint) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("course repository is not initialised")
	}
	var count int64
	err := r.db.Model(&models.CourseChapter{}).
		Joins("JOIN chapters ON chapters.id = course_chapters.chapter_id AND chapters.deleted_at IS NULL").
		Where("course_chapters.course_id = ? AND chapters.is_published = ?", courseID, true).
		Count(&count).Error
	return count, err
}

func (r *courseRepository) IsLearner(courseID, userID uint) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("course repository is not initialised")
	}
	var count int64
	err := r.db.Model(&models.CourseLearner{}).
		Where("course_id = ? AND user_id = ?", courseID, userID).
		Count(&count).Error
	return count > 0, err
}

// AddLearner reports false when the user was already a learner of the course.
func (r *courseRepository) AddLearner(courseID, userID uint) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("course repository is not initialised")
	}
	learner := models.CourseLearner{CourseID: courseID, UserID: userID, JoinedOn: time.Now()}
	result := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&learner)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *courseRepository) ListRecommendedLearners(courseID uint, minCoins int64) ([]models.RecommendedLearner, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("course repository is not initialised")
	}
	learners := make([]models.RecommendedLearner, 0)
	err := r.db.Model(&models.CourseCoin{}).
		Select("users.id AS user_id, users.username, users.full_name, course_coins.coins").
		Joins("JOIN users ON users.id = course_coins.user_id AND users.deleted_at IS NULL").
		Where("course_coins.course_id = ? AND course_coins.coins >= ?", courseID, minCoins).
		Order("course_coins.coins DESC").
		Order("users.id ASC").
		Scan(&learners).Error
	return learners, err
}
