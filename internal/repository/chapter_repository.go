package repository

import (
	"errors"

	"gorm.io/gorm"

	"learnhub-backend/internal/models"
)

// chapterColumns lists every chapter column except video_url, which is only read
// through GetVideoURL after an entitlement check.
var chapterColumns = []string{
	"id", "created_at", "updated_at", "deleted_at",
	"title", "description", "notes",
	"is_published", "is_premium", "position", "price",
}

type ChapterRepository interface {
	Create(chapter *models.Chapter) error
	GetByID(id uint) (*models.Chapter, error)
	GetByIDs(ids []uint) ([]models.Chapter, error)
	GetVideoURL(id uint) (string, error)
	HasPurchase(chapterID, userID uint) (bool, error)
	ListPurchasedChapterIDs(userID uint) ([]uint, error)

	ListQuestions(chapterID uint) ([]models.ChapterQuestion, error)
	CreateQuestions(questions []models.ChapterQuestion) error
	GetQuestion(chapterID, questionID uint) (*models.ChapterQuestion, error)
	UpdateQuestion(question *models.ChapterQuestion) error
	DeleteQuestion(chapterID, questionID uint) error
}

type chapterRepository struct {
	db *gorm.DB
}

func NewChapterRepository(db *gorm.DB) ChapterRepository {
	return &chapterRepository{db: db}
}

func (r *chapterRepository) Create(chapter *models.Chapter) error {
	if r == nil || r.db == nil {
		return errors.New("chapter repository is not initialised")
	}
	if chapter == nil {
		return errors.New("chapter is required")
	}
	return r.db.Create(chapter).Error
}

func (r *chapterRepository) GetByID(id uint) (*models.Chapter, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("chapter repository is not initialised")
	}
	var chapter models.Chapter
	if err := r.db.Select(chapterColumns).First(&chapter, id).Error; err != nil {
		return nil, err
	}
	return &chapter, nil
}

func (r *chapterRepository) GetByIDs(ids []uint) ([]models.Chapter, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("chapter repository is not initialised")
	}
	if len(ids) == 0 {
		return []models.Chapter{}, nil
	}
	var chapters []models.Chapter
	if err := r.db.Select(chapterColumns).Where("id IN ?", ids).Find(&chapters).Error; err != nil {
		return nil, err
	}
	return chapters, nil
}

func (r *chapterRepository) GetVideoURL(id uint) (string, error) {
	if r == nil || r.db == nil {
		return "", errors.New("chapter repository is not initialised")
	}
	var chapter models.Chapter
	if err := r.db.Select("id", "video_url").First(&chapter, id).Error; err != nil {
		return "", err
	}
	return chapter.VideoURL, nil
}

func (r *chapterRepository) HasPurchase(chapterID, userID uint) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("chapter repository is not initialised")
	}
	var count int64
	err := r.db.Model(&models.ChapterPurchase{}).
		Where("chapter_id = ? AND user_id = ?", chapterID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *chapterRepository) ListPurchasedChapterIDs(userID uint) ([]uint, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("chapter repository is not initialised")
	}
	ids := make([]uint, 0)
	err := r.db.Model(&models.ChapterPurchase{}).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Pluck("chapter_id", &ids).Error
	return ids, err
}

func (r *chapterRepository) ListQuestions(chapterID uint) ([]models.ChapterQuestion, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("chapter repository is not initialised")
	}
	questions := make([]models.ChapterQuestion, 0)
	err := r.db.Where("chapter_id = ?", chapterID).
		Order("position ASC").
		Order("id ASC").
		Find(&questions).Error
	return questions, err
}

func (r *chapterRepository) CreateQuestions(questions []models.ChapterQuestion) error {
	if r == nil || r.db == nil {
		return errors.New("chapter repository is not initialised")
	}
	if len(questions) == 0 {
		return errors.New("at least one question is required")
	}
	return r.db.Create(&questions).Error
}

func (r *chapterRepository) GetQuestion(chapterID, questionID uint) (*models.ChapterQuestion, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("chapter repository is not initialised")
	}
	var question models.ChapterQuestion
	if err := r.db.Where("chapter_id = ?", chapterID).First(&question, questionID).Error; err != nil {
		return nil, err
	}
	return &question, nil
}

func (r *chapterRepository) UpdateQuestion(question *models.ChapterQuestion) error {
	if r == nil || r.db == nil {
		return errors.New("chapter repository is not initialised")
	}
	if question == nil {
		return errors.New("question is required")
	}
	return r.db.Save(question).Error
}

func (r *chapterRepository) DeleteQuestion(chapterID, questionID uint) error {
	if r == nil || r.db == nil {
		return errors.New("chapter repository is not initialised")
	}
	result := r.db.Where("chapter_id = ? AND id = ?", chapterID, questionID).Delete(&models.ChapterQuestion{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
