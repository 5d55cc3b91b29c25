package repository

import (
	"errors"

	"gorm.io/gorm"

	"learnhub-backend/internal/models"
)

type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByIDs(ids []uint) ([]models.User, error)
	ListCourseIDs(userID uint) ([]uint, error)
	HasCourse(userID, courseID uint) (bool, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(user *models.User) error {
	if r == nil || r.db == nil {
		return errors.New("user repository is not initialised")
	}
	if user == nil {
		return errors.New("user is required")
	}
	return r.db.Create(user).Error
}

func (r *userRepository) GetByID(id uint) (*models.User, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("user repository is not initialised")
	}
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(email string) (*models.User, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("user repository is not initialised")
	}
	var user models.User
	if err := r.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByIDs(ids []uint) ([]models.User, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("user repository is not initialised")
	}
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	var users []models.User
	if err := r.db.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) ListCourseIDs(userID uint) ([]uint, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("user repository is not initialised")
	}
	ids := make([]uint, 0)
	err := r.db.Model(&models.UserCourse{}).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Pluck("course_id", &ids).Error
	return ids, err
}

func (r *userRepository) HasCourse(userID, courseID uint) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("user repository is not initialised")
	}
	var count int64
	err := r.db.Model(&models.UserCourse{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&count).Error
	return count > 0, err
}
