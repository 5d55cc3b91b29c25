package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"learnhub-backend/internal/models"
)

// CatalogRepository reads the listing-only parts of the catalog.
type CatalogRepository interface {
	ListInstructors() ([]models.Instructor, error)
	ListJobs() ([]models.Job, error)
	ListOpenVacancies(now time.Time) ([]models.Vacancy, error)
}

type catalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepository{db: db}
}

func (r *catalogRepository) ListInstructors() ([]models.Instructor, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("catalog repository is not initialised")
	}
	instructors := make([]models.Instructor, 0)
	err := r.db.Order("full_name ASC").Find(&instructors).Error
	return instructors, err
}

func (r *catalogRepository) ListJobs() ([]models.Job, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("catalog repository is not initialised")
	}
	jobs := make([]models.Job, 0)
	err := r.db.Order("created_at DESC").Find(&jobs).Error
	return jobs, err
}

func (r *catalogRepository) ListOpenVacancies(now time.Time) ([]models.Vacancy, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("catalog repository is not initialised")
	}
	vacancies := make([]models.Vacancy, 0)
	err := r.db.Where("deadline >= ?", now).Order("deadline ASC").Find(&vacancies).Error
	return vacancies, err
}
