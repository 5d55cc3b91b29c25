package service

import (
	"errors"

	"learnhub-backend/internal/authorization"
	"learnhub-backend/internal/models"
	"learnhub-backend/internal/repository"
)

// UserService assembles a learner's purchases and progress.
type UserService struct {
	users    repository.UserRepository
	chapters repository.ChapterRepository
	progress repository.ProgressRepository
	tracker  *ProgressService
}

func NewUserService(users repository.UserRepository, chapters repository.ChapterRepository, progress repository.ProgressRepository, tracker *ProgressService) *UserService {
	return &UserService{users: users, chapters: chapters, progress: progress, tracker: tracker}
}

// GetUserData returns the data of userID. Users may read their own data; roles with
// PermissionViewAnyUserData may read anyone's.
func (s *UserService) GetUserData(viewer Viewer, userID uint) (*models.UserData, error) {
	if s == nil || s.users == nil || s.chapters == nil || s.progress == nil || s.tracker == nil {
		return nil, errors.New("user service is not configured")
	}
	if viewer.UserID != userID && !viewer.Can(authorization.PermissionViewAnyUserData) {
		return nil, newError(ErrForbidden, "you can only view your own data")
	}

	user, err := s.users.GetByID(userID)
	if err != nil {
		return nil, notFoundOr(err, "user not found")
	}

	courseIDs, err := s.users.ListCourseIDs(userID)
	if err != nil {
		return nil, err
	}
	purchased, err := s.chapters.ListPurchasedChapterIDs(userID)
	if err != nil {
		return nil, err
	}
	completed, err := s.progress.ListCompletedChapterIDs(userID)
	if err != nil {
		return nil, err
	}
	coins, err := s.progress.ListCoins(userID)
	if err != nil {
		return nil, err
	}
	answers, err := s.progress.ListAnswers(userID)
	if err != nil {
		return nil, err
	}

	reports := make([]models.ProgressReport, 0, len(courseIDs))
	for _, courseID := range courseIDs {
		report, err := s.tracker.GetProgress(userID, courseID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		reports = append(reports, *report)
	}

	return &models.UserData{
		User:              user,
		HasAllAccess:      user.HasAllAccess,
		Courses:           courseIDs,
		PurchasedChapters: purchased,
		CompletedChapters: completed,
		CourseCoins:       coins,
		Answers:           answers,
		Progress:          reports,
	}, nil
}
