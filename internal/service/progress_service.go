package service

import (
	"errors"
	"math"

	"learnhub-backend/internal/models"
	"learnhub-backend/internal/repository"
)

type ProgressService struct {
	courses  repository.CourseRepository
	chapters repository.ChapterRepository
	progress repository.ProgressRepository
	access   *EntitlementService
}

func NewProgressService(
	courses repository.CourseRepository,
	chapters repository.ChapterRepository,
	progress repository.ProgressRepository,
	access *EntitlementService,
) *ProgressService {
	return &ProgressService{courses: courses, chapters: chapters, progress: progress, access: access}
}

// Percentage returns completed/published*100 rounded to two decimals, and 0 for a
// course without published chapters.
func Percentage(completed, published int64) float64 {
	if published <= 0 {
		return 0
	}
	if completed > published {
		completed = published
	}
	return math.Round(float64(completed)/float64(published)*100*100) / 100
}

func (s *ProgressService) GetProgress(userID, courseID uint) (*models.ProgressReport, error) {
	if s == nil || s.courses == nil || s.progress == nil {
		return nil, errors.New("progress service is not configured")
	}

	if _, err := s.courses.GetByID(courseID); err != nil {
		return nil, notFoundOr(err, "course not found")
	}

	published, err := s.courses.CountPublishedChapters(courseID)
	if err != nil {
		return nil, err
	}
	completed, err := s.progress.CountCompletedInCourse(userID, courseID)
	if err != nil {
		return nil, err
	}

	return &models.ProgressReport{
		CourseID:              courseID,
		Percentage:            Percentage(completed, published),
		PublishedChapterCount: int(published),
		CompletedChapterCount: int(completed),
	}, nil
}

// MarkChapterCompleted records completion of a chapter that has no quiz. Quiz chapters
// only complete through a passing submission.
func (s *ProgressService) MarkChapterCompleted(viewer Viewer, chapterID uint, courseID *uint) error {
	if s == nil || s.chapters == nil || s.progress == nil || s.access == nil {
		return errors.New("progress service is not configured")
	}

	decision, err := s.access.Evaluate(viewer, chapterID, courseID)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return newError(ErrPaymentRequired, "purchase this chapter or course to track progress")
	}

	questions, err := s.chapters.ListQuestions(chapterID)
	if err != nil {
		return err
	}
	if len(questions) > 0 {
		return newError(ErrInvalidInput, "this chapter is completed by passing its quiz")
	}

	return s.progress.MarkCompleted(viewer.UserID, chapterID, courseID)
}
