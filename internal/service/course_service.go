package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"learnhub-backend/internal/events"
	"learnhub-backend/internal/models"
	"learnhub-backend/internal/repository"
	"learnhub-backend/pkg/cache"
	"learnhub-backend/pkg/logger"
)

const defaultRecommendedCoins int64 = 300

// cachedCourse is what the course cache stores: the course row plus its ordered chapter
// links. Chapters themselves are loaded per request so video URLs never reach Redis.
type cachedCourse struct {
	Course models.Course          `json:"course"`
	Links  []models.CourseChapter `json:"links"`
}

// CourseService serves course listings, free enrolment and catalog administration.
type CourseService struct {
	courses  repository.CourseRepository
	chapters repository.ChapterRepository
	catalog  repository.CatalogRepository
	cache    *cache.Cache
	events   events.Emitter
}

func NewCourseService(
	courses repository.CourseRepository,
	chapters repository.ChapterRepository,
	catalog repository.CatalogRepository,
	cacheService *cache.Cache,
	emitter events.Emitter,
) *CourseService {
	if emitter == nil {
		emitter = events.Discard
	}
	return &CourseService{
		courses:  courses,
		chapters: chapters,
		catalog:  catalog,
		cache:    cacheService,
		events:   emitter,
	}
}

func (s *CourseService) loadCourse(courseID uint) (*cachedCourse, error) {
	var cached cachedCourse
	if s.cache != nil && s.cache.Enabled() {
		if err := s.cache.GetCachedCourse(courseID, &cached); err == nil {
			return &cached, nil
		}
	}

	course, err := s.courses.GetByID(courseID)
	if err != nil {
		return nil, notFoundOr(err, "course not found")
	}
	links, err := s.courses.ListChapterLinks(courseID)
	if err != nil {
		return nil, err
	}

	cached = cachedCourse{Course: *course, Links: links}
	if s.cache != nil {
		if err := s.cache.CacheCourse(courseID, cached); err != nil {
			logger.Warn("Failed to cache course", map[string]interface{}{"course_id": courseID, "error": err.Error()})
		}
	}
	return &cached, nil
}

func (s *CourseService) List(viewer Viewer) ([]models.Course, error) {
	if s == nil || s.courses == nil {
		return nil, errors.New("course service is not configured")
	}
	return s.courses.List(!viewer.IsAdmin)
}

// GetCourse returns a course with its ordered chapters. Non-admins only see published
// courses and chapters. Video URLs are never part of the result.
func (s *CourseService) GetCourse(viewer Viewer, courseID uint) (*models.CourseView, error) {
	if s == nil || s.courses == nil || s.chapters == nil {
		return nil, errors.New("course service is not configured")
	}

	cached, err := s.loadCourse(courseID)
	if err != nil {
		return nil, err
	}
	course := cached.Course
	if !course.IsPublished && !viewer.IsAdmin {
		return nil, newError(ErrNotFound, "course not found")
	}

	ids := make([]uint, 0, len(cached.Links))
	for _, link := range cached.Links {
		ids = append(ids, link.ChapterID)
	}
	chapters, err := s.chapters.GetByIDs(ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]*models.Chapter, len(chapters))
	for i := range chapters {
		byID[chapters[i].ID] = &chapters[i]
	}

	view := &models.CourseView{Course: &course, Chapters: make([]*models.ChapterView, 0, len(cached.Links))}
	for i := range cached.Links {
		link := cached.Links[i]
		chapter, ok := byID[link.ChapterID]
		if !ok || (!chapter.IsPublished && !viewer.IsAdmin) {
			continue
		}
		chapterView := newChapterView(chapter, effectivePremium(chapter, &course, &link), nil)
		chapterView.Position = link.Position
		view.Chapters = append(view.Chapters, chapterView)
	}
	course.Chapters = cached.Links

	return view, nil
}

// AttachChapter adds a chapter to a course, optionally overriding its premium flag for
// this course only.
func (s *CourseService) AttachChapter(courseID uint, req models.AttachChapterRequest) (*models.CourseChapter, error) {
	if s == nil || s.courses == nil || s.chapters == nil {
		return nil, errors.New("course service is not configured")
	}

	if _, err := s.courses.GetByID(courseID); err != nil {
		return nil, notFoundOr(err, "course not found")
	}
	if _, err := s.chapters.GetByID(req.ChapterID); err != nil {
		return nil, notFoundOr(err, "chapter not found")
	}

	position := 0
	if req.Position != nil {
		position = *req.Position
	} else {
		links, err := s.courses.ListChapterLinks(courseID)
		if err != nil {
			return nil, err
		}
		position = len(links)
	}

	link := &models.CourseChapter{
		CourseID:  courseID,
		ChapterID: req.ChapterID,
		Position:  position,
		IsPremium: req.IsPremium,
	}
	created, err := s.courses.AttachChapter(link)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, newError(ErrConflict, "chapter is already part of this course")
	}

	if s.cache != nil {
		if err := s.cache.InvalidateCourse(courseID); err != nil {
			logger.Warn("Failed to invalidate course cache", map[string]interface{}{"course_id": courseID, "error": err.Error()})
		}
	}

	logger.Info("Chapter attached to course", map[string]interface{}{"course_id": courseID, "chapter_id": req.ChapterID})
	return link, nil
}

// Enroll joins a free course. Premium courses have to be bought.
func (s *CourseService) Enroll(ctx context.Context, userID, courseID uint) error {
	if s == nil || s.courses == nil {
		return errors.New("course service is not configured")
	}

	course, err := s.courses.GetByID(courseID)
	if err != nil {
		return notFoundOr(err, "course not found")
	}
	if !course.IsPublished {
		return newError(ErrNotFound, "course not found")
	}
	if course.IsPremium {
		return newError(ErrPaymentRequired, "this course has to be purchased")
	}

	added, err := s.courses.AddLearner(courseID, userID)
	if err != nil {
		return err
	}
	if !added {
		return newError(ErrConflict, "you are already enrolled in this course")
	}

	s.events.Emit(ctx, events.EventCourseEnrolled, fmt.Sprintf("user:%d", userID), events.CourseEnrolledPayload{
		UserID:   userID,
		CourseID: courseID,
	})
	return nil
}

// RecommendedLearners lists users whose coin balance in the course reaches minCoins.
func (s *CourseService) RecommendedLearners(courseID uint, minCoins int64) ([]models.RecommendedLearner, error) {
	if s == nil || s.courses == nil {
		return nil, errors.New("course service is not configured")
	}
	if minCoins <= 0 {
		minCoins = defaultRecommendedCoins
	}
	if _, err := s.courses.GetByID(courseID); err != nil {
		return nil, notFoundOr(err, "course not found")
	}
	return s.courses.ListRecommendedLearners(courseID, minCoins)
}

func (s *CourseService) ListInstructors() ([]models.Instructor, error) {
	if s == nil || s.catalog == nil {
		return nil, errors.New("course service is not configured")
	}
	return s.catalog.ListInstructors()
}

func (s *CourseService) ListJobs() ([]models.Job, error) {
	if s == nil || s.catalog == nil {
		return nil, errors.New("course service is not configured")
	}
	return s.catalog.ListJobs()
}

func (s *CourseService) ListOpenVacancies() ([]models.Vacancy, error) {
	if s == nil || s.catalog == nil {
		return nil, errors.New("course service is not configured")
	}
	return s.catalog.ListOpenVacancies(time.Now())
}
