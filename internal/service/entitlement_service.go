package service

import (
	"errors"

	"gorm.io/gorm"

	"learnhub-backend/internal/authorization"
	"learnhub-backend/internal/models"
	"learnhub-backend/internal/repository"
)

// Viewer is the authenticated identity a request acts as.
type Viewer struct {
	UserID  uint
	Role    authorization.UserRole
	IsAdmin bool
}

// Can reports whether the viewer's role grants perm. Admins hold every permission.
func (v Viewer) Can(perm authorization.Permission) bool {
	return v.IsAdmin || authorization.RoleHasPermission(v.Role, perm)
}

// Access reasons, reported with every decision for logging and tests.
const (
	AccessAdmin     = "admin"
	AccessAllAccess = "all_access"
	AccessFree      = "free"
	AccessCourse    = "course_purchase"
	AccessChapter   = "chapter_purchase"
	AccessLearner   = "learner"
	AccessDenied    = "payment_required"
)

type AccessDecision struct {
	Allowed bool
	Reason  string
	Premium bool
	Chapter *models.Chapter
	Course  *models.Course
}

// EntitlementService decides whether a viewer may watch a chapter's video. It never
// writes.
type EntitlementService struct {
	users    repository.UserRepository
	courses  repository.CourseRepository
	chapters repository.ChapterRepository
}

func NewEntitlementService(users repository.UserRepository, courses repository.CourseRepository, chapters repository.ChapterRepository) *EntitlementService {
	return &EntitlementService{users: users, courses: courses, chapters: chapters}
}

// Evaluate applies the access rules in order: admin, all-access, free content, then
// premium ownership through a course purchase, a chapter purchase or learner status.
// courseID is optional; without it every course containing the chapter is considered.
func (s *EntitlementService) Evaluate(viewer Viewer, chapterID uint, courseID *uint) (*AccessDecision, error) {
	if s == nil || s.users == nil || s.courses == nil || s.chapters == nil {
		return nil, errors.New("entitlement service is not configured")
	}

	chapter, err := s.chapters.GetByID(chapterID)
	if err != nil {
		return nil, notFoundOr(err, "chapter not found")
	}

	decision := &AccessDecision{Chapter: chapter}

	var links []models.CourseChapter
	if courseID != nil {
		course, err := s.courses.GetByID(*courseID)
		if err != nil {
			return nil, notFoundOr(err, "course not found")
		}
		link, err := s.courses.GetChapterLink(course.ID, chapter.ID)
		if err != nil {
			return nil, notFoundOr(err, "chapter is not part of this course")
		}
		decision.Course = course
		decision.Premium = effectivePremium(chapter, course, link)
		links = []models.CourseChapter{*link}
	} else {
		courseIDs, err := s.courses.ListCourseIDsForChapter(chapter.ID)
		if err != nil {
			return nil, err
		}
		// Premium when any pairing is premium; an unlinked chapter keeps its own flag.
		premium := false
		for _, id := range courseIDs {
			course, err := s.courses.GetByID(id)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					continue
				}
				return nil, err
			}
			link, err := s.courses.GetChapterLink(id, chapter.ID)
			if err != nil {
				return nil, err
			}
			if effectivePremium(chapter, course, link) {
				premium = true
			}
			links = append(links, *link)
		}
		if len(links) == 0 {
			premium = chapter.IsPremium
		}
		decision.Premium = premium
	}

	if viewer.Can(authorization.PermissionBypassPaywall) {
		return allow(decision, AccessAdmin), nil
	}

	if !chapter.IsPublished {
		return nil, newError(ErrNotFound, "chapter not found")
	}

	user, err := s.users.GetByID(viewer.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(ErrUnauthorized, "user no longer exists")
		}
		return nil, err
	}

	if user.HasAllAccess {
		return allow(decision, AccessAllAccess), nil
	}
	if !decision.Premium {
		return allow(decision, AccessFree), nil
	}

	for _, link := range links {
		owns, err := s.users.HasCourse(user.ID, link.CourseID)
		if err != nil {
			return nil, err
		}
		if owns {
			return allow(decision, AccessCourse), nil
		}
	}

	purchased, err := s.chapters.HasPurchase(chapter.ID, user.ID)
	if err != nil {
		return nil, err
	}
	if purchased {
		return allow(decision, AccessChapter), nil
	}

	for _, link := range links {
		learner, err := s.courses.IsLearner(link.CourseID, user.ID)
		if err != nil {
			return nil, err
		}
		if learner {
			return allow(decision, AccessLearner), nil
		}
	}

	decision.Reason = AccessDenied
	return decision, nil
}

// GetChapter returns the chapter view for the viewer. The video URL is loaded only
// after access is granted; a denied viewer receives ErrPaymentRequired and no view.
func (s *EntitlementService) GetChapter(viewer Viewer, chapterID uint, courseID *uint) (*models.ChapterView, error) {
	decision, err := s.Evaluate(viewer, chapterID, courseID)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, newError(ErrPaymentRequired, "purchase this chapter or course to watch the video")
	}

	questions, err := s.chapters.ListQuestions(chapterID)
	if err != nil {
		return nil, err
	}

	view := newChapterView(decision.Chapter, decision.Premium, questions)

	videoURL, err := s.chapters.GetVideoURL(chapterID)
	if err != nil {
		return nil, notFoundOr(err, "chapter not found")
	}
	view.VideoURL = videoURL

	return view, nil
}

func allow(decision *AccessDecision, reason string) *AccessDecision {
	decision.Allowed = true
	decision.Reason = reason
	return decision
}

// effectivePremium resolves the premium flag of a chapter inside a course. A per-pairing
// override wins; otherwise either the chapter or the course being premium is enough.
func effectivePremium(chapter *models.Chapter, course *models.Course, link *models.CourseChapter) bool {
	if link != nil && link.IsPremium != nil {
		return *link.IsPremium
	}
	return chapter.IsPremium || (course != nil && course.IsPremium)
}

func newChapterView(chapter *models.Chapter, premium bool, questions []models.ChapterQuestion) *models.ChapterView {
	view := &models.ChapterView{
		ID:          chapter.ID,
		Title:       chapter.Title,
		Description: chapter.Description,
		Notes:       chapter.Notes,
		IsPublished: chapter.IsPublished,
		IsPremium:   premium,
		Position:    chapter.Position,
		Questions:   make([]models.QuestionView, 0, len(questions)),
	}
	for _, q := range questions {
		view.Questions = append(view.Questions, models.QuestionView{
			ID:      q.ID,
			Text:    q.Text,
			Options: append([]string(nil), q.Options...),
		})
	}
	return view
}
