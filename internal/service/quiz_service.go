package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"learnhub-backend/internal/events"
	"learnhub-backend/internal/models"
	"learnhub-backend/internal/repository"
	"learnhub-backend/pkg/logger"
)

const defaultQuizReward int64 = 100

var quizSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "learnhub",
	Subsystem: "quiz",
	Name:      "submissions_total",
	Help:      "Graded quiz submissions by outcome",
}, []string{"outcome"})

// QuizService grades chapter quizzes and rewards a pass exactly once per
// (user, chapter, course).
type QuizService struct {
	courses  repository.CourseRepository
	chapters repository.ChapterRepository
	progress repository.ProgressRepository
	events   events.Emitter
	reward   int64
}

func NewQuizService(
	courses repository.CourseRepository,
	chapters repository.ChapterRepository,
	progress repository.ProgressRepository,
	emitter events.Emitter,
	reward int64,
) *QuizService {
	if emitter == nil {
		emitter = events.Discard
	}
	if reward <= 0 {
		reward = defaultQuizReward
	}
	return &QuizService{
		courses:  courses,
		chapters: chapters,
		progress: progress,
		events:   emitter,
		reward:   reward,
	}
}

// DecodeAnswers parses a submission. Anything other than a JSON list is invalid input.
func DecodeAnswers(raw json.RawMessage) (models.SubmittedAnswers, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, newError(ErrInvalidInput, "userAnswers must be a list of answers")
	}

	var answers models.SubmittedAnswers
	if err := json.Unmarshal(trimmed, &answers); err != nil {
		return nil, wrapError(ErrInvalidInput, err, "userAnswers contains a malformed answer")
	}
	return answers, nil
}

// Grade reports whether every question has a submitted answer selecting its correct
// option. Submitted answers for unknown questions are ignored.
func Grade(questions []models.ChapterQuestion, answers models.SubmittedAnswers) bool {
	if len(questions) == 0 {
		return false
	}

	selected := make(map[uint]int, len(answers))
	for _, answer := range answers {
		if _, seen := selected[answer.QuestionID]; !seen {
			selected[answer.QuestionID] = answer.SelectedOptionIndex
		}
	}

	for _, question := range questions {
		choice, ok := selected[question.ID]
		if !ok || choice != question.CorrectOptionIndex {
			return false
		}
	}
	return true
}

// SubmitAnswers grades a submission. A failed attempt is reported with Passed=false and
// writes nothing; a repeated pass returns ErrConflict with the balance untouched.
func (s *QuizService) SubmitAnswers(ctx context.Context, userID, chapterID, courseID uint, raw json.RawMessage) (*models.QuizResult, error) {
	if s == nil || s.courses == nil || s.chapters == nil || s.progress == nil {
		return nil, errors.New("quiz service is not configured")
	}

	answers, err := DecodeAnswers(raw)
	if err != nil {
		return nil, err
	}

	if _, err := s.chapters.GetByID(chapterID); err != nil {
		return nil, notFoundOr(err, "chapter not found")
	}
	questions, err := s.chapters.ListQuestions(chapterID)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, newError(ErrNotFound, "chapter has no questions")
	}

	if _, err := s.courses.GetByID(courseID); err != nil {
		return nil, notFoundOr(err, "course not found")
	}
	if _, err := s.courses.GetChapterLink(courseID, chapterID); err != nil {
		return nil, notFoundOr(err, "chapter is not part of this course")
	}

	done, err := s.progress.HasAnswer(userID, chapterID, courseID)
	if err != nil {
		return nil, err
	}
	if done {
		quizSubmissions.WithLabelValues("already_completed").Inc()
		return nil, newError(ErrConflict, "you have already completed this chapter in this course")
	}

	if !Grade(questions, answers) {
		quizSubmissions.WithLabelValues("failed").Inc()
		return &models.QuizResult{
			Passed:  false,
			Message: "Some answers are incorrect. Try again.",
		}, nil
	}

	recorded, err := s.progress.RecordQuizPass(&models.QuizAnswer{
		UserID:      userID,
		ChapterID:   chapterID,
		CourseID:    courseID,
		UserAnswers: answers,
	}, s.reward)
	if err != nil {
		return nil, err
	}
	if !recorded {
		// A concurrent submission won the unique key between the check and the write.
		quizSubmissions.WithLabelValues("already_completed").Inc()
		return nil, newError(ErrConflict, "you have already completed this chapter in this course")
	}

	quizSubmissions.WithLabelValues("passed").Inc()
	logger.FromContext(ctx).WithFields(map[string]interface{}{
		"user_id":    userID,
		"chapter_id": chapterID,
		"course_id":  courseID,
		"coins":      s.reward,
	}).Info("Quiz passed")

	s.events.Emit(ctx, events.EventChapterCompleted, fmt.Sprintf("user:%d", userID), events.ChapterCompletedPayload{
		UserID:       userID,
		ChapterID:    chapterID,
		CourseID:     courseID,
		CoinsAwarded: s.reward,
	})

	coins, err := s.progress.ListCoins(userID)
	if err != nil {
		logger.Error(err, "Failed to load coin balance after quiz pass", map[string]interface{}{"user_id": userID})
		coins = nil
	}

	return &models.QuizResult{
		Passed:       true,
		CoinsAwarded: s.reward,
		Message:      fmt.Sprintf("Congratulations! You've earned %d coins.", s.reward),
		CourseCoins:  coins,
	}, nil
}
