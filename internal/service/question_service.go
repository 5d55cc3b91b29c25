package service

import (
	"bytes"
	"encoding/json"
	"errors"

	"learnhub-backend/internal/models"
	"learnhub-backend/internal/repository"
	"learnhub-backend/pkg/logger"
	"learnhub-backend/pkg/validator"
)

// QuestionService manages a chapter's question bank.
type QuestionService struct {
	chapters repository.ChapterRepository
}

func NewQuestionService(chapters repository.ChapterRepository) *QuestionService {
	return &QuestionService{chapters: chapters}
}

func (s *QuestionService) List(chapterID uint) ([]models.AdminQuestionView, error) {
	if s == nil || s.chapters == nil {
		return nil, errors.New("question service is not configured")
	}
	if _, err := s.chapters.GetByID(chapterID); err != nil {
		return nil, notFoundOr(err, "chapter not found")
	}
	questions, err := s.chapters.ListQuestions(chapterID)
	if err != nil {
		return nil, err
	}
	return adminQuestionViews(questions), nil
}

// Append adds questions to the end of the chapter's bank. raw must be a non-empty list.
func (s *QuestionService) Append(chapterID uint, raw json.RawMessage) ([]models.AdminQuestionView, error) {
	if s == nil || s.chapters == nil {
		return nil, errors.New("question service is not configured")
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, newError(ErrInvalidInput, "questions must be a list")
	}
	var requests []models.QuestionRequest
	if err := json.Unmarshal(trimmed, &requests); err != nil {
		return nil, wrapError(ErrInvalidInput, err, "questions contains a malformed entry")
	}
	if len(requests) == 0 {
		return nil, newError(ErrInvalidInput, "at least one question is required")
	}

	if _, err := s.chapters.GetByID(chapterID); err != nil {
		return nil, notFoundOr(err, "chapter not found")
	}
	existing, err := s.chapters.ListQuestions(chapterID)
	if err != nil {
		return nil, err
	}

	questions := make([]models.ChapterQuestion, 0, len(requests))
	for i, req := range requests {
		if err := validator.Validate(req); err != nil {
			return nil, wrapError(ErrInvalidInput, err, "question %d is invalid", i+1)
		}
		question, err := buildQuestion(chapterID, req.Text, req.Options, req.CorrectOptionIndex)
		if err != nil {
			return nil, err
		}
		question.Position = len(existing) + i
		questions = append(questions, *question)
	}

	if err := s.chapters.CreateQuestions(questions); err != nil {
		return nil, err
	}

	logger.Info("Questions added", map[string]interface{}{"chapter_id": chapterID, "count": len(questions)})
	return adminQuestionViews(questions), nil
}

func (s *QuestionService) Update(chapterID, questionID uint, req models.UpdateQuestionRequest) (*models.AdminQuestionView, error) {
	if s == nil || s.chapters == nil {
		return nil, errors.New("question service is not configured")
	}

	question, err := s.chapters.GetQuestion(chapterID, questionID)
	if err != nil {
		return nil, notFoundOr(err, "question not found")
	}

	text := question.Text
	if req.Text != nil {
		text = *req.Text
	}
	options := []string(question.Options)
	if req.Options != nil {
		options = req.Options
	}
	correct := question.CorrectOptionIndex
	if req.CorrectOptionIndex != nil {
		correct = *req.CorrectOptionIndex
	}

	updated, err := buildQuestion(chapterID, text, options, correct)
	if err != nil {
		return nil, err
	}
	question.Text = updated.Text
	question.Options = updated.Options
	question.CorrectOptionIndex = updated.CorrectOptionIndex

	if err := s.chapters.UpdateQuestion(question); err != nil {
		return nil, err
	}

	view := adminQuestionViews([]models.ChapterQuestion{*question})[0]
	return &view, nil
}

func (s *QuestionService) Delete(chapterID, questionID uint) error {
	if s == nil || s.chapters == nil {
		return errors.New("question service is not configured")
	}
	if err := s.chapters.DeleteQuestion(chapterID, questionID); err != nil {
		return notFoundOr(err, "question not found")
	}
	return nil
}

func buildQuestion(chapterID uint, text string, options []string, correct int) (*models.ChapterQuestion, error) {
	text = validator.SanitizeString(text)
	if text == "" {
		return nil, newError(ErrInvalidInput, "question text is required")
	}
	if len(options) < 2 {
		return nil, newError(ErrInvalidInput, "a question needs at least two options")
	}

	cleaned := make(models.StringList, 0, len(options))
	for _, option := range options {
		option = validator.SanitizeString(option)
		if option == "" {
			return nil, newError(ErrInvalidInput, "options cannot be empty")
		}
		cleaned = append(cleaned, option)
	}
	if correct < 0 || correct >= len(cleaned) {
		return nil, newError(ErrInvalidInput, "correct answer index %d is out of range", correct)
	}

	return &models.ChapterQuestion{
		ChapterID:          chapterID,
		Text:               text,
		Options:            cleaned,
		CorrectOptionIndex: correct,
	}, nil
}

func adminQuestionViews(questions []models.ChapterQuestion) []models.AdminQuestionView {
	views := make([]models.AdminQuestionView, 0, len(questions))
	for _, q := range questions {
		views = append(views, models.AdminQuestionView{
			QuestionView: models.QuestionView{
				ID:      q.ID,
				Text:    q.Text,
				Options: append([]string(nil), q.Options...),
			},
			CorrectOptionIndex: q.CorrectOptionIndex,
		})
	}
	return views
}
