package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"learnhub-backend/internal/events"
	"learnhub-backend/internal/models"
)

func answersFor(t *testing.T, questions []models.ChapterQuestion, correct bool) json.RawMessage {
	t.Helper()
	answers := make(models.SubmittedAnswers, 0, len(questions))
	for _, q := range questions {
		choice := q.CorrectOptionIndex
		if !correct {
			choice = (choice + 1) % len(q.Options)
		}
		answers = append(answers, models.SubmittedAnswer{QuestionID: q.ID, SelectedOptionIndex: choice})
	}
	raw, err := json.Marshal(answers)
	if err != nil {
		t.Fatalf("marshal answers: %v", err)
	}
	return raw
}

func TestGrade(t *testing.T) {
	questions := []models.ChapterQuestion{
		{ID: 1, CorrectOptionIndex: 2},
		{ID: 2, CorrectOptionIndex: 0},
	}

	tests := []struct {
		name    string
		answers models.SubmittedAnswers
		want    bool
	}{
		{"all correct", models.SubmittedAnswers{{QuestionID: 1, SelectedOptionIndex: 2}, {QuestionID: 2, SelectedOptionIndex: 0}}, true},
		{"order does not matter", models.SubmittedAnswers{{QuestionID: 2, SelectedOptionIndex: 0}, {QuestionID: 1, SelectedOptionIndex: 2}}, true},
		{"one wrong", models.SubmittedAnswers{{QuestionID: 1, SelectedOptionIndex: 2}, {QuestionID: 2, SelectedOptionIndex: 1}}, false},
		{"missing answer", models.SubmittedAnswers{{QuestionID: 1, SelectedOptionIndex: 2}}, false},
		{"unknown question ignored", models.SubmittedAnswers{{QuestionID: 1, SelectedOptionIndex: 2}, {QuestionID: 2, SelectedOptionIndex: 0}, {QuestionID: 9, SelectedOptionIndex: 3}}, true},
		{"empty", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Grade(questions, tt.answers); got != tt.want {
				t.Fatalf("Grade() = %v, want %v", got, tt.want)
			}
		})
	}

	if Grade(nil, models.SubmittedAnswers{{QuestionID: 1}}) {
		t.Fatalf("expected a chapter without questions never to pass")
	}
}

func TestDecodeAnswersRejectsNonList(t *testing.T) {
	for _, raw := range []string{``, `{}`, `"answers"`, `42`, `[{"questionId":"x"}]`} {
		if _, err := DecodeAnswers(json.RawMessage(raw)); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("DecodeAnswers(%q) = %v, want ErrInvalidInput", raw, err)
		}
	}
	answers, err := DecodeAnswers(json.RawMessage(`[]`))
	if err != nil || len(answers) != 0 {
		t.Fatalf("expected an empty list to decode, got %v, %v", answers, err)
	}
}

func TestQuizService_PassRewardsOnce(t *testing.T) {
	f := newFixture()
	svc := NewQuizService(f.courses, f.chapters, f.progress, f.emitter, 100)
	raw := answersFor(t, f.store.questions[chapterA], true)

	result, err := svc.SubmitAnswers(context.Background(), learnerID, chapterA, courseID, raw)
	if err != nil {
		t.Fatalf("SubmitAnswers returned error: %v", err)
	}
	if !result.Passed || result.CoinsAwarded != 100 {
		t.Fatalf("expected pass with 100 coins, got %+v", result)
	}
	if len(result.CourseCoins) != 1 || result.CourseCoins[0].CourseID != courseID || result.CourseCoins[0].Coins != 100 {
		t.Fatalf("unexpected course coins %+v", result.CourseCoins)
	}
	if done, _ := f.progress.IsCompleted(learnerID, chapterA); !done {
		t.Fatalf("expected chapter to be marked completed")
	}

	_, err = svc.SubmitAnswers(context.Background(), learnerID, chapterA, courseID, raw)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected resubmission to conflict, got %v", err)
	}
	if balance := f.store.coinBalance(learnerID, courseID); balance != 100 {
		t.Fatalf("expected balance to stay at 100, got %d", balance)
	}
	if n := f.emitter.count(events.EventChapterCompleted); n != 1 {
		t.Fatalf("expected one chapter.completed event, got %d", n)
	}
}

func TestQuizService_FailWritesNothing(t *testing.T) {
	f := newFixture()
	svc := NewQuizService(f.courses, f.chapters, f.progress, f.emitter, 100)

	result, err := svc.SubmitAnswers(context.Background(), learnerID, chapterA, courseID, answersFor(t, f.store.questions[chapterA], false))
	if err != nil {
		t.Fatalf("SubmitAnswers returned error: %v", err)
	}
	if result.Passed || result.CoinsAwarded != 0 {
		t.Fatalf("expected a failed attempt, got %+v", result)
	}
	if len(f.store.answers) != 0 || len(f.store.coins) != 0 || len(f.store.progress) != 0 {
		t.Fatalf("expected no writes after a failed attempt")
	}

	if _, err := svc.SubmitAnswers(context.Background(), learnerID, chapterA, courseID, answersFor(t, f.store.questions[chapterA], true)); err != nil {
		t.Fatalf("expected retry after failure to pass, got %v", err)
	}
}

func TestQuizService_RewardIsPerCourse(t *testing.T) {
	f := newFixture()
	otherCourse := f.store.addCourse(models.Course{ID: 11, Title: "Advanced Go", IsPublished: true})
	f.store.links = append(f.store.links, models.CourseChapter{CourseID: otherCourse.ID, ChapterID: chapterA})
	svc := NewQuizService(f.courses, f.chapters, f.progress, f.emitter, 100)
	raw := answersFor(t, f.store.questions[chapterA], true)

	for _, id := range []uint{courseID, otherCourse.ID} {
		if _, err := svc.SubmitAnswers(context.Background(), learnerID, chapterA, id, raw); err != nil {
			t.Fatalf("SubmitAnswers(course %d) returned error: %v", id, err)
		}
	}
	if f.store.coinBalance(learnerID, courseID) != 100 || f.store.coinBalance(learnerID, otherCourse.ID) != 100 {
		t.Fatalf("expected 100 coins in each course")
	}
}

func TestQuizService_NotFound(t *testing.T) {
	f := newFixture()
	svc := NewQuizService(f.courses, f.chapters, f.progress, nil, 0)
	raw := json.RawMessage(`[]`)

	cases := []struct {
		chapter, course uint
	}{
		{999, courseID},
		{chapterB, courseID},
		{chapterA, 999},
	}
	for _, c := range cases {
		t.Run(fmt.Sprintf("chapter %d course %d", c.chapter, c.course), func(t *testing.T) {
			if _, err := svc.SubmitAnswers(context.Background(), learnerID, c.chapter, c.course, raw); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}

	f.store.chapters[77] = &models.Chapter{ID: 77, IsPublished: true}
	f.store.addQuestion(77, 0)
	if _, err := svc.SubmitAnswers(context.Background(), learnerID, 77, courseID, raw); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected chapter outside the course to be not found, got %v", err)
	}
}
