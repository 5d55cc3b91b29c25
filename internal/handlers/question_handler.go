package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"learnhub-backend/internal/models"
	"learnhub-backend/internal/service"
)

// QuestionHandler serves the admin question bank.
type QuestionHandler struct {
	responder
	questions *service.QuestionService
}

func NewQuestionHandler(questions *service.QuestionService, debug bool) *QuestionHandler {
	return &QuestionHandler{responder: responder{debug: debug}, questions: questions}
}

func (h *QuestionHandler) ensureService(c *gin.Context) bool {
	if h == nil || h.questions == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "question bank is unavailable"})
		return false
	}
	return true
}

func (h *QuestionHandler) List(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	chapterID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	questions, err := h.questions.List(chapterID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": questions})
}

func (h *QuestionHandler) Create(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	chapterID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	var req models.CreateQuestionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "questions must be a list")
		return
	}

	questions, err := h.questions.Append(chapterID, req.Questions)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"questions": questions})
}

func (h *QuestionHandler) Update(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	chapterID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	questionID, ok := parseUintParam(c, "questionId")
	if !ok {
		return
	}

	var req models.UpdateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err.Error())
		return
	}

	question, err := h.questions.Update(chapterID, questionID, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"question": question})
}

func (h *QuestionHandler) Delete(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	chapterID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	questionID, ok := parseUintParam(c, "questionId")
	if !ok {
		return
	}

	if err := h.questions.Delete(chapterID, questionID); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Question deleted"})
}
