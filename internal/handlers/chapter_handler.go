package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"learnhub-backend/internal/models"
	"learnhub-backend/internal/service"
)

type ChapterHandler struct {
	responder
	access *service.EntitlementService
	quiz   *service.QuizService
}

func NewChapterHandler(access *service.EntitlementService, quiz *service.QuizService, debug bool) *ChapterHandler {
	return &ChapterHandler{responder: responder{debug: debug}, access: access, quiz: quiz}
}

func (h *ChapterHandler) ensureService(c *gin.Context) bool {
	if h == nil || h.access == nil || h.quiz == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chapters are unavailable"})
		return false
	}
	return true
}

// GetChapter returns a chapter with its video only when the caller is entitled to it.
func (h *ChapterHandler) GetChapter(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}
	chapterID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	courseID, ok := optionalUintQuery(c, "courseId")
	if !ok {
		return
	}

	chapter, err := h.access.GetChapter(viewer, chapterID, courseID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"chapter": chapter})
}

// CompleteChapter grades a quiz submission for the chapter inside ?courseId=.
func (h *ChapterHandler) CompleteChapter(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}
	chapterID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	courseID, ok := optionalUintQuery(c, "courseId")
	if !ok {
		return
	}
	if courseID == nil {
		h.badRequest(c, "courseId is required")
		return
	}

	var req models.SubmitQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid or missing user answers.")
		return
	}

	result, err := h.quiz.SubmitAnswers(c.Request.Context(), viewer.UserID, chapterID, *courseID, req.UserAnswers)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
