package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"learnhub-backend/internal/service"
)

// ProgressHandler serves course progress and per-user data.
type ProgressHandler struct {
	responder
	progress *service.ProgressService
	users    *service.UserService
}

func NewProgressHandler(progress *service.ProgressService, users *service.UserService, debug bool) *ProgressHandler {
	return &ProgressHandler{responder: responder{debug: debug}, progress: progress, users: users}
}

func (h *ProgressHandler) ensureService(c *gin.Context) bool {
	if h == nil || h.progress == nil || h.users == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "progress tracking is unavailable"})
		return false
	}
	return true
}

func (h *ProgressHandler) MarkChapter(c *gin.Context) {
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

	if err := h.progress.MarkChapterCompleted(viewer, chapterID, courseID); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Chapter marked as completed"})
}

func (h *ProgressHandler) CourseProgress(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}
	courseID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	report, err := h.progress.GetProgress(viewer.UserID, courseID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *ProgressHandler) UserData(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}
	userID, ok := parseUintParam(c, "userId")
	if !ok {
		return
	}

	data, err := h.users.GetUserData(viewer, userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}
