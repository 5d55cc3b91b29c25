package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"learnhub-backend/internal/models"
	"learnhub-backend/internal/service"
)

type CourseHandler struct {
	responder
	courses *service.CourseService
}

func NewCourseHandler(courses *service.CourseService, debug bool) *CourseHandler {
	return &CourseHandler{responder: responder{debug: debug}, courses: courses}
}

func (h *CourseHandler) ensureService(c *gin.Context) bool {
	if h == nil || h.courses == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "courses are unavailable"})
		return false
	}
	return true
}

func (h *CourseHandler) List(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}

	courses, err := h.courses.List(viewer)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"courses": courses})
}

func (h *CourseHandler) GetByID(c *gin.Context) {
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

	course, err := h.courses.GetCourse(viewer, courseID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, course)
}

func (h *CourseHandler) Enroll(c *gin.Context) {
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

	if err := h.courses.Enroll(c.Request.Context(), viewer.UserID, courseID); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Enrolled successfully"})
}

func (h *CourseHandler) AttachChapter(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	courseID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	var req models.AttachChapterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err.Error())
		return
	}

	link, err := h.courses.AttachChapter(courseID, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"link": link})
}

func (h *CourseHandler) RecommendedLearners(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	courseID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	var minCoins int64
	if raw := c.Query("minCoins"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			h.badRequest(c, "invalid minCoins")
			return
		}
		minCoins = parsed
	}

	learners, err := h.courses.RecommendedLearners(courseID, minCoins)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": learners})
}

func (h *CourseHandler) Instructors(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	instructors, err := h.courses.ListInstructors()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"instructors": instructors})
}

func (h *CourseHandler) Jobs(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	jobs, err := h.courses.ListJobs()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

func (h *CourseHandler) Vacancies(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	vacancies, err := h.courses.ListOpenVacancies()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vacancies": vacancies})
}
