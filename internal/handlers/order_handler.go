package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"learnhub-backend/internal/models"
	"learnhub-backend/internal/service"
)

type OrderHandler struct {
	responder
	orders *service.OrderService
}

func NewOrderHandler(orders *service.OrderService, debug bool) *OrderHandler {
	return &OrderHandler{responder: responder{debug: debug}, orders: orders}
}

func (h *OrderHandler) ensureService(c *gin.Context) bool {
	if h == nil || h.orders == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "payments are unavailable"})
		return false
	}
	return true
}

// Initiate creates an order for {courseId}, {chapterId} or, with neither, all-access.
func (h *OrderHandler) Initiate(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}

	// An empty body buys all-access.
	var req models.InitiateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.badRequest(c, err.Error())
		return
	}
	h.initiate(c, req)
}

func (h *OrderHandler) InitiateCourse(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	courseID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	h.initiate(c, models.InitiateOrderRequest{CourseID: &courseID})
}

func (h *OrderHandler) InitiateChapter(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	chapterID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	h.initiate(c, models.InitiateOrderRequest{ChapterID: &chapterID})
}

func (h *OrderHandler) initiate(c *gin.Context, req models.InitiateOrderRequest) {
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}

	order, err := h.orders.Initiate(c.Request.Context(), viewer.UserID, req)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) Verify(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}

	var req models.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "razorpay_order_id, razorpay_payment_id and razorpay_signature are required")
		return
	}

	result, err := h.orders.Verify(c.Request.Context(), viewer, req)
	if err != nil {
		h.fail(c, err)
		return
	}

	message := "Payment verified successfully"
	if result.AlreadyProcessed {
		message = "Payment already processed"
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "order": result})
}

func (h *OrderHandler) Status(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}

	detail, err := h.orders.Status(viewer, strings.TrimSpace(c.Query("orderId")))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": detail})
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}

	detail, err := h.orders.Cancel(c.Request.Context(), viewer, c.Param("orderId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": detail})
}

func (h *OrderHandler) Mine(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}

	purchases, err := h.orders.MyPurchases(viewer.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"purchases": purchases})
}

// Ledger is the admin view of every order.
func (h *OrderHandler) Ledger(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}

	ledger, err := h.orders.Ledger()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ledger)
}
