package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"learnhub-backend/internal/events"
	"learnhub-backend/internal/models"
	"learnhub-backend/internal/payments"
	"learnhub-backend/internal/repository"
	"learnhub-backend/pkg/logger"
)

var orderTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "learnhub",
	Subsystem: "orders",
	Name:      "transitions_total",
	Help:      "Order lifecycle events by target and outcome",
}, []string{"target", "outcome"})

// OrderConfig holds the pricing settings orders are created with.
type OrderConfig struct {
	Currency       string
	AllAccessPrice int64
}

// OrderService creates gateway orders and turns verified payments into access grants.
type OrderService struct {
	orders   repository.OrderRepository
	users    repository.UserRepository
	courses  repository.CourseRepository
	chapters repository.ChapterRepository
	gateway  payments.Gateway
	events   events.Emitter
	config   OrderConfig
}

func NewOrderService(
	orders repository.OrderRepository,
	users repository.UserRepository,
	courses repository.CourseRepository,
	chapters repository.ChapterRepository,
	gateway payments.Gateway,
	emitter events.Emitter,
	cfg OrderConfig,
) *OrderService {
	if emitter == nil {
		emitter = events.Discard
	}
	cfg.Currency = strings.ToUpper(strings.TrimSpace(cfg.Currency))
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	return &OrderService{
		orders:   orders,
		users:    users,
		courses:  courses,
		chapters: chapters,
		gateway:  gateway,
		events:   emitter,
		config:   cfg,
	}
}

func (s *OrderService) ready() error {
	if s == nil || s.orders == nil || s.users == nil || s.courses == nil || s.chapters == nil || s.gateway == nil {
		return errors.New("order service is not configured")
	}
	return nil
}

// Initiate prices the requested target, registers the order with the gateway and only
// then stores it locally as pending. A gateway failure leaves no local order behind.
func (s *OrderService) Initiate(ctx context.Context, userID uint, req models.InitiateOrderRequest) (*models.OrderInitiation, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if req.CourseID != nil && req.ChapterID != nil {
		return nil, newError(ErrInvalidInput, "choose either a course or a chapter, not both")
	}
	if req.Currency != "" && !strings.EqualFold(req.Currency, s.config.Currency) {
		return nil, newError(ErrInvalidInput, "payments are only accepted in %s", s.config.Currency)
	}

	user, err := s.users.GetByID(userID)
	if err != nil {
		return nil, notFoundOr(err, "user not found")
	}
	if user.HasAllAccess {
		return nil, newError(ErrConflict, "you already have access to all content")
	}

	order := &models.Order{
		UserID:    userID,
		CourseID:  req.CourseID,
		ChapterID: req.ChapterID,
		Currency:  s.config.Currency,
		Status:    models.OrderStatusPending,
	}

	switch order.Target() {
	case models.OrderTargetCourse:
		amount, err := s.priceCourse(userID, *req.CourseID)
		if err != nil {
			return nil, err
		}
		order.Amount = amount
	case models.OrderTargetChapter:
		amount, err := s.priceChapter(userID, *req.ChapterID)
		if err != nil {
			return nil, err
		}
		order.Amount = amount
	default:
		order.Amount = s.config.AllAccessPrice
	}

	if order.Amount <= 0 {
		return nil, newError(ErrConflict, "this item is free and does not need to be purchased")
	}

	gatewayOrder, err := s.gateway.CreateOrder(ctx, payments.OrderParams{
		AmountMinor: payments.ToMinorUnits(order.Amount),
		Currency:    order.Currency,
		Receipt:     uuid.NewString(),
		Notes: map[string]string{
			"user_id": strconv.FormatUint(uint64(userID), 10),
			"target":  order.Target(),
		},
	})
	if err != nil {
		orderTransitions.WithLabelValues(order.Target(), "gateway_error").Inc()
		if errors.Is(err, payments.ErrGatewayUnavailable) {
			return nil, wrapError(ErrUpstream, err, "payment gateway is unavailable, please retry")
		}
		return nil, wrapError(ErrUpstream, err, "payment gateway rejected the order")
	}

	order.GatewayOrderID = gatewayOrder.ID
	if err := s.orders.Create(order); err != nil {
		return nil, err
	}

	orderTransitions.WithLabelValues(order.Target(), "created").Inc()
	logger.FromContext(ctx).WithFields(map[string]interface{}{
		"order_id":         order.ID,
		"gateway_order_id": order.GatewayOrderID,
		"user_id":          userID,
		"target":           order.Target(),
		"amount":           order.Amount,
	}).Info("Order created")

	s.events.Emit(ctx, events.EventOrderCreated, order.GatewayOrderID, orderPayload(order))

	return &models.OrderInitiation{
		OrderID:        order.ID,
		GatewayOrderID: order.GatewayOrderID,
		Amount:         order.Amount,
		AmountMinor:    payments.ToMinorUnits(order.Amount),
		Currency:       order.Currency,
		KeyID:          s.gateway.KeyID(),
		Target:         order.Target(),
	}, nil
}

func (s *OrderService) priceCourse(userID, courseID uint) (int64, error) {
	course, err := s.courses.GetByID(courseID)
	if err != nil {
		return 0, notFoundOr(err, "course not found")
	}
	if !course.IsPublished {
		return 0, newError(ErrNotFound, "course not found")
	}
	owned, err := s.users.HasCourse(userID, courseID)
	if err != nil {
		return 0, err
	}
	if owned {
		return 0, newError(ErrConflict, "you already own this course")
	}
	return course.Price, nil
}

func (s *OrderService) priceChapter(userID, chapterID uint) (int64, error) {
	chapter, err := s.chapters.GetByID(chapterID)
	if err != nil {
		return 0, notFoundOr(err, "chapter not found")
	}
	if !chapter.IsPublished {
		return 0, newError(ErrNotFound, "chapter not found")
	}
	owned, err := s.chapters.HasPurchase(chapterID, userID)
	if err != nil {
		return 0, err
	}
	if owned {
		return 0, newError(ErrConflict, "you already own this chapter")
	}
	return chapter.Price, nil
}

// Verify checks the gateway signature and completes the order. It is safe to call
// repeatedly: a completed order reports success again without re-applying grants.
func (s *OrderService) Verify(ctx context.Context, viewer Viewer, req models.VerifyPaymentRequest) (*models.VerifyPaymentResult, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	if !s.gateway.VerifyPaymentSignature(req.GatewayOrderID, req.GatewayPaymentID, req.Signature) {
		orderTransitions.WithLabelValues("unknown", "signature_rejected").Inc()
		logger.FromContext(ctx).WithFields(map[string]interface{}{
			"gateway_order_id": req.GatewayOrderID,
			"user_id":          viewer.UserID,
		}).Warn("Payment signature mismatch")
		return nil, newError(ErrVerificationFailed, "payment verification failed")
	}

	order, err := s.orders.GetByGatewayOrderID(req.GatewayOrderID)
	if err != nil {
		return nil, notFoundOr(err, "order not found")
	}
	if order.UserID != viewer.UserID && !viewer.IsAdmin {
		return nil, newError(ErrForbidden, "this order belongs to another user")
	}

	switch order.Status {
	case models.OrderStatusCompleted:
		return &models.VerifyPaymentResult{OrderID: order.ID, Status: order.Status, AlreadyProcessed: true}, nil
	case models.OrderStatusFailed:
		return nil, newError(ErrConflict, "this order was cancelled and cannot be completed")
	}

	applied, err := s.orders.CompleteAndGrant(order, req.GatewayPaymentID, req.Signature)
	if err != nil {
		orderTransitions.WithLabelValues(order.Target(), "grant_error").Inc()
		logger.FromContext(ctx).WithError(err).WithField("gateway_order_id", order.GatewayOrderID).
			Error("Failed to complete order; it stays pending for a retried verification")
		return nil, err
	}

	if !applied {
		// Lost the race: another verification or a cancellation closed the order first.
		current, err := s.orders.GetByID(order.ID)
		if err != nil {
			return nil, err
		}
		if current.Status == models.OrderStatusFailed {
			return nil, newError(ErrConflict, "this order was cancelled and cannot be completed")
		}
		return &models.VerifyPaymentResult{OrderID: order.ID, Status: current.Status, AlreadyProcessed: true}, nil
	}

	order.Status = models.OrderStatusCompleted
	order.GatewayPaymentID = req.GatewayPaymentID

	orderTransitions.WithLabelValues(order.Target(), "completed").Inc()
	logger.FromContext(ctx).WithFields(map[string]interface{}{
		"order_id":           order.ID,
		"gateway_order_id":   order.GatewayOrderID,
		"gateway_payment_id": req.GatewayPaymentID,
		"user_id":            order.UserID,
		"target":             order.Target(),
	}).Info("Order completed")

	s.events.Emit(ctx, events.EventOrderCompleted, order.GatewayOrderID, orderPayload(order))

	return &models.VerifyPaymentResult{OrderID: order.ID, Status: order.Status}, nil
}

// Status returns the caller's view of one of their orders.
func (s *OrderService) Status(viewer Viewer, gatewayOrderID string) (*models.PurchaseDetail, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(gatewayOrderID) == "" {
		return nil, newError(ErrInvalidInput, "orderId is required")
	}

	order, err := s.orders.GetByGatewayOrderID(gatewayOrderID)
	if err != nil {
		return nil, notFoundOr(err, "order not found")
	}
	if order.UserID != viewer.UserID && !viewer.IsAdmin {
		// Hide other users' orders entirely.
		return nil, newError(ErrNotFound, "order not found")
	}
	return s.purchaseDetail(order)
}

// Cancel moves the caller's open order to failed. Completed orders cannot be cancelled.
func (s *OrderService) Cancel(ctx context.Context, viewer Viewer, gatewayOrderID string) (*models.PurchaseDetail, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	order, err := s.orders.GetByGatewayOrderID(gatewayOrderID)
	if err != nil {
		return nil, notFoundOr(err, "order not found")
	}
	if order.UserID != viewer.UserID && !viewer.IsAdmin {
		return nil, newError(ErrNotFound, "order not found")
	}

	changed, err := s.orders.MarkFailed(order.ID)
	if err != nil {
		return nil, err
	}
	if !changed {
		current, err := s.orders.GetByID(order.ID)
		if err != nil {
			return nil, err
		}
		if current.Status == models.OrderStatusCompleted {
			return nil, newError(ErrConflict, "completed orders cannot be cancelled")
		}
		return s.purchaseDetail(current)
	}

	order.Status = models.OrderStatusFailed
	orderTransitions.WithLabelValues(order.Target(), "cancelled").Inc()
	logger.FromContext(ctx).WithFields(map[string]interface{}{
		"order_id":         order.ID,
		"gateway_order_id": order.GatewayOrderID,
		"user_id":          order.UserID,
	}).Info("Order cancelled")

	s.events.Emit(ctx, events.EventOrderFailed, order.GatewayOrderID, orderPayload(order))

	return s.purchaseDetail(order)
}

// MyPurchases lists the caller's closed orders with what each one bought.
func (s *OrderService) MyPurchases(userID uint) ([]models.PurchaseDetail, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	orders, err := s.orders.ListByUser(userID)
	if err != nil {
		return nil, err
	}

	details := make([]models.PurchaseDetail, 0, len(orders))
	for i := range orders {
		if !orders[i].IsTerminal() {
			continue
		}
		detail, err := s.purchaseDetail(&orders[i])
		if err != nil {
			return nil, err
		}
		details = append(details, *detail)
	}
	return details, nil
}

// Ledger lists every order newest first. Revenue only counts completed orders.
func (s *OrderService) Ledger() (*models.OrderLedger, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	orders, err := s.orders.ListAll()
	if err != nil {
		return nil, err
	}
	total, err := s.orders.SumCompletedRevenue()
	if err != nil {
		return nil, err
	}
	return &models.OrderLedger{Orders: orders, TotalRevenue: total}, nil
}

func (s *OrderService) purchaseDetail(order *models.Order) (*models.PurchaseDetail, error) {
	detail := &models.PurchaseDetail{
		GatewayOrderID: order.GatewayOrderID,
		Amount:         order.Amount,
		Currency:       order.Currency,
		Status:         order.Status,
		CreatedAt:      order.CreatedAt,
		Target:         order.Target(),
		CourseID:       order.CourseID,
	}

	switch order.Target() {
	case models.OrderTargetChapter:
		detail.ChapterIDs = []uint{*order.ChapterID}
	case models.OrderTargetCourse:
		links, err := s.courses.ListChapterLinks(*order.CourseID)
		if err != nil {
			return nil, err
		}
		for _, link := range links {
			detail.ChapterIDs = append(detail.ChapterIDs, link.ChapterID)
		}
	}
	return detail, nil
}

func orderPayload(order *models.Order) events.OrderPayload {
	return events.OrderPayload{
		OrderID:        order.ID,
		GatewayOrderID: order.GatewayOrderID,
		UserID:         order.UserID,
		Target:         order.Target(),
		CourseID:       order.CourseID,
		ChapterID:      order.ChapterID,
		Amount:         order.Amount,
		Currency:       order.Currency,
	}
}
