package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"learnhub-backend/internal/models"
)

var openOrderStatuses = []string{models.OrderStatusCreated, models.OrderStatusPending}

var errOrderNotOpen = errors.New("order is no longer open")

type OrderRepository interface {
	Create(order *models.Order) error
	GetByID(id uint) (*models.Order, error)
	GetByGatewayOrderID(gatewayOrderID string) (*models.Order, error)
	ListByUser(userID uint) ([]models.Order, error)
	ListAll() ([]models.Order, error)
	SumCompletedRevenue() (int64, error)
	CompleteAndGrant(order *models.Order, gatewayPaymentID, signature string) (bool, error)
	MarkFailed(orderID uint) (bool, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(order *models.Order) error {
	if r == nil || r.db == nil {
		return errors.New("order repository is not initialised")
	}
	if order == nil {
		return errors.New("order is required")
	}
	return r.db.Create(order).Error
}

func (r *orderRepository) GetByID(id uint) (*models.Order, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("order repository is not initialised")
	}
	var order models.Order
	if err := r.db.First(&order, id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) GetByGatewayOrderID(gatewayOrderID string) (*models.Order, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("order repository is not initialised")
	}
	var order models.Order
	if err := r.db.Where("gateway_order_id = ?", gatewayOrderID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) ListByUser(userID uint) ([]models.Order, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("order repository is not initialised")
	}
	orders := make([]models.Order, 0)
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&orders).Error
	return orders, err
}

func (r *orderRepository) ListAll() ([]models.Order, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("order repository is not initialised")
	}
	orders := make([]models.Order, 0)
	err := r.db.Order("created_at DESC").Order("id DESC").Find(&orders).Error
	return orders, err
}

func (r *orderRepository) SumCompletedRevenue() (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("order repository is not initialised")
	}
	var total int64
	err := r.db.Model(&models.Order{}).
		Where("status = ?", models.OrderStatusCompleted).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}

// CompleteAndGrant moves an open order to completed and applies its grant in one
// transaction. The conditional status update is the guard: it reports false without
// touching grants when another verification already closed the order.
func (r *orderRepository) CompleteAndGrant(order *models.Order, gatewayPaymentID, signature string) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("order repository is not initialised")
	}
	if order == nil {
		return false, errors.New("order is required")
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Order{}).
			Where("id = ? AND status IN ?", order.ID, openOrderStatuses).
			Updates(map[string]interface{}{
				"status":             models.OrderStatusCompleted,
				"gateway_payment_id": gatewayPaymentID,
				"signature":          signature,
				"updated_at":         time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errOrderNotOpen
		}

		switch order.Target() {
		case models.OrderTargetChapter:
			return grantChapters(tx, order.UserID, []uint{*order.ChapterID})
		case models.OrderTargetCourse:
			return grantCourse(tx, order.UserID, *order.CourseID)
		default:
			return tx.Model(&models.User{}).
				Where("id = ?", order.UserID).
				Update("has_all_access", true).Error
		}
	})

	if errors.Is(err, errOrderNotOpen) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MarkFailed closes an open order as failed. It reports false when the order was
// already terminal.
func (r *orderRepository) MarkFailed(orderID uint) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("order repository is not initialised")
	}
	result := r.db.Model(&models.Order{}).
		Where("id = ? AND status IN ?", orderID, openOrderStatuses).
		Updates(map[string]interface{}{
			"status":     models.OrderStatusFailed,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func grantCourse(tx *gorm.DB, userID, courseID uint) error {
	enrolment := models.UserCourse{UserID: userID, CourseID: courseID}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&enrolment).Error; err != nil {
		return err
	}

	var chapterIDs []uint
	if err := tx.Model(&models.CourseChapter{}).
		Where("course_id = ?", courseID).
		Pluck("chapter_id", &chapterIDs).Error; err != nil {
		return err
	}
	return grantChapters(tx, userID, chapterIDs)
}

func grantChapters(tx *gorm.DB, userID uint, chapterIDs []uint) error {
	if len(chapterIDs) == 0 {
		return nil
	}
	purchases := make([]models.ChapterPurchase, 0, len(chapterIDs))
	for _, chapterID := range chapterIDs {
		purchases = append(purchases, models.ChapterPurchase{ChapterID: chapterID, UserID: userID})
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&purchases).Error
}
