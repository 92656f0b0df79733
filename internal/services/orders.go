package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/snbstore/internal/database"
	"github.com/example/snbstore/internal/models"
)

// Order lifecycle errors.
var (
	ErrNotCancellable = errors.New("order can no longer be cancelled")
	ErrNotReturnable  = errors.New("order is not eligible for return")
)

// orderNumberPrefix heads every assigned order number.
const orderNumberPrefix = "SNB"

// numberAssignAttempts bounds the compare-and-retry loop around concurrent
// same-day creations. Two writers can derive the same daily sequence before
// either commits; the unique index on order_number is the backstop, and a
// collision re-queries and increments.
const numberAssignAttempts = 5

// maxDailySequence is the largest sequence the 4-digit suffix can carry. Past
// it the suffix would grow a digit and lexicographic MAX would stop advancing,
// so assignment fails outright instead.
const maxDailySequence = 9999

// OrderService assigns order numbers, maintains the status timeline, and
// keeps monetary totals consistent.
type OrderService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewOrderService constructs an OrderService.
func NewOrderService(db *gorm.DB) *OrderService {
	return &OrderService{db: db, now: time.Now}
}

// OrderItemInput selects a product (and optionally a variant) and quantity.
// The persisted line item is a frozen snapshot taken from the catalog at
// purchase time, not a live reference.
type OrderItemInput struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Quantity  int
}

// CreateOrderInput carries everything needed to place an order.
type CreateOrderInput struct {
	UserID          uuid.UUID
	Items           []OrderItemInput
	TaxAmount       float64
	ShippingAmount  float64
	DiscountAmount  float64
	Currency        string
	PaymentMethod   string
	Source          string
	ShippingAddress models.OrderAddress
	BillingAddress  models.OrderAddress
	ShippingMethod  string
	CustomerNote    string
	CouponCode      string
	IsGift          bool
	GiftMessage     string
}

func validateCreateOrder(in CreateOrderInput) error {
	if in.UserID == uuid.Nil {
		return database.Validation("user_id", "user is required")
	}
	if len(in.Items) == 0 {
		return database.Validation("items", "order must contain at least one item")
	}
	for i, item := range in.Items {
		if item.ProductID == uuid.Nil {
			return database.Validation(fmt.Sprintf("items[%d].product_id", i), "product is required")
		}
		if item.Quantity < 1 {
			return database.Validation(fmt.Sprintf("items[%d].quantity", i), "quantity must be at least 1")
		}
	}
	if in.TaxAmount < 0 {
		return database.Validation("tax_amount", "tax amount cannot be negative")
	}
	if in.ShippingAmount < 0 {
		return database.Validation("shipping_amount", "shipping amount cannot be negative")
	}
	if in.DiscountAmount < 0 {
		return database.Validation("discount_amount", "discount amount cannot be negative")
	}
	if in.ShippingAddress.Address1 == "" || in.ShippingAddress.City == "" {
		return database.Validation("shipping_address", "shipping address is incomplete")
	}
	return nil
}

// Create places an order: it snapshots the purchased products into line
// items, decrements stock in the same transaction, computes totals, assigns
// the order number, and appends the initial timeline entry. A duplicate
// order number (same-day race) re-derives the sequence and retries.
func (s *OrderService) Create(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	if err := validateCreateOrder(in); err != nil {
		return nil, err
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ? AND is_deleted = ?", in.UserID, false).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, database.ErrUserNotFound
		}
		return nil, err
	}

	var created *models.Order
	var lastErr error

	for attempt := 0; attempt < numberAssignAttempts; attempt++ {
		order := &models.Order{
			UserID:            user.ID,
			CustomerEmail:     user.Email,
			CustomerFirstName: user.FirstName,
			CustomerLastName:  user.LastName,
			CustomerPhone:     user.Phone,
			TaxAmount:         in.TaxAmount,
			ShippingAmount:    in.ShippingAmount,
			DiscountAmount:    in.DiscountAmount,
			Currency:          strings.ToUpper(in.Currency),
			Status:            models.OrderStatusPending,
			PaymentMethod:     in.PaymentMethod,
			PaymentStatus:     models.PaymentStatusPending,
			ShippingAddress:   in.ShippingAddress,
			BillingAddress:    in.BillingAddress,
			ShippingMethod:    in.ShippingMethod,
			Source:            in.Source,
			CustomerNote:      in.CustomerNote,
			CouponCode:        in.CouponCode,
			IsGift:            in.IsGift,
			GiftMessage:       in.GiftMessage,
		}
		if order.Currency == "" {
			order.Currency = "USD"
		}
		if order.ShippingMethod == "" {
			order.ShippingMethod = models.ShippingStandard
		}
		if order.Source == "" {
			order.Source = models.OrderSourceWeb
		}

		err := database.WithRetry(ctx, database.DefaultRetryOptions(), func() error {
			return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				// A transient retry re-runs the whole attempt.
				order.Items = nil
				order.Timeline = nil

				for _, item := range in.Items {
					line, err := s.buildLineItem(tx, item)
					if err != nil {
						return err
					}
					order.Items = append(order.Items, *line)
				}
				order.RecalculateTotals()

				number, err := s.nextOrderNumber(tx)
				if err != nil {
					return err
				}
				order.OrderNumber = number

				order.Timeline = []models.OrderTrackingEvent{{
					Status:     models.OrderStatusPending,
					Message:    "Order placed",
					OccurredAt: s.now(),
				}}

				return tx.Create(order).Error
			})
		})

		if err == nil {
			created = order
			break
		}
		if database.UniqueViolationOn(err, "order_number") {
			lastErr = err
			continue
		}
		return nil, err
	}

	if created == nil {
		return nil, &database.ConflictError{Field: "order_number", Err: lastErr}
	}
	return created, nil
}

// buildLineItem snapshots one product (or variant) and decrements its stock.
func (s *OrderService) buildLineItem(tx *gorm.DB, in OrderItemInput) (*models.OrderItem, error) {
	var product models.Product
	if err := tx.Preload("Variants").
		First(&product, "id = ? AND is_deleted = ?", in.ProductID, false).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, database.ErrProductNotFound
		}
		return nil, err
	}

	line := &models.OrderItem{
		ProductID:    product.ID,
		ProductName:  product.Name,
		ProductImage: product.Image,
		SKU:          product.SKU,
		Quantity:     in.Quantity,
		UnitPrice:    product.Price,
	}

	if in.VariantID != nil {
		var variant *models.ProductVariant
		for i := range product.Variants {
			if product.Variants[i].ID == *in.VariantID {
				variant = &product.Variants[i]
				break
			}
		}
		if variant == nil {
			return nil, database.ErrProductNotFound
		}
		if variant.Stock < in.Quantity {
			return nil, database.ErrInsufficientStock
		}

		variant.Stock -= in.Quantity
		if err := tx.Model(variant).Update("stock", variant.Stock).Error; err != nil {
			return nil, err
		}

		line.VariantID = in.VariantID
		line.VariantSize = variant.Size
		line.VariantColor = variant.ColorName
		if variant.Price > 0 {
			line.UnitPrice = variant.Price
		}
	} else {
		if product.Stock < in.Quantity {
			return nil, database.ErrInsufficientStock
		}
		product.Stock -= in.Quantity
	}

	// Re-derive the aggregate stock and the active/out-of-stock status.
	NormalizeProduct(&product)
	if err := tx.Model(&models.Product{}).Where("id = ?", product.ID).
		Updates(map[string]interface{}{
			"stock":  product.Stock,
			"status": product.Status,
		}).Error; err != nil {
		return nil, err
	}

	line.TotalPrice = line.UnitPrice * float64(line.Quantity)
	return line, nil
}

// nextOrderNumber derives SNB + yymmdd + a 4-digit daily sequence from the
// highest existing number with today's prefix.
func (s *OrderService) nextOrderNumber(tx *gorm.DB) (string, error) {
	prefix := orderNumberPrefix + s.now().Format("060102")

	var last string
	err := tx.Model(&models.Order{}).
		Where("order_number LIKE ?", prefix+"%").
		Select("COALESCE(MAX(order_number), '')").
		Scan(&last).Error
	if err != nil {
		return "", err
	}

	sequence := 1
	if last != "" {
		parsed, err := strconv.Atoi(last[len(last)-4:])
		if err != nil {
			return "", fmt.Errorf("malformed order number %q: %w", last, err)
		}
		sequence = parsed + 1
	}
	if sequence > maxDailySequence {
		return "", fmt.Errorf("daily order number space exhausted for %s", prefix)
	}

	return fmt.Sprintf("%s%04d", prefix, sequence), nil
}

// ChangeStatus moves an order to a new status and appends a timeline entry.
// History is never pruned or reordered.
func (s *OrderService) ChangeStatus(ctx context.Context, orderID uuid.UUID, status, message, location string, updatedBy *uuid.UUID) (*models.Order, error) {
	if !models.ValidOrderStatus(status) {
		return nil, database.Validation("status", "unknown order status")
	}

	var order models.Order
	err := database.WithRetry(ctx, database.DefaultRetryOptions(), func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Preload("Items").Preload("Timeline").
				First(&order, "id = ?", orderID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return database.ErrOrderNotFound
				}
				return err
			}

			if order.Status == status {
				return nil
			}

			if message == "" {
				message = "Order status changed to " + status
			}
			event := models.OrderTrackingEvent{
				OrderID:    order.ID,
				Status:     status,
				Message:    message,
				Location:   location,
				UpdatedBy:  updatedBy,
				OccurredAt: s.now(),
			}
			if err := tx.Create(&event).Error; err != nil {
				return err
			}
			order.Timeline = append(order.Timeline, event)

			updates := map[string]interface{}{"status": status}
			if status == models.OrderStatusDelivered {
				deliveredAt := s.now()
				order.ActualDeliveryDate = &deliveredAt
				updates["actual_delivery_date"] = &deliveredAt
			}

			order.Status = status
			return tx.Model(&models.Order{}).Where("id = ?", order.ID).
				Updates(updates).Error
		})
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// Cancel cancels the order if it is still pending or confirmed.
func (s *OrderService) Cancel(ctx context.Context, orderID uuid.UUID, reason string) (*models.Order, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.CanBeCancelled() {
		return nil, ErrNotCancellable
	}

	if reason != "" {
		err := database.WithRetry(ctx, database.DefaultRetryOptions(), func() error {
			return s.db.WithContext(ctx).Model(&models.Order{}).
				Where("id = ?", orderID).
				Update("cancellation_reason", reason).Error
		})
		if err != nil {
			return nil, err
		}
	}
	return s.ChangeStatus(ctx, orderID, models.OrderStatusCancelled, "", "", nil)
}

// Return marks a delivered order returned while inside the return window.
func (s *OrderService) Return(ctx context.Context, orderID uuid.UUID, reason string) (*models.Order, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.CanBeReturned(s.now()) {
		return nil, ErrNotReturnable
	}

	updates := map[string]interface{}{"refund_requested": true}
	if reason != "" {
		updates["return_reason"] = reason
	}
	err = database.WithRetry(ctx, database.DefaultRetryOptions(), func() error {
		return s.db.WithContext(ctx).Model(&models.Order{}).
			Where("id = ?", orderID).
			Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return s.ChangeStatus(ctx, orderID, models.OrderStatusReturned, "", "", nil)
}

// Get loads an order with items and timeline.
func (s *OrderService) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).
		Preload("Items").
		Preload("Timeline", func(db *gorm.DB) *gorm.DB {
			return db.Order("occurred_at ASC")
		}).
		First(&order, "id = ?", orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, database.ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// SalesSummary aggregates completed-payment orders.
type SalesSummary struct {
	TotalSales        float64 `json:"total_sales"`
	TotalOrders       int64   `json:"total_orders"`
	AverageOrderValue float64 `json:"average_order_value"`
}

// Summary computes total sales, order count, and average order value over an
// optional window, counting only orders whose payment completed.
func (s *OrderService) Summary(ctx context.Context, from, to *time.Time) (*SalesSummary, error) {
	query := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("payment_status = ?", models.PaymentStatusCompleted)
	if from != nil {
		query = query.Where("created_at >= ?", *from)
	}
	if to != nil {
		query = query.Where("created_at <= ?", *to)
	}

	var summary SalesSummary
	err := query.
		Select("COALESCE(SUM(total_amount), 0) AS total_sales, COUNT(*) AS total_orders, COALESCE(AVG(total_amount), 0) AS average_order_value").
		Scan(&summary).Error
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// MarkPaymentCompleted records a successful payment on the order.
func (s *OrderService) MarkPaymentCompleted(ctx context.Context, orderID uuid.UUID, transactionID, gateway string) error {
	now := s.now()
	return database.WithRetry(ctx, database.DefaultRetryOptions(), func() error {
		result := s.db.WithContext(ctx).Model(&models.Order{}).
			Where("id = ?", orderID).
			Updates(map[string]interface{}{
				"payment_status":  models.PaymentStatusCompleted,
				"transaction_id":  transactionID,
				"payment_gateway": gateway,
				"paid_at":         &now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return database.ErrOrderNotFound
		}
		return nil
	})
}
