package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/snbstore/internal/middleware"
	"github.com/example/snbstore/internal/models"
	"github.com/example/snbstore/internal/services"
	"github.com/example/snbstore/internal/utils"
)

// OrderHandler manages customer order endpoints.
type OrderHandler struct {
	db     *gorm.DB
	orders *services.OrderService
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(db *gorm.DB) *OrderHandler {
	return &OrderHandler{db: db, orders: services.NewOrderService(db)}
}

type orderItemRequest struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

type orderAddressRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
	Address1  string `json:"address1"`
	Address2  string `json:"address2"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   string `json:"zip_code"`
	Country   string `json:"country"`
	Phone     string `json:"phone"`
}

func (r orderAddressRequest) toModel() models.OrderAddress {
	return models.OrderAddress{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Company:   r.Company,
		Address1:  r.Address1,
		Address2:  r.Address2,
		City:      r.City,
		State:     r.State,
		ZipCode:   r.ZipCode,
		Country:   r.Country,
		Phone:     r.Phone,
	}
}

type createOrderRequest struct {
	Items           []orderItemRequest  `json:"items"`
	TaxAmount       float64             `json:"tax_amount"`
	ShippingAmount  float64             `json:"shipping_amount"`
	DiscountAmount  float64             `json:"discount_amount"`
	Currency        string              `json:"currency"`
	PaymentMethod   string              `json:"payment_method"`
	ShippingAddress orderAddressRequest `json:"shipping_address"`
	BillingAddress  orderAddressRequest `json:"billing_address"`
	ShippingMethod  string              `json:"shipping_method"`
	Source          string              `json:"source"`
	CustomerNote    string              `json:"customer_note"`
	CouponCode      string              `json:"coupon_code"`
	IsGift          bool                `json:"is_gift"`
	GiftMessage     string              `json:"gift_message"`
}

// CreateOrder places an order for the authenticated user.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	input := services.CreateOrderInput{
		UserID:          userID,
		TaxAmount:       req.TaxAmount,
		ShippingAmount:  req.ShippingAmount,
		DiscountAmount:  req.DiscountAmount,
		Currency:        req.Currency,
		PaymentMethod:   req.PaymentMethod,
		ShippingAddress: req.ShippingAddress.toModel(),
		BillingAddress:  req.BillingAddress.toModel(),
		ShippingMethod:  req.ShippingMethod,
		Source:          req.Source,
		CustomerNote:    req.CustomerNote,
		CouponCode:      req.CouponCode,
		IsGift:          req.IsGift,
		GiftMessage:     req.GiftMessage,
	}

	for _, item := range req.Items {
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid product_id")
		}
		in := services.OrderItemInput{ProductID: productID, Quantity: item.Quantity}
		if item.VariantID != "" {
			variantID, err := uuid.Parse(item.VariantID)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid variant_id")
			}
			in.VariantID = &variantID
		}
		input.Items = append(input.Items, in)
	}

	order, err := h.orders.Create(c.Context(), input)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"id":           order.ID,
			"order_number": order.OrderNumber,
			"status":       order.Status,
			"subtotal":     order.Subtotal,
			"total":        order.TotalAmount,
			"currency":     order.Currency,
			"placed_at":    order.CreatedAt,
		},
	})
}

// ListOrders returns orders for the authenticated user.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	pg := utils.ParsePagination(c)
	query := h.db.Where("user_id = ?", userID).Model(&models.Order{})

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var orders []models.Order
	if err := query.Preload("Items").
		Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&orders).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    orders,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// GetOrder returns a single order belonging to the authenticated user.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	order, err := h.orders.Get(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	if order.UserID != userID {
		return fiber.NewError(fiber.StatusNotFound, "order not found")
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

type orderReasonRequest struct {
	Reason string `json:"reason"`
}

// CancelOrder cancels a pending or confirmed order.
func (h *OrderHandler) CancelOrder(c *fiber.Ctx) error {
	return h.closeOrder(c, h.orders.Cancel)
}

// ReturnOrder requests a return on a delivered order inside the return window.
func (h *OrderHandler) ReturnOrder(c *fiber.Ctx) error {
	return h.closeOrder(c, h.orders.Return)
}

func (h *OrderHandler) closeOrder(c *fiber.Ctx, op func(context.Context, uuid.UUID, string) (*models.Order, error)) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	existing, err := h.orders.Get(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	if existing.UserID != userID {
		return fiber.NewError(fiber.StatusNotFound, "order not found")
	}

	var req orderReasonRequest
	_ = c.BodyParser(&req)

	order, err := op(c.Context(), id, req.Reason)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"id":           order.ID,
			"order_number": order.OrderNumber,
			"status":       order.Status,
		},
	})
}
