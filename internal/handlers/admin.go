package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/snbstore/internal/middleware"
	"github.com/example/snbstore/internal/models"
	"github.com/example/snbstore/internal/services"
	"github.com/example/snbstore/internal/utils"
)

// AdminHandler manages admin-console endpoints.
type AdminHandler struct {
	db       *gorm.DB
	orders   *services.OrderService
	products *services.ProductService
	users    *services.UserService
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(db *gorm.DB) *AdminHandler {
	return &AdminHandler{
		db:       db,
		orders:   services.NewOrderService(db),
		products: services.NewProductService(db),
		users:    services.NewUserService(db),
	}
}

// DashboardStats returns the aggregates behind the admin dashboard: sales
// summary over an optional window, orders by status, and low-stock alerts.
func (h *AdminHandler) DashboardStats(c *fiber.Ctx) error {
	var from, to *time.Time
	if v := c.Query("from"); v != "" {
		if parsed, err := time.Parse(time.RFC3339, v); err == nil {
			from = &parsed
		}
	}
	if v := c.Query("to"); v != "" {
		if parsed, err := time.Parse(time.RFC3339, v); err == nil {
			to = &parsed
		}
	}

	summary, err := h.orders.Summary(c.Context(), from, to)
	if err != nil {
		return err
	}

	var totalUsers int64
	if err := h.db.Model(&models.User{}).Where("is_deleted = ?", false).Count(&totalUsers).Error; err != nil {
		return err
	}

	type statusCount struct {
		Status string `json:"status"`
		Count  int64  `json:"count"`
	}
	var statusCounts []statusCount
	if err := h.db.Model(&models.Order{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&statusCounts).Error; err != nil {
		return err
	}

	ordersByStatus := make(map[string]int64)
	for _, sc := range statusCounts {
		ordersByStatus[sc.Status] = sc.Count
	}

	lowStock, err := h.products.LowStock(c.Context(), 5)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"total_sales":         summary.TotalSales,
			"total_orders":        summary.TotalOrders,
			"average_order_value": summary.AverageOrderValue,
			"total_users":         totalUsers,
			"orders_by_status":    ordersByStatus,
			"low_stock_products":  lowStock,
		},
	})
}

// ListAllOrders returns all orders with pagination and filtering.
func (h *AdminHandler) ListAllOrders(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Order{})

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	if paymentStatus := c.Query("payment_status"); paymentStatus != "" {
		query = query.Where("payment_status = ?", paymentStatus)
	}

	if search := c.Query("search"); search != "" {
		query = query.Where(
			"order_number ILIKE ? OR customer_email ILIKE ?",
			"%"+search+"%", "%"+search+"%",
		)
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

// RecentOrders returns the five most recent orders for the dashboard.
func (h *AdminHandler) RecentOrders(c *fiber.Ctx) error {
	var orders []models.Order
	if err := h.db.Preload("Items").
		Order("created_at desc").
		Limit(5).
		Find(&orders).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": orders})
}

type updateOrderStatusRequest struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Location string `json:"location"`
}

// UpdateOrderStatus moves an order to a new status; the transition lands in
// the order's timeline.
func (h *AdminHandler) UpdateOrderStatus(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req updateOrderStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	var updatedBy *uuid.UUID
	if adminID, ok := middleware.GetCurrentUserID(c); ok {
		updatedBy = &adminID
	}

	order, err := h.orders.ChangeStatus(c.Context(), id, req.Status, req.Message, req.Location, updatedBy)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

type markPaidRequest struct {
	TransactionID  string `json:"transaction_id"`
	PaymentGateway string `json:"payment_gateway"`
}

// MarkOrderPaid records a completed payment on an order.
func (h *AdminHandler) MarkOrderPaid(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req markPaidRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.orders.MarkPaymentCompleted(c.Context(), id, req.TransactionID, req.PaymentGateway); err != nil {
		return toHTTPError(err)
	}

	return c.JSON(fiber.Map{"success": true, "message": "payment recorded"})
}

// ListAllUsers returns registered users with pagination and search. The
// password hash column never leaves the model's json:"-" boundary.
func (h *AdminHandler) ListAllUsers(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.User{}).Where("is_deleted = ?", false)

	if search := c.Query("search"); search != "" {
		query = query.Where(
			"first_name ILIKE ? OR last_name ILIKE ? OR email ILIKE ?",
			"%"+search+"%", "%"+search+"%", "%"+search+"%",
		)
	}

	if role := c.Query("role"); role != "" {
		query = query.Where("role = ?", role)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var users []models.User
	if err := query.
		Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&users).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    users,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// DeleteUser soft-deletes an account.
func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	if err := h.users.SoftDelete(c.Context(), id); err != nil {
		return toHTTPError(err)
	}

	return c.JSON(fiber.Map{"success": true, "message": "user deleted"})
}
