package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Order statuses.
const (
	OrderStatusPending        = "pending"
	OrderStatusConfirmed      = "confirmed"
	OrderStatusProcessing     = "processing"
	OrderStatusShipped        = "shipped"
	OrderStatusOutForDelivery = "out_for_delivery"
	OrderStatusDelivered      = "delivered"
	OrderStatusCancelled      = "cancelled"
	OrderStatusReturned       = "returned"
)

// OrderStatuses lists every valid order status.
var OrderStatuses = []string{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusReturned,
}

// Payment statuses.
const (
	PaymentStatusPending           = "pending"
	PaymentStatusProcessing        = "processing"
	PaymentStatusCompleted         = "completed"
	PaymentStatusFailed            = "failed"
	PaymentStatusRefunded          = "refunded"
	PaymentStatusPartiallyRefunded = "partially_refunded"
)

// Payment methods.
const (
	PaymentMethodCreditCard     = "credit_card"
	PaymentMethodDebitCard      = "debit_card"
	PaymentMethodPayPal         = "paypal"
	PaymentMethodStripe         = "stripe"
	PaymentMethodCashOnDelivery = "cash_on_delivery"
)

// Shipping methods.
const (
	ShippingStandard  = "standard"
	ShippingExpress   = "express"
	ShippingOvernight = "overnight"
	ShippingPickup    = "pickup"
)

// Order sources.
const (
	OrderSourceWeb    = "web"
	OrderSourceMobile = "mobile"
	OrderSourceAdmin  = "admin"
	OrderSourceAPI    = "api"
)

// ReturnWindowDays is how long after delivery an order stays returnable.
const ReturnWindowDays = 30

// OrderAddress is the shipping/billing address frozen onto an order.
type OrderAddress struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company,omitempty"`
	Address1  string `json:"address1"`
	Address2  string `json:"address2,omitempty"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   string `json:"zip_code"`
	Country   string `json:"country"`
	Phone     string `json:"phone,omitempty"`
}

// Order is a placed order. OrderNumber is assigned on first persist and never
// changes; the Timeline is append-only.
type Order struct {
	BaseModel
	OrderNumber string    `gorm:"uniqueIndex" json:"order_number"`
	UserID      uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	User        *User     `json:"user,omitempty"`

	// Customer snapshot at purchase time.
	CustomerEmail     string `json:"customer_email"`
	CustomerFirstName string `json:"customer_first_name"`
	CustomerLastName  string `json:"customer_last_name"`
	CustomerPhone     string `json:"customer_phone,omitempty"`

	Items []OrderItem `json:"items,omitempty"`

	Subtotal       float64 `json:"subtotal"`
	TaxAmount      float64 `json:"tax_amount"`
	ShippingAmount float64 `json:"shipping_amount"`
	DiscountAmount float64 `json:"discount_amount"`
	TotalAmount    float64 `json:"total_amount"`
	Currency       string  `json:"currency"`

	Status string `gorm:"index" json:"status"`

	PaymentMethod     string     `json:"payment_method"`
	PaymentStatus     string     `gorm:"index" json:"payment_status"`
	TransactionID     string     `json:"transaction_id,omitempty"`
	PaymentGateway    string     `json:"payment_gateway,omitempty"`
	PaidAt            *time.Time `json:"paid_at,omitempty"`
	RefundRequested   bool       `json:"refund_requested"`
	RefundedAt        *time.Time `json:"refunded_at,omitempty"`
	RefundProcessedAt *time.Time `json:"refund_processed_at,omitempty"`
	RefundAmount      float64    `json:"refund_amount"`

	ShippingAddress       OrderAddress `gorm:"embedded;embeddedPrefix:shipping_" json:"shipping_address"`
	BillingAddress        OrderAddress `gorm:"embedded;embeddedPrefix:billing_" json:"billing_address"`
	ShippingMethod        string       `json:"shipping_method"`
	TrackingNumber        string       `json:"tracking_number,omitempty"`
	CarrierName           string       `json:"carrier_name,omitempty"`
	EstimatedDeliveryDate *time.Time   `json:"estimated_delivery_date,omitempty"`
	ActualDeliveryDate    *time.Time   `json:"actual_delivery_date,omitempty"`

	Timeline []OrderTrackingEvent `json:"timeline,omitempty"`

	Source             string `json:"source"` // web|mobile|admin|api
	CustomerNote       string `json:"customer_note,omitempty"`
	InternalNote       string `json:"internal_note,omitempty"`
	CouponCode         string `json:"coupon_code,omitempty"`
	IsGift             bool   `json:"is_gift"`
	GiftMessage        string `json:"gift_message,omitempty"`
	CancellationReason string `json:"cancellation_reason,omitempty"`
	ReturnReason       string `json:"return_reason,omitempty"`
}

// TotalItems sums the quantities of all line items.
func (o *Order) TotalItems() int {
	total := 0
	for _, item := range o.Items {
		total += item.Quantity
	}
	return total
}

// AgeInDays returns the order age, ceiling-rounded to whole days.
func (o *Order) AgeInDays(now time.Time) int {
	return int(math.Ceil(now.Sub(o.CreatedAt).Hours() / 24))
}

// RecalculateTotals rebuilds subtotal and total from the line items. Explicit:
// callers invoke it after any item mutation, it never runs implicitly.
func (o *Order) RecalculateTotals() {
	subtotal := 0.0
	for _, item := range o.Items {
		subtotal += item.TotalPrice
	}
	o.Subtotal = subtotal
	o.TotalAmount = subtotal + o.TaxAmount + o.ShippingAmount - o.DiscountAmount
}

// CanBeCancelled reports whether the order may still be cancelled.
func (o *Order) CanBeCancelled() bool {
	return o.Status == OrderStatusPending || o.Status == OrderStatusConfirmed
}

// CanBeReturned reports whether the order is within the return window.
func (o *Order) CanBeReturned(now time.Time) bool {
	return o.Status == OrderStatusDelivered && o.AgeInDays(now) <= ReturnWindowDays
}

// ValidOrderStatus reports whether s is a known order status.
func ValidOrderStatus(s string) bool {
	for _, status := range OrderStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// OrderItem is a line item holding a frozen snapshot of the purchased
// product, not a live reference.
type OrderItem struct {
	BaseModel
	OrderID      uuid.UUID  `gorm:"type:uuid;index" json:"order_id"`
	ProductID    uuid.UUID  `gorm:"type:uuid" json:"product_id"`
	VariantID    *uuid.UUID `gorm:"type:uuid" json:"variant_id,omitempty"`
	ProductName  string     `json:"product_name"`
	ProductImage string     `json:"product_image"`
	SKU          string     `json:"sku"`
	VariantSize  string     `json:"variant_size,omitempty"`
	VariantColor string     `json:"variant_color,omitempty"`
	Quantity     int        `json:"quantity"`
	UnitPrice    float64    `json:"unit_price"`
	TotalPrice   float64    `json:"total_price"`
}

// OrderTrackingEvent is one entry in an order's append-only timeline.
type OrderTrackingEvent struct {
	BaseModel
	OrderID    uuid.UUID  `gorm:"type:uuid;index" json:"order_id"`
	Status     string     `json:"status"`
	Message    string     `json:"message"`
	Location   string     `json:"location,omitempty"`
	UpdatedBy  *uuid.UUID `gorm:"type:uuid" json:"updated_by,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}
