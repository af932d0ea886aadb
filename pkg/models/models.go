package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order status values
const (
	OrderStatusNew       = "NEW"
	OrderStatusSubmitted = "SUBMITTED"
	OrderStatusCancelled = "CANCELLED"
	OrderStatusRejected  = "REJECTED"
)

// Order represents a trade order in the system
type Order struct {
	ID             int64           `json:"id" gorm:"primaryKey;autoIncrement"`
	Status         string          `json:"status" gorm:"index;default:NEW" validate:"required,oneof=NEW SUBMITTED CANCELLED REJECTED"`
	TradeOrderID   *int64          `json:"trade_order_id" gorm:"column:trade_order_id"`
	PortfolioID    string          `json:"portfolio_id" validate:"required,max=50"`
	SecurityID     string          `json:"security_id" validate:"required,max=50"`
	OrderType      string          `json:"order_type" validate:"required,oneof=BUY SELL"`
	Quantity       decimal.Decimal `json:"quantity" gorm:"type:decimal(20,8)" validate:"required"`
	LimitPrice     decimal.Decimal `json:"limit_price" gorm:"type:decimal(20,8)" validate:"required"`
	OrderTimestamp time.Time       `json:"order_timestamp"`
	BlotterID      *int64          `json:"blotter_id" gorm:"index"`
	Version        int             `json:"version" gorm:"default:0"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Blotter groups orders for book-keeping purposes
type Blotter struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Name      string    `json:"name" gorm:"uniqueIndex" validate:"required,max=100"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SubmittableFieldsPresent reports whether the order carries every field
// the trade venue contract requires. Orders failing this check never
// reach the venue.
func (o *Order) SubmittableFieldsPresent() bool {
	return o.PortfolioID != "" &&
		o.SecurityID != "" &&
		o.OrderType != "" &&
		o.Quantity.IsPositive() &&
		o.LimitPrice.IsPositive() &&
		!o.OrderTimestamp.IsZero() &&
		o.BlotterID != nil
}

// Batch outcome values
const (
	BatchStatusSuccess = "SUCCESS"
	BatchStatusPartial = "PARTIAL"
	BatchStatusFailure = "FAILURE"
)

// Per-order outcome values
const (
	OrderResultSuccess = "SUCCESS"
	OrderResultFailed  = "FAILED"
)

// BatchSubmitRequest is the inbound payload of the batch submission endpoint
type BatchSubmitRequest struct {
	OrderIDs []int64 `json:"orderIds" binding:"required,min=1,max=100"`
}

// PerOrderResult is the outcome of one requested order id, reported in
// the position the id held in the original request.
type PerOrderResult struct {
	OrderID      int64  `json:"orderId"`
	Status       string `json:"status"`
	Message      string `json:"message"`
	TradeOrderID *int64 `json:"tradeOrderId,omitempty"`
	RequestIndex int    `json:"requestIndex"`
}

// BatchSubmitResult aggregates the outcome of one batch submission.
// It always carries one PerOrderResult per requested id, in request
// order, regardless of how far the batch progressed.
type BatchSubmitResult struct {
	Status         string           `json:"status"`
	Message        string           `json:"message"`
	TotalRequested int              `json:"totalRequested"`
	Successful     int              `json:"successful"`
	Failed         int              `json:"failed"`
	Results        []PerOrderResult `json:"results"`
}

// CreateOrderRequest is the inbound payload for creating a single order
type CreateOrderRequest struct {
	PortfolioID string          `json:"portfolio_id" binding:"required"`
	SecurityID  string          `json:"security_id" binding:"required"`
	OrderType   string          `json:"order_type" binding:"required,oneof=BUY SELL"`
	Quantity    decimal.Decimal `json:"quantity" binding:"required"`
	LimitPrice  decimal.Decimal `json:"limit_price" binding:"required"`
	BlotterID   *int64          `json:"blotter_id" binding:"required"`
}
