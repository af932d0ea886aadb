// Package venue implements the client for the external trade venue's
// bulk order endpoint. The venue owns this wire contract; response
// items are correlated to request items by requestIndex, not by order
// id.
package venue

import (
	"time"

	"github.com/shopspring/decimal"
)

// Venue-side per-order result status values
const (
	ResultStatusSuccess = "SUCCESS"
	ResultStatusFailed  = "FAILED"
)

// TradeOrderItem is one line item of a bulk submission
type TradeOrderItem struct {
	OrderID        int64           `json:"orderId"`
	PortfolioID    string          `json:"portfolioId"`
	OrderType      string          `json:"orderType"`
	SecurityID     string          `json:"securityId"`
	Quantity       decimal.Decimal `json:"quantity"`
	LimitPrice     decimal.Decimal `json:"limitPrice"`
	TradeTimestamp time.Time       `json:"tradeTimestamp"`
	BlotterID      int64           `json:"blotterId"`
}

// BulkRequest is the single outbound call carrying a whole batch
type BulkRequest struct {
	TradeOrders []TradeOrderItem `json:"tradeOrders"`
}

// TradeOrder is the venue-assigned order record echoed in responses
type TradeOrder struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"orderId"`
	PortfolioID string          `json:"portfolioId"`
	SecurityID  string          `json:"securityId"`
	Quantity    decimal.Decimal `json:"quantity"`
	LimitPrice  decimal.Decimal `json:"limitPrice"`
}

// OrderResult is the venue's outcome for one position of the request
type OrderResult struct {
	RequestIndex int         `json:"requestIndex"`
	Status       string      `json:"status"`
	Message      string      `json:"message"`
	TradeOrder   *TradeOrder `json:"tradeOrder,omitempty"`
}

// BulkResponse is the venue's answer to one bulk submission. Results
// may cover only a subset of the requested positions.
type BulkResponse struct {
	Status         string        `json:"status"`
	Message        string        `json:"message"`
	TotalRequested int           `json:"totalRequested"`
	Successful     int           `json:"successful"`
	Failed         int           `json:"failed"`
	Results        []OrderResult `json:"results"`
}
