package event

import "github.com/shopspring/decimal"

// Output log kinds.
const (
	KindOrderResponse = "order_response"
	KindClosedOrder   = "closed_order"
)

// Status of an order_response outcome. Every input trade event produces
// exactly one outcome; rejects are never silent.
type Status string

const (
	StatusExecuted Status = "EXECUTED"
	StatusRejected Status = "REJECTED"
	StatusClosed   Status = "CLOSED"
	StatusUpdated  Status = "UPDATED"
)

// Outbound is the closed union of records the engine emits.
type Outbound interface {
	OutboundKind() string
}

// OrderResponse is the outcome event for one trade operation, consumed by
// the HTTP response relay. Monetary fields are decimals (unscaled) since
// this is an output boundary. EventID gives downstream consumers a
// dedup key under at-least-once delivery.
type OrderResponse struct {
	Type           string           `json:"type"`
	EventID        string           `json:"eventId"`
	UserID         string           `json:"userId"`
	OrderID        string           `json:"orderId"`
	Status         Status           `json:"status"`
	Reason         string           `json:"reason,omitempty"`
	ExecutionPrice *decimal.Decimal `json:"executionPrice,omitempty"`
	ExitPrice      *decimal.Decimal `json:"exitPrice,omitempty"`
	Quantity       *decimal.Decimal `json:"quantity,omitempty"`
	Margin         *decimal.Decimal `json:"margin,omitempty"`
	Leverage       *decimal.Decimal `json:"leverage,omitempty"`
	PnL            *decimal.Decimal `json:"pnl,omitempty"`
	NewBalance     *decimal.Decimal `json:"newBalance,omitempty"`
	Timestamp      int64            `json:"timestamp"`
}

func (*OrderResponse) OutboundKind() string { return KindOrderResponse }

// ClosedOrder is the full economic record of a closed position, consumed by
// the persistence worker for durable archival.
type ClosedOrder struct {
	Type         string          `json:"type"`
	EventID      string          `json:"eventId"`
	OrderID      string          `json:"orderId"`
	UserID       string          `json:"userId"`
	Asset        string          `json:"asset"`
	PositionType Direction       `json:"positionType"`
	Margin       decimal.Decimal `json:"margin"`
	Leverage     decimal.Decimal `json:"leverage"`
	EntryPrice   decimal.Decimal `json:"entryPrice"`
	ExitPrice    decimal.Decimal `json:"exitPrice"`
	Quantity     decimal.Decimal `json:"quantity"`
	PnL          decimal.Decimal `json:"pnl"`
	Reason       string          `json:"reason"`
	OpenTime     int64           `json:"openTime"`
	CloseTime    int64           `json:"closeTime"`
}

func (*ClosedOrder) OutboundKind() string { return KindClosedOrder }
