package state

import (
	"errors"
	"sync"

	"MarginEngine/internal/event"
	"MarginEngine/internal/fixedpoint"
)

// ErrDuplicateOrder is returned by Create when the order id is already
// open. Reprocessing a TRADE_CREATE after replay hits this path; the
// collision must surface, never double-execute.
var ErrDuplicateOrder = errors.New("duplicate order id")

// Position is one open leveraged position. Margin and Quantity never
// change after creation; only the stop-loss/take-profit thresholds are
// mutable, and close replaces the position wholesale (by removal).
type Position struct {
	OrderID    string          `json:"orderId"`
	UserID     string          `json:"userId"`
	Asset      string          `json:"asset"`
	Direction  event.Direction `json:"type"`
	Margin     int64           `json:"margin"`
	Leverage   int64           `json:"leverage"`
	EntryPrice int64           `json:"entryPrice"`
	Quantity   int64           `json:"quantity"`
	StopLoss   int64           `json:"stopLoss,omitempty"`   // absolute loss amount, 0 = unset
	TakeProfit int64           `json:"takeProfit,omitempty"` // absolute profit amount, 0 = unset
	OpenedAt   int64           `json:"timestamp"`            // ms

	// LiquidationPrice is informational only. Margin calls are driven purely
	// by the 90%-of-margin P&L rule; this field stays zero and is carried in
	// the snapshot for wire compatibility.
	LiquidationPrice int64 `json:"liquidationPrice"`
}

// PositionBook owns every open position, keyed by order id. Accessors hand
// out copies so no caller retains a reference across mutations.
type PositionBook struct {
	mu        sync.RWMutex
	positions map[string]*Position
}

func NewPositionBook() *PositionBook {
	return &PositionBook{positions: make(map[string]*Position)}
}

// Create derives the quantity from margin, leverage and the current tick,
// and inserts the position. Fails with ErrDuplicateOrder without mutating
// anything if the order id is already open.
func (pb *PositionBook) Create(
	orderID, userID, asset string,
	direction event.Direction,
	margin, leverage int64,
	tick PriceTick,
	stopLoss, takeProfit int64,
	openedAt int64,
) (Position, error) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	if _, ok := pb.positions[orderID]; ok {
		return Position{}, ErrDuplicateOrder
	}

	pos := &Position{
		OrderID:    orderID,
		UserID:     userID,
		Asset:      asset,
		Direction:  direction,
		Margin:     margin,
		Leverage:   leverage,
		EntryPrice: tick.Price,
		Quantity:   fixedpoint.PositionSize(margin, leverage, tick.Price),
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
		OpenedAt:   openedAt,
	}
	pb.positions[orderID] = pos
	return *pos, nil
}

// Get returns a copy of the position for an order id.
func (pb *PositionBook) Get(orderID string) (Position, bool) {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	pos, ok := pb.positions[orderID]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// Remove deletes the position for an order id.
func (pb *PositionBook) Remove(orderID string) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	delete(pb.positions, orderID)
}

// ByAsset returns an unordered snapshot of open positions on an asset.
func (pb *PositionBook) ByAsset(asset string) []Position {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	var out []Position
	for _, pos := range pb.positions {
		if pos.Asset == asset {
			out = append(out, *pos)
		}
	}
	return out
}

// ByUser returns an unordered snapshot of a user's open positions.
func (pb *PositionBook) ByUser(userID string) []Position {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	var out []Position
	for _, pos := range pb.positions {
		if pos.UserID == userID {
			out = append(out, *pos)
		}
	}
	return out
}

// AttachStopLoss sets the stop-loss threshold; false if the order id is
// unknown.
func (pb *PositionBook) AttachStopLoss(orderID string, threshold int64) bool {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pos, ok := pb.positions[orderID]
	if !ok {
		return false
	}
	pos.StopLoss = threshold
	return true
}

// AttachTakeProfit sets the take-profit threshold; false if the order id is
// unknown.
func (pb *PositionBook) AttachTakeProfit(orderID string, threshold int64) bool {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pos, ok := pb.positions[orderID]
	if !ok {
		return false
	}
	pos.TakeProfit = threshold
	return true
}

// PnL computes the position's P&L at the given price; false if the order id
// is unknown.
func (pb *PositionBook) PnL(orderID string, currentPrice int64) (int64, bool) {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	pos, ok := pb.positions[orderID]
	if !ok {
		return 0, false
	}
	return fixedpoint.PnL(pos.Direction.Sign(), pos.EntryPrice, currentPrice, pos.Quantity, pos.Leverage), true
}

// Len returns the number of open positions.
func (pb *PositionBook) Len() int {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	return len(pb.positions)
}

// All returns a copy of every open position, keyed by order id.
func (pb *PositionBook) All() map[string]Position {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	out := make(map[string]Position, len(pb.positions))
	for k, v := range pb.positions {
		out[k] = *v
	}
	return out
}

// Restore replaces the book's contents from a snapshot.
func (pb *PositionBook) Restore(positions map[string]Position) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.positions = make(map[string]*Position, len(positions))
	for k, v := range positions {
		p := v
		pb.positions[k] = &p
	}
}
