package event

import "encoding/json"

// Input log kinds. The input log carries JSON records {type, data}; these
// are the recognized values of "type". Anything else is logged and ignored
// by the engine loop.
const (
	KindTradeCreate = "TRADE_CREATE"
	KindTradeClose  = "TRADE_CLOSE"
	KindTradeUpdate = "TRADE_UPDATE"
	KindBookTicker  = "bookTicker"
)

// Envelope is the wire framing of every input log record.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Direction is the side of a leveraged position.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// Sign returns +1 for LONG, -1 for SHORT.
func (d Direction) Sign() int64 {
	if d == DirectionShort {
		return -1
	}
	return 1
}

// Valid reports whether d is a recognized direction.
func (d Direction) Valid() bool {
	return d == DirectionLong || d == DirectionShort
}

// Inbound is the closed union of events the engine dispatches on.
type Inbound interface {
	Kind() string
}

// TradeCreate opens a leveraged position. Monetary fields are already
// scaled by the time the parser hands the event to the engine.
type TradeCreate struct {
	OrderID    string
	UserID     string
	Asset      string
	Direction  Direction
	Margin     int64
	Leverage   int64
	StopLoss   int64 // absolute loss threshold, 0 = unset
	TakeProfit int64 // absolute profit threshold, 0 = unset
}

func (*TradeCreate) Kind() string { return KindTradeCreate }

// TradeClose closes an open position at current mid-price.
type TradeClose struct {
	OrderID string
	UserID  string
}

func (*TradeClose) Kind() string { return KindTradeClose }

// TradeUpdate attaches or replaces stop-loss / take-profit thresholds on an
// open position. A zero value leaves the corresponding threshold untouched.
type TradeUpdate struct {
	OrderID    string
	UserID     string
	StopLoss   int64
	TakeProfit int64
}

func (*TradeUpdate) Kind() string { return KindTradeUpdate }

// BookTicker is a normalized best-bid/best-ask tick for one feed symbol.
type BookTicker struct {
	Symbol    string
	Bid       int64
	Ask       int64
	EventTime int64 // producer timestamp, ms
	Sequence  int64 // producer sequence, used to drop stale ticks
}

func (*BookTicker) Kind() string { return KindBookTicker }
