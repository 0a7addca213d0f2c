package ingestion

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"MarginEngine/internal/event"
	"MarginEngine/internal/fixedpoint"
)

// ErrUnknownKind marks an input record whose type is not recognized. The
// engine loop logs these and advances past them rather than failing.
var ErrUnknownKind = errors.New("unknown event kind")

// ParseEnvelope converts one input log record into a typed event.
//
// Monetary fields arrive as decimal strings and are converted to scaled
// integers here, so the core never touches floating point. A bookTicker
// missing its bid or ask parses to (nil, nil): the tick is dropped without
// error, matching the feed's occasional partial updates.
func ParseEnvelope(data []byte) (event.Inbound, error) {
	var env event.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse envelope: %w", err)
	}

	switch env.Type {
	case event.KindTradeCreate:
		return parseTradeCreate(env.Data)
	case event.KindTradeClose:
		return parseTradeClose(env.Data)
	case event.KindTradeUpdate:
		return parseTradeUpdate(env.Data)
	case event.KindBookTicker:
		bt, err := parseBookTicker(env.Data)
		if bt == nil || err != nil {
			return nil, err
		}
		return bt, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type)
	}
}

// --- JSON wire formats ---
// Field names use camelCase to match the upstream API gateway; bookTicker
// uses the feed's single-letter keys.

type tradeCreateJSON struct {
	OrderID    string          `json:"orderId"`
	UserID     string          `json:"userId"`
	Asset      string          `json:"asset"`
	Type       string          `json:"type"`
	Margin     decimal.Decimal `json:"margin"`
	Leverage   decimal.Decimal `json:"leverage"`
	StopLoss   decimal.Decimal `json:"stopLoss"`
	TakeProfit decimal.Decimal `json:"takeProfit"`
}

func parseTradeCreate(data []byte) (*event.TradeCreate, error) {
	var j tradeCreateJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse TRADE_CREATE: %w", err)
	}

	if j.OrderID == "" {
		return nil, errors.New("parse TRADE_CREATE: missing orderId")
	}
	if j.UserID == "" {
		return nil, errors.New("parse TRADE_CREATE: missing userId")
	}
	if j.Asset == "" {
		return nil, errors.New("parse TRADE_CREATE: missing asset")
	}

	direction := event.Direction(j.Type)
	if !direction.Valid() {
		return nil, fmt.Errorf("parse TRADE_CREATE: invalid direction %q", j.Type)
	}

	margin := fixedpoint.ToScaled(j.Margin)
	leverage := fixedpoint.ToScaled(j.Leverage)
	if margin <= 0 {
		return nil, fmt.Errorf("parse TRADE_CREATE: non-positive margin %s", j.Margin)
	}
	if leverage <= 0 {
		return nil, fmt.Errorf("parse TRADE_CREATE: non-positive leverage %s", j.Leverage)
	}

	return &event.TradeCreate{
		OrderID:    j.OrderID,
		UserID:     j.UserID,
		Asset:      j.Asset,
		Direction:  direction,
		Margin:     margin,
		Leverage:   leverage,
		StopLoss:   fixedpoint.ToScaled(j.StopLoss),
		TakeProfit: fixedpoint.ToScaled(j.TakeProfit),
	}, nil
}

type tradeCloseJSON struct {
	OrderID string `json:"orderId"`
	UserID  string `json:"userId"`
}

func parseTradeClose(data []byte) (*event.TradeClose, error) {
	var j tradeCloseJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse TRADE_CLOSE: %w", err)
	}
	if j.OrderID == "" {
		return nil, errors.New("parse TRADE_CLOSE: missing orderId")
	}
	if j.UserID == "" {
		return nil, errors.New("parse TRADE_CLOSE: missing userId")
	}
	return &event.TradeClose{OrderID: j.OrderID, UserID: j.UserID}, nil
}

type tradeUpdateJSON struct {
	OrderID    string          `json:"orderId"`
	UserID     string          `json:"userId"`
	StopLoss   decimal.Decimal `json:"stopLoss"`
	TakeProfit decimal.Decimal `json:"takeProfit"`
}

func parseTradeUpdate(data []byte) (*event.TradeUpdate, error) {
	var j tradeUpdateJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse TRADE_UPDATE: %w", err)
	}
	if j.OrderID == "" {
		return nil, errors.New("parse TRADE_UPDATE: missing orderId")
	}
	if j.UserID == "" {
		return nil, errors.New("parse TRADE_UPDATE: missing userId")
	}
	return &event.TradeUpdate{
		OrderID:    j.OrderID,
		UserID:     j.UserID,
		StopLoss:   fixedpoint.ToScaled(j.StopLoss),
		TakeProfit: fixedpoint.ToScaled(j.TakeProfit),
	}, nil
}

type bookTickerJSON struct {
	EventType string `json:"e"`
	Symbol    string `json:"s"`
	Bid       string `json:"b"`
	Ask       string `json:"a"`
	EventTime int64  `json:"E"`
	Sequence  int64  `json:"u"`
}

func parseBookTicker(data []byte) (*event.BookTicker, error) {
	var j bookTickerJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse bookTicker: %w", err)
	}

	// Partial ticks are expected from the feed and dropped without error.
	if j.Symbol == "" || j.Bid == "" || j.Ask == "" {
		return nil, nil
	}

	bid, err := fixedpoint.ParseScaled(j.Bid)
	if err != nil {
		return nil, fmt.Errorf("parse bookTicker bid %q: %w", j.Bid, err)
	}
	ask, err := fixedpoint.ParseScaled(j.Ask)
	if err != nil {
		return nil, fmt.Errorf("parse bookTicker ask %q: %w", j.Ask, err)
	}

	return &event.BookTicker{
		Symbol:    j.Symbol,
		Bid:       bid,
		Ask:       ask,
		EventTime: j.EventTime,
		Sequence:  j.Sequence,
	}, nil
}
