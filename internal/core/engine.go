package core

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"MarginEngine/internal/event"
	"MarginEngine/internal/fixedpoint"
	"MarginEngine/internal/observability"
	"MarginEngine/internal/risk"
	"MarginEngine/internal/state"
)

// Reject reasons surfaced in order_response outcomes. Rejects are
// structured events, never faults; the engine keeps consuming.
const (
	ReasonInsufficientBalance = "Insufficient balance"
	ReasonPriceUnavailable    = "Price data unavailable"
	ReasonPositionNotFound    = "Position not found"
	ReasonDuplicateOrder      = "Duplicate order"
)

// CloseReasonUser marks a close requested by the position's owner, as
// opposed to the risk evaluator's MARGIN_CALL / STOP_LOSS / TAKE_PROFIT.
const CloseReasonUser = "USER_CLOSE"

// Engine is the single-threaded event processor: it owns dispatch over the
// balance ledger, position book and price book, re-evaluates risk on every
// price update, and emits outcome events. State objects are injected at
// construction so each can be tested against synthetic state.
type Engine struct {
	balances  *state.BalanceLedger
	positions *state.PositionBook
	prices    *state.PriceBook

	out     chan<- event.Outbound
	metrics *observability.Metrics
	log     zerolog.Logger
	now     func() time.Time

	// mu spans one event's full dispatch. A single event may touch several
	// stores (a create writes the position book and then the balance
	// ledger); a snapshot captured between those writes would persist a
	// position without its margin lock, and replay would reject the
	// duplicate create without ever locking. Snapshot capture read-locks,
	// so it only ever observes whole-event boundaries.
	mu sync.RWMutex

	lastOffset atomic.Uint64
}

func NewEngine(
	balances *state.BalanceLedger,
	positions *state.PositionBook,
	prices *state.PriceBook,
	out chan<- event.Outbound,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *Engine {
	return &Engine{
		balances:  balances,
		positions: positions,
		prices:    prices,
		out:       out,
		metrics:   metrics,
		log:       log,
		now:       time.Now,
	}
}

// SetClock overrides the engine's clock. Tests only.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Process dispatches one input event and records its offset. Events are
// processed strictly one at a time, in log order; this single-writer
// discipline is what makes the check-then-lock in the balance ledger safe.
func (e *Engine) Process(evt event.Inbound, offset uint64) {
	start := time.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	switch ev := evt.(type) {
	case *event.TradeCreate:
		e.handleTradeCreate(ev)
	case *event.TradeClose:
		e.handleTradeClose(ev)
	case *event.TradeUpdate:
		e.handleTradeUpdate(ev)
	case *event.BookTicker:
		e.handleBookTicker(ev)
	default:
		e.log.Warn().Str("kind", evt.Kind()).Msg("unknown event kind ignored")
		if e.metrics != nil {
			e.metrics.EventsIgnored.Inc()
		}
	}

	e.lastOffset.Store(offset)

	if e.metrics != nil {
		e.metrics.EventsProcessed.WithLabelValues(evt.Kind()).Inc()
		e.metrics.EventDuration.WithLabelValues(evt.Kind()).Observe(time.Since(start).Seconds())
		e.metrics.EngineOffset.Set(float64(offset))
	}
}

// MarkOffset records the offset of an input record that was skipped
// (malformed payload, dropped tick) so replay does not revisit it.
func (e *Engine) MarkOffset(offset uint64) {
	e.lastOffset.Store(offset)
	if e.metrics != nil {
		e.metrics.EngineOffset.Set(float64(offset))
	}
}

// LastOffset returns the stream sequence of the last input record the
// engine has handled.
func (e *Engine) LastOffset() uint64 {
	return e.lastOffset.Load()
}

func (e *Engine) handleTradeCreate(ev *event.TradeCreate) {
	nowMs := e.now().UnixMilli()

	if !e.balances.HasAvailable(ev.UserID, ev.Margin) {
		e.reject(ev.UserID, ev.OrderID, ReasonInsufficientBalance, nowMs)
		return
	}

	tick, ok := e.prices.GetByAsset(ev.Asset)
	if !ok {
		e.reject(ev.UserID, ev.OrderID, ReasonPriceUnavailable, nowMs)
		return
	}

	pos, err := e.positions.Create(
		ev.OrderID, ev.UserID, ev.Asset, ev.Direction,
		ev.Margin, ev.Leverage, tick,
		ev.StopLoss, ev.TakeProfit, nowMs,
	)
	if err != nil {
		// Duplicate order id: an invariant violation for this event, fatal to
		// the operation but not to the process. Existing position state is
		// left untouched.
		e.log.Error().Err(err).
			Str("orderId", ev.OrderID).
			Str("userId", ev.UserID).
			Msg("trade create collided with open order")
		e.reject(ev.UserID, ev.OrderID, ReasonDuplicateOrder, nowMs)
		return
	}

	e.balances.Lock(ev.UserID, ev.Margin)

	e.emit(&event.OrderResponse{
		Type:           event.KindOrderResponse,
		EventID:        uuid.NewString(),
		UserID:         ev.UserID,
		OrderID:        ev.OrderID,
		Status:         event.StatusExecuted,
		ExecutionPrice: decPtr(tick.Price),
		Quantity:       decPtr(pos.Quantity),
		Margin:         decPtr(ev.Margin),
		Leverage:       decPtr(ev.Leverage),
		Timestamp:      nowMs,
	})

	if e.metrics != nil {
		e.metrics.OrdersExecuted.Inc()
		e.metrics.OpenPositions.Set(float64(e.positions.Len()))
	}

	e.log.Info().
		Str("orderId", ev.OrderID).
		Str("userId", ev.UserID).
		Str("asset", ev.Asset).
		Str("direction", string(ev.Direction)).
		Int64("quantity", pos.Quantity).
		Msg("position opened")
}

func (e *Engine) handleTradeClose(ev *event.TradeClose) {
	pos, ok := e.positions.Get(ev.OrderID)
	if !ok || pos.UserID != ev.UserID {
		// Never existed, already closed, or owned by someone else: the caller
		// sees the same reject in every case.
		e.reject(ev.UserID, ev.OrderID, ReasonPositionNotFound, e.now().UnixMilli())
		return
	}

	e.closePosition(pos, CloseReasonUser)
}

func (e *Engine) handleTradeUpdate(ev *event.TradeUpdate) {
	nowMs := e.now().UnixMilli()

	pos, ok := e.positions.Get(ev.OrderID)
	if !ok || pos.UserID != ev.UserID {
		e.reject(ev.UserID, ev.OrderID, ReasonPositionNotFound, nowMs)
		return
	}

	if ev.StopLoss > 0 {
		e.positions.AttachStopLoss(ev.OrderID, ev.StopLoss)
	}
	if ev.TakeProfit > 0 {
		e.positions.AttachTakeProfit(ev.OrderID, ev.TakeProfit)
	}

	e.emit(&event.OrderResponse{
		Type:      event.KindOrderResponse,
		EventID:   uuid.NewString(),
		UserID:    ev.UserID,
		OrderID:   ev.OrderID,
		Status:    event.StatusUpdated,
		Timestamp: nowMs,
	})
}

func (e *Engine) handleBookTicker(ev *event.BookTicker) {
	tick, ok := e.prices.Update(ev.Symbol, ev.Bid, ev.Ask, ev.Sequence, ev.EventTime)
	if !ok {
		return // stale tick
	}

	asset := state.AssetFromSymbol(ev.Symbol)
	for _, pos := range e.positions.ByAsset(asset) {
		action := risk.Evaluate(pos, tick.Price)
		if action != risk.ActionNone {
			e.closePosition(pos, string(action))
		}
	}
}

// closePosition is the shared close procedure for user closes and
// risk-triggered closes: compute P&L, release margin and book the result,
// remove the position, and emit the closed_order record plus the CLOSED
// outcome.
func (e *Engine) closePosition(pos state.Position, reason string) {
	tick, ok := e.prices.GetByAsset(pos.Asset)
	if !ok {
		// The one path where processing cannot proceed: without a price there
		// is no exit value, so skip and leave the position open.
		e.log.Error().
			Str("orderId", pos.OrderID).
			Str("asset", pos.Asset).
			Msg("cannot close position: no current price")
		return
	}

	nowMs := e.now().UnixMilli()
	pnl := fixedpoint.PnL(pos.Direction.Sign(), pos.EntryPrice, tick.Price, pos.Quantity, pos.Leverage)

	e.balances.ReleaseAndApplyPnL(pos.UserID, pos.Margin, pnl)
	balance := e.balances.Get(pos.UserID)
	e.positions.Remove(pos.OrderID)

	e.emit(&event.ClosedOrder{
		Type:         event.KindClosedOrder,
		EventID:      uuid.NewString(),
		OrderID:      pos.OrderID,
		UserID:       pos.UserID,
		Asset:        pos.Asset,
		PositionType: pos.Direction,
		Margin:       fixedpoint.FromScaled(pos.Margin),
		Leverage:     fixedpoint.FromScaled(pos.Leverage),
		EntryPrice:   fixedpoint.FromScaled(pos.EntryPrice),
		ExitPrice:    fixedpoint.FromScaled(tick.Price),
		Quantity:     fixedpoint.FromScaled(pos.Quantity),
		PnL:          fixedpoint.FromScaled(pnl),
		Reason:       reason,
		OpenTime:     pos.OpenedAt,
		CloseTime:    nowMs,
	})

	e.emit(&event.OrderResponse{
		Type:       event.KindOrderResponse,
		EventID:    uuid.NewString(),
		UserID:     pos.UserID,
		OrderID:    pos.OrderID,
		Status:     event.StatusClosed,
		Reason:     reason,
		ExitPrice:  decPtr(tick.Price),
		PnL:        decPtr(pnl),
		NewBalance: decPtr(balance.Balance),
		Timestamp:  nowMs,
	})

	if e.metrics != nil {
		e.metrics.OrdersClosed.WithLabelValues(reason).Inc()
		e.metrics.OpenPositions.Set(float64(e.positions.Len()))
	}

	e.log.Info().
		Str("orderId", pos.OrderID).
		Str("reason", reason).
		Int64("pnl", pnl).
		Msg("position closed")
}

func (e *Engine) reject(userID, orderID, reason string, nowMs int64) {
	e.emit(&event.OrderResponse{
		Type:      event.KindOrderResponse,
		EventID:   uuid.NewString(),
		UserID:    userID,
		OrderID:   orderID,
		Status:    event.StatusRejected,
		Reason:    reason,
		Timestamp: nowMs,
	})
	if e.metrics != nil {
		e.metrics.EventsRejected.WithLabelValues(reason).Inc()
	}
}

// emit blocks until the outbound publisher drains the channel. The engine
// stalls rather than drop an outcome; delivery is at-least-once.
func (e *Engine) emit(out event.Outbound) {
	e.out <- out
}

func decPtr(v int64) *decimal.Decimal {
	d := fixedpoint.FromScaled(v)
	return &d
}
