package risk

import (
	"MarginEngine/internal/fixedpoint"
	"MarginEngine/internal/state"
)

// Action is the forced-close verdict for a position at a price.
type Action string

const (
	ActionNone       Action = ""
	ActionMarginCall Action = "MARGIN_CALL"
	ActionStopLoss   Action = "STOP_LOSS"
	ActionTakeProfit Action = "TAKE_PROFIT"
)

// marginCallNumerator/Denominator: liquidate when the unrealized loss
// reaches 90% of posted margin, protecting the house from negative
// balances.
const (
	marginCallNumerator   = 90
	marginCallDenominator = 100
)

// Evaluate decides whether a position must be force-closed at the current
// price, and why. Evaluation order is a policy invariant: margin-call
// always takes precedence over user-configured exits, stop-loss over
// take-profit. The first matching rule wins.
func Evaluate(pos state.Position, currentPrice int64) Action {
	pnl := fixedpoint.PnL(pos.Direction.Sign(), pos.EntryPrice, currentPrice, pos.Quantity, pos.Leverage)

	liquidationThreshold := pos.Margin * marginCallNumerator / marginCallDenominator
	if pnl < 0 && -pnl >= liquidationThreshold {
		return ActionMarginCall
	}

	if pos.StopLoss > 0 && pnl < 0 && -pnl >= pos.StopLoss {
		return ActionStopLoss
	}

	if pos.TakeProfit > 0 && pnl > 0 && pnl >= pos.TakeProfit {
		return ActionTakeProfit
	}

	return ActionNone
}
