package fixedpoint

import (
	"math/big"
	"sync"

	"github.com/shopspring/decimal"
)

// Scale is the fixed-point scaling factor (8 decimal places).
// Every monetary, price, quantity and leverage value in the engine is an
// int64 scaled by this factor.
const Scale int64 = 100_000_000

// bigPool recycles big.Ints used for intermediate products that can
// exceed int64.
var bigPool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getBig() *big.Int {
	return bigPool.Get().(*big.Int)
}

func putBig(v *big.Int) {
	v.SetInt64(0)
	bigPool.Put(v)
}

// ToScaled converts a decimal value to its scaled integer representation,
// rounding to nearest.
func ToScaled(d decimal.Decimal) int64 {
	return d.Shift(8).Round(0).IntPart()
}

// FromScaled converts a scaled integer back to a decimal. Display/output
// only; internal arithmetic never leaves the scaled domain.
func FromScaled(v int64) decimal.Decimal {
	return decimal.New(v, -8)
}

// ParseScaled parses a decimal string ("4321.55") into a scaled integer.
func ParseScaled(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return ToScaled(d), nil
}

// PositionSize computes the quantity a position controls:
// margin * leverage / price, truncated toward zero. All operands and the
// result are scaled.
func PositionSize(margin, leverage, price int64) int64 {
	if price == 0 {
		return 0
	}
	num := getBig()
	lev := getBig()
	num.SetInt64(margin)
	lev.SetInt64(leverage)
	num.Mul(num, lev)
	lev.SetInt64(price)
	num.Quo(num, lev)
	out := num.Int64()
	putBig(num)
	putBig(lev)
	return out
}

// PnL computes realized/unrealized P&L for a position:
// priceDiff * quantity * leverage / Scale^2, truncated toward zero.
// sideSign is +1 for LONG and -1 for SHORT; priceDiff is
// currentPrice - entryPrice before the sign is applied. Truncation toward
// zero is part of the economic contract: the house never rounds in the
// trader's favor.
func PnL(sideSign int64, entryPrice, currentPrice, quantity, leverage int64) int64 {
	priceDiff := currentPrice - entryPrice

	num := getBig()
	tmp := getBig()
	num.SetInt64(sideSign * priceDiff)
	tmp.SetInt64(quantity)
	num.Mul(num, tmp)
	tmp.SetInt64(leverage)
	num.Mul(num, tmp)
	tmp.SetInt64(Scale)
	tmp.Mul(tmp, tmp) // Scale^2: one factor per extra scaled operand
	num.Quo(num, tmp)
	out := num.Int64()
	putBig(num)
	putBig(tmp)
	return out
}

// MidPrice computes the mid between best bid and best ask, truncated.
func MidPrice(bid, ask int64) int64 {
	return (bid + ask) / 2
}
