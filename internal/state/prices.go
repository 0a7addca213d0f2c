package state

import (
	"strings"
	"sync"

	"MarginEngine/internal/fixedpoint"
)

// PriceTick is the latest known price for one feed symbol. Overwritten in
// place on every update; the engine keeps no price history.
type PriceTick struct {
	Symbol    string `json:"symbol"`
	Price     int64  `json:"price"` // scaled mid-price
	Sequence  int64  `json:"sequence"`
	Timestamp int64  `json:"timestamp"` // ms
}

// PriceBook holds the latest mid-price per traded instrument. Mutated only
// by the engine loop; the read lock exists for the snapshot goroutine.
type PriceBook struct {
	mu    sync.RWMutex
	ticks map[string]PriceTick
}

func NewPriceBook() *PriceBook {
	return &PriceBook{ticks: make(map[string]PriceTick)}
}

// SymbolForAsset maps a trading asset ("ETH") to its feed pair symbol
// ("ETH_USDC_PERP"). Pure naming convention, not configuration.
func SymbolForAsset(asset string) string {
	return asset + "_USDC_PERP"
}

// AssetFromSymbol is the inverse of SymbolForAsset.
func AssetFromSymbol(symbol string) string {
	if i := strings.IndexByte(symbol, '_'); i > 0 {
		return symbol[:i]
	}
	return symbol
}

// Update recomputes the mid-price from best bid/ask and overwrites the
// stored tick, returning the new tick. Ticks with a sequence at or below
// the last seen one for the symbol are stale and return false without
// mutating anything, which keeps replay idempotent under producer retries.
func (pb *PriceBook) Update(symbol string, bid, ask, sequence, timestamp int64) (PriceTick, bool) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	if cur, ok := pb.ticks[symbol]; ok && sequence != 0 && sequence <= cur.Sequence {
		return PriceTick{}, false
	}

	tick := PriceTick{
		Symbol:    symbol,
		Price:     fixedpoint.MidPrice(bid, ask),
		Sequence:  sequence,
		Timestamp: timestamp,
	}
	pb.ticks[symbol] = tick
	return tick, true
}

// Get returns the stored tick for a feed symbol.
func (pb *PriceBook) Get(symbol string) (PriceTick, bool) {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	tick, ok := pb.ticks[symbol]
	return tick, ok
}

// GetByAsset resolves the asset to its feed symbol and returns the tick.
func (pb *PriceBook) GetByAsset(asset string) (PriceTick, bool) {
	return pb.Get(SymbolForAsset(asset))
}

// All returns a copy of every stored tick, keyed by symbol.
func (pb *PriceBook) All() map[string]PriceTick {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	out := make(map[string]PriceTick, len(pb.ticks))
	for k, v := range pb.ticks {
		out[k] = v
	}
	return out
}

// Restore replaces the book's contents from a snapshot.
func (pb *PriceBook) Restore(ticks map[string]PriceTick) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.ticks = make(map[string]PriceTick, len(ticks))
	for k, v := range ticks {
		pb.ticks[k] = v
	}
}
