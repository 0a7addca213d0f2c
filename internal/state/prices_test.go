package state_test

import (
	"testing"

	"MarginEngine/internal/state"
)

func TestSymbolMapping(t *testing.T) {
	if got := state.SymbolForAsset("ETH"); got != "ETH_USDC_PERP" {
		t.Errorf("SymbolForAsset(ETH) = %q", got)
	}
	if got := state.AssetFromSymbol("ETH_USDC_PERP"); got != "ETH" {
		t.Errorf("AssetFromSymbol(ETH_USDC_PERP) = %q", got)
	}
	// A symbol without a separator maps to itself.
	if got := state.AssetFromSymbol("ETH"); got != "ETH" {
		t.Errorf("AssetFromSymbol(ETH) = %q", got)
	}
}

func TestPriceBook_UpdateComputesMid(t *testing.T) {
	pb := state.NewPriceBook()

	tick, ok := pb.Update("ETH_USDC_PERP", 100, 200, 1, 1000)
	if !ok {
		t.Fatal("first update rejected")
	}
	if tick.Price != 150 {
		t.Errorf("mid price = %d, want 150", tick.Price)
	}

	got, ok := pb.Get("ETH_USDC_PERP")
	if !ok || got != tick {
		t.Errorf("stored tick = %+v, want %+v", got, tick)
	}
}

func TestPriceBook_StaleSequenceRejected(t *testing.T) {
	pb := state.NewPriceBook()
	pb.Update("ETH_USDC_PERP", 100, 200, 5, 1000)

	if _, ok := pb.Update("ETH_USDC_PERP", 300, 400, 5, 2000); ok {
		t.Error("same sequence accepted")
	}
	if _, ok := pb.Update("ETH_USDC_PERP", 300, 400, 4, 2000); ok {
		t.Error("older sequence accepted")
	}

	got, _ := pb.Get("ETH_USDC_PERP")
	if got.Price != 150 {
		t.Errorf("stale update mutated the tick: price = %d", got.Price)
	}

	if _, ok := pb.Update("ETH_USDC_PERP", 300, 400, 6, 2000); !ok {
		t.Error("newer sequence rejected")
	}
}

func TestPriceBook_ZeroSequenceAlwaysApplies(t *testing.T) {
	pb := state.NewPriceBook()
	pb.Update("ETH_USDC_PERP", 100, 200, 5, 1000)

	// Feeds that carry no sequence still overwrite.
	if _, ok := pb.Update("ETH_USDC_PERP", 300, 400, 0, 2000); !ok {
		t.Error("unsequenced update rejected")
	}
}

func TestPriceBook_GetByAsset(t *testing.T) {
	pb := state.NewPriceBook()
	pb.Update("ETH_USDC_PERP", 100, 200, 1, 1000)

	tick, ok := pb.GetByAsset("ETH")
	if !ok {
		t.Fatal("GetByAsset(ETH) not found")
	}
	if tick.Symbol != "ETH_USDC_PERP" {
		t.Errorf("symbol = %q", tick.Symbol)
	}

	if _, ok := pb.GetByAsset("BTC"); ok {
		t.Error("GetByAsset(BTC) should be absent")
	}
}

func TestPriceBook_AllAndRestore(t *testing.T) {
	pb := state.NewPriceBook()
	pb.Update("ETH_USDC_PERP", 100, 200, 1, 1000)
	pb.Update("BTC_USDC_PERP", 500, 700, 2, 1000)

	restored := state.NewPriceBook()
	restored.Restore(pb.All())

	tick, ok := restored.Get("BTC_USDC_PERP")
	if !ok || tick.Price != 600 {
		t.Errorf("restored tick = %+v", tick)
	}
}
