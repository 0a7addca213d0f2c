package fixedpoint_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"MarginEngine/internal/fixedpoint"
)

func TestToScaled_RoundsToNearest(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"0", 0},
		{"1", fixedpoint.Scale},
		{"123.456", 12_345_600_000},
		{"0.000000005", 1}, // half a unit rounds up
		{"0.000000004", 0},
		{"-2.5", -250_000_000},
	}

	for _, c := range cases {
		d, err := decimal.NewFromString(c.in)
		if err != nil {
			t.Fatalf("parse %q: %v", c.in, err)
		}
		if got := fixedpoint.ToScaled(d); got != c.want {
			t.Errorf("ToScaled(%s) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestFromScaled_RoundTrip(t *testing.T) {
	for _, s := range []string{"0", "1", "4321.55", "0.00000001", "-99.5"} {
		d, _ := decimal.NewFromString(s)
		back := fixedpoint.FromScaled(fixedpoint.ToScaled(d))
		if !back.Equal(d) {
			t.Errorf("round trip of %s gave %s", s, back)
		}
	}
}

func TestParseScaled(t *testing.T) {
	got, err := fixedpoint.ParseScaled("4321.55")
	if err != nil {
		t.Fatalf("ParseScaled: %v", err)
	}
	if got != 432_155_000_000 {
		t.Errorf("got %d, want 432155000000", got)
	}

	if _, err := fixedpoint.ParseScaled("not-a-number"); err == nil {
		t.Error("expected error for malformed input")
	}
}

func TestPositionSize(t *testing.T) {
	margin := 1000 * fixedpoint.Scale
	leverage := 10 * fixedpoint.Scale
	price := 100 * fixedpoint.Scale

	got := fixedpoint.PositionSize(margin, leverage, price)
	want := 100 * fixedpoint.Scale
	if got != want {
		t.Errorf("PositionSize = %d, want %d", got, want)
	}
}

func TestPositionSize_TruncatesTowardZero(t *testing.T) {
	// 100 * 3 / 7 = 42.857142... units
	margin := 100 * fixedpoint.Scale
	leverage := 3 * fixedpoint.Scale
	price := 7 * fixedpoint.Scale

	got := fixedpoint.PositionSize(margin, leverage, price)
	want := int64(4_285_714_285) // 42.85714285, floor at 8 decimals
	if got != want {
		t.Errorf("PositionSize = %d, want %d", got, want)
	}
}

func TestPositionSize_ZeroPrice(t *testing.T) {
	if got := fixedpoint.PositionSize(100, 10, 0); got != 0 {
		t.Errorf("PositionSize with zero price = %d, want 0", got)
	}
}

func TestPnL_LongLoss(t *testing.T) {
	// Entry 100.00, price drops to 91.00 on a LONG of quantity 100 at 10x:
	// (91-100) * 100 * 10 = -9000.
	entry := 100 * fixedpoint.Scale
	current := 91 * fixedpoint.Scale
	qty := 100 * fixedpoint.Scale
	lev := 10 * fixedpoint.Scale

	got := fixedpoint.PnL(1, entry, current, qty, lev)
	want := -9000 * fixedpoint.Scale
	if got != want {
		t.Errorf("PnL = %d, want %d", got, want)
	}
}

func TestPnL_ShortMirrorsLong(t *testing.T) {
	entry := 100 * fixedpoint.Scale
	current := 91 * fixedpoint.Scale
	qty := 100 * fixedpoint.Scale
	lev := 10 * fixedpoint.Scale

	long := fixedpoint.PnL(1, entry, current, qty, lev)
	short := fixedpoint.PnL(-1, entry, current, qty, lev)
	if long != -short {
		t.Errorf("long %d and short %d are not mirrored", long, short)
	}
}

func TestPnL_TruncatesTowardZero(t *testing.T) {
	// diff of 1 raw unit with tiny quantity truncates to zero either way.
	gain := fixedpoint.PnL(1, 0, 1, 1, fixedpoint.Scale)
	loss := fixedpoint.PnL(1, 1, 0, 1, fixedpoint.Scale)
	if gain != 0 || loss != 0 {
		t.Errorf("sub-unit P&L should truncate to 0, got gain=%d loss=%d", gain, loss)
	}
}

func TestMidPrice(t *testing.T) {
	if got := fixedpoint.MidPrice(100, 200); got != 150 {
		t.Errorf("MidPrice(100,200) = %d, want 150", got)
	}
	// Odd sum truncates.
	if got := fixedpoint.MidPrice(100, 201); got != 150 {
		t.Errorf("MidPrice(100,201) = %d, want 150", got)
	}
}
