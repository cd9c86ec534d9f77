package market

import (
	"testing"

	"github.com/uhyunpark/agora/pkg/sim"
)

func TestTradePrices(t *testing.T) {
	trades := []sim.Trade{
		{Price: 10}, {Price: 12}, {Price: 11},
	}
	got := TradePrices(trades)
	want := []int64{10, 12, 11}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("prices = %v, want %v", got, want)
		}
	}
}

func TestSMA(t *testing.T) {
	series := []int64{10, 20, 30, 40}

	got := SMA(series, 2)
	if len(got) != 4 {
		t.Fatalf("sma length = %d, want 4", len(got))
	}
	// First period-1 entries are zero, then the rolling mean.
	want := []float64{0, 15, 25, 35}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sma = %v, want %v", got, want)
		}
	}

	if SMA(series, 5) != nil {
		t.Fatal("series shorter than period must return nil")
	}
	if SMA(series, 0) != nil {
		t.Fatal("non-positive period must return nil")
	}
}

func TestMid(t *testing.T) {
	bids := []int64{40, 42, 44}
	asks := []int64{60, 58}

	got := Mid(bids, asks)
	if len(got) != 2 || got[0] != 50 || got[1] != 50 {
		t.Fatalf("mid = %v, want [50 50]", got)
	}
}
