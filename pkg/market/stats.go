package market

import (
	talib "github.com/markcheno/go-talib"

	"github.com/uhyunpark/agora/pkg/sim"
)

// TradePrices extracts the price series from a trade history.
func TradePrices(trades []sim.Trade) []int64 {
	out := make([]int64, len(trades))
	for i, t := range trades {
		out[i] = t.Price
	}
	return out
}

// SMA returns the simple moving average of an integer series. Entries before
// the window fills are zero, matching talib's convention. Returns nil when
// the series is shorter than the period.
func SMA(series []int64, period int) []float64 {
	if period <= 0 || len(series) < period {
		return nil
	}
	in := make([]float64, len(series))
	for i, v := range series {
		in[i] = float64(v)
	}
	return talib.Sma(in, period)
}

// Mid returns the midpoint series of paired bid/ask histories; shorter input
// wins when lengths differ.
func Mid(bids, asks []int64) []int64 {
	n := len(bids)
	if len(asks) < n {
		n = len(asks)
	}
	out := make([]int64, n)
	for i := 0; i < n; i++ {
		out[i] = (bids[i] + asks[i]) / 2
	}
	return out
}
