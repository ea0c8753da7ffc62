package indicator

import (
	"github.com/shopspring/decimal"

	"github.com/mihcharts/chartcore/internal/types"
)

var (
	two  = decimal.NewFromInt(2)
	four = decimal.NewFromInt(4)
)

// HeikenAshi computes the smoothed candle transform of a series. The
// result has exactly one bar per input bar and carries the input
// timestamps, so it can itself be wrapped in a Series and fed to the
// other indicators.
//
//	ha_close = (open + high + low + close) / 4
//	ha_open  = (open[0] + close[0]) / 2 on the first bar, then
//	           (previous ha_open + previous ha_close) / 2
//	ha_high  = max(high, ha_open, ha_close)
//	ha_low   = min(low, ha_open, ha_close)
//
// The ha_open recurrence makes this a strict left-to-right scan; bars
// cannot be transformed independently.
func HeikenAshi(s *types.Series) []types.Bar {
	n := s.Len()
	if n == 0 {
		return nil
	}

	out := make([]types.Bar, n)

	var prevOpen, prevClose decimal.Decimal
	for i := 0; i < n; i++ {
		b := s.Bar(i)

		haClose := b.Open.Add(b.High).Add(b.Low).Add(b.Close).Div(four)

		var haOpen decimal.Decimal
		if i == 0 {
			haOpen = b.Open.Add(b.Close).Div(two)
		} else {
			haOpen = prevOpen.Add(prevClose).Div(two)
		}

		out[i] = types.Bar{
			Timestamp: b.Timestamp,
			Open:      haOpen,
			High:      decimal.Max(b.High, haOpen, haClose),
			Low:       decimal.Min(b.Low, haOpen, haClose),
			Close:     haClose,
		}

		prevOpen, prevClose = haOpen, haClose
	}

	return out
}
