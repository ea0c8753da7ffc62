// Package indicator provides the chart overlay computations: moving
// averages, volatility bands, the Heiken-Ashi transform and the TD
// Sequential state machine.
package indicator

import (
	"github.com/shopspring/decimal"
)

// SMA is a rolling-window simple moving average.
type SMA struct {
	period int
	window []decimal.Decimal
	sum    decimal.Decimal
}

// NewSMA creates an SMA calculator with the given period.
func NewSMA(period int) *SMA {
	if period < 1 {
		period = 1
	}
	return &SMA{
		period: period,
		window: make([]decimal.Decimal, 0, period),
	}
}

// Update adds a new value and returns the current SMA.
// Returns zero until a full window of values has been seen.
func (s *SMA) Update(value decimal.Decimal) decimal.Decimal {
	s.window = append(s.window, value)
	s.sum = s.sum.Add(value)

	if len(s.window) > s.period {
		s.sum = s.sum.Sub(s.window[0])
		s.window = s.window[1:]
	}

	if len(s.window) < s.period {
		return decimal.Zero
	}

	return s.sum.Div(decimal.NewFromInt(int64(s.period)))
}

// Current returns the current SMA without adding new data.
func (s *SMA) Current() decimal.Decimal {
	if len(s.window) < s.period {
		return decimal.Zero
	}
	return s.sum.Div(decimal.NewFromInt(int64(s.period)))
}

// Ready reports whether a full window has been seen.
func (s *SMA) Ready() bool {
	return len(s.window) >= s.period
}

// Reset clears all data.
func (s *SMA) Reset() {
	s.window = s.window[:0]
	s.sum = decimal.Zero
}
