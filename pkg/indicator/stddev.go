package indicator

import (
	"github.com/shopspring/decimal"
)

// StdDev is a rolling-window sample standard deviation (N-1
// denominator) around the window's simple mean.
type StdDev struct {
	period int
	window []decimal.Decimal
	sma    *SMA
}

// NewStdDev creates a StdDev calculator with the given period.
func NewStdDev(period int) *StdDev {
	if period < 2 {
		period = 2
	}
	return &StdDev{
		period: period,
		window: make([]decimal.Decimal, 0, period),
		sma:    NewSMA(period),
	}
}

// Update adds a new value and returns the current standard deviation.
// Returns zero until a full window of values has been seen.
func (s *StdDev) Update(value decimal.Decimal) decimal.Decimal {
	s.window = append(s.window, value)
	mean := s.sma.Update(value)

	if len(s.window) > s.period {
		s.window = s.window[1:]
	}

	if len(s.window) < s.period {
		return decimal.Zero
	}

	var sumSquares decimal.Decimal
	for _, v := range s.window {
		diff := v.Sub(mean)
		sumSquares = sumSquares.Add(diff.Mul(diff))
	}

	variance := sumSquares.Div(decimal.NewFromInt(int64(len(s.window) - 1)))
	return sqrt(variance)
}

// Ready reports whether a full window has been seen.
func (s *StdDev) Ready() bool {
	return len(s.window) >= s.period
}

// Reset clears all data.
func (s *StdDev) Reset() {
	s.window = s.window[:0]
	s.sma.Reset()
}

// sqrt calculates the square root of a decimal using Newton's method.
func sqrt(d decimal.Decimal) decimal.Decimal {
	if d.IsZero() || d.IsNegative() {
		return decimal.Zero
	}

	guess := d.Div(decimal.NewFromInt(2))
	if guess.IsZero() {
		guess = decimal.NewFromInt(1)
	}

	two := decimal.NewFromInt(2)
	epsilon := decimal.RequireFromString("0.00000001")

	for i := 0; i < 100; i++ {
		newGuess := guess.Add(d.Div(guess)).Div(two)
		if newGuess.Sub(guess).Abs().LessThan(epsilon) {
			return newGuess.Round(8)
		}
		guess = newGuess
	}

	return guess.Round(8)
}
