package indicator

import (
	"github.com/shopspring/decimal"
)

// EMA is an exponential moving average with smoothing factor
// 2/(period+1), seeded with the simple mean of its first period values.
type EMA struct {
	period int
	alpha  decimal.Decimal
	seed   *SMA
	value  decimal.Decimal
	count  int
}

// NewEMA creates an EMA calculator with the given period.
func NewEMA(period int) *EMA {
	if period < 1 {
		period = 1
	}
	return &EMA{
		period: period,
		alpha:  decimal.NewFromInt(2).Div(decimal.NewFromInt(int64(period) + 1)),
		seed:   NewSMA(period),
	}
}

// Update adds a new value and returns the current EMA.
// Returns zero until the seed window is complete; the first reported
// value equals the simple mean of the first period values.
func (e *EMA) Update(value decimal.Decimal) decimal.Decimal {
	e.count++

	if e.count <= e.period {
		e.value = e.seed.Update(value)
		return e.value
	}

	one := decimal.NewFromInt(1)
	e.value = value.Mul(e.alpha).Add(e.value.Mul(one.Sub(e.alpha)))
	return e.value
}

// Ready reports whether the seed window has been filled.
func (e *EMA) Ready() bool {
	return e.count >= e.period
}

// Reset clears all data.
func (e *EMA) Reset() {
	e.seed.Reset()
	e.value = decimal.Zero
	e.count = 0
}
