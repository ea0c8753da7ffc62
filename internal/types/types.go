// Package types defines the shared data model for the indicator engine.
package types

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Bar is a single OHLC price bar. Bars are immutable once constructed.
type Bar struct {
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
}

// Validate checks the OHLC invariant: high >= max(open, close) and
// low <= min(open, close).
func (b Bar) Validate() error {
	if b.Timestamp.IsZero() {
		return fmt.Errorf("%w: zero timestamp", ErrInvalidBar)
	}

	maxOC := decimal.Max(b.Open, b.Close)
	if b.High.LessThan(maxOC) {
		return fmt.Errorf("%w: high %s below max(open, close) %s", ErrInvalidBar, b.High, maxOC)
	}

	minOC := decimal.Min(b.Open, b.Close)
	if b.Low.GreaterThan(minOC) {
		return fmt.Errorf("%w: low %s above min(open, close) %s", ErrInvalidBar, b.Low, minOC)
	}

	return nil
}

// Series is a validated, chronologically ordered bar sequence.
// A Series never changes after construction, so it is safe to share
// across concurrent indicator computations without locking.
type Series struct {
	bars []Bar
}

// NewSeries validates the given bars and returns a Series.
// Bars must have strictly increasing timestamps and satisfy the OHLC
// invariant; the first violation is reported with its index.
func NewSeries(bars []Bar) (*Series, error) {
	for i, b := range bars {
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("bar %d: %w", i, err)
		}
		if i > 0 && !b.Timestamp.After(bars[i-1].Timestamp) {
			return nil, fmt.Errorf("bar %d: %w: %s not after %s",
				i, ErrNonChronological, b.Timestamp.Format(time.RFC3339), bars[i-1].Timestamp.Format(time.RFC3339))
		}
	}

	// Copy so later mutation of the caller's slice cannot leak in.
	owned := make([]Bar, len(bars))
	copy(owned, bars)

	return &Series{bars: owned}, nil
}

// Len returns the number of bars.
func (s *Series) Len() int {
	return len(s.bars)
}

// Bar returns the bar at index i.
func (s *Series) Bar(i int) Bar {
	return s.bars[i]
}

// Bars returns the underlying bars. The returned slice is shared and
// must be treated as read-only.
func (s *Series) Bars() []Bar {
	return s.bars
}

// Closes returns the close price of every bar in order.
func (s *Series) Closes() []decimal.Decimal {
	closes := make([]decimal.Decimal, len(s.bars))
	for i, b := range s.bars {
		closes[i] = b.Close
	}
	return closes
}
