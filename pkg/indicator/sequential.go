package indicator

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/mihcharts/chartcore/internal/types"
)

// Direction identifies the side a setup or countdown tracks. A buy
// setup forms while closes fall below the close a lookback span back
// (bearish exhaustion); a sell setup forms while closes rise.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionBuy
	DirectionSell
)

func (d Direction) String() string {
	switch d {
	case DirectionBuy:
		return "buy"
	case DirectionSell:
		return "sell"
	default:
		return "none"
	}
}

// Flip marks a change in price momentum against the close a fixed
// number of bars back. A bearish flip starts a buy setup and a bullish
// flip starts a sell setup.
type Flip int

const (
	FlipNone Flip = iota
	FlipBearish
	FlipBullish
)

func (f Flip) String() string {
	switch f {
	case FlipBearish:
		return "bearish"
	case FlipBullish:
		return "bullish"
	default:
		return "none"
	}
}

// CountdownCount is the countdown progress recorded at one bar: zero
// when the bar did not qualify, 1..target on qualifying bars, or the
// deferred state in which the would-be final bar failed the
// 13-vs-8 cross-check. Deferred is a distinct tagged state, never a
// plain final count.
type CountdownCount struct {
	Count    int  `json:"count"`
	Deferred bool `json:"deferred,omitempty"`
}

func (c CountdownCount) String() string {
	if c.Deferred {
		return strconv.Itoa(c.Count) + "+"
	}
	if c.Count == 0 {
		return ""
	}
	return strconv.Itoa(c.Count)
}

// SequentialConfig holds the TD Sequential parameters. The published
// method fixes these at 4/9/13/2/8; they are kept configurable for
// experimentation, not exposed as user-facing tunables.
type SequentialConfig struct {
	FlipLookback      int // close-vs-close span for flips and setup counting
	SetupTarget       int // qualifying bars that complete a setup
	CountdownTarget   int // qualifying bars that complete a countdown
	CountdownLookback int // high/low span for countdown qualification
	QualifierBar      int // countdown bar whose close gates the final count
}

// DefaultSequentialConfig returns the published parameter set.
func DefaultSequentialConfig() SequentialConfig {
	return SequentialConfig{
		FlipLookback:      4,
		SetupTarget:       9,
		CountdownTarget:   13,
		CountdownLookback: 2,
		QualifierBar:      8,
	}
}

// Validate checks the configuration.
func (c SequentialConfig) Validate() error {
	if c.FlipLookback < 1 {
		return fmt.Errorf("%w: flip lookback %d, need at least 1", types.ErrInvalidParameters, c.FlipLookback)
	}
	if c.SetupTarget < 2 {
		return fmt.Errorf("%w: setup target %d, need at least 2", types.ErrInvalidParameters, c.SetupTarget)
	}
	if c.CountdownTarget < 2 {
		return fmt.Errorf("%w: countdown target %d, need at least 2", types.ErrInvalidParameters, c.CountdownTarget)
	}
	if c.CountdownLookback < 1 {
		return fmt.Errorf("%w: countdown lookback %d, need at least 1", types.ErrInvalidParameters, c.CountdownLookback)
	}
	if c.QualifierBar < 1 || c.QualifierBar >= c.CountdownTarget {
		return fmt.Errorf("%w: qualifier bar %d, need 1..%d", types.ErrInvalidParameters, c.QualifierBar, c.CountdownTarget-1)
	}
	return nil
}

// SequentialBar is the annotated TD Sequential state at one bar.
type SequentialBar struct {
	Flip Flip `json:"flip,omitempty"`

	SetupDirection Direction `json:"setup_direction,omitempty"`
	SetupCount     int       `json:"setup_count,omitempty"` // 1..target while active, saturates at the target
	SetupPerfected bool      `json:"setup_perfected,omitempty"`

	// TDST levels persist from the most recent completed setup of each
	// direction until superseded.
	TDSTResistance decimal.NullDecimal `json:"tdst_resistance"`
	TDSTSupport    decimal.NullDecimal `json:"tdst_support"`

	CountdownDirection Direction      `json:"countdown_direction,omitempty"`
	Countdown          CountdownCount `json:"countdown"`
	CountdownCancelled bool           `json:"countdown_cancelled,omitempty"`

	TrueHigh decimal.Decimal `json:"true_high"` // max(high, previous close)
	TrueLow  decimal.Decimal `json:"true_low"`  // min(low, previous close)
}

// Sequential runs the TD Sequential state machine over a series and
// returns one annotated state per bar.
//
// The computation is a single forward pass with three interacting
// phases per bar:
//
//  1. Price flip and setup. A bearish flip (close below the close
//     FlipLookback bars back, previous close at or above its own
//     reference) starts a buy setup with the flip bar as bar 1; each
//     following bar that keeps closing below its reference increments
//     the count, and the first bar that does not resets it to zero.
//     Bullish flips and sell setups are symmetric on rising closes.
//  2. Setup completion. The bar reaching the target count records the
//     TDST level (extreme true high/low spanned by the setup), checks
//     perfection on the setup's last four bars, and arms the matching
//     countdown. While later bars keep satisfying the setup condition
//     the reported count stays saturated and the TDST level extends
//     with the new extremes.
//  3. Countdown. Strictly after the completion bar, every bar whose
//     close crosses the low/high CountdownLookback bars back counts,
//     consecutively or not. The final count is only granted if the
//     bar's close also crosses the recorded close of the countdown's
//     QualifierBar-th bar; otherwise the countdown holds in the
//     deferred state and re-tests that cross-check on each later
//     qualifying bar. A completed opposite setup, or a whole bar
//     trading beyond the TDST level against the countdown's thesis,
//     cancels the countdown; a cancelled countdown stays dead until a
//     brand-new setup completes.
//
// A series too short for any flip yields all-zero states, not an
// error.
func Sequential(s *types.Series, cfg SequentialConfig) ([]SequentialBar, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	n := s.Len()
	out := make([]SequentialBar, n)
	if n == 0 {
		return out, nil
	}

	bars := s.Bars()

	// True range extremes feed the TDST levels and cancellation rules.
	trueHigh := make([]decimal.Decimal, n)
	trueLow := make([]decimal.Decimal, n)
	trueHigh[0], trueLow[0] = bars[0].High, bars[0].Low
	for i := 1; i < n; i++ {
		trueHigh[i] = decimal.Max(bars[i].High, bars[i-1].Close)
		trueLow[i] = decimal.Min(bars[i].Low, bars[i-1].Close)
	}

	lb := cfg.FlipLookback

	var (
		setupDir   Direction
		setupCount int

		cdDir      Direction
		cdCount    int
		cdDeferred bool
		cdQualRef  decimal.Decimal // close of the countdown's qualifier bar

		res, sup decimal.NullDecimal
	)

	for i := 0; i < n; i++ {
		out[i].TrueHigh = trueHigh[i]
		out[i].TrueLow = trueLow[i]

		// Phase 1: flips need a full lookback window behind both the
		// current and the previous bar.
		if i >= lb+1 {
			c, ref := bars[i].Close, bars[i-lb].Close
			p, pref := bars[i-1].Close, bars[i-1-lb].Close

			switch {
			case c.LessThan(ref) && p.GreaterThanOrEqual(pref):
				out[i].Flip = FlipBearish
				setupDir, setupCount = DirectionBuy, 1
			case c.GreaterThan(ref) && p.LessThanOrEqual(pref):
				out[i].Flip = FlipBullish
				setupDir, setupCount = DirectionSell, 1
			case setupDir == DirectionBuy:
				if c.LessThan(ref) {
					setupCount++
				} else {
					setupDir, setupCount = DirectionNone, 0
				}
			case setupDir == DirectionSell:
				if c.GreaterThan(ref) {
					setupCount++
				} else {
					setupDir, setupCount = DirectionNone, 0
				}
			}
		}

		// Phase 2: record setup progress and handle completion.
		completedNow := false
		if setupCount > 0 {
			out[i].SetupDirection = setupDir
			out[i].SetupCount = min(setupCount, cfg.SetupTarget)

			if setupCount == cfg.SetupTarget {
				completedNow = true

				// A completed opposite setup invalidates a running countdown.
				if cdDir != DirectionNone && cdDir != setupDir {
					out[i].CountdownCancelled = true
				}

				first := i - cfg.SetupTarget + 1
				if setupDir == DirectionBuy {
					res = decimal.NullDecimal{Decimal: maxOf(trueHigh[first : i+1]), Valid: true}
					out[i].SetupPerfected = buyPerfected(bars, i)
				} else {
					sup = decimal.NullDecimal{Decimal: minOf(trueLow[first : i+1]), Valid: true}
					out[i].SetupPerfected = sellPerfected(bars, i)
				}

				// Completion arms (or recycles) the matching countdown.
				cdDir, cdCount, cdDeferred = setupDir, 0, false
			} else if setupCount > cfg.SetupTarget {
				// Setup running past completion: the TDST level keeps
				// extending with the new extremes.
				if setupDir == DirectionBuy && res.Valid {
					res.Decimal = decimal.Max(res.Decimal, trueHigh[i])
				} else if setupDir == DirectionSell && sup.Valid {
					sup.Decimal = decimal.Min(sup.Decimal, trueLow[i])
				}
			}
		}

		// Phase 3: countdown. The completion bar itself never counts;
		// qualification starts strictly after the setup's final bar.
		if cdDir != DirectionNone && !completedNow {
			// TDST violation: a buy countdown dies once a whole bar
			// trades above the resistance, a sell countdown once a
			// whole bar trades below the support.
			if cdDir == DirectionBuy && res.Valid && trueLow[i].GreaterThan(res.Decimal) {
				out[i].CountdownCancelled = true
				cdDir, cdCount, cdDeferred = DirectionNone, 0, false
			} else if cdDir == DirectionSell && sup.Valid && trueHigh[i].LessThan(sup.Decimal) {
				out[i].CountdownCancelled = true
				cdDir, cdCount, cdDeferred = DirectionNone, 0, false
			}
		}

		if cdDir != DirectionNone && !completedNow && i >= cfg.CountdownLookback {
			c := bars[i].Close
			ref := bars[i-cfg.CountdownLookback]

			var qualifies bool
			if cdDir == DirectionBuy {
				qualifies = c.LessThanOrEqual(ref.Low)
			} else {
				qualifies = c.GreaterThanOrEqual(ref.High)
			}

			if qualifies {
				if cdDeferred {
					// Deferred final count: re-test the qualifier
					// against the recorded reference close until it
					// passes.
					if qualifierMet(cdDir, c, cdQualRef) {
						out[i].Countdown = CountdownCount{Count: cfg.CountdownTarget}
						cdDir, cdCount, cdDeferred = DirectionNone, 0, false
					} else {
						out[i].Countdown = CountdownCount{Count: cfg.CountdownTarget, Deferred: true}
					}
				} else {
					cdCount++
					if cdCount == cfg.QualifierBar {
						cdQualRef = c
					}

					switch {
					case cdCount < cfg.CountdownTarget:
						out[i].Countdown = CountdownCount{Count: cdCount}
					case qualifierMet(cdDir, c, cdQualRef):
						out[i].Countdown = CountdownCount{Count: cfg.CountdownTarget}
						cdDir, cdCount, cdDeferred = DirectionNone, 0, false
					default:
						out[i].Countdown = CountdownCount{Count: cfg.CountdownTarget, Deferred: true}
						cdDeferred = true
					}
				}
			}
		}

		out[i].CountdownDirection = cdDir
		out[i].TDSTResistance = res
		out[i].TDSTSupport = sup
	}

	return out, nil
}

// qualifierMet is the 13-vs-8 cross-check: a buy countdown finalizes
// only if the candidate bar closes at or below the qualifier bar's
// close, a sell countdown at or above.
func qualifierMet(dir Direction, close, ref decimal.Decimal) bool {
	if dir == DirectionBuy {
		return close.LessThanOrEqual(ref)
	}
	return close.GreaterThanOrEqual(ref)
}

// buyPerfected checks the completed buy setup ending at index i: the
// low of the 8th or 9th setup bar must not exceed the lows of the 6th
// and 7th. Perfection is evaluated once, at completion, using only
// these four bars.
func buyPerfected(bars []types.Bar, i int) bool {
	if i < 3 {
		return false
	}
	ref := decimal.Min(bars[i-2].Low, bars[i-3].Low)
	return bars[i-1].Low.LessThanOrEqual(ref) || bars[i].Low.LessThanOrEqual(ref)
}

// sellPerfected is the symmetric check on highs.
func sellPerfected(bars []types.Bar, i int) bool {
	if i < 3 {
		return false
	}
	ref := decimal.Max(bars[i-2].High, bars[i-3].High)
	return bars[i-1].High.GreaterThanOrEqual(ref) || bars[i].High.GreaterThanOrEqual(ref)
}

func maxOf(vs []decimal.Decimal) decimal.Decimal {
	m := vs[0]
	for _, v := range vs[1:] {
		if v.GreaterThan(m) {
			m = v
		}
	}
	return m
}

func minOf(vs []decimal.Decimal) decimal.Decimal {
	m := vs[0]
	for _, v := range vs[1:] {
		if v.LessThan(m) {
			m = v
		}
	}
	return m
}
