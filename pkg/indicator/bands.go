package indicator

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mihcharts/chartcore/internal/types"
)

// MAKind selects the moving-average used for the band basis.
type MAKind string

const (
	MASimple      MAKind = "sma"
	MAExponential MAKind = "ema"
)

// BandConfig holds volatility band parameters.
type BandConfig struct {
	Period      int
	MAKind      MAKind
	Multipliers []int
}

// DefaultBandConfig returns the conventional 20-period SMA config with
// a single 2-sigma band.
func DefaultBandConfig() BandConfig {
	return BandConfig{
		Period:      20,
		MAKind:      MASimple,
		Multipliers: []int{2},
	}
}

// Validate checks the configuration.
func (c BandConfig) Validate() error {
	if c.Period < 2 {
		return fmt.Errorf("%w: band period %d, need at least 2", types.ErrInvalidParameters, c.Period)
	}
	switch c.MAKind {
	case MASimple, MAExponential:
	default:
		return fmt.Errorf("%w: unknown ma kind %q", types.ErrInvalidParameters, c.MAKind)
	}
	if len(c.Multipliers) == 0 {
		return fmt.Errorf("%w: empty multiplier set", types.ErrInvalidParameters)
	}
	for _, k := range c.Multipliers {
		if k < 1 {
			return fmt.Errorf("%w: band multiplier %d, need at least 1", types.ErrInvalidParameters, k)
		}
	}
	return nil
}

// BandLevel is one deviation envelope around the basis.
type BandLevel struct {
	Multiplier int             `json:"multiplier"`
	Upper      decimal.Decimal `json:"upper"`
	Lower      decimal.Decimal `json:"lower"`
}

// BandBar holds the band values at one bar index. Basis and StdDev are
// absent (invalid) while fewer than Period bars of history exist, and
// Levels is nil at those positions.
type BandBar struct {
	Basis  decimal.NullDecimal `json:"basis"`
	StdDev decimal.NullDecimal `json:"stddev"`
	Levels []BandLevel         `json:"levels,omitempty"`
}

// Bands computes a moving-average basis and deviation envelopes for
// every bar. The result is aligned 1:1 with the input; positions with
// insufficient history carry absent values. The deviation is always
// the sample standard deviation of closes over the simple window,
// regardless of the basis kind.
//
// A series shorter than the period yields an all-absent result, not an
// error.
func Bands(s *types.Series, cfg BandConfig) ([]BandBar, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	n := s.Len()
	out := make([]BandBar, n)
	if n == 0 {
		return out, nil
	}

	ks := dedupeMultipliers(cfg.Multipliers)

	sma := NewSMA(cfg.Period)
	sd := NewStdDev(cfg.Period)
	var ema *EMA
	if cfg.MAKind == MAExponential {
		ema = NewEMA(cfg.Period)
	}

	for i := 0; i < n; i++ {
		c := s.Bar(i).Close

		basis := sma.Update(c)
		dev := sd.Update(c)
		if ema != nil {
			basis = ema.Update(c)
		}

		if !sma.Ready() {
			continue
		}

		out[i].Basis = decimal.NullDecimal{Decimal: basis, Valid: true}
		out[i].StdDev = decimal.NullDecimal{Decimal: dev, Valid: true}
		out[i].Levels = make([]BandLevel, len(ks))
		for j, k := range ks {
			span := dev.Mul(decimal.NewFromInt(int64(k)))
			out[i].Levels[j] = BandLevel{
				Multiplier: k,
				Upper:      basis.Add(span),
				Lower:      basis.Sub(span),
			}
		}
	}

	return out, nil
}

func dedupeMultipliers(ks []int) []int {
	sorted := make([]int, len(ks))
	copy(sorted, ks)
	sort.Ints(sorted)

	out := sorted[:0]
	for i, k := range sorted {
		if i == 0 || k != sorted[i-1] {
			out = append(out, k)
		}
	}
	return out
}
