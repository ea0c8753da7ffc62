package indicator

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mihcharts/chartcore/internal/types"
)

// narrowSeries builds bars with open=close and a half-point range,
// with per-index low overrides for gap scenarios.
func narrowSeries(t *testing.T, closes []float64, lowOverrides map[int]float64) *types.Series {
	t.Helper()
	bars := make([]types.Bar, len(closes))
	for i, c := range closes {
		low := c - 0.5
		if l, ok := lowOverrides[i]; ok {
			low = l
		}
		bars[i] = barAt(i, c, c+0.5, low, c)
	}
	return testSeries(t, bars)
}

func TestSequentialConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultSequentialConfig().Validate())

	bad := []SequentialConfig{
		{FlipLookback: 0, SetupTarget: 9, CountdownTarget: 13, CountdownLookback: 2, QualifierBar: 8},
		{FlipLookback: 4, SetupTarget: 1, CountdownTarget: 13, CountdownLookback: 2, QualifierBar: 8},
		{FlipLookback: 4, SetupTarget: 9, CountdownTarget: 1, CountdownLookback: 2, QualifierBar: 8},
		{FlipLookback: 4, SetupTarget: 9, CountdownTarget: 13, CountdownLookback: 0, QualifierBar: 8},
		{FlipLookback: 4, SetupTarget: 9, CountdownTarget: 13, CountdownLookback: 2, QualifierBar: 13},
	}
	for i, cfg := range bad {
		_, err := Sequential(closesSeries(t, []float64{1, 2, 3}), cfg)
		assert.True(t, errors.Is(err, types.ErrInvalidParameters), "case %d: %v", i, err)
	}
}

func TestSequential_NoFlipWithoutLookback(t *testing.T) {
	// Flips require a full lookback window behind the previous bar
	// too, so a series of length <= lookback+1 never flips.
	for _, closes := range [][]float64{
		{100},
		{100, 101, 102},
		{100, 101, 102, 103, 104},
	} {
		out, err := Sequential(closesSeries(t, closes), DefaultSequentialConfig())
		require.NoError(t, err)
		for i := range out {
			assert.Equal(t, FlipNone, out[i].Flip, "len %d bar %d", len(closes), i)
			assert.Equal(t, 0, out[i].SetupCount, "len %d bar %d", len(closes), i)
		}
	}
}

func TestSequential_FlatSeries(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100
	}

	out, err := Sequential(closesSeries(t, closes), DefaultSequentialConfig())
	require.NoError(t, err)

	for i := range out {
		assert.Equal(t, FlipNone, out[i].Flip, "bar %d", i)
		assert.Equal(t, DirectionNone, out[i].SetupDirection, "bar %d", i)
		assert.Equal(t, 0, out[i].Countdown.Count, "bar %d", i)
	}
}

// Downtrend fixture: rising closes through index 5, then a bearish
// flip at index 6 and closes falling by one point per bar. The buy
// setup completes at index 14 and a buy countdown runs 1..13 over
// indices 15..27.
func downtrendSeries(t *testing.T) *types.Series {
	t.Helper()
	closes := []float64{100, 101, 102, 103, 104, 105, 101}
	for c := 100.0; c >= 80; c-- {
		closes = append(closes, c)
	}
	// closes: idx 0..27, falling from 101 at idx 6 down to 80 at idx 27
	bars := make([]types.Bar, len(closes))
	for i, c := range closes {
		bars[i] = barAt(i, c, c+1, c-1, c)
	}
	return testSeries(t, bars)
}

func TestSequential_BuySetupAndCountdown(t *testing.T) {
	out, err := Sequential(downtrendSeries(t), DefaultSequentialConfig())
	require.NoError(t, err)
	require.Len(t, out, 28)

	// Single bearish flip at index 6.
	for i := range out {
		want := FlipNone
		if i == 6 {
			want = FlipBearish
		}
		assert.Equal(t, want, out[i].Flip, "bar %d", i)
	}

	// Setup counts 1..9 over indices 6..14, monotone, no reset.
	for i := 6; i <= 14; i++ {
		assert.Equal(t, DirectionBuy, out[i].SetupDirection, "bar %d", i)
		assert.Equal(t, i-5, out[i].SetupCount, "bar %d", i)
	}

	// The condition keeps holding, so the reported count saturates.
	for i := 15; i <= 20; i++ {
		assert.Equal(t, 9, out[i].SetupCount, "bar %d", i)
	}

	// Completion bar: perfected, TDST resistance recorded once.
	assert.True(t, out[14].SetupPerfected)
	assert.False(t, out[13].SetupPerfected)
	require.True(t, out[14].TDSTResistance.Valid)
	assert.True(t, out[14].TDSTResistance.Decimal.Equal(decimal.NewFromInt(105)),
		"resistance %s", out[14].TDSTResistance.Decimal)
	assert.False(t, out[13].TDSTResistance.Valid)

	// Resistance persists unchanged through the decline.
	assert.True(t, out[27].TDSTResistance.Decimal.Equal(decimal.NewFromInt(105)))

	// The completion bar satisfies the countdown comparison but must
	// not count; qualification starts strictly after bar nine.
	assert.Equal(t, 0, out[14].Countdown.Count)

	for i := 15; i <= 27; i++ {
		assert.Equal(t, i-14, out[i].Countdown.Count, "bar %d", i)
		assert.False(t, out[i].Countdown.Deferred, "bar %d", i)
	}

	// Final thirteen passes the qualifier (close 80 <= bar-8 close 85)
	// and retires the countdown.
	assert.Equal(t, 13, out[27].Countdown.Count)
	assert.Equal(t, DirectionNone, out[27].CountdownDirection)
	assert.Equal(t, DirectionBuy, out[26].CountdownDirection)

	for i := range out {
		assert.False(t, out[i].CountdownCancelled, "bar %d", i)
	}
}

func TestSequential_SellSetupAndCountdown(t *testing.T) {
	// Mirror fixture: falling closes through index 5, bullish flip at
	// index 6, closes rising by one point per bar afterwards.
	closes := []float64{105, 104, 103, 102, 101, 100}
	for c := 104.0; c <= 125; c++ {
		closes = append(closes, c)
	}
	bars := make([]types.Bar, len(closes))
	for i, c := range closes {
		bars[i] = barAt(i, c, c+1, c-1, c)
	}
	s := testSeries(t, bars)

	out, err := Sequential(s, DefaultSequentialConfig())
	require.NoError(t, err)
	require.Len(t, out, 28)

	assert.Equal(t, FlipBullish, out[6].Flip)

	for i := 6; i <= 14; i++ {
		assert.Equal(t, DirectionSell, out[i].SetupDirection, "bar %d", i)
		assert.Equal(t, i-5, out[i].SetupCount, "bar %d", i)
	}

	assert.True(t, out[14].SetupPerfected)
	require.True(t, out[14].TDSTSupport.Valid)
	assert.True(t, out[14].TDSTSupport.Decimal.Equal(decimal.NewFromInt(100)),
		"support %s", out[14].TDSTSupport.Decimal)

	for i := 15; i <= 27; i++ {
		assert.Equal(t, i-14, out[i].Countdown.Count, "bar %d", i)
	}
	assert.Equal(t, 13, out[27].Countdown.Count)
	assert.False(t, out[27].Countdown.Deferred)
}

func TestSequential_SetupResetOnFirstViolation(t *testing.T) {
	cfg := SequentialConfig{FlipLookback: 2, SetupTarget: 9, CountdownTarget: 13, CountdownLookback: 2, QualifierBar: 8}

	out, err := Sequential(closesSeries(t, []float64{10, 11, 12, 9, 8, 7, 9}), cfg)
	require.NoError(t, err)

	assert.Equal(t, FlipBearish, out[3].Flip)
	assert.Equal(t, 1, out[3].SetupCount)
	assert.Equal(t, 2, out[4].SetupCount)
	assert.Equal(t, 3, out[5].SetupCount)

	// First violating bar resets to zero immediately.
	assert.Equal(t, 0, out[6].SetupCount)
	assert.Equal(t, DirectionNone, out[6].SetupDirection)
}

func TestSequential_DeferredThirteen(t *testing.T) {
	cfg := SequentialConfig{FlipLookback: 2, SetupTarget: 4, CountdownTarget: 3, CountdownLookback: 2, QualifierBar: 2}

	// Buy setup completes at index 6; countdown bars at 7 and 8 (the
	// qualifier bar closes at 15), a rally through index 10, then a
	// qualifying bar at 11 whose close 16 fails the cross-check
	// against 15 and defers, resolved by the close 14 at index 12.
	s := narrowSeries(t, []float64{20, 21, 22, 19, 18, 17, 16, 16, 15, 18, 19, 16, 14}, nil)

	out, err := Sequential(s, cfg)
	require.NoError(t, err)

	assert.Equal(t, 4, out[6].SetupCount)
	assert.Equal(t, 1, out[7].Countdown.Count)
	assert.Equal(t, 2, out[8].Countdown.Count)

	// Non-qualifying rally bars record no count.
	assert.Equal(t, 0, out[9].Countdown.Count)
	assert.Equal(t, 0, out[10].Countdown.Count)

	// Candidate final bar fails the qualifier: deferred, never a
	// silent final count.
	require.True(t, out[11].Countdown.Deferred)
	assert.Equal(t, 3, out[11].Countdown.Count)
	assert.Equal(t, "3+", out[11].Countdown.String())
	assert.Equal(t, DirectionBuy, out[11].CountdownDirection)

	// Next qualifying bar passes the re-test and finalizes.
	assert.Equal(t, CountdownCount{Count: 3}, out[12].Countdown)
	assert.Equal(t, DirectionNone, out[12].CountdownDirection)
}

func TestSequential_CancelledByOppositeSetup(t *testing.T) {
	cfg := SequentialConfig{FlipLookback: 2, SetupTarget: 3, CountdownTarget: 13, CountdownLookback: 2, QualifierBar: 8}

	// Buy setup completes at index 5, one countdown bar at 6, then a
	// rally completes a sell setup at index 9.
	s := narrowSeries(t, []float64{20, 21, 22, 19, 18, 17, 17, 21, 22, 23, 19}, nil)

	out, err := Sequential(s, cfg)
	require.NoError(t, err)

	assert.Equal(t, 3, out[5].SetupCount)
	assert.Equal(t, DirectionBuy, out[5].SetupDirection)
	assert.Equal(t, 1, out[6].Countdown.Count)

	// Opposite completion at index 9 cancels the buy countdown and
	// arms a sell countdown in its place.
	assert.Equal(t, 3, out[9].SetupCount)
	assert.Equal(t, DirectionSell, out[9].SetupDirection)
	assert.True(t, out[9].CountdownCancelled)
	assert.Equal(t, DirectionSell, out[9].CountdownDirection)

	// A bar that would have qualified for the dead buy countdown
	// records nothing.
	assert.Equal(t, 0, out[10].Countdown.Count)
}

func TestSequential_CancelledByTDSTViolation(t *testing.T) {
	cfg := SequentialConfig{FlipLookback: 2, SetupTarget: 4, CountdownTarget: 13, CountdownLookback: 2, QualifierBar: 8}

	// Buy setup completes at index 6 with resistance 22; the gap-up
	// bars at 9 and 10 leave the whole bar 10 (true low 29) above the
	// resistance, killing the countdown.
	s := narrowSeries(t,
		[]float64{20, 21, 22, 19, 18, 17, 16, 16, 21, 30, 31, 25},
		map[int]float64{9: 28, 10: 29},
	)

	out, err := Sequential(s, cfg)
	require.NoError(t, err)

	require.True(t, out[6].TDSTResistance.Valid)
	assert.True(t, out[6].TDSTResistance.Decimal.Equal(decimal.NewFromInt(22)))
	assert.Equal(t, 1, out[7].Countdown.Count)

	assert.True(t, out[10].CountdownCancelled)
	assert.Equal(t, DirectionNone, out[10].CountdownDirection)

	// Still dead afterwards: index 11 closes back below the old lows
	// but no fresh setup has completed.
	assert.Equal(t, 0, out[11].Countdown.Count)
	assert.Equal(t, DirectionNone, out[11].CountdownDirection)
}

func TestSequential_TrueRange(t *testing.T) {
	s := testSeries(t, []types.Bar{
		barAt(0, 10, 12, 8, 11),
		barAt(1, 11, 13, 9, 12),  // prev close 11 inside range
		barAt(2, 20, 21, 19, 20), // gap up: true low pulled down to 12
	})

	out, err := Sequential(s, DefaultSequentialConfig())
	require.NoError(t, err)

	assert.True(t, out[0].TrueHigh.Equal(decimal.NewFromInt(12)))
	assert.True(t, out[0].TrueLow.Equal(decimal.NewFromInt(8)))
	assert.True(t, out[2].TrueLow.Equal(decimal.NewFromInt(12)))
	assert.True(t, out[2].TrueHigh.Equal(decimal.NewFromInt(21)))
}

func TestSequential_Deterministic(t *testing.T) {
	s := downtrendSeries(t)
	cfg := DefaultSequentialConfig()

	a, err := Sequential(s, cfg)
	require.NoError(t, err)
	b, err := Sequential(s, cfg)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}
