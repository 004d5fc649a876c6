package engine

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcoelho/weektrader/market"
	"github.com/rcoelho/weektrader/score"
)

// 2024-01-01 is a Monday; 2024-01-05 the matching Friday.
var (
	priorFri = time.Date(2023, 12, 29, 0, 0, 0, 0, time.UTC)
	mon1     = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fri1     = time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	mon2     = time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	fri2     = time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC)
)

// passScorer returns the value of the "p" feature as the signal, so test
// series control their own probabilities.
type passScorer struct{}

func (passScorer) Features() []string { return []string{"p"} }
func (passScorer) Predict(values []float64) (float64, error) {
	if len(values) != 1 || math.IsNaN(values[0]) {
		return 0, errors.New("bad row")
	}
	return values[0], nil
}
func (passScorer) Close() error { return nil }

type failScorer struct{}

func (failScorer) Features() []string                 { return []string{"p"} }
func (failScorer) Predict([]float64) (float64, error) { return 0, errors.New("boom") }
func (failScorer) Close() error                       { return nil }

func bar(date time.Time, open, closePx, signal float64) market.Bar {
	return market.NewBar(date, open, open*1.05, open*0.95, closePx, 1000,
		map[string]float64{"p": signal})
}

func series(symbol string, bars ...market.Bar) *market.Series {
	return market.NewSeries(symbol, []string{"p"}, bars)
}

func provider(symbols ...string) *score.Provider {
	p := score.NewProvider()
	for _, s := range symbols {
		p.Register(s, passScorer{})
	}
	return p
}

func defaultConfig() Config {
	return Config{
		InitialCapital: 10_000,
		Threshold:      0.5,
		Allocation:     0.1,
	}
}

func newEngine(t *testing.T, data map[string]*market.Series, scorers *score.Provider, cfg Config) *Engine {
	t.Helper()
	e, err := New(data, scorers, cfg, zerolog.Nop())
	require.NoError(t, err)
	return e
}

func run(t *testing.T, e *Engine) Result {
	t.Helper()
	res, err := e.Run(context.Background())
	require.NoError(t, err)
	return res
}

func TestSingleBuyPerEntryDay(t *testing.T) {
	t.Parallel()

	// Both assets signal 0.9 on the same Monday; A is first in declared
	// universe order, so only A is funded.
	data := map[string]*market.Series{
		"A": series("A", bar(priorFri, 100, 100, 0.9), bar(mon1, 100, 102, 0.9)),
		"B": series("B", bar(priorFri, 50, 50, 0.9), bar(mon1, 50, 51, 0.9)),
	}
	cfg := defaultConfig()
	cfg.Universe = []string{"A", "B"}

	res := run(t, newEngine(t, data, provider("A", "B"), cfg))

	require.Equal(t, 1, res.Buys)
	assert.Equal(t, 1, res.Skips[SkipCapExhausted])

	trades := res.Final.Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, "A", trades[0].Symbol)
	assert.InDelta(t, 1000.0, trades[0].Notional, 1e-9, "10% of 10k capital")
	assert.InDelta(t, 10.0, trades[0].Quantity, 1e-12, "notional / open price")
	assert.InDelta(t, 9000.0, res.Final.Cash(), 1e-9)

	_, held := res.Final.Position("B")
	assert.False(t, held, "B untouched this cycle")
}

func TestUniverseOrderBreaksTies(t *testing.T) {
	t.Parallel()

	data := map[string]*market.Series{
		"A": series("A", bar(priorFri, 100, 100, 0.9), bar(mon1, 100, 102, 0.9)),
		"B": series("B", bar(priorFri, 50, 50, 0.9), bar(mon1, 50, 51, 0.9)),
	}

	cfg := defaultConfig()
	cfg.Universe = []string{"B", "A"}
	res := run(t, newEngine(t, data, provider("A", "B"), cfg))

	trades := res.Final.Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, "B", trades[0].Symbol, "declared order wins, not lexicographic")
}

func TestExitDayClosesPosition(t *testing.T) {
	t.Parallel()

	data := map[string]*market.Series{
		"A": series("A",
			bar(priorFri, 100, 100, 0.9),
			bar(mon1, 100, 102, 0.1),
			bar(fri1, 108, 110, 0.1),
		),
	}
	res := run(t, newEngine(t, data, provider("A"), defaultConfig()))

	require.Equal(t, 1, res.Buys)
	require.Equal(t, 1, res.Sells)

	trades := res.Final.Trades()
	require.Len(t, trades, 2)
	assert.Equal(t, fri1, trades[1].Date)
	assert.Equal(t, 110.0, trades[1].Price, "exit fills at the close")

	_, open := res.Final.Position("A")
	assert.False(t, open)

	// 9000 cash + 10 units * 110 close
	assert.InDelta(t, 9000.0+10*110, res.Final.Cash(), 1e-9)
}

func TestNaNCloseHoldsPosition(t *testing.T) {
	t.Parallel()

	data := map[string]*market.Series{
		"A": series("A",
			bar(priorFri, 100, 100, 0.9),
			bar(mon1, 100, 102, 0.1),
			bar(fri1, 108, math.NaN(), 0.1), // exit day, no close
			bar(fri2, 112, 115, 0.1),        // next exit day succeeds
		),
	}
	res := run(t, newEngine(t, data, provider("A"), defaultConfig()))

	assert.GreaterOrEqual(t, res.Skips[SkipStalePrice], 1)
	require.Equal(t, 1, res.Sells)

	trades := res.Final.Trades()
	require.Len(t, trades, 2)
	assert.Equal(t, fri2, trades[1].Date, "retried on the next exit day")
	assert.Equal(t, 115.0, trades[1].Price)
}

func TestLookAheadSafety(t *testing.T) {
	t.Parallel()

	// The only bar whose signal clears the threshold is Monday itself.
	// A correct engine scores with the prior Friday's row and stays out.
	data := map[string]*market.Series{
		"A": series("A",
			bar(priorFri, 100, 100, 0.1),
			bar(mon1, 100, 102, 0.99),
		),
	}
	res := run(t, newEngine(t, data, provider("A"), defaultConfig()))

	assert.Equal(t, 0, res.Buys)
	assert.Equal(t, 1, res.Skips[SkipBelowThreshold])
	assert.Empty(t, res.Final.Trades())
}

func TestNoDoublePosition(t *testing.T) {
	t.Parallel()

	// A signals every Monday but has no Friday bars, so the position from
	// the first Monday is still open on the second.
	data := map[string]*market.Series{
		"A": series("A",
			bar(priorFri, 100, 100, 0.9),
			bar(mon1, 100, 102, 0.9),
			bar(mon2, 104, 106, 0.9),
		),
	}
	res := run(t, newEngine(t, data, provider("A"), defaultConfig()))

	assert.Equal(t, 1, res.Buys)
	assert.Equal(t, 1, res.Skips[SkipAlreadyHeld])

	buys := 0
	for _, tr := range res.Final.Trades() {
		if tr.Side == "BUY" && tr.Symbol == "A" {
			buys++
		}
	}
	assert.Equal(t, 1, buys)
}

func TestStaleEntryPriceFallsThrough(t *testing.T) {
	t.Parallel()

	// A qualifies first but Monday's open is NaN; the cap is still intact,
	// so B (next in order) gets funded instead.
	data := map[string]*market.Series{
		"A": series("A", bar(priorFri, 100, 100, 0.9), bar(mon1, math.NaN(), 102, 0.9)),
		"B": series("B", bar(priorFri, 50, 50, 0.9), bar(mon1, 50, 51, 0.9)),
	}
	cfg := defaultConfig()
	cfg.Universe = []string{"A", "B"}

	res := run(t, newEngine(t, data, provider("A", "B"), cfg))

	require.Equal(t, 1, res.Buys)
	assert.Equal(t, 1, res.Skips[SkipStalePrice])

	trades := res.Final.Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, "B", trades[0].Symbol)
}

func TestPerAssetFailureIsIsolated(t *testing.T) {
	t.Parallel()

	data := map[string]*market.Series{
		"A": series("A", bar(priorFri, 100, 100, 0.9), bar(mon1, 100, 102, 0.9)),
		"B": series("B", bar(priorFri, 50, 50, 0.9), bar(mon1, 50, 51, 0.9)),
	}
	scorers := score.NewProvider()
	scorers.Register("A", failScorer{})
	scorers.Register("B", passScorer{})

	cfg := defaultConfig()
	cfg.Universe = []string{"A", "B"}
	res := run(t, newEngine(t, data, scorers, cfg))

	assert.Equal(t, 1, res.Skips[SkipComputation], "A's failure is local")
	require.Equal(t, 1, res.Buys)
	assert.Equal(t, "B", res.Final.Trades()[0].Symbol)
}

func TestMissingModelAndMissingData(t *testing.T) {
	t.Parallel()

	data := map[string]*market.Series{
		"A": series("A", bar(priorFri, 100, 100, 0.9), bar(mon1, 100, 102, 0.9)),
	}
	cfg := defaultConfig()
	cfg.Universe = []string{"GHOST", "NOMODEL", "A"}

	scorers := provider("A") // neither GHOST nor NOMODEL has a model
	data["NOMODEL"] = series("NOMODEL", bar(priorFri, 10, 10, 0.9), bar(mon1, 10, 10, 0.9))

	res := run(t, newEngine(t, data, scorers, cfg))

	assert.Equal(t, 1, res.Skips[SkipMissingData], "no series at all")
	assert.Equal(t, 1, res.Skips[SkipMissingModel])
	assert.Equal(t, 1, res.Buys)
}

func TestNoBarBeforeFirstEntryDay(t *testing.T) {
	t.Parallel()

	// Series starts on the entry day itself: nothing strictly before it,
	// so there is nothing to score with.
	data := map[string]*market.Series{
		"A": series("A", bar(mon1, 100, 102, 0.9)),
	}
	res := run(t, newEngine(t, data, provider("A"), defaultConfig()))

	assert.Equal(t, 0, res.Buys)
	assert.Equal(t, 1, res.Skips[SkipMissingData])
}

func TestDeterministicRuns(t *testing.T) {
	t.Parallel()

	data := map[string]*market.Series{
		"A": series("A", bar(priorFri, 100, 100, 0.9), bar(mon1, 100, 102, 0.9), bar(fri1, 105, 107, 0.2)),
		"B": series("B", bar(priorFri, 50, 50, 0.8), bar(mon1, 50, 51, 0.8), bar(fri1, 52, 53, 0.2)),
	}

	e := newEngine(t, data, provider("A", "B"), defaultConfig())
	first := run(t, e)
	second := run(t, e)

	assert.Equal(t, first.Final.Trades(), second.Final.Trades())
	assert.Equal(t, first.Skips, second.Skips)
}

func TestCustomWeekdays(t *testing.T) {
	t.Parallel()

	tue := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	thu := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)

	data := map[string]*market.Series{
		"A": series("A",
			bar(mon1, 100, 100, 0.9),
			bar(tue, 100, 101, 0.1),
			bar(thu, 103, 104, 0.1),
		),
	}
	cfg := defaultConfig()
	cfg.EntryDay = time.Tuesday
	cfg.ExitDay = time.Thursday

	res := run(t, newEngine(t, data, provider("A"), cfg))
	require.Equal(t, 1, res.Buys)
	require.Equal(t, 1, res.Sells)
	assert.Equal(t, tue, res.Final.Trades()[0].Date)
	assert.Equal(t, thu, res.Final.Trades()[1].Date)
}

func TestSetupFailures(t *testing.T) {
	t.Parallel()

	_, err := New(nil, provider(), defaultConfig(), zerolog.Nop())
	assert.ErrorIs(t, err, ErrNoData)

	data := map[string]*market.Series{"A": series("A")}
	e := newEngine(t, data, provider("A"), defaultConfig())
	_, err = e.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoDates)
}

func TestConfigValidation(t *testing.T) {
	t.Parallel()

	data := map[string]*market.Series{
		"A": series("A", bar(mon1, 100, 100, 0.5)),
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero capital", func(c *Config) { c.InitialCapital = 0 }},
		{"negative capital", func(c *Config) { c.InitialCapital = -1 }},
		{"threshold above one", func(c *Config) { c.Threshold = 1.5 }},
		{"negative threshold", func(c *Config) { c.Threshold = -0.1 }},
		{"zero allocation", func(c *Config) { c.Allocation = 0 }},
		{"allocation above one", func(c *Config) { c.Allocation = 1.1 }},
		{"exit before entry", func(c *Config) { c.EntryDay = time.Friday; c.ExitDay = time.Monday }},
		{"entry equals exit", func(c *Config) { c.EntryDay = time.Wednesday; c.ExitDay = time.Wednesday }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.mutate(&cfg)
			_, err := New(data, provider("A"), cfg, zerolog.Nop())
			assert.ErrorIs(t, err, ErrBadConfig)
		})
	}
}

func TestContextCancellation(t *testing.T) {
	t.Parallel()

	data := map[string]*market.Series{
		"A": series("A", bar(priorFri, 100, 100, 0.9), bar(mon1, 100, 102, 0.9)),
	}
	e := newEngine(t, data, provider("A"), defaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAllocationCapIsDaily(t *testing.T) {
	t.Parallel()

	// Two consecutive cycles: the second Monday's cap is 10% of the cash
	// remaining after the first round trip, not of the initial capital.
	data := map[string]*market.Series{
		"A": series("A",
			bar(priorFri, 100, 100, 0.9),
			bar(mon1, 100, 102, 0.9),
			bar(fri1, 108, 110, 0.9),
			bar(mon2, 110, 112, 0.9),
		),
	}
	res := run(t, newEngine(t, data, provider("A"), defaultConfig()))

	trades := res.Final.Trades()
	require.Len(t, trades, 3)

	cashAfterSell := trades[1].CashAfter
	assert.InDelta(t, 0.1*cashAfterSell, trades[2].Notional, 1e-9)
}
