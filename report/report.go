// Package report turns a finished simulation into numbers and artifacts:
// the final valuation summary, round-trip trade statistics, a rendered
// text report, and the persisted trade log.
package report

import (
	"math"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/rs/zerolog"

	"github.com/rcoelho/weektrader/engine"
	"github.com/rcoelho/weektrader/market"
	"github.com/rcoelho/weektrader/portfolio"
)

// Summary is the final valuation of a run. Valuate is pure: calling it
// twice on the same result yields identical summaries.
type Summary struct {
	RunID string

	InitialCapital float64
	FinalCash      float64
	HeldValue      float64
	FinalValue     float64 // FinalCash + HeldValue, exactly
	TotalProfit    float64
	ReturnPct      float64

	Buys      int
	Sells     int
	OpenCount int

	// Round-trip statistics over matched BUY/SELL pairs. Zero when no
	// round trip completed.
	WinRate           float64
	AvgTradeReturnPct float64

	Start time.Time
	End   time.Time
}

// Valuate computes the final portfolio value: realized cash plus open
// positions marked at each series' last numeric close. Positions that
// cannot be priced contribute zero and are logged, not fatal.
func Valuate(res engine.Result, data map[string]*market.Series, log zerolog.Logger) Summary {
	p := res.Final

	held := p.HeldValue(func(symbol string) (float64, bool) {
		s, ok := data[symbol]
		if !ok || s.Len() == 0 {
			log.Warn().Str("symbol", symbol).Msg("open position has no series, valued at 0")
			return 0, false
		}
		last, ok := s.LastClose()
		if !ok {
			log.Warn().Str("symbol", symbol).Msg("open position has no numeric close, valued at 0")
			return 0, false
		}
		return last, true
	})

	finalValue := p.Cash() + held
	profit := finalValue - res.InitialCapital
	returnPct := 0.0
	if res.InitialCapital != 0 {
		returnPct = 100 * profit / res.InitialCapital
	}

	winRate, avgReturn := roundTripStats(p.Trades())

	return Summary{
		InitialCapital:    res.InitialCapital,
		FinalCash:         p.Cash(),
		HeldValue:         held,
		FinalValue:        finalValue,
		TotalProfit:       profit,
		ReturnPct:         returnPct,
		Buys:              res.Buys,
		Sells:             res.Sells,
		OpenCount:         len(p.OpenSymbols()),
		WinRate:           winRate,
		AvgTradeReturnPct: avgReturn,
		Start:             res.Start,
		End:               res.End,
	}
}

// roundTripStats matches each SELL with its preceding BUY (position
// uniqueness guarantees exactly one) and computes the win rate and mean
// per-trade return over the completed round trips.
func roundTripStats(trades []portfolio.Trade) (winRate, avgReturnPct float64) {
	entry := make(map[string]portfolio.Trade)
	var returns []float64

	for _, t := range trades {
		switch t.Side {
		case portfolio.Buy:
			entry[t.Symbol] = t
		case portfolio.Sell:
			buy, ok := entry[t.Symbol]
			if !ok || buy.Price == 0 {
				continue
			}
			returns = append(returns, 100*(t.Price-buy.Price)/buy.Price)
			delete(entry, t.Symbol)
		}
	}

	if len(returns) == 0 {
		return 0, 0
	}

	wins := 0
	for _, r := range returns {
		if r > 0 {
			wins++
		}
	}
	winRate = float64(wins) / float64(len(returns))

	mean, err := stats.Mean(stats.Float64Data(returns))
	if err != nil || math.IsNaN(mean) {
		return winRate, 0
	}
	return winRate, mean
}
