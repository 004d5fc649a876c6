package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/rcoelho/weektrader/market"
	"github.com/rcoelho/weektrader/portfolio"
)

// SkipReason classifies why an asset produced no trade on a given day.
// Skips are expected operating conditions, not errors; the loop records
// them and moves on.
type SkipReason string

const (
	SkipNone           SkipReason = ""
	SkipAlreadyHeld    SkipReason = "already_held"
	SkipMissingData    SkipReason = "missing_data"
	SkipMissingModel   SkipReason = "missing_model"
	SkipBelowThreshold SkipReason = "below_threshold"
	SkipCapExhausted   SkipReason = "cap_exhausted"
	SkipStalePrice     SkipReason = "stale_price"
	SkipComputation    SkipReason = "computation_error"
)

// decision is the typed per-asset outcome of one entry-day evaluation:
// either a funded buy (qualified) or a skip with its reason.
type decision struct {
	symbol    string
	signal    float64
	hasSignal bool

	qualified bool
	quantity  float64
	price     float64

	reason SkipReason
	err    error
}

func skip(symbol string, reason SkipReason, err error) decision {
	return decision{symbol: symbol, reason: reason, err: err}
}

// entryDay runs the buy-side algorithm for one date. The allocation cap is
// computed once up front: it bounds total new exposure for the day, and
// the first qualifying asset in universe order consumes it entirely, so at
// most one position opens per entry day.
func (e *Engine) entryDay(date time.Time, p portfolio.Portfolio, res *Result) portfolio.Portfolio {
	available := p.Cash() * e.cfg.Allocation

	e.log.Debug().
		Time("date", date).
		Float64("available", available).
		Msg("entry day")

	for _, sym := range e.universe {
		d := e.evaluateEntry(date, sym, p, available)
		e.logDecision(date, d)

		if !d.qualified {
			res.Skips[d.reason]++
			continue
		}

		next, err := p.ApplyBuy(date, sym, d.quantity, d.price)
		if err != nil {
			// The ledger refused a trade the evaluation thought was fine.
			// Treat like any other per-asset failure: log, skip, keep going.
			e.log.Error().Time("date", date).Str("symbol", sym).Err(err).Msg("buy rejected")
			res.Skips[SkipComputation]++
			continue
		}
		p = next
		available = 0
		res.Buys++

		e.log.Info().
			Time("date", date).
			Str("symbol", sym).
			Float64("signal", d.signal).
			Float64("quantity", d.quantity).
			Float64("price", d.price).
			Float64("cash", p.Cash()).
			Msg("BUY")
	}

	return p
}

// evaluateEntry decides whether one asset qualifies for a buy on date.
// The feature row comes from the most recent bar strictly before date;
// only the execution price may come from the current date.
func (e *Engine) evaluateEntry(date time.Time, sym string, p portfolio.Portfolio, available float64) decision {
	if _, held := p.Position(sym); held {
		return skip(sym, SkipAlreadyHeld, nil)
	}

	series, ok := e.data[sym]
	if !ok {
		return skip(sym, SkipMissingData, nil)
	}
	prior, ok := series.LatestBefore(date)
	if !ok {
		return skip(sym, SkipMissingData, nil)
	}

	scorer, ok := e.scorers.Lookup(sym)
	if !ok {
		return skip(sym, SkipMissingModel, nil)
	}

	row, err := featureRow(prior, scorer.Features())
	if err != nil {
		return skip(sym, SkipComputation, err)
	}
	signal, err := scorer.Predict(row)
	if err != nil {
		return skip(sym, SkipComputation, err)
	}

	d := decision{symbol: sym, signal: signal, hasSignal: true}
	if signal < e.cfg.Threshold {
		d.reason = SkipBelowThreshold
		return d
	}
	if available <= 0 {
		d.reason = SkipCapExhausted
		return d
	}

	bar, ok := series.BarOn(date)
	if !ok || math.IsNaN(bar.Open) || !(bar.Open > 0) {
		d.reason = SkipStalePrice
		return d
	}

	d.qualified = true
	d.quantity = available / bar.Open
	d.price = bar.Open
	return d
}

// exitDay force-closes every open position that has a numeric close on
// date. Positions without one stay open for the next exit day, or for
// mark-to-last-close at valuation time.
func (e *Engine) exitDay(date time.Time, p portfolio.Portfolio, res *Result) portfolio.Portfolio {
	open := p.OpenSymbols()
	if len(open) == 0 {
		return p
	}

	for _, sym := range open {
		series, ok := e.data[sym]
		if !ok {
			e.log.Warn().Time("date", date).Str("symbol", sym).Msg("no series for open position, holding")
			res.Skips[SkipMissingData]++
			continue
		}
		bar, ok := series.BarOn(date)
		if !ok || math.IsNaN(bar.Close) || !(bar.Close > 0) {
			e.log.Warn().Time("date", date).Str("symbol", sym).Msg("no close price, holding")
			res.Skips[SkipStalePrice]++
			continue
		}

		pos, _ := p.Position(sym)
		next, err := p.ApplySell(date, sym, bar.Close)
		if err != nil {
			e.log.Error().Time("date", date).Str("symbol", sym).Err(err).Msg("sell rejected")
			res.Skips[SkipComputation]++
			continue
		}
		p = next
		res.Sells++

		e.log.Info().
			Time("date", date).
			Str("symbol", sym).
			Float64("quantity", pos.Quantity).
			Float64("price", bar.Close).
			Float64("profit", pos.Quantity*(bar.Close-pos.EntryPrice)).
			Float64("cash", p.Cash()).
			Msg("SELL")
	}

	return p
}

// featureRow extracts the scorer's declared features, in order, from a bar.
func featureRow(bar market.Bar, features []string) ([]float64, error) {
	row := make([]float64, len(features))
	for i, name := range features {
		v, ok := bar.Feature(name)
		if !ok {
			return nil, fmt.Errorf("feature column %q not in series", name)
		}
		row[i] = v
	}
	return row, nil
}

func (e *Engine) logDecision(date time.Time, d decision) {
	if d.qualified {
		return
	}

	var ev *zerolog.Event
	if d.reason == SkipStalePrice || d.reason == SkipComputation {
		ev = e.log.Warn()
	} else {
		ev = e.log.Debug()
	}
	ev = ev.Time("date", date).Str("symbol", d.symbol).Str("reason", string(d.reason))
	if d.hasSignal {
		ev = ev.Float64("signal", d.signal)
	}
	if d.err != nil {
		ev = ev.Err(d.err)
	}
	ev.Msg("skip")
}
