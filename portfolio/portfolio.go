// Package portfolio holds the simulated portfolio state: a cash balance,
// at most one open position per symbol, and an append-only trade log.
// Portfolio is an immutable snapshot; ApplyBuy and ApplySell return a new
// snapshot and never mutate the receiver, so a rejected trade leaves the
// caller's state exactly as it was.
package portfolio

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Position is one open holding.
type Position struct {
	Symbol     string
	Quantity   float64 // fractional units, always > 0
	EntryPrice float64
	EntryDate  time.Time
}

// Trade is one executed fill, recorded at apply time and never changed.
type Trade struct {
	Date      time.Time
	Symbol    string
	Side      Side
	Quantity  float64
	Price     float64
	Notional  float64 // quantity * price
	CashAfter float64
}

var (
	ErrPositionOpen     = errors.New("position already open")
	ErrNoPosition       = errors.New("no open position")
	ErrInsufficientCash = errors.New("insufficient cash")
	ErrBadQuantity      = errors.New("quantity must be positive and finite")
	ErrBadPrice         = errors.New("price must be positive and finite")
)

// Portfolio is a snapshot of cash, open positions and the trade log.
// The zero value is unusable; construct with New.
type Portfolio struct {
	cash      float64
	positions map[string]Position
	trades    []Trade
}

func New(cash float64) Portfolio {
	return Portfolio{
		cash:      cash,
		positions: map[string]Position{},
	}
}

func (p Portfolio) Cash() float64 { return p.cash }

// Position returns the open position for symbol, if any.
func (p Portfolio) Position(symbol string) (Position, bool) {
	pos, ok := p.positions[symbol]
	return pos, ok
}

// OpenSymbols lists symbols with open positions in sorted order, so
// callers that iterate positions do so deterministically.
func (p Portfolio) OpenSymbols() []string {
	out := make([]string, 0, len(p.positions))
	for sym := range p.positions {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Trades returns the trade log in chronological append order. The caller
// must not modify the returned slice.
func (p Portfolio) Trades() []Trade { return p.trades }

// ApplyBuy opens a position: debits quantity*price from cash, records the
// position and appends a BUY trade. Fails without any state change when
// the symbol already has an open position or the cost exceeds cash.
func (p Portfolio) ApplyBuy(date time.Time, symbol string, quantity, price float64) (Portfolio, error) {
	if !(quantity > 0) || math.IsInf(quantity, 0) {
		return p, fmt.Errorf("buy %s: %w", symbol, ErrBadQuantity)
	}
	if !(price > 0) || math.IsInf(price, 0) {
		return p, fmt.Errorf("buy %s: %w", symbol, ErrBadPrice)
	}
	if _, ok := p.positions[symbol]; ok {
		return p, fmt.Errorf("buy %s: %w", symbol, ErrPositionOpen)
	}

	cost := quantity * price
	if cost > p.cash {
		return p, fmt.Errorf("buy %s: cost %.8f > cash %.8f: %w", symbol, cost, p.cash, ErrInsufficientCash)
	}

	next := p.clonePositions()
	next.cash = p.cash - cost
	next.positions[symbol] = Position{
		Symbol:     symbol,
		Quantity:   quantity,
		EntryPrice: price,
		EntryDate:  date,
	}
	next.trades = appendTrade(p.trades, Trade{
		Date:      date,
		Symbol:    symbol,
		Side:      Buy,
		Quantity:  quantity,
		Price:     price,
		Notional:  cost,
		CashAfter: next.cash,
	})
	return next, nil
}

// ApplySell closes the open position for symbol at price: credits the
// revenue to cash, drops the position and appends a SELL trade.
func (p Portfolio) ApplySell(date time.Time, symbol string, price float64) (Portfolio, error) {
	if !(price > 0) || math.IsInf(price, 0) {
		return p, fmt.Errorf("sell %s: %w", symbol, ErrBadPrice)
	}
	pos, ok := p.positions[symbol]
	if !ok {
		return p, fmt.Errorf("sell %s: %w", symbol, ErrNoPosition)
	}

	revenue := pos.Quantity * price

	next := p.clonePositions()
	next.cash = p.cash + revenue
	delete(next.positions, symbol)
	next.trades = appendTrade(p.trades, Trade{
		Date:      date,
		Symbol:    symbol,
		Side:      Sell,
		Quantity:  pos.Quantity,
		Price:     price,
		Notional:  revenue,
		CashAfter: next.cash,
	})
	return next, nil
}

// HeldValue marks every open position to its last known close. Positions
// the pricer cannot value contribute zero.
func (p Portfolio) HeldValue(lastClose func(symbol string) (float64, bool)) float64 {
	held := 0.0
	for _, sym := range p.OpenSymbols() {
		price, ok := lastClose(sym)
		if !ok || math.IsNaN(price) {
			continue
		}
		held += p.positions[sym].Quantity * price
	}
	return held
}

func (p Portfolio) clonePositions() Portfolio {
	next := p
	next.positions = make(map[string]Position, len(p.positions)+1)
	for k, v := range p.positions {
		next.positions[k] = v
	}
	return next
}

// appendTrade appends without sharing spare capacity with the source
// snapshot, keeping older snapshots safe from later appends.
func appendTrade(trades []Trade, t Trade) []Trade {
	return append(trades[:len(trades):len(trades)], t)
}
