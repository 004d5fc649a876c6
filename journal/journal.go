// Package journal persists the auditable output of a run: the trade log
// and the run summary. Backends share the Journal interface so the CLI can
// write the CSV artifact, the SQLite history, or both.
package journal

import (
	"fmt"
	"time"
)

// Record is one executed trade, in chronological append order.
type Record struct {
	RunID     string
	Date      time.Time
	Symbol    string
	Side      string // BUY or SELL
	Quantity  float64
	Price     float64
	Notional  float64
	CashAfter float64
}

// Run is the summary row for one completed simulation.
type Run struct {
	RunID   string
	Created time.Time
	Start   time.Time
	End     time.Time

	InitialCapital float64
	FinalValue     float64
	Profit         float64
	ReturnPct      float64

	Buys  int
	Sells int
}

type Journal interface {
	RecordTrade(Record) error
	RecordRun(Run) error
	Close() error
}

// Multi fans every record out to several journals.
type Multi []Journal

func (m Multi) RecordTrade(r Record) error {
	for _, j := range m {
		if err := j.RecordTrade(r); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) RecordRun(r Run) error {
	for _, j := range m {
		if err := j.RecordRun(r); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) Close() error {
	var first error
	for _, j := range m {
		if err := j.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// TradeLogName builds the per-run CSV artifact name: timestamped so every
// run writes a new file, ULID-suffixed so two runs in the same second
// cannot collide.
func TradeLogName(runID string, now time.Time) string {
	return fmt.Sprintf("backtest_trade_log_%s_%s.csv", now.Format("20060102_150405"), runID)
}
