package report

import (
	"fmt"
	"time"

	"github.com/rcoelho/weektrader/journal"
	"github.com/rcoelho/weektrader/portfolio"
)

// Persist writes the full trade log and the run summary through the given
// journal, once, at the end of a run.
func Persist(j journal.Journal, runID string, s Summary, trades []portfolio.Trade) error {
	for _, t := range trades {
		err := j.RecordTrade(journal.Record{
			RunID:     runID,
			Date:      t.Date,
			Symbol:    t.Symbol,
			Side:      string(t.Side),
			Quantity:  t.Quantity,
			Price:     t.Price,
			Notional:  t.Notional,
			CashAfter: t.CashAfter,
		})
		if err != nil {
			return fmt.Errorf("record trade: %w", err)
		}
	}

	err := j.RecordRun(journal.Run{
		RunID:          runID,
		Created:        time.Now().UTC(),
		Start:          s.Start,
		End:            s.End,
		InitialCapital: s.InitialCapital,
		FinalValue:     s.FinalValue,
		Profit:         s.TotalProfit,
		ReturnPct:      s.ReturnPct,
		Buys:           s.Buys,
		Sells:          s.Sells,
	})
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}
