package journal

import (
	"encoding/csv"
	"os"
	"strconv"
)

var csvHeader = []string{"date", "symbol", "type", "quantity", "price", "total_value", "capital_after_trade"}

// CSVJournal writes the trade log as the run's tabular artifact, one row
// per executed trade in append order. Run summaries are not part of the
// artifact and are ignored here.
type CSVJournal struct {
	w *csv.Writer
	f *os.File
}

func NewCSV(path string) (*CSVJournal, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		f.Close()
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return nil, err
	}

	return &CSVJournal{w: w, f: f}, nil
}

func (j *CSVJournal) RecordTrade(r Record) error {
	err := j.w.Write([]string{
		r.Date.Format("2006-01-02"),
		r.Symbol,
		r.Side,
		f(r.Quantity),
		f(r.Price),
		f(r.Notional),
		f(r.CashAfter),
	})
	if err != nil {
		return err
	}
	j.w.Flush()
	return j.w.Error()
}

func (j *CSVJournal) RecordRun(Run) error { return nil }

func (j *CSVJournal) Close() error {
	j.w.Flush()
	if err := j.w.Error(); err != nil {
		j.f.Close()
		return err
	}
	return j.f.Close()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 8, 64)
}
