package journal

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteJournal keeps run history across invocations: one row per run plus
// its trades, keyed by ULID run id.
type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) RecordTrade(r Record) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(run_id, date, symbol, side, quantity, price, notional, cash_after)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Date, r.Symbol, r.Side, r.Quantity, r.Price, r.Notional, r.CashAfter,
	)
	return err
}

func (j *SQLiteJournal) RecordRun(r Run) error {
	_, err := j.db.Exec(`
		INSERT INTO runs
		(run_id, created, start_date, end_date, initial_capital, final_value, profit, return_pct, buys, sells)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Created, r.Start, r.End,
		r.InitialCapital, r.FinalValue, r.Profit, r.ReturnPct, r.Buys, r.Sells,
	)
	return err
}

// ListTradesByRun returns every trade of a run in chronological order.
func (j *SQLiteJournal) ListTradesByRun(runID string) ([]Record, error) {
	rows, err := j.db.Query(`
		SELECT run_id, date, symbol, side, quantity, price, notional, cash_after
		FROM trades WHERE run_id = ? ORDER BY date`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var date time.Time
		if err := rows.Scan(&r.RunID, &date, &r.Symbol, &r.Side, &r.Quantity, &r.Price, &r.Notional, &r.CashAfter); err != nil {
			return nil, err
		}
		r.Date = date
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListRuns returns run summaries, newest first.
func (j *SQLiteJournal) ListRuns() ([]Run, error) {
	rows, err := j.db.Query(`
		SELECT run_id, created, start_date, end_date, initial_capital, final_value, profit, return_pct, buys, sells
		FROM runs ORDER BY created DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.RunID, &r.Created, &r.Start, &r.End,
			&r.InitialCapital, &r.FinalValue, &r.Profit, &r.ReturnPct, &r.Buys, &r.Sells); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
