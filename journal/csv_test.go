package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVJournalHeader(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trades.csv")
	j, err := NewCSV(path)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	header, err := csv.NewReader(strings.NewReader(string(data))).Read()
	require.NoError(t, err)

	want := []string{"date", "symbol", "type", "quantity", "price", "total_value", "capital_after_trade"}
	assert.Equal(t, want, header)
}

func TestCSVJournalRecordTrade(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trades.csv")
	j, err := NewCSV(path)
	require.NoError(t, err)

	err = j.RecordTrade(Record{
		RunID:     "01RUN",
		Date:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Symbol:    "BTCUSDT",
		Side:      "BUY",
		Quantity:  0.02356789,
		Price:     42435.5,
		Notional:  1000.12345678,
		CashAfter: 9000.5,
	})
	require.NoError(t, err)
	require.NoError(t, j.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	r := csv.NewReader(strings.NewReader(string(data)))
	_, err = r.Read() // header
	require.NoError(t, err)
	row, err := r.Read()
	require.NoError(t, err)

	assert.Equal(t, "2024-01-01", row[0])
	assert.Equal(t, "BTCUSDT", row[1])
	assert.Equal(t, "BUY", row[2])
	assert.Equal(t, "0.02356789", row[3])
	assert.Equal(t, "42435.50000000", row[4])
	assert.Equal(t, "1000.12345678", row[5])
	assert.Equal(t, "9000.50000000", row[6])
}

func TestTradeLogName(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 14, 30, 5, 0, time.UTC)
	name := TradeLogName("01ABC", now)
	assert.Equal(t, "backtest_trade_log_20240301_143005_01ABC.csv", name)
}
